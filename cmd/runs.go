package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geo-enrich/internal/model"
	"github.com/sells-group/geo-enrich/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect enrichment run history",
	Long:  "Commands for listing and viewing past enrichment runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrichment runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- usage --

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show geocoder requests per day against the daily limit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		days, _ := cmd.Flags().GetInt("days")
		usage, err := st.ListUsage(ctx, days)
		if err != nil {
			return eris.Wrap(err, "usage")
		}

		formatUsage(os.Stdout, usage, cfg.Quota.DailyLimit)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, completed, quota_exceeded, cancelled, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	usageCmd.Flags().Int("days", 30, "number of most recent days to show")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(usageCmd)
}

// formatRunsList writes a table of runs.
func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATASET\tSTATUS\tRESOLVED\tPENDING\tREQUESTS\tCREATED\tERROR")
	for _, r := range runs {
		var resolved, pending, requests string
		if r.Summary != nil {
			resolved = fmt.Sprint(r.Summary.Resolved)
			pending = fmt.Sprint(r.Summary.Pending)
			requests = fmt.Sprint(r.Summary.Requests)
		} else {
			resolved, pending, requests = "-", "-", "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID),
			truncate(r.Dataset, 40),
			r.Status,
			resolved,
			pending,
			requests,
			r.CreatedAt.Format("2006-01-02 15:04"),
			truncate(r.Error, 50),
		)
	}
	_ = tw.Flush()
}

// formatUsage writes requests per day with the share of the daily limit.
func formatUsage(w io.Writer, usage []model.DailyUsage, limit int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tREQUESTS\tLIMIT\tREMAINING")
	for _, u := range usage {
		if limit <= 0 {
			fmt.Fprintf(tw, "%s\t%d\t-\t-\n", u.Day, u.Requests)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", u.Day, u.Requests, limit, max(0, limit-u.Requests))
	}
	_ = tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
