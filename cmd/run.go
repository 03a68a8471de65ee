package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geo-enrich/internal/config"
	"github.com/sells-group/geo-enrich/internal/model"
)

var (
	runFile        string
	runOutput      string
	runAPIKeyFile  string
	runMaxRequests int
	runDryRun      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Geocode one dataset file",
	Long:  "Fills the coordinate column of a CSV or XLSX file. Rows that already have coordinates are skipped, so an interrupted or quota-limited run can simply be repeated.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := runOptions{
			Output:      runOutput,
			MaxRequests: runMaxRequests,
			DryRun:      runDryRun,
		}
		_, err := runEnrich(ctx, cfg, runFile, runAPIKeyFile, opts, os.Stdout)
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runFile, "file", "", "dataset to enrich (.csv or .xlsx)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "write the enriched dataset here instead of in place")
	runCmd.Flags().StringVar(&runAPIKeyFile, "api-key-file", "", "file holding the geocoder API key (default from config)")
	runCmd.Flags().IntVar(&runMaxRequests, "max-requests", 0, "per-run request ceiling (default from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "classify rows without sending requests or writing the file")
	_ = runCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(runCmd)
}

// runEnrich resolves the credential, runs the pipeline over file, and prints
// the YAML summary to out. The summary is printed even when the run returns
// an error after the loop started.
func runEnrich(ctx context.Context, c *config.Config, file, keyFile string, opts runOptions, out io.Writer) (*model.RunSummary, error) {
	key, err := resolveRunCredential(c, keyFile, opts.DryRun)
	if err != nil {
		return nil, err
	}

	env, err := initEnv(ctx, c)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	summary, runErr := env.enrichFile(ctx, file, newClient(c, key), opts)
	if summary != nil {
		if err := writeSummary(out, summary); err != nil {
			zap.L().Warn("write summary failed", zap.Error(err))
		}
	}
	if runErr != nil {
		return summary, eris.Wrap(runErr, "run")
	}
	return summary, nil
}

// resolveRunCredential prefers the flag, then the configured key. A dry run
// sends no requests and tolerates a missing key.
func resolveRunCredential(c *config.Config, keyFile string, dryRun bool) (config.Secret, error) {
	var (
		key config.Secret
		err error
	)
	if keyFile != "" {
		key, err = config.LoadCredential(keyFile)
	} else {
		key, err = c.Geocoder.ResolveCredential()
	}
	if err != nil && dryRun {
		return "", nil
	}
	return key, err
}

func writeSummary(w io.Writer, s *model.RunSummary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return eris.Wrap(err, "encode summary")
	}
	return enc.Close()
}
