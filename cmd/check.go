package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geo-enrich/internal/monitoring"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate run health once and send any alerts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, alerts, err := newChecker(env).Check(ctx)
		if err != nil {
			return eris.Wrap(err, "check")
		}
		return writeCheck(os.Stdout, snap, alerts)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// newChecker builds the alert checker over the env's store.
func newChecker(env *enrichEnv) *monitoring.Checker {
	c := env.cfg
	collector := monitoring.NewCollector(env.Store, c.Quota.Location())
	alerter := monitoring.NewAlerter(c.Monitoring, c.Quota.DailyLimit)
	return monitoring.NewChecker(collector, alerter, c.Monitoring)
}

func writeCheck(w io.Writer, snap *monitoring.MetricsSnapshot, alerts []monitoring.Alert) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return eris.Wrap(err, "encode snapshot")
	}
	if err := enc.Close(); err != nil {
		return err
	}
	for _, a := range alerts {
		fmt.Fprintf(w, "ALERT [%s] %s\n", a.Severity, a.Message)
	}
	return nil
}
