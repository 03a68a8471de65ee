package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-enrich/internal/config"
	"github.com/sells-group/geo-enrich/internal/dataset"
	"github.com/sells-group/geo-enrich/internal/export"
)

var (
	exportFile   string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write resolved rows as a GeoJSON FeatureCollection",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := io.Writer(os.Stdout)
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return eris.Wrap(err, "export: create output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return runExport(cmd, cfg, exportFile, out)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFile, "file", "", "enriched dataset (.csv or .xlsx)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "GeoJSON destination (default stdout)")
	_ = exportCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, c *config.Config, file string, out io.Writer) error {
	ds, err := dataset.Load(cmd.Context(), file, dataset.WithCharset(c.Dataset.CSVCharset))
	if err != nil {
		return err
	}

	fc, stats, err := export.FeatureCollection(ds, export.Columns{
		Address:    c.Dataset.AddressColumn,
		Coordinate: c.Dataset.CoordinateColumn,
	})
	if err != nil {
		return err
	}

	zap.L().Info("export: built feature collection",
		zap.String("file", file),
		zap.Int("features", stats.Features),
		zap.Int("empty", stats.Empty),
		zap.Int("invalid", stats.Invalid),
	)
	return export.Write(out, fc)
}
