package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/expdata/internal/export"
	"github.com/user/expdata/pkg/sink"
)

var (
	exportApps     []string
	exportFormat   string
	exportKind     string
	exportSessions []string
	exportOut      string
)

func init() {
	exportCmd.Flags().StringSliceVar(&exportApps, "app", nil, "app to export (repeatable, default all apps)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "csv, xlsx, json or parquet (default from config)")
	exportCmd.Flags().StringVar(&exportKind, "kind", "hierarchical", "hierarchical or custom")
	exportCmd.Flags().StringSliceVar(&exportSessions, "session", nil, "session code to include (repeatable)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", `write to this file ("-" for stdout) instead of the configured storage`)
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export app data once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		format := exportFormat
		if format == "" {
			format = rt.cfg.Export.Format
		}
		f, err := sink.ParseFormat(format)
		if err != nil {
			return err
		}
		kind, err := export.ParseKind(exportKind)
		if err != nil {
			return err
		}
		req := export.Request{Apps: exportApps, Kind: kind, Format: f, Sessions: exportSessions}

		if exportOut == "" {
			arts, err := rt.svc.Export(ctx, req)
			if err != nil {
				return err
			}
			for _, a := range arts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d rows\t%s\n", a.Name, a.Rows, a.URL)
			}
			return nil
		}

		data, rows, err := rt.svc.Bytes(ctx, req)
		if err != nil {
			return err
		}
		if err := writeOut(cmd.OutOrStdout(), exportOut, data); err != nil {
			return err
		}
		rt.logger.Info("Export written", "out", exportOut, "rows", rows, "bytes", len(data))
		return nil
	},
}

func writeOut(stdout io.Writer, path string, data []byte) error {
	if path == "-" {
		w := bufio.NewWriter(stdout)
		if _, err := w.Write(data); err != nil {
			return err
		}
		return w.Flush()
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
