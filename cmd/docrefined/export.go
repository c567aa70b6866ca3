package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docrefine/internal/common"
	"github.com/joseph-ayodele/docrefine/internal/export"
	"github.com/joseph-ayodele/docrefine/internal/repository"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every document in the SQL store to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.Driver == common.DriverMemory {
			return errors.New("export needs a persistent store: set STORE_DRIVER to sqlite or postgres")
		}
		logger := slog.Default()

		store, err := repository.Open(cmd.Context(), repository.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return err
		}
		defer store.Close()

		data, err := export.NewService(store, logger).DocumentsXLSX(cmd.Context())
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", exportOut, err)
		}
		logger.Info("export written", "path", exportOut, "bytes", len(data))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "documents.xlsx", "Output workbook path")
	rootCmd.AddCommand(exportCmd)
}
