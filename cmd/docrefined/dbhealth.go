package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docrefine/internal/common"
	"github.com/joseph-ayodele/docrefine/internal/repository"
)

var dbhealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Ping the configured SQL store and report document counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.Driver == common.DriverMemory {
			return errors.New("dbhealth needs a SQL store: set STORE_DRIVER and DB_URL")
		}
		ctx := cmd.Context()

		store, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), slog.Default())
		if err != nil {
			return fmt.Errorf("opening DB: %w", err)
		}
		defer store.Close()

		if err := store.HealthCheck(ctx, 3*time.Second); err != nil {
			return fmt.Errorf("DB health: FAIL (%w)", err)
		}
		fmt.Println("DB health: OK")

		docs, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}
		fmt.Printf("documents: %d\n", len(docs))
		for status, n := range repository.CountByStatus(docs) {
			fmt.Printf("- %s: %d\n", status, n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbhealthCmd)
}
