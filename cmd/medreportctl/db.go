package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medimage2report/internal/repository"
	"github.com/joseph-ayodele/medimage2report/internal/server"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbCfg := cfg.Database
		dbCfg.AutoMigrate = true
		db, err := server.ConnectDB(cmd.Context(), dbCfg, logger)
		if err != nil {
			return err
		}
		defer db.Close(logger)
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

var dbHealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Check that the database is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		dbCfg := cfg.Database
		dbCfg.AutoMigrate = false
		db, err := server.ConnectDB(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("DB health: FAIL (%w)", err)
		}
		defer db.Close(logger)
		fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (%s)\n", db.Dialect())
		return nil
	},
}

func init() {
	dbHealthCmd.Flags().Duration("timeout", 5*time.Second, "Health check timeout")
	rootCmd.AddCommand(migrateCmd, dbHealthCmd)
}

type repos struct {
	db      *repository.DB
	docs    repository.DocumentRepository
	reports repository.ReportRepository
	errs    repository.ProcessingErrorRepository
}

// openRepos connects without building OCR or LLM clients, for read-only commands.
func openRepos(ctx context.Context) (*repos, error) {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &repos{
		db:      db,
		docs:    repository.NewDocumentRepository(db, logger),
		reports: repository.NewReportRepository(db, logger),
		errs:    repository.NewProcessingErrorRepository(db, logger),
	}, nil
}

func (r *repos) Close() { r.db.Close(logger) }
