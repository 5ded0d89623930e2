package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/adapters/roster"
	"github.com/okian/rollcall/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured SQL stores",
		Long: `Migrate brings the SQL ledger, the pgvector embedding cache and the SQL
roster up to date. Stores configured as in-memory or file-backed are skipped.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logger.Get().Named("migrate")
	migrated := 0

	if cfg.Ledger.Kind == "sql" {
		s, err := repository.OpenSQLStore(ctx, cfg.Ledger.Driver, cfg.Ledger.DSN, repository.WithAutoMigrate(false))
		if err != nil {
			return fmt.Errorf("open ledger store: %w", err)
		}
		err = s.Migrate()
		_ = s.Close()
		if err != nil {
			return err
		}
		log.Info(ctx, "ledger migrated", logger.String("driver", cfg.Ledger.Driver))
		migrated++
	}

	if cfg.Gallery.Cache.Kind == "postgres" {
		c, err := repository.OpenPGVectorCache(ctx, cfg.Gallery.Cache.DSN)
		if err != nil {
			return fmt.Errorf("migrate embedding cache: %w", err)
		}
		_ = c.Close()
		log.Info(ctx, "embedding cache migrated")
		migrated++
	}

	if cfg.Roster.Kind == "sql" {
		db, err := roster.OpenDB(cfg.Roster.Driver, cfg.Roster.DSN)
		if err != nil {
			return fmt.Errorf("migrate roster: %w", err)
		}
		_ = db.Close()
		log.Info(ctx, "roster migrated", logger.String("driver", cfg.Roster.Driver))
		migrated++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d store(s) migrated\n", migrated)
	return nil
}
