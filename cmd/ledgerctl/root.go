package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tilver/backend/internal/bootstrap"
	"github.com/tilver/backend/internal/infrastructure/config"
	"github.com/tilver/backend/internal/infrastructure/logger"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// cli carries state shared by all subcommands
type cli struct {
	configPath string
	logLevel   string
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Maintenance commands for the ledger",
		Long: `ledgerctl talks to the ledger database directly, using the same
configuration as the server (config.toml, TLV_* environment variables, .env).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := logger.DefaultConfig()
			cfg.Level = c.logLevel
			cfg.Output = "stderr"
			log, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			c.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = c.log.Sync()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config.toml")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newImportStatementCmd(c),
		newRunRecurringCmd(c),
		newMarkOverdueCmd(c),
		newTaxReportCmd(c),
	)
	return root
}

// withLedger opens the ledger, runs fn and closes the ledger again
func (c *cli) withLedger(ctx context.Context, fn func(*bootstrap.Ledger) error) error {
	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	ledger, err := bootstrap.New(ctx, cfg, otel.Meter("ledgerctl"), c.log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := ledger.Close(closeCtx); err != nil {
			c.log.Warn("close ledger", zap.Error(err))
		}
	}()
	return fn(ledger)
}

func parseTenant(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--tenant is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("--tenant must be a non-nil UUID")
	}
	return id, nil
}

// parseDate reads a YYYY-MM-DD flag value as UTC midnight; empty means today
func parseDate(name, raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}
