package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medimage2report/internal/common"
)

var version = "0.1.0"

var (
	cfg    *common.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "medreportctl",
	Short: "Operate the medical image report pipeline from the command line",
	Long: `medreportctl uploads imaging PDFs, runs OCR and LLM structuring on them,
and inspects the resulting reports and processing errors.

Configuration is read from the environment (and an optional .env file):
  DB_DRIVER, DB_URL          database (postgres or sqlite)
  OCR_ENGINE, OCR_LANGUAGE   tesseract or vision, default OCR language
  LLM_PROVIDER               openai, gemini or ollama`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := common.LoadDotEnv(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		cfg = common.LoadConfig()
		if v, _ := cmd.Flags().GetString("db"); v != "" {
			cfg.Database.DSN = v
		}
		if v, _ := cmd.Flags().GetString("db-driver"); v != "" {
			cfg.Database.Driver = v
		}
		if v, _ := cmd.Flags().GetString("log-level"); v != "" {
			cfg.Log.Level = v
		}
		// logs go to stderr so stdout stays machine-readable
		logger = common.NewLogger(cfg.Log, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "Path to a .env file (default ./.env)")
	rootCmd.PersistentFlags().String("db", "", "Database DSN (overrides DB_URL)")
	rootCmd.PersistentFlags().String("db-driver", "", "Database driver: postgres or sqlite (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
