package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"internet-store/storeinit/internal/orchestrator"
	"internet-store/storeinit/internal/ui"
)

var outputFormat string

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Initialize the database once and exit",
	Long: `Bootstrap runs the five initialization steps against the configured
database: ensure collections, drop legacy indexes, create indexes, seed the
admin user and sample catalog, and verify.

With --output text (the default) progress lines and a summary are printed to
stdout. With --output json the full result is printed as JSON instead. The
command exits 0 on success and non-zero on failure.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat != "text" && outputFormat != "json" {
			return fmt.Errorf("invalid --output %q: must be text or json", outputFormat)
		}
		return nil
	},
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json)")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Bootstrap.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Bootstrap.Timeout)
		defer cancel()
	}

	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		app.Close(shutCtx)
	}()

	var printer *ui.Printer
	var opts []orchestrator.Option
	if outputFormat == "text" {
		printer = ui.NewPrinter(cmd.OutOrStdout())
		opts = append(opts, orchestrator.WithReporter(printer))
	}

	result, err := app.newOrchestrator(opts...).RunBootstrap(ctx)

	if printer != nil {
		printer.Summary(result)
	} else {
		printBootstrapResult(cmd, result, err)
	}

	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	slog.Info("bootstrap completed successfully", "run_id", result.RunID)
	return nil
}

func printBootstrapResult(cmd *cobra.Command, result *orchestrator.BootstrapResult, runErr error) {
	var v any = result
	if result == nil {
		out := map[string]string{"status": orchestrator.StatusError}
		if runErr != nil {
			out["error"] = runErr.Error()
		}
		if errors.Is(runErr, orchestrator.ErrBootstrapInProgress) {
			out["status"] = orchestrator.StatusInProgress
		}
		v = out
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stdout, `{"status":%q}`+"\n", orchestrator.StatusError)
	}
}
