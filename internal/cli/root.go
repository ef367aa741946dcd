// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/shopscrape/internal/app"
	"github.com/law-makers/shopscrape/internal/config"
	"github.com/law-makers/shopscrape/internal/ui"
)

// needsApp marks commands that run against a fully wired Application
const needsApp = "needs-app"

var jsonOutput bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shopscrape",
	Short: "Scrape product catalogs with a pool of headless browsers",
	Long: `Shopscrape discovers products on ASOS search and category listings and
extracts each product page in parallel using a bounded pool of headless Chrome
browsers. Run it once from the command line or serve it as an HTTP API with
WebSocket progress.`,
	Version:       app.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). ctx is cancelled on SIGINT/SIGTERM.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.Error("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	// Register centralized flags
	config.RegisterFlags(rootCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Lazily initialize the application before running commands (avoid starting app for -h/help)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}
		jsonOutput = cfg.JSONLog

		if cmd.Annotations[needsApp] == "" {
			app.SetupLogging(cfg, os.Stderr)
			return nil
		}
		if GetAppFromCmd(cmd) != nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.AcquireTimeout)
		defer cancel()
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}

		// Store app in the current command's context for commands to access
		SetApp(cmd, a)
		return nil
	}

	// Ensure app is closed after command runs
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		a := GetAppFromCmd(cmd)
		if a == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Shutdown incomplete")
		}
		SetApp(cmd, nil)
		return nil
	}
}

// mustApp returns the command's Application. It is only nil when the
// command lacks the needsApp annotation.
func mustApp(cmd *cobra.Command) (*app.Application, error) {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return a, nil
}
