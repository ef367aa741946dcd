package cli

import (
	"fmt"
	"runtime"

	"github.com/law-makers/shopscrape/internal/browser"
	"github.com/law-makers/shopscrape/internal/config"
	"github.com/law-makers/shopscrape/internal/ui"
	"github.com/spf13/cobra"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Inspect the headless browser pool",
}

var poolInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the Chrome executable and pool settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		chrome := cfg.ChromePath
		if chrome == "" {
			chrome, err = browser.LookupChrome()
		}

		out := cmd.OutOrStdout()
		if err != nil {
			fmt.Fprintf(out, "%-12s %s\n", "chrome:", ui.Error(err.Error()))
		} else {
			fmt.Fprintf(out, "%-12s %s\n", "chrome:", chrome)
			fmt.Fprintf(out, "%-12s %s\n", "version:", browser.ChromeVersion(chrome))
		}
		fmt.Fprintf(out, "%-12s %v\n", "headless:", cfg.BrowserHeadless)
		fmt.Fprintf(out, "%-12s %d..%d browsers\n", "pool:", cfg.PoolMin, cfg.PoolMax)
		fmt.Fprintf(out, "%-12s %s\n", "acquire:", cfg.AcquireTimeout)
		fmt.Fprintf(out, "%-12s %d\n", "cpus:", runtime.NumCPU())
		return nil
	},
}

var poolCheckCmd = &cobra.Command{
	Use:         "check",
	Short:       "Launch the minimum pool and report its state",
	Annotations: map[string]string{needsApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := mustApp(cmd)
		if err != nil {
			return err
		}
		if err := a.WarmUp(cmd.Context()); err != nil {
			return fmt.Errorf("browser pool failed to start: %w", err)
		}

		stats := a.BrowserPool.Stats()
		fmt.Fprintln(cmd.OutOrStdout(), ui.Pool(stats))
		if stats.Total == 0 {
			return fmt.Errorf("no browser could be launched")
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("✓ Browser pool ready"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(poolCmd)
	poolCmd.AddCommand(poolInfoCmd)
	poolCmd.AddCommand(poolCheckCmd)
}
