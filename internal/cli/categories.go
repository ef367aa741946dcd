package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/law-makers/shopscrape/internal/catalog"
	"github.com/law-makers/shopscrape/internal/ui"
	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories [prefix]",
	Short: "List the category paths accepted by scrape category",
	Example: `  # Every category
  shopscrape categories

  # Only women's shoes
  shopscrape categories women.shoes`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}

		var paths []string
		for _, p := range catalog.Default.Paths() {
			if prefix == "" || p == prefix || strings.HasPrefix(p, prefix+".") {
				paths = append(paths, p)
			}
		}
		if len(paths) == 0 {
			return fmt.Errorf("no categories under %q", prefix)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			type entry struct {
				Path       string `json:"path"`
				Breadcrumb string `json:"breadcrumb"`
			}
			entries := make([]entry, len(paths))
			for i, p := range paths {
				entries[i] = entry{Path: p, Breadcrumb: catalog.Default.Breadcrumb(p)}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		width := 0
		for _, p := range paths {
			width = max(width, len(p))
		}
		for _, p := range paths {
			fmt.Fprintf(out, "  %s%-*s%s  %s\n", ui.ColorCyan, width, p, ui.ColorReset,
				ui.Info(catalog.Default.Breadcrumb(p)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
