package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/law-makers/shopscrape/internal/progress"
	"github.com/law-makers/shopscrape/internal/scraper"
	"github.com/law-makers/shopscrape/internal/ui"
	"github.com/law-makers/shopscrape/internal/utils/output"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	scrapeMode        string
	scrapeLimit       int
	scrapeStart       int
	scrapeEnd         int
	scrapeConcurrency int
	scrapeSave        bool
	scrapeOutput      string
	scrapeFormat      string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape products from a search or a category",
	Long: `Discover product links on a listing page and extract every selected
product in concurrent batches.

Selection modes:
  limit   the first --limit products (default)
  range   products [--start, --end) of the listing
  full    every product, clicking "load more" until the listing is exhausted`,
	Example: `  # First 5 products for a search
  shopscrape scrape search "red dress"

  # Products 20-39 of a category, saved to the database
  shopscrape scrape category women.clothing.dresses.midi-dresses --mode=range --start=20 --end=40 --save

  # Whole category as CSV
  shopscrape scrape category men.shoes.trainers --mode=full -o trainers.csv`,
}

var scrapeSearchCmd = &cobra.Command{
	Use:         "search <term>",
	Short:       "Scrape the products found for a search term",
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{needsApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		term := strings.Join(args, " ")
		return runScrape(cmd, "Searching "+term, func(ctx context.Context, s *scraper.Service, opts models.ScrapeOptions, sink progress.Sink) (*scraper.Result, error) {
			return s.Search(ctx, term, opts, sink)
		})
	},
}

var scrapeCategoryCmd = &cobra.Command{
	Use:         "category <path>",
	Short:       "Scrape the products listed under a category path",
	Long:        "Scrape a category given as a dotted path. Run `shopscrape categories` to list them.",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{needsApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		return runScrape(cmd, "Scraping "+path, func(ctx context.Context, s *scraper.Service, opts models.ScrapeOptions, sink progress.Sink) (*scraper.Result, error) {
			return s.Category(ctx, path, opts, sink)
		})
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.AddCommand(scrapeSearchCmd)
	scrapeCmd.AddCommand(scrapeCategoryCmd)

	flags := scrapeCmd.PersistentFlags()
	flags.StringVarP(&scrapeMode, "mode", "m", string(models.ModeLimit), "Selection mode: limit, range or full")
	flags.IntVarP(&scrapeLimit, "limit", "n", 0, "Number of products in limit mode (default from config)")
	flags.IntVar(&scrapeStart, "start", 0, "First product index in range mode")
	flags.IntVar(&scrapeEnd, "end", 0, "End index (exclusive) in range mode; 0 means the end of the listing")
	flags.IntVarP(&scrapeConcurrency, "concurrency", "c", 0, "Products scraped at once (default from config)")
	flags.BoolVar(&scrapeSave, "save", false, "Save products to the database")
	flags.StringVarP(&scrapeOutput, "output", "o", "", "File path to save products (.json or .csv)")
	flags.StringVar(&scrapeFormat, "format", "json", "Stdout format when no output file is given: json or csv")
}

type runFunc func(ctx context.Context, s *scraper.Service, opts models.ScrapeOptions, sink progress.Sink) (*scraper.Result, error)

func runScrape(cmd *cobra.Command, description string, run runFunc) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}

	opts := models.ScrapeOptions{
		Mode:        models.SelectionMode(strings.ToLower(scrapeMode)),
		Limit:       scrapeLimit,
		StartIndex:  scrapeStart,
		EndIndex:    scrapeEnd,
		Concurrency: scrapeConcurrency,
		SaveToDB:    scrapeSave,
	}
	if opts.SaveToDB && !a.Scraper.CanPersist() {
		log.Warn().Msg("No database configured, --save is ignored")
	}

	var extra []progress.Sink
	if !jsonOutput {
		extra = append(extra, progress.NewBarSink(os.Stderr, description))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.Config.HTTPTimeout)
	defer cancel()

	res, err := run(ctx, a.Scraper, opts, a.Sink(extra...))
	return finishScrape(cmd, res, err)
}

// finishScrape writes whatever the run produced. A failed run that still
// scraped products (timeout, interrupt) has them written before its error
// is returned.
func finishScrape(cmd *cobra.Command, res *scraper.Result, runErr error) error {
	if res == nil || (runErr != nil && len(res.Products) == 0) {
		return runErr
	}
	if runErr != nil {
		log.Warn().Err(runErr).Int("products", len(res.Products)).Msg("Run stopped early, writing partial results")
	}

	if !jsonOutput {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s in %s\n", ui.Bold("Done:"), ui.Summary(res.Summary),
			res.Duration.Round(time.Millisecond))
	}

	if scrapeOutput != "" {
		if err := output.Save(res.Products, scrapeOutput); err != nil {
			return errors.Join(runErr, fmt.Errorf("failed to write %s: %w", scrapeOutput, err))
		}
		log.Info().Str("file", scrapeOutput).Int("products", len(res.Products)).Msg("Output saved")
		if !jsonOutput {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.Success("✓ Saved to "+scrapeOutput))
		}
		return runErr
	}

	if err := writeProducts(cmd.OutOrStdout(), res.Products, scrapeFormat); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func writeProducts(w io.Writer, products []*models.Product, format string) error {
	switch strings.ToLower(format) {
	case "csv":
		return output.WriteCSV(w, products)
	case "json", "":
		return output.WriteJSON(w, products)
	default:
		return fmt.Errorf("invalid format: %s (must be json or csv)", format)
	}
}
