package cli

import (
	"github.com/law-makers/shopscrape/internal/api"
	"github.com/law-makers/shopscrape/internal/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with WebSocket progress",
	Long: `Start the scraping API. The browser pool is warmed up on start and torn
down on SIGINT/SIGTERM after in-flight requests finish.`,
	Example: `  # Listen on the configured address (default :3000)
  shopscrape serve

  # Listen elsewhere with a bigger pool
  shopscrape serve --addr=:8080 --pool-max=8`,
	Annotations: map[string]string{needsApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := mustApp(cmd)
		if err != nil {
			return err
		}
		cfg := a.Config

		addr := cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		// warm-up failures only delay the first scrape
		go func() {
			if err := a.WarmUp(cmd.Context()); err != nil {
				log.Warn().Err(err).Msg("Browser pool warm-up interrupted")
			}
		}()

		srv := api.New(a.Scraper, a.BrowserPool, a.Hub, a.Sink(), api.Options{
			Version:        app.Version,
			APIKey:         cfg.APIKey,
			RateLimitRPS:   cfg.APIRateLimitRPS,
			RateLimitBurst: cfg.APIRateLimitBurst,
			CORSOrigins:    cfg.CORSOrigins,
			RequestTimeout: cfg.HTTPTimeout,
		})
		if cfg.APIKey == "" {
			log.Warn().Msg("No API key configured, scrape endpoints are open")
		}
		return srv.Run(cmd.Context(), addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides SHOPSCRAPE_LISTEN_ADDR)")
}
