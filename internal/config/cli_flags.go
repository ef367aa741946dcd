package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format only")
	cmd.PersistentFlags().String("timeout", DefaultHTTPTimeout.String(), "Set hard timeout for a scrape request")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().String("chrome-path", "", "Path to the Chrome/Chromium executable")
	cmd.PersistentFlags().Bool("headful", false, "Show the browser window instead of running headless")
	cmd.PersistentFlags().Int("pool-min", DefaultPoolMin, "Browsers launched when the pool starts")
	cmd.PersistentFlags().Int("pool-max", DefaultPoolMax, "Maximum number of browsers in the pool")
	cmd.PersistentFlags().StringArrayP("header", "H", nil, "Extra request header as \"Key: Value\" (repeatable)")
	cmd.PersistentFlags().String("env-file", DefaultEnvFile, "Path to a .env file (optional)")
}
