// Package commands implements the CLI commands for propharvest.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/propharvest/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "propharvest",
	Short: "Harvest property listings from classifieds search results",
	Long: `Propharvest walks the paginated search results of a classifieds site,
visits every listing it finds and writes the listings, with coordinates,
to a spreadsheet.

Examples:
  # Harvest the default merrjep.al category into output/
  propharvest crawl

  # Harvest two categories without running Chrome
  propharvest crawl --mode static \
      https://www.merrjep.al/njoftime/imobiliare-vendbanime/apartamente/me-qera \
      https://www.merrjep.al/njoftime/imobiliare-vendbanime/apartamente/ne-shitje

  # Write JSON and also upsert into Postgres
  propharvest crawl -f json --postgres-dsn postgres://localhost/propharvest`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default ./.propharvest.yaml or $HOME/.propharvest.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".propharvest")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. PROPHARVEST_OUTPUT_FORMAT for output.format
	config.UseEnv(viper.GetViper())

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
