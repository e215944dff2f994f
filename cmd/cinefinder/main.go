package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glefebvre/cinefinder/internal/config"
	"github.com/glefebvre/cinefinder/internal/logger"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "cinefinder",
	Short: "CineFinder searches the TMDB catalog and recommends movies",
	Long: `CineFinder aggregates title and director searches against the TMDB catalog,
enriches results with credits and streaming availability, and recommends movies
from a viewing history or a saved list.

Run "cinefinder serve" to start the HTTP API.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of CineFinder",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("CineFinder v%s\n", version)
	},
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yml)")
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// Skip config loading for version command
	if len(os.Args) > 1 && os.Args[1] == "version" {
		return
	}

	if configFile != "" {
		config.SetConfigFile(configFile)
	}
	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()
	logger.InitializeLoggers(cfg.GetAppLogLevel(), cfg.GetDatabaseLogLevel(), cfg.Logging.Format)
	if cfg.IsUsingLegacyLogging() {
		logger.AppLogger().Debug("logging.level is deprecated, use logging.app.level and logging.database.level")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
