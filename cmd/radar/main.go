package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/newthinker/radar/internal/app"
	"github.com/newthinker/radar/internal/config"
	"github.com/newthinker/radar/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "radar",
	Short: "RADAR - daily market radar for B3 and US assets",
	Long: `RADAR fetches prices, fundamentals, news and prediction markets for a
fixed universe of Brazilian and US assets, derives technical signals and
publishes a scored watchlist with a daily report.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	// .env is optional; RADAR_* keys in it feed the config overrides.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config, falling back to the defaults.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// setup builds the logger and the application for one command.
func setup() (*app.App, *zap.Logger, error) {
	log := logger.Must(logger.Options{Development: debug})

	cfg, err := loadConfig(log)
	if err != nil {
		return nil, log, err
	}
	if !debug && (cfg.Log.Development || cfg.Log.Level != "") {
		log, err = logger.New(logger.Options{Development: cfg.Log.Development, Level: cfg.Log.Level})
		if err != nil {
			return nil, zap.NewNop(), fmt.Errorf("logger: %w", err)
		}
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return nil, log, fmt.Errorf("initializing: %w", err)
	}
	return a, log, nil
}
