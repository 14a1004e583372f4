package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "compass",
	Short: "COMPASS - Market-State Routing & Advisory Analysis System",
	Long: `COMPASS routes portfolio analysis between live and historical data based
on market state. Market open means live brokerage data only; market closed
means the read-only historical cache only. Never both, never silently.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	// Brokerage credentials conventionally live in .env during development.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
