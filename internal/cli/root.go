package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "halflife",
	Short: "Residual caffeine tracking",
	Long:  "Halflife records caffeine intakes, keeps an hourly residual ledger under exponential decay, and reports daily, weekly, monthly and yearly intake.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(windowCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(drinkCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(statusCmd)
}
