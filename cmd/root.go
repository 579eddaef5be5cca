package cmd

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "finora",
	Short: "Recurring payments tracker",
	Long:  "Track subscriptions and installment plans and see which payments are coming up.",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// .env is optional, it only helps local development
		if err := godotenv.Load(); err == nil {
			log.Debug("Loaded environment from .env")
		}
	},
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "./config/application.yaml", "Path to the YAML configuration file")
}
