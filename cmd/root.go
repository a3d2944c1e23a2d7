package cmd

import (
	"os"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/config"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "traktoon",
	Short: "traktoon channel connector",
	Long:  `traktoon connects X, Instagram and Reddit accounts and publishes go-to-market posts on them`,
}

func Execute(c *config.Config) {
	cfg = c
	logger.Info("Starting CLI", "env", cfg.AppEnv)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("CLI error", "error", err)
		os.Exit(1)
	}
}
