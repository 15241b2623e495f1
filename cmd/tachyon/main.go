package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "dev"

	// cfg and logger are resolved in PersistentPreRunE before any command runs.
	cfg    *config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "tachyon",
		Short: "⚡ Purchase location insights from your receipts",
		Long: `tachyon estimates whether a user made a purchase at a location by
combining their own receipt history with public business data, answers
spending questions by text or voice, and issues invoices with Google Wallet
receipt passes.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/tachyon/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("records", "", "record store backend (sqlite, mongo)")
	rootCmd.PersistentFlags().String("documents", "", "document store backend (sqlite, mongo, firestore)")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("store.records", rootCmd.PersistentFlags().Lookup("records"))
	_ = viper.BindPFlag("store.documents", rootCmd.PersistentFlags().Lookup("documents"))

	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(toolCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(invoiceCmd())
	rootCmd.AddCommand(passCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(importOFXCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			fmt.Fprintln(os.Stderr, userErr.UserMessage)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "tachyon"))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var err error
	logger, err = common.SetupLogger(viper.GetString("logging.level"), viper.GetString("logging.format"))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", "file", used)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tachyon %s\n", version)
		},
	}
}
