package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/exchange-mail/internal/credential"
	"github.com/nhle/exchange-mail/internal/ews"
	"github.com/nhle/exchange-mail/internal/model"
	"github.com/nhle/exchange-mail/internal/store"
)

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "exchange-mail",
		Short: "Read and update an Exchange mailbox over EWS",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", model.DefaultConfigPath(), "path to the config file",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level (debug, info, warn, error)",
	)

	rootCmd.AddCommand(
		loginCmd,
		logoutCmd,
		fetchCmd,
		messagesCmd,
		markReadCmd,
		resolveCmd,
		watchCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(level string) {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelInfo)

	switch level {
	case "debug":
		lv.Set(slog.LevelDebug)
	case "info":
		lv.Set(slog.LevelInfo)
	case "warn":
		lv.Set(slog.LevelWarn)
	case "error":
		lv.Set(slog.LevelError)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})
	slog.SetDefault(slog.New(handler))
}

// loadConfig reads the config file and validates the fields every
// online command needs.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server_url is not set in %s", configPath)
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("username is not set in %s", configPath)
	}
	return cfg, nil
}

// location resolves the configured timezone, defaulting to UTC.
func location(cfg *model.AppConfig) *time.Location {
	if cfg.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, falling back to UTC", "timezone", cfg.Timezone)
		return time.UTC
	}
	return loc
}

// newMailbox builds the EWS client and mailbox service from config and
// the keyring-stored password. The caller must Close the client.
func newMailbox(cfg *model.AppConfig) (*ews.Client, *ews.MailboxService, error) {
	password, err := credential.Get(credential.PasswordKey(cfg.Username))
	if err != nil {
		return nil, nil, fmt.Errorf(
			"no stored password for %s (run `exchange-mail login`): %w",
			cfg.Username, err,
		)
	}

	client := ews.NewClient(cfg.ServerURL, cfg.Username, password)
	return client, ews.NewMailboxService(client, location(cfg)), nil
}

// openStore opens the local message cache.
func openStore(cfg *model.AppConfig) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", cfg.CachePath, err)
	}
	return s, nil
}
