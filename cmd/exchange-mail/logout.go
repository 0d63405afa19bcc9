package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/exchange-mail/internal/credential"
	"github.com/nhle/exchange-mail/internal/model"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored password for the configured account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := model.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cfg.Username == "" {
			return fmt.Errorf("username is not set in %s", configPath)
		}

		if err := credential.Delete(credential.PasswordKey(cfg.Username)); err != nil {
			return err
		}

		fmt.Printf("Removed stored password for %s\n", cfg.Username)
		return nil
	},
}
