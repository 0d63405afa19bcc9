package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/exchange-mail/internal/credential"
	"github.com/nhle/exchange-mail/internal/model"
)

var (
	loginServerURL string
	loginUsername  string
	loginPassword  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the server, account, and password for later commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := model.LoadConfig(configPath)
		if err != nil {
			return err
		}

		if loginServerURL != "" {
			cfg.ServerURL = loginServerURL
		}
		if loginUsername != "" {
			cfg.Username = loginUsername
		}
		if cfg.ServerURL == "" || cfg.Username == "" {
			return fmt.Errorf("--server and --username are required on first login")
		}

		password := loginPassword
		if password == "" {
			fmt.Fprintf(os.Stderr, "Password for %s: ", cfg.Username)
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return fmt.Errorf("empty password")
		}

		if err := credential.Set(credential.PasswordKey(cfg.Username), password); err != nil {
			return err
		}
		if err := model.SaveConfig(configPath, cfg); err != nil {
			return err
		}

		fmt.Printf("Stored credentials for %s at %s\n", cfg.Username, cfg.ServerURL)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginServerURL, "server", "", "Exchange server base URL")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "account username")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (prompted when omitted)")
}
