package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve NAME",
	Short: "Resolve a legacy DN or ambiguous name to an SMTP address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, _, err := newMailbox(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		resolved, err := client.ResolveAddress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if resolved == "" {
			return fmt.Errorf("no SMTP address found for %q", args[0])
		}

		fmt.Println(resolved)
		return nil
	},
}
