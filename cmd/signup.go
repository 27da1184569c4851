/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// signupCmd represents the signup command
var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Registers a new account",
	Long: `Registers a new account with the diagnosis service. Usage:

	skinguard signup --username alice --password secret1
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := credentialsFromFlags(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.auth.SignUp(ctx, creds); err != nil {
			return fmt.Errorf("sign up failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Account %q created.\n", creds.Username)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signupCmd)
	addCredentialFlags(signupCmd)
}
