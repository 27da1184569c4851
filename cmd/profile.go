/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/skinguardian/client/internal/services"
	"github.com/skinguardian/client/types"
	"github.com/spf13/cobra"
)

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Shows or creates the account profile",
	Long: `Logs in and prints the account profile. When --fullname is given
the profile is created first and the stored copy is printed. Usage:

	skinguard profile --username alice --password secret1
	skinguard profile --username alice --password secret1 \
		--fullname "Alice Liddell" --email alice@example.com --age 30
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		fullname, _ := flags.GetString("fullname")
		email, _ := flags.GetString("email")
		phone, _ := flags.GetString("phone")
		sex, _ := flags.GetString("sex")
		age, _ := flags.GetInt("age")
		create := flags.Changed("fullname")

		return withSession(cmd, func(ctx context.Context, a *app) error {
			credential, err := a.credential()
			if err != nil {
				return err
			}

			var snap services.Snapshot
			if create {
				snap, err = a.resources.SubmitProfile(ctx, types.UserProfile{
					FullName: fullname,
					Email:    email,
					Phone:    phone,
					Age:      age,
					Sex:      sex,
				}, credential)
				if err != nil {
					return fmt.Errorf("profile creation failed: %w", err)
				}
			} else {
				snap, err = a.resources.FetchOwned(ctx, services.ResourceProfile, credential)
				if err != nil {
					return fmt.Errorf("fetch profile: %w", err)
				}
			}
			printProfile(cmd.OutOrStdout(), snap)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	addCredentialFlags(profileCmd)
	profileCmd.Flags().String("fullname", "", "full name; creates the profile when set")
	profileCmd.Flags().String("email", "", "contact email")
	profileCmd.Flags().String("phone", "", "contact phone")
	profileCmd.Flags().Int("age", 0, "age in whole years")
	profileCmd.Flags().String("sex", "", "sex")
}

func printProfile(out io.Writer, snap services.Snapshot) {
	if snap.Empty() {
		fmt.Fprintln(out, "No profile yet. Create one with --fullname.")
		return
	}
	p := snap.Profile
	fmt.Fprintf(out, "Full name: %s\n", p.FullName)
	fmt.Fprintf(out, "Email:     %s\n", p.Email)
	fmt.Fprintf(out, "Phone:     %s\n", p.Phone)
	fmt.Fprintf(out, "Age:       %d\n", p.Age)
	fmt.Fprintf(out, "Sex:       %s\n", p.Sex)
}
