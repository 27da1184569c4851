/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/skinguardian/client/internal/report"
	"github.com/skinguardian/client/internal/services"
	"github.com/spf13/cobra"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists past diagnoses",
	Long: `Logs in and lists the diagnoses stored for the account, oldest
first. With --pdf the list is also written as a PDF report. Usage:

	skinguard history --username alice --password secret1 --pdf exams.pdf
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pdfPath, _ := cmd.Flags().GetString("pdf")

		return withSession(cmd, func(ctx context.Context, a *app) error {
			credential, err := a.credential()
			if err != nil {
				return err
			}
			history, err := a.resources.FetchOwned(ctx, services.ResourceHistory, credential)
			if err != nil {
				return fmt.Errorf("fetch history: %w", err)
			}

			out := cmd.OutOrStdout()
			if history.Empty() {
				fmt.Fprintln(out, "No Skin Exams Performed Yet")
			} else {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tLOCALIZATION\tRESULT\tIMAGE")
				for _, record := range history.Diagnoses {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", record.DiagnosisID, record.Localization, record.DiagnosisResult, record.ImageURL)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if pdfPath == "" {
				return nil
			}
			profile, err := a.resources.FetchOwned(ctx, services.ResourceProfile, credential)
			if err != nil {
				return fmt.Errorf("fetch profile: %w", err)
			}
			return writeReport(pdfPath, a, report.History{
				Username:    usernameFlag(cmd),
				Profile:     profile.Profile,
				Diagnoses:   history.Diagnoses,
				GeneratedAt: time.Now(),
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	addCredentialFlags(historyCmd)
	historyCmd.Flags().String("pdf", "", "write the history as a PDF report to this path")
}

func writeReport(path string, a *app, h report.History) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	gen := report.NewGenerator(a.cfg.Report.FontPath, services.DefaultAdvisories)
	if err := gen.Write(f, h); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Info("report written", "path", path, "diagnoses", len(h.Diagnoses))
	return nil
}

func usernameFlag(cmd *cobra.Command) string {
	creds, _ := credentialsFromFlags(cmd)
	return creds.Username
}
