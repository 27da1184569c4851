/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/skinguardian/client/internal/services"
	"github.com/skinguardian/client/types"
	"github.com/spf13/cobra"
)

// diagnoseCmd represents the diagnose command
var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Submits one lesion image for classification",
	Long: `Logs in, submits one lesion image and prints the classification
with its advisory text. Usage:

	skinguard diagnose --username alice --password secret1 \
		--localization back --image mole.jpg
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		localization, _ := cmd.Flags().GetString("localization")
		imagePath, _ := cmd.Flags().GetString("image")

		sub := types.DiagnosisSubmission{Localization: types.Localization(localization)}
		if imagePath != "" {
			image, err := readImageFile(imagePath)
			if err != nil {
				return err
			}
			sub.Images = []types.ImageFile{image}
		}
		if err := services.ValidateSubmission(sub); err != nil {
			return fmt.Errorf("diagnosis failed: %w", err)
		}

		return withSession(cmd, func(ctx context.Context, a *app) error {
			result, err := a.diagnosis.Submit(ctx, sub)
			if err != nil {
				return fmt.Errorf("diagnosis failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "localization: %s\n", result.Localization)
			fmt.Fprintf(out, "result: %s\n", result.Code)
			if result.HasAdvisory {
				fmt.Fprintf(out, "\n%s\n", result.Advisory)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
	addCredentialFlags(diagnoseCmd)
	diagnoseCmd.Flags().StringP("localization", "l", "", "body site of the lesion, e.g. \"back\" or \"lower extremity\"")
	diagnoseCmd.Flags().StringP("image", "i", "", "path of the lesion image")
}

// readImageFile guesses the content type from the extension, then from
// the leading bytes.
func readImageFile(path string) (types.ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ImageFile{}, fmt.Errorf("read image: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return types.ImageFile{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}
