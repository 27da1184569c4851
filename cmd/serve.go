/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/skinguardian/client/internal/gate"
	"github.com/skinguardian/client/internal/report"
	"github.com/skinguardian/client/internal/services"
	"github.com/skinguardian/client/internal/storage"
	"github.com/skinguardian/client/internal/web"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the skinguard web UI",
	Long: `Starts the skinguard web UI on SERVER_HOST:SERVER_PORT. Usage:

	skinguard serve
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		images, err := storage.NewResolverFromConfig(ctx, a.cfg.Storage)
		if err != nil {
			return fmt.Errorf("image storage: %w", err)
		}
		defer func() {
			if err := images.Close(); err != nil {
				a.logger.Warn("close image storage", "error", err)
			}
		}()

		srv, err := web.New(a.cfg, web.Deps{
			Session:   a.session,
			Gate:      gate.New(a.session, a.resources, gate.NewRouter(), a.logger),
			Auth:      a.auth,
			Diagnosis: a.diagnosis,
			Resources: a.resources,
			Images:    images,
			Reports:   report.NewGenerator(a.cfg.Report.FontPath, services.DefaultAdvisories),
			Logger:    a.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("listening", "addr", srv.Addr(), "api", a.client.BaseURL())
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
