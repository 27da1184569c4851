package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/skinguardian/client/config"
	"github.com/skinguardian/client/internal/apiclient"
	"github.com/skinguardian/client/internal/events"
	"github.com/skinguardian/client/internal/services"
	"github.com/skinguardian/client/internal/session"
	"github.com/skinguardian/client/types"
	"github.com/spf13/cobra"
)

// app is the set of components one process drives.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	session   *session.Store
	client    *apiclient.Client
	publisher *events.Publisher
	auth      *services.AuthService
	diagnosis *services.DiagnosisService
	resources *services.ResourceSync
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger := newLogger(cfg.LogLevel)

	backend, err := events.Open(ctx, cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("open events backend: %w", err)
	}
	publisher := events.NewPublisher(backend, cfg.Events.Channel, logger)

	store := session.New()
	client := apiclient.New(cfg.API)
	return &app{
		cfg:       cfg,
		logger:    logger,
		session:   store,
		client:    client,
		publisher: publisher,
		auth:      services.NewAuthService(client, store, publisher, logger),
		diagnosis: services.NewDiagnosisService(client, store, services.DefaultAdvisories, publisher, logger),
		resources: services.NewResourceSync(client, publisher, logger),
	}, nil
}

func (a *app) Close() error {
	return a.publisher.Close()
}

func (a *app) credential() (string, error) {
	token, ok := a.session.Get()
	if !ok {
		return "", services.ErrUnauthenticated
	}
	return token, nil
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("username", "", "account name (default $SKINGUARD_USERNAME)")
	cmd.Flags().String("password", "", "account password (default $SKINGUARD_PASSWORD)")
}

func credentialsFromFlags(cmd *cobra.Command) (types.Credentials, error) {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if username == "" {
		username = os.Getenv("SKINGUARD_USERNAME")
	}
	if password == "" {
		password = os.Getenv("SKINGUARD_PASSWORD")
	}
	creds := types.Credentials{Username: strings.TrimSpace(username), Password: password}
	if creds.Username == "" || creds.Password == "" {
		return creds, errors.New("--username and --password are required")
	}
	return creds, nil
}

// withSession builds the app and logs in with the command's credentials.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
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

	if err := a.auth.Login(ctx, creds); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return fn(ctx, a)
}
