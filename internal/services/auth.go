package services

import (
	"context"
	"log/slog"

	"github.com/skinguardian/client/internal/events"
	"github.com/skinguardian/client/internal/session"
	"github.com/skinguardian/client/types"
)

// AuthService logs users in and stores the resulting credential.
type AuthService struct {
	api      AuthAPI
	session  *session.Store
	notifier Notifier
	logger   *slog.Logger
}

func NewAuthService(api AuthAPI, store *session.Store, notifier Notifier, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		api:      api,
		session:  store,
		notifier: notifierOrNop(notifier),
		logger:   logger,
	}
}

// Login exchanges credentials for a token. On failure the session is left
// as it was.
func (s *AuthService) Login(ctx context.Context, creds types.Credentials) error {
	return s.authenticate(ctx, "login", s.api.Login, creds)
}

// SignUp registers a new account and logs it in.
func (s *AuthService) SignUp(ctx context.Context, creds types.Credentials) error {
	return s.authenticate(ctx, "sign-up", s.api.SignUp, creds)
}

func (s *AuthService) authenticate(
	ctx context.Context,
	action string,
	call func(context.Context, types.Credentials) (string, error),
	creds types.Credentials,
) error {
	if err := ValidateCredentials(creds); err != nil {
		return err
	}

	token, err := call(ctx, creds)
	if err != nil {
		s.logger.Warn(action+" failed", "username", creds.Username, "error", err)
		s.notifier.Notify(ctx, events.Event{Type: events.TypeAuthFailed, Error: err.Error()})
		return err
	}

	s.session.Set(token)
	s.logger.Info(action+" succeeded", "username", creds.Username)
	s.notifier.Notify(ctx, events.Event{Type: events.TypeAuthenticated})
	return nil
}
