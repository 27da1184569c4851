package services

import (
	"context"
	"errors"

	"github.com/skinguardian/client/internal/events"
	"github.com/skinguardian/client/types"
)

// ErrUnauthenticated is returned when an operation needs a credential and
// the session holds none. No request is made.
var ErrUnauthenticated = errors.New("not authenticated")

// AuthAPI defines the remote authentication operations.
type AuthAPI interface {
	Login(ctx context.Context, creds types.Credentials) (string, error)
	SignUp(ctx context.Context, creds types.Credentials) (string, error)
}

// DiagnosisAPI defines the remote classification operation.
type DiagnosisAPI interface {
	SubmitDiagnosis(ctx context.Context, credential string, localization types.Localization, image types.ImageFile) (string, error)
}

// ResourceAPI defines the remote credential-scoped resources.
type ResourceAPI interface {
	GetProfile(ctx context.Context, credential string) (*types.UserProfile, error)
	CreateProfile(ctx context.Context, credential string, profile types.UserProfile) error
	ListDiagnoses(ctx context.Context, credential string) ([]types.DiagnosisRecord, error)
}

// Notifier receives workflow outcome events.
type Notifier interface {
	Notify(ctx context.Context, event events.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, events.Event) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
