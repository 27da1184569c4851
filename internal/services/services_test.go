package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/skinguardian/client/internal/apiclient"
	"github.com/skinguardian/client/internal/apitest"
	"github.com/skinguardian/client/internal/events"
	"github.com/skinguardian/client/internal/session"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event events.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) kinds() []events.Type {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]events.Type, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	api      *apitest.Server
	client   *apiclient.Client
	session  *session.Store
	notifier *recordingNotifier
	logger   *slog.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := apitest.New(t)
	return &harness{
		api:      api,
		client:   apiclient.New(api.APIConfig()),
		session:  session.New(),
		notifier: &recordingNotifier{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// loggedIn registers alice and stores a valid token in the session.
func (h *harness) loggedIn(t *testing.T) (userID, token string) {
	t.Helper()
	id, err := h.api.AddUser("alice", "secret1")
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	token, err = h.api.TokenFor("alice")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	h.session.Set(token)
	return id, token
}
