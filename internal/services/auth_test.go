package services

import (
	"context"
	"errors"
	"testing"

	"github.com/skinguardian/client/internal/apiclient"
	"github.com/skinguardian/client/internal/events"
	"github.com/skinguardian/client/types"
)

func TestLoginStoresExactToken(t *testing.T) {
	h := newHarness(t)
	if _, err := h.api.AddUser("alice", "secret1"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	h.api.SetToken("alice", "abc.def.ghi")

	auth := NewAuthService(h.client, h.session, h.notifier, h.logger)
	if err := auth.Login(context.Background(), types.Credentials{Username: "alice", Password: "secret1"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	token, ok := h.session.Get()
	if !ok || token != "abc.def.ghi" {
		t.Fatalf("session holds %q (%v)", token, ok)
	}
	if got := h.notifier.kinds(); len(got) != 1 || got[0] != events.TypeAuthenticated {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestLoginFailureLeavesSessionUntouched(t *testing.T) {
	h := newHarness(t)
	if _, err := h.api.AddUser("alice", "secret1"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	h.session.Set("previous")

	auth := NewAuthService(h.client, h.session, h.notifier, h.logger)
	err := auth.Login(context.Background(), types.Credentials{Username: "alice", Password: "not-it!"})
	if !apiclient.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if token, _ := h.session.Get(); token != "previous" {
		t.Fatalf("session changed to %q", token)
	}
	if got := h.notifier.kinds(); len(got) != 1 || got[0] != events.TypeAuthFailed {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestCredentialValidationSkipsNetwork(t *testing.T) {
	h := newHarness(t)
	auth := NewAuthService(h.client, h.session, h.notifier, h.logger)

	cases := []struct {
		name  string
		creds types.Credentials
		field string
	}{
		{"short username", types.Credentials{Username: "a", Password: "secret1"}, "username"},
		{"blank username", types.Credentials{Username: "   ", Password: "secret1"}, "username"},
		{"short password", types.Credentials{Username: "alice", Password: "12345"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := auth.SignUp(context.Background(), tc.creds)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
		})
	}
	if h.api.TotalHits() != 0 {
		t.Fatalf("validation failures reached the network")
	}
	if h.session.Authenticated() {
		t.Fatalf("session must stay empty")
	}
}

func TestSignUpAuthenticates(t *testing.T) {
	h := newHarness(t)
	auth := NewAuthService(h.client, h.session, h.notifier, h.logger)

	if err := auth.SignUp(context.Background(), types.Credentials{Username: "bob", Password: "hunter22"}); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if !h.session.Authenticated() {
		t.Fatalf("expected authenticated session")
	}
}

func TestNilNotifierFallsBackToNop(t *testing.T) {
	h := newHarness(t)
	auth := NewAuthService(h.client, h.session, nil, h.logger)
	if _, ok := auth.notifier.(nopNotifier); !ok {
		t.Fatalf("expected nop notifier, got %T", auth.notifier)
	}

	err := auth.Login(context.Background(), types.Credentials{Username: "nobody", Password: "secret1"})
	if err == nil {
		t.Fatalf("expected login failure for unknown account")
	}
	if err := auth.SignUp(context.Background(), types.Credentials{Username: "bob", Password: "hunter22"}); err != nil {
		t.Fatalf("sign up: %v", err)
	}
}
