package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/skinguardian/client/internal/apiclient"
	"github.com/skinguardian/client/internal/apitest"
	"github.com/skinguardian/client/internal/events"
	"github.com/skinguardian/client/types"
)

func TestFetchProfileIsIdempotent(t *testing.T) {
	h := newHarness(t)
	_, token := h.loggedIn(t)
	resources := NewResourceSync(h.client, nil, h.logger)

	for i := 0; i < 3; i++ {
		snap, err := resources.FetchOwned(context.Background(), ResourceProfile, token)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if !snap.Empty() || snap.Profile != nil {
			t.Fatalf("fetch %d: expected empty profile, got %+v", i, snap)
		}
	}
}

func TestSubmitProfileRefetchesStoredCopy(t *testing.T) {
	h := newHarness(t)
	_, token := h.loggedIn(t)
	resources := NewResourceSync(h.client, h.notifier, h.logger)

	profile := types.UserProfile{FullName: "Alice Liddell", Email: "alice@example.com", Phone: "555-0100", Age: 34, Sex: "female"}
	snap, err := resources.SubmitProfile(context.Background(), profile, token)
	if err != nil {
		t.Fatalf("submit profile: %v", err)
	}
	if snap.Status != StatusPopulated || snap.Profile == nil || *snap.Profile != profile {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if hits := h.api.Hits(http.MethodGet, apitest.ProfilePath); hits != 1 {
		t.Fatalf("expected a refetch after create, got %d reads", hits)
	}

	current, ok := resources.Current(ResourceProfile)
	if !ok || current.Seq != snap.Seq {
		t.Fatalf("current snapshot not updated")
	}
	if got := h.notifier.kinds(); len(got) != 1 || got[0] != events.TypeProfileCreated {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestSubmitProfileFailureChangesNothing(t *testing.T) {
	h := newHarness(t)
	userID, token := h.loggedIn(t)
	existing := types.UserProfile{FullName: "Alice", Age: 30}
	h.api.SetProfile(userID, existing)
	resources := NewResourceSync(h.client, h.notifier, h.logger)

	before, err := resources.FetchOwned(context.Background(), ResourceProfile, token)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	_, err = resources.SubmitProfile(context.Background(), types.UserProfile{FullName: "Someone Else", Age: 40}, token)
	if apiclient.StatusCode(err) != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}

	after, _ := resources.Current(ResourceProfile)
	if after.Seq != before.Seq || *after.Profile != existing {
		t.Fatalf("cache changed after failed create: %+v", after)
	}
}

func TestSubmitProfileValidation(t *testing.T) {
	h := newHarness(t)
	_, token := h.loggedIn(t)
	resources := NewResourceSync(h.client, nil, h.logger)

	cases := []struct {
		name    string
		profile types.UserProfile
		field   string
	}{
		{"short name", types.UserProfile{FullName: "A", Age: 20}, "fullname"},
		{"negative age", types.UserProfile{FullName: "Alice", Age: -1}, "age"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resources.SubmitProfile(context.Background(), tc.profile, token)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
		})
	}
	if hits := h.api.Hits(http.MethodPost, apitest.ProfilePath); hits != 0 {
		t.Fatalf("invalid profile reached the network")
	}
}

func TestFetchHistory(t *testing.T) {
	h := newHarness(t)
	userID, token := h.loggedIn(t)
	resources := NewResourceSync(h.client, nil, h.logger)

	snap, err := resources.FetchOwned(context.Background(), ResourceHistory, token)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !snap.Empty() || snap.Diagnoses == nil || len(snap.Diagnoses) != 0 {
		t.Fatalf("expected empty non-nil history, got %+v", snap)
	}

	h.api.AddDiagnosis(userID, types.DiagnosisRecord{Localization: types.LocalizationBack, DiagnosisResult: "nv"})
	h.api.AddDiagnosis(userID, types.DiagnosisRecord{Localization: types.LocalizationFace, DiagnosisResult: "mel"})

	snap, err = resources.FetchOwned(context.Background(), ResourceHistory, token)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snap.Status != StatusPopulated || len(snap.Diagnoses) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Diagnoses[0].DiagnosisResult != "nv" || snap.Diagnoses[1].DiagnosisResult != "mel" {
		t.Fatalf("history order not preserved")
	}
}

func TestFetchRequiresCredential(t *testing.T) {
	h := newHarness(t)
	resources := NewResourceSync(h.client, nil, h.logger)

	if _, err := resources.FetchOwned(context.Background(), ResourceProfile, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := resources.FetchOwned(context.Background(), "settings", "token"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if h.api.TotalHits() != 0 {
		t.Fatalf("no request expected")
	}
}

// gatedAPI hands every profile read to the test, which answers it on the
// read's own channel.
type gatedAPI struct {
	calls chan chan profileReply
}

func newGatedAPI() *gatedAPI {
	return &gatedAPI{calls: make(chan chan profileReply)}
}

type profileReply struct {
	profile *types.UserProfile
	err     error
}

func (g *gatedAPI) GetProfile(context.Context, string) (*types.UserProfile, error) {
	replies := make(chan profileReply)
	g.calls <- replies
	reply := <-replies
	return reply.profile, reply.err
}

func (g *gatedAPI) CreateProfile(context.Context, string, types.UserProfile) error { return nil }

func (g *gatedAPI) ListDiagnoses(context.Context, string) ([]types.DiagnosisRecord, error) {
	return nil, nil
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	api := newGatedAPI()
	resources := NewResourceSync(api, nil, newHarness(t).logger)

	type outcome struct {
		snap Snapshot
		err  error
	}
	first := make(chan outcome, 1)
	go func() {
		snap, err := resources.FetchOwned(context.Background(), ResourceProfile, "t1")
		first <- outcome{snap, err}
	}()
	firstReply := <-api.calls

	second := make(chan outcome, 1)
	go func() {
		snap, err := resources.FetchOwned(context.Background(), ResourceProfile, "t2")
		second <- outcome{snap, err}
	}()
	secondReply := <-api.calls

	fresh := &types.UserProfile{FullName: "Fresh", Age: 2}
	secondReply <- profileReply{profile: fresh}
	got := <-second
	if got.err != nil || got.snap.Profile.FullName != "Fresh" {
		t.Fatalf("latest fetch not accepted: %+v", got)
	}

	firstReply <- profileReply{profile: &types.UserProfile{FullName: "Stale", Age: 1}}
	old := <-first
	if !errors.Is(old.err, ErrStaleResponse) {
		t.Fatalf("expected stale response, got %+v", old)
	}

	current, _ := resources.Current(ResourceProfile)
	if current.Profile.FullName != "Fresh" {
		t.Fatalf("stale response overwrote cache: %+v", current.Profile)
	}
}

func TestResetInvalidatesInFlightFetch(t *testing.T) {
	api := newGatedAPI()
	resources := NewResourceSync(api, nil, newHarness(t).logger)

	done := make(chan error, 1)
	go func() {
		_, err := resources.FetchOwned(context.Background(), ResourceProfile, "old-token")
		done <- err
	}()
	reply := <-api.calls

	resources.Reset()
	reply <- profileReply{profile: &types.UserProfile{FullName: "Old user"}}

	if err := <-done; !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("expected stale response after reset, got %v", err)
	}
	if _, ok := resources.Current(ResourceProfile); ok {
		t.Fatalf("cache must be empty after reset")
	}
}
