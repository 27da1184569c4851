package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skinguardian/client/internal/events"
	"github.com/skinguardian/client/types"
)

// ErrStaleResponse is returned by a fetch that was overtaken by a newer
// fetch of the same resource. Its response is discarded.
var ErrStaleResponse = errors.New("stale response discarded")

// ResourceKind names a credential-scoped resource.
type ResourceKind string

const (
	ResourceProfile ResourceKind = "profile"
	ResourceHistory ResourceKind = "history"
)

// Status classifies a fetched resource.
type Status int

const (
	StatusEmpty Status = iota
	StatusPopulated
)

func (s Status) String() string {
	if s == StatusPopulated {
		return "populated"
	}
	return "empty"
}

// Snapshot is one accepted fetch of a resource.
type Snapshot struct {
	Kind   ResourceKind
	Status Status

	// Profile is set for a populated profile snapshot.
	Profile *types.UserProfile

	// Diagnoses holds the history in server order. Nil for profiles.
	Diagnoses []types.DiagnosisRecord

	// Seq is the request id the snapshot was fetched under.
	Seq       uint64
	FetchedAt time.Time
}

// Empty reports whether the resource has no content.
func (s Snapshot) Empty() bool {
	return s.Status == StatusEmpty
}

// ResourceSync fetches and caches the profile and the diagnosis history.
// Every fetch takes a new per-resource request id; only the response to
// the latest id is accepted.
type ResourceSync struct {
	api      ResourceAPI
	notifier Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	issued  map[ResourceKind]uint64
	current map[ResourceKind]Snapshot
}

func NewResourceSync(api ResourceAPI, notifier Notifier, logger *slog.Logger) *ResourceSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceSync{
		api:      api,
		notifier: notifierOrNop(notifier),
		logger:   logger,
		issued:   make(map[ResourceKind]uint64),
		current:  make(map[ResourceKind]Snapshot),
	}
}

// FetchOwned reads kind with credential and classifies it as empty or
// populated. A response overtaken by a later fetch returns
// ErrStaleResponse and leaves the cache alone.
func (r *ResourceSync) FetchOwned(ctx context.Context, kind ResourceKind, credential string) (Snapshot, error) {
	if kind != ResourceProfile && kind != ResourceHistory {
		return Snapshot{}, fmt.Errorf("unknown resource kind %q", kind)
	}
	if credential == "" {
		return Snapshot{}, ErrUnauthenticated
	}

	seq := r.begin(kind)
	snap, err := r.fetch(ctx, kind, credential)
	if err != nil {
		if !r.isLatest(kind, seq) {
			return Snapshot{}, ErrStaleResponse
		}
		r.logger.Warn("fetch failed", "resource", kind, "error", err)
		return Snapshot{}, err
	}
	snap.Seq = seq
	snap.FetchedAt = time.Now().UTC()
	return r.accept(snap)
}

// SubmitProfile creates the profile, then refetches it so the cache holds
// the stored copy rather than the submitted one. On failure nothing
// changes.
func (r *ResourceSync) SubmitProfile(ctx context.Context, profile types.UserProfile, credential string) (Snapshot, error) {
	if err := ValidateProfile(profile); err != nil {
		return Snapshot{}, err
	}
	if credential == "" {
		return Snapshot{}, ErrUnauthenticated
	}

	if err := r.api.CreateProfile(ctx, credential, profile); err != nil {
		r.logger.Warn("create profile failed", "error", err)
		r.notifier.Notify(ctx, events.Event{Type: events.TypeProfileFailed, Error: err.Error()})
		return Snapshot{}, err
	}
	r.notifier.Notify(ctx, events.Event{Type: events.TypeProfileCreated})

	return r.FetchOwned(ctx, ResourceProfile, credential)
}

// Current returns the last accepted snapshot of kind.
func (r *ResourceSync) Current(kind ResourceKind) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.current[kind]
	return snap, ok
}

// Reset drops every cached snapshot and invalidates fetches in flight.
// It runs whenever the credential changes.
func (r *ResourceSync) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kind := range []ResourceKind{ResourceProfile, ResourceHistory} {
		r.issued[kind]++
	}
	r.current = make(map[ResourceKind]Snapshot)
}

func (r *ResourceSync) begin(kind ResourceKind) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued[kind]++
	return r.issued[kind]
}

func (r *ResourceSync) isLatest(kind ResourceKind, seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.issued[kind] == seq
}

func (r *ResourceSync) accept(snap Snapshot) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.issued[snap.Kind] != snap.Seq {
		r.logger.Debug("discard stale response", "resource", snap.Kind, "seq", snap.Seq, "latest", r.issued[snap.Kind])
		return Snapshot{}, ErrStaleResponse
	}
	r.current[snap.Kind] = snap
	return snap, nil
}

func (r *ResourceSync) fetch(ctx context.Context, kind ResourceKind, credential string) (Snapshot, error) {
	snap := Snapshot{Kind: kind}
	switch kind {
	case ResourceProfile:
		profile, err := r.api.GetProfile(ctx, credential)
		if err != nil {
			return Snapshot{}, err
		}
		if profile != nil && !profile.IsZero() {
			snap.Status = StatusPopulated
			snap.Profile = profile
		}
	case ResourceHistory:
		records, err := r.api.ListDiagnoses(ctx, credential)
		if err != nil {
			return Snapshot{}, err
		}
		if records == nil {
			records = []types.DiagnosisRecord{}
		}
		snap.Diagnoses = records
		if len(records) > 0 {
			snap.Status = StatusPopulated
		}
	}
	return snap, nil
}
