package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skinguardian/client/internal/events"
	"github.com/skinguardian/client/internal/session"
	"github.com/skinguardian/client/types"
)

// ErrSubmissionInFlight is returned when a diagnosis is submitted while
// another one has not resolved yet.
var ErrSubmissionInFlight = errors.New("a diagnosis submission is already in flight")

// Result is a resolved diagnosis ready for display.
type Result struct {
	// Code is the classification code returned by the remote service.
	Code string

	// Localization is the body site that was submitted.
	Localization types.Localization

	// Advisory is the Markdown guidance for Code. Empty when the code is
	// not in the advisory table.
	Advisory string

	// HasAdvisory reports whether Code was found in the advisory table.
	HasAdvisory bool

	ReceivedAt time.Time
}

// DiagnosisService runs the diagnosis submission workflow. At most one
// submission is in flight at a time.
type DiagnosisService struct {
	api        DiagnosisAPI
	session    *session.Store
	advisories AdvisoryTable
	notifier   Notifier
	logger     *slog.Logger

	inFlight atomic.Bool

	mu   sync.RWMutex
	last *Result
}

func NewDiagnosisService(api DiagnosisAPI, store *session.Store, advisories AdvisoryTable, notifier Notifier, logger *slog.Logger) *DiagnosisService {
	if advisories == nil {
		advisories = DefaultAdvisories
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DiagnosisService{
		api:        api,
		session:    store,
		advisories: advisories,
		notifier:   notifierOrNop(notifier),
		logger:     logger,
	}
}

// Validate checks a submission without sending it.
func (s *DiagnosisService) Validate(sub types.DiagnosisSubmission) error {
	return ValidateSubmission(sub)
}

// Submit validates sub, sends it with the session credential and resolves
// the returned code against the advisory table. Every call produces exactly
// one outcome. On error the last result is left unchanged.
func (s *DiagnosisService) Submit(ctx context.Context, sub types.DiagnosisSubmission) (Result, error) {
	if err := ValidateSubmission(sub); err != nil {
		s.fail(ctx, sub.Localization, err)
		return Result{}, err
	}

	credential, ok := s.session.Get()
	if !ok || credential == "" {
		s.fail(ctx, sub.Localization, ErrUnauthenticated)
		return Result{}, ErrUnauthenticated
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrSubmissionInFlight
	}
	defer s.inFlight.Store(false)

	code, err := s.api.SubmitDiagnosis(ctx, credential, sub.Localization, sub.Images[0])
	if err != nil {
		s.fail(ctx, sub.Localization, err)
		return Result{}, err
	}

	advisory, found := s.advisories.Lookup(code)
	result := Result{
		Code:         code,
		Localization: sub.Localization,
		Advisory:     advisory,
		HasAdvisory:  found,
		ReceivedAt:   time.Now().UTC(),
	}
	if !found {
		s.logger.Warn("no advisory for classification code", "code", code)
	}

	s.mu.Lock()
	s.last = &result
	s.mu.Unlock()

	s.logger.Info("diagnosis completed", "localization", sub.Localization, "code", code)
	s.notifier.Notify(ctx, events.Event{
		Type:         events.TypeDiagnosisComplete,
		Localization: string(sub.Localization),
		Code:         code,
	})
	return result, nil
}

// InFlight reports whether a submission is waiting on the remote service.
func (s *DiagnosisService) InFlight() bool {
	return s.inFlight.Load()
}

// Last returns the most recent successful result.
func (s *DiagnosisService) Last() (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Result{}, false
	}
	return *s.last, true
}

// Advisory looks up the advisory text for code.
func (s *DiagnosisService) Advisory(code string) (string, bool) {
	return s.advisories.Lookup(code)
}

func (s *DiagnosisService) fail(ctx context.Context, localization types.Localization, err error) {
	s.logger.Warn("diagnosis failed", "localization", localization, "error", err)
	s.notifier.Notify(ctx, events.Event{
		Type:         events.TypeDiagnosisFailed,
		Localization: string(localization),
		Error:        err.Error(),
	})
}
