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

func jpeg(name string) types.ImageFile {
	return types.ImageFile{Filename: name, ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}}
}

func TestSubmitResolvesAdvisory(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.api.SetClassifier(func(types.Localization, []byte) string { return "mel" })
	workflow := NewDiagnosisService(h.client, h.session, DefaultAdvisories, h.notifier, h.logger)

	result, err := workflow.Submit(context.Background(), types.DiagnosisSubmission{
		Localization: types.LocalizationFace,
		Images:       []types.ImageFile{jpeg("mole.jpg")},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Code != "mel" || !result.HasAdvisory || result.Advisory != DefaultAdvisories["mel"] {
		t.Fatalf("unexpected result: %+v", result)
	}

	uploads := h.api.Uploads()
	if len(uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(uploads))
	}
	up := uploads[0]
	if up.ImageContentType != "image/jpeg" || up.ImageFilename != "mole.jpg" {
		t.Fatalf("image part altered: %+v", up)
	}
	if up.Metadata.Localization != types.LocalizationFace {
		t.Fatalf("metadata carries %q", up.Metadata.Localization)
	}

	last, ok := workflow.Last()
	if !ok || last.Code != "mel" {
		t.Fatalf("last result not recorded: %+v", last)
	}
	if got := h.notifier.kinds(); len(got) != 1 || got[0] != events.TypeDiagnosisComplete {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestSubmitEveryAdvisoryCode(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	workflow := NewDiagnosisService(h.client, h.session, DefaultAdvisories, nil, h.logger)

	for code, text := range DefaultAdvisories {
		h.api.SetClassifier(func(types.Localization, []byte) string { return code })
		result, err := workflow.Submit(context.Background(), types.DiagnosisSubmission{
			Localization: types.LocalizationBack,
			Images:       []types.ImageFile{jpeg("x.jpg")},
		})
		if err != nil {
			t.Fatalf("%s: submit: %v", code, err)
		}
		if result.Advisory != text {
			t.Fatalf("%s: advisory mismatch", code)
		}
	}
}

func TestSubmitUnknownCodeHasNoAdvisory(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.api.SetClassifier(func(types.Localization, []byte) string { return "zzz" })
	workflow := NewDiagnosisService(h.client, h.session, DefaultAdvisories, nil, h.logger)

	result, err := workflow.Submit(context.Background(), types.DiagnosisSubmission{
		Localization: types.LocalizationHand,
		Images:       []types.ImageFile{jpeg("x.jpg")},
	})
	if err != nil {
		t.Fatalf("unknown code must not fail: %v", err)
	}
	if result.Code != "zzz" || result.HasAdvisory || result.Advisory != "" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSubmitValidationSkipsNetwork(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	workflow := NewDiagnosisService(h.client, h.session, DefaultAdvisories, h.notifier, h.logger)

	cases := []struct {
		name  string
		sub   types.DiagnosisSubmission
		field string
	}{
		{"empty localization", types.DiagnosisSubmission{Images: []types.ImageFile{jpeg("a.jpg")}}, "localization"},
		{"unknown localization", types.DiagnosisSubmission{Localization: "elbow", Images: []types.ImageFile{jpeg("a.jpg")}}, "localization"},
		{"case mismatch", types.DiagnosisSubmission{Localization: "Face", Images: []types.ImageFile{jpeg("a.jpg")}}, "localization"},
		{"no image", types.DiagnosisSubmission{Localization: types.LocalizationFace}, "image"},
		{"two images", types.DiagnosisSubmission{Localization: types.LocalizationFace, Images: []types.ImageFile{jpeg("a.jpg"), jpeg("b.jpg")}}, "image"},
		{"empty image", types.DiagnosisSubmission{Localization: types.LocalizationFace, Images: []types.ImageFile{{Filename: "a.jpg"}}}, "image"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := workflow.Submit(context.Background(), tc.sub)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
		})
	}
	if hits := h.api.Hits(http.MethodPost, apitest.DiagnosisPath); hits != 0 {
		t.Fatalf("validation failures reached the network %d times", hits)
	}
	if _, ok := workflow.Last(); ok {
		t.Fatalf("no result expected")
	}
}

func TestSubmitWithoutCredential(t *testing.T) {
	h := newHarness(t)
	workflow := NewDiagnosisService(h.client, h.session, DefaultAdvisories, nil, h.logger)

	_, err := workflow.Submit(context.Background(), types.DiagnosisSubmission{
		Localization: types.LocalizationFace,
		Images:       []types.ImageFile{jpeg("a.jpg")},
	})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if h.api.TotalHits() != 0 {
		t.Fatalf("request made without credential")
	}
}

func TestSubmitFailureKeepsLastResult(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	workflow := NewDiagnosisService(h.client, h.session, DefaultAdvisories, h.notifier, h.logger)
	sub := types.DiagnosisSubmission{Localization: types.LocalizationChest, Images: []types.ImageFile{jpeg("a.jpg")}}

	first, err := workflow.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	h.api.FailNext(http.MethodPost, apitest.DiagnosisPath, http.StatusInternalServerError)
	if _, err := workflow.Submit(context.Background(), sub); apiclient.StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500 status error, got %v", err)
	}

	last, ok := workflow.Last()
	if !ok || last != first {
		t.Fatalf("last result changed after failure: %+v", last)
	}
	got := h.notifier.kinds()
	if len(got) != 2 || got[1] != events.TypeDiagnosisFailed {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestSubmitIsSerialized(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	workflow := NewDiagnosisService(h.client, h.session, DefaultAdvisories, nil, h.logger)
	sub := types.DiagnosisSubmission{Localization: types.LocalizationNeck, Images: []types.ImageFile{jpeg("a.jpg")}}

	entered, release := h.api.Hold(http.MethodPost, apitest.DiagnosisPath)
	done := make(chan error, 1)
	go func() {
		_, err := workflow.Submit(context.Background(), sub)
		done <- err
	}()
	<-entered

	if !workflow.InFlight() {
		t.Fatalf("expected a submission in flight")
	}
	if _, err := workflow.Submit(context.Background(), sub); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if workflow.InFlight() {
		t.Fatalf("in-flight flag not cleared")
	}
	if hits := h.api.Hits(http.MethodPost, apitest.DiagnosisPath); hits != 1 {
		t.Fatalf("expected one request, got %d", hits)
	}
}
