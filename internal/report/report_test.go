package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skinguardian/client/types"
)

type tableAdvisor map[string]string

func (t tableAdvisor) Lookup(code string) (string, bool) {
	s, ok := t[code]
	return s, ok
}

func fontOrSkip(t *testing.T) string {
	t.Helper()
	if path := os.Getenv("REPORT_FONT_PATH"); path != "" {
		return path
	}
	for _, path := range DefaultFontPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Skip("no TrueType font installed")
	return ""
}

func TestWriteHistory(t *testing.T) {
	font := fontOrSkip(t)
	gen := NewGenerator(font, tableAdvisor{"mel": "**Melanoma.** See a dermatologist."})

	records := make([]types.DiagnosisRecord, 0, 60)
	for i := 0; i < 60; i++ {
		records = append(records, types.DiagnosisRecord{
			DiagnosisID:     "d",
			Localization:    types.LocalizationFace,
			DiagnosisResult: "mel",
		})
	}

	var buf bytes.Buffer
	err := gen.Write(&buf, History{
		Profile:     &types.UserProfile{FullName: "Alice", Email: "a@example.com", Age: 30},
		Diagnoses:   records,
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestWriteEmptyHistory(t *testing.T) {
	font := fontOrSkip(t)
	var buf bytes.Buffer
	if err := NewGenerator(font, nil).Write(&buf, History{Username: "alice"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("empty output")
	}
}

func TestMissingFont(t *testing.T) {
	gen := &Generator{fontPaths: []string{filepath.Join(t.TempDir(), "missing.ttf")}}
	err := gen.Write(&bytes.Buffer{}, History{})
	if !errors.Is(err, ErrFontUnavailable) {
		t.Fatalf("expected ErrFontUnavailable, got %v", err)
	}
}

func TestPlainText(t *testing.T) {
	if got := plainText("**Melanoma.** See `now`"); got != "Melanoma. See now" {
		t.Fatalf("unexpected %q", got)
	}
}
