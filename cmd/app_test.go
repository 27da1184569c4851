package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skinguardian/client/internal/apitest"
	"github.com/skinguardian/client/internal/services"
	"github.com/spf13/cobra"
)

func TestReadImageFileContentType(t *testing.T) {
	dir := t.TempDir()
	jpeg := filepath.Join(dir, "mole.jpg")
	if err := os.WriteFile(jpeg, []byte{0xff, 0xd8, 0xff, 0xdb}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	image, err := readImageFile(jpeg)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if image.Filename != "mole.jpg" || image.ContentType != "image/jpeg" || len(image.Data) != 4 {
		t.Fatalf("unexpected image %+v", image)
	}

	sniffed := filepath.Join(dir, "capture")
	if err := os.WriteFile(sniffed, []byte("\x89PNG\r\n\x1a\n0000"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	image, err = readImageFile(sniffed)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if image.ContentType != "image/png" {
		t.Fatalf("expected sniffed image/png, got %q", image.ContentType)
	}

	if _, err := readImageFile(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestCredentialsFromFlags(t *testing.T) {
	t.Setenv("SKINGUARD_USERNAME", "env-user")
	t.Setenv("SKINGUARD_PASSWORD", "env-pass")

	cmd := &cobra.Command{Use: "test"}
	addCredentialFlags(cmd)
	if err := cmd.Flags().Set("username", " alice "); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	creds, err := credentialsFromFlags(cmd)
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.Username != "alice" || creds.Password != "env-pass" {
		t.Fatalf("unexpected credentials %+v", creds)
	}

	t.Setenv("SKINGUARD_PASSWORD", "")
	if _, err := credentialsFromFlags(cmd); err == nil {
		t.Fatalf("expected error without a password")
	}
}

func TestLoadConfigAPIURLOverride(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://from-env:1")
	apiURL = "http://flag:2/"
	t.Cleanup(func() { apiURL = "" })

	if got := loadConfig().API.BaseURL; got != "http://flag:2" {
		t.Fatalf("expected flag override, got %q", got)
	}
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("EVENTS_BACKEND", "none")
	t.Cleanup(func() { apiURL = "" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDiagnoseInvalidSubmissionMakesNoRequest(t *testing.T) {
	api := apitest.New(t)
	if _, err := api.AddUser("alice", "secret1"); err != nil {
		t.Fatalf("add user: %v", err)
	}

	_, err := runRoot(t, "diagnose",
		"--api-url", api.APIConfig().BaseURL,
		"--username", "alice", "--password", "secret1",
		"--localization", "", "--image", "")
	var verr *services.ValidationError
	if !errors.As(err, &verr) || verr.Field != "localization" {
		t.Fatalf("expected localization validation error, got %v", err)
	}
	if api.TotalHits() != 0 {
		t.Fatalf("invalid submission made %d requests", api.TotalHits())
	}
}

func TestDiagnosePrintsResult(t *testing.T) {
	api := apitest.New(t)
	if _, err := api.AddUser("alice", "secret1"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	image := filepath.Join(t.TempDir(), "mole.jpg")
	if err := os.WriteFile(image, []byte{0xff, 0xd8, 0xff, 0xdb}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := runRoot(t, "diagnose",
		"--api-url", api.APIConfig().BaseURL,
		"--username", "alice", "--password", "secret1",
		"--localization", "back", "--image", image)
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	if !strings.Contains(out, "result: nv") {
		t.Fatalf("unexpected output %q", out)
	}
	if api.Hits(http.MethodPost, apitest.DiagnosisPath) != 1 {
		t.Fatalf("expected one diagnosis request")
	}
}
