package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/skinguardian/client/config"
	"github.com/skinguardian/client/types"
)

const (
	maxTextBody  = 1 << 20
	maxJSONBody  = 16 << 20
	maxErrorBody = 4 << 10
)

// Client talks to the remote diagnosis service.
type Client struct {
	baseURL    string
	paths      config.APIConfig
	httpClient *http.Client
}

// New constructs a Client from config.
func New(cfg config.APIConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		paths:   cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds types.Credentials) (string, error) {
	return c.authenticate(ctx, c.paths.LoginPath, creds)
}

// SignUp registers a new account and returns its bearer token.
func (c *Client) SignUp(ctx context.Context, creds types.Credentials) (string, error) {
	return c.authenticate(ctx, c.paths.SignUpPath, creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds types.Credentials) (string, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, path, "", bytes.NewReader(payload), "application/json; charset=UTF-8")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	token, err := readText(resp.Body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: empty token", ErrMalformedResponse)
	}
	return token, nil
}

// GetProfile returns the caller's profile, or nil when none exists yet.
// An empty body, a JSON null, 204 and 404 all mean "no profile".
func (c *Client) GetProfile(ctx context.Context, credential string) (*types.UserProfile, error) {
	resp, err := c.do(ctx, http.MethodGet, c.paths.ProfilePath, credential, nil, "")
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	data, err := readAll(resp.Body, maxJSONBody)
	if err != nil {
		return nil, err
	}
	if isEmptyJSON(data) {
		return nil, nil
	}

	var profile types.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", ErrMalformedResponse, err)
	}
	if profile.IsZero() {
		return nil, nil
	}
	return &profile, nil
}

// CreateProfile stores the caller's profile.
func (c *Client) CreateProfile(ctx context.Context, credential string, profile types.UserProfile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, c.paths.ProfilePath, credential, bytes.NewReader(payload), "application/json; charset=UTF-8")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxTextBody))
	return nil
}

// SubmitDiagnosis uploads one lesion image with its metadata and returns
// the classification code.
func (c *Client) SubmitDiagnosis(ctx context.Context, credential string, localization types.Localization, image types.ImageFile) (string, error) {
	body, contentType, err := EncodeDiagnosisBody(localization, image)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, c.paths.DiagnosisPath, credential, body, contentType)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, err := readText(resp.Body)
	if err != nil {
		return "", err
	}
	code := strings.TrimSpace(text)
	if code == "" {
		return "", fmt.Errorf("%w: empty classification", ErrMalformedResponse)
	}
	return code, nil
}

// ListDiagnoses returns the caller's diagnosis history in server order.
func (c *Client) ListDiagnoses(ctx context.Context, credential string) ([]types.DiagnosisRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, c.paths.HistoryPath, credential, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readAll(resp.Body, maxJSONBody)
	if err != nil {
		return nil, err
	}
	records := []types.DiagnosisRecord{}
	if isEmptyJSON(data) {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: decode diagnoses: %v", ErrMalformedResponse, err)
	}
	if records == nil {
		records = []types.DiagnosisRecord{}
	}
	return records, nil
}

func (c *Client) do(ctx context.Context, method, path, credential string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}
	return resp, nil
}

// readText returns a plain-text body as sent.
func readText(r io.Reader) (string, error) {
	data, err := readAll(r, maxTextBody)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readAll(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: response too large", ErrMalformedResponse)
	}
	return data, nil
}

func isEmptyJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
