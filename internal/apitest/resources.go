package apitest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/skinguardian/client/types"
)

const (
	maxImageBytes    = 32 << 20
	maxMetadataBytes = 64 << 10
	imageBucket      = "skinguardian-images"
)

var errNotFound = errors.New("not found")

// Upload records one diagnosis request as the service saw it.
type Upload struct {
	// Parts lists the multipart field names in arrival order.
	Parts []string

	ImageFilename       string
	ImageContentType    string
	Image               []byte
	MetadataContentType string
	RawMetadata         []byte
	Metadata            types.DiagnosisMetadata
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s.mu.Lock()
	profile, ok := s.profiles[userID]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var profile types.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[userID]; exists {
		writeError(w, http.StatusConflict, "profile already exists")
		return
	}
	s.profiles[userID] = profile
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s.mu.Lock()
	records := append([]types.DiagnosisRecord{}, s.diagnoses[userID]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleDiagnosis(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	upload, err := parseDiagnosisUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, upload)

	code := s.classify(upload.Metadata.Localization, upload.Image)
	profile := s.profiles[userID]
	id := uuid.NewString()
	s.diagnoses[userID] = append(s.diagnoses[userID], types.DiagnosisRecord{
		DiagnosisID:     id,
		UserID:          userID,
		Sex:             profile.Sex,
		Age:             profile.Age,
		Localization:    upload.Metadata.Localization,
		ImageURL:        fmt.Sprintf("s3://%s/%s", imageBucket, id),
		DiagnosisResult: code,
	})
	writeText(w, http.StatusOK, code)
}

// parseDiagnosisUpload reads the multipart body part by part so the field
// order and the per-part content types are observable.
func parseDiagnosisUpload(r *http.Request) (Upload, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return Upload{}, errors.New("invalid multipart form")
	}

	var upload Upload
	images, metadatas := 0, 0
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Upload{}, errors.New("invalid multipart form")
		}

		name := part.FormName()
		upload.Parts = append(upload.Parts, name)
		switch name {
		case "image":
			images++
			data, err := readFileLimited(part, maxImageBytes)
			if err != nil {
				return Upload{}, err
			}
			upload.Image = data
			upload.ImageFilename = part.FileName()
			upload.ImageContentType = part.Header.Get("Content-Type")
		case "metadata":
			metadatas++
			data, err := readFileLimited(part, maxMetadataBytes)
			if err != nil {
				return Upload{}, err
			}
			upload.RawMetadata = data
			upload.MetadataContentType = part.Header.Get("Content-Type")
		}
		_ = part.Close()
	}

	if images != 1 {
		return Upload{}, errors.New("exactly one image is required")
	}
	if metadatas != 1 {
		return Upload{}, errors.New("exactly one metadata part is required")
	}
	mediaType, _, err := mime.ParseMediaType(upload.MetadataContentType)
	if err != nil || mediaType != "application/json" {
		return Upload{}, errors.New("metadata must be application/json")
	}
	if err := json.Unmarshal(upload.RawMetadata, &upload.Metadata); err != nil {
		return Upload{}, errors.New("invalid metadata")
	}
	if strings.TrimSpace(string(upload.Metadata.Localization)) == "" {
		return Upload{}, errors.New("localization is required")
	}
	return upload, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}
