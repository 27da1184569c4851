package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skinguardian/client/internal/apiclient"
	"github.com/skinguardian/client/internal/gate"
	"github.com/skinguardian/client/internal/report"
	"github.com/skinguardian/client/internal/services"
	"github.com/skinguardian/client/internal/storage"
	"github.com/skinguardian/client/types"
)

const (
	formFieldUsername     = "username"
	formFieldPassword     = "password"
	formFieldFullName     = "fullname"
	formFieldEmail        = "email"
	formFieldPhone        = "phone"
	formFieldAge          = "age"
	formFieldSex          = "sex"
	formFieldLocalization = "localization"
	formFieldImage        = "image"
)

var failureNotices = map[gate.Page]string{
	gate.PageLogin:        "Login failed",
	gate.PageSignUp:       "Sign up failed",
	gate.PageProfile:      "Profile creation failed",
	gate.PageNewDiagnosis: "Diagnosis failed",
}

// evaluate runs the gate for page and performs its redirect, if any.
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request, page gate.Page) (gate.View, bool) {
	view := s.gate.Evaluate(r.Context(), page)
	if view.Redirected() {
		s.redirect(w, r, view.Redirect)
		return view, false
	}
	return view, true
}

func (s *Server) handleShowCredentials(page gate.Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.evaluate(w, r, page); !ok {
			return
		}
		s.render(w, http.StatusOK, s.newPageData(r, page))
	}
}

func (s *Server) handleCredentials(page gate.Page) http.HandlerFunc {
	action := s.auth.Login
	if page == gate.PageSignUp {
		action = s.auth.SignUp
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		creds := types.Credentials{
			Username: strings.TrimSpace(r.PostFormValue(formFieldUsername)),
			Password: r.PostFormValue(formFieldPassword),
		}

		if err := action(r.Context(), creds); err != nil {
			data := s.newPageData(r, page)
			data.Form[formFieldUsername] = creds.Username
			s.renderFailure(w, data, err)
			return
		}
		s.redirect(w, r, s.gate.Router().Route(gate.EventAuthenticated))
	}
}

func (s *Server) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	view, ok := s.evaluate(w, r, gate.PageProfile)
	if !ok {
		return
	}
	data := s.newPageData(r, gate.PageProfile)
	if view.State == gate.StateAuthenticatedPopulated {
		data.Profile = view.Snapshot.Profile
	}
	s.render(w, s.loadStatus(data, view), data)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	data := s.newPageData(r, gate.PageProfile)
	for _, field := range []string{formFieldFullName, formFieldEmail, formFieldPhone, formFieldAge, formFieldSex} {
		data.Form[field] = strings.TrimSpace(r.PostFormValue(field))
	}

	age, err := strconv.Atoi(data.Form[formFieldAge])
	if err != nil {
		s.renderFailure(w, data, &services.ValidationError{Field: formFieldAge, Message: "Age must be a whole number of years."})
		return
	}
	profile := types.UserProfile{
		FullName: data.Form[formFieldFullName],
		Email:    data.Form[formFieldEmail],
		Phone:    data.Form[formFieldPhone],
		Age:      age,
		Sex:      data.Form[formFieldSex],
	}

	token, _ := s.session.Get()
	if _, err := s.resources.SubmitProfile(r.Context(), profile, token); err != nil {
		s.renderFailure(w, data, err)
		return
	}
	s.gate.ActionCompleted(gate.PageProfile)
	s.redirect(w, r, s.gate.Router().Route(gate.EventProfileCreated))
}

func (s *Server) handleDiagnosisPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.evaluate(w, r, gate.PageNewDiagnosis); !ok {
		return
	}
	s.render(w, http.StatusOK, s.diagnosisPageData(r))
}

func (s *Server) diagnosisPageData(r *http.Request) *pageData {
	data := s.newPageData(r, gate.PageNewDiagnosis)
	data.Localizations = types.Localizations
	data.InFlight = s.diagnosis.InFlight()
	if last, ok := s.diagnosis.Last(); ok {
		data.Result = &last
	}
	return data
}

func (s *Server) handleSubmitDiagnosis(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.evaluate(w, r, gate.PageNewDiagnosis); !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		data := s.diagnosisPageData(r)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			data.FieldErrors[formFieldImage] = fmt.Sprintf("The image must be smaller than %d MB.", s.maxUploadBytes>>20)
			s.render(w, http.StatusRequestEntityTooLarge, data)
			return
		}
		data.Notice = failureNotices[gate.PageNewDiagnosis]
		s.render(w, http.StatusBadRequest, data)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	sub := types.DiagnosisSubmission{
		Localization: types.Localization(r.FormValue(formFieldLocalization)),
	}
	for _, header := range r.MultipartForm.File[formFieldImage] {
		image, err := readImage(header, s.maxUploadBytes)
		if err != nil {
			s.internalError(w, err)
			return
		}
		sub.Images = append(sub.Images, image)
	}

	if _, err := s.diagnosis.Submit(r.Context(), sub); err != nil {
		data := s.diagnosisPageData(r)
		data.Form[formFieldLocalization] = string(sub.Localization)
		s.renderFailure(w, data, err)
		return
	}
	s.gate.ActionCompleted(gate.PageNewDiagnosis)
	s.redirect(w, r, s.gate.Router().Route(gate.EventDiagnosisCompleted))
}

func readImage(header *multipart.FileHeader, limit int64) (types.ImageFile, error) {
	file, err := header.Open()
	if err != nil {
		return types.ImageFile{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit))
	if err != nil {
		return types.ImageFile{}, fmt.Errorf("read upload: %w", err)
	}
	return types.ImageFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (s *Server) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	view, ok := s.evaluate(w, r, gate.PageHistory)
	if !ok {
		return
	}
	data := s.newPageData(r, gate.PageHistory)
	if view.State == gate.StateAuthenticatedPopulated {
		data.Diagnoses = s.diagnosisCards(view.Snapshot.Diagnoses)
	}
	s.render(w, s.loadStatus(data, view), data)
}

func (s *Server) diagnosisCards(records []types.DiagnosisRecord) []diagnosisCard {
	cards := make([]diagnosisCard, 0, len(records))
	for _, record := range records {
		card := diagnosisCard{Record: record, ImageSrc: s.imageSource(record)}
		card.Advisory, card.HasAdvisory = s.diagnosis.Advisory(record.DiagnosisResult)
		cards = append(cards, card)
	}
	return cards
}

// imageSource returns the src for a record's image: the URL itself for
// http(s) references, the local proxy for stored objects, or nothing.
func (s *Server) imageSource(record types.DiagnosisRecord) string {
	ref, err := storage.ParseReference(record.ImageURL)
	if err != nil {
		return ""
	}
	if ref.Direct() {
		return ref.URL
	}
	if s.images != nil && s.images.Supports(ref) && record.DiagnosisID != "" {
		return "/images/" + url.PathEscape(record.DiagnosisID)
	}
	return ""
}

func (s *Server) handleHistoryReport(w http.ResponseWriter, r *http.Request) {
	view := s.gate.Evaluate(r.Context(), gate.PageHistory)
	if view.State == gate.StatePublic && view.Err == nil {
		s.redirect(w, r, s.gate.Router().Route(gate.EventCredentialMissing))
		return
	}
	if view.Err != nil {
		http.Error(w, "could not load history", http.StatusBadGateway)
		return
	}
	if s.reports == nil {
		http.NotFound(w, r)
		return
	}

	h := report.History{Diagnoses: view.Snapshot.Diagnoses, GeneratedAt: time.Now()}
	if profile, ok := s.resources.Current(services.ResourceProfile); ok && profile.Profile != nil {
		h.Profile = profile.Profile
	}

	var buf bytes.Buffer
	if err := s.reports.Write(&buf, h); err != nil {
		if errors.Is(err, report.ErrFontUnavailable) {
			s.logger.Warn("report unavailable", "error", err)
			http.Error(w, "PDF reports need a TrueType font; set REPORT_FONT_PATH", http.StatusServiceUnavailable)
			return
		}
		s.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="skin-exams.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	token, _ := s.session.Get()
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := chi.URLParam(r, "diagnosisId")
	record, ok := s.findRecord(r, id, token)
	if !ok {
		http.NotFound(w, r)
		return
	}

	ref, err := storage.ParseReference(record.ImageURL)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if ref.Direct() {
		http.Redirect(w, r, ref.URL, http.StatusFound)
		return
	}
	if s.images == nil || !s.images.Supports(ref) {
		http.NotFound(w, r)
		return
	}

	obj, err := s.images.Open(r.Context(), ref)
	if err != nil {
		s.logger.Warn("open image", "diagnosis_id", id, "error", err)
		http.Error(w, "image unavailable", http.StatusBadGateway)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		s.logger.Warn("stream image", "diagnosis_id", id, "error", err)
	}
}

// findRecord looks id up in the cached history, refetching once on a miss.
func (s *Server) findRecord(r *http.Request, id, token string) (types.DiagnosisRecord, bool) {
	lookup := func(snap services.Snapshot) (types.DiagnosisRecord, bool) {
		for _, record := range snap.Diagnoses {
			if record.DiagnosisID == id {
				return record, true
			}
		}
		return types.DiagnosisRecord{}, false
	}

	if snap, ok := s.resources.Current(services.ResourceHistory); ok {
		if record, found := lookup(snap); found {
			return record, true
		}
	}
	snap, err := s.resources.FetchOwned(r.Context(), services.ResourceHistory, token)
	if err != nil {
		return types.DiagnosisRecord{}, false
	}
	return lookup(snap)
}

// loadStatus reports a failed resource load on the page.
func (s *Server) loadStatus(data *pageData, view gate.View) int {
	if view.Err == nil {
		return http.StatusOK
	}
	data.Notice = "Could not load your data. Please try again."
	return http.StatusBadGateway
}

// renderFailure shows a failed action on its page. Validation errors are
// shown next to their field; everything else becomes the page's notice.
func (s *Server) renderFailure(w http.ResponseWriter, data *pageData, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		data.FieldErrors[verr.Field] = verr.Message
		s.render(w, http.StatusUnprocessableEntity, data)
	case errors.Is(err, services.ErrSubmissionInFlight):
		data.Notice = "A diagnosis is already in progress."
		s.render(w, http.StatusConflict, data)
	case errors.Is(err, services.ErrUnauthenticated):
		data.Notice = "Please log in first."
		s.render(w, http.StatusUnauthorized, data)
	case apiclient.IsUnauthorized(err):
		data.Notice = failureNotices[data.Page]
		s.render(w, http.StatusUnauthorized, data)
	default:
		data.Notice = failureNotices[data.Page]
		s.render(w, http.StatusBadGateway, data)
	}
}
