// Package apitest runs an in-process stand-in for the remote diagnosis
// service. Tests use it to exercise the client over real HTTP.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skinguardian/client/config"
	"github.com/skinguardian/client/types"
	"golang.org/x/crypto/bcrypt"
)

// Default route layout, matching config.LoadConfig defaults.
const (
	LoginPath     = "/user/login"
	SignUpPath    = "/users"
	ProfilePath   = "/users/profile"
	DiagnosisPath = "/diagnosis"
	HistoryPath   = "/users/diagnoses"
)

// Classifier picks the classification code for an uploaded image.
type Classifier func(localization types.Localization, image []byte) string

// Server is the fake remote service.
type Server struct {
	URL string

	srv    *httptest.Server
	secret []byte

	mu          sync.Mutex
	accounts    map[string]account
	fixedTokens map[string]string
	profiles    map[string]types.UserProfile
	diagnoses   map[string][]types.DiagnosisRecord
	hits        map[string]int
	failures    map[string][]int
	holds       map[string]*hold
	uploads     []Upload
	classify    Classifier
}

type hold struct {
	entered   chan struct{}
	release   chan struct{}
	enterOnce sync.Once
	once      sync.Once
}

// New starts a fake service and stops it when the test ends.
func New(tb testing.TB) *Server {
	tb.Helper()

	s := &Server{
		secret:      []byte("apitest-" + uuid.NewString()),
		accounts:    make(map[string]account),
		fixedTokens: make(map[string]string),
		profiles:    make(map[string]types.UserProfile),
		diagnoses:   make(map[string][]types.DiagnosisRecord),
		hits:        make(map[string]int),
		failures:    make(map[string][]int),
		holds:       make(map[string]*hold),
		classify: func(types.Localization, []byte) string {
			return "nv"
		},
	}

	router := chi.NewRouter()
	router.Use(s.track)
	router.Post(LoginPath, s.handleLogin)
	router.Post(SignUpPath, s.handleSignUp)
	router.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get(ProfilePath, s.handleGetProfile)
		r.Post(ProfilePath, s.handleCreateProfile)
		r.Post(DiagnosisPath, s.handleDiagnosis)
		r.Get(HistoryPath, s.handleHistory)
	})

	s.srv = httptest.NewServer(router)
	s.URL = s.srv.URL
	tb.Cleanup(s.Close)
	return s
}

// Close shuts the server down and releases any held requests.
func (s *Server) Close() {
	s.mu.Lock()
	for _, h := range s.holds {
		h.once.Do(func() { close(h.release) })
	}
	s.mu.Unlock()
	s.srv.Close()
}

// APIConfig returns a client configuration pointing at this server.
func (s *Server) APIConfig() config.APIConfig {
	return config.APIConfig{
		BaseURL:       s.URL,
		LoginPath:     LoginPath,
		SignUpPath:    SignUpPath,
		ProfilePath:   ProfilePath,
		DiagnosisPath: DiagnosisPath,
		HistoryPath:   HistoryPath,
	}
}

// AddUser registers an account and returns its user id.
func (s *Server) AddUser(username, password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = account{id: id, passwordHash: hashed}
	return id, nil
}

// SetToken makes login for username answer with the given token verbatim,
// and makes that token authenticate as the user.
func (s *Server) SetToken(username, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixedTokens[username] = token
}

// TokenFor issues a valid token for an existing user.
func (s *Server) TokenFor(username string) (string, error) {
	s.mu.Lock()
	acct, ok := s.accounts[username]
	s.mu.Unlock()
	if !ok {
		return "", errNotFound
	}
	return issueToken(acct.id, s.secret, defaultTokenTTL)
}

// SetProfile stores a profile for the user id.
func (s *Server) SetProfile(userID string, profile types.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = profile
}

// AddDiagnosis appends a record to the user's history.
func (s *Server) AddDiagnosis(userID string, record types.DiagnosisRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.DiagnosisID == "" {
		record.DiagnosisID = uuid.NewString()
	}
	record.UserID = userID
	s.diagnoses[userID] = append(s.diagnoses[userID], record)
}

// SetClassifier replaces the classification rule.
func (s *Server) SetClassifier(classify Classifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classify = classify
}

// FailNext makes the next request to method+path answer with status.
// Calls queue up.
func (s *Server) FailNext(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := routeKey(method, path)
	s.failures[key] = append(s.failures[key], status)
}

// Hold blocks requests to method+path until release is called. entered is
// closed once the first such request arrives.
func (s *Server) Hold(method, path string) (entered <-chan struct{}, release func()) {
	h := &hold{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s.mu.Lock()
	s.holds[routeKey(method, path)] = h
	s.mu.Unlock()
	return h.entered, func() {
		h.once.Do(func() { close(h.release) })
	}
}

// Hits returns how many requests reached method+path.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[routeKey(method, path)]
}

// TotalHits returns how many requests reached the server at all.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

// Uploads returns every diagnosis upload received so far.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Upload, len(s.uploads))
	copy(out, s.uploads)
	return out
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := routeKey(r.Method, r.URL.Path)

		s.mu.Lock()
		s.hits[key]++
		var status int
		if queued := s.failures[key]; len(queued) > 0 {
			status = queued[0]
			s.failures[key] = queued[1:]
		}
		h := s.holds[key]
		s.mu.Unlock()

		if h != nil {
			h.enterOnce.Do(func() { close(h.entered) })
			<-h.release
		}

		if status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) fixedToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixedTokens[username]
}

func (s *Server) fixedSubject(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for username, fixed := range s.fixedTokens {
		if fixed == token {
			if acct, ok := s.accounts[username]; ok {
				return acct.id, true
			}
		}
	}
	return "", false
}

func routeKey(method, path string) string {
	return method + " " + path
}
