// Package gate decides what each page renders from the session credential
// and the state of the page's resource.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/skinguardian/client/internal/services"
	"github.com/skinguardian/client/internal/session"
)

// View is the outcome of evaluating a page.
type View struct {
	Page  Page
	State State

	// Redirect, when set, is the page to navigate to instead of rendering.
	Redirect Page

	// Snapshot holds the fetched resource for profile and history pages.
	Snapshot services.Snapshot

	// Err is the fetch failure, if the evaluation could not load data.
	Err error
}

// Redirected reports whether the view is a navigation.
func (v View) Redirected() bool {
	return v.Redirect != ""
}

type pageEntry struct {
	eval    sync.Mutex
	machine *Machine
}

// Gate composes the session, the resource sync and the router per page.
type Gate struct {
	session   *session.Store
	resources *services.ResourceSync
	router    *Router
	logger    *slog.Logger

	mu    sync.Mutex
	pages map[Page]*pageEntry
}

// New builds a gate and subscribes it to credential changes.
func New(store *session.Store, resources *services.ResourceSync, router *Router, logger *slog.Logger) *Gate {
	if router == nil {
		router = NewRouter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		session:   store,
		resources: resources,
		router:    router,
		logger:    logger,
		pages:     make(map[Page]*pageEntry),
	}
	for page := range pagePaths {
		g.pages[page] = &pageEntry{machine: NewMachine()}
	}
	store.Subscribe(g.credentialChanged)
	return g
}

// Router returns the navigation rules the gate uses.
func (g *Gate) Router() *Router {
	return g.router
}

// State returns the current state of page.
func (g *Gate) State(page Page) State {
	return g.entry(page).machine.State()
}

// Evaluate decides what page renders now. Profile and history pages fetch
// their resource before any authenticated view is returned; without a
// credential they make no request at all. Evaluations of one page are
// serialized.
func (g *Gate) Evaluate(ctx context.Context, page Page) View {
	entry := g.entry(page)
	entry.eval.Lock()
	defer entry.eval.Unlock()

	m := entry.machine
	token, _ := g.session.Get()
	present := token != ""

	switch page {
	case PageLogin, PageSignUp:
		if !present {
			m.Reset()
			return View{Page: page, State: StatePublic}
		}
		return View{Page: page, State: m.State(), Redirect: g.router.Route(EventAuthenticated)}

	case PageNewDiagnosis:
		if !present {
			m.Reset()
			return View{Page: page, State: StatePublic, Redirect: g.router.Route(EventCredentialMissing)}
		}
		g.enterLoading(m)
		g.must(page, m.Resolve(true))
		return View{Page: page, State: m.State()}

	case PageProfile, PageHistory:
		if !present {
			m.Reset()
			return View{Page: page, State: StatePublic}
		}
		return g.load(ctx, page, m, token)
	}

	return View{Page: page, State: StatePublic, Redirect: PageLogin}
}

// ActionCompleted records that page's own action finished, so the next
// evaluation reloads it.
func (g *Gate) ActionCompleted(page Page) {
	m := g.entry(page).machine
	if err := m.ActionCompleted(); err != nil {
		g.logger.Debug("action completed ignored", "page", page, "error", err)
	}
}

func (g *Gate) load(ctx context.Context, page Page, m *Machine, token string) View {
	kind := services.ResourceProfile
	if page == PageHistory {
		kind = services.ResourceHistory
	}

	g.enterLoading(m)
	snap, err := g.resources.FetchOwned(ctx, kind, token)
	if errors.Is(err, services.ErrStaleResponse) {
		// A newer fetch won; render what it stored.
		if latest, ok := g.resources.Current(kind); ok {
			snap, err = latest, nil
		}
	}
	if err != nil {
		g.logger.Warn("page load failed", "page", page, "error", err)
		if m.stableState() == StatePublic {
			// Nothing rendered yet for this credential: stay in Loading so
			// the next evaluation retries.
			return View{Page: page, State: StateLoading, Err: err}
		}
		g.must(page, m.Fail())
		view := View{Page: page, State: m.State(), Err: err}
		view.Snapshot, _ = g.resources.Current(kind)
		return view
	}

	g.must(page, m.Resolve(snap.Empty()))
	return View{Page: page, State: m.State(), Snapshot: snap}
}

// enterLoading moves m to Loading from whatever it shows now.
func (g *Gate) enterLoading(m *Machine) {
	switch m.State() {
	case StatePublic:
		_ = m.Authenticate()
	case StateAuthenticatedEmpty, StateAuthenticatedPopulated:
		_ = m.Refresh()
	}
}

func (g *Gate) must(page Page, err error) {
	if err != nil {
		g.logger.Error("gate transition", "page", page, "error", err)
	}
}

func (g *Gate) credentialChanged(token string) {
	if g.resources != nil {
		g.resources.Reset()
	}
	present := token != ""
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, entry := range g.pages {
		entry.machine.CredentialChanged(present)
	}
}

func (g *Gate) entry(page Page) *pageEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.pages[page]
	if !ok {
		entry = &pageEntry{machine: NewMachine()}
		g.pages[page] = entry
	}
	return entry
}
