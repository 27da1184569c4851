package gate

// Page is a logical page of the client.
type Page string

const (
	PageLogin        Page = "login"
	PageSignUp       Page = "sign-up"
	PageProfile      Page = "profile"
	PageNewDiagnosis Page = "new-diagnosis"
	PageHistory      Page = "history"
)

var pagePaths = map[Page]string{
	PageLogin:        "/",
	PageSignUp:       "/sign-up",
	PageProfile:      "/profile",
	PageNewDiagnosis: "/newDiagnosis",
	PageHistory:      "/history",
}

// Path returns the URL path the page is served at.
func (p Page) Path() string {
	if path, ok := pagePaths[p]; ok {
		return path
	}
	return "/"
}

// Event is a navigation-relevant outcome emitted by an action.
type Event int

const (
	// EventAuthenticated follows a successful login or sign-up.
	EventAuthenticated Event = iota
	// EventCredentialMissing follows an attempt to reach a page that
	// needs a credential.
	EventCredentialMissing
	EventProfileCreated
	EventDiagnosisCompleted
)

// Router maps navigation events to the page to show next.
type Router struct {
	routes map[Event]Page
}

// NewRouter returns the client's navigation rules. Authentication always
// lands on the new diagnosis page, whatever page the user came from.
func NewRouter() *Router {
	return &Router{routes: map[Event]Page{
		EventAuthenticated:      PageNewDiagnosis,
		EventCredentialMissing:  PageLogin,
		EventProfileCreated:     PageProfile,
		EventDiagnosisCompleted: PageNewDiagnosis,
	}}
}

// Route returns the destination for event. Unknown events go to login.
func (r *Router) Route(event Event) Page {
	if page, ok := r.routes[event]; ok {
		return page
	}
	return PageLogin
}
