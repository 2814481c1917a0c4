// Package moodletest provides an in-process fake of the Moodle token and
// REST endpoints for tests. It keeps users, site info and a token in memory,
// dispatches on wsfunction and records every call it receives.
package moodletest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

const (
	DefaultToken   = "0123456789abcdef0123456789abcdef"
	DefaultService = "moodle_mobile_app"

	TokenPath   = "/login/token.php"
	ServicePath = "/webservice/rest/server.php"
)

// Call is a request received by the fake.
type Call struct {
	Path     string
	Function string
	Query    url.Values
	Form     url.Values
}

// Function serves one wsfunction. The returned value is written as JSON;
// a Raw value is written as is.
type Function func(call Call) any

// Raw is a response body written verbatim.
type Raw string

// Server is a fake Moodle site.
type Server struct {
	mu        sync.Mutex
	token     string
	service   string
	basePath  string
	passwords map[string]string
	users     []map[string]any
	siteInfo  map[string]any
	functions map[string]Function
	calls     []Call
	router    chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithToken sets the token issued for valid credentials.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithService sets the only service name the token endpoint accepts.
func WithService(name string) Option {
	return func(s *Server) { s.service = name }
}

// WithBasePath serves the site beneath a sub-directory such as /moodle.
func WithBasePath(p string) Option {
	return func(s *Server) { s.basePath = "/" + strings.Trim(p, "/") }
}

// New creates a Server with no users and a minimal site info.
func New(opts ...Option) *Server {
	s := &Server{
		token:     DefaultToken,
		service:   DefaultService,
		passwords: map[string]string{},
		siteInfo: map[string]any{
			"sitename":  "Test Site",
			"release":   "4.3.2+ (Build: 20240112)",
			"version":   "2023100902.03",
			"functions": []map[string]any{},
		},
		functions: map[string]Function{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(panicHandler)
	mount := func(r chi.Router) {
		r.Post(TokenPath, s.handleToken)
		r.Post(ServicePath, s.handleService)
	}
	if s.basePath == "" || s.basePath == "/" {
		mount(r)
	} else {
		r.Route(s.basePath, mount)
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves the fake on a local listener for the duration of the test
// and returns the site URL.
func (s *Server) Start(t testing.TB) string {
	t.Helper()
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts.URL + s.basePath
}

// AddUser registers a user. fields may add or override profile fields.
func (s *Server) AddUser(id int64, username, password string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := map[string]any{
		"id":        id,
		"username":  username,
		"firstname": "",
		"lastname":  "",
		"fullname":  "",
		"email":     username + "@example.org",
		"auth":      "manual",
		"suspended": false,
		"confirmed": true,
		"lang":      "en",
	}
	for k, v := range fields {
		user[k] = v
	}
	s.users = append(s.users, user)
	s.passwords[username] = password
}

// SetSiteInfo merges fields into the site info.
func (s *Server) SetSiteInfo(fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range fields {
		s.siteInfo[k] = v
	}
}

// Handle overrides or adds a wsfunction.
func (s *Server) Handle(name string, fn Function) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.functions[name] = fn
}

// Calls returns the calls received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Functions returns the wsfunction of each REST call, in order.
func (s *Server) Functions() []string {
	var names []string
	for _, c := range s.Calls() {
		if c.Path == ServicePath {
			names = append(names, c.Function)
		}
	}
	return names
}

// Token returns the token issued for valid credentials.
func (s *Server) Token() string {
	return s.token
}

func (s *Server) record(r *http.Request, path string) (Call, bool) {
	if err := r.ParseForm(); err != nil {
		return Call{}, false
	}
	c := Call{
		Path:     path,
		Function: r.URL.Query().Get("wsfunction"),
		Query:    r.URL.Query(),
		Form:     r.PostForm,
	}
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
	return c, true
}
