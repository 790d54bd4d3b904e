package arca

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

// fakeArca is a minimal stand-in for the platform's login flow and react
// endpoints.
type fakeArca struct {
	loginPage   string
	loginStatus int
	noSession   bool

	mu       sync.Mutex
	sessions map[string]bool
	handlers map[string]http.HandlerFunc

	logins   atomic.Int32
	probes   atomic.Int32
	lastCSRF atomic.Value
	lastForm atomic.Value
}

func newFakeArca(t *testing.T) (*fakeArca, *httptest.Server) {
	f := &fakeArca{
		loginPage: `<html><head><meta name="csrf-token" content="tok-meta"></head><body></body></html>`,
		sessions:  map[string]bool{},
		handlers:  map[string]http.HandlerFunc{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeArca) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

func (f *fakeArca) expireAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = map[string]bool{}
}

func (f *fakeArca) authed(r *http.Request) bool {
	ck, err := r.Cookie("_cfc2_session")
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[ck.Value]
}

func (f *fakeArca) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/user_sessions/new":
		http.SetCookie(w, &http.Cookie{Name: "pre_login", Value: "abc"})
		_, _ = w.Write([]byte(f.loginPage))
		return
	case r.Method == http.MethodPost && r.URL.Path == "/user_sessions":
		f.logins.Add(1)
		_ = r.ParseForm()
		f.lastCSRF.Store(r.PostForm.Get("authenticity_token"))
		f.lastForm.Store(r.PostForm.Encode() + "|" + r.Header.Get("Cookie") + "|" + r.Header.Get("Referer"))
		if f.loginStatus != 0 {
			w.WriteHeader(f.loginStatus)
			return
		}
		if r.PostForm.Get("password") != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !f.noSession {
			id := "s" + strings.Repeat("x", int(f.logins.Load()))
			f.mu.Lock()
			f.sessions[id] = true
			f.mu.Unlock()
			http.SetCookie(w, &http.Cookie{Name: "_cfc2_session", Value: id})
		}
		w.Header().Set("Location", "/booking")
		w.WriteHeader(http.StatusFound)
		return
	case r.URL.Path == "/react/login":
		w.WriteHeader(http.StatusNotFound)
		return
	case r.URL.Path == "/booking":
		f.probes.Add(1)
		if f.authed(r) {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Location", "/user_sessions/new")
		w.WriteHeader(http.StatusMovedPermanently)
		return
	}

	if !f.authed(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.Header.Get("X-Requested-With") != "XMLHttpRequest" || r.Header.Get("Accept") != "application/json" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	h := f.handlers[r.URL.Path]
	f.mu.Unlock()
	if h == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(srv *httptest.Server) *Client {
	return New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithLogger(zap.NewNop()))
}
