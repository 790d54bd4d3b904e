package arca

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://backend.arca.dk"

	userAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	sessionCookieName = "_cfc2_session"
	maxBody           = 4 << 20
)

var csrfPattern = regexp.MustCompile(`(?i)authenticity_token["'\s:=]+([^"'<>\s]+)`)

// Client holds one logged-in session. It is safe for concurrent use, but
// never share one between members: the cookie and stored credentials belong
// to whoever logged in last.
type Client struct {
	hc      *http.Client
	baseURL string
	log     *zap.Logger

	mu       sync.Mutex
	username string
	password string
	cookie   string
}

type Option func(*Client)

// WithHTTPClient uses a copy of hc. Redirects are never followed: the login
// flow reads cookies and status codes straight off 3xx responses.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.hc = &cp
	}
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(opts ...Option) *Client {
	c := &Client{
		hc:      &http.Client{Timeout: 20 * time.Second},
		baseURL: DefaultBaseURL,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return c
}

// Login runs the CSRF form login and keeps the session cookie and
// credentials for later re-authentication.
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx, username, password)
}

func (c *Client) loginLocked(ctx context.Context, username, password string) error {
	c.cookie = ""

	res, body, err := c.do(ctx, http.MethodGet, "/user_sessions/new", http.Header{"Accept": {"text/html"}}, nil)
	if err != nil {
		return err
	}
	if res.StatusCode >= 400 {
		return &AuthError{Reason: "login page returned status " + res.Status}
	}
	token := extractCSRF(body)
	if token == "" {
		c.log.Debug("login page without csrf token", zap.String("head", truncate(string(body), 200)))
		return &AuthError{Reason: "csrf token not found"}
	}

	form := url.Values{
		"authenticity_token": {token},
		"username":           {username},
		"password":           {password},
	}
	hdr := http.Header{
		"Content-Type": {"application/x-www-form-urlencoded"},
		"Referer":      {c.baseURL + "/user_sessions/new"},
	}
	if jar := cookieHeader(res.Cookies()); jar != "" {
		hdr.Set("Cookie", jar)
	}
	res, _, err = c.do(ctx, http.MethodPost, "/user_sessions", hdr, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	if res.StatusCode >= 400 {
		return &AuthError{Reason: "login rejected with status " + res.Status}
	}

	var session string
	for _, ck := range res.Cookies() {
		if strings.Contains(ck.Name, sessionCookieName) {
			session = ck.Name + "=" + ck.Value
			break
		}
	}
	if session == "" {
		return &AuthError{Reason: "no session cookie in login response"}
	}

	c.cookie = session
	c.username = username
	c.password = password

	// react session warm-up; failures are ignored
	if res, _, err := c.do(ctx, http.MethodGet, "/react/login", c.xhrHeader("application/json, text/javascript, */*; q=0.01"), nil); err != nil {
		c.log.Debug("react warm-up failed", zap.Error(err))
	} else if res.StatusCode >= 400 {
		c.log.Debug("react warm-up rejected", zap.Int("status", res.StatusCode))
	}

	c.log.Info("logged in to arca")
	return nil
}

// EnsureAuthenticated probes the session and logs in again with the stored
// credentials when the probe fails.
func (c *Client) EnsureAuthenticated(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cookie != "" && c.probeLocked(ctx) {
		return nil
	}
	if c.username == "" || c.password == "" {
		return &AuthError{Reason: "no stored credentials"}
	}
	c.log.Info("arca session expired, logging in again")
	return c.loginLocked(ctx, c.username, c.password)
}

func (c *Client) probeLocked(ctx context.Context) bool {
	res, _, err := c.do(ctx, http.MethodGet, "/booking", http.Header{"Cookie": {c.cookie}}, nil)
	if err != nil {
		c.log.Debug("session probe failed", zap.Error(err))
		return false
	}
	return res.StatusCode == http.StatusOK || res.StatusCode == http.StatusFound
}

// Request performs an authenticated JSON call. A nil body sends no payload.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	hdr := c.xhrHeader("application/json")
	c.mu.Unlock()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
		hdr.Set("Content-Type", "application/json")
	}

	res, b, err := c.do(ctx, method, endpoint, hdr, rd)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		ue := &UpstreamError{Method: method, Endpoint: endpoint, Status: res.StatusCode, Message: upstreamMessage(b)}
		if json.Valid(b) {
			ue.Body = b
		}
		return nil, ue
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}
	if !json.Valid(b) {
		return nil, &UpstreamError{Method: method, Endpoint: endpoint, Status: res.StatusCode, Message: "invalid JSON response"}
	}
	return b, nil
}

// xhrHeader must be called with mu held.
func (c *Client) xhrHeader(accept string) http.Header {
	return http.Header{
		"Cookie":           {c.cookie},
		"Accept":           {accept},
		"X-Requested-With": {"XMLHttpRequest"},
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, hdr http.Header, body io.Reader) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, nil, &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, nil, &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}
	return res, b, nil
}

// extractCSRF tries the meta tag, then the hidden form input, then a loose
// pattern over the raw markup.
func extractCSRF(page []byte) string {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page)); err == nil {
		if v := strings.TrimSpace(doc.Find(`meta[name="csrf-token"]`).AttrOr("content", "")); v != "" {
			return v
		}
		if v := strings.TrimSpace(doc.Find(`input[name="authenticity_token"]`).AttrOr("value", "")); v != "" {
			return v
		}
	}
	if m := csrfPattern.FindSubmatch(page); m != nil {
		return string(m[1])
	}
	return ""
}

func cookieHeader(cs []*http.Cookie) string {
	parts := make([]string, 0, len(cs))
	for _, ck := range cs {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

func upstreamMessage(b []byte) string {
	var m struct {
		Error   any `json:"error"`
		Message any `json:"message"`
	}
	if json.Unmarshal(b, &m) == nil {
		if s, ok := m.Error.(string); ok && s != "" {
			return s
		}
		if s, ok := m.Message.(string); ok && s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(string(b)); s != "" {
		return truncate(s, 300)
	}
	return "empty response"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
