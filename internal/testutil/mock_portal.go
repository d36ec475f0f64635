// Package testutil provides testing utilities for the results portal client.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// InvalidCaptchaPage is what the portal serves for a wrong captcha answer.
const InvalidCaptchaPage = `<html><script type="text/javascript">alert('Invalid captcha code !!!');window.location.href='index.php';</script></html>`

const (
	sessionCookie = "PHPSESSID"
	tokenField    = "Token"
)

// MockPortal is a results portal: an index page with a lookup form and
// captcha image, and a result page checking the captcha per cookie session.
//
// The captcha image body is the captcha text itself, so EchoRecognizer
// answers correctly.
type MockPortal struct {
	server  *httptest.Server
	context string

	mu       sync.Mutex
	sessions map[string]string // session id -> current captcha code
	failures map[string]int    // identifier -> remaining forced captcha failures
	statuses map[string]int    // path -> forced status code
	delay    time.Duration

	// Tracking
	IndexCount   int
	CaptchaCount int
	SubmitCount  int
	Submitted    []url.Values
}

// NewMockPortal starts a portal serving the given site context (e.g. "sem1").
func NewMockPortal(siteContext string) *MockPortal {
	m := &MockPortal{
		context:  siteContext,
		sessions: make(map[string]string),
		failures: make(map[string]int),
		statuses: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/"+siteContext+"/index.php", m.handleIndex)
	mux.HandleFunc("/"+siteContext+"/captcha_new.php", m.handleCaptcha)
	mux.HandleFunc("/"+siteContext+"/resultpage.php", m.handleSubmit)

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		status, forced := m.statuses[r.URL.Path]
		delay := m.delay
		m.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if forced {
			w.WriteHeader(status)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	return m
}

// URL returns the mock server URL.
func (m *MockPortal) URL() string {
	return m.server.URL
}

// IndexURL returns the index page URL of the served site.
func (m *MockPortal) IndexURL() string {
	return m.server.URL + "/" + m.context + "/index.php"
}

// Close shuts down the mock server.
func (m *MockPortal) Close() {
	m.server.Close()
}

// FailCaptcha makes the next n submissions for identifier answer with
// InvalidCaptchaPage regardless of the captcha answer.
func (m *MockPortal) FailCaptcha(identifier string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[identifier] = n
}

// SetStatus forces every request to path ("index.php", "captcha_new.php" or
// "resultpage.php") to answer with status.
func (m *MockPortal) SetStatus(page string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses["/"+m.context+"/"+page] = status
}

// SetDelay delays every response.
func (m *MockPortal) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Counts returns the index, captcha and submit request counts.
func (m *MockPortal) Counts() (index, captcha, submit int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IndexCount, m.CaptchaCount, m.SubmitCount
}

// ResultPage is the page served for a successful lookup of identifier.
func ResultPage(identifier string) string {
	return fmt.Sprintf(`<html><body><h1>Results</h1><td>%s</td><td>PASS</td></body></html>`, identifier)
}

func (m *MockPortal) handleIndex(w http.ResponseWriter, r *http.Request) {
	id := randomHex(8)
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/"})

	m.mu.Lock()
	m.IndexCount++
	m.sessions[id] = ""
	m.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html><body>
<form id="search" method="get" action="search.php"><input name="q"></form>
<form method="post" action="resultpage.php">
  <input type="hidden" name="%s" value="%s">
  <input type="text" name="lns">
  <img alt="captcha" src="/%s/captcha_new.php?t=%s">
  <input type="text" name="captcha_code">
  <input type="submit" value="Submit">
</form>
</body></html>`, tokenField, "tok-"+id, m.context, id)
}

func (m *MockPortal) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		http.Error(w, "no session", http.StatusForbidden)
		return
	}

	code := randomHex(3)
	m.mu.Lock()
	m.CaptchaCount++
	_, known := m.sessions[c.Value]
	if known {
		m.sessions[c.Value] = code
	}
	m.mu.Unlock()

	if !known {
		http.Error(w, "unknown session", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write([]byte(code))
}

func (m *MockPortal) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	identifier := r.PostForm.Get("lns")
	answer := r.PostForm.Get("captcha_code")

	var sessionID string
	if c, err := r.Cookie(sessionCookie); err == nil {
		sessionID = c.Value
	}

	m.mu.Lock()
	m.SubmitCount++
	m.Submitted = append(m.Submitted, r.PostForm)
	expected, known := m.sessions[sessionID]
	forced := m.failures[identifier] > 0
	if forced {
		m.failures[identifier]--
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	validToken := r.PostForm.Get(tokenField) == "tok-"+sessionID
	if forced || !known || !validToken || expected == "" || !strings.EqualFold(answer, expected) {
		w.Write([]byte(InvalidCaptchaPage))
		return
	}
	w.Write([]byte(ResultPage(identifier)))
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
