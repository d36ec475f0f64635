package portal

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/portal-results/pkg/ocr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for portal HTTP exchanges.
var (
	portalRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "results_portal_requests_total",
		Help: "Total portal HTTP requests by stage and status",
	}, []string{"stage", "status"})

	portalRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "results_portal_request_duration_seconds",
		Help:    "Portal HTTP request duration in seconds by stage",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"stage"})
)

// maxBodyBytes caps every portal response body.
const maxBodyBytes = 8 << 20

// Config holds the HTTP session configuration.
type Config struct {
	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// InsecureTLS skips certificate verification. Some portals serve
	// broken chains.
	InsecureTLS bool

	// IdentifierField is the form field carrying the identifier.
	IdentifierField string

	// CaptchaField is the form field carrying the captcha answer.
	CaptchaField string
}

// DefaultConfig returns the form layout used by the results portal.
func DefaultConfig() Config {
	return Config{
		UserAgent:       "portal-results/0.1.0",
		Timeout:         30 * time.Second,
		InsecureTLS:     false,
		IdentifierField: "lns",
		CaptchaField:    "captcha_code",
	}
}

// HTTPFactory creates HTTPSessions sharing one recognizer.
type HTTPFactory struct {
	recognizer ocr.Recognizer
	config     Config
	transport  http.RoundTripper
}

// NewHTTPFactory creates a factory. The recognizer is shared by reference
// and must be safe for concurrent use.
func NewHTTPFactory(recognizer ocr.Recognizer, cfg Config) *HTTPFactory {
	def := DefaultConfig()
	if cfg.IdentifierField == "" {
		cfg.IdentifierField = def.IdentifierField
	}
	if cfg.CaptchaField == "" {
		cfg.CaptchaField = def.CaptchaField
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	var transport http.RoundTripper
	if cfg.InsecureTLS {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		transport = t
	}

	return &HTTPFactory{recognizer: recognizer, config: cfg, transport: transport}
}

// SetTransport sets a custom round tripper (for testing).
func (f *HTTPFactory) SetTransport(rt http.RoundTripper) {
	f.transport = rt
}

// NewSession implements SessionFactory. Every session gets its own cookie jar.
func (f *HTTPFactory) NewSession(site Site) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &HTTPSession{
		site: site,
		httpClient: &http.Client{
			Jar:       jar,
			Timeout:   f.config.Timeout,
			Transport: f.transport,
		},
		recognizer: f.recognizer,
		config:     f.config,
		logger:     log.With().Str("component", "portal-session").Str("site", site.Context).Logger(),
	}, nil
}

// HTTPSession replays the portal lookup form: it loads the index page,
// solves the captcha and submits the identifier.
type HTTPSession struct {
	site       Site
	httpClient *http.Client
	recognizer ocr.Recognizer
	config     Config
	logger     zerolog.Logger
}

// Fetch implements Session.
func (s *HTTPSession) Fetch(ctx context.Context, identifier string) (RawResponse, error) {
	indexURL, err := url.Parse(s.site.IndexURL())
	if err != nil {
		return RawResponse{}, &FetchError{Stage: StageIndex, Err: err}
	}

	page, err := s.do(ctx, StageIndex, http.MethodGet, indexURL.String(), nil)
	if err != nil {
		return RawResponse{}, err
	}

	form, err := parseForm(page, indexURL, s.config.IdentifierField)
	if err != nil {
		return RawResponse{}, &FetchError{Stage: StageIndex, Err: err}
	}

	image, err := s.do(ctx, StageCaptcha, http.MethodGet, form.captchaURL, nil)
	if err != nil {
		return RawResponse{}, err
	}
	answer, err := s.recognizer.Recognize(ctx, image)
	if err != nil {
		return RawResponse{}, &FetchError{Stage: StageCaptcha, Err: err}
	}

	s.logger.Debug().
		Str("identifier", identifier).
		Str("action", form.action).
		Int("captcha_len", len(answer)).
		Msg("Submitting lookup form")

	values := form.hidden
	values.Set(s.config.IdentifierField, identifier)
	values.Set(s.config.CaptchaField, answer)

	body, err := s.do(ctx, StageSubmit, http.MethodPost, form.action, values)
	if err != nil {
		return RawResponse{}, err
	}
	return HTMLResponse(string(body)), nil
}

func (s *HTTPSession) do(ctx context.Context, stage Stage, method, target string, form url.Values) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		portalRequestDuration.WithLabelValues(string(stage)).Observe(time.Since(startTime).Seconds())
	}()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &FetchError{Stage: stage, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Referer", s.site.IndexURL())
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		portalRequestsTotal.WithLabelValues(string(stage), "network_error").Inc()
		s.logger.Warn().Err(err).Str("stage", string(stage)).Msg("Portal request failed")
		return nil, &FetchError{Stage: stage, Err: err}
	}
	defer resp.Body.Close()

	portalRequestsTotal.WithLabelValues(string(stage), strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Stage: stage, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return nil, &FetchError{Stage: stage, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	}
	return data, nil
}

type lookupForm struct {
	action     string
	captchaURL string
	hidden     url.Values
}

// parseForm locates the lookup form (the one with an identifier input, or
// the first form) and the captcha image on the index page.
func parseForm(page []byte, base *url.URL, identifierField string) (*lookupForm, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}

	forms := doc.Find("form")
	form := forms.FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return sel.Find(fmt.Sprintf("input[name=%q]", identifierField)).Length() > 0
	}).First()
	if form.Length() == 0 {
		form = forms.First()
	}
	if form.Length() == 0 {
		return nil, ErrNoForm
	}

	action, err := resolve(base, form.AttrOr("action", ""))
	if err != nil {
		return nil, fmt.Errorf("form action: %w", err)
	}

	hidden := url.Values{}
	form.Find("input[type=hidden]").Each(func(_ int, in *goquery.Selection) {
		if name, ok := in.Attr("name"); ok && name != "" {
			hidden.Set(name, in.AttrOr("value", ""))
		}
	})

	img := doc.Find("img[src*=captcha]").First()
	src, ok := img.Attr("src")
	if !ok || src == "" {
		return nil, ErrNoCaptcha
	}
	captchaURL, err := resolve(base, src)
	if err != nil {
		return nil, fmt.Errorf("captcha src: %w", err)
	}

	return &lookupForm{action: action, captchaURL: captchaURL, hidden: hidden}, nil
}

func resolve(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}
