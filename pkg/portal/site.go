package portal

import (
	"fmt"
	"regexp"
	"strings"
)

var indexURLPattern = regexp.MustCompile(`(https?://)?(results\.[^/\s]+)/([^/\s]+)/index\.php`)

// Site identifies one results portal: the scheme+host it is served from and
// the site context path segment that selects the examination.
type Site struct {
	BaseURL string
	Context string
}

// ParseIndexURL extracts the site context from an index URL of the form
// https://results.<domain>/<context>/index.php.
func ParseIndexURL(raw string) (Site, error) {
	raw = strings.TrimSpace(raw)
	m := indexURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return Site{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	scheme := m[1]
	if scheme == "" {
		scheme = "https://"
	}
	return Site{BaseURL: scheme + m[2], Context: m[3]}, nil
}

// IndexURL returns the captcha form page of the site.
func (s Site) IndexURL() string {
	return s.BaseURL + "/" + s.Context + "/index.php"
}
