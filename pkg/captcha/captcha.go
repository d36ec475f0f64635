// Package captcha classifies raw portal responses into a successful lookup
// or a rejected captcha answer.
package captcha

import (
	"strings"

	"github.com/Sternrassler/portal-results/pkg/portal"
)

// Markers whose presence means the portal rejected the captcha answer.
var Markers = []string{
	"Invalid captcha",
	"Invalid captcha code !!!",
}

// Kind is the classification of a response.
type Kind string

const (
	// KindSuccess is a lookup page; the payload is its text.
	KindSuccess Kind = "success"

	// KindCaptchaRetry means the captcha was rejected and the fetch should be repeated.
	KindCaptchaRetry Kind = "captcha_retry"
)

// Verdict is the result of Classify.
type Verdict struct {
	Kind    Kind
	Payload string
}

// IsRetry reports whether the verdict asks for another attempt.
func (v Verdict) IsRetry() bool {
	return v.Kind == KindCaptchaRetry
}

// Classify inspects the text of resp for a captcha rejection marker.
func Classify(resp portal.RawResponse) Verdict {
	text := resp.Text()
	if IsRejection(text) {
		return Verdict{Kind: KindCaptchaRetry}
	}
	return Verdict{Kind: KindSuccess, Payload: text}
}

// IsRejection reports whether text carries a captcha rejection marker.
func IsRejection(text string) bool {
	for _, m := range Markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
