package portal

import "fmt"

// RawResponse is the unclassified result of one fetch. It either carries an
// HTML document or an arbitrary value whose string form is inspected.
type RawResponse struct {
	html    string
	hasHTML bool
	value   any
}

// HTMLResponse wraps an HTML document.
func HTMLResponse(html string) RawResponse {
	return RawResponse{html: html, hasHTML: true}
}

// ValueResponse wraps a response without an HTML field.
func ValueResponse(v any) RawResponse {
	return RawResponse{value: v}
}

// HasHTML reports whether the response carries an HTML field.
func (r RawResponse) HasHTML() bool {
	return r.hasHTML
}

// Text returns the HTML field if present, otherwise the string form of the value.
func (r RawResponse) Text() string {
	if r.hasHTML {
		return r.html
	}
	if r.value == nil {
		return ""
	}
	if s, ok := r.value.(string); ok {
		return s
	}
	return fmt.Sprint(r.value)
}
