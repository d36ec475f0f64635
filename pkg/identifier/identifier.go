// Package identifier splits record identifiers into a textual prefix and a
// zero-padded numeric suffix, and expands inclusive identifier ranges.
package identifier

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMalformedRange is returned when an identifier has no trailing digit
	// run, the digits overflow, or start and end do not share a prefix.
	ErrMalformedRange = errors.New("cannot auto-increment identifier format")

	// ErrInvalidRangeOrder is returned when the end identifier sorts before the start.
	ErrInvalidRangeOrder = errors.New("end identifier must be >= start identifier")

	// ErrRangeTooLarge is returned by CheckSize when a range exceeds the configured limit.
	ErrRangeTooLarge = errors.New("identifier range too large")
)

// Identifier is an identifier decomposed into prefix and numeric suffix.
type Identifier struct {
	Prefix  string
	Numeric uint64
	Width   int
}

// String reassembles the identifier, zero-padding the suffix to Width.
func (id Identifier) String() string {
	return Format(id.Prefix, id.Numeric, id.Width)
}

// Format builds prefix + n zero-padded to width digits.
func Format(prefix string, n uint64, width int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

// Split returns the prefix and the maximal trailing run of ASCII digits.
func Split(s string) (prefix, digits string, err error) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return "", "", fmt.Errorf("%w: %q has no numeric suffix", ErrMalformedRange, s)
	}
	return s[:i], s[i:], nil
}

// Parse decomposes s. Parse(s).String() == s for every valid s.
func Parse(s string) (Identifier, error) {
	prefix, digits, err := Split(s)
	if err != nil {
		return Identifier{}, err
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %q: %v", ErrMalformedRange, s, err)
	}
	return Identifier{Prefix: prefix, Numeric: n, Width: len(digits)}, nil
}

// allPrealloc bounds the capacity All reserves up front.
const allPrealloc = 1 << 16

// Range is an inclusive, ordered identifier range. The zero-padding width is
// taken from the start identifier.
type Range struct {
	Prefix string
	Start  uint64
	End    uint64
	Width  int
}

// ParseRange validates start and end and returns the range between them.
func ParseRange(start, end string) (Range, error) {
	s, err := Parse(start)
	if err != nil {
		return Range{}, err
	}
	e, err := Parse(end)
	if err != nil {
		return Range{}, err
	}
	if s.Prefix != e.Prefix {
		return Range{}, fmt.Errorf("%w: prefixes %q and %q differ", ErrMalformedRange, s.Prefix, e.Prefix)
	}
	if e.Numeric < s.Numeric {
		return Range{}, ErrInvalidRangeOrder
	}
	return Range{Prefix: s.Prefix, Start: s.Numeric, End: e.Numeric, Width: s.Width}, nil
}

// Expand is ParseRange followed by All.
func Expand(start, end string) ([]string, error) {
	r, err := ParseRange(start, end)
	if err != nil {
		return nil, err
	}
	return r.All(), nil
}

// Len returns the number of identifiers in the range, saturating at
// math.MaxInt.
func (r Range) Len() int {
	span := r.End - r.Start
	if span >= uint64(math.MaxInt) {
		return math.MaxInt
	}
	return int(span) + 1
}

// At returns the i-th identifier of the range.
func (r Range) At(i int) string {
	return Format(r.Prefix, r.Start+uint64(i), r.Width)
}

// All materializes the range.
func (r Range) All() []string {
	out := make([]string, 0, min(r.Len(), allPrealloc))
	for id := range r.Seq() {
		out = append(out, id)
	}
	return out
}

// Seq yields the identifiers in increasing numeric order.
func (r Range) Seq() iter.Seq[string] {
	return func(yield func(string) bool) {
		for n := r.Start; n <= r.End; n++ {
			if !yield(Format(r.Prefix, n, r.Width)) {
				return
			}
			if n == r.End {
				return
			}
		}
	}
}

// CheckSize returns ErrRangeTooLarge when the range is longer than max.
// max <= 0 disables the configured limit; ranges that cannot be
// materialized (more than math.MaxInt identifiers) are always rejected.
func (r Range) CheckSize(max int) error {
	span := r.End - r.Start
	if span >= uint64(math.MaxInt) {
		return fmt.Errorf("%w: range %s exceeds %d identifiers", ErrRangeTooLarge, r, math.MaxInt)
	}
	if max > 0 && span >= uint64(max) {
		return fmt.Errorf("%w: %d identifiers requested, limit is %d", ErrRangeTooLarge, span+1, max)
	}
	return nil
}

// String renders the range as "first..last".
func (r Range) String() string {
	var b strings.Builder
	b.WriteString(Format(r.Prefix, r.Start, r.Width))
	b.WriteString("..")
	b.WriteString(Format(r.Prefix, r.End, r.Width))
	return b.String()
}
