package dispatch

import (
	"github.com/Sternrassler/portal-results/pkg/fetch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IncompleteMessage is recorded for an identifier whose job never reported.
const IncompleteMessage = "job did not complete"

// ResultMap maps each requested identifier to its outcome.
type ResultMap map[string]fetch.Outcome

// Values returns identifier -> legacy string value (payload, marker or
// error document).
func (m ResultMap) Values() map[string]string {
	out := make(map[string]string, len(m))
	for id, o := range m {
		out[id] = o.Value()
	}
	return out
}

// Counts returns the number of outcomes per status.
func (m ResultMap) Counts() map[fetch.Status]int {
	out := make(map[fetch.Status]int)
	for _, o := range m {
		out[o.Status]++
	}
	return out
}

// Aggregator folds outcomes into a ResultMap. It is fed by a single
// consumer and is not safe for concurrent use.
type Aggregator struct {
	order    []string
	expected map[string]struct{}
	results  ResultMap
	logger   zerolog.Logger
}

// NewAggregator expects one outcome per distinct identifier. Duplicates in
// identifiers are collapsed, keeping first-seen order.
func NewAggregator(identifiers []string) *Aggregator {
	a := &Aggregator{
		order:    make([]string, 0, len(identifiers)),
		expected: make(map[string]struct{}, len(identifiers)),
		results:  make(ResultMap, len(identifiers)),
		logger:   log.With().Str("component", "aggregator").Logger(),
	}
	for _, id := range identifiers {
		if _, ok := a.expected[id]; ok {
			continue
		}
		a.expected[id] = struct{}{}
		a.order = append(a.order, id)
	}
	return a
}

// Identifiers returns the distinct expected identifiers in submission order.
func (a *Aggregator) Identifiers() []string {
	return append([]string(nil), a.order...)
}

// Record inserts out under its identifier. It returns false, leaving the
// map unchanged, for an unknown identifier or one already recorded.
func (a *Aggregator) Record(out fetch.Outcome) bool {
	if _, ok := a.expected[out.Identifier]; !ok {
		a.logger.Warn().Str("identifier", out.Identifier).Msg("Ignoring outcome for unrequested identifier")
		return false
	}
	if _, dup := a.results[out.Identifier]; dup {
		a.logger.Warn().Str("identifier", out.Identifier).Msg("Ignoring duplicate outcome")
		return false
	}
	a.results[out.Identifier] = out
	return true
}

// Pending returns the number of identifiers still without an outcome.
func (a *Aggregator) Pending() int {
	return len(a.order) - len(a.results)
}

// Finalize returns the ResultMap with exactly one entry per expected
// identifier. Identifiers without an outcome are recorded as fatal.
func (a *Aggregator) Finalize() ResultMap {
	for _, id := range a.order {
		if _, ok := a.results[id]; !ok {
			a.logger.Error().Str("identifier", id).Msg("Lookup produced no outcome")
			a.results[id] = fetch.FatalOutcome(id, IncompleteMessage)
		}
	}
	out := make(ResultMap, len(a.results))
	for id, o := range a.results {
		out[id] = o
	}
	return out
}
