package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/portal-results/pkg/fetch"
	"github.com/Sternrassler/portal-results/pkg/identifier"
	"github.com/Sternrassler/portal-results/pkg/portal"
)

func TestDispatcher_BoundedConcurrency(t *testing.T) {
	ids, err := identifier.Expand("1AB21CS001", "1AB21CS023")
	if err != nil {
		t.Fatal(err)
	}

	var inFlight, maxInFlight int32
	run := func(ctx context.Context, id string) fetch.Outcome {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return fetch.Outcome{Status: fetch.StatusSuccess, Payload: "page " + id}
	}

	results := NewDispatcher(run, Config{Workers: 10}).Run(context.Background(), ids)

	if len(results) != 23 {
		t.Fatalf("len(results) = %d, want 23", len(results))
	}
	if maxInFlight > 10 {
		t.Errorf("max in flight = %d, want <= 10", maxInFlight)
	}
	if maxInFlight < 2 {
		t.Errorf("max in flight = %d, lookups did not run concurrently", maxInFlight)
	}
	for _, id := range ids {
		out, ok := results[id]
		if !ok {
			t.Errorf("missing outcome for %s", id)
			continue
		}
		if out.Payload != "page "+id {
			t.Errorf("results[%s].Payload = %q, outcome attributed to wrong identifier", id, out.Payload)
		}
	}
}

func TestDispatcher_OutOfOrderCompletion(t *testing.T) {
	ids := []string{"X1", "X2", "X3", "X4", "X5"}

	var mu sync.Mutex
	var completion []string
	run := func(ctx context.Context, id string) fetch.Outcome {
		// earlier identifiers finish later
		n := len(ids) - int(id[1]-'0')
		time.Sleep(time.Duration(n*10) * time.Millisecond)
		mu.Lock()
		completion = append(completion, id)
		mu.Unlock()
		return fetch.Outcome{Identifier: "bogus", Status: fetch.StatusSuccess, Payload: id}
	}

	results := NewDispatcher(run, Config{Workers: 5}).Run(context.Background(), ids)

	if completion[0] == "X1" {
		t.Errorf("completion order = %v, expected out of submission order", completion)
	}
	for _, id := range ids {
		if results[id].Payload != id || results[id].Identifier != id {
			t.Errorf("results[%s] = %+v", id, results[id])
		}
	}
}

func TestDispatcher_JobsAreIndependent(t *testing.T) {
	ids := []string{"A001", "A002", "A003", "A004", "A005", "A006"}
	run := func(ctx context.Context, id string) fetch.Outcome {
		switch id {
		case "A002":
			panic("nil session")
		case "A003":
			return fetch.Outcome{Status: fetch.StatusFatal, Err: "portal down"}
		case "A004":
			return fetch.Outcome{Status: fetch.StatusRetriesExhausted, Attempts: 5}
		}
		return fetch.Outcome{Status: fetch.StatusSuccess, Payload: "ok " + id}
	}

	results := NewDispatcher(run, Config{Workers: 2}).Run(context.Background(), ids)
	if len(results) != len(ids) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(ids))
	}

	if out := results["A002"]; out.Status != fetch.StatusFatal || !strings.Contains(out.Err, "nil session") {
		t.Errorf("panicking job = %+v, want fatal with panic message", out)
	}
	values := results.Values()
	if got := values["A003"]; got != `{"error": "portal down"}` {
		t.Errorf("values[A003] = %q", got)
	}
	if got := values["A004"]; got != fetch.RetriesExhaustedMarker {
		t.Errorf("values[A004] = %q, want marker", got)
	}
	for _, id := range []string{"A001", "A005", "A006"} {
		if got := values[id]; got != "ok "+id {
			t.Errorf("values[%s] = %q", id, got)
		}
	}

	counts := results.Counts()
	if counts[fetch.StatusSuccess] != 3 || counts[fetch.StatusFatal] != 2 || counts[fetch.StatusRetriesExhausted] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
}

func TestDispatcher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	run := func(ctx context.Context, id string) fetch.Outcome {
		atomic.AddInt32(&calls, 1)
		return fetch.Outcome{Status: fetch.StatusSuccess}
	}

	results := NewDispatcher(run, DefaultConfig()).Run(ctx, []string{"A1", "A2", "A3"})
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if calls != 0 {
		t.Errorf("run calls = %d, want 0 after cancellation", calls)
	}
	for id, out := range results {
		if out.Status != fetch.StatusFatal || out.Err != context.Canceled.Error() {
			t.Errorf("results[%s] = %+v, want cancelled", id, out)
		}
	}
}

func TestDispatcher_DuplicateIdentifiers(t *testing.T) {
	var calls int32
	run := func(ctx context.Context, id string) fetch.Outcome {
		atomic.AddInt32(&calls, 1)
		return fetch.Outcome{Status: fetch.StatusSuccess, Payload: id}
	}

	results := NewDispatcher(run, DefaultConfig()).Run(context.Background(), []string{"A1", "A2", "A1"})
	if len(results) != 2 || calls != 2 {
		t.Errorf("len(results) = %d, calls = %d, want 2 and 2", len(results), calls)
	}
}

func TestDispatcher_Empty(t *testing.T) {
	run := func(ctx context.Context, id string) fetch.Outcome {
		t.Error("run called for empty input")
		return fetch.Outcome{}
	}
	if results := NewDispatcher(run, DefaultConfig()).Run(context.Background(), nil); len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestForSite(t *testing.T) {
	site := portal.Site{BaseURL: "https://results.example.edu", Context: "sem1"}

	var sessions int32
	factory := portal.FactoryFunc(func(s portal.Site) (portal.Session, error) {
		atomic.AddInt32(&sessions, 1)
		var used int32
		return portal.SessionFunc(func(ctx context.Context, id string) (portal.RawResponse, error) {
			if atomic.AddInt32(&used, 1) > 1 {
				return portal.RawResponse{}, fmt.Errorf("session reused for %s", id)
			}
			return portal.HTMLResponse("result " + id), nil
		}), nil
	})

	ids := []string{"A01", "A02", "A03", "A04"}
	results := NewDispatcher(ForSite(factory, site, fetch.DefaultConfig()), Config{Workers: 2}).Run(context.Background(), ids)

	if sessions != int32(len(ids)) {
		t.Errorf("sessions = %d, want one per identifier", sessions)
	}
	for _, id := range ids {
		if got := results[id].Value(); got != "result "+id {
			t.Errorf("results[%s] = %q", id, got)
		}
	}
}

func TestAggregator(t *testing.T) {
	agg := NewAggregator([]string{"A1", "A2", "A3", "A2"})

	if got := agg.Identifiers(); len(got) != 3 {
		t.Fatalf("Identifiers() = %v, want 3 distinct", got)
	}

	if !agg.Record(fetch.Outcome{Identifier: "A2", Status: fetch.StatusSuccess, Payload: "first"}) {
		t.Error("Record(A2) = false, want true")
	}
	if agg.Record(fetch.Outcome{Identifier: "A2", Status: fetch.StatusSuccess, Payload: "second"}) {
		t.Error("Record(duplicate A2) = true, want false")
	}
	if agg.Record(fetch.Outcome{Identifier: "Z9", Status: fetch.StatusSuccess}) {
		t.Error("Record(unknown) = true, want false")
	}
	agg.Record(fetch.Outcome{Identifier: "A1", Status: fetch.StatusRetriesExhausted, Attempts: 5})

	if got := agg.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}

	results := agg.Finalize()
	if len(results) != 3 {
		t.Fatalf("len(Finalize()) = %d, want 3", len(results))
	}
	if results["A2"].Payload != "first" {
		t.Errorf("A2 was overwritten: %+v", results["A2"])
	}
	if _, ok := results["Z9"]; ok {
		t.Error("unknown identifier recorded")
	}
	if out := results["A3"]; out.Status != fetch.StatusFatal || out.Err != IncompleteMessage {
		t.Errorf("A3 = %+v, want fatal %q", out, IncompleteMessage)
	}
}
