package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/metrics"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/normalize"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/pokeapi"
)

// fakeFetcher serves canned bodies and errors by id
type fakeFetcher struct {
	bodies map[int]string
	errs   map[int]error
	calls  []int
}

func (f *fakeFetcher) Fetch(ctx context.Context, id int) (pokeapi.RawRecord, error) {
	f.calls = append(f.calls, id)
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	body, ok := f.bodies[id]
	if !ok {
		return nil, &pokeapi.StatusError{ID: id, StatusCode: http.StatusNotFound}
	}
	var raw pokeapi.RawRecord
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func pokemonJSON(id int, name string) string {
	return fmt.Sprintf(`{"id": %d, "name": %q, "height": 7, "weight": 69,
		"types": [{"type": {"name": "grass"}}],
		"stats": [{"base_stat": 45}]}`, id, name)
}

func bufferLogger(t *testing.T) (*logging.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := logging.New("", &buf, "")
	if err != nil {
		t.Fatal(err)
	}
	return l, &buf
}

func ids(records []normalize.Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestCollect_AscendingAndSequential(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[int]string{
		4: pokemonJSON(4, "charmander"),
		5: pokemonJSON(5, "charmeleon"),
		6: pokemonJSON(6, "charizard"),
	}}

	records, summary, err := New(fetcher).Collect(context.Background(), Range{Start: 4, End: 6})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if fmt.Sprint(fetcher.calls) != "[4 5 6]" {
		t.Errorf("Expected calls [4 5 6], got %v", fetcher.calls)
	}
	if fmt.Sprint(ids(records)) != "[4 5 6]" {
		t.Errorf("Expected records [4 5 6], got %v", ids(records))
	}
	if summary.Requested != 3 || summary.Collected != 3 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestCollect_SkipsFailures(t *testing.T) {
	fetcher := &fakeFetcher{
		bodies: map[int]string{
			1: pokemonJSON(1, "bulbasaur"),
			3: `{"id": 3, "types": [{"slot": 1}]}`,
			5: pokemonJSON(5, "charmeleon"),
		},
		errs: map[int]error{
			2: &pokeapi.FetchError{ID: 2, Err: errors.New("connection refused")},
		},
	}
	logger, buf := bufferLogger(t)

	var observed []Result
	c := New(fetcher,
		WithLogger(logger),
		WithObserver(ObserverFunc(func(r Result) { observed = append(observed, r) })),
	)

	records, summary, err := c.Collect(context.Background(), Range{Start: 1, End: 5})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if fmt.Sprint(ids(records)) != "[1 5]" {
		t.Errorf("Expected records [1 5], got %v", ids(records))
	}
	want := Summary{Requested: 5, Collected: 2, FetchFailed: 2, Malformed: 1}
	if summary != want {
		t.Errorf("Summary = %+v, want %+v", summary, want)
	}

	if len(observed) != 5 {
		t.Fatalf("Expected 5 observed results, got %d", len(observed))
	}
	wantOutcomes := []Outcome{OutcomeOK, OutcomeFetchFailed, OutcomeMalformed, OutcomeFetchFailed, OutcomeOK}
	for i, r := range observed {
		if r.Outcome != wantOutcomes[i] {
			t.Errorf("Result %d outcome = %s, want %s", r.ID, r.Outcome, wantOutcomes[i])
		}
	}

	logs := buf.String()
	for _, want := range []string{
		"ERROR [Collector] Request failed for Pokemon ID 2",
		"ERROR [Collector] Skipping malformed record for Pokemon ID 3",
		"ERROR [Collector] Request failed for Pokemon ID 4 Status Code: 404",
	} {
		if strings.Count(logs, want) != 1 {
			t.Errorf("Expected exactly one %q log line in:\n%s", want, logs)
		}
	}
}

// TestCollect_TimeoutScenario walks [1,3] against a server where id 2 hangs
func TestCollect_TimeoutScenario(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/")
		if id == "2" {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			return
		}
		fmt.Fprintf(w, `{"id": %s, "name": "mon-%s"}`, id, id)
	}))
	defer server.Close()

	client := pokeapi.NewClient(pokeapi.WithBaseURL(server.URL), pokeapi.WithTimeout(100*time.Millisecond))
	logger, buf := bufferLogger(t)

	records, summary, err := New(client, WithLogger(logger)).Collect(context.Background(), Range{Start: 1, End: 3})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if fmt.Sprint(ids(records)) != "[1 3]" {
		t.Errorf("Expected records [1 3], got %v", ids(records))
	}
	if summary.FetchFailed != 1 {
		t.Errorf("Expected 1 fetch failure, got %d", summary.FetchFailed)
	}
	if n := strings.Count(buf.String(), "Request failed for Pokemon ID 2"); n != 1 {
		t.Errorf("Expected one failure log for id 2, got %d", n)
	}
}

func TestCollect_DuplicateUpstreamID(t *testing.T) {
	// the API answers id 10 with the record for id 9
	fetcher := &fakeFetcher{bodies: map[int]string{
		9:  pokemonJSON(9, "blastoise"),
		10: pokemonJSON(9, "blastoise"),
		11: pokemonJSON(11, "metapod"),
	}}
	m := metrics.New()

	records, summary, err := New(fetcher, WithMetrics(m)).Collect(context.Background(), Range{Start: 9, End: 11})
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(ids(records)) != "[9 11]" {
		t.Errorf("Expected records [9 11], got %v", ids(records))
	}
	if summary.Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got %d", summary.Duplicates)
	}
}

func TestCollect_InvalidRange(t *testing.T) {
	tests := []Range{
		{Start: 0, End: 3},
		{Start: -5, End: -1},
		{Start: 10, End: 9},
	}

	for _, r := range tests {
		fetcher := &fakeFetcher{}
		_, _, err := New(fetcher).Collect(context.Background(), r)
		if !errors.Is(err, ErrInvalidRange) {
			t.Errorf("Collect(%+v) error = %v, want ErrInvalidRange", r, err)
		}
		if len(fetcher.calls) != 0 {
			t.Errorf("Expected no fetches for %+v", r)
		}
	}
}

func TestCollect_SingleID(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[int]string{25: pokemonJSON(25, "pikachu")}}
	records, _, err := New(fetcher).Collect(context.Background(), Range{Start: 25, End: 25})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Name != "pikachu" {
		t.Errorf("Unexpected records: %+v", records)
	}
}

func TestCollect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := &fakeFetcher{bodies: map[int]string{
		1: pokemonJSON(1, "bulbasaur"),
		2: pokemonJSON(2, "ivysaur"),
		3: pokemonJSON(3, "venusaur"),
	}}
	c := New(fetcher, WithObserver(ObserverFunc(func(r Result) {
		if r.ID == 2 {
			cancel()
		}
	})))

	records, _, err := c.Collect(ctx, Range{Start: 1, End: 3})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if fmt.Sprint(ids(records)) != "[1 2]" {
		t.Errorf("Expected partial records [1 2], got %v", ids(records))
	}
}

func TestCollect_HugeRangeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	records, _, err := New(fetcher).Collect(ctx, Range{Start: 1, End: math.MaxInt})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(records) != 0 || len(fetcher.calls) != 0 {
		t.Errorf("Expected no fetches, got calls %v", fetcher.calls)
	}
}

func TestCollect_RangeEndingAtMaxInt(t *testing.T) {
	fetcher := &fakeFetcher{}
	done := make(chan struct{})
	var summary Summary
	go func() {
		defer close(done)
		_, summary, _ = New(fetcher).Collect(context.Background(), Range{Start: math.MaxInt - 1, End: math.MaxInt})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Collect did not stop at the last id")
	}
	if len(fetcher.calls) != 2 || summary.FetchFailed != 2 {
		t.Errorf("Expected 2 failed fetches, got calls %v summary %+v", fetcher.calls, summary)
	}
}

func TestRange(t *testing.T) {
	if KantoRange.Len() != 151 {
		t.Errorf("Expected Kanto range of 151, got %d", KantoRange.Len())
	}
	if (Range{Start: 5, End: 4}).Len() != 0 {
		t.Error("Expected empty range length 0")
	}
	if err := KantoRange.Validate(); err != nil {
		t.Errorf("Kanto range should be valid: %v", err)
	}
}

func TestOutcomeString(t *testing.T) {
	tests := map[Outcome]string{
		OutcomeOK:          "ok",
		OutcomeFetchFailed: "fetch_failed",
		OutcomeMalformed:   "malformed",
		OutcomeDuplicate:   "duplicate",
		Outcome(42):        "unknown",
	}
	for o, want := range tests {
		if o.String() != want {
			t.Errorf("Outcome(%d).String() = %s, want %s", int(o), o.String(), want)
		}
	}
}
