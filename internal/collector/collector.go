package collector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/metrics"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/normalize"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/pokeapi"
)

// Fetcher returns the raw API record for one id
type Fetcher interface {
	Fetch(ctx context.Context, id int) (pokeapi.RawRecord, error)
}

// Observer is notified of every per-id result, in order
type Observer interface {
	Observe(Result)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Result)

func (f ObserverFunc) Observe(r Result) { f(r) }

// maxPrealloc bounds the up-front allocation for a range
const maxPrealloc = 1 << 12

// Collector walks an id range one request at a time, normalizing each record
type Collector struct {
	fetcher  Fetcher
	log      *logging.Logger
	metrics  *metrics.Metrics
	observer Observer
}

// Option configures a Collector
type Option func(*Collector)

func WithLogger(l *logging.Logger) Option {
	return func(c *Collector) { c.log = l.Component("Collector") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Collector) { c.metrics = m }
}

func WithObserver(o Observer) Option {
	return func(c *Collector) { c.observer = o }
}

// New creates a Collector around a Fetcher
func New(fetcher Fetcher, opts ...Option) *Collector {
	c := &Collector{fetcher: fetcher}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect fetches and normalizes every id in r in ascending order.
// Per-id failures are logged and skipped; only a cancelled context stops the walk
// early, in which case the records gathered so far are returned with ctx.Err().
func (c *Collector) Collect(ctx context.Context, r Range) ([]normalize.Record, Summary, error) {
	var summary Summary
	if err := r.Validate(); err != nil {
		return nil, summary, err
	}

	// the range is user input; size up front for at most maxPrealloc ids
	size := min(r.Len(), maxPrealloc)
	records := make([]normalize.Record, 0, size)

	// Bloom filter for duplicate upstream ids; a hit is confirmed against the batch
	seen := bloom.NewWithEstimates(uint(size), 0.001)

	c.log.Infof("Collecting pokemon %d-%d (%d ids)", r.Start, r.End, r.Len())
	for id := r.Start; ; id++ {
		if err := ctx.Err(); err != nil {
			c.log.Warnf("Stopping at id %d: %v", id, err)
			return records, summary, err
		}

		result := c.process(ctx, id)
		if result.OK() {
			key := strconv.Itoa(result.Record.ID)
			if seen.TestString(key) && containsID(records, result.Record.ID) {
				result = Result{
					ID:      id,
					Outcome: OutcomeDuplicate,
					Err:     fmt.Errorf("pokemon %d already collected", result.Record.ID),
				}
			} else {
				seen.AddString(key)
				records = append(records, result.Record)
			}
		}

		c.report(result)
		summary.add(result)

		// compared before incrementing so End == math.MaxInt terminates
		if id == r.End {
			break
		}
	}

	c.log.Infof("Collected %d/%d pokemon (%d fetch failures, %d malformed, %d duplicates)",
		summary.Collected, summary.Requested, summary.FetchFailed, summary.Malformed, summary.Duplicates)
	return records, summary, nil
}

// process runs fetch then normalize for a single id
func (c *Collector) process(ctx context.Context, id int) Result {
	start := time.Now()
	raw, err := c.fetcher.Fetch(ctx, id)
	c.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		return Result{ID: id, Outcome: OutcomeFetchFailed, Err: err}
	}

	rec, err := normalize.Normalize(raw)
	if err != nil {
		return Result{ID: id, Outcome: OutcomeMalformed, Err: err}
	}

	return Result{ID: id, Outcome: OutcomeOK, Record: rec}
}

// report logs non-OK results once and fans the result out to metrics and observer
func (c *Collector) report(r Result) {
	switch r.Outcome {
	case OutcomeFetchFailed:
		var statusErr *pokeapi.StatusError
		if errors.As(r.Err, &statusErr) {
			c.log.Errorf("Request failed for Pokemon ID %d Status Code: %d", r.ID, statusErr.StatusCode)
		} else {
			c.log.Errorf("Request failed for Pokemon ID %d: %v", r.ID, r.Err)
		}
	case OutcomeMalformed:
		c.log.Errorf("Skipping malformed record for Pokemon ID %d: %v", r.ID, r.Err)
	case OutcomeDuplicate:
		c.log.Warnf("Skipping duplicate record for Pokemon ID %d: %v", r.ID, r.Err)
	}

	c.metrics.CollectorResult(r.Outcome.String())
	if c.observer != nil {
		c.observer.Observe(r)
	}
}

func containsID(records []normalize.Record, id int) bool {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].ID == id {
			return true
		}
	}
	return false
}
