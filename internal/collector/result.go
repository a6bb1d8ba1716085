package collector

import (
	"errors"
	"fmt"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/normalize"
)

// ErrInvalidRange is returned for ranges that can't be walked
var ErrInvalidRange = errors.New("invalid id range")

// Range is an inclusive span of pokemon ids
type Range struct {
	Start int
	End   int
}

// KantoRange covers the original 151 pokemon
var KantoRange = Range{Start: 1, End: 151}

// Validate checks that the range is non-empty and starts at a positive id
func (r Range) Validate() error {
	if r.Start < 1 {
		return fmt.Errorf("%w: start id %d must be positive", ErrInvalidRange, r.Start)
	}
	if r.End < r.Start {
		return fmt.Errorf("%w: end id %d is before start id %d", ErrInvalidRange, r.End, r.Start)
	}
	return nil
}

// Len returns how many ids the range covers
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Outcome tags what happened to one id
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeFetchFailed
	OutcomeMalformed
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFetchFailed:
		return "fetch_failed"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome for one requested id.
// Record is only meaningful when Outcome is OutcomeOK; Err is set otherwise.
type Result struct {
	ID      int
	Outcome Outcome
	Record  normalize.Record
	Err     error
}

// OK reports whether the result carries a usable record
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Summary counts outcomes for one Collect run
type Summary struct {
	Requested   int
	Collected   int
	FetchFailed int
	Malformed   int
	Duplicates  int
}

func (s *Summary) add(r Result) {
	s.Requested++
	switch r.Outcome {
	case OutcomeOK:
		s.Collected++
	case OutcomeFetchFailed:
		s.FetchFailed++
	case OutcomeMalformed:
		s.Malformed++
	case OutcomeDuplicate:
		s.Duplicates++
	}
}
