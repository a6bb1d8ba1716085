package pokeapi

import (
	"encoding/json"
	"fmt"
)

// RawRecord is the unvalidated JSON object returned by /api/v2/pokemon/{id}.
// Fields are kept as raw JSON so the normalizer decides what to read.
type RawRecord map[string]json.RawMessage

// StatusError is returned when the API answers with a non-2xx status
type StatusError struct {
	ID         int
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pokemon %d: API returned status %d", e.ID, e.StatusCode)
}

// FetchError wraps a transport or decode failure for one id
type FetchError struct {
	ID  int
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("pokemon %d: %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
