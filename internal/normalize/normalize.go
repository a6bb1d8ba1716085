package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/pokeapi"
)

// ErrNoRecord is returned when there is nothing to normalize
var ErrNoRecord = errors.New("no record to normalize")

// MalformedError reports a present entry that lacks the nested leaf we read.
// Sparse data (short or missing lists) never produces this.
type MalformedError struct {
	Field    string
	Position int // -1 for top-level fields
	Reason   string
}

func (e *MalformedError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("malformed %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed %s[%d]: %s", e.Field, e.Position, e.Reason)
}

// leaf paths inside each list entry
var (
	typeLeaf    = []string{"type", "name"}
	abilityLeaf = []string{"ability", "name"}
	statLeaf    = []string{"base_stat"}
)

// Normalize flattens a raw API record into the fixed Record schema.
// The same input always yields the same Record.
func Normalize(raw pokeapi.RawRecord) (Record, error) {
	if raw == nil {
		return Record{}, ErrNoRecord
	}

	var rec Record

	id, present, err := decodeInt(raw["id"])
	if err != nil || !present {
		return Record{}, &MalformedError{Field: "id", Position: -1, Reason: "missing or not an integer"}
	}
	rec.ID = id

	if err := decodeOptional(raw["name"], &rec.Name); err != nil {
		return Record{}, &MalformedError{Field: "name", Position: -1, Reason: err.Error()}
	}
	if err := decodeOptional(raw["height"], &rec.Height); err != nil {
		return Record{}, &MalformedError{Field: "height", Position: -1, Reason: err.Error()}
	}
	if err := decodeOptional(raw["weight"], &rec.Weight); err != nil {
		return Record{}, &MalformedError{Field: "weight", Position: -1, Reason: err.Error()}
	}

	types, err := entries(raw, "types")
	if err != nil {
		return Record{}, err
	}
	for i := range TypeColumns {
		if len(types) <= i {
			break
		}
		name, err := leafString(types[i], typeLeaf)
		if err != nil {
			return Record{}, &MalformedError{Field: "types", Position: i, Reason: err.Error()}
		}
		rec.Types[i] = name
	}

	abilities, err := entries(raw, "abilities")
	if err != nil {
		return Record{}, err
	}
	for i := range AbilityColumns {
		if len(abilities) <= i {
			break
		}
		name, err := leafString(abilities[i], abilityLeaf)
		if err != nil {
			return Record{}, &MalformedError{Field: "abilities", Position: i, Reason: err.Error()}
		}
		rec.Abilities[i] = name
	}

	stats, err := entries(raw, "stats")
	if err != nil {
		return Record{}, err
	}
	for i := range StatColumns {
		if len(stats) <= i {
			break
		}
		v, err := leafInt(stats[i], statLeaf)
		if err != nil {
			return Record{}, &MalformedError{Field: "stats", Position: i, Reason: err.Error()}
		}
		rec.Stats[i] = &v
	}

	return rec, nil
}

// entries returns the list stored under key, treating a missing key or null as empty
func entries(raw pokeapi.RawRecord, key string) ([]json.RawMessage, error) {
	data, ok := raw[key]
	if !ok || isNull(data) {
		return nil, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &MalformedError{Field: key, Position: -1, Reason: "not a list"}
	}
	return list, nil
}

// descend walks nested object keys and returns the raw leaf
func descend(entry json.RawMessage, path []string) (json.RawMessage, error) {
	cur := entry
	for _, key := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("expected object holding %q", key)
		}
		next, ok := obj[key]
		if !ok || isNull(next) {
			return nil, fmt.Errorf("missing %q", key)
		}
		cur = next
	}
	return cur, nil
}

func leafString(entry json.RawMessage, path []string) (string, error) {
	leaf, err := descend(entry, path)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(leaf, &s); err != nil {
		return "", fmt.Errorf("%q is not a string", path[len(path)-1])
	}
	return s, nil
}

func leafInt(entry json.RawMessage, path []string) (int, error) {
	leaf, err := descend(entry, path)
	if err != nil {
		return 0, err
	}
	var v int
	if err := json.Unmarshal(leaf, &v); err != nil {
		return 0, fmt.Errorf("%q is not an integer", path[len(path)-1])
	}
	return v, nil
}

// decodeInt reports whether data held a non-null integer
func decodeInt(data json.RawMessage) (int, bool, error) {
	if len(data) == 0 || isNull(data) {
		return 0, false, nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, true, err
	}
	return v, true, nil
}

// decodeOptional leaves dst at its zero value when data is absent or null
func decodeOptional(data json.RawMessage, dst any) error {
	if len(data) == 0 || isNull(data) {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unexpected JSON type")
	}
	return nil
}

func isNull(data json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
