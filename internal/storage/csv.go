package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/normalize"
)

const csvExt = ".csv"

// ErrCSVNotFound is returned when no candidate path points at a CSV file
var ErrCSVNotFound = errors.New("csv file not found")

// EnsureCSVExt appends .csv to name if it doesn't already end with it
func EnsureCSVExt(name string) string {
	if strings.HasSuffix(name, csvExt) {
		return name
	}
	return name + csvExt
}

// WriteCSV writes records with a header row in normalize.Columns order.
// The file is written next to path and renamed into place, so a failed write never
// leaves a truncated CSV behind. An empty slice produces a header-only file.
func WriteCSV(path string, records []normalize.Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if err := encodeCSV(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}

	return nil
}

func encodeCSV(w io.Writer, records []normalize.Record) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	cw := csv.NewWriter(bw)

	if err := cw.Write(normalize.Columns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(recordToRow(rec)); err != nil {
			return fmt.Errorf("record %d: %w", rec.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

func recordToRow(rec normalize.Record) []string {
	row := make([]string, 0, len(normalize.Columns))
	row = append(row,
		strconv.Itoa(rec.ID),
		rec.Name,
		strconv.Itoa(rec.Height),
		strconv.Itoa(rec.Weight),
	)
	row = append(row, rec.Types[:]...)
	row = append(row, rec.Abilities[:]...)
	for _, s := range rec.Stats {
		if s == nil {
			row = append(row, "")
			continue
		}
		row = append(row, strconv.Itoa(*s))
	}
	return row
}

// ReadCSV reads a file written by WriteCSV. Columns are matched by header name,
// so their order in the file doesn't matter; every schema column must be present.
func ReadCSV(path string) ([]normalize.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCSVNotFound, path)
		}
		return nil, fmt.Errorf("opening csv %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	// skip a UTF-8 BOM left by spreadsheet tools
	if b, _ := br.Peek(3); len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		br.Discard(3)
	}

	r := csv.NewReader(br)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv file is empty: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	cols := make([]int, len(normalize.Columns))
	for i, name := range normalize.Columns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("csv %s: missing column %q", path, name)
		}
		cols[i] = pos
	}

	var records []normalize.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv %s: %w", path, err)
		}

		line, _ := r.FieldPos(0)
		values := make([]string, len(cols))
		for i, pos := range cols {
			values[i] = row[pos]
		}

		rec, err := rowToRecord(values)
		if err != nil {
			return nil, fmt.Errorf("csv %s line %d: %w", path, line, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// rowToRecord parses values ordered as normalize.Columns
func rowToRecord(values []string) (normalize.Record, error) {
	var rec normalize.Record
	var err error

	if rec.ID, err = parseInt("id", values[0]); err != nil {
		return rec, err
	}
	rec.Name = values[1]
	if rec.Height, err = parseOptionalInt("height", values[2]); err != nil {
		return rec, err
	}
	if rec.Weight, err = parseOptionalInt("weight", values[3]); err != nil {
		return rec, err
	}

	next := 4
	for i := range rec.Types {
		rec.Types[i] = values[next]
		next++
	}
	for i := range rec.Abilities {
		rec.Abilities[i] = values[next]
		next++
	}
	for i := range rec.Stats {
		raw := strings.TrimSpace(values[next])
		next++
		if raw == "" {
			continue
		}
		v, err := parseInt(normalize.StatColumns[i], raw)
		if err != nil {
			return rec, err
		}
		rec.Stats[i] = &v
	}

	return rec, nil
}

func parseInt(column, s string) (int, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.Atoi(s)
	if err != nil {
		// pandas writes nullable ints as floats ("45.0")
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil && f == float64(int(f)) {
			return int(f), nil
		}
		return 0, fmt.Errorf("column %s: %q is not an integer", column, s)
	}
	return v, nil
}

func parseOptionalInt(column, s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return parseInt(column, s)
}

// ResolveCSV returns the absolute path of the first candidate that names an
// existing regular file. Each candidate gets a .csv extension if it lacks one.
func ResolveCSV(candidates ...string) (string, error) {
	tried := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		abs, err := filepath.Abs(EnsureCSVExt(c))
		if err != nil {
			continue
		}
		tried = append(tried, abs)
		if fi, err := os.Stat(abs); err == nil && fi.Mode().IsRegular() {
			return abs, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrCSVNotFound, strings.Join(tried, ", "))
}
