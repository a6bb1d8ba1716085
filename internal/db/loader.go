package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/metrics"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/storage"
)

// Stage is how far a load got
type Stage int

const (
	StageStart Stage = iota
	StageCSVResolved
	StageConnected
	StageSchemaReady
	StageRowsInserted
	StageCommitted
	StageClosed
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageCSVResolved:
		return "csv_resolved"
	case StageConnected:
		return "connected"
	case StageSchemaReady:
		return "schema_ready"
	case StageRowsInserted:
		return "rows_inserted"
	case StageCommitted:
		return "committed"
	case StageClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Report summarizes a load. Stage is the furthest stage reached; a run that got
// through the row loop ends at StageClosed whether or not the commit succeeded.
type Report struct {
	Stage     Stage
	Rows      int
	Inserted  int
	Skipped   int
	Failed    int
	Committed bool
}

// Loader moves a CSV file into the pokemon table, skipping ids already present
type Loader struct {
	open    Opener
	log     *logging.Logger
	metrics *metrics.Metrics
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

func WithLogger(l *logging.Logger) LoaderOption {
	return func(ld *Loader) { ld.log = l.Component("Loader") }
}

func WithMetrics(m *metrics.Metrics) LoaderOption {
	return func(ld *Loader) { ld.metrics = m }
}

// NewLoader creates a Loader that opens its Store with open
func NewLoader(open Opener, opts ...LoaderOption) *Loader {
	l := &Loader{open: open}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads csvPath and inserts every row whose id isn't in the table yet,
// all inside one transaction committed at the end.
// Errors are returned only for failures that abort the run: unreadable CSV,
// connection, schema setup, starting the transaction, or a cancelled context.
// Per-row failures and a failed commit are logged and reported in Report.
func (l *Loader) Load(ctx context.Context, csvPath string) (report Report, err error) {
	stageStart := time.Now()
	advance := func(s Stage) {
		report.Stage = s
		l.metrics.ObserveStage(s.String(), time.Since(stageStart))
		stageStart = time.Now()
	}

	records, err := storage.ReadCSV(csvPath)
	if err != nil {
		l.log.Errorf("Failed to read %s: %v", csvPath, err)
		return report, err
	}
	report.Rows = len(records)
	advance(StageCSVResolved)
	l.log.Infof("Read %d rows from %s", len(records), csvPath)

	store, err := l.open(ctx)
	if err != nil {
		l.log.Errorf("Failed to connect to database: %v", err)
		return report, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			l.log.Warnf("Failed to close database connection: %v", cerr)
		} else {
			l.log.Infof("Database connection closed")
		}
		if report.Stage >= StageRowsInserted {
			report.Stage = StageClosed
		}
	}()
	advance(StageConnected)

	if err := store.EnsureSchema(ctx); err != nil {
		l.log.Errorf("Failed to set up schema: %v", err)
		return report, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	advance(StageSchemaReady)
	l.log.Infof("Database and table ready")

	batch, err := store.BeginBatch(ctx)
	if err != nil {
		l.log.Errorf("Failed to start transaction: %v", err)
		return report, err
	}
	defer func() {
		if !report.Committed {
			batch.Rollback(context.Background())
		}
	}()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			l.log.Warnf("Load interrupted after %d rows, rolling back", report.Inserted+report.Skipped+report.Failed)
			return report, err
		}

		exists, err := batch.Exists(ctx, rec.ID)
		if err != nil {
			l.log.Errorf("Failed to check Pokemon ID %d: %v", rec.ID, err)
			report.Failed++
			l.metrics.LoaderRow("failed")
			continue
		}
		if exists {
			l.log.Infof("Skipping duplicate entry for Pokemon ID %d", rec.ID)
			report.Skipped++
			l.metrics.LoaderRow("skipped")
			continue
		}

		if err := batch.Insert(ctx, rec); err != nil {
			l.log.Errorf("Failed to insert Pokemon ID %d: %v", rec.ID, err)
			report.Failed++
			l.metrics.LoaderRow("failed")
			continue
		}
		report.Inserted++
		l.metrics.LoaderRow("inserted")
		l.log.Infof("Inserted Pokemon ID %d", rec.ID)
	}
	advance(StageRowsInserted)
	l.log.Infof("Inserted %d rows, skipped %d duplicates, %d failed", report.Inserted, report.Skipped, report.Failed)

	if err := batch.Commit(ctx); err != nil {
		l.log.Errorf("Commit failed, inserted rows may not be saved: %v", err)
		return report, nil
	}
	report.Committed = true
	advance(StageCommitted)
	l.log.Infof("Data committed to database")

	return report, nil
}
