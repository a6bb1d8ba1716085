package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/collector"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/notify"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/pokeapi"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/prompt"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/storage"
)

// DefaultOutput is suggested when the output name prompt is left empty
const DefaultOutput = "pokemon_data.csv"

// CollectOptions pre-supplies answers; zero values are asked for interactively.
// Range, when set, takes precedence over Start and End.
type CollectOptions struct {
	Range  *collector.Range
	Start  int
	End    int
	Output string
}

// Collect walks the id range, writes the CSV and returns its absolute path.
// An interrupted walk still writes the records gathered so far.
func (a *App) Collect(ctx context.Context, opts CollectOptions) (string, error) {
	log := a.log.Component("Collect")
	start := time.Now()

	r, err := a.resolveRange(opts)
	if err != nil {
		log.Errorf("%v", err)
		return "", err
	}
	if err := r.Validate(); err != nil {
		log.Errorf("%v", err)
		return "", err
	}

	output := opts.Output
	if output == "" {
		output, err = a.prompter.String(fmt.Sprintf("Enter the output CSV file name (e.g., %s): ", DefaultOutput))
		if err != nil {
			log.Errorf("Failed to read output file name: %v", err)
			return "", err
		}
	}
	if output == "" {
		output = DefaultOutput
	}
	output = storage.EnsureCSVExt(output)

	client := pokeapi.NewClient(
		pokeapi.WithBaseURL(a.cfg.API.BaseURL),
		pokeapi.WithTimeout(a.cfg.API.Timeout),
		pokeapi.WithLogger(a.log),
	)
	copts := []collector.Option{collector.WithLogger(a.log), collector.WithMetrics(a.metrics)}
	if a.hub != nil {
		copts = append(copts, collector.WithObserver(a.hub))
	}

	records, summary, collectErr := collector.New(client, copts...).Collect(ctx, r)
	if a.hub != nil {
		a.hub.Finish(summary)
	}
	if collectErr != nil && !errors.Is(collectErr, context.Canceled) {
		log.Errorf("Collection failed: %v", collectErr)
		a.notify(ctx, notify.NewCollectPayload(a.log.RunID(), r, summary, "", time.Since(start), collectErr))
		return "", collectErr
	}

	path, err := filepath.Abs(output)
	if err != nil {
		path = output
	}
	if err := storage.WriteCSV(path, records); err != nil {
		log.Errorf("Failed to save data to %s %v", output, err)
		a.notify(ctx, notify.NewCollectPayload(a.log.RunID(), r, summary, "", time.Since(start), err))
		return "", err
	}
	a.metrics.RecordsWritten(len(records))
	log.Infof("Data saved to %s at %s (save this path for SQL import)", output, path)

	a.notify(ctx, notify.NewCollectPayload(a.log.RunID(), r, summary, path, time.Since(start), collectErr))
	return path, collectErr
}

// resolveRange uses the preset range, asking only for the bounds left unset
func (a *App) resolveRange(opts CollectOptions) (collector.Range, error) {
	if opts.Range != nil {
		return *opts.Range, nil
	}

	r := collector.Range{Start: opts.Start, End: opts.End}
	if r.Start == 0 {
		start, err := a.askID("starting")
		if err != nil {
			return collector.Range{}, err
		}
		r.Start = start
	}
	if r.End == 0 {
		end, err := a.askID("ending")
		if err != nil {
			return collector.Range{}, err
		}
		r.End = end
	}
	return r, nil
}

func (a *App) askID(which string) (int, error) {
	id, err := a.prompter.Int(fmt.Sprintf("Enter the %s Pokemon ID: ", which))
	if errors.Is(err, prompt.ErrInvalidInteger) {
		return 0, fmt.Errorf("invalid input, please enter a valid integer for the %s Pokemon ID: %w", which, err)
	}
	return id, err
}
