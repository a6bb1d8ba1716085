package app

import (
	"context"
	"net/url"
	"time"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/config"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/db"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/notify"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/storage"
)

// LoadOptions pre-supplies answers; zero values are asked for interactively
type LoadOptions struct {
	CSV string
}

// Load finds the CSV file and loads it into the configured database
func (a *App) Load(ctx context.Context, opts LoadOptions) (db.Report, error) {
	log := a.log.Component("Load")
	start := time.Now()

	path, err := a.resolveCSV(opts.CSV)
	if err != nil {
		log.Errorf("%v. Exiting.", err)
		return db.Report{}, err
	}

	dbCfg := a.cfg.Database
	if needsPassword(dbCfg) {
		dbCfg.Password, err = a.prompter.Password("Enter your database password: ")
		if err != nil {
			log.Errorf("Failed to read password: %v", err)
			return db.Report{}, err
		}
	}

	loader := db.NewLoader(db.NewOpener(dbCfg, a.log),
		db.WithLogger(a.log),
		db.WithMetrics(a.metrics),
	)
	report, err := loader.Load(ctx, path)
	if err != nil {
		log.Errorf("Load stopped at stage %s. Exiting.", report.Stage)
	}

	a.notify(ctx, notify.NewLoadPayload(a.log.RunID(), report, path, time.Since(start), err))
	return report, err
}

// resolveCSV looks for name in the working directory, then asks for a full path
func (a *App) resolveCSV(name string) (string, error) {
	log := a.log.Component("Load")

	if name == "" {
		var err error
		name, err = a.prompter.String("Enter the CSV file name (e.g., Kanto.csv): ")
		if err != nil {
			return "", err
		}
	}

	path, err := storage.ResolveCSV(name)
	if err == nil {
		log.Infof("Found CSV file: %s", path)
		return path, nil
	}

	log.Warnf("File %s not found in current directory.", storage.EnsureCSVExt(name))
	full, err := a.prompter.String("Enter the full path to the CSV file: ")
	if err != nil {
		return "", err
	}
	path, err = storage.ResolveCSV(full)
	if err != nil {
		return "", err
	}
	log.Infof("Found CSV file: %s", path)
	return path, nil
}

// needsPassword reports whether a Postgres connection has no password from
// the environment or its URL
func needsPassword(cfg config.DatabaseConfig) bool {
	if cfg.Driver != config.DriverPostgres || cfg.Password != "" {
		return false
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.User == nil {
		return true
	}
	_, ok := u.User.Password()
	return !ok
}
