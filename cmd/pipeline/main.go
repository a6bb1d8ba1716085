package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/app"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/collector"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/config"
)

// pipeline runs collect then load in one process
func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	start := flag.Int("start", 0, "First Pokemon ID (prompted if unset)")
	end := flag.Int("end", 0, "Last Pokemon ID, inclusive (prompted if unset)")
	kanto := flag.Bool("kanto", false, "Collect the original 151 Pokemon")
	output := flag.String("output", "", "Intermediate CSV file name (prompted if unset)")
	flag.Parse()

	a, err := app.Setup(*configPath, config.DefaultCollectLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := a.Log().Component("Pipeline")

	ctx, cancel := collector.SetupSignalHandler(a.Log(), a.Interrupt)
	a.StartServers(ctx)
	exit := func(code int) {
		cancel()
		a.Close()
		os.Exit(code)
	}

	// unset bounds are prompted for
	opts := app.CollectOptions{Start: *start, End: *end, Output: *output}
	if *kanto {
		r := collector.KantoRange
		opts.Range = &r
	}

	startTime := time.Now()

	log.Infof("STEP 1: COLLECTING POKEMON DATA")
	path, err := a.Collect(ctx, opts)
	if err != nil {
		log.Errorf("Collect failed, not loading: %v", err)
		exit(1)
	}

	log.Infof("STEP 2: LOADING %s", path)
	report, err := a.Load(ctx, app.LoadOptions{CSV: path})
	if err != nil {
		exit(1)
	}

	log.Infof("PIPELINE COMPLETE in %s: %d inserted, %d skipped, %d failed",
		time.Since(startTime).Round(time.Second), report.Inserted, report.Skipped, report.Failed)
	if !report.Committed {
		exit(1)
	}
	exit(0)
}
