package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/app"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/collector"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	start := flag.Int("start", 0, "First Pokemon ID (prompted if unset)")
	end := flag.Int("end", 0, "Last Pokemon ID, inclusive (prompted if unset)")
	kanto := flag.Bool("kanto", false, "Collect the original 151 Pokemon")
	output := flag.String("output", "", "Output CSV file name (prompted if unset)")
	flag.Parse()

	a, err := app.Setup(*configPath, config.DefaultCollectLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := collector.SetupSignalHandler(a.Log(), a.Interrupt)
	a.StartServers(ctx)

	// unset bounds are prompted for
	opts := app.CollectOptions{Start: *start, End: *end, Output: *output}
	if *kanto {
		r := collector.KantoRange
		opts.Range = &r
	}

	_, err = a.Collect(ctx, opts)
	cancel()
	a.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}
