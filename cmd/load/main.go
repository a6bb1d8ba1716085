package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/app"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/collector"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	csvFile := flag.String("csv", "", "CSV file to load (prompted if unset)")
	driver := flag.String("driver", "", "Database driver: postgres, sqlite or libsql (overrides DATABASE_DRIVER)")
	flag.Parse()

	a, err := app.Setup(*configPath, config.DefaultLoadLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *driver != "" {
		a.Config().Database.Driver = *driver
		if err := a.Config().Validate(); err != nil {
			a.Log().Errorf("%v", err)
			a.Close()
			os.Exit(1)
		}
	}

	ctx, cancel := collector.SetupSignalHandler(a.Log(), a.Interrupt)
	a.StartServers(ctx)

	_, err = a.Load(ctx, app.LoadOptions{CSV: *csvFile})
	cancel()
	a.Close()
	if err != nil {
		os.Exit(1)
	}
}
