package collector

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
)

// exit is swapped out in tests
var exit = os.Exit

// SetupSignalHandler returns a context that is cancelled on SIGINT or SIGTERM so a
// range walk or load can stop between ids and still write what it has.
// onShutdown runs before the context is cancelled. A second signal exits immediately.
func SetupSignalHandler(log *logging.Logger, onShutdown func()) (context.Context, context.CancelFunc) {
	log = log.Component("Signal")
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigCh:
			log.Warnf("Received %v, finishing current id and shutting down...", sig)
		case <-ctx.Done():
			signal.Stop(sigCh)
			return
		}

		if onShutdown != nil {
			onShutdown()
		}
		cancel()

		sig := <-sigCh
		log.Errorf("Received second %v, forcing exit", sig)
		exit(1)
	}()

	return ctx, cancel
}
