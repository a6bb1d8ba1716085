package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/config"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/metrics"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/notify"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/progress"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/prompt"
)

// App holds everything a command wires up once at startup
type App struct {
	cfg      *config.Config
	log      *logging.Logger
	metrics  *metrics.Metrics
	hub      *progress.Hub
	notifier *notify.WebhookClient
	prompter *prompt.Prompter
	out      io.Writer
}

// Setup loads .env and configuration, opens the log file and builds an App on
// stdin/stdout. defaultLog is used when no LOG_FILE is configured.
func Setup(configPath, defaultLog string) (*App, error) {
	envPath := config.LoadDotEnv()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.LogFile == "" {
		cfg.LogFile = defaultLog
	}

	log, err := logging.New(cfg.LogFile, os.Stdout, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	if envPath != "" {
		log.Infof("Loaded .env from: %s", envPath)
	}

	return newApp(cfg, log, prompt.Stdio(), os.Stdout), nil
}

// New builds an App from explicit parts
func New(cfg *config.Config, log *logging.Logger, in io.Reader, out io.Writer) *App {
	return newApp(cfg, log, prompt.New(in, out), out)
}

func newApp(cfg *config.Config, log *logging.Logger, p *prompt.Prompter, out io.Writer) *App {
	a := &App{
		cfg:      cfg,
		log:      log,
		metrics:  metrics.New(),
		prompter: p,
		out:      out,
	}
	if cfg.ProgressAddr != "" {
		a.hub = progress.NewHub(log)
	}
	if cfg.WebhookURL != "" {
		a.notifier = notify.NewWebhookClient(cfg.WebhookURL)
	}
	return a
}

// Config returns the loaded configuration
func (a *App) Config() *config.Config { return a.cfg }

// Log returns the root logger
func (a *App) Log() *logging.Logger { return a.log }

// StartServers starts the optional metrics and progress endpoints; they stop with ctx
func (a *App) StartServers(ctx context.Context) {
	if a.cfg.MetricsAddr != "" {
		a.metrics.Serve(ctx, a.cfg.MetricsAddr, a.log)
	}
	if a.hub != nil {
		a.hub.Serve(ctx, a.cfg.ProgressAddr)
	}
}

// Interrupt runs on the first shutdown signal. Progress subscribers are
// disconnected right away; the run itself stops through its context.
func (a *App) Interrupt() {
	if a.hub == nil {
		return
	}
	a.log.Component("App").Infof("Disconnecting %d progress subscriber(s)", a.hub.ClientCount())
	a.hub.Close()
}

// Close flushes and closes the log
func (a *App) Close() {
	if a.hub != nil {
		a.hub.Close()
	}
	a.log.Close()
}

// notify sends a webhook summary if one is configured. Failures are logged only.
func (a *App) notify(ctx context.Context, payload notify.WebhookPayload) {
	if a.notifier == nil {
		return
	}
	// still report interrupted runs
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := a.notifier.Send(sendCtx, payload); err != nil {
		a.log.Component("Notify").Warnf("Failed to send webhook: %v", err)
	}
}
