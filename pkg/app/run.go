// Package app provides the convocore entry point: configuration, wiring,
// and the run loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flemzord/convocore/internal/config"
	"github.com/flemzord/convocore/internal/conversation"
	"github.com/flemzord/convocore/internal/cron"
	"github.com/flemzord/convocore/internal/gateway"
	"github.com/flemzord/convocore/internal/logging"
	"github.com/flemzord/convocore/internal/provider/anthropic"
	"github.com/flemzord/convocore/internal/ratelimit"
	"github.com/flemzord/convocore/internal/store/sqlite"
	"github.com/flemzord/convocore/internal/telemetry"
	"github.com/flemzord/convocore/internal/token"
)

// shutdownTimeout bounds the graceful stop of the gateway and scheduler.
const shutdownTimeout = 10 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads configuration, wires the service, and blocks until a shutdown
// signal is received.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	// Secrets from config are redacted from all log output.
	redactor := logging.NewRedactor()
	redactor.AddSecret(cfg.Server.AuthToken)
	redactor.AddSecret(cfg.Provider.Anthropic.APIKey)
	logger := logging.NewLogger(os.Stderr, params.LogLevel, redactor)

	stopTracing, err := telemetry.Setup(context.Background(), cfg.Telemetry.OTLPEndpoint, params.Version)
	if err != nil {
		return err
	}

	repo, closeRepo, err := buildRepository(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	summarizer := anthropic.New(cfg.Provider.Anthropic)
	if err := summarizer.Validate(); err != nil {
		return err
	}

	limiter := ratelimit.New()
	hub := gateway.NewEventHub()

	svc := conversation.NewService(
		repo,
		summarizer,
		token.NewEstimator(),
		conversation.Config{
			MaxMessages:        cfg.Context.MaxMessages,
			MaxTokens:          cfg.Context.MaxTokens,
			MaxImages:          cfg.Context.MaxImages,
			SummarizeThreshold: cfg.Summarization.Threshold,
		},
		conversation.WithLogger(logger),
		conversation.WithEventSink(hub),
	)

	gw := gateway.New(svc, limiter, hub, gateway.Config{
		Bind:      cfg.Server.Listen,
		AuthToken: cfg.Server.AuthToken,
		Limits:    gatewayLimits(cfg.Limits),
	}, logger)

	scheduler := cron.NewScheduler(logger)
	maxIdle := cfg.Maintenance.MaxIdle.Std()
	schedule := "@every " + cfg.Maintenance.PruneInterval.Std().String()
	jobs := []cron.Job{
		&cron.StateCleanupJob{Pruner: svc, MaxIdle: maxIdle, Logger: logger, ScheduleExpr: schedule},
		&cron.BucketCleanupJob{Limiter: limiter, MaxIdle: maxIdle, Logger: logger, ScheduleExpr: schedule},
	}
	for _, job := range jobs {
		if err := scheduler.RegisterJob(job); err != nil {
			return err
		}
	}

	if err := gw.Start(); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}

	logger.Info("convocore started",
		"version", params.Version,
		"listen", cfg.Server.Listen,
		"storage", cfg.Storage.Driver,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := gw.Stop(stopCtx); err != nil {
		logger.Error("gateway stop failed", "error", err)
	}
	if err := scheduler.Stop(stopCtx); err != nil {
		logger.Error("scheduler stop failed", "error", err)
	}
	if err := stopTracing(stopCtx); err != nil {
		logger.Error("trace shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildRepository selects the history store by configured driver.
func buildRepository(cfg *config.Config, logger *slog.Logger) (conversation.Repository, func(), error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		repo, db, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sqlite store opened", "path", cfg.Storage.Path)
		return repo, func() { _ = db.Close() }, nil
	case "memory":
		logger.Info("using in-memory store; history is lost on restart")
		return conversation.NewInMemoryRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown storage driver %q", cfg.Storage.Driver)
	}
}

// gatewayLimits converts configured limits into the gateway's form.
func gatewayLimits(limits map[string]config.Limit) map[string]gateway.Limit {
	if len(limits) == 0 {
		return nil
	}
	out := make(map[string]gateway.Limit, len(limits))
	for name, l := range limits {
		out[name] = gateway.Limit{Requests: l.Requests, Window: l.Window.Std()}
	}
	return out
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/convocore/convocore.yaml →
// ~/.config/convocore/convocore.yaml → ./convocore.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "convocore", "convocore.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "convocore", "convocore.yaml"))
	}

	candidates = append(candidates, "convocore.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
