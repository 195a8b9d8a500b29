// ABOUTME: Bot orchestrator wiring store, gate, admission, bridge, and HTTP server.
// ABOUTME: Owns component lifecycle from startup through graceful shutdown.

package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/heliomancer/aplmint/internal/admission"
	"github.com/heliomancer/aplmint/internal/config"
	"github.com/heliomancer/aplmint/internal/dispatch"
	"github.com/heliomancer/aplmint/internal/gate"
	"github.com/heliomancer/aplmint/internal/metrics"
	"github.com/heliomancer/aplmint/internal/models"
	"github.com/heliomancer/aplmint/internal/quota"
	"github.com/heliomancer/aplmint/internal/store"
	"github.com/heliomancer/aplmint/internal/telegram"
)

// Bot orchestrates the aplmint components: the persistent store, the
// per-user gate, the admission controller, the Telegram bridge, and the
// health/metrics HTTP server.
type Bot struct {
	config     *config.Config
	store      store.Store
	gate       *gate.Gate
	controller *admission.Controller
	bridge     *telegram.Bridge
	metrics    *metrics.Metrics
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a fully wired bot from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := initStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	modelList := make([]models.Model, len(cfg.Models))
	for i, m := range cfg.Models {
		modelList[i] = models.Model{Name: m.Name, ID: m.ID}
	}
	registry, err := models.NewRegistry(modelList)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("building model registry: %w", err)
	}

	g := gate.New()
	m := metrics.New(g.InFlight)
	prefs := models.NewPrefs(st, registry, logger)
	tracker := quota.New(st, cfg.Quota.DailyLimit)
	dispatcher := dispatch.NewClient(
		cfg.OpenRouter.APIKey,
		cfg.OpenRouter.Referer,
		cfg.OpenRouter.Title,
		dispatch.WithTimeout(cfg.OpenRouter.Timeout),
	)

	b := &Bot{
		config:  cfg,
		store:   st,
		gate:    g,
		metrics: m,
		logger:  logger,
	}

	bridge, err := telegram.NewBridge(cfg.Telegram.Token, prefs, tracker.Limit(), logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating telegram bridge: %w", err)
	}
	b.bridge = bridge

	b.controller = admission.New(g, tracker, prefs, dispatcher, bridge, st, logger,
		admission.WithRecorder(m),
	)
	bridge.SetHandler(b.controller)

	b.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: b.routes(),
	}

	return b, nil
}

// initStore creates the store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("APLMINT_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	return store.NewSQLiteStore(dbPath)
}

// routes builds the health/metrics HTTP handler.
func (b *Bot) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", b.handleHealth)
	if b.config.Metrics.Enabled {
		mux.Handle(b.config.Metrics.Path, b.metrics.Handler())
	}
	return mux
}

// handleHealth reports liveness and the current in-flight slot count.
func (b *Bot) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"in_flight": b.gate.InFlight(),
	})
}

// Run starts the HTTP server and the Telegram bridge and blocks until the
// context is cancelled or a component fails.
func (b *Bot) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		b.logger.Info("http server listening", "addr", b.httpServer.Addr)
		if err := b.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := b.bridge.Run(ctx); err != nil {
			errCh <- fmt.Errorf("telegram bridge: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		b.logger.Info("shutting down")
		return b.Shutdown()
	case err := <-errCh:
		_ = b.Shutdown()
		return err
	}
}

// Shutdown stops the HTTP server and closes the store.
func (b *Bot) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := b.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stopping http server: %w", err))
	}
	if err := b.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	return errors.Join(errs...)
}
