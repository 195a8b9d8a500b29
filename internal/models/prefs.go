// ABOUTME: Per-user model preference resolution backed by the store.
// ABOUTME: Falls back to the registry default when no valid preference exists.

package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heliomancer/aplmint/internal/store"
)

// ErrUnknownModel is returned when a selection names an identifier that is
// not in the registry.
var ErrUnknownModel = errors.New("unknown model")

// PreferenceStore is what Prefs needs from storage.
type PreferenceStore interface {
	GetPreference(ctx context.Context, userID int64) (*store.UserPreference, error)
	SetPreference(ctx context.Context, userID int64, model string) error
}

// Prefs resolves and updates each user's selected completion model.
type Prefs struct {
	store    PreferenceStore
	registry *Registry
	logger   *slog.Logger
}

// NewPrefs creates a preference resolver over the given store and registry.
func NewPrefs(st PreferenceStore, registry *Registry, logger *slog.Logger) *Prefs {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prefs{
		store:    st,
		registry: registry,
		logger:   logger.With("component", "models"),
	}
}

// Registry returns the registry this resolver validates against.
func (p *Prefs) Registry() *Registry {
	return p.registry
}

// Selected returns the provider identifier of the user's chosen model. A
// user with no stored preference gets the registry default. A stored value
// that is no longer in the registry (the deployment's model list changed)
// also falls back to the default rather than dispatching to a dead model.
// A store failure is propagated: guessing the default on an outage could
// silently use the wrong model.
func (p *Prefs) Selected(ctx context.Context, userID int64) (string, error) {
	pref, err := p.store.GetPreference(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return p.registry.Default().ID, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading model preference: %w", err)
	}

	if !p.registry.Contains(pref.Model) {
		p.logger.Warn("stored model preference no longer registered, using default",
			"user_id", userID,
			"stored_model", pref.Model,
			"default", p.registry.Default().ID,
		)
		return p.registry.Default().ID, nil
	}
	return pref.Model, nil
}

// Select stores the user's model choice. Identifiers outside the registry
// are rejected with ErrUnknownModel instead of being persisted.
func (p *Prefs) Select(ctx context.Context, userID int64, modelID string) error {
	if !p.registry.Contains(modelID) {
		return fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}

	if err := p.store.SetPreference(ctx, userID, modelID); err != nil {
		return fmt.Errorf("storing model preference: %w", err)
	}

	p.logger.Info("model preference updated", "user_id", userID, "model", modelID)
	return nil
}
