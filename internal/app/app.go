// Package app wires the orchestrator's components into the single object
// the CLI and transport layer share.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"dev.helix.sqlmaint/internal/config"
	"dev.helix.sqlmaint/internal/history"
	"dev.helix.sqlmaint/internal/maintenance"
	"dev.helix.sqlmaint/internal/profilestore"
	"dev.helix.sqlmaint/internal/secrets"
)

// App holds every long-lived component a running instance needs.
type App struct {
	Config      *config.Config
	Profiles    *profilestore.Store
	Secrets     *secrets.Store
	History     *history.Store
	Emitter     *maintenance.Emitter
	Metrics     *maintenance.Metrics
	Coordinator *maintenance.Coordinator
	Registry    *prometheus.Registry
}

// New constructs an App from resolved configuration. Callers must call
// Close when done.
func New(cfg *config.Config) (*App, error) {
	profiles, err := profilestore.Open(profilesPath())
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	secretStore, err := secrets.Open(nil)
	if err != nil {
		return nil, fmt.Errorf("open secret store: %w", err)
	}

	historyStore, err := history.Open(cfg.History.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := maintenance.NewMetrics(registry)
	emitter := maintenance.NewEmitter()
	coordinator := maintenance.NewCoordinator(emitter, historyStore, metrics)

	return &App{
		Config:      cfg,
		Profiles:    profiles,
		Secrets:     secretStore,
		History:     historyStore,
		Emitter:     emitter,
		Metrics:     metrics,
		Coordinator: coordinator,
		Registry:    registry,
	}, nil
}

// Close releases resources held by the app.
func (a *App) Close() error {
	return a.History.Close()
}

// ResolveProfile loads a full ServerProfile (on-disk fields plus the
// keychain password) for id, or an error if no such profile is saved.
func (a *App) ResolveProfile(id string) (maintenance.ServerProfile, error) {
	disk, err := a.Profiles.List()
	if err != nil {
		return maintenance.ServerProfile{}, err
	}
	for _, p := range disk {
		if p.ID == id {
			return p.WithPassword(a.Secrets.Get(id)), nil
		}
	}
	return maintenance.ServerProfile{}, fmt.Errorf("no profile with id %s", id)
}

// SaveProfile stores the password half in the keychain and the rest on
// disk, matching how the original desktop app split the two stores.
func (a *App) SaveProfile(profile maintenance.ServerProfile) error {
	if err := a.Secrets.Set(profile.ID, profile.Password); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return a.Profiles.Save(profile.ToDisk())
}

// DeleteProfile removes both halves of a profile.
func (a *App) DeleteProfile(id string) error {
	if err := a.Secrets.Delete(id); err != nil {
		return fmt.Errorf("delete password: %w", err)
	}
	return a.Profiles.Delete(id)
}

// TestConnection opens and immediately closes a connection to master, to
// validate profile credentials and reachability.
func (a *App) TestConnection(ctx context.Context, profileID string) error {
	profile, err := a.ResolveProfile(profileID)
	if err != nil {
		return err
	}
	session, err := maintenance.Connect(ctx, profile, "master", a.Config.Defaults.ConnectionTimeoutMs)
	if err != nil {
		return err
	}
	return session.Close()
}

// GetDatabases lists user databases reachable through profileID.
func (a *App) GetDatabases(ctx context.Context, profileID string) ([]string, error) {
	profile, err := a.ResolveProfile(profileID)
	if err != nil {
		return nil, err
	}
	session, err := maintenance.Connect(ctx, profile, "master", a.Config.Defaults.ConnectionTimeoutMs)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	return maintenance.FetchUserDatabases(ctx, session)
}

func profilesPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "profiles.json"
	}
	return filepath.Join(dir, "sqlmaint", "profiles.json")
}
