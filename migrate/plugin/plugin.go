// Package plugin runs database specific hooks around a migration run.
package plugin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/badgie/migrator/internal/debug"
	"github.com/badgie/migrator/migrate"
)

// Plugin prepares the database before migrations and restores it afterwards.
// A plugin instance may keep state between its hooks, but only for one run.
type Plugin interface {
	// Name identifies the plugin in logs
	Name() string
	// ShouldActivate reports whether the plugin applies to the target database
	ShouldActivate(ctx context.Context, q migrate.Querier, cfg *migrate.Config) (bool, error)
	// PreMigration is called before the first migration runs. An error aborts the run.
	PreMigration(ctx context.Context, q migrate.Querier, cfg *migrate.Config) error
	// PostMigration is called after all migrations succeeded
	PostMigration(ctx context.Context, q migrate.Querier, cfg *migrate.Config) error
	// OnMigrationFailure is called when the run failed
	OnMigrationFailure(ctx context.Context, q migrate.Querier, cfg *migrate.Config, cause error) error
}

// RecoveryHinter is implemented by plugins that can tell the operator how to
// restore the database manually after a failed cleanup
type RecoveryHinter interface {
	RecoveryHint() string
}

// Builtin returns fresh instances of the built-in plugins
func Builtin() []Plugin {
	return []Plugin{
		NewTimescaleDB(),
	}
}

// Manager owns the plugin registry and calls hooks in activation order for
// PreMigration and in reverse order for PostMigration and OnMigrationFailure.
type Manager struct {
	available []Plugin
	active    []Plugin
	log       *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithPlugins registers additional plugins after the built-in ones
func WithPlugins(plugins ...Plugin) Option {
	return func(m *Manager) {
		m.available = append(m.available, plugins...)
	}
}

// WithoutBuiltin drops the built-in plugins from the registry
func WithoutBuiltin() Option {
	return func(m *Manager) {
		m.available = nil
	}
}

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a Manager with the built-in plugins registered
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		available: Builtin(),
		log:       debug.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DiscoverAndActivate activates every registered plugin whose probe succeeds.
// A failing probe is logged and treated as not applicable.
func (m *Manager) DiscoverAndActivate(ctx context.Context, q migrate.Querier, cfg *migrate.Config) {
	m.active = m.active[:0]

	if !cfg.EnablePlugins {
		m.log.Debug("plugins are disabled in configuration")
		return
	}

	for _, p := range m.available {
		ok, err := probe(ctx, p, q, cfg)
		if err != nil {
			m.log.Warn("error checking plugin", "plugin", p.Name(), "error", err)
			continue
		}
		if !ok {
			m.log.Debug("plugin not applicable for this database", "plugin", p.Name())
			continue
		}

		m.active = append(m.active, p)
		m.log.Info("activated plugin", "plugin", p.Name())
	}

	if len(m.active) == 0 {
		m.log.Debug("no plugins activated for this database")
	}
}

// RunPreHooks calls PreMigration on all active plugins in activation order
// and stops at the first failure
func (m *Manager) RunPreHooks(ctx context.Context, q migrate.Querier, cfg *migrate.Config) error {
	for _, p := range m.active {
		m.log.Debug("executing pre-migration", "plugin", p.Name())
		if err := p.PreMigration(ctx, q, cfg); err != nil {
			m.log.Error("pre-migration failed", "plugin", p.Name(), "error", err)
			return &migrate.PluginHookError{Plugin: p.Name(), Phase: migrate.PhasePre, Err: err}
		}
		m.log.Debug("pre-migration completed", "plugin", p.Name())
	}
	return nil
}

// RunPostHooks calls PostMigration on all active plugins in reverse order.
// Failures are logged and returned, but must not fail the run.
func (m *Manager) RunPostHooks(ctx context.Context, q migrate.Querier, cfg *migrate.Config) []error {
	var errs []error
	for i := len(m.active) - 1; i >= 0; i-- {
		p := m.active[i]
		m.log.Debug("executing post-migration", "plugin", p.Name())
		if err := p.PostMigration(ctx, q, cfg); err != nil {
			m.log.Warn("post-migration failed", "plugin", p.Name(), "error", err)
			errs = append(errs, &migrate.PluginHookError{Plugin: p.Name(), Phase: migrate.PhasePost, Err: err})
			continue
		}
		m.log.Debug("post-migration completed", "plugin", p.Name())
	}
	return errs
}

// RunFailureHooks calls OnMigrationFailure on all active plugins in reverse
// order. Failures are logged together with the plugin's recovery hint.
func (m *Manager) RunFailureHooks(ctx context.Context, q migrate.Querier, cfg *migrate.Config, cause error) []error {
	var errs []error
	for i := len(m.active) - 1; i >= 0; i-- {
		p := m.active[i]
		m.log.Debug("executing failure cleanup", "plugin", p.Name())
		if err := p.OnMigrationFailure(ctx, q, cfg, cause); err != nil {
			attrs := []any{"plugin", p.Name(), "error", err}
			if h, ok := p.(RecoveryHinter); ok {
				attrs = append(attrs, "manual_recovery", h.RecoveryHint())
			}
			m.log.Warn("failure cleanup failed", attrs...)
			errs = append(errs, &migrate.PluginHookError{Plugin: p.Name(), Phase: migrate.PhaseFailure, Err: err})
		}
	}
	return errs
}

// ActiveNames returns the names of the active plugins in activation order
func (m *Manager) ActiveNames() []string {
	names := make([]string, 0, len(m.active))
	for _, p := range m.active {
		names = append(names, p.Name())
	}
	return names
}

// probe calls ShouldActivate and converts a panic into an error
func probe(ctx context.Context, p Plugin, q migrate.Querier, cfg *migrate.Config) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &migrate.PluginHookError{Plugin: p.Name(), Phase: migrate.PhaseActivate, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return p.ShouldActivate(ctx, q, cfg)
}
