// Package runner applies a folder of migration scripts in order.
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/badgie/migrator/internal/debug"
	"github.com/badgie/migrator/migrate"
	"github.com/badgie/migrator/migrate/dialect"
	"github.com/badgie/migrator/migrate/executor"
	"github.com/badgie/migrator/migrate/history"
	"github.com/badgie/migrator/migrate/plugin"
	"github.com/badgie/migrator/migrate/splitter"
)

// DefaultPattern is matched inside Path when it names a directory
const DefaultPattern = "*.sql"

// Outcome is the result of handling a single migration file
type Outcome struct {
	File     string
	Checksum string
	// StoredChecksum is the recorded checksum of a Changed file
	StoredChecksum string
	Result         migrate.Result
	// Executed reports whether the script's batches were run
	Executed bool
	Duration time.Duration
	// Err is set when the file failed; Result is meaningless then
	Err error
}

// Observer is notified after every handled file, failures included
type Observer func(Outcome)

// Report summarizes a run
type Report struct {
	RunID    uuid.UUID
	Plugins  []string
	Outcomes []Outcome
	Elapsed  time.Duration
}

// Count returns the number of successfully handled files with result res
func (r *Report) Count(res migrate.Result) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil && o.Result == res {
			n++
		}
	}
	return n
}

// Runner migrates one target database
type Runner struct {
	db       *sql.DB
	cfg      *migrate.Config
	dialect  dialect.Dialect
	fs       afero.Fs
	plugins  *plugin.Manager
	splitter *splitter.Splitter
	observer Observer
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Runner
type Option func(*Runner)

// WithFs sets the filesystem migrations are read from
func WithFs(fs afero.Fs) Option {
	return func(r *Runner) {
		r.fs = fs
	}
}

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// WithPluginManager replaces the default plugin manager
func WithPluginManager(m *plugin.Manager) Option {
	return func(r *Runner) {
		r.plugins = m
	}
}

// WithSplitter replaces the default GO splitter
func WithSplitter(s *splitter.Splitter) Option {
	return func(r *Runner) {
		r.splitter = s
	}
}

// WithObserver registers a callback for file outcomes
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observer = o
	}
}

// WithClock sets the clock used for last run timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// New creates a Runner for the database described by cfg. db must already be
// open with the driver matching cfg.
func New(db *sql.DB, cfg *migrate.Config, opts ...Option) (*Runner, error) {
	d, err := dialect.New(cfg.Dialect)
	if err != nil {
		return nil, &migrate.ConfigError{Field: "sqltype", Err: err}
	}

	r := &Runner{
		db:       db,
		cfg:      cfg,
		dialect:  d,
		fs:       afero.NewOsFs(),
		splitter: splitter.New(splitter.DefaultDelimiter),
		log:      debug.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.plugins == nil {
		r.plugins = plugin.NewManager(plugin.WithLogger(r.log))
	}
	return r, nil
}

// Run installs the state table if requested, then applies every pending
// migration between the plugin hooks. It stops at the first failing file and
// at the first changed file unless Force is set. The report is returned even
// when the run fails.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.New()}
	defer func() {
		report.Elapsed = time.Since(start)
	}()

	log := r.log.With("run", report.RunID.String(), "dialect", string(r.dialect.Name()))

	files, err := r.discover()
	if err != nil {
		return report, err
	}

	store := history.NewManager(r.db, r.dialect, log)

	log.Debug("ensuring configuration table exists")
	state, err := store.EnsureSchema(ctx, r.cfg)
	if err != nil {
		return report, err
	}
	if state == history.NotInstalled {
		return report, migrate.ErrSchemaNotInstalled
	}

	r.plugins.DiscoverAndActivate(ctx, r.db, r.cfg)
	report.Plugins = r.plugins.ActiveNames()

	if err := r.plugins.RunPreHooks(ctx, r.db, r.cfg); err != nil {
		// plugins that paused something before the failing one get to restore it
		r.plugins.RunFailureHooks(ctx, r.db, r.cfg, err)
		return report, err
	}

	exec := executor.New(r.db, r.cfg, executor.WithLogger(log), executor.WithSplitter(r.splitter))

	log.Debug("migrating folder", "path", r.cfg.Path, "files", len(files))
	if err := r.migrateFiles(ctx, files, store, exec, report, log); err != nil {
		r.plugins.RunFailureHooks(ctx, r.db, r.cfg, err)
		return report, err
	}

	r.plugins.RunPostHooks(ctx, r.db, r.cfg)
	return report, nil
}

func (r *Runner) migrateFiles(ctx context.Context, files []string, store *history.Manager, exec *executor.Executor, report *Report, log *slog.Logger) error {
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Debug("handling migration", "file", file)
		started := time.Now()
		o, err := r.migrateFile(ctx, file, store, exec, log)
		o.Duration = time.Since(started)
		o.Err = err

		report.Outcomes = append(report.Outcomes, o)
		if r.observer != nil {
			r.observer(o)
		}
		if err != nil {
			return err
		}

		if o.Result == migrate.Changed && !o.Executed {
			return &migrate.DriftError{File: o.File, Stored: o.StoredChecksum, Computed: o.Checksum}
		}
	}
	return nil
}

func (r *Runner) migrateFile(ctx context.Context, file string, store *history.Manager, exec *executor.Executor, log *slog.Logger) (Outcome, error) {
	name := filepath.Base(file)
	o := Outcome{File: name}

	source, err := afero.ReadFile(r.fs, file)
	if err != nil {
		return o, fmt.Errorf("failed to read migration %s: %w", name, err)
	}

	text := executor.Decode(source)
	o.Checksum = history.Fingerprint([]byte(text))
	log.Debug("file checksum", "file", name, "md5", o.Checksum)

	prev, err := store.FindByFilename(ctx, name)
	if err != nil {
		return o, err
	}

	isUpdate := false
	if prev != nil {
		log.Debug("found run in table", "file", name)
		if prev.Checksum == o.Checksum {
			log.Debug("same checksum, skipping", "file", name)
			o.Result = migrate.Skipped
			return o, nil
		}

		o.Result = migrate.Changed
		o.StoredChecksum = prev.Checksum
		if !r.cfg.Force {
			return o, nil
		}
		log.Debug("forced run", "file", name)
		isUpdate = true
	} else {
		log.Debug("fresh migration", "file", name)
		o.Result = migrate.Run
	}

	if err := exec.Execute(ctx, executor.Script{Name: name, Source: source}); err != nil {
		return o, err
	}
	o.Executed = true

	run := &migrate.MigrationRun{
		LastRun:  r.now().UTC(),
		Filename: name,
		Checksum: o.Checksum,
		Result:   o.Result,
	}
	if err := store.Record(ctx, run, isUpdate); err != nil {
		return o, err
	}
	return o, nil
}

// discover returns the migration files in the order they have to run
func (r *Runner) discover() ([]string, error) {
	pattern := r.cfg.Path
	if pattern == "" {
		pattern = "."
	}

	if info, err := r.fs.Stat(pattern); err == nil && info.IsDir() {
		pattern = filepath.Join(pattern, DefaultPattern)
	}

	matches, err := afero.Glob(r.fs, pattern)
	if err != nil {
		return nil, &migrate.ConfigError{Field: "path", Reason: fmt.Sprintf("invalid pattern %q", r.cfg.Path), Err: err}
	}

	files := matches[:0]
	for _, m := range matches {
		info, err := r.fs.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", m, err)
		}
		if !info.IsDir() {
			files = append(files, m)
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})

	if len(files) == 0 {
		r.log.Warn("no migrations found", "path", r.cfg.Path)
	}
	return files, nil
}

// IsDrift reports whether err stopped a run because of a changed migration
func IsDrift(err error) bool {
	var drift *migrate.DriftError
	return errors.As(err, &drift)
}
