// Package executor executes migration scripts batch by batch.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/badgie/migrator/internal/debug"
	"github.com/badgie/migrator/migrate"
	"github.com/badgie/migrator/migrate/splitter"
)

// Script is a migration file read from disk
type Script struct {
	// Name is the base name of the file
	Name   string
	Source []byte
}

// Executor runs the batches of a script. Every batch acquires its own
// connection from the pool and releases it before the next batch starts.
type Executor struct {
	db       *sql.DB
	cfg      *migrate.Config
	splitter *splitter.Splitter
	log      *slog.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithSplitter replaces the default GO splitter
func WithSplitter(s *splitter.Splitter) Option {
	return func(e *Executor) {
		e.splitter = s
	}
}

// WithLogger sets the logger used for tracing
func WithLogger(log *slog.Logger) Option {
	return func(e *Executor) {
		e.log = log
	}
}

// New creates a new Executor
func New(db *sql.DB, cfg *migrate.Config, opts ...Option) *Executor {
	e := &Executor{
		db:       db,
		cfg:      cfg,
		splitter: splitter.New(splitter.DefaultDelimiter),
		log:      debug.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute decodes, validates and runs all batches of script. With
// UseTransaction each batch is committed on its own, so a failure leaves the
// batches before it applied. Remaining batches are never run after a failure.
func (e *Executor) Execute(ctx context.Context, script Script) error {
	text := Decode(script.Source)

	if e.cfg.StrictEncoding {
		if err := CheckEncoding(script.Name, text); err != nil {
			var encErr *migrate.EncodingError
			if errors.As(err, &encErr) {
				// text starts after the byte order mark Decode dropped
				encErr.Offset += len(script.Source) - len(strings.TrimPrefix(string(script.Source), byteOrderMark))
			}
			return err
		}
	}

	batches := e.splitter.Split(text)
	log := e.log.With("file", script.Name)
	log.Debug("found parts", "count", len(batches))

	for i, batch := range batches.All() {
		log.Debug("running part", "part", i)
		batch = strings.TrimSpace(batch)
		if batch == "" {
			log.Debug("part is empty", "part", i)
			continue
		}

		rolledBack, err := e.executeBatch(ctx, batch)
		if err != nil {
			if rolledBack {
				log.Debug("error, rolled back", "part", i)
			}
			return &migrate.ExecutionError{
				File:       script.Name,
				Batch:      i,
				SQL:        batch,
				RolledBack: rolledBack,
				Err:        err,
			}
		}
		log.Debug("part done", "part", i, "transaction", e.cfg.UseTransaction)
	}

	return nil
}

// executeBatch runs a single batch on a fresh connection. It reports whether
// a transaction was rolled back.
func (e *Executor) executeBatch(ctx context.Context, batch string) (rolledBack bool, err error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if !e.cfg.UseTransaction {
		_, err = conn.ExecContext(ctx, batch)
		return false, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if _, err = tx.ExecContext(ctx, batch); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return false, fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return true, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit batch: %w", err)
	}
	return false, nil
}
