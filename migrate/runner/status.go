package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/badgie/migrator/migrate/executor"
	"github.com/badgie/migrator/migrate/history"
)

// State is the state of a migration file relative to the state table
type State int

const (
	// StatePending means the file was never run
	StatePending State = iota
	// StateApplied means the file was run and is unchanged
	StateApplied
	// StateChanged means the file was run but its content differs since
	StateChanged
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateApplied:
		return "Applied"
	case StateChanged:
		return "Changed"
	default:
		return "Unknown"
	}
}

// FileStatus describes a single migration file
type FileStatus struct {
	File     string
	Checksum string
	State    State
	// LastRun is zero for pending files
	LastRun time.Time
}

// Status evaluates every migration file against the state table without
// executing anything. A missing state table reports all files as pending.
func (r *Runner) Status(ctx context.Context) ([]FileStatus, error) {
	files, err := r.discover()
	if err != nil {
		return nil, err
	}

	installed, err := r.dialect.StateTableExists(ctx, r.db)
	if err != nil {
		return nil, err
	}

	store := history.NewManager(r.db, r.dialect, r.log)
	statuses := make([]FileStatus, 0, len(files))
	for _, file := range files {
		source, err := afero.ReadFile(r.fs, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		st := FileStatus{
			File:     filepath.Base(file),
			Checksum: history.Fingerprint([]byte(executor.Decode(source))),
		}

		if installed {
			prev, err := store.FindByFilename(ctx, st.File)
			if err != nil {
				return nil, err
			}
			if prev != nil {
				st.LastRun = prev.LastRun
				st.State = StateApplied
				if prev.Checksum != st.Checksum {
					st.State = StateChanged
				}
			}
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
