package migrate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaNotInstalled is returned when the state table is missing and
// installing it wasn't requested.
var ErrSchemaNotInstalled = errors.New("database does not have the migration table installed, did you forget to pass --install (-i)?")

// ConfigError reports malformed arguments or configuration. It is raised
// before any database I/O happens.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "invalid configuration"
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// EncodingError reports an undecodable byte sequence found in strict encoding mode
type EncodingError struct {
	File string
	// Offset is the byte offset of the invalid sequence in the script file
	Offset int
	// Line is the text of the line containing the invalid sequence
	Line string
	// Column is the 1-based character position within Line
	Column int
}

func (e *EncodingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "found an invalid character at offset %d", e.Offset)
	if e.File != "" {
		fmt.Fprintf(&b, " in %s", e.File)
	}
	b.WriteString(":\n")
	fmt.Fprintf(&b, "    | %s\n", e.Line)
	fmt.Fprintf(&b, "    | %s^\n", strings.Repeat(" ", e.Column-1))
	b.WriteString("please make sure that the encoding of the file is correct (UTF-8 is recommended)")
	return b.String()
}

// ExecutionError reports a failing batch. Earlier batches of the same file may
// already be committed.
type ExecutionError struct {
	File string
	// Batch is the 1-based index of the failing batch
	Batch int
	SQL   string
	// RolledBack reports whether the batch ran inside a transaction that was rolled back
	RolledBack bool
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to execute batch %d of %s: %v", e.Batch, e.File, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// DriftError reports an applied migration whose content changed while Force is off
type DriftError struct {
	File     string
	Stored   string
	Computed string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("migration %s has been modified since it was applied (checksum %s, stored %s); use --force to re-apply it",
		e.File, e.Computed, e.Stored)
}

// HookPhase names a plugin lifecycle phase
type HookPhase string

const (
	PhaseActivate HookPhase = "activate"
	PhasePre      HookPhase = "pre-migration"
	PhasePost     HookPhase = "post-migration"
	PhaseFailure  HookPhase = "migration-failure"
)

// PluginHookError reports a failing plugin hook. Only PhasePre errors abort a run.
type PluginHookError struct {
	Plugin string
	Phase  HookPhase
	Err    error
}

func (e *PluginHookError) Error() string {
	return fmt.Sprintf("plugin %q failed during %s: %v", e.Plugin, e.Phase, e.Err)
}

func (e *PluginHookError) Unwrap() error { return e.Err }

// IsConfigError reports whether err originates from invalid configuration
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
