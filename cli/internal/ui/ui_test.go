package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badgie/migrator/migrate"
	"github.com/badgie/migrator/migrate/runner"
)

func capture(t *testing.T) (stdout, stderr *bytes.Buffer) {
	t.Helper()

	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr, prevNoColor := Stdout, Stderr, color.NoColor
	Stdout, Stderr, color.NoColor = stdout, stderr, true

	t.Cleanup(func() {
		Stdout, Stderr, color.NoColor = prevOut, prevErr, prevNoColor
	})
	return stdout, stderr
}

func TestPrintResult(t *testing.T) {
	stdout, _ := capture(t)

	PrintResult(migrate.Run, "001_init.sql")
	PrintResult(migrate.Skipped, "002_data.sql")
	PrintResult(migrate.Changed, "003_fix.sql")

	assert.Equal(t, "Run - 001_init.sql\nSkipped - 002_data.sql\nChanged - 003_fix.sql\n", stdout.String())
}

func TestPrintFailure(t *testing.T) {
	stdout, stderr := capture(t)

	PrintFailure("002_data.sql", "relation \"missing\" does not exist")
	assert.Empty(t, stdout.String())
	assert.Equal(t, "Error - 002_data.sql\nrelation \"missing\" does not exist\n", stderr.String())
}

func TestPrintSummary(t *testing.T) {
	stdout, _ := capture(t)

	PrintSummary(&runner.Report{
		Elapsed: 1500 * time.Millisecond,
		Outcomes: []runner.Outcome{
			{File: "a.sql", Result: migrate.Run},
			{File: "b.sql", Result: migrate.Skipped},
			{File: "c.sql", Result: migrate.Run, Err: errors.New("boom")},
		},
	})
	assert.Contains(t, stdout.String(), "Migrations done in 1500 ms")
	assert.Contains(t, stdout.String(), "1 run, 1 skipped, 0 changed")
}

func TestPrintStatus(t *testing.T) {
	stdout, _ := capture(t)

	err := PrintStatus([]runner.FileStatus{
		{File: "001_init.sql", State: runner.StateApplied, Checksum: "abc", LastRun: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{File: "002_data.sql", State: runner.StatePending, Checksum: "def"},
	})
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "001_init.sql")
	assert.Contains(t, out, "Applied")
	assert.Contains(t, out, "2024-01-02T03:04:05Z")
	assert.Contains(t, out, "Pending")
}
