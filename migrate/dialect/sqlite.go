package dialect

import (
	"context"

	"github.com/badgie/migrator/migrate"
)

type sqlite struct{}

func (sqlite) Name() Name { return SQLite }

func (sqlite) DriverName() string { return "sqlite3" }

func (sqlite) StateTableExists(ctx context.Context, q migrate.Querier) (bool, error) {
	return tableExists(ctx, q, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'MigrationRuns'`)
}

func (sqlite) CreateStateTableStatement() string {
	return `
CREATE TABLE MigrationRuns (
    Id              INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
    LastRun         DATETIME NOT NULL,
    Filename        TEXT NOT NULL,
    MD5             TEXT NOT NULL,
    MigrationResult INTEGER NOT NULL
);`
}

func (sqlite) SelectRunByFilename(filename string) (string, []any) {
	return `
		SELECT Id, LastRun, Filename, MD5, MigrationResult
		FROM MigrationRuns
		WHERE Filename = ?
	`, []any{filename}
}

func (sqlite) SelectRuns() string {
	return `
		SELECT Id, LastRun, Filename, MD5, MigrationResult
		FROM MigrationRuns
		ORDER BY Filename ASC
	`
}

func (sqlite) InsertRun(run *migrate.MigrationRun) (string, []any) {
	return `
		INSERT INTO MigrationRuns (LastRun, MigrationResult, MD5, Filename)
		VALUES (?, ?, ?, ?)
	`, []any{run.LastRun, int(run.Result), run.Checksum, run.Filename}
}

func (sqlite) UpdateRun(run *migrate.MigrationRun) (string, []any) {
	return `
		UPDATE MigrationRuns
		SET LastRun = ?, MigrationResult = ?, MD5 = ?
		WHERE Filename = ?
	`, []any{run.LastRun, int(run.Result), run.Checksum, run.Filename}
}
