package dialect

import (
	"context"

	"github.com/badgie/migrator/migrate"
)

// postgres folds the unquoted MigrationRuns identifier to migrationruns
type postgres struct{}

func (postgres) Name() Name { return Postgres }

func (postgres) DriverName() string { return "postgres" }

func (postgres) StateTableExists(ctx context.Context, q migrate.Querier) (bool, error) {
	return tableExists(ctx, q, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = 'migrationruns'
	`)
}

func (postgres) CreateStateTableStatement() string {
	return `
CREATE SEQUENCE MigrationRuns_Id_seq INCREMENT 1 MINVALUE 1 MAXVALUE 2147483647 START 1 CACHE 1;
CREATE TABLE "public".MigrationRuns (
    Id integer DEFAULT nextval('MigrationRuns_Id_seq') NOT NULL,
    LastRun timestamp NOT NULL,
    Filename character varying(2000) NOT NULL,
    MD5 character varying(50) NOT NULL,
    MigrationResult integer NOT NULL,
    CONSTRAINT "MigrationRuns_Id" PRIMARY KEY (Id)
);`
}

func (postgres) SelectRunByFilename(filename string) (string, []any) {
	return `
		SELECT Id, LastRun, Filename, MD5, MigrationResult
		FROM MigrationRuns
		WHERE Filename = $1
	`, []any{filename}
}

func (postgres) SelectRuns() string {
	return `
		SELECT Id, LastRun, Filename, MD5, MigrationResult
		FROM MigrationRuns
		ORDER BY Filename ASC
	`
}

func (postgres) InsertRun(run *migrate.MigrationRun) (string, []any) {
	return `
		INSERT INTO MigrationRuns (LastRun, MigrationResult, MD5, Filename)
		VALUES ($1, $2, $3, $4)
	`, []any{run.LastRun, int(run.Result), run.Checksum, run.Filename}
}

func (postgres) UpdateRun(run *migrate.MigrationRun) (string, []any) {
	return `
		UPDATE MigrationRuns
		SET LastRun = $1, MigrationResult = $2, MD5 = $3
		WHERE Filename = $4
	`, []any{run.LastRun, int(run.Result), run.Checksum, run.Filename}
}
