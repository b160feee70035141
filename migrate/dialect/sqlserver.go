package dialect

import (
	"context"

	"github.com/badgie/migrator/migrate"
)

type sqlServer struct{}

func (sqlServer) Name() Name { return SqlServer }

func (sqlServer) DriverName() string { return "sqlserver" }

func (sqlServer) StateTableExists(ctx context.Context, q migrate.Querier) (bool, error) {
	return tableExists(ctx, q, `
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = 'dbo' AND TABLE_NAME = 'MigrationRuns'
	`)
}

func (sqlServer) CreateStateTableStatement() string {
	return `
CREATE TABLE [dbo].[MigrationRuns] (
    Id              INT             IDENTITY (1, 1) NOT NULL,
    LastRun         DATETIME        NOT NULL,
    Filename        NVARCHAR(2000)  NOT NULL,
    MD5             VARCHAR(50)     NOT NULL,
    MigrationResult TINYINT         NOT NULL,
    CONSTRAINT [PK_MigrationRuns] PRIMARY KEY CLUSTERED ([Id] ASC)
);`
}

func (sqlServer) SelectRunByFilename(filename string) (string, []any) {
	return `
		SELECT Id, LastRun, Filename, MD5, MigrationResult
		FROM [dbo].[MigrationRuns]
		WHERE Filename = @p1
	`, []any{filename}
}

func (sqlServer) SelectRuns() string {
	return `
		SELECT Id, LastRun, Filename, MD5, MigrationResult
		FROM [dbo].[MigrationRuns]
		ORDER BY Filename ASC
	`
}

func (sqlServer) InsertRun(run *migrate.MigrationRun) (string, []any) {
	return `
		INSERT INTO [dbo].[MigrationRuns] (LastRun, MigrationResult, MD5, Filename)
		VALUES (@p1, @p2, @p3, @p4)
	`, []any{run.LastRun, int(run.Result), run.Checksum, run.Filename}
}

func (sqlServer) UpdateRun(run *migrate.MigrationRun) (string, []any) {
	return `
		UPDATE [dbo].[MigrationRuns]
		SET LastRun = @p1, MigrationResult = @p2, MD5 = @p3
		WHERE Filename = @p4
	`, []any{run.LastRun, int(run.Result), run.Checksum, run.Filename}
}
