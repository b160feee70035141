package dialect

import (
	"context"

	"github.com/badgie/migrator/migrate"
)

type mysql struct{}

func (mysql) Name() Name { return MySql }

func (mysql) DriverName() string { return "mysql" }

func (mysql) StateTableExists(ctx context.Context, q migrate.Querier) (bool, error) {
	return tableExists(ctx, q, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = 'migration_runs'
	`)
}

func (mysql) CreateStateTableStatement() string {
	return "\nCREATE TABLE `migration_runs` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT,\n" +
		"  `last_run` datetime NOT NULL,\n" +
		"  `filename` text NOT NULL,\n" +
		"  `md5` varchar(50) NOT NULL,\n" +
		"  `migration_result` tinyint NOT NULL,\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_0900_ai_ci;"
}

func (mysql) SelectRunByFilename(filename string) (string, []any) {
	return "SELECT `id`, `last_run`, `filename`, `md5`, `migration_result` FROM `migration_runs` WHERE `filename` = ?",
		[]any{filename}
}

func (mysql) SelectRuns() string {
	return "SELECT `id`, `last_run`, `filename`, `md5`, `migration_result` FROM `migration_runs` ORDER BY `filename` ASC"
}

func (mysql) InsertRun(run *migrate.MigrationRun) (string, []any) {
	return "INSERT INTO `migration_runs` (`last_run`, `migration_result`, `md5`, `filename`) VALUES (?, ?, ?, ?)",
		[]any{run.LastRun, int(run.Result), run.Checksum, run.Filename}
}

func (mysql) UpdateRun(run *migrate.MigrationRun) (string, []any) {
	return "UPDATE `migration_runs` SET `last_run` = ?, `migration_result` = ?, `md5` = ? WHERE `filename` = ?",
		[]any{run.LastRun, int(run.Result), run.Checksum, run.Filename}
}
