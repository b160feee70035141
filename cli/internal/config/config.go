// Package config resolves migration targets from arguments, flags, the
// environment and JSON configuration files.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/badgie/migrator/migrate"
	"github.com/badgie/migrator/migrate/dialect"
)

var AppFs = afero.NewOsFs()

// EnvPrefix prefixes every environment variable read by the loader
const EnvPrefix = "MIGRATOR"

// Flag names
const (
	FlagForce          = "force"
	FlagInstall        = "install"
	FlagDialect        = "dialect"
	FlagDriver         = "driver"
	FlagNoTransaction  = "no-transaction"
	FlagVerbose        = "verbose"
	FlagNoStackTrace   = "no-stack-trace"
	FlagStrictEncoding = "strict-encoding"
	FlagNoPlugins      = "no-plugins"
	FlagConfig         = "config"
)

// keys that only come from arguments or the environment
const (
	keyConnection = "connection"
	keyPath       = "path"
)

// RegisterFlags defines the configuration flags on flags
func RegisterFlags(flags *pflag.FlagSet) {
	flags.BoolP(FlagForce, "f", false, "re-run migrations whose content changed since they were applied")
	flags.BoolP(FlagInstall, "i", false, "install the migration state table if it is missing")
	flags.StringP(FlagDialect, "d", string(dialect.Postgres), "SQL dialect: SqlServer, Postgres, MySql or SQLite")
	flags.String(FlagDriver, "", "database/sql driver name, overrides the dialect default (e.g. sqlite)")
	flags.BoolP(FlagNoTransaction, "n", false, "don't wrap each batch in a transaction")
	flags.BoolP(FlagVerbose, "V", false, "trace every step")
	flags.Bool(FlagNoStackTrace, false, "print compact error messages without diagnostics")
	flags.Bool(FlagStrictEncoding, false, "refuse to run migrations containing invalid characters")
	flags.Bool(FlagNoPlugins, false, "disable database plugins")
	flags.StringP(FlagConfig, "c", "", "JSON file with an array of configurations, migrated in order")
}

// Loader resolves configurations. Precedence is argument, flag, environment
// variable (MIGRATOR_*), .env.local, .env and finally the defaults.
type Loader struct {
	fs afero.Fs
	v  *viper.Viper
}

// NewLoader creates a Loader reading the flags registered by RegisterFlags
func NewLoader(flags *pflag.FlagSet) (*Loader, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	if err := v.BindEnv(keyConnection, EnvPrefix+"_CONNECTION", "DATABASE_URL"); err != nil {
		return nil, err
	}
	if err := v.BindEnv(keyPath, EnvPrefix+"_PATH"); err != nil {
		return nil, err
	}

	return &Loader{fs: AppFs, v: v}, nil
}

// Load returns the configurations to migrate. args are the optional
// connection string and migration path.
func (l *Loader) Load(args []string) ([]*migrate.Config, error) {
	l.loadDotEnv()

	var configs []*migrate.Config
	if file := l.v.GetString(FlagConfig); file != "" {
		if len(args) > 0 {
			return nil, &migrate.ConfigError{Field: FlagConfig, Reason: "a configuration file can't be combined with a connection string argument"}
		}
		entries, err := l.fromFile(file)
		if err != nil {
			return nil, err
		}
		configs = entries
	} else {
		configs = []*migrate.Config{l.fromFlags(args)}
	}

	for _, cfg := range configs {
		if l.v.GetBool(FlagVerbose) {
			cfg.Verbose = true
		}
		if err := Normalize(cfg); err != nil {
			return nil, err
		}
	}
	return configs, nil
}

// loadDotEnv loads .env and then .env.local, which takes priority. Variables
// already set in the environment win over both.
func (l *Loader) loadDotEnv() {
	if _, err := l.fs.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	if _, err := l.fs.Stat(".env.local"); err == nil {
		_ = godotenv.Load(".env.local")
	}
}

func (l *Loader) fromFlags(args []string) *migrate.Config {
	cfg := migrate.DefaultConfig()

	cfg.ConnectionString = l.v.GetString(keyConnection)
	if len(args) > 0 {
		cfg.ConnectionString = args[0]
	}
	if p := l.v.GetString(keyPath); p != "" {
		cfg.Path = p
	}
	if len(args) > 1 {
		cfg.Path = args[1]
	}

	cfg.Dialect = l.v.GetString(FlagDialect)
	cfg.Driver = l.v.GetString(FlagDriver)
	cfg.Force = l.v.GetBool(FlagForce)
	cfg.Install = l.v.GetBool(FlagInstall)
	cfg.UseTransaction = !l.v.GetBool(FlagNoTransaction)
	cfg.StrictEncoding = l.v.GetBool(FlagStrictEncoding)
	cfg.EnablePlugins = !l.v.GetBool(FlagNoPlugins)
	cfg.Verbose = l.v.GetBool(FlagVerbose)
	cfg.StackTraces = !l.v.GetBool(FlagNoStackTrace)
	return cfg
}

// fromFile reads a JSON array of configuration objects. Keys match the
// Config fields case-insensitively, with SqlType naming the dialect.
func (l *Loader) fromFile(file string) ([]*migrate.Config, error) {
	path, err := homedir.Expand(file)
	if err != nil {
		return nil, &migrate.ConfigError{Field: FlagConfig, Err: err}
	}

	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, &migrate.ConfigError{Field: FlagConfig, Reason: "unable to read configuration file", Err: err}
	}

	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &migrate.ConfigError{Field: FlagConfig, Reason: "expected a JSON array of configurations", Err: err}
	}
	if len(entries) == 0 {
		return nil, &migrate.ConfigError{Field: FlagConfig, Reason: "no configurations found in " + path}
	}

	configs := make([]*migrate.Config, 0, len(entries))
	for i, entry := range entries {
		cfg, err := decodeEntry(entry)
		if err != nil {
			return nil, &migrate.ConfigError{Field: fmt.Sprintf("%s[%d]", FlagConfig, i), Err: err}
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func decodeEntry(entry map[string]any) (*migrate.Config, error) {
	defaults := migrate.DefaultConfig()

	v := viper.New()
	v.SetDefault("sqltype", defaults.Dialect)
	v.SetDefault("path", defaults.Path)
	v.SetDefault("usetransaction", defaults.UseTransaction)
	v.SetDefault("enableplugins", defaults.EnablePlugins)
	v.SetDefault("stacktraces", defaults.StackTraces)

	if err := v.MergeConfigMap(entry); err != nil {
		return nil, err
	}

	var cfg migrate.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and rewrites it into the canonical form used by the
// engine: a canonical dialect name, an expanded path and a driver compatible
// connection string.
func Normalize(cfg *migrate.Config) error {
	if strings.TrimSpace(cfg.ConnectionString) == "" {
		return &migrate.ConfigError{Field: "connectionstring", Reason: "a connection string is required (argument, MIGRATOR_CONNECTION or DATABASE_URL)"}
	}

	name, err := dialect.Parse(cfg.Dialect)
	if err != nil {
		return &migrate.ConfigError{Field: "sqltype", Err: err}
	}
	cfg.Dialect = string(name)

	if cfg.Path == "" {
		cfg.Path = "."
	}
	path, err := homedir.Expand(cfg.Path)
	if err != nil {
		return &migrate.ConfigError{Field: "path", Err: err}
	}
	cfg.Path = path

	if name == dialect.MySql {
		dsn, err := mysqlDSN(cfg.ConnectionString)
		if err != nil {
			return &migrate.ConfigError{Field: "connectionstring", Reason: "invalid MySQL DSN", Err: err}
		}
		cfg.ConnectionString = dsn
	}
	return nil
}

// mysqlDSN enables multi statement batches, which migrations rely on
func mysqlDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	c.MultiStatements = true
	return c.FormatDSN(), nil
}

// NormalizeArgs rewrites the legacy "-d:<dialect>" and "-json=<file>"
// arguments into their flag equivalents
func NormalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "-d:"):
			out = append(out, "--"+FlagDialect+"="+strings.TrimPrefix(arg, "-d:"))
		case strings.HasPrefix(arg, "-json="):
			out = append(out, "--"+FlagConfig+"="+strings.TrimPrefix(arg, "-json="))
		default:
			out = append(out, arg)
		}
	}
	return out
}
