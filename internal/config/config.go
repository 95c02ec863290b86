package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	LogLevel slog.Level

	SSH      SSHConfig
	Postgres PostgresConfig
	Redis    RedisConfig

	AttemptTimeout time.Duration
	VotingPageOpen bool

	// AdminUser and AdminPassword guard the voting page switch. An empty
	// password leaves the switch read-only.
	AdminUser     string
	AdminPassword string

	// Args holds the positional arguments left after flag parsing.
	Args []string
}

// SSHConfig describes the bastion the database is reached through. An empty
// Host means the database is dialed directly.
type SSHConfig struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	KeyPath               string
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
}

func (c SSHConfig) Enabled() bool {
	return c.Host != ""
}

type PostgresConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	ConnectTimeout time.Duration
}

// RedisConfig configures the popularity cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// Load reads .env when present, then the environment, then the flags in
// args. Flags win over the environment.
func Load(name string, args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}

	env := &envReader{}
	cfg := &Config{}
	var logLevel string

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.HTTPAddr, "http-addr", env.str("HTTP_ADDR", "0.0.0.0:8080"), "HTTP listen address")
	fs.StringVar(&logLevel, "log-level", env.str("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	fs.StringVar(&cfg.SSH.Host, "ssh-host", env.str("SSH_HOST", ""), "SSH bastion host, empty to connect directly")
	fs.IntVar(&cfg.SSH.Port, "ssh-port", env.integer("SSH_PORT", 22), "SSH bastion port")
	fs.StringVar(&cfg.SSH.User, "ssh-user", env.str("SSH_USER", ""), "SSH user")
	fs.StringVar(&cfg.SSH.Password, "ssh-password", env.str("SSH_PASSWORD", ""), "SSH password")
	fs.StringVar(&cfg.SSH.KeyPath, "ssh-key-path", env.str("SSH_KEY_PATH", ""), "Path to the SSH private key")
	fs.StringVar(&cfg.SSH.KnownHostsPath, "ssh-known-hosts", env.str("SSH_KNOWN_HOSTS", ""), "Path to the known_hosts file")
	fs.BoolVar(&cfg.SSH.InsecureIgnoreHostKey, "ssh-insecure-ignore-host-key", env.boolean("SSH_INSECURE_IGNORE_HOST_KEY", false), "Skip SSH host key verification")
	fs.DurationVar(&cfg.SSH.Timeout, "ssh-timeout", env.duration("SSH_TIMEOUT", 10*time.Second), "SSH connect timeout")

	fs.StringVar(&cfg.Postgres.Host, "db-host", env.str("POSTGRES_HOST", ""), "Database host, as seen from the SSH bastion")
	fs.IntVar(&cfg.Postgres.Port, "db-port", env.integer("POSTGRES_PORT", 5432), "Database port")
	fs.StringVar(&cfg.Postgres.User, "db-user", env.str("POSTGRES_USER", ""), "Database user")
	fs.StringVar(&cfg.Postgres.Password, "db-pass", env.str("POSTGRES_PASSWORD", ""), "Database password")
	fs.StringVar(&cfg.Postgres.Name, "db-name", env.str("POSTGRES_DB", ""), "Database name")
	fs.StringVar(&cfg.Postgres.SSLMode, "db-sslmode", env.str("POSTGRES_SSLMODE", "disable"), "Database sslmode")
	fs.DurationVar(&cfg.Postgres.ConnectTimeout, "db-connect-timeout", env.duration("DB_CONNECT_TIMEOUT", 5*time.Second), "Database connect timeout")

	fs.DurationVar(&cfg.AttemptTimeout, "attempt-timeout", env.duration("ATTEMPT_TIMEOUT", 15*time.Second), "Upper bound for the vote attempts of one request")
	fs.BoolVar(&cfg.VotingPageOpen, "voting-page-open", env.boolean("VOTING_PAGE_OPEN", false), "Initial state of the voting page")
	fs.StringVar(&cfg.AdminUser, "admin-user", env.str("ADMIN_USER", "admin"), "Operator user allowed to toggle the voting page")
	fs.StringVar(&cfg.AdminPassword, "admin-password", env.str("ADMIN_PASSWORD", ""), "Operator password, empty to keep the voting page read-only")

	fs.StringVar(&cfg.Redis.Addr, "redis-addr", env.str("REDIS_ADDR", ""), "Redis address, empty to disable the popularity cache")
	fs.StringVar(&cfg.Redis.Password, "redis-password", env.str("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.Redis.DB, "redis-db", env.integer("REDIS_DB", 0), "Redis database")
	fs.DurationVar(&cfg.Redis.TTL, "redis-ttl", env.duration("POPULARITY_CACHE_TTL", 30*time.Second), "Popularity cache TTL")

	if env.err != nil {
		return nil, env.err
	}
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	cfg.Args = fs.Args()

	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Postgres.Host == "" {
		errs = append(errs, errors.New("POSTGRES_HOST is required"))
	}
	if c.Postgres.Name == "" {
		errs = append(errs, errors.New("POSTGRES_DB is required"))
	}
	if c.Postgres.User == "" {
		errs = append(errs, errors.New("POSTGRES_USER is required"))
	}
	if c.Postgres.Port <= 0 {
		errs = append(errs, errors.New("POSTGRES_PORT must be positive"))
	}
	if c.SSH.Enabled() {
		if c.SSH.User == "" {
			errs = append(errs, errors.New("SSH_USER is required when SSH_HOST is set"))
		}
		if c.SSH.KeyPath == "" && c.SSH.Password == "" {
			errs = append(errs, errors.New("SSH_KEY_PATH or SSH_PASSWORD is required when SSH_HOST is set"))
		}
		if c.SSH.KnownHostsPath == "" && !c.SSH.InsecureIgnoreHostKey {
			errs = append(errs, errors.New("SSH_KNOWN_HOSTS is required unless SSH_INSECURE_IGNORE_HOST_KEY is set"))
		}
	}
	if c.AdminPassword != "" && c.AdminUser == "" {
		errs = append(errs, errors.New("ADMIN_USER is required when ADMIN_PASSWORD is set"))
	}
	return errors.Join(errs...)
}

// Operators returns the credentials allowed to change runtime settings.
func (c *Config) Operators() map[string]string {
	if c.AdminPassword == "" {
		return nil
	}
	return map[string]string{c.AdminUser: c.AdminPassword}
}

// envReader reads typed environment variables and keeps every parse error.
type envReader struct {
	err error
}

func (e *envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

func (e *envReader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envReader) fail(key, value string, err error) {
	e.err = errors.Join(e.err, fmt.Errorf("invalid %s=%q: %w", key, value, err))
}
