// Package config loads settings from an optional .env file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvAPIURL   = "STATFETCH_API_URL"
	EnvAPIKey   = "STATFETCH_API_KEY"
	EnvDataDir  = "STATFETCH_DATA_DIR"
	EnvCatalog  = "STATFETCH_CATALOG"
	EnvWorkers  = "STATFETCH_WORKERS"
	EnvRPS      = "STATFETCH_RPS"
	EnvTimeout  = "STATFETCH_TIMEOUT"
	EnvDB       = "STATFETCH_DB"
	EnvMatcher  = "STATFETCH_MATCHER"
	DefaultFile = ".env"
)

// Defaults.
const (
	DefaultDataDir = "data"
	DefaultCatalog = "catalog"
	DefaultWorkers = 4
	DefaultRPS     = 2.0
	DefaultTimeout = 30 * time.Second
	DefaultMatcher = "indexed"
	DefaultDBFile  = "observations.db"
)

// Config is the resolved runtime configuration.
type Config struct {
	APIURL     string
	APIKey     string
	DataDir    string
	CatalogDir string
	Workers    int
	RPS        float64
	Timeout    time.Duration
	DBPath     string // empty unless STATFETCH_DB is set; see Database
	Matcher    string
}

// Database returns the observation database path: DBPath when set,
// otherwise DefaultDBFile inside DataDir.
func (c Config) Database() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, DefaultDBFile)
}

// Error is a configuration value that cannot be used.
type Error struct {
	Key   string
	Value string
	Err   error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is or wraps an *Error.
func IsConfigurationError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Load reads envFile (DefaultFile when empty) and the environment. A
// missing default file is not an error; a missing named file is.
func Load(envFile string) (Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultFile
	}

	file, err := godotenv.Read(envFile)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			file = nil
		} else {
			return Config{}, &Error{Err: fmt.Errorf("read %s: %w", envFile, err)}
		}
	}

	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	})
}

// FromLookup resolves a Config from a key lookup, applying defaults.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		APIURL:     get(EnvAPIURL, ""),
		APIKey:     get(EnvAPIKey, ""),
		DataDir:    get(EnvDataDir, DefaultDataDir),
		CatalogDir: get(EnvCatalog, DefaultCatalog),
		Workers:    DefaultWorkers,
		RPS:        DefaultRPS,
		Timeout:    DefaultTimeout,
		DBPath:     get(EnvDB, ""),
		Matcher:    get(EnvMatcher, DefaultMatcher),
	}

	if cfg.APIURL != "" {
		u, err := url.Parse(cfg.APIURL)
		if err != nil {
			return Config{}, &Error{Key: EnvAPIURL, Value: cfg.APIURL, Err: err}
		}
		if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
			return Config{}, &Error{Key: EnvAPIURL, Value: cfg.APIURL, Err: errors.New("must be an absolute http(s) URL")}
		}
	}

	if v := get(EnvWorkers, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, &Error{Key: EnvWorkers, Value: v, Err: err}
		}
		if n < 1 {
			return Config{}, &Error{Key: EnvWorkers, Value: v, Err: errors.New("must be at least 1")}
		}
		cfg.Workers = n
	}

	if v := get(EnvRPS, ""); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, &Error{Key: EnvRPS, Value: v, Err: err}
		}
		if rps < 0 {
			return Config{}, &Error{Key: EnvRPS, Value: v, Err: errors.New("must not be negative")}
		}
		cfg.RPS = rps
	}

	if v := get(EnvTimeout, ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, &Error{Key: EnvTimeout, Value: v, Err: err}
		}
		if d <= 0 {
			return Config{}, &Error{Key: EnvTimeout, Value: v, Err: errors.New("must be positive")}
		}
		cfg.Timeout = d
	}

	switch cfg.Matcher {
	case "serial", "indexed", "parallel":
	default:
		return Config{}, &Error{Key: EnvMatcher, Value: cfg.Matcher, Err: errors.New("must be serial, indexed or parallel")}
	}

	return cfg, nil
}
