// Package config loads dagplanner settings.
//
// Settings are layered, lowest priority first:
//  1. built-in defaults ([Default])
//  2. the TOML file at [DefaultPath] (or an explicit path)
//  3. environment variables
//  4. command-line flags, applied by the CLI after [Load]
//
// Recognized environment variables:
//
//	MCP_HOST               server.host
//	MCP_WEB_PORT           server.port
//	MCP_DEBUG              server.debug (true, 1, yes, on)
//	MCP_PROJECT_ROOT       project.root
//	DAGPLANNER_REMOTE_URL  remote.url
//	DAGPLANNER_REDIS_ADDR  cache.redis_addr, and selects the redis cache
//
// A malformed variable is ignored and the lower layer's value is kept.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	errs "github.com/matzehuels/dagplanner/pkg/errors"
)

const appName = "dagplanner"

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 9005
)

// Config is the complete configuration.
type Config struct {
	Remote  Remote  `toml:"remote"`
	Cache   Cache   `toml:"cache"`
	Server  Server  `toml:"server"`
	Records Records `toml:"records"`
	Project Project `toml:"project"`

	// Source is the file the configuration was read from, if any.
	Source string `toml:"-"`
}

// Remote configures the remote store client.
type Remote struct {
	URL     string        `toml:"url" validate:"omitempty,url"`
	Timeout time.Duration `toml:"timeout" validate:"gt=0"`
	Retries int           `toml:"retries" validate:"gte=0,lte=10"`
}

// Cache configures the local cache.
type Cache struct {
	Backend   string        `toml:"backend" validate:"oneof=file redis none"`
	Dir       string        `toml:"dir"`
	RedisAddr string        `toml:"redis_addr" validate:"required_if=Backend redis"`
	Key       string        `toml:"key" validate:"required"`
	TTL       time.Duration `toml:"ttl" validate:"gte=0"`
}

// Server configures `dagplanner serve`.
type Server struct {
	Host  string `toml:"host" validate:"required"`
	Port  int    `toml:"port" validate:"omitempty,min=1024,max=65535"`
	Debug bool   `toml:"debug"`
}

// Records selects the server's record backend.
type Records struct {
	Backend       string `toml:"backend" validate:"oneof=file sqlite mongo"`
	Dir           string `toml:"dir"`
	SQLitePath    string `toml:"sqlite_path"`
	MongoURI      string `toml:"mongo_uri" validate:"required_if=Backend mongo"`
	MongoDatabase string `toml:"mongo_database"`
}

// Project configures the default project.
type Project struct {
	Root string `toml:"root"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Remote: Remote{
			URL:     fmt.Sprintf("http://%s:%d", DefaultHost, DefaultPort),
			Timeout: 5 * time.Second,
			Retries: 2,
		},
		Cache: Cache{
			Backend: "file",
			Key:     "dagplanner:layers",
		},
		Server: Server{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Records: Records{
			Backend:       "file",
			MongoDatabase: appName,
		},
	}
}

// Addr returns host:port for the server.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DefaultPath returns $XDG_CONFIG_HOME/dagplanner/config.toml, falling
// back to ~/.config/dagplanner/config.toml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// CacheDir returns $XDG_CACHE_HOME/dagplanner, falling back to
// ~/.cache/dagplanner.
func CacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Load reads the configuration from path (or [DefaultPath] when empty),
// applies the process environment and validates the result. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is [Load] with an explicit environment lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "locate config file")
		}
		path = p
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "read %s", path)
		}
	} else {
		cfg.Source = path
	}

	cfg.applyEnv(lookup)
	if err := cfg.fillPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("MCP_HOST"); ok && v != "" {
		c.Server.Host = v
	}
	if v, ok := lookup("MCP_WEB_PORT"); ok {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && (port == 0 || port >= 1024 && port <= 65535) {
			c.Server.Port = port
		}
	}
	if v, ok := lookup("MCP_DEBUG"); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			c.Server.Debug = true
		default:
			c.Server.Debug = false
		}
	}
	if v, ok := lookup("MCP_PROJECT_ROOT"); ok && v != "" {
		c.Project.Root = v
	}
	if v, ok := lookup("DAGPLANNER_REMOTE_URL"); ok && v != "" {
		c.Remote.URL = v
	}
	if v, ok := lookup("DAGPLANNER_REDIS_ADDR"); ok && v != "" {
		c.Cache.RedisAddr = v
		c.Cache.Backend = "redis"
	}
}

func (c *Config) fillPaths() error {
	if c.Cache.Dir == "" {
		dir, err := CacheDir()
		if err != nil {
			return errs.Wrap(errs.ErrCodeInvalidConfig, err, "locate cache dir")
		}
		c.Cache.Dir = dir
	}
	if c.Records.Backend == "sqlite" && c.Records.SQLitePath == "" {
		c.Records.SQLitePath = filepath.Join(c.Cache.Dir, "records.db")
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidConfig, formatValidationError(err), "invalid configuration")
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(e.Namespace(), "Config."))
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a URL", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
