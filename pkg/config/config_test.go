package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	errs "github.com/matzehuels/dagplanner/pkg/errors"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cfg, err := LoadWith("", env(nil))
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want none", cfg.Source)
	}
	if cfg.Server.Addr() != "127.0.0.1:9005" {
		t.Errorf("Addr = %q", cfg.Server.Addr())
	}
	if cfg.Remote.Timeout != 5*time.Second || cfg.Remote.Retries != 2 {
		t.Errorf("remote = %+v", cfg.Remote)
	}
	if !strings.HasSuffix(cfg.Cache.Dir, "dagplanner") {
		t.Errorf("Cache.Dir = %q", cfg.Cache.Dir)
	}
}

func TestFileAndEnvLayers(t *testing.T) {
	path := writeConfig(t, `
[remote]
url = "http://store.internal:8080"
timeout = "2s"

[server]
port = 9100

[records]
backend = "sqlite"

[cache]
dir = "/tmp/dp-cache"
`)
	cfg, err := LoadWith(path, env(map[string]string{
		"MCP_WEB_PORT":     "9200",
		"MCP_DEBUG":        "yes",
		"MCP_PROJECT_ROOT": "/work/proj",
	}))
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if cfg.Source != path {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.Remote.URL != "http://store.internal:8080" || cfg.Remote.Timeout != 2*time.Second {
		t.Errorf("remote = %+v", cfg.Remote)
	}
	if cfg.Server.Port != 9200 || !cfg.Server.Debug {
		t.Errorf("server = %+v, env should win over file", cfg.Server)
	}
	if cfg.Project.Root != "/work/proj" {
		t.Errorf("project root = %q", cfg.Project.Root)
	}
	if cfg.Records.SQLitePath != filepath.Join("/tmp/dp-cache", "records.db") {
		t.Errorf("SQLitePath = %q", cfg.Records.SQLitePath)
	}
}

func TestEnvIgnoresMalformedValues(t *testing.T) {
	path := writeConfig(t, "[server]\nport = 9100\n")
	for _, port := range []string{"abc", "80", "70000"} {
		cfg, err := LoadWith(path, env(map[string]string{"MCP_WEB_PORT": port}))
		if err != nil {
			t.Fatalf("port %s: %v", port, err)
		}
		if cfg.Server.Port != 9100 {
			t.Errorf("MCP_WEB_PORT=%s: port = %d, want 9100", port, cfg.Server.Port)
		}
	}
}

func TestRedisAddrSelectsRedis(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := LoadWith(path, env(map[string]string{"DAGPLANNER_REDIS_ADDR": "localhost:6379"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"BadBackend", "[cache]\nbackend = \"memcached\"\n", "backend must be one of"},
		{"LowPort", "[server]\nport = 80\n", "port must be at least 1024"},
		{"MongoWithoutURI", "[records]\nbackend = \"mongo\"\n", "mongouri is required"},
		{"ZeroTimeout", "[remote]\ntimeout = \"0s\"\n", "timeout must be greater than 0"},
		{"BadURL", "[remote]\nurl = \"not a url\"\n", "url must be a URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWith(writeConfig(t, tt.body), env(nil))
			if !errs.Is(err, errs.ErrCodeInvalidConfig) {
				t.Fatalf("err = %v, want INVALID_CONFIG", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestExplicitMissingFile(t *testing.T) {
	_, err := LoadWith(filepath.Join(t.TempDir(), "nope.toml"), env(nil))
	if !errs.Is(err, errs.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestMalformedTOML(t *testing.T) {
	_, err := LoadWith(writeConfig(t, "[server\nport = "), env(nil))
	if !errs.Is(err, errs.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}
