package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  host: "0.0.0.0"
  port: 8080
  timezone: "Europe/Amsterdam"
database:
  host: "localhost"
  port: 5432
  name: "fittrack"
  user: "fittrack"
  password: "secret"
  sslmode: "disable"
redis:
  enabled: true
  addr: "localhost:6379"
auth:
  mode: "header"
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadValid verifies that a well-formed YAML config loads with all fields populated.
func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server.host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "fittrack" {
		t.Errorf("database.name = %q, want %q", cfg.Database.Name, "fittrack")
	}
	if cfg.Auth.Mode != AuthHeader {
		t.Errorf("auth.mode = %q, want %q", cfg.Auth.Mode, AuthHeader)
	}
	if cfg.Server.Location().String() != "Europe/Amsterdam" {
		t.Errorf("location = %q, want Europe/Amsterdam", cfg.Server.Location())
	}
}

// TestDefaults verifies the values filled in when the YAML leaves them out.
func TestDefaults(t *testing.T) {
	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("database.driver = %q, want %q", cfg.Database.Driver, DriverPostgres)
	}
	if cfg.Media.MaxUploadBytes() != 16<<20 {
		t.Errorf("max upload = %d, want %d", cfg.Media.MaxUploadBytes(), 16<<20)
	}
	if cfg.Redis.ActiveSessionTTL != 12*time.Hour {
		t.Errorf("active_session_ttl = %s, want 12h", cfg.Redis.ActiveSessionTTL)
	}
	if cfg.Auth.UserHeader != "X-Forwarded-User" {
		t.Errorf("auth.user_header = %q", cfg.Auth.UserHeader)
	}
}

// TestEnvOverride verifies that FITTRACK_ env vars take precedence over YAML values.
func TestEnvOverride(t *testing.T) {
	t.Setenv("FITTRACK_DB_HOST", "override-host")
	t.Setenv("FITTRACK_DB_PORT", "9999")
	t.Setenv("FITTRACK_AUTH_MODE", "dev")

	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "override-host" {
		t.Errorf("database.host = %q, want %q", cfg.Database.Host, "override-host")
	}
	if cfg.Database.Port != 9999 {
		t.Errorf("database.port = %d, want 9999", cfg.Database.Port)
	}
	if cfg.Auth.Mode != AuthDev {
		t.Errorf("auth.mode = %q, want %q", cfg.Auth.Mode, AuthDev)
	}
	if cfg.Database.User != "fittrack" {
		t.Errorf("database.user = %q, want unchanged %q", cfg.Database.User, "fittrack")
	}
}

// TestMemoryDriverSkipsDatabaseFields verifies the in-memory driver needs no connection settings.
func TestMemoryDriverSkipsDatabaseFields(t *testing.T) {
	yml := `
server:
  port: 8080
database:
  driver: memory
`
	if _, err := Load(writeTemp(t, yml)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestValidationErrors verifies that invalid settings are reported.
func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing port",
			yaml:    "database:\n  driver: memory\n",
			wantErr: "server.port",
		},
		{
			name:    "missing db host",
			yaml:    "server:\n  port: 1\ndatabase:\n  port: 5432\n",
			wantErr: "database.host",
		},
		{
			name:    "unknown driver",
			yaml:    "server:\n  port: 1\ndatabase:\n  driver: mysql\n",
			wantErr: "database.driver",
		},
		{
			name:    "tailscale auth without tailscale",
			yaml:    "server:\n  port: 1\ndatabase:\n  driver: memory\nauth:\n  mode: tailscale\n",
			wantErr: "tailscale.enabled",
		},
		{
			name:    "bad timezone",
			yaml:    "server:\n  port: 1\n  timezone: Mars/Base\ndatabase:\n  driver: memory\n",
			wantErr: "server.timezone",
		},
		{
			name:    "redis without addr",
			yaml:    "server:\n  port: 1\ndatabase:\n  driver: memory\nredis:\n  enabled: true\n",
			wantErr: "redis.addr",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

// TestMissingFile verifies that a missing config file produces an error.
func TestMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// TestDSN verifies the connection string built from database settings.
func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "fittrack", User: "u", Password: "p"}
	want := "postgres://u:p@db:5432/fittrack?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
