package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("base_url: https://intranet.example.com\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Environment != "dev" {
		t.Errorf("Environment = %q, want dev", cfg.Environment)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("database defaults = %s:%d, want 127.0.0.1:3306", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Database != "jirabridge" {
		t.Errorf("Database.Database = %q, want jirabridge", cfg.Database.Database)
	}
	if cfg.HTTP.Timeout() != 10*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 10s", cfg.HTTP.Timeout())
	}
	if cfg.Import.Schedule != "*/30 * * * *" {
		t.Errorf("Import.Schedule = %q", cfg.Import.Schedule)
	}
	if cfg.Dashboard.Addr != "127.0.0.1:8090" {
		t.Errorf("Dashboard.Addr = %q", cfg.Dashboard.Addr)
	}
}

func TestParse_Explicit(t *testing.T) {
	yaml := `
environment: prod
database:
  host: db.internal
  port: 3307
  user: sync
  password: pw
  database: tasks
http:
  timeout_seconds: 30
  proxy:
    host: proxy.internal
    port: 3128
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("environment prod should pass the production guard")
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 3307 {
		t.Errorf("database = %s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.HTTP.Timeout() != 30*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 30s", cfg.HTTP.Timeout())
	}
	if cfg.HTTP.Proxy.Host != "proxy.internal" {
		t.Errorf("Proxy.Host = %q", cfg.HTTP.Proxy.Host)
	}
}

func TestParse_ProxyWithoutPort(t *testing.T) {
	yaml := `
http:
  proxy:
    host: proxy.internal
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected validation error for proxy host without port")
	}
	if !strings.Contains(err.Error(), "http.proxy.port") {
		t.Errorf("error = %v, want mention of http.proxy.port", err)
	}
}

func TestIsProduction(t *testing.T) {
	for env, want := range map[string]bool{"prod": true, "dev": false, "staging": false, "production": false} {
		cfg := Config{Environment: env}
		if got := cfg.IsProduction(); got != want {
			t.Errorf("IsProduction(%q) = %v, want %v", env, got, want)
		}
	}
}
