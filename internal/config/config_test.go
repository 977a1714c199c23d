package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"RUTINA_BIND", "RUTINA_PORT", "RUTINA_LOG_MODE", "RUTINA_CACHE_SIZE"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.Port != def.Port || cfg.Bind != def.Bind || cfg.CacheSize != def.CacheSize {
		t.Fatalf("Load() = %+v, want defaults %+v", cfg, def)
	}
	if cfg.ReminderPollSeconds != 20 {
		t.Errorf("ReminderPollSeconds = %d, want 20", cfg.ReminderPollSeconds)
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, 1<<20)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, `{"port": 9000, "log_mode": "prod", "max_body_bytes": 2048}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.LogMode != LogModeProd {
		t.Errorf("LogMode = %q, want prod", cfg.LogMode)
	}
	if cfg.MaxBodyBytes != 2048 {
		t.Errorf("MaxBodyBytes = %d, want 2048", cfg.MaxBodyBytes)
	}
	if cfg.Bind != "127.0.0.1" {
		t.Errorf("Bind = %q, want default", cfg.Bind)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, `{not json}`)

	if _, err := Load(dir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, `{"port": 9000, "bind": "0.0.0.0"}`)
	t.Setenv("RUTINA_PORT", "7777")
	t.Setenv("RUTINA_LOG_MODE", "PROD")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 7777 {
		t.Errorf("Port = %d, want 7777", cfg.Port)
	}
	if cfg.Bind != "0.0.0.0" {
		t.Errorf("Bind = %q, want file value", cfg.Bind)
	}
	if cfg.LogMode != LogModeProd {
		t.Errorf("LogMode = %q, want prod", cfg.LogMode)
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*Config) bool
	}{
		{"empty", map[string]string{}, false, func(c *Config) bool { return c.Port == 8642 }},
		{"bind", map[string]string{"RUTINA_BIND": " 0.0.0.0 "}, false, func(c *Config) bool { return c.Bind == "0.0.0.0" }},
		{"cache", map[string]string{"RUTINA_CACHE_SIZE": "16"}, false, func(c *Config) bool { return c.CacheSize == 16 }},
		{"bad port", map[string]string{"RUTINA_PORT": "http"}, true, nil},
		{"port out of range", map[string]string{"RUTINA_PORT": "70000"}, true, nil},
		{"zero cache", map[string]string{"RUTINA_CACHE_SIZE": "0"}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := ApplyEnv(cfg, func(k string) string { return tt.env[k] })
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("ApplyEnv() produced %+v", cfg)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("RUTINA_TEST_DOTENV=hola\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("RUTINA_TEST_DOTENV") })

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("RUTINA_TEST_DOTENV"); got != "hola" {
		t.Errorf("RUTINA_TEST_DOTENV = %q, want hola", got)
	}
}

func TestBaseDir(t *testing.T) {
	t.Setenv("RUTINA_HOME", "/tmp/rutina-home")
	dir, err := BaseDir()
	if err != nil {
		t.Fatalf("BaseDir() error = %v", err)
	}
	if dir != "/tmp/rutina-home" {
		t.Errorf("BaseDir() = %q", dir)
	}

	t.Setenv("RUTINA_HOME", "")
	dir, err = BaseDir()
	if err != nil {
		t.Fatalf("BaseDir() error = %v", err)
	}
	if filepath.Base(dir) != ".rutina" {
		t.Errorf("BaseDir() = %q, want ~/.rutina", dir)
	}
}

func TestAddr(t *testing.T) {
	if got := DefaultConfig().Addr(); got != "127.0.0.1:8642" {
		t.Errorf("Addr() = %q", got)
	}
	cfg := &Config{Bind: "::1", Port: 9000}
	if got := cfg.Addr(); got != "[::1]:9000" {
		t.Errorf("Addr() = %q, want [::1]:9000", got)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{Port: 1, CacheSize: 10, DBMaxOpenConns: 4}
	overlay := &Config{Port: 2}

	got := Merge(base, overlay)
	if got.Port != 2 {
		t.Errorf("Port = %d, want 2", got.Port)
	}
	if got.CacheSize != 10 || got.DBMaxOpenConns != 4 {
		t.Errorf("unset overlay fields should keep base values: %+v", got)
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"person_delete", " event_delete "}}
	overlay := &Config{DisabledTools: []string{"event_delete", "", "reminder_delete"}}

	got := Merge(base, overlay).DisabledTools
	want := []string{"person_delete", "event_delete", "reminder_delete"}
	if len(got) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if Merge(&Config{}, &Config{}).DisabledTypes != nil {
		t.Errorf("empty merge should yield nil slice")
	}
}
