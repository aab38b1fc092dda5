package common

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsIncludesAndProfile(t *testing.T) {
	base := writeConfig(t, "base.yaml", `
data_dir: /var/lib/gb
library:
  roots: [/sdcard/easyrpg/games, /sdcard/extra]
cache:
  backend: redis
  redis_url: redis://localhost:6379/0
profiles:
  dev:
    log:
      level: debug
`)
	inc := writeConfig(t, "inc.yaml", "library:\n  watch: true\n")
	v, err := Load(base, []string{inc}, "dev")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Decode(v)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Library.Roots) != 2 || !cfg.Library.Watch || cfg.Library.Backend != "local" {
		t.Fatalf("library = %+v", cfg.Library)
	}
	if cfg.Log.Level != "debug" || cfg.Cache.TTL != 24*time.Hour {
		t.Fatalf("log=%+v cache=%+v", cfg.Log, cfg.Cache)
	}
	if cfg.Layouts.File != filepath.Join("/var/lib/gb", "button_mapping.json") {
		t.Fatalf("layouts file = %s", cfg.Layouts.File)
	}
	if err := ValidateLibraryConfig(v, false); err != nil {
		t.Fatal(err)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("GAMEBROWSER_LIBRARY_SAVE_DIR", "/tmp/saves")
	v, err := Load("", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Decode(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Library.SaveDir != "/tmp/saves" {
		t.Fatalf("save dir = %q", cfg.Library.SaveDir)
	}
}

func TestMissingProfile(t *testing.T) {
	base := writeConfig(t, "base.yaml", "library: {}\n")
	if _, err := Load(base, nil, "nope"); err == nil {
		t.Fatalf("expected missing profile error")
	}
}

func TestValidateLibraryConfig(t *testing.T) {
	root := t.TempDir()
	cases := []struct {
		name   string
		body   string
		strict bool
		ok     bool
	}{
		{"valid strict", "library:\n  roots: [" + root + "]\n", true, true},
		{"no roots strict", "library: {}\n", true, false},
		{"missing root strict", "library:\n  roots: [" + filepath.Join(root, "nope") + "]\n", true, false},
		{"missing root lax", "library:\n  roots: [" + filepath.Join(root, "nope") + "]\n", false, true},
		{"bad backend", "library:\n  backend: ftp\n", false, false},
		{"blob without url", "library:\n  backend: blob\n", false, false},
		{"blob url", "library:\n  backend: blob\n  bucket_url: mem://\n", false, true},
		{"blob bucket section", "library:\n  backend: blob\n  bucket:\n    driver: s3\n    bucket: games\n", false, true},
		{"blob bucket section invalid", "library:\n  backend: blob\n  bucket:\n    driver: s3\n", false, false},
		{"redis without url", "cache:\n  backend: redis\n", false, false},
		{"bad log level", "log:\n  level: loud\n", false, false},
		{"telemetry without collector", "telemetry:\n  enabled: true\n", false, false},
		{"unknown locale strict", "library:\n  roots: [" + root + "]\n  locale: xx\n", true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Load(writeConfig(t, "c.yaml", tc.body), nil, "")
			if err != nil {
				t.Fatal(err)
			}
			err = ValidateLibraryConfig(v, tc.strict)
			if (err == nil) != tc.ok {
				t.Fatalf("ok=%v err=%v", tc.ok, err)
			}
		})
	}
}

func TestCountingHandler(t *testing.T) {
	var buf bytes.Buffer
	before := GetLogCounters()
	l := slog.New(NewHandler(&buf, "warn", "json")).With("component", "test")
	l.Info("hidden")
	l.Warn("shown")
	after := GetLogCounters()
	if after["warn"]-before["warn"] != 1 {
		t.Fatalf("warn counter not incremented: %v -> %v", before, after)
	}
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"component":"test"`) {
		t.Fatalf("output = %s", buf.String())
	}
}
