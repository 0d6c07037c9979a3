package octoserve

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var logBuf bytes.Buffer
	testLogger := zerolog.New(&logBuf).Level(zerolog.DebugLevel)
	oldLogger := logger
	logger = &testLogger
	t.Cleanup(func() { logger = oldLogger })
	return &logBuf
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.IP != "127.0.0.1" || cfg.Port != "8080" {
		t.Errorf("Unexpected default address %s", cfg.Address())
	}
	if cfg.Threads != 20 {
		t.Errorf("Default threads should be 20, got %d", cfg.Threads)
	}
	if cfg.HomeName != "home" {
		t.Errorf("Default home name should be home, got %s", cfg.HomeName)
	}
	if cfg.Root != "website" {
		t.Errorf("Default root should be website, got %s", cfg.Root)
	}
	if cfg.ReadTimeout() != 0 {
		t.Errorf("Read timeout should be disabled by default, got %v", cfg.ReadTimeout())
	}
	if cfg.Level() != zerolog.InfoLevel {
		t.Errorf("Default level should be info, got %v", cfg.Level())
	}
}

func TestParseConfigValues(t *testing.T) {
	input := `# web server settings
ip = "0.0.0.0"
port = "9090"
num-threads = 4

home-name = "index"
ssl-cert = "/etc/ssl/cert.pem"
log-level = debug
root = public
read-timeout = 15
metrics-endpoint = collector:4317
unknown-key = whatever
`
	cfg, err := ParseConfig(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Address() != "0.0.0.0:9090" {
		t.Errorf("Expected address 0.0.0.0:9090, got %s", cfg.Address())
	}
	if cfg.Threads != 4 {
		t.Errorf("Expected 4 threads, got %d", cfg.Threads)
	}
	if cfg.HomeName != "index" {
		t.Errorf("Expected home name index, got %s", cfg.HomeName)
	}
	if cfg.SSLCert != "/etc/ssl/cert.pem" {
		t.Errorf("Expected ssl cert path, got %s", cfg.SSLCert)
	}
	if cfg.Level() != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %v", cfg.Level())
	}
	if cfg.Root != "public" {
		t.Errorf("Expected root public, got %s", cfg.Root)
	}
	if cfg.ReadTimeout() != 15*time.Second {
		t.Errorf("Expected 15s read timeout, got %v", cfg.ReadTimeout())
	}
	if cfg.MetricsEndpoint != "collector:4317" {
		t.Errorf("Expected metrics endpoint, got %s", cfg.MetricsEndpoint)
	}
}

func TestParseConfigLastValueWins(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader("port = 1000\nport = 2000\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Port != "2000" {
		t.Errorf("Expected the last port to win, got %s", cfg.Port)
	}
}

func TestParseConfigInvalidThreads(t *testing.T) {
	captureLogs(t)

	tests := []struct {
		name  string
		value string
	}{
		{"not a number", "many"},
		{"zero", "0"},
		{"negative", "-3"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig(strings.NewReader("num-threads = " + tt.value + "\nport = 81\n"))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if cfg.Threads != DefaultThreads {
				t.Errorf("Expected fallback to %d threads, got %d", DefaultThreads, cfg.Threads)
			}
			if cfg.Port != "81" {
				t.Errorf("Other keys should still apply, got port %s", cfg.Port)
			}
		})
	}
}

func TestParseConfigMalformedLineWarnings(t *testing.T) {
	logBuf := captureLogs(t)

	cfg, err := ParseConfig(strings.NewReader("this line is wrong\nport = 8081\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Port != "8081" {
		t.Errorf("Expected port 8081, got %s", cfg.Port)
	}
	if !strings.Contains(logBuf.String(), "this line is wrong") {
		t.Errorf("Expected a warning naming the line, got: %s", logBuf.String())
	}

	logBuf.Reset()
	cfg, err = ParseConfig(strings.NewReader("suppress-warnings = true\nbad = line = here\nnum-threads = x\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !cfg.SuppressWarnings {
		t.Error("Expected warnings to be suppressed")
	}
	if logBuf.Len() != 0 {
		t.Errorf("Expected no warnings once suppressed, got: %s", logBuf.String())
	}
}

func TestParseConfigSuppressWarningsValue(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"false", false},
		{"", true},
		{"maybe", true},
	}
	for _, tt := range tests {
		cfg, err := ParseConfig(strings.NewReader("suppress-warnings = " + tt.value + "\n"))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cfg.SuppressWarnings != tt.expected {
			t.Errorf("suppress-warnings = %q: expected %v, got %v", tt.value, tt.expected, cfg.SuppressWarnings)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.cfg")
	if err := os.WriteFile(path, []byte("home-name = landing\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.HomeName != "landing" {
		t.Errorf("Expected home name landing, got %s", cfg.HomeName)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.cfg")); err == nil {
		t.Error("Expected an error for a missing settings file")
	}
}

func TestSetupLogger(t *testing.T) {
	oldLogger := GetLogger()
	defer SetupLogger(oldLogger)

	var logBuf bytes.Buffer
	l := zerolog.New(&logBuf)
	SetupLogger(&l)
	if GetLogger() != &l {
		t.Error("Expected the installed logger to be returned")
	}

	SetupLogger(nil)
	if GetLogger() == nil {
		t.Error("Expected a no-op logger when nil is installed")
	}
}
