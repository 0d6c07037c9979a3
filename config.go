package octoserve

import (
	"bufio"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/form/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

var nopLogger = zerolog.Nop()
var logger = &nopLogger

// SetupLogger installs the logger used by the whole package.
func SetupLogger(l *zerolog.Logger) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	if l == nil {
		l = &nopLogger
	}
	logger = l
}

// GetLogger returns the package logger.
func GetLogger() *zerolog.Logger {
	return logger
}

const (
	DefaultConfigPath = "settings.cfg"
	DefaultIP         = "127.0.0.1"
	DefaultPort       = "8080"
	DefaultThreads    = 20
	DefaultHomeName   = "home"
	DefaultRoot       = "website"
	DefaultLogLevel   = "info"
)

// Config is the parsed settings.cfg. It is read once at startup and never
// mutated afterwards.
type Config struct {
	IP       string `form:"ip"`
	Port     string `form:"port"`
	Threads  int    `form:"num-threads"`
	HomeName string `form:"home-name"`
	SSLCert  string `form:"ssl-cert"` // not used when serving

	SuppressWarnings bool `form:"-"`

	LogLevel           string `form:"log-level"`
	Root               string `form:"root"`
	ReadTimeoutSeconds int    `form:"read-timeout"`
	MetricsEndpoint    string `form:"metrics-endpoint"`
}

// DefaultConfig returns the values used for keys missing from settings.cfg.
func DefaultConfig() *Config {
	return &Config{
		IP:       DefaultIP,
		Port:     DefaultPort,
		Threads:  DefaultThreads,
		HomeName: DefaultHomeName,
		LogLevel: DefaultLogLevel,
		Root:     DefaultRoot,
	}
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.IP, c.Port)
}

// ReadTimeout is the per-connection read deadline; zero disables it.
func (c *Config) ReadTimeout() time.Duration {
	if c.ReadTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// Level returns the configured zerolog level, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

var configDecoder = form.NewDecoder()

// LoadConfig reads and parses the settings file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open configuration file %s", path)
	}
	defer f.Close()

	return ParseConfig(f)
}

// ParseConfig parses "key = value" lines. Blank lines and lines starting with
// '#' are skipped; malformed lines are skipped with a warning unless
// suppress-warnings was set earlier in the file. The last occurrence of a key
// wins and unknown keys are ignored.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	values := make(map[string][]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		parts := strings.Split(line, "=")
		if len(parts) != 2 {
			if !cfg.SuppressWarnings {
				logger.Warn().
					Str("line", line).
					Msg("[octoserve] invalid line in settings, skipping it (add \"suppress-warnings = true\" at the top of the file to hide this)")
			}
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")

		if key == "suppress-warnings" {
			suppress, err := strconv.ParseBool(value)
			if err != nil {
				suppress = true
			}
			cfg.SuppressWarnings = suppress
			continue
		}
		values[key] = []string{value}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read configuration")
	}

	if err := configDecoder.Decode(cfg, values); err != nil {
		var decodeErrs form.DecodeErrors
		if !errors.As(err, &decodeErrs) {
			return nil, errors.Wrap(err, "decode configuration")
		}
		defaults := DefaultConfig()
		for key, fieldErr := range decodeErrs {
			if !cfg.SuppressWarnings {
				logger.Warn().Err(fieldErr).Str("key", key).Msg("[octoserve] invalid value in settings, using the default")
			}
			switch key {
			case "num-threads":
				cfg.Threads = defaults.Threads
			case "read-timeout":
				cfg.ReadTimeoutSeconds = defaults.ReadTimeoutSeconds
			}
		}
	}

	if cfg.Threads < 1 {
		if !cfg.SuppressWarnings {
			logger.Warn().Int("num-threads", cfg.Threads).Msg("[octoserve] num-threads must be positive, using the default")
		}
		cfg.Threads = DefaultThreads
	}
	if cfg.HomeName == "" {
		cfg.HomeName = DefaultHomeName
	}
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}

	return cfg, nil
}
