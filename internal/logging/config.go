package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "TDPROTO_LOG_LEVEL"
	EnvLogTimestamp = "TDPROTO_LOG_TIMESTAMP"
	EnvLogNoColor   = "TDPROTO_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger setup for a profile.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the global zerolog logger once per process.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		log.Logger = New(cfg)
		zerolog.SetGlobalLevel(cfg.Level)
	})
}

// New builds a console logger from cfg.
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	writer := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	if !cfg.Timestamp {
		writer.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	ctx := zerolog.New(writer).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	setBool(&cfg.Timestamp, os.Getenv(EnvLogTimestamp))
	setBool(&cfg.NoColor, os.Getenv(EnvLogNoColor))
}

var levelAliases = map[string]string{
	"warning":     "warn",
	"diagnostics": "trace",
	"off":         "disabled",
	"none":        "disabled",
}

// parseLevel accepts zerolog level names plus a few aliases. ok is false for
// unset or unrecognised values.
func parseLevel(raw string) (zerolog.Level, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if alias, found := levelAliases[name]; found {
		name = alias
	}
	if name == "" {
		return zerolog.InfoLevel, false
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel, false
	}
	return lvl, true
}

// setBool leaves dst untouched unless raw parses as a bool.
func setBool(dst *bool, raw string) {
	if v, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
		*dst = v
	}
}
