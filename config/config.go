// Package config resolves wfedit settings from defaults, the config file,
// WFEDIT_* environment variables and command-line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// HomeEnv overrides ~/.wfedit.
	HomeEnv = "WFEDIT_HOME"

	envPrefix  = "WFEDIT"
	dirName    = ".wfedit"
	configFile = "config.json"
)

// Keys.
const (
	KeyWorkflowsDir = "workflows-dir"
	KeyPattern      = "pattern"
	KeyUndoDepth    = "undo-depth"
	KeyLogLevel     = "log-level"
	KeyLogFormat    = "log-format"
	KeyLogFile      = "log-file"
	KeyHistoryDB    = "history-db"
	KeyHistory      = "history"
	KeyListen       = "listen"
	KeyConcurrency  = "concurrency"
)

const (
	minUndoDepth   = 1
	maxUndoDepth   = 500
	minConcurrency = 1
	maxConcurrency = 64
)

var defaults = map[string]any{
	KeyWorkflowsDir: ".github/workflows",
	KeyPattern:      "**/*.{yml,yaml}",
	KeyUndoDepth:    50,
	KeyLogLevel:     "warn",
	KeyLogFormat:    "console",
	KeyLogFile:      "",
	KeyHistoryDB:    "",
	KeyHistory:      true,
	KeyListen:       "127.0.0.1:7777",
	KeyConcurrency:  8,
}

// Keys returns every setting name in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Config is the resolved configuration.
type Config struct {
	Home         string
	WorkflowsDir string
	Pattern      string
	UndoDepth    int
	LogLevel     string
	LogFormat    string
	LogFile      string
	HistoryDB    string
	History      bool
	Listen       string
	Concurrency  int
}

// ValueSource indicates where a configuration value originated.
type ValueSource int

// Value sources, lowest precedence first.
const (
	SourceDefault ValueSource = iota
	SourceFile
	SourceEnv
	SourceFlag
)

func (s ValueSource) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceFile:
		return "file"
	case SourceEnv:
		return "env"
	case SourceFlag:
		return "flag"
	}
	return "unknown"
}

// Entry is one resolved setting and where it came from.
type Entry struct {
	Key    string      `json:"key"`
	Value  any         `json:"value"`
	Source ValueSource `json:"-"`
}

// Loader reads configuration through its own viper instance.
type Loader struct {
	v     *viper.Viper
	flags *pflag.FlagSet
	home  string
}

// NewLoader returns a loader with defaults and environment binding set up.
func NewLoader() *Loader {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// BindFlags lets flags named after settings override everything else.
// Flags that do not name a setting are ignored.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	l.flags = fs
	for _, key := range Keys() {
		if f := fs.Lookup(key); f != nil {
			if err := l.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding flag %s: %w", key, err)
			}
		}
	}
	return nil
}

// Home returns the wfedit directory: $WFEDIT_HOME or ~/.wfedit.
func Home() (string, error) {
	if override := os.Getenv(HomeEnv); override != "" {
		return filepath.Clean(override), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Path returns the config file location.
func Path() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFile), nil
}

// Load reads the config file, if any, and resolves every setting.
func (l *Loader) Load() (*Config, error) {
	home, err := Home()
	if err != nil {
		return nil, err
	}
	l.home = home

	l.v.SetConfigFile(filepath.Join(home, configFile))
	l.v.SetConfigType("json")
	if err := l.v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		Home:         home,
		WorkflowsDir: l.v.GetString(KeyWorkflowsDir),
		Pattern:      l.v.GetString(KeyPattern),
		UndoDepth:    clamp(l.v.GetInt(KeyUndoDepth), minUndoDepth, maxUndoDepth),
		LogLevel:     strings.ToLower(l.v.GetString(KeyLogLevel)),
		LogFormat:    strings.ToLower(l.v.GetString(KeyLogFormat)),
		LogFile:      l.v.GetString(KeyLogFile),
		HistoryDB:    l.v.GetString(KeyHistoryDB),
		History:      l.v.GetBool(KeyHistory),
		Listen:       l.v.GetString(KeyListen),
		Concurrency:  clamp(l.v.GetInt(KeyConcurrency), minConcurrency, maxConcurrency),
	}
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = filepath.Join(home, "history.db")
	}
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid %s %q (want console or json)", KeyLogFormat, cfg.LogFormat)
	}
	return cfg, nil
}

// Entries lists every setting with its resolved value and source. Load must
// have been called.
func (l *Loader) Entries() []Entry {
	entries := make([]Entry, 0, len(defaults))
	for _, key := range Keys() {
		entries = append(entries, Entry{Key: key, Value: l.v.Get(key), Source: l.source(key)})
	}
	return entries
}

func (l *Loader) source(key string) ValueSource {
	if l.flags != nil {
		if f := l.flags.Lookup(key); f != nil && f.Changed {
			return SourceFlag
		}
	}
	if _, ok := os.LookupEnv(envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))); ok {
		return SourceEnv
	}
	if l.v.InConfig(key) {
		return SourceFile
	}
	return SourceDefault
}

// Set writes one setting to the config file, leaving the others as they
// are. The value is parsed according to the setting's type.
func Set(key, raw string) error {
	def, ok := defaults[key]
	if !ok {
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(Keys(), ", "))
	}

	var value any
	switch def.(type) {
	case int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		value = n
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s must be true or false: %w", key, err)
		}
		value = b
	default:
		value = raw
	}

	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	fileOnly := viper.New()
	fileOnly.SetConfigFile(path)
	fileOnly.SetConfigType("json")
	if err := fileOnly.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}
	fileOnly.Set(key, value)
	if err := fileOnly.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func clamp(value, lo, hi int) int {
	return max(lo, min(value, hi))
}
