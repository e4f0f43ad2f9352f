package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/skyhangar/hangar/internal/branding"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Keys persisted in config.yaml.
const (
	KeySceneryPaths     = "scenery_paths"
	KeyAircraftPaths    = "aircraft_paths"
	KeyDataDir          = "data_dir"
	KeyCatalogURL       = "catalog_url"
	KeySimulatorVersion = "simulator_version"
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
)

// ErrNotList is returned by Strings when the stored value cannot be read as
// an ordered list of strings.
var ErrNotList = errors.New("value is not a list of strings")

// Dir returns the path to the config directory (~/.hangar/).
// HANGAR_CONFIG_DIR overrides it.
func Dir() string {
	if v := os.Getenv(branding.EnvVar("CONFIG_DIR")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.hangar/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	return ensureDir(Dir())
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Store is a config file backed by its own viper instance. It is read once
// on Open and written back on every Set.
type Store struct {
	v    *viper.Viper
	path string
}

// Option configures a Store.
type Option func(*Store)

// WithEnv lets environment variables with the branding prefix override
// scalar keys (e.g., HANGAR_LOG_LEVEL).
func WithEnv() Option {
	return func(s *Store) {
		s.v.SetEnvPrefix(branding.EnvPrefix())
		s.v.AutomaticEnv()
	}
}

// Open reads the config file at path. A missing file yields an empty store;
// a file that exists but cannot be parsed is an error.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{v: viper.New(), path: path}
	s.v.SetConfigFile(path)
	s.v.SetConfigType(fileType)
	for _, opt := range opts {
		opt(s)
	}

	if err := s.v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return s, nil
		}
		return s, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return s, nil
}

// Path returns the config file location.
func (s *Store) Path() string {
	return s.path
}

// String returns a scalar value. Returns empty string if not set.
func (s *Store) String(key string) string {
	return s.v.GetString(key)
}

// Strings returns an ordered list value. An unset key yields nil. A scalar
// string is split with the OS list separator, the same convention as
// FG_SCENERY. Anything else yields ErrNotList.
func (s *Store) Strings(key string) ([]string, error) {
	raw := s.v.Get(key)
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if val == "" {
			return nil, nil
		}
		return filepath.SplitList(val), nil
	case []string:
		return append([]string(nil), val...), nil
	case []interface{}:
		out := make([]string, 0, len(val))
		for i, item := range val {
			str, err := cast.ToStringE(item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", key, i, ErrNotList)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s has type %T: %w", key, raw, ErrNotList)
	}
}

// Set writes a scalar key and saves the config file. If the file cannot be
// written the previous value stays in effect.
func (s *Store) Set(key, value string) error {
	return s.update(key, value)
}

// SetStrings writes an ordered list and saves the config file. If the file
// cannot be written the previous list stays in effect.
func (s *Store) SetStrings(key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	return s.update(key, values)
}

// update sets key and saves, restoring the old value when the save fails so
// a later write of another key cannot persist the rejected one.
func (s *Store) update(key string, value any) error {
	prev := s.v.Get(key)
	s.v.Set(key, value)
	if err := s.write(); err != nil {
		s.v.Set(key, prev)
		return err
	}
	return nil
}

func (s *Store) write() error {
	if err := ensureDir(filepath.Dir(s.path)); err != nil {
		return err
	}

	// Create the file if it doesn't exist.
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		f, err := os.Create(s.path)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", s.path, err)
		}
		f.Close()
	}

	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

var defaultStore *Store

// Load opens the user config file with environment overrides and makes it
// the store behind Get and Set.
func Load() (*Store, error) {
	s, err := Open(FilePath(), WithEnv())
	defaultStore = s
	return s, err
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	if defaultStore == nil {
		_, _ = Load()
	}
	return defaultStore.String(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if defaultStore == nil {
		if _, err := Load(); err != nil {
			return err
		}
	}
	return defaultStore.Set(key, value)
}
