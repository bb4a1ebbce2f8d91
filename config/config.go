// Package config loads notevault settings from defaults, an optional YAML
// file, NOTEVAULT_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/rohanthewiz/serr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"notevault/models"
)

// Config holds every setting the CLI needs to open a store.
type Config struct {
	DataDir       string        `mapstructure:"data_dir" yaml:"data_dir"`
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	Codec         string        `mapstructure:"codec" yaml:"codec"`
	Namespaces    Namespaces    `mapstructure:"namespaces" yaml:"namespaces"`
	SaveDebounce  time.Duration `mapstructure:"save_debounce" yaml:"save_debounce"`
	KDFIterations int           `mapstructure:"kdf_iterations" yaml:"kdf_iterations"`
	LogLevel      string        `mapstructure:"log_level" yaml:"log_level"`
	// Listen is the address of the HTTP API started by serve.
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// Namespaces names the two persisted collections.
type Namespaces struct {
	Plain     string `mapstructure:"plain" yaml:"plain"`
	Encrypted string `mapstructure:"encrypted" yaml:"encrypted"`
}

const (
	envPrefix = "notevault"
	fileName  = "notevault"

	// DefaultListen keeps the API on loopback unless told otherwise.
	DefaultListen = "localhost:8000"
)

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"data-dir": "data_dir",
	"backend":  "backend",
	"codec":    "codec",
	"listen":   "listen",
}

// DefaultDataDir is ~/.config/notevault or ./.notevault when no user config
// directory is available.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".notevault"
	}
	return filepath.Join(dir, "notevault")
}

func defaults() map[string]any {
	return map[string]any{
		"data_dir":             DefaultDataDir(),
		"backend":              "file",
		"codec":                "json",
		"namespaces.plain":     models.DefaultPlainNamespace,
		"namespaces.encrypted": models.DefaultEncryptedNamespace,
		"save_debounce":        models.DefaultSaveDebounce.String(),
		"kdf_iterations":       models.DefaultIterations,
		"log_level":            "info",
		"listen":               DefaultListen,
	}
}

// Load builds the effective configuration. path names an explicit config
// file; when empty, notevault.yaml is looked up in the user config dir and
// the working directory, and a missing file is not an error. cmd may be nil.
func Load(cmd *cobra.Command, path string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(fileName)
		v.AddConfigPath(DefaultDataDir())
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return c, serr.Wrap(err, "failed to read config file")
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for flagName, key := range flagKeys {
			if f := cmd.Flags().Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return c, serr.Wrap(err, "failed to bind flag "+flagName)
				}
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, serr.Wrap(err, "failed to parse configuration")
	}
	return c, c.Validate()
}

// Validate rejects settings the store cannot run with.
func (c Config) Validate() error {
	switch c.Backend {
	case "memory", "file", "duckdb", "sqlite":
	default:
		return serr.New("backend must be one of memory, file, duckdb, sqlite; got " + strconv.Quote(c.Backend))
	}
	if _, err := models.CodecByName(c.Codec); err != nil {
		return err
	}
	if c.Backend != "memory" && c.DataDir == "" {
		return serr.New("data_dir is required for the " + c.Backend + " backend")
	}
	if c.Namespaces.Plain == "" || c.Namespaces.Encrypted == "" {
		return serr.New("both namespaces must be named")
	}
	if c.Namespaces.Plain == c.Namespaces.Encrypted {
		return serr.New("plain and encrypted namespaces must differ")
	}
	if c.SaveDebounce < 0 {
		return serr.New("save_debounce must not be negative")
	}
	if c.KDFIterations < models.MinIterations {
		return serr.New("kdf_iterations must be at least " + strconv.Itoa(models.MinIterations))
	}
	return nil
}

// StoreOptions converts the configuration into store options.
func (c Config) StoreOptions() (models.Options, error) {
	codec, err := models.CodecByName(c.Codec)
	if err != nil {
		return models.Options{}, err
	}
	return models.Options{
		PlainNamespace:     c.Namespaces.Plain,
		EncryptedNamespace: c.Namespaces.Encrypted,
		Codec:              codec,
		SaveDebounce:       c.SaveDebounce,
		KDFIterations:      c.KDFIterations,
	}, nil
}

// FileExt is the namespace file suffix matching the codec.
func (c Config) FileExt() string {
	if c.Codec == "msgpack" {
		return ".msgpack"
	}
	return ".json"
}

// Write saves c as YAML at path with owner-only permissions.
func Write(path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return serr.Wrap(err, "failed to encode config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return serr.Wrap(err, "failed to create config directory")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return serr.Wrap(err, "failed to write config file")
	}
	return nil
}
