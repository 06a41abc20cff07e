// Package config loads cascade's process configuration: storage backend
// selection, default simulation parameters, and server connection
// settings. Precedence is explicit flags > CASCADE_* environment
// variables > cascade.toml, via spf13/viper reading a
// BurntSushi/toml-compatible document.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/cascadegraph/cascade/internal/types"
)

// Backend names the persistence backend in use.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendServer Backend = "server"
)

// Config is the fully-resolved process configuration.
type Config struct {
	Backend Backend `mapstructure:"backend"`

	// SQLite (local file) backend settings.
	SQLitePath string `mapstructure:"sqlite_path"`

	// Server (network) backend settings.
	ServerDSN string `mapstructure:"server_dsn"`

	// DefaultSim holds the resolved default_sim.* settings. The cmd/cascade
	// subcommands do not read it: they build their SimConfig from their
	// own flags and types.SimConfig.WithDefaults.
	DefaultSim types.SimConfig `mapstructure:"default_sim"`

	// DefaultNB is the default number of simulations per source.
	DefaultNB int `mapstructure:"default_nb_sim"`
}

// Default returns the built-in defaults before any file/env/flag overlay
// is applied.
func Default() Config {
	return Config{
		Backend:    BackendSQLite,
		SQLitePath: "cascade.db",
		DefaultSim: types.DefaultSimConfig(),
		DefaultNB:  100,
	}
}

// Load reads cascade.toml (if present) from configPath, overlays
// CASCADE_*-prefixed environment variables, and returns the resolved
// Config. configPath may be empty, in which case only defaults and
// environment overrides apply.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("CASCADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("backend", string(def.Backend))
	v.SetDefault("sqlite_path", def.SQLitePath)
	v.SetDefault("server_dsn", "")
	v.SetDefault("default_nb_sim", def.DefaultNB)
	v.SetDefault("default_sim.propagation_probability", def.DefaultSim.PropagationProbability)
	v.SetDefault("default_sim.normalization_exponent", def.DefaultSim.NormalizationExponent)
	v.SetDefault("default_sim.implementation", string(def.DefaultSim.Implementation))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("reading config %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	cfg.Backend = Backend(v.GetString("backend"))
	cfg.SQLitePath = v.GetString("sqlite_path")
	cfg.ServerDSN = v.GetString("server_dsn")
	cfg.DefaultNB = v.GetInt("default_nb_sim")
	cfg.DefaultSim = types.SimConfig{
		PropagationProbability: v.GetFloat64("default_sim.propagation_probability"),
		NormalizationExponent:  v.GetFloat64("default_sim.normalization_exponent"),
		Implementation:         types.SimImplementation(v.GetString("default_sim.implementation")),
	}.WithDefaults()

	switch cfg.Backend {
	case BackendSQLite, BackendServer:
	default:
		return Config{}, fmt.Errorf("unknown storage backend: %s (supported: sqlite, server)", cfg.Backend)
	}

	return cfg, nil
}
