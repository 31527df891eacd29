package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "MATKA"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	CacheConfig
	LogConfig
	DevBackendConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Cache
	Log
	DevBackend
}

// New builds a Config from the environment (and a .env file when present).
func New() Config {
	cfg, err := Load("")
	if err != nil {
		// Load only fails when a config file was requested
		panic(err)
	}
	return cfg
}

// Load builds a Config from the environment, an optional .env file and an optional
// config file (yaml, json or toml). Environment variables use the MATKA_ prefix,
// e.g. MATKA_API_BASE_URL overrides api.base_url.
func Load(configFile string) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("[config.Load] failed to load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("[config.Load] read %s: %w", configFile, err)
		}
	}
	return FromViper(v), nil
}

// FromViper wraps an already populated viper instance. Missing keys fall back to defaults.
func FromViper(v *viper.Viper) Config {
	setDefaults(v)
	return mainConfig{
		EnvVars:    EnvVars{v: v},
		API:        API{v: v},
		Session:    Session{v: v},
		Cache:      Cache{v: v},
		Log:        Log{v: v},
		DevBackend: DevBackend{v: v},
	}
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
