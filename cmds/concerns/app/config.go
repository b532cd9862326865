package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"sigs.k8s.io/yaml"

	"github.com/mandelsoft/concerns/pkg/utils"
)

const ConfigFile = ".concerns"

const (
	EnvDatabase  = "CONCERNS_DATABASE"
	EnvLandscape = "CONCERNS_LANDSCAPE"
	EnvPort      = "CONCERNS_PORT"
)

const DefaultPort = 8080

type Config struct {
	Database  *string  `json:"database,omitempty"`
	Landscape *string  `json:"landscape,omitempty"`
	Port      *int     `json:"port,omitempty"`
	LogLevel  *string  `json:"logLevel,omitempty"`
	Users     []string `json:"users,omitempty"`
}

// GetConfig merges the config files found in the home directory, the
// user config directory and the current directory, in this order.
// Environment settings override the file settings.
func GetConfig(fs vfs.FileSystem) *Config {
	var cfg Config

	dir, err := os.UserHomeDir()
	if err == nil {
		MergeConfig(&cfg, ReadConfig(fs, filepath.Join(dir, ConfigFile)))
	}
	dir, err = os.UserConfigDir()
	if err == nil {
		MergeConfig(&cfg, ReadConfig(fs, filepath.Join(dir, ConfigFile)))
	}
	MergeConfig(&cfg, ReadConfig(fs, ConfigFile))

	if v := os.Getenv(EnvDatabase); v != "" {
		cfg.Database = utils.Pointer(v)
	}
	if v := os.Getenv(EnvLandscape); v != "" {
		cfg.Landscape = utils.Pointer(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = utils.Pointer(p)
		}
	}
	if cfg.Port == nil {
		cfg.Port = utils.Pointer(DefaultPort)
	}
	return &cfg
}

func ReadConfig(fs vfs.FileSystem, path string) *Config {
	data, err := vfs.ReadFile(fs, path)
	if err != nil {
		return nil
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil
	}
	return &cfg
}

func MergeConfig(cfg *Config, add *Config) {
	if add == nil {
		return
	}
	if add.Database != nil {
		cfg.Database = add.Database
	}
	if add.Landscape != nil {
		cfg.Landscape = add.Landscape
	}
	if add.Port != nil {
		cfg.Port = add.Port
	}
	if add.LogLevel != nil {
		cfg.LogLevel = add.LogLevel
	}
	if add.Users != nil {
		cfg.Users = add.Users
	}
}

func value[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
