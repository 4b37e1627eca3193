package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jo-hoe/gotimeline/internal/backend/storage"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort      = 62030
	DefaultPublicDir = "public"

	// PortEnvVar overrides the configured port when set.
	PortEnvVar = "PORT"
)

type Store struct {
	Type string `yaml:"type"`
	// ConnectionString is the timeline file path for "json", the database
	// file for "sqlite" and a redis URL for "redis". For "json" it defaults
	// to the published timeline file.
	ConnectionString string `yaml:"connectionString"`
}

type ServiceConfig struct {
	Port      int    `yaml:"port"`
	PublicDir string `yaml:"publicDir"`
	Store     Store  `yaml:"store"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:      DefaultPort,
		PublicDir: DefaultPublicDir,
		Store: Store{
			Type: storage.TypeJSON,
		},
	}
}

// LoadConfig loads configuration from the specified YAML file on top of the
// defaults. When optional is true a missing file is not an error.
func LoadConfig(configPath string, optional bool) (*ServiceConfig, error) {
	config := DefaultConfig()

	// Read the config file
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		// Parse YAML
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := config.applyEnvironment(); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *ServiceConfig) applyEnvironment() error {
	value, ok := os.LookupEnv(PortEnvVar)
	if !ok || value == "" {
		return nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", PortEnvVar, value, err)
	}
	c.Port = port
	return nil
}

func (c *ServiceConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.PublicDir == "" {
		return errors.New("publicDir is empty")
	}
	if c.Store.Type == "" {
		c.Store.Type = storage.TypeJSON
	}
	if !storage.IsSupportedType(c.Store.Type) {
		return fmt.Errorf("%w: %q", storage.ErrUnsupportedStore, c.Store.Type)
	}
	if c.Store.Type != storage.TypeJSON && c.Store.ConnectionString == "" {
		return fmt.Errorf("store type %s requires a connectionString", c.Store.Type)
	}
	return nil
}

// SiteDir holds the viewer and admin pages.
func (c *ServiceConfig) SiteDir() string {
	return filepath.Join(c.PublicDir, "server")
}

// AssetsDir is the asset root published under /assets.
func (c *ServiceConfig) AssetsDir() string {
	return filepath.Join(c.SiteDir(), "assets")
}

func (c *ServiceConfig) ImagesDir() string {
	return filepath.Join(c.AssetsDir(), "imgs")
}

func (c *ServiceConfig) TimelinePath() string {
	return filepath.Join(c.AssetsDir(), "json", "timeline.json")
}

// StoreConnectionString resolves the connection string for the configured store.
func (c *ServiceConfig) StoreConnectionString() string {
	if c.Store.Type == storage.TypeJSON && c.Store.ConnectionString == "" {
		return c.TimelinePath()
	}
	return c.Store.ConnectionString
}
