// Package config holds the external tool paths and host endpoint used by the
// import pipeline. Configuration is read from a dotenv-style file and the
// process environment, and can be written back so the paths survive between
// runs, mirroring the ini file the GUI plugin keeps next to itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment / file keys.
const (
	KeyTexconv  = "DDSIMPORT_TEXCONV"
	KeyBCDecode = "DDSIMPORT_BCDECODE"
	KeyEndpoint = "DDSIMPORT_ENDPOINT"
	KeyUsage    = "DDSIMPORT_USAGE"
)

// DefaultEndpoint is the remote scripting endpoint Substance Painter
// listens on when remote control is enabled.
const DefaultEndpoint = "http://localhost:60041"

// DefaultUsage is the resource usage assigned to imported textures.
const DefaultUsage = "texture"

// Config carries everything the pipeline needs beyond its inputs.
type Config struct {
	// TexconvPath is the DirectXTex texconv executable.
	TexconvPath string
	// BCDecodePath is the fo76utils bcdecode executable.
	BCDecodePath string
	// Endpoint is the base URL of the host's remote scripting server.
	Endpoint string
	// Usage is the shelf resource usage for imported images.
	Usage string
}

// Default returns a Config with endpoint and usage defaults applied.
func Default() *Config {
	return &Config{
		Endpoint: DefaultEndpoint,
		Usage:    DefaultUsage,
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "ddsimport", "ddsimport.env"), nil
}

// Load reads the config file at path, overlaying process environment
// variables on top. A missing file is not an error; the environment and
// defaults still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		values, err := godotenv.Read(path)
		if err == nil {
			cfg.apply(values)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.apply(environ())
	return cfg, nil
}

// Save writes the config file, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	values := map[string]string{
		KeyTexconv:  cfg.TexconvPath,
		KeyBCDecode: cfg.BCDecodePath,
		KeyEndpoint: cfg.Endpoint,
		KeyUsage:    cfg.Usage,
	}
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// ValidateTool checks that a configured tool path points at an existing
// regular file. An empty path is reported as unconfigured.
func ValidateTool(name, path string) error {
	if path == "" {
		return fmt.Errorf("%s executable is not configured", name)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s executable: %w", name, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s executable %s is a directory", name, path)
	}
	return nil
}

func (c *Config) apply(values map[string]string) {
	if v := values[KeyTexconv]; v != "" {
		c.TexconvPath = v
	}
	if v := values[KeyBCDecode]; v != "" {
		c.BCDecodePath = v
	}
	if v := values[KeyEndpoint]; v != "" {
		c.Endpoint = v
	}
	if v := values[KeyUsage]; v != "" {
		c.Usage = v
	}
}

func environ() map[string]string {
	values := make(map[string]string, 4)
	for _, key := range []string{KeyTexconv, KeyBCDecode, KeyEndpoint, KeyUsage} {
		if v, ok := os.LookupEnv(key); ok {
			values[key] = v
		}
	}
	return values
}
