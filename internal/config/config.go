package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Storage StorageConfig
	Log     LogConfig
}

// ServerConfig configures the loopback API served to UI collaborators.
type ServerConfig struct {
	Port int
}

// BackendConfig configures the remote prediction API client.
type BackendConfig struct {
	BaseURL        string
	Timeout        string
	RequestsPerSec int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4700,
		},
		Backend: BackendConfig{
			BaseURL:        "http://127.0.0.1:5000",
			Timeout:        "30s",
			RequestsPerSec: 5,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in layers: defaults, then the JSON config file at
// $XDG_CONFIG_HOME/flatprice/config.json, then FLATPRICE_* environment
// variables. A .env file in the working directory is loaded first if present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "[WARN] could not load .env file: %v\n", err)
	}
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Backend.BaseURL == "" {
		return Config{}, fmt.Errorf("missing required config: backend base URL. " +
			"Set it via `flatprice config set backend.base_url <url>` or FLATPRICE_BACKEND_BASE_URL")
	}

	return cfg, nil
}
