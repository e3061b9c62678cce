package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrMissingValue is returned when a required setting is absent.
var ErrMissingValue = errors.New("missing required configuration")

type Config struct {
	Workspace WorkspaceConfig `koanf:"workspace"`
	Logging   LoggingConfig   `koanf:"logging"`
	Export    ExportConfig    `koanf:"export"`
	Emulator  EmulatorConfig  `koanf:"emulator"`
}

type WorkspaceConfig struct {
	URL      string        `koanf:"url"`
	Token    string        `koanf:"token"`
	Timeout  time.Duration `koanf:"timeout"`
	PageSize int           `koanf:"page_size"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
	Dir   string `koanf:"dir"`
}

type ExportConfig struct {
	Dir string `koanf:"dir"`
}

type EmulatorConfig struct {
	Port     string `koanf:"port"`
	SeedFile string `koanf:"seed_file"`
	Token    string `koanf:"token"`
	User     string `koanf:"user"`
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading %s: %w", strings.Join(existing, ", "), err)
	}
	return nil
}

// Load reads defaults, then the TOML file at path (if any), then the
// environment. WORKSPACE_URL and TOKEN are honoured as shorthands;
// DBXJOBS_<SECTION>_<KEY> variables take precedence over them.
// Load does not check required values, see Validate.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if v := os.Getenv("WORKSPACE_URL"); v != "" {
		_ = k.Set("workspace.url", v)
	}
	if v := os.Getenv("TOKEN"); v != "" {
		_ = k.Set("workspace.token", v)
	}

	// DBXJOBS_WORKSPACE_PAGE_SIZE -> workspace.page_size
	if err := k.Load(env.ProviderWithValue("DBXJOBS_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(strings.ToLower(strings.TrimPrefix(key, "DBXJOBS_")), "_", ".", 1)
		return mapped, value
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values every workspace command needs.
func (c *Config) Validate() error {
	var missing []string
	if c.Workspace.URL == "" {
		missing = append(missing, "workspace URL (WORKSPACE_URL)")
	}
	if c.Workspace.Token == "" {
		missing = append(missing, "workspace token (TOKEN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingValue, strings.Join(missing, ", "))
	}
	return nil
}

func defaults() map[string]any {
	return map[string]any{
		"workspace.timeout":   "60s",
		"workspace.page_size": 25,

		"logging.level": "info",
		"logging.dir":   "./logs",

		"export.dir": "./jobs_json",

		"emulator.port":      "8765",
		"emulator.seed_file": "./emulator.yaml",
		"emulator.user":      "emulator@localhost",
	}
}
