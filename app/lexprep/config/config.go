// Package config assembles the application configuration from three
// layers: built-in defaults, an optional YAML file, and environment
// variable overrides (highest precedence).
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/jrazmi/lexprep/infrastructure/googleauth"
	"github.com/jrazmi/lexprep/sdk/environment"
	"github.com/jrazmi/lexprep/sdk/logger"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "LEXPREP"

// Cloud configures the optional remote backend. When disabled the app
// runs entirely on device-local storage and sign-in stays hidden.
type Cloud struct {
	Enabled bool `yaml:"enabled"`
}

// Google configures the OAuth sign-in flow.
type Google struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	CallbackPort    string `yaml:"callback_port"`
}

// Config is the full application configuration.
type Config struct {
	// DataFile is the device-local task store.
	DataFile string `yaml:"data_file"`
	// ExportDir receives backup files.
	ExportDir string `yaml:"export_dir"`

	Log    logger.Options `yaml:"log"`
	Cloud  Cloud          `yaml:"cloud"`
	Google Google         `yaml:"google"`
}

func defaults() Config {
	return Config{
		DataFile:  "lexprep.json",
		ExportDir: ".",
		Log: logger.Options{
			Level: "INFO",
			// The TUI owns the terminal, so logs default to a file.
			Output:     "lexprep.log",
			Format:     "text",
			TimeFormat: "RFC3339",
		},
		Google: Google{
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			CallbackPort:    "6789",
		},
	}
}

// Load builds the configuration. A missing file is not an error; the
// defaults plus environment overrides apply.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = environment.GetEnvOrDefault(environment.GetEnvKeyPrefix(EnvPrefix, "CONFIG"), "lexprep.yaml")
	}

	bs, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to env overrides
	case err != nil:
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(bs, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the loaded values. Only
// variables that are actually set override the file.
func (c *Config) applyEnv() {
	c.DataFile = envOr("DATA_FILE", c.DataFile)
	c.ExportDir = envOr("EXPORT_DIR", c.ExportDir)

	c.Log.Level = envOr("LOG_LEVEL", c.Log.Level)
	c.Log.Output = envOr("LOG_OUTPUT", c.Log.Output)
	c.Log.Format = envOr("LOG_FORMAT", c.Log.Format)
	c.Log.TimeFormat = envOr("LOG_TIME_FORMAT", c.Log.TimeFormat)

	if v, ok := os.LookupEnv(environment.GetEnvKeyPrefix(EnvPrefix, "CLOUD_ENABLED")); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Cloud.Enabled = enabled
		}
	}

	c.Google.CredentialsFile = envOr("GOOGLE_CREDENTIALS_FILE", c.Google.CredentialsFile)
	c.Google.TokenFile = envOr("GOOGLE_TOKEN_FILE", c.Google.TokenFile)
	c.Google.CallbackPort = envOr("GOOGLE_CALLBACK_PORT", c.Google.CallbackPort)
}

// GoogleOptions adapts the Google section to the authenticator's
// options type.
func (c Config) GoogleOptions() googleauth.Options {
	return googleauth.Options{
		CredentialsFile: c.Google.CredentialsFile,
		TokenFile:       c.Google.TokenFile,
		CallbackPort:    c.Google.CallbackPort,
	}
}

func envOr(key, fallback string) string {
	return environment.GetEnvOrDefault(environment.GetEnvKeyPrefix(EnvPrefix, key), fallback)
}
