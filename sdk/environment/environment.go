// Package environment provides support for env vars and .env files.
package environment

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from a .env file. A missing file is
// not an error worth stopping startup for, so callers typically log and
// continue.
func LoadEnv(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	return godotenv.Load()
}

// GetEnvOrDefault retrieves an environment variable value, returning the
// fallback if the variable is not set.
func GetEnvOrDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvKeyPrefix constructs a prefixed environment variable key.
func GetEnvKeyPrefix(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return fmt.Sprintf("%s_%s", prefix, key)
}

// GetPrefixEnvOrDefault retrieves a prefixed environment variable value,
// returning the fallback if the variable is not set.
func GetPrefixEnvOrDefault(prefix, key, fallback string) string {
	return GetEnvOrDefault(GetEnvKeyPrefix(prefix, key), fallback)
}
