// ABOUTME: Configuration loader for the posts and auth API clients
// ABOUTME: Loads settings from environment variables and an optional .env file with defaults

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Credential store media selectable through CREDENTIAL_STORE.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreCookie = "cookie"
	StoreRedis  = "redis"
)

const (
	defaultPostsAPIURL = "http://localhost:3013"
	defaultAuthAPIURL  = "http://localhost:3010"
	apiVersionPath     = "/api/v1"
)

type Config struct {
	// Service endpoints, already suffixed with /api/v1
	PostsAPIURL string
	AuthAPIURL  string

	// Transport
	RequestTimeout int    // seconds, default 30
	AllProxy       string // optional ssh+socks5://user@host:port?private-key=/path

	// Credentials
	CredentialStore   string // file, memory, cookie, redis (default: file)
	CredentialsFile   string // used by the file store
	RedisURL          string // required by the redis store
	RedisKeyPrefix    string // key namespace for the redis store
	InteractiveTokens bool   // false turns every credential operation into a no-op
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Load reads configuration from the environment. A .env file is loaded first
// when present (ENV_FILE_PATH overrides its location); existing environment
// variables always win over file values.
func Load() (*Config, error) {
	if err := loadEnvFile(getEnv("ENV_FILE_PATH", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		PostsAPIURL: APIBaseURL(getEnv("PUBLIC_POSTS_API_URL", defaultPostsAPIURL)),
		AuthAPIURL:  APIBaseURL(getEnv("PUBLIC_AUTH_API_URL", defaultAuthAPIURL)),

		RequestTimeout: getEnvInt("REQUEST_TIMEOUT", 30),
		AllProxy:       os.Getenv("API_ALL_PROXY"),

		CredentialStore:   strings.ToLower(getEnv("CREDENTIAL_STORE", StoreFile)),
		CredentialsFile:   getEnv("CREDENTIALS_FILE", defaultCredentialsFile()),
		RedisURL:          os.Getenv("REDIS_URL"),
		RedisKeyPrefix:    getEnv("REDIS_KEY_PREFIX", "woragis:credentials:"),
		InteractiveTokens: getEnvSurface("CREDENTIAL_SURFACE", true),
	}

	if cfg.RequestTimeout < 1 || cfg.RequestTimeout > 600 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be between 1 and 600, got %d", cfg.RequestTimeout)
	}

	switch cfg.CredentialStore {
	case StoreFile:
		if cfg.CredentialsFile == "" {
			return nil, fmt.Errorf("CREDENTIALS_FILE is required for the file credential store")
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the redis credential store")
		}
	case StoreMemory, StoreCookie:
	default:
		return nil, fmt.Errorf("CREDENTIAL_STORE must be one of file, memory, cookie, redis, got %q", cfg.CredentialStore)
	}

	if cfg.AllProxy != "" && !strings.Contains(cfg.AllProxy, "private-key=") {
		return nil, fmt.Errorf("API_ALL_PROXY requires a 'private-key' query param")
	}

	return cfg, nil
}

// loadEnvFile applies a dotenv file to the process environment. A missing
// file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// APIBaseURL trims trailing slashes and appends the API version path.
func APIBaseURL(raw string) string {
	return strings.TrimRight(ensureScheme(strings.TrimSpace(raw)), "/") + apiVersionPath
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".woragis-credentials.json"
	}
	return filepath.Join(dir, "woragis", "credentials.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvSurface reports whether the credential surface is interactive.
// Accepts interactive/headless as well as boolean strings.
func getEnvSurface(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "":
		return defaultValue
	case "interactive":
		return true
	case "headless":
		return false
	}
	if boolVal, err := strconv.ParseBool(value); err == nil {
		return boolVal
	}
	return defaultValue
}

// ensureScheme adds http:// prefix if the URL has no scheme
func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if !strings.Contains(url, "://") {
		return "http://" + url
	}
	return url
}
