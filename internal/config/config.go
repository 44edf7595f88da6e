package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Limits on a single analysis run.
const (
	MaxPrompts    = 5
	MaxIterations = 5
)

// Config holds application configuration.
type Config struct {
	// Model is the generative model invoked for each trial.
	Model string `json:"model"`

	// Endpoint is the base URL of the model API. Override to point at a
	// proxy deployment.
	Endpoint string `json:"endpoint,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `json:"api_key_env,omitempty"`

	// Temperature is passed through to the model on every call.
	Temperature float64 `json:"temperature,omitempty"`

	// DailyLimit caps model calls in any rolling 24-hour window.
	DailyLimit int `json:"daily_limit"`

	// RequestTimeoutSecs bounds a single model call. 0 means the default.
	RequestTimeoutSecs int `json:"request_timeout_secs,omitempty"`

	// WebBind and WebPort configure the dashboard server.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is
	// locked" errors). 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:              "gemini-2.5-flash",
		Endpoint:           "https://generativelanguage.googleapis.com/v1beta",
		APIKeyEnv:          "GEMINI_API_KEY",
		Temperature:        0.7,
		DailyLimit:         50,
		RequestTimeoutSecs: 90,
		WebBind:            "127.0.0.1",
		WebPort:            8675,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.kwprobe.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, return zero config
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Model = overlay.Model
	if result.Model == "" {
		result.Model = base.Model
	}

	result.Endpoint = overlay.Endpoint
	if result.Endpoint == "" {
		result.Endpoint = base.Endpoint
	}

	result.APIKeyEnv = overlay.APIKeyEnv
	if result.APIKeyEnv == "" {
		result.APIKeyEnv = base.APIKeyEnv
	}

	result.Temperature = overlay.Temperature
	if result.Temperature == 0 {
		result.Temperature = base.Temperature
	}

	result.DailyLimit = overlay.DailyLimit
	if result.DailyLimit == 0 {
		result.DailyLimit = base.DailyLimit
	}

	result.RequestTimeoutSecs = overlay.RequestTimeoutSecs
	if result.RequestTimeoutSecs == 0 {
		result.RequestTimeoutSecs = base.RequestTimeoutSecs
	}

	result.WebBind = overlay.WebBind
	if result.WebBind == "" {
		result.WebBind = base.WebBind
	}

	result.WebPort = overlay.WebPort
	if result.WebPort == 0 {
		result.WebPort = base.WebPort
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
