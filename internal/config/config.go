// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// config.go - Server configuration loaded from the environment and an optional JSON file.
//
// Environment variables are read first; a JSON file named by ONEDRIVE_MCP_CONFIG is
// decoded on top, so values present in the file win. Nested blocks that the file
// leaves out keep their environment or default values.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	units "github.com/docker/go-units"

	"github.com/gebl/onedrive-mcp-server/internal/authorization"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
	"github.com/gebl/onedrive-mcp-server/internal/upload"
)

const (
	// DefaultSimpleUploadMax is the largest file sent with a single PUT.
	DefaultSimpleUploadMax int64 = 4 * 1024 * 1024

	DefaultRequestsPerSecond = 10.0
	DefaultBurst             = 5
	DefaultRetryMax          = 3
	DefaultTimeoutSeconds    = 60
)

// UploadConfig controls how file content is sent to OneDrive.
type UploadConfig struct {
	ChunkSize       int64  `json:"chunk_size"`
	ContentType     string `json:"content_type"`
	SimpleUploadMax int64  `json:"simple_upload_max"`
}

// HTTPConfig controls the Graph API transport.
type HTTPConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	RetryMax          int     `json:"retry_max"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
}

// MCPAuthConfig protects the streamable HTTP transport with a bearer token.
type MCPAuthConfig struct {
	Enabled     bool   `json:"enabled"`
	BearerToken string `json:"bearer_token"`
}

type Config struct {
	ClientID      string                             `json:"client_id"`
	ClientSecret  string                             `json:"client_secret"`
	TenantID      string                             `json:"tenant_id"`
	RedirectURI   string                             `json:"redirect_uri"`
	Toolsets      []string                           `json:"toolsets"`
	Upload        *UploadConfig                      `json:"upload"`
	HTTP          *HTTPConfig                        `json:"http"`
	Authorization *authorization.AuthorizationConfig `json:"authorization"`
	MCPAuth       *MCPAuthConfig                     `json:"mcp_auth"`

	LogLevel        string `json:"log_level"`
	LogFormat       string `json:"log_format"`
	LogFile         string `json:"log_file"`
	ContentLogLevel string `json:"content_log_level"`

	Stateless *bool `json:"stateless"`
}

// Load reads the configuration, applies defaults and validates it.
func Load() (*Config, error) {
	logger := logging.ConfigLogger
	logger.Debug("Loading configuration")

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	logger.Debug("Loaded from env",
		"client_id_set", cfg.ClientID != "",
		"tenant_id", cfg.TenantID,
		"redirect_uri", cfg.RedirectURI,
		"toolsets", cfg.Toolsets)

	if path := os.Getenv("ONEDRIVE_MCP_CONFIG"); path != "" {
		logger.Debug("Loading from config file", "path", path)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		"tenant_id", cfg.TenantID,
		"toolsets", cfg.Toolsets,
		"chunk_size", units.BytesSize(float64(cfg.Upload.ChunkSize)),
		"simple_upload_max", units.BytesSize(float64(cfg.Upload.SimpleUploadMax)),
		"requests_per_second", cfg.HTTP.RequestsPerSecond,
		"retry_max", cfg.HTTP.RetryMax,
		"authorization_enabled", cfg.Authorization.Enabled,
		"mcp_auth_enabled", cfg.MCPAuth.Enabled,
		"stateless", cfg.IsStateless())
	return cfg, nil
}

// Default returns a configuration holding only default values.
func Default() *Config {
	stateless := false
	return &Config{
		RedirectURI: "http://localhost:8080/callback",
		Upload: &UploadConfig{
			ChunkSize:       upload.DefaultChunkSize,
			ContentType:     upload.DefaultContentType,
			SimpleUploadMax: DefaultSimpleUploadMax,
		},
		HTTP: &HTTPConfig{
			RequestsPerSecond: DefaultRequestsPerSecond,
			Burst:             DefaultBurst,
			RetryMax:          DefaultRetryMax,
			TimeoutSeconds:    DefaultTimeoutSeconds,
		},
		Authorization: authorization.NewAuthorizationConfig(),
		MCPAuth:       &MCPAuthConfig{},
		Stateless:     &stateless,
	}
}

func (c *Config) applyEnv() error {
	setString(&c.ClientID, "ONEDRIVE_CLIENT_ID")
	setString(&c.ClientSecret, "ONEDRIVE_CLIENT_SECRET")
	setString(&c.TenantID, "ONEDRIVE_TENANT_ID")
	setString(&c.RedirectURI, "ONEDRIVE_REDIRECT_URI")

	if toolsets := os.Getenv("ONEDRIVE_TOOLSETS"); toolsets != "" {
		c.Toolsets = splitList(toolsets)
	}

	if v := os.Getenv("ONEDRIVE_CHUNK_SIZE"); v != "" {
		n, err := units.RAMInBytes(v)
		if err != nil {
			return fmt.Errorf("invalid ONEDRIVE_CHUNK_SIZE %q: %w", v, err)
		}
		c.Upload.ChunkSize = n
	}
	setString(&c.Upload.ContentType, "ONEDRIVE_CONTENT_TYPE")

	if v := os.Getenv("ONEDRIVE_RATE_LIMIT"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid ONEDRIVE_RATE_LIMIT %q: %w", v, err)
		}
		c.HTTP.RequestsPerSecond = rps
	}
	if v := os.Getenv("ONEDRIVE_RETRY_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ONEDRIVE_RETRY_MAX %q: %w", v, err)
		}
		c.HTTP.RetryMax = n
	}

	if v := os.Getenv("AUTHORIZATION_ENABLED"); v != "" {
		c.Authorization.Enabled = parseBool(v)
	}
	if v := os.Getenv("AUTHORIZATION_DEFAULT_MODE"); v != "" {
		c.Authorization.DefaultMode = authorization.PermissionLevel(strings.ToLower(v))
	}

	if v := os.Getenv("MCP_AUTH_ENABLED"); v != "" {
		c.MCPAuth.Enabled = parseBool(v)
	}
	setString(&c.MCPAuth.BearerToken, "MCP_BEARER_TOKEN")

	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.LogFile, "MCP_LOG_FILE")
	setString(&c.ContentLogLevel, "CONTENT_LOG_LEVEL")

	if v := os.Getenv("MCP_STATELESS"); v != "" {
		stateless := parseBool(v)
		c.Stateless = &stateless
	}
	return nil
}

// fillDefaults restores defaults for blocks or values a config file zeroed out.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Upload == nil {
		c.Upload = def.Upload
	}
	if c.Upload.ChunkSize == 0 {
		c.Upload.ChunkSize = def.Upload.ChunkSize
	}
	if c.Upload.ContentType == "" {
		c.Upload.ContentType = def.Upload.ContentType
	}
	if c.Upload.SimpleUploadMax == 0 {
		c.Upload.SimpleUploadMax = def.Upload.SimpleUploadMax
	}
	if c.HTTP == nil {
		c.HTTP = def.HTTP
	}
	if c.HTTP.RequestsPerSecond == 0 {
		c.HTTP.RequestsPerSecond = def.HTTP.RequestsPerSecond
	}
	if c.HTTP.Burst == 0 {
		c.HTTP.Burst = def.HTTP.Burst
	}
	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = def.HTTP.TimeoutSeconds
	}
	if c.Authorization == nil {
		c.Authorization = def.Authorization
	}
	if c.Authorization.DefaultMode == "" {
		c.Authorization.DefaultMode = authorization.PermissionRead
	}
	if c.MCPAuth == nil {
		c.MCPAuth = def.MCPAuth
	}
	if c.Stateless == nil {
		c.Stateless = def.Stateless
	}
	for i, ts := range c.Toolsets {
		c.Toolsets[i] = strings.TrimSpace(ts)
	}
}

// Validate rejects settings that would fail later at request time.
func (c *Config) Validate() error {
	if c.Upload != nil {
		if c.Upload.ChunkSize < 0 {
			return fmt.Errorf("upload.chunk_size must be positive, got %d", c.Upload.ChunkSize)
		}
		if c.Upload.ChunkSize%upload.DefaultChunkSize != 0 {
			return fmt.Errorf("upload.chunk_size must be a multiple of %d bytes (%s), got %d",
				upload.DefaultChunkSize, units.BytesSize(float64(upload.DefaultChunkSize)), c.Upload.ChunkSize)
		}
		if c.Upload.SimpleUploadMax < 0 {
			return fmt.Errorf("upload.simple_upload_max must not be negative")
		}
	}
	if c.HTTP != nil {
		if c.HTTP.RequestsPerSecond < 0 || c.HTTP.Burst < 0 || c.HTTP.RetryMax < 0 || c.HTTP.TimeoutSeconds < 0 {
			return fmt.Errorf("http settings must not be negative")
		}
	}
	if err := authorization.ValidateAuthorizationConfig(c.Authorization); err != nil {
		return err
	}
	if c.MCPAuth != nil && c.MCPAuth.Enabled && c.MCPAuth.BearerToken == "" {
		return fmt.Errorf("mcp_auth is enabled but no bearer token is configured (set MCP_BEARER_TOKEN)")
	}
	return nil
}

// IsStateless reports whether the streamable transport runs without sessions.
func (c *Config) IsStateless() bool {
	return c.Stateless != nil && *c.Stateless
}

func (c *Config) GetLogLevel() string        { return c.LogLevel }
func (c *Config) GetLogFormat() string       { return c.LogFormat }
func (c *Config) GetLogFile() string         { return c.LogFile }
func (c *Config) GetContentLogLevel() string { return c.ContentLogLevel }

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
