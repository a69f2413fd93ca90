// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebl/onedrive-mcp-server/internal/authorization"
	"github.com/gebl/onedrive-mcp-server/internal/upload"
)

var configEnvKeys = []string{
	"ONEDRIVE_MCP_CONFIG",
	"ONEDRIVE_CLIENT_ID",
	"ONEDRIVE_CLIENT_SECRET",
	"ONEDRIVE_TENANT_ID",
	"ONEDRIVE_REDIRECT_URI",
	"ONEDRIVE_TOOLSETS",
	"ONEDRIVE_CHUNK_SIZE",
	"ONEDRIVE_CONTENT_TYPE",
	"ONEDRIVE_RATE_LIMIT",
	"ONEDRIVE_RETRY_MAX",
	"AUTHORIZATION_ENABLED",
	"AUTHORIZATION_DEFAULT_MODE",
	"MCP_AUTH_ENABLED",
	"MCP_BEARER_TOKEN",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"MCP_LOG_FILE",
	"CONTENT_LOG_LEVEL",
	"MCP_STATELESS",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/callback", cfg.RedirectURI)
	assert.Equal(t, upload.DefaultChunkSize, cfg.Upload.ChunkSize)
	assert.Equal(t, "application/octet-stream", cfg.Upload.ContentType)
	assert.Equal(t, DefaultSimpleUploadMax, cfg.Upload.SimpleUploadMax)
	assert.Equal(t, DefaultRequestsPerSecond, cfg.HTTP.RequestsPerSecond)
	assert.Equal(t, DefaultBurst, cfg.HTTP.Burst)
	assert.Equal(t, DefaultRetryMax, cfg.HTTP.RetryMax)
	assert.Equal(t, DefaultTimeoutSeconds, cfg.HTTP.TimeoutSeconds)
	assert.False(t, cfg.Authorization.Enabled)
	assert.Equal(t, authorization.PermissionRead, cfg.Authorization.DefaultMode)
	assert.False(t, cfg.MCPAuth.Enabled)
	assert.False(t, cfg.IsStateless())
	assert.Empty(t, cfg.Toolsets)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	testEnv := map[string]string{
		"ONEDRIVE_CLIENT_ID":         "test-client-id",
		"ONEDRIVE_CLIENT_SECRET":     "shh",
		"ONEDRIVE_TENANT_ID":         "test-tenant-id",
		"ONEDRIVE_REDIRECT_URI":      "http://localhost:9090/callback",
		"ONEDRIVE_TOOLSETS":          "drives, items ,transfer",
		"ONEDRIVE_CHUNK_SIZE":        "640KiB",
		"ONEDRIVE_CONTENT_TYPE":      "text/plain",
		"ONEDRIVE_RATE_LIMIT":        "2.5",
		"ONEDRIVE_RETRY_MAX":         "7",
		"AUTHORIZATION_ENABLED":      "true",
		"AUTHORIZATION_DEFAULT_MODE": "NONE",
		"MCP_AUTH_ENABLED":           "yes",
		"MCP_BEARER_TOKEN":           "bearer-token",
		"LOG_LEVEL":                  "DEBUG",
		"LOG_FORMAT":                 "json",
		"MCP_LOG_FILE":               "/tmp/onedrive.log",
		"CONTENT_LOG_LEVEL":          "INFO",
		"MCP_STATELESS":              "1",
	}
	for key, value := range testEnv {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-client-id", cfg.ClientID)
	assert.Equal(t, "shh", cfg.ClientSecret)
	assert.Equal(t, "test-tenant-id", cfg.TenantID)
	assert.Equal(t, "http://localhost:9090/callback", cfg.RedirectURI)
	assert.Equal(t, []string{"drives", "items", "transfer"}, cfg.Toolsets)
	assert.Equal(t, int64(655360), cfg.Upload.ChunkSize)
	assert.Equal(t, "text/plain", cfg.Upload.ContentType)
	assert.Equal(t, 2.5, cfg.HTTP.RequestsPerSecond)
	assert.Equal(t, 7, cfg.HTTP.RetryMax)
	assert.True(t, cfg.Authorization.Enabled)
	assert.Equal(t, authorization.PermissionNone, cfg.Authorization.DefaultMode)
	assert.True(t, cfg.MCPAuth.Enabled)
	assert.Equal(t, "bearer-token", cfg.MCPAuth.BearerToken)
	assert.Equal(t, "DEBUG", cfg.GetLogLevel())
	assert.Equal(t, "json", cfg.GetLogFormat())
	assert.Equal(t, "/tmp/onedrive.log", cfg.GetLogFile())
	assert.Equal(t, "INFO", cfg.GetContentLogLevel())
	assert.True(t, cfg.IsStateless())
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	tests := []struct {
		key, value, errContains string
	}{
		{"ONEDRIVE_CHUNK_SIZE", "lots", "invalid ONEDRIVE_CHUNK_SIZE"},
		{"ONEDRIVE_CHUNK_SIZE", "100000", "multiple of 327680"},
		{"ONEDRIVE_RATE_LIMIT", "fast", "invalid ONEDRIVE_RATE_LIMIT"},
		{"ONEDRIVE_RETRY_MAX", "many", "invalid ONEDRIVE_RETRY_MAX"},
		{"AUTHORIZATION_DEFAULT_MODE", "admin", "invalid default_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ONEDRIVE_CLIENT_ID", "env-client")
	t.Setenv("ONEDRIVE_TENANT_ID", "env-tenant")
	t.Setenv("ONEDRIVE_MCP_CONFIG", writeConfigFile(t, `{
		"client_id": "file-client",
		"toolsets": ["drives", " items "],
		"upload": {"chunk_size": 983040},
		"authorization": {
			"enabled": true,
			"default_mode": "read",
			"tool_permissions": {"item_write": "none"},
			"path_permissions": {"/Documents/**": "write", "/Private/**": "none"}
		},
		"stateless": true
	}`))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file-client", cfg.ClientID, "file values win over the environment")
	assert.Equal(t, "env-tenant", cfg.TenantID, "values the file omits keep their environment value")
	assert.Equal(t, []string{"drives", "items"}, cfg.Toolsets)
	assert.Equal(t, int64(983040), cfg.Upload.ChunkSize)
	assert.Equal(t, upload.DefaultContentType, cfg.Upload.ContentType)
	assert.Equal(t, DefaultSimpleUploadMax, cfg.Upload.SimpleUploadMax)
	assert.Equal(t, DefaultRetryMax, cfg.HTTP.RetryMax)
	assert.True(t, cfg.IsStateless())

	require.True(t, cfg.Authorization.Enabled)
	assert.Equal(t, authorization.PermissionNone, cfg.Authorization.ToolPermissions[authorization.CategoryItemWrite])
	assert.Equal(t, authorization.PermissionWrite, cfg.Authorization.PathPermission("/Documents/a.txt"))
	assert.Equal(t, authorization.PermissionNone, cfg.Authorization.PathPermission("/Private/b.txt"))
	assert.Equal(t, authorization.PermissionRead, cfg.Authorization.PathPermission("/Other"))
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ONEDRIVE_MCP_CONFIG", filepath.Join(t.TempDir(), "absent.json"))
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open config file")
	})

	t.Run("malformed json", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ONEDRIVE_MCP_CONFIG", writeConfigFile(t, `{"client_id": `))
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("invalid glob", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ONEDRIVE_MCP_CONFIG", writeConfigFile(t, `{"authorization": {"path_permissions": {"/a/[b": "read"}}}`))
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to compile path permissions")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{
			name:        "negative chunk size",
			mutate:      func(c *Config) { c.Upload.ChunkSize = -upload.DefaultChunkSize },
			errContains: "must be positive",
		},
		{
			name:        "chunk size not a multiple",
			mutate:      func(c *Config) { c.Upload.ChunkSize = upload.DefaultChunkSize + 1 },
			errContains: "multiple of 327680 bytes",
		},
		{
			name:   "chunk size multiple",
			mutate: func(c *Config) { c.Upload.ChunkSize = 10 * upload.DefaultChunkSize },
		},
		{
			name:        "negative simple upload max",
			mutate:      func(c *Config) { c.Upload.SimpleUploadMax = -1 },
			errContains: "simple_upload_max",
		},
		{
			name:        "negative retry",
			mutate:      func(c *Config) { c.HTTP.RetryMax = -1 },
			errContains: "must not be negative",
		},
		{
			name:        "bearer token required",
			mutate:      func(c *Config) { c.MCPAuth.Enabled = true },
			errContains: "no bearer token",
		},
		{
			name: "bearer token present",
			mutate: func(c *Config) {
				c.MCPAuth.Enabled = true
				c.MCPAuth.BearerToken = "token"
			},
		},
		{
			name:        "invalid path permission",
			mutate:      func(c *Config) { c.Authorization.PathPermissions["/x"] = "sometimes" },
			errContains: "invalid path permission",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestSplitListAndParseBool(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(""))

	for _, v := range []string{"1", "true", "TRUE", " yes ", "on"} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"0", "false", "no", "", "maybe"} {
		assert.False(t, parseBool(v), v)
	}
}
