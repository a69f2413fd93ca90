// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// main.go - Entry point for the OneDrive MCP Server.
//
// This file sets up the Model Context Protocol (MCP) server that exposes a user's
// OneDrive through the Microsoft Graph API. MCP clients can browse drives, manage
// files and folders, share items and move file content in both directions. Large
// uploads go through Graph upload sessions, sent range by range with progress
// notifications.
//
// Available MCP Tools (grouped in toolsets, see ONEDRIVE_TOOLSETS):
// - auth: getAuthStatus, refreshToken, initiateAuth, clearAuth
// - drives: listDrives, getDrive, getSpecialFolder, listShared, listRecent
// - items: getItem, listChildren, createFolder, deleteItem, renameItem, moveItem, copyItem, createLink
// - transfer: uploadFile, uploadText, downloadText, downloadFile
//
// Authentication Flow:
// 1. Server loads configuration from environment variables or config file
// 2. OAuth 2.0 PKCE flow handles user authentication
// 3. Access and refresh tokens are stored locally
// 4. Automatic token refresh prevents authentication failures
//
// Configuration:
// - Environment variables: ONEDRIVE_CLIENT_ID, ONEDRIVE_TENANT_ID, ONEDRIVE_REDIRECT_URI
// - Optional config file: Set ONEDRIVE_MCP_CONFIG environment variable
// - Logging: Set MCP_LOG_FILE for file-based logging
//
// Usage:
//   go build -o onedrive-mcp-server ./cmd/onedrive-mcp-server
//   ./onedrive-mcp-server                              # stdio mode (default)
//   ./onedrive-mcp-server -mode=streamable             # Streamable HTTP mode on port 8080
//   ./onedrive-mcp-server -mode=streamable -port=8081  # Streamable HTTP mode on custom port

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gebl/onedrive-mcp-server/internal/auth"
	"github.com/gebl/onedrive-mcp-server/internal/authorization"
	"github.com/gebl/onedrive-mcp-server/internal/config"
	"github.com/gebl/onedrive-mcp-server/internal/graph"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

const (
	// Version is the current version of the OneDrive MCP server
	Version    = "0.4.0"
	serverName = "OneDrive MCP Server"
	mcpPath    = "/mcp"
)

func main() {
	// Initialize structured logging first
	logging.Initialize()
	logger := logging.MainLogger

	mode := flag.String("mode", "stdio", "Server mode: stdio or streamable")
	port := flag.String("port", "8080", "Port for HTTP server (used with streamable mode)")
	flag.Parse()

	logger.Info("OneDrive MCP Server starting", "version", Version, "mode", *mode, "port", *port)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Reinitialize logging with configuration values
	logging.InitializeFromConfig(cfg)
	logger = logging.MainLogger
	logger.Debug("Logging reconfigured based on loaded configuration")

	if err := authorization.ValidateAuthorizationConfig(cfg.Authorization); err != nil {
		logger.Error("Invalid authorization configuration", "error", err)
		os.Exit(1)
	}

	oauthConfig := auth.NewOAuth2Config(cfg.ClientID, cfg.TenantID, cfg.RedirectURI)
	tokenPath := auth.GetTokenPath("tokens.json")
	tokenManager := loadTokens(tokenPath)

	graphClient := graph.NewClientWithTokenRefresh(tokenManager.AccessToken, oauthConfig, tokenManager, tokenPath, graphOptions(cfg))

	authManager := auth.NewAuthManager(oauthConfig, tokenManager, tokenPath)
	authManager.SetTokenRefreshCallback(func(newAccessToken string) {
		logger.Debug("Updating graph client with new access token")
		graphClient.UpdateToken(newAccessToken)
	})
	logger.Debug("Authentication manager created")

	s := server.NewMCPServer(serverName, Version,
		server.WithToolCapabilities(true))

	registry := registerTools(s, newApp(cfg, graphClient, authManager))
	logger.Info("Tools registered", "count", len(registry.ListTools()))

	switch *mode {
	case "streamable":
		authManager.SetServerMode(auth.ServerModeHTTP)
		streamableServer := server.NewStreamableHTTPServer(s,
			server.WithStateLess(cfg.IsStateless()),
			server.WithEndpointPath(mcpPath))
		router := newRouter(cfg, streamableServer, authManager)
		logger.Info("Streamable HTTP server listening",
			"address", fmt.Sprintf("http://localhost:%s%s", *port, mcpPath),
			"stateless", cfg.IsStateless())
		if err := http.ListenAndServe(":"+*port, router); err != nil {
			logger.Error("Streamable HTTP server error", "error", err)
			os.Exit(1)
		}
	case "stdio":
		authManager.SetServerMode(auth.ServerModeStdio)
		logger.Info("Starting MCP server", "transport", "stdio")
		if err := server.ServeStdio(s); err != nil {
			logger.Error("Stdio server error", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("Invalid mode specified", "mode", *mode, "valid_modes", []string{"stdio", "streamable"})
		os.Exit(1)
	}
}

// loadTokens reads stored tokens without blocking startup. Missing or unreadable
// tokens leave the server unauthenticated until initiateAuth is used.
func loadTokens(tokenPath string) *auth.TokenManager {
	logger := logging.MainLogger

	absTokenPath, err := filepath.Abs(tokenPath)
	if err != nil {
		absTokenPath = "unknown"
	}
	logger.Debug("Loading tokens (non-blocking)", "path", absTokenPath)

	tokenManager, err := auth.LoadTokens(tokenPath)
	switch {
	case err != nil:
		logger.Info("No valid tokens found, server will start without authentication", "error", err)
		logger.Info("Use the 'initiateAuth' MCP tool to authenticate")
		return &auth.TokenManager{}
	case tokenManager.IsExpired():
		logger.Info("Existing tokens are expired, they will be refreshed on first use",
			"refresh_token_available", tokenManager.RefreshToken != "")
	default:
		logger.Info("Valid authentication tokens loaded successfully")
	}
	return tokenManager
}

// graphOptions maps the HTTP configuration onto Graph transport options.
func graphOptions(cfg *config.Config) graph.Options {
	if cfg.HTTP == nil {
		return graph.Options{}
	}
	return graph.Options{
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
		RetryMax:          cfg.HTTP.RetryMax,
		Timeout:           time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
	}
}

// newRouter serves the MCP endpoint next to a health check and the OAuth
// callback. Only the MCP endpoint sits behind the bearer token.
func newRouter(cfg *config.Config, mcpHandler http.Handler, authManager *auth.AuthManager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(auth.RequestLoggingMiddleware())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:        "ok",
			Version:       Version,
			Authenticated: authManager.GetAuthStatus().Authenticated,
			RequestID:     middleware.GetReqID(r.Context()),
		})
	})
	r.Get("/callback", authManager.HandleOAuthCallback)
	r.Handle(mcpPath, applyAuthIfEnabled(mcpHandler, cfg))
	return r
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Authenticated bool   `json:"authenticated"`
	RequestID     string `json:"requestId,omitempty"`
}

// applyAuthIfEnabled applies bearer token authentication middleware if enabled in configuration.
func applyAuthIfEnabled(handler http.Handler, cfg *config.Config) http.Handler {
	logger := logging.MainLogger

	if cfg.MCPAuth != nil && cfg.MCPAuth.Enabled {
		if cfg.MCPAuth.BearerToken == "" {
			logger.Warn("MCP authentication is enabled but no bearer token is configured",
				"recommendation", "set MCP_BEARER_TOKEN environment variable or add bearer_token to config file")
			return handler
		}

		logger.Info("MCP authentication enabled for HTTP transport",
			"token_length", len(cfg.MCPAuth.BearerToken))
		return auth.BearerTokenMiddleware(cfg.MCPAuth.BearerToken)(handler)
	}

	logger.Debug("MCP authentication disabled - HTTP endpoints are not protected")
	return handler
}
