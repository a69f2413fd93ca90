// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// auth.go - OAuth2 authentication and token management for the OneDrive MCP server.
//
// This file implements the Microsoft identity platform authorization code flow with
// PKCE for Graph file access. Confidential clients may also send a client secret.
//
// Token Management:
// - Access tokens: short-lived (about 1 hour) bearer tokens for Graph requests
// - Refresh tokens: long-lived, used to mint new access tokens
// - Status is reported as MISSING, EXPIRED, EXPIRING or VALID
// - Local persistence as JSON (TOKEN_FILE, default tokens.json)
//
// Configuration Requirements:
// - Azure App Registration with a redirect URI such as http://localhost:8080/callback
// - Delegated API permissions: Files.ReadWrite.All, User.Read
//
// Usage Example:
//   oauthCfg := auth.NewOAuth2Config(clientID, tenantID, redirectURI)
//   url := oauthCfg.GetAuthURL(state, auth.CodeChallengeS256(verifier))
//   tm, err := oauthCfg.ExchangeCode(ctx, code, verifier)

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	httputils "github.com/gebl/onedrive-mcp-server/internal/http"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

const (
	unknownPath = "unknown"

	// DefaultAuthority is the Microsoft identity platform host.
	DefaultAuthority = "https://login.microsoftonline.com"

	// expiringWindow is how close to expiry a token is reported as EXPIRING.
	expiringWindow int64 = 60
)

// DefaultScopes grants offline access plus read/write access to all files the user can reach.
var DefaultScopes = []string{"offline_access", "Files.ReadWrite.All", "User.Read"}

// TokenStatus describes the state of the stored access token.
type TokenStatus string

const (
	TokenMissing  TokenStatus = "MISSING"
	TokenExpired  TokenStatus = "EXPIRED"
	TokenExpiring TokenStatus = "EXPIRING"
	TokenValid    TokenStatus = "VALID"
)

// OAuth2Config holds Microsoft identity platform OAuth2 configuration.
type OAuth2Config struct {
	ClientID     string   // Application (client) ID
	ClientSecret string   // Optional secret for confidential clients
	TenantID     string   // Directory (tenant) ID, "common" when empty
	RedirectURI  string   // Redirect URI for OAuth2 callback
	Scopes       []string // Requested scopes, DefaultScopes when empty
	Authority    string   // Identity host, DefaultAuthority when empty

	// Transport executes token endpoint requests. Nil uses a pooled cleanhttp client.
	Transport httputils.HTTPRequestFunc
}

// TokenManager handles access/refresh tokens and their expiry.
type TokenManager struct {
	AccessToken  string `json:"access_token"`  // OAuth2 access token
	RefreshToken string `json:"refresh_token"` // OAuth2 refresh token
	Expiry       int64  `json:"expiry"`        // Unix timestamp for token expiry
}

// NewOAuth2Config creates a new OAuth2Config from config values.
func NewOAuth2Config(clientID, tenantID, redirectURI string) *OAuth2Config {
	logging.AuthLogger.Debug("Initializing OAuth2 configuration for Microsoft Graph",
		"client_id", maskSensitiveData(clientID),
		"tenant_id", tenantID,
		"redirect_uri", redirectURI,
		"flow_type", "PKCE")

	return &OAuth2Config{
		ClientID:    clientID,
		TenantID:    tenantID,
		RedirectURI: redirectURI,
	}
}

// maskSensitiveData masks sensitive configuration values for logging
func maskSensitiveData(value string) string {
	if value == "" {
		return "<empty>"
	}
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***" + value[len(value)-4:]
}

// GenerateCodeVerifier creates a random PKCE code verifier string.
func GenerateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CodeChallengeS256 generates a code challenge from a code verifier using SHA-256.
func CodeChallengeS256(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// TenantIDOrCommon returns the tenant ID or "common" if not set.
func (c *OAuth2Config) TenantIDOrCommon() string {
	if c.TenantID == "" {
		return "common"
	}
	return c.TenantID
}

// ScopeString returns the space-separated scope list sent to the identity platform.
func (c *OAuth2Config) ScopeString() string {
	if len(c.Scopes) == 0 {
		return strings.Join(DefaultScopes, " ")
	}
	return strings.Join(c.Scopes, " ")
}

func (c *OAuth2Config) endpoint(kind string) string {
	authority := c.Authority
	if authority == "" {
		authority = DefaultAuthority
	}
	return fmt.Sprintf("%s/%s/oauth2/v2.0/%s", strings.TrimRight(authority, "/"), url.PathEscape(c.TenantIDOrCommon()), kind)
}

func (c *OAuth2Config) transport() httputils.HTTPRequestFunc {
	if c.Transport != nil {
		return c.Transport
	}
	return httputils.NewRequestFunc(cleanhttp.DefaultPooledClient())
}

// GetAuthURL generates the Microsoft login URL for user consent (PKCE).
func (c *OAuth2Config) GetAuthURL(state, codeChallenge string) string {
	q := url.Values{}
	q.Set("client_id", c.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("response_mode", "query")
	q.Set("scope", c.ScopeString())
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "S256")

	logging.AuthLogger.Info("Generated OAuth authorization URL",
		"tenant", c.TenantIDOrCommon(),
		"scope", c.ScopeString())
	logging.AuthLogger.Debug("OAuth URL components for troubleshooting",
		"client_id", maskSensitiveData(c.ClientID),
		"redirect_uri", c.RedirectURI,
		"tenant_is_common", c.TenantID == "" || c.TenantID == "common")

	return c.endpoint("authorize") + "?" + q.Encode()
}

// ExchangeCode exchanges the auth code for access and refresh tokens (PKCE).
func (c *OAuth2Config) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenManager, error) {
	logging.AuthLogger.Info("Exchanging authorization code for access tokens", "endpoint", "Microsoft Identity Platform")

	data := url.Values{}
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("code_verifier", codeVerifier)

	tm, body, err := c.requestToken(ctx, data)
	if err != nil && strings.Contains(body, "invalid_grant") && strings.Contains(body, "code_verifier") {
		logging.AuthLogger.Warn("PKCE code verifier mismatch detected", "action_required", "Restart authentication flow")
		return nil, fmt.Errorf("PKCE code verifier mismatch - please restart authentication flow")
	}
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	logging.AuthLogger.Info("Successfully obtained access and refresh tokens", "expires_at", time.Unix(tm.Expiry, 0).Format(time.RFC3339))
	return tm, nil
}

// RefreshToken refreshes the access token using the refresh token.
func (c *OAuth2Config) RefreshToken(ctx context.Context, refreshToken string) (*TokenManager, error) {
	logging.AuthLogger.Info("Refreshing access token using refresh token")
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}

	data := url.Values{}
	data.Set("refresh_token", refreshToken)
	data.Set("grant_type", "refresh_token")

	tm, _, err := c.requestToken(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	// The identity platform may omit a rotated refresh token.
	if tm.RefreshToken == "" {
		tm.RefreshToken = refreshToken
	}

	logging.AuthLogger.Info("Token refresh successful")
	return tm, nil
}

// requestToken posts a form to the token endpoint and returns the raw body alongside any error.
func (c *OAuth2Config) requestToken(ctx context.Context, data url.Values) (*TokenManager, string, error) {
	data.Set("client_id", c.ClientID)
	data.Set("scope", c.ScopeString())
	data.Set("redirect_uri", c.RedirectURI)
	if c.ClientSecret != "" {
		data.Set("client_secret", c.ClientSecret)
	}

	endpoint := c.endpoint("token")
	encoded := data.Encode()

	resp, err := c.transport()(ctx, http.MethodPost, endpoint, strings.NewReader(encoded), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if err != nil {
		logging.AuthLogger.Error("Failed to send token request", "error", err, "endpoint", endpoint)
		return nil, "", err
	}

	var body []byte
	var statusCode int
	err = httputils.WithAutoCleanup(resp, func(resp *http.Response) error {
		statusCode = resp.StatusCode
		var readErr error
		body, readErr = io.ReadAll(resp.Body)
		return readErr
	})
	if err != nil {
		logging.AuthLogger.Error("Failed to read token response body", "error", err, "endpoint", endpoint)
		return nil, "", err
	}

	if statusCode != http.StatusOK {
		logging.AuthLogger.Error("Token request failed", "status_code", statusCode, "grant_type", data.Get("grant_type"))
		logging.LogContent(logging.AuthLogger, slog.LevelDebug, "Token error response", "body", string(body))
		return nil, string(body), fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}

	var res struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		logging.AuthLogger.Error("Failed to decode token response JSON", "error", err)
		return nil, string(body), err
	}
	if res.AccessToken == "" {
		return nil, string(body), fmt.Errorf("token response did not include an access token")
	}

	return &TokenManager{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		Expiry:       time.Now().Unix() + res.ExpiresIn,
	}, string(body), nil
}

// StartLocalServer starts a local HTTP server to capture the auth code from the OAuth2 redirect.
// addr is the listen address (for example ":8080") and redirectPath the callback path.
func StartLocalServer(addr, redirectPath string, codeCh chan<- string, state string) (*http.Server, error) {
	logging.AuthLogger.Info("Starting local HTTP server to receive auth code", "addr", addr, "redirect_path", redirectPath)
	mux := http.NewServeMux()
	mux.HandleFunc(redirectPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "Invalid state", http.StatusBadRequest)
			logging.AuthLogger.Info("Invalid state received in redirect")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing code", http.StatusBadRequest)
			logging.AuthLogger.Info("Missing code in redirect")
			return
		}
		_, _ = w.Write([]byte("Authentication successful. You may close this window."))
		logging.AuthLogger.Info("Received authorization code from redirect")
		select {
		case codeCh <- code:
		default:
			logging.AuthLogger.Warn("Authorization code already received, ignoring duplicate")
		}
	})
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.AuthLogger.Error("OAuth callback server stopped", "error", err)
		}
	}()
	return server, nil
}

// CallbackAddress derives the listen address and path of the local callback server from a redirect URI.
func CallbackAddress(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("invalid redirect URI: %w", err)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	path = u.Path
	if path == "" {
		path = "/callback"
	}
	return ":" + port, path, nil
}

// Status reports the token state at now.
func (tm *TokenManager) Status(now time.Time) TokenStatus {
	if tm == nil || tm.AccessToken == "" {
		return TokenMissing
	}
	remaining := tm.Expiry - now.Unix()
	switch {
	case remaining <= 0:
		return TokenExpired
	case remaining <= expiringWindow:
		return TokenExpiring
	default:
		return TokenValid
	}
}

// ExpiresIn returns the seconds left before expiry, never negative.
func (tm *TokenManager) ExpiresIn(now time.Time) int64 {
	if tm == nil {
		return 0
	}
	if remaining := tm.Expiry - now.Unix(); remaining > 0 {
		return remaining
	}
	return 0
}

// IsExpired returns true unless the token is VALID, so an EXPIRING token is refreshed early.
func (tm *TokenManager) IsExpired() bool {
	status := tm.Status(time.Now())
	if tm == nil {
		return true
	}
	logging.AuthLogger.Debug("Token expiry check", "status", status, "expiry", time.Unix(tm.Expiry, 0).Format(time.RFC3339))
	return status != TokenValid
}

// Clear wipes the tokens in memory.
func (tm *TokenManager) Clear() {
	tm.AccessToken = ""
	tm.RefreshToken = ""
	tm.Expiry = 0
}

// Update copies the tokens from other.
func (tm *TokenManager) Update(other *TokenManager) {
	tm.AccessToken = other.AccessToken
	tm.RefreshToken = other.RefreshToken
	tm.Expiry = other.Expiry
}

// SaveTokens writes the tokens to path as JSON with owner-only permissions.
func (tm *TokenManager) SaveTokens(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		logging.AuthLogger.Debug("Could not resolve absolute path", "path", path, "error", err)
		absPath = unknownPath
	}

	logging.AuthLogger.Debug("Saving authentication tokens to file",
		"path", path,
		"absolute_path", absPath,
		"access_token", maskSensitiveData(tm.AccessToken),
		"refresh_token", maskSensitiveData(tm.RefreshToken),
		"expires_at", time.Unix(tm.Expiry, 0).Format(time.RFC3339))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		logging.AuthLogger.Error("Failed to create token file", "path", path, "absolute_path", absPath, "error", err)
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(tm); err != nil {
		logging.AuthLogger.Error("Failed to encode tokens to file", "path", path, "absolute_path", absPath, "error", err)
		return err
	}

	logging.AuthLogger.Debug("Tokens saved successfully", "path", path)
	return nil
}

// GetTokenPath returns the token file path, using TOKEN_FILE environment variable if set
func GetTokenPath(defaultPath string) string {
	if envPath := os.Getenv("TOKEN_FILE"); envPath != "" {
		logging.AuthLogger.Debug("Using TOKEN_FILE environment variable", "path", envPath)
		return envPath
	}
	return defaultPath
}

// LoadTokens loads tokens from a file.
func LoadTokens(path string) (*TokenManager, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = unknownPath
	}

	logging.AuthLogger.Debug("Loading tokens from file", "path", path, "absolute_path", absPath)

	f, err := os.Open(path)
	if err != nil {
		logging.AuthLogger.Debug("No token file found", "path", path, "error", err)
		return nil, err
	}
	defer f.Close()

	tm := &TokenManager{}
	if err := json.NewDecoder(f).Decode(tm); err != nil {
		logging.AuthLogger.Error("Failed to decode token file", "path", path, "absolute_path", absPath, "error", err)
		return nil, err
	}

	logging.AuthLogger.Debug("Tokens loaded successfully",
		"path", path,
		"access_token", maskSensitiveData(tm.AccessToken),
		"refresh_token", maskSensitiveData(tm.RefreshToken),
		"status", tm.Status(time.Now()))
	return tm, nil
}

// IsAuthError checks if an error is due to authentication issues.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid_token") ||
		strings.Contains(errStr, "expired_token") ||
		strings.Contains(errStr, "authentication required")
}
