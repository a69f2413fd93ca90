// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// manager.go - Authentication state manager for MCP tools.
//
// The manager lets MCP tools inspect, refresh, start and clear authentication
// independently of server startup. Tokens are never exposed through AuthStatus.

package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

const (
	// ServerModeStdio starts a dedicated callback listener on the redirect URI port.
	ServerModeStdio = "stdio"
	// ServerModeHTTP relies on the main HTTP router calling HandleOAuthCallback.
	ServerModeHTTP = "http"

	defaultSessionTimeoutMinutes = 10
)

// AuthStatus represents the current authentication state without exposing sensitive tokens
type AuthStatus struct {
	Authenticated         bool        `json:"authenticated"`
	TokenStatus           TokenStatus `json:"tokenStatus"`
	TokenExpiry           *time.Time  `json:"tokenExpiry,omitempty"`
	TokenExpiresIn        string      `json:"tokenExpiresIn,omitempty"`
	RefreshTokenAvailable bool        `json:"refreshTokenAvailable"`
	LastRefresh           *time.Time  `json:"lastRefresh,omitempty"`
	AuthMethod            string      `json:"authMethod"`
	Message               string      `json:"message,omitempty"`
	PendingSession        bool        `json:"pendingSession"`
}

// AuthSession represents an active authentication session
type AuthSession struct {
	State          string    `json:"state"`
	CodeVerifier   string    `json:"-"`
	CodeChallenge  string    `json:"codeChallenge"`
	AuthURL        string    `json:"authUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	TimeoutMinutes int       `json:"timeoutMinutes"`
	CallbackAddr   string    `json:"callbackAddr,omitempty"`
}

// AuthManager manages authentication state and operations for MCP tools
type AuthManager struct {
	mu             sync.RWMutex
	oauthConfig    *OAuth2Config
	tokenManager   *TokenManager
	tokenPath      string
	activeSession  *AuthSession
	lastRefresh    *time.Time
	onTokenRefresh func(string)
	serverMode     string
	callbackChan   chan string
}

// NewAuthManager creates a new authentication manager
func NewAuthManager(oauthConfig *OAuth2Config, tokenManager *TokenManager, tokenPath string) *AuthManager {
	if tokenManager == nil {
		tokenManager = &TokenManager{}
	}
	return &AuthManager{
		oauthConfig:  oauthConfig,
		tokenManager: tokenManager,
		tokenPath:    tokenPath,
		serverMode:   ServerModeStdio,
		callbackChan: make(chan string, 1),
	}
}

// SetTokenRefreshCallback sets a callback function that will be called when tokens are refreshed
func (am *AuthManager) SetTokenRefreshCallback(callback func(string)) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.onTokenRefresh = callback
}

// SetServerMode sets the server mode (ServerModeStdio or ServerModeHTTP)
func (am *AuthManager) SetServerMode(mode string) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.serverMode = mode
	logging.AuthLogger.Info("Server mode configured for auth manager", "mode", mode)
}

// TokenManager returns the shared token manager.
func (am *AuthManager) TokenManager() *TokenManager {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.tokenManager
}

// GetAuthStatus returns the current authentication status without exposing sensitive data
func (am *AuthManager) GetAuthStatus() *AuthStatus {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.statusLocked(time.Now())
}

// statusLocked builds the status; callers hold am.mu.
func (am *AuthManager) statusLocked(now time.Time) *AuthStatus {
	status := &AuthStatus{
		AuthMethod:     "OAuth2_PKCE",
		TokenStatus:    am.tokenManager.Status(now),
		PendingSession: am.activeSession != nil,
		LastRefresh:    am.lastRefresh,
	}
	if am.oauthConfig != nil && am.oauthConfig.ClientSecret != "" {
		status.AuthMethod = "OAuth2_PKCE_Confidential"
	}

	if status.TokenStatus == TokenMissing {
		status.Message = "No authentication tokens found"
		return status
	}

	status.Authenticated = true
	status.RefreshTokenAvailable = am.tokenManager.RefreshToken != ""

	if am.tokenManager.Expiry > 0 {
		expiry := time.Unix(am.tokenManager.Expiry, 0)
		status.TokenExpiry = &expiry
		if remaining := expiry.Sub(now); remaining > 0 {
			status.TokenExpiresIn = formatDuration(remaining)
		} else {
			status.TokenExpiresIn = "expired"
		}
	}

	switch status.TokenStatus {
	case TokenExpired:
		status.Message = "Token is expired but can be refreshed"
		if !status.RefreshTokenAvailable {
			status.Message = "Token is expired and no refresh token is available, use initiateAuth"
		}
	case TokenExpiring:
		status.Message = "Token expires within a minute and will be refreshed on the next request"
	default:
		status.Message = "Authentication is valid"
	}
	return status
}

// RefreshToken manually triggers a token refresh
func (am *AuthManager) RefreshToken(ctx context.Context) (*AuthStatus, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	if am.oauthConfig == nil {
		return nil, fmt.Errorf("authentication not configured")
	}
	if am.tokenManager.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}

	logging.AuthLogger.Info("Manually refreshing token via MCP tool")

	newTokenManager, err := am.oauthConfig.RefreshToken(ctx, am.tokenManager.RefreshToken)
	if err != nil {
		logging.AuthLogger.Error("Token refresh failed", "error", err)
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	am.storeLocked(newTokenManager)
	logging.AuthLogger.Info("Token refresh successful via MCP tool")
	return am.statusLocked(time.Now()), nil
}

// storeLocked installs new tokens, persists them and notifies listeners; callers hold am.mu.
func (am *AuthManager) storeLocked(tm *TokenManager) {
	am.tokenManager.Update(tm)

	if am.tokenPath != "" {
		if err := am.tokenManager.SaveTokens(am.tokenPath); err != nil {
			logging.AuthLogger.Warn("Failed to save tokens", "error", err)
		}
	}

	now := time.Now()
	am.lastRefresh = &now

	if am.onTokenRefresh != nil {
		am.onTokenRefresh(tm.AccessToken)
	}
}

// InitiateAuth starts a new authentication flow and begins waiting for the callback.
func (am *AuthManager) InitiateAuth() (*AuthSession, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	if am.oauthConfig == nil {
		return nil, fmt.Errorf("OAuth configuration not available")
	}

	logging.AuthLogger.Info("Initiating new authentication flow via MCP tool")

	codeVerifier, err := GenerateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	codeChallenge := CodeChallengeS256(codeVerifier)
	state := uuid.NewString()

	session := &AuthSession{
		State:          state,
		CodeVerifier:   codeVerifier,
		CodeChallenge:  codeChallenge,
		AuthURL:        am.oauthConfig.GetAuthURL(state, codeChallenge),
		CreatedAt:      time.Now(),
		TimeoutMinutes: defaultSessionTimeoutMinutes,
	}

	// Drain a stale code left over from a previous session.
	select {
	case <-am.callbackChan:
	default:
	}

	am.activeSession = session

	logging.AuthLogger.Info("Callback handling mode decision", "server_mode", am.serverMode)
	if am.serverMode == ServerModeStdio {
		addr, path, err := CallbackAddress(am.oauthConfig.RedirectURI)
		if err != nil {
			am.activeSession = nil
			return nil, err
		}
		session.CallbackAddr = addr
		go am.startOAuthCallbackServer(session, addr, path)
	} else {
		go am.waitForOAuthCallback(session)
	}

	logging.AuthLogger.Debug("Authentication session created", "state", state, "server_mode", am.serverMode)
	return session, nil
}

// startOAuthCallbackServer runs a temporary HTTP server that handles the OAuth callback
func (am *AuthManager) startOAuthCallbackServer(session *AuthSession, addr, path string) {
	codeCh := make(chan string, 1)

	server, err := StartLocalServer(addr, path, codeCh, session.State)
	if err != nil {
		logging.AuthLogger.Error("Failed to start OAuth callback server", "error", err)
		return
	}
	defer func() {
		if err := server.Shutdown(context.Background()); err != nil {
			logging.AuthLogger.Warn("Failed to shutdown HTTP server gracefully", "error", err)
		}
	}()

	am.awaitCode(session, codeCh)
}

// waitForOAuthCallback waits for the main HTTP server to deliver the callback code
func (am *AuthManager) waitForOAuthCallback(session *AuthSession) {
	am.awaitCode(session, am.callbackChan)
}

func (am *AuthManager) awaitCode(session *AuthSession, codeCh <-chan string) {
	timer := time.NewTimer(time.Duration(session.TimeoutMinutes) * time.Minute)
	defer timer.Stop()

	select {
	case code := <-codeCh:
		logging.AuthLogger.Info("OAuth callback code received")
		if err := am.CompleteAuth(context.Background(), code); err != nil {
			logging.AuthLogger.Error("Failed to complete authentication", "error", err)
		}
	case <-timer.C:
		logging.AuthLogger.Info("OAuth session timed out", "timeout_minutes", session.TimeoutMinutes)
		am.mu.Lock()
		if am.activeSession == session {
			am.activeSession = nil
		}
		am.mu.Unlock()
	}
}

// CompleteAuth completes an authentication flow with the received code
func (am *AuthManager) CompleteAuth(ctx context.Context, code string) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	if am.activeSession == nil {
		return fmt.Errorf("no active authentication session")
	}

	if time.Since(am.activeSession.CreatedAt) > time.Duration(am.activeSession.TimeoutMinutes)*time.Minute {
		am.activeSession = nil
		return fmt.Errorf("authentication session has expired")
	}

	logging.AuthLogger.Info("Completing authentication with received code")

	tokenManager, err := am.oauthConfig.ExchangeCode(ctx, code, am.activeSession.CodeVerifier)
	am.activeSession = nil
	if err != nil {
		return fmt.Errorf("failed to exchange code for tokens: %w", err)
	}

	am.storeLocked(tokenManager)
	logging.AuthLogger.Info("Authentication completed successfully via MCP tool")
	return nil
}

// ClearAuth clears stored authentication tokens (logout)
func (am *AuthManager) ClearAuth() error {
	am.mu.Lock()
	defer am.mu.Unlock()

	logging.AuthLogger.Info("Clearing authentication tokens via MCP tool")

	am.tokenManager.Clear()
	am.lastRefresh = nil
	am.activeSession = nil

	if am.tokenPath != "" {
		if err := am.tokenManager.SaveTokens(am.tokenPath); err != nil {
			logging.AuthLogger.Warn("Failed to clear token file", "error", err)
		}
	}

	if am.onTokenRefresh != nil {
		am.onTokenRefresh("")
	}

	logging.AuthLogger.Info("Authentication cleared successfully")
	return nil
}

// GetActiveSession returns the current active authentication session, if any
func (am *AuthManager) GetActiveSession() *AuthSession {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.activeSession
}

// HandleOAuthCallback handles OAuth callbacks when running in HTTP mode
func (am *AuthManager) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	am.mu.RLock()
	session := am.activeSession
	am.mu.RUnlock()

	if session == nil {
		http.Error(w, "No active authentication session", http.StatusBadRequest)
		logging.AuthLogger.Warn("OAuth callback received with no active session")
		return
	}

	state := r.URL.Query().Get("state")
	if state != session.State {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		logging.AuthLogger.Warn("OAuth callback received with invalid state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		oauthErr := r.URL.Query().Get("error")
		description := r.URL.Query().Get("error_description")
		http.Error(w, fmt.Sprintf("OAuth error: %s - %s", oauthErr, description), http.StatusBadRequest)
		logging.AuthLogger.Error("OAuth callback error", "error", oauthErr, "description", description)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body>
	<h1>Authentication Successful!</h1>
	<p>OneDrive access is ready. You may now close this window.</p>
</body>
</html>`))

	select {
	case am.callbackChan <- code:
		logging.AuthLogger.Info("OAuth callback code sent for processing")
	default:
		logging.AuthLogger.Warn("OAuth callback channel is full, discarding code")
	}
}

// formatDuration formats a duration in a human-readable format
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours %d minutes", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%d days %d hours", int(d.Hours())/24, int(d.Hours())%24)
	}
}
