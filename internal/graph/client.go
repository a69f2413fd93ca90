// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// client.go - Core Microsoft Graph API client for OneDrive operations.
//
// The Client carries two transports. Typed drive calls go through the Graph SDK
// adapter; raw REST calls go through a retrying, rate limited HTTP client that
// refreshes the access token once when Graph answers 401. Upload session URLs
// are pre-authenticated and use a separate pooled transport without retries.
//
// Usage Example:
//   client := graph.NewClientWithTokenRefresh(accessToken, oauthConfig, tokenManager, tokenPath, graph.Options{})
//
//   var item graph.DriveItem
//   if err := client.DoJSON(ctx, http.MethodGet, "/me/drive/root", nil, &item, http.StatusOK); err != nil {
//       logging.GraphLogger.Error("Failed to get root", "error", err)
//   }

package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	abstractions "github.com/microsoft/kiota-abstractions-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	msgraphsdkcore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"golang.org/x/time/rate"

	"github.com/gebl/onedrive-mcp-server/internal/auth"
	httputils "github.com/gebl/onedrive-mcp-server/internal/http"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

const (
	// DefaultBaseURL is the Graph v1.0 endpoint every relative endpoint is joined to.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	unknownPath = "unknown"
)

// Options tunes the REST transport. Zero values take the defaults.
type Options struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	RetryMax          int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	Timeout           time.Duration
}

// Client handles Microsoft Graph API requests for OneDrive.
type Client struct {
	GraphClient  *msgraphsdk.GraphServiceClient // Microsoft Graph SDK client
	Adapter      abstractions.RequestAdapter    // SDK adapter, used for nextLink paging
	AuthProvider *StaticTokenProvider           // Authentication provider for token updates
	HTTPClient   *retryablehttp.Client          // REST transport with retries on 429 and 5xx
	Limiter      *rate.Limiter                  // Applied before every REST request
	BaseURL      string

	OAuthConfig  *auth.OAuth2Config // OAuth2 configuration for token refresh
	TokenManager *auth.TokenManager // Token manager for refresh operations
	TokenPath    string             // Path to save refreshed tokens

	// OnTokenRefresh is called with the new access token after a refresh.
	OnTokenRefresh func(string)

	mu          sync.RWMutex
	accessToken string
	do          httputils.HTTPRequestFunc
}

// NewClient creates a Graph client without refresh support.
func NewClient(accessToken string, opts Options) *Client {
	return NewClientWithTokenRefresh(accessToken, nil, nil, "", opts)
}

// NewClientWithTokenRefresh creates a Graph client that refreshes expired tokens
// through oauthConfig and persists them to tokenPath.
func NewClientWithTokenRefresh(accessToken string, oauthConfig *auth.OAuth2Config, tokenManager *auth.TokenManager, tokenPath string, opts Options) *Client {
	logger := logging.GraphLogger

	absTokenPath, err := filepath.Abs(tokenPath)
	if err != nil || tokenPath == "" {
		absTokenPath = unknownPath
	}
	logger.Debug("Creating Graph client",
		"abs_token_path", absTokenPath,
		"oauth_config_available", oauthConfig != nil,
		"token_manager_available", tokenManager != nil)

	opts = opts.withDefaults()

	authProvider := &StaticTokenProvider{AccessToken: accessToken}
	adapter, err := msgraphsdkcore.NewGraphRequestAdapterBase(authProvider, msgraphsdkcore.GraphClientOptions{
		GraphServiceVersion: "v1.0",
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create GraphRequestAdapter: %v", err))
	}
	adapter.SetBaseUrl(opts.BaseURL)

	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient = cleanhttp.DefaultPooledClient()
	httpClient.HTTPClient.Timeout = opts.Timeout
	httpClient.RetryMax = opts.RetryMax
	httpClient.RetryWaitMin = opts.RetryWaitMin
	httpClient.RetryWaitMax = opts.RetryWaitMax
	httpClient.Logger = logger
	// Hand the final response back so callers can classify the status.
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		GraphClient:  msgraphsdk.NewGraphServiceClient(adapter),
		Adapter:      adapter,
		AuthProvider: authProvider,
		HTTPClient:   httpClient,
		Limiter:      rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		BaseURL:      opts.BaseURL,
		OAuthConfig:  oauthConfig,
		TokenManager: tokenManager,
		TokenPath:    tokenPath,
		accessToken:  accessToken,
	}
	c.do = httputils.NewRequestFunc(httpClient.StandardClient())

	logger.Debug("Graph client created",
		"base_url", opts.BaseURL,
		"requests_per_second", opts.RequestsPerSecond,
		"burst", opts.Burst,
		"retry_max", opts.RetryMax)
	return c
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 10
	}
	if o.Burst <= 0 {
		o.Burst = 5
	}
	if o.RetryMax < 0 {
		o.RetryMax = 0
	}
	if o.RetryWaitMin <= 0 {
		o.RetryWaitMin = time.Second
	}
	if o.RetryWaitMax <= 0 {
		o.RetryWaitMax = 30 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	return o
}

// NewUploadTransport returns the transport used for upload session URLs. Those
// URLs embed their own credentials, so requests carry no Authorization header
// and are never retried.
func NewUploadTransport() httputils.HTTPRequestFunc {
	return httputils.NewRequestFunc(cleanhttp.DefaultPooledClient())
}

// StaticTokenProvider implements the kiota AuthenticationProvider for a token
// that is swapped out on refresh.
type StaticTokenProvider struct {
	mu          sync.RWMutex
	AccessToken string
}

// AuthenticateRequest adds the Authorization header to the request.
func (s *StaticTokenProvider) AuthenticateRequest(ctx context.Context, request *abstractions.RequestInformation, additionalAuthenticationContext map[string]interface{}) error {
	if request == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if request.Headers == nil {
		return fmt.Errorf("request headers cannot be nil")
	}
	s.mu.RLock()
	token := s.AccessToken
	s.mu.RUnlock()
	if token == "" {
		logging.GraphLogger.Error("Access token is empty in AuthenticateRequest")
		return fmt.Errorf("authentication required: access token cannot be empty")
	}
	request.Headers.Add("Authorization", "Bearer "+token)
	return nil
}

// UpdateAccessToken updates the access token in the StaticTokenProvider.
func (s *StaticTokenProvider) UpdateAccessToken(newToken string) {
	s.mu.Lock()
	s.AccessToken = newToken
	s.mu.Unlock()
}

// AccessToken returns the token currently used for requests.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// UpdateToken updates the access token in both the client and the auth provider.
// An empty token also clears the token manager.
func (c *Client) UpdateToken(newToken string) {
	c.mu.Lock()
	c.accessToken = newToken
	if newToken == "" && c.TokenManager != nil {
		logging.GraphLogger.Info("Clearing TokenManager due to empty access token")
		c.TokenManager.Clear()
	}
	c.mu.Unlock()

	if c.AuthProvider != nil {
		c.AuthProvider.UpdateAccessToken(newToken)
	}
	logging.GraphLogger.Debug("Updated access token in Graph client", "empty", newToken == "")
}

func (c *Client) canRefresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.OAuthConfig != nil && c.TokenManager != nil && c.TokenManager.RefreshToken != ""
}

// RefreshTokenIfNeeded refreshes the access token when it is expired or about to expire.
func (c *Client) RefreshTokenIfNeeded(ctx context.Context) error {
	if c.TokenManager == nil || c.OAuthConfig == nil {
		return fmt.Errorf("token manager or OAuth config not available")
	}
	c.mu.RLock()
	status := c.TokenManager.Status(time.Now())
	c.mu.RUnlock()
	if status == auth.TokenValid {
		logging.GraphLogger.Debug("Token is valid, no refresh needed")
		return nil
	}
	logging.GraphLogger.Debug("Token needs refresh", "status", status)
	return c.RefreshToken(ctx)
}

// RefreshToken exchanges the stored refresh token for a new access token and saves it.
func (c *Client) RefreshToken(ctx context.Context) error {
	if c.TokenManager == nil || c.OAuthConfig == nil {
		return fmt.Errorf("token manager or OAuth config not available")
	}

	c.mu.RLock()
	refreshToken := c.TokenManager.RefreshToken
	c.mu.RUnlock()

	fresh, err := c.OAuthConfig.RefreshToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	c.mu.Lock()
	c.TokenManager.Update(fresh)
	c.accessToken = fresh.AccessToken
	snapshot := *c.TokenManager
	c.mu.Unlock()

	if c.AuthProvider != nil {
		c.AuthProvider.UpdateAccessToken(fresh.AccessToken)
	}

	if c.TokenPath != "" {
		if err := snapshot.SaveTokens(c.TokenPath); err != nil {
			logging.GraphLogger.Warn("Failed to save refreshed tokens", "path", c.TokenPath, "error", err)
		} else {
			logging.GraphLogger.Debug("Refreshed tokens saved", "path", c.TokenPath)
		}
	}
	if c.OnTokenRefresh != nil {
		c.OnTokenRefresh(fresh.AccessToken)
	}

	logging.GraphLogger.Debug("Token refreshed successfully")
	return nil
}
