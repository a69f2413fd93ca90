// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenServer fakes the identity platform token endpoint and records the posted forms.
type tokenServer struct {
	*httptest.Server
	mu     sync.Mutex
	forms  []url.Values
	status int
	body   string
}

func newTokenServer(t *testing.T, status int, body string) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: status, body: body}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		ts.mu.Lock()
		ts.forms = append(ts.forms, r.PostForm)
		ts.mu.Unlock()
		assert.True(t, strings.HasSuffix(r.URL.Path, "/oauth2/v2.0/token"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ts.status)
		_, _ = w.Write([]byte(ts.body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) config() *OAuth2Config {
	cfg := NewOAuth2Config("test-client-id", "contoso", "http://localhost:8080/callback")
	cfg.Authority = ts.URL
	return cfg
}

func TestGetAuthURL(t *testing.T) {
	cfg := NewOAuth2Config("test-client-id", "", "http://localhost:8080/callback")
	raw := cfg.GetAuthURL("state-123", "challenge-abc")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "login.microsoftonline.com", u.Host)
	assert.Equal(t, "/common/oauth2/v2.0/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "test-client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "query", q.Get("response_mode"))
	assert.Equal(t, "http://localhost:8080/callback", q.Get("redirect_uri"))
	assert.Equal(t, "offline_access Files.ReadWrite.All User.Read", q.Get("scope"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "challenge-abc", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))

	cfg.Scopes = []string{"Files.Read"}
	cfg.TenantID = "contoso"
	u, err = url.Parse(cfg.GetAuthURL("s", "c"))
	require.NoError(t, err)
	assert.Equal(t, "Files.Read", u.Query().Get("scope"))
	assert.Equal(t, "/contoso/oauth2/v2.0/authorize", u.Path)
}

func TestPKCE(t *testing.T) {
	verifier, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.Len(t, verifier, 43)

	other, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.NotEqual(t, verifier, other)

	// RFC 7636 appendix B test vector
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeS256("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
}

func TestTokenManagerStatus(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name      string
		tm        *TokenManager
		status    TokenStatus
		expiresIn int64
	}{
		{"nil manager", nil, TokenMissing, 0},
		{"no access token", &TokenManager{RefreshToken: "r", Expiry: now.Unix() + 3600}, TokenMissing, 3600},
		{"expired", &TokenManager{AccessToken: "a", Expiry: now.Unix() - 1}, TokenExpired, 0},
		{"expires exactly now", &TokenManager{AccessToken: "a", Expiry: now.Unix()}, TokenExpired, 0},
		{"expiring at 60s", &TokenManager{AccessToken: "a", Expiry: now.Unix() + 60}, TokenExpiring, 60},
		{"expiring at 1s", &TokenManager{AccessToken: "a", Expiry: now.Unix() + 1}, TokenExpiring, 1},
		{"valid at 61s", &TokenManager{AccessToken: "a", Expiry: now.Unix() + 61}, TokenValid, 61},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.tm.Status(now))
			assert.Equal(t, tt.expiresIn, tt.tm.ExpiresIn(now))
		})
	}
}

func TestTokenManagerIsExpired(t *testing.T) {
	assert.True(t, (&TokenManager{}).IsExpired())
	assert.True(t, (&TokenManager{AccessToken: "a", Expiry: time.Now().Unix() + 30}).IsExpired())
	assert.False(t, (&TokenManager{AccessToken: "a", Expiry: time.Now().Unix() + 3600}).IsExpired())
}

func TestSaveAndLoadTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	original := &TokenManager{AccessToken: "access", RefreshToken: "refresh", Expiry: 1234567890}

	require.NoError(t, original.SaveTokens(path))

	loaded, err := LoadTokens(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	_, err = LoadTokens(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestGetTokenPath(t *testing.T) {
	t.Setenv("TOKEN_FILE", "")
	assert.Equal(t, "tokens.json", GetTokenPath("tokens.json"))

	t.Setenv("TOKEN_FILE", "/var/lib/onedrive/tokens.json")
	assert.Equal(t, "/var/lib/onedrive/tokens.json", GetTokenPath("tokens.json"))
}

func TestExchangeCode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ts := newTokenServer(t, http.StatusOK, `{"access_token":"at","refresh_token":"rt","expires_in":3600}`)
		cfg := ts.config()

		tm, err := cfg.ExchangeCode(context.Background(), "auth-code", "verifier")
		require.NoError(t, err)
		assert.Equal(t, "at", tm.AccessToken)
		assert.Equal(t, "rt", tm.RefreshToken)
		assert.InDelta(t, time.Now().Unix()+3600, tm.Expiry, 5)

		require.Len(t, ts.forms, 1)
		form := ts.forms[0]
		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "auth-code", form.Get("code"))
		assert.Equal(t, "verifier", form.Get("code_verifier"))
		assert.Equal(t, "test-client-id", form.Get("client_id"))
		assert.Empty(t, form.Get("client_secret"))
	})

	t.Run("confidential client sends secret", func(t *testing.T) {
		ts := newTokenServer(t, http.StatusOK, `{"access_token":"at","expires_in":3600}`)
		cfg := ts.config()
		cfg.ClientSecret = "s3cret"

		_, err := cfg.ExchangeCode(context.Background(), "auth-code", "verifier")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", ts.forms[0].Get("client_secret"))
	})

	t.Run("PKCE mismatch", func(t *testing.T) {
		ts := newTokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"The code_verifier does not match"}`)

		_, err := ts.config().ExchangeCode(context.Background(), "auth-code", "wrong")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PKCE code verifier mismatch")
	})

	t.Run("other failure", func(t *testing.T) {
		ts := newTokenServer(t, http.StatusUnauthorized, `{"error":"invalid_client"}`)

		_, err := ts.config().ExchangeCode(context.Background(), "auth-code", "verifier")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token exchange failed")
		assert.Contains(t, err.Error(), "invalid_client")
	})
}

func TestRefreshToken(t *testing.T) {
	t.Run("keeps refresh token when not rotated", func(t *testing.T) {
		ts := newTokenServer(t, http.StatusOK, `{"access_token":"new-at","expires_in":3600}`)

		tm, err := ts.config().RefreshToken(context.Background(), "old-rt")
		require.NoError(t, err)
		assert.Equal(t, "new-at", tm.AccessToken)
		assert.Equal(t, "old-rt", tm.RefreshToken)
		assert.Equal(t, "refresh_token", ts.forms[0].Get("grant_type"))
		assert.Equal(t, "old-rt", ts.forms[0].Get("refresh_token"))
	})

	t.Run("missing refresh token", func(t *testing.T) {
		_, err := NewOAuth2Config("id", "", "").RefreshToken(context.Background(), "")
		assert.EqualError(t, err, "no refresh token available")
	})

	t.Run("response without access token", func(t *testing.T) {
		ts := newTokenServer(t, http.StatusOK, `{"expires_in":3600}`)
		_, err := ts.config().RefreshToken(context.Background(), "rt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "did not include an access token")
	})
}

func TestCallbackAddress(t *testing.T) {
	tests := []struct {
		uri  string
		addr string
		path string
	}{
		{"http://localhost:8080/callback", ":8080", "/callback"},
		{"http://localhost:9000/oauth/done", ":9000", "/oauth/done"},
		{"http://localhost", ":80", "/callback"},
		{"https://example.com/cb", ":443", "/cb"},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			addr, path, err := CallbackAddress(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.addr, addr)
			assert.Equal(t, tt.path, path)
		})
	}

	_, _, err := CallbackAddress("://bad")
	assert.Error(t, err)
}

func TestIsAuthError(t *testing.T) {
	assert.False(t, IsAuthError(nil))
	assert.True(t, IsAuthError(jsonError("HTTP 401: unauthorized")))
	assert.True(t, IsAuthError(jsonError("authentication required: tokens have been cleared")))
	assert.False(t, IsAuthError(jsonError("HTTP 404: itemNotFound")))
}

type jsonError string

func (e jsonError) Error() string { return string(e) }

func TestAuthManagerStatus(t *testing.T) {
	t.Run("missing tokens", func(t *testing.T) {
		am := NewAuthManager(NewOAuth2Config("id", "", "http://localhost:8080/callback"), nil, "")
		status := am.GetAuthStatus()
		assert.False(t, status.Authenticated)
		assert.Equal(t, TokenMissing, status.TokenStatus)
		assert.Equal(t, "No authentication tokens found", status.Message)
	})

	t.Run("valid tokens", func(t *testing.T) {
		tm := &TokenManager{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(2 * time.Hour).Unix()}
		am := NewAuthManager(NewOAuth2Config("id", "", ""), tm, "")
		status := am.GetAuthStatus()
		assert.True(t, status.Authenticated)
		assert.True(t, status.RefreshTokenAvailable)
		assert.Equal(t, TokenValid, status.TokenStatus)
		assert.NotNil(t, status.TokenExpiry)
		assert.Contains(t, status.TokenExpiresIn, "hours")

		data, err := json.Marshal(status)
		require.NoError(t, err)
		assert.NotContains(t, string(data), `"a"`)
	})

	t.Run("expired without refresh token", func(t *testing.T) {
		tm := &TokenManager{AccessToken: "a", Expiry: time.Now().Add(-time.Minute).Unix()}
		status := NewAuthManager(nil, tm, "").GetAuthStatus()
		assert.Equal(t, TokenExpired, status.TokenStatus)
		assert.Equal(t, "expired", status.TokenExpiresIn)
		assert.Contains(t, status.Message, "initiateAuth")
	})
}

func TestAuthManagerRefreshToken(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, `{"access_token":"fresh","refresh_token":"rotated","expires_in":3600}`)
	path := filepath.Join(t.TempDir(), "tokens.json")
	tm := &TokenManager{AccessToken: "stale", RefreshToken: "rt", Expiry: time.Now().Unix() - 10}

	am := NewAuthManager(ts.config(), tm, path)
	var notified string
	am.SetTokenRefreshCallback(func(token string) { notified = token })

	done := make(chan struct{})
	var status *AuthStatus
	var err error
	go func() {
		status, err = am.RefreshToken(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RefreshToken did not return")
	}

	require.NoError(t, err)
	assert.Equal(t, TokenValid, status.TokenStatus)
	assert.NotNil(t, status.LastRefresh)
	assert.Equal(t, "fresh", notified)
	assert.Equal(t, "fresh", am.TokenManager().AccessToken)

	saved, err := LoadTokens(path)
	require.NoError(t, err)
	assert.Equal(t, "rotated", saved.RefreshToken)
}

func TestAuthManagerRefreshTokenErrors(t *testing.T) {
	_, err := NewAuthManager(nil, &TokenManager{RefreshToken: "r"}, "").RefreshToken(context.Background())
	assert.EqualError(t, err, "authentication not configured")

	_, err = NewAuthManager(NewOAuth2Config("id", "", ""), &TokenManager{}, "").RefreshToken(context.Background())
	assert.EqualError(t, err, "no refresh token available")
}

func TestAuthManagerClearAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	tm := &TokenManager{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour).Unix()}
	am := NewAuthManager(NewOAuth2Config("id", "", ""), tm, path)

	notified := "unset"
	am.SetTokenRefreshCallback(func(token string) { notified = token })

	require.NoError(t, am.ClearAuth())
	assert.Equal(t, "", notified)
	assert.Equal(t, TokenMissing, am.GetAuthStatus().TokenStatus)

	saved, err := LoadTokens(path)
	require.NoError(t, err)
	assert.Empty(t, saved.AccessToken)
	assert.Empty(t, saved.RefreshToken)
}

func TestAuthManagerHTTPCallbackFlow(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, `{"access_token":"at","refresh_token":"rt","expires_in":3600}`)
	am := NewAuthManager(ts.config(), nil, "")
	am.SetServerMode(ServerModeHTTP)

	completed := make(chan string, 1)
	am.SetTokenRefreshCallback(func(token string) { completed <- token })

	session, err := am.InitiateAuth()
	require.NoError(t, err)
	assert.NotEmpty(t, session.State)
	assert.Contains(t, session.AuthURL, url.QueryEscape(session.State))
	assert.NotNil(t, am.GetActiveSession())

	t.Run("wrong state rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		am.HandleOAuthCallback(rec, httptest.NewRequest(http.MethodGet, "/callback?state=nope&code=c", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("error from identity platform", func(t *testing.T) {
		rec := httptest.NewRecorder()
		am.HandleOAuthCallback(rec, httptest.NewRequest(http.MethodGet,
			"/callback?state="+session.State+"&error=access_denied&error_description=denied", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "access_denied")
	})

	rec := httptest.NewRecorder()
	am.HandleOAuthCallback(rec, httptest.NewRequest(http.MethodGet, "/callback?state="+session.State+"&code=the-code", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case token := <-completed:
		assert.Equal(t, "at", token)
	case <-time.After(5 * time.Second):
		t.Fatal("authentication did not complete")
	}

	assert.Nil(t, am.GetActiveSession())
	assert.Equal(t, "the-code", ts.forms[0].Get("code"))
	assert.Equal(t, session.CodeVerifier, ts.forms[0].Get("code_verifier"))
}

func TestCompleteAuthWithoutSession(t *testing.T) {
	am := NewAuthManager(NewOAuth2Config("id", "", ""), nil, "")
	err := am.CompleteAuth(context.Background(), "code")
	assert.EqualError(t, err, "no active authentication session")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "30 seconds", formatDuration(30*time.Second))
	assert.Equal(t, "5 minutes", formatDuration(5*time.Minute))
	assert.Equal(t, "2 hours 15 minutes", formatDuration(2*time.Hour+15*time.Minute))
	assert.Equal(t, "3 days 4 hours", formatDuration(76*time.Hour))
}

func TestBearerTokenMiddleware(t *testing.T) {
	handler := BearerTokenMiddleware("secret-token")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"valid bearer", "/mcp", "Bearer secret-token", http.StatusNoContent},
		{"raw token accepted", "/mcp", "secret-token", http.StatusNoContent},
		{"missing header", "/mcp", "", http.StatusUnauthorized},
		{"empty bearer", "/mcp", "Bearer ", http.StatusUnauthorized},
		{"wrong token", "/mcp", "Bearer nope", http.StatusUnauthorized},
		{"health is public", "/health", "", http.StatusNoContent},
		{"callback is public", "/callback", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRequestLoggingMiddleware(t *testing.T) {
	handler := RequestLoggingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
