// middleware.go - HTTP authentication middleware for the streamable MCP transport.
//
// The bearer middleware validates the Authorization header against the configured
// MCP token. Health checks and the OAuth callback stay reachable without a token,
// since the browser redirect from Microsoft cannot carry one.
//
// Usage:
//   r := chi.NewRouter()
//   r.Use(auth.RequestLoggingMiddleware())
//   r.Use(auth.BearerTokenMiddleware(cfg.MCPAuth.BearerToken))

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

var publicPaths = map[string]bool{
	"/health":   true,
	"/ping":     true,
	"/callback": true,
}

// BearerTokenMiddleware creates HTTP middleware that validates Bearer tokens
// against expectedToken. Returns 401 Unauthorized for invalid or missing tokens.
func BearerTokenMiddleware(expectedToken string) func(http.Handler) http.Handler {
	logger := logging.AuthLogger

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				logger.Debug("Skipping authentication for public endpoint", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				logger.Warn("Authentication failed: missing Authorization header",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method)
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Some MCP clients send the raw token without the Bearer prefix.
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Token cannot be empty", http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.Warn("Authentication failed: invalid Bearer token",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
					"token_length", len(token))
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLoggingMiddleware logs each request and the status it completed with.
func RequestLoggingMiddleware() func(http.Handler) http.Handler {
	logger := logging.MainLogger

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("HTTP request received",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"content_length", r.ContentLength)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			if wrapped.statusCode >= 400 {
				logger.Warn("HTTP request completed with error",
					"method", r.Method,
					"path", r.URL.Path,
					"status_code", wrapped.statusCode,
					"remote_addr", r.RemoteAddr)
			} else {
				logger.Info("HTTP request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status_code", wrapped.statusCode)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
