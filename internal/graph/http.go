// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// http.go - REST request helpers for the Microsoft Graph client.
//
// MakeAuthenticatedRequest has the httputils.HTTPRequestFunc shape, so the item
// operations can be driven through the shared SafeRequest helpers or replaced
// with a mock in tests.
//
// Usage Example:
//   resp, err := c.MakeAuthenticatedRequest(ctx, "GET", c.URL("/me/drive/root/children"), nil, nil)
//   if err != nil {
//       return nil, err
//   }
//   defer resp.Body.Close()
//
//   if err := CheckStatus("GET", endpoint, resp, http.StatusOK); err != nil {
//       return nil, err
//   }

package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

// URL joins a Graph endpoint to the client's base URL. Absolute URLs, such as
// nextLink values, are returned unchanged.
func (c *Client) URL(endpoint string) string {
	if strings.HasPrefix(endpoint, "https://") || strings.HasPrefix(endpoint, "http://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return strings.TrimRight(c.BaseURL, "/") + endpoint
}

// MakeAuthenticatedRequest sends an authenticated request to Graph. A 401 answer
// triggers one token refresh followed by a single replay of the request.
func (c *Client) MakeAuthenticatedRequest(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	logger := logging.GraphLogger

	token := c.AccessToken()
	if token == "" && !c.canRefresh() {
		logger.Debug("No valid authentication tokens available")
		return nil, fmt.Errorf("authentication required: tokens have been cleared, use initiateAuth to re-authenticate")
	}

	// Buffered so the request can be replayed after a refresh.
	var payload []byte
	if body != nil {
		var err error
		if payload, err = io.ReadAll(body); err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	if token == "" {
		if err := c.RefreshToken(ctx); err != nil {
			return nil, fmt.Errorf("authentication required: %w", err)
		}
		token = c.AccessToken()
	}

	resp, err := c.send(ctx, method, url, payload, body != nil, headers, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !c.canRefresh() {
		return resp, nil
	}

	logger.Debug("Received 401, refreshing token and retrying", "method", method, "url", url)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := c.RefreshToken(ctx); err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}
	return c.send(ctx, method, url, payload, body != nil, headers, c.AccessToken())
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte, hasBody bool, headers map[string]string, token string) (*http.Response, error) {
	logger := logging.GraphLogger

	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	h := make(map[string]string, len(headers)+3)
	for k, v := range headers {
		h[k] = v
	}
	h["Authorization"] = "Bearer " + token
	requestID := uuid.NewString()
	h["client-request-id"] = requestID

	var body io.Reader
	if hasBody {
		body = bytes.NewReader(payload)
		h["Content-Length"] = strconv.Itoa(len(payload))
		logging.LogContent(logger, slog.LevelDebug, "Request body", "url", url, "body", string(payload))
	}

	logger.Debug("Sending Graph request", "method", method, "url", url, "client_request_id", requestID)
	resp, err := c.do(ctx, method, url, body, h)
	if err != nil {
		logger.Debug("Graph request failed", "method", method, "url", url, "error", err)
		return nil, err
	}
	logger.Debug("Graph response received",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"request_id", resp.Header.Get("request-id"))
	return resp, nil
}

// DoJSON sends in as a JSON body (when non-nil), checks the status against
// expected and decodes the response into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, method, endpoint string, in, out any, expected ...int) error {
	var body io.Reader
	headers := map[string]string{"Accept": "application/json"}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, endpoint, err)
		}
		body = bytes.NewReader(data)
		headers["Content-Type"] = "application/json"
	}

	resp, err := c.MakeAuthenticatedRequest(ctx, method, c.URL(endpoint), body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := CheckStatus(method, endpoint, resp, expected...); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := c.ReadResponseBody(resp, method+" "+endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, endpoint, err)
	}
	return nil
}

// ListDriveItems GETs a drive item collection. With all set, @odata.nextLink
// pages are followed until the collection is exhausted.
func (c *Client) ListDriveItems(ctx context.Context, endpoint string, all bool) ([]DriveItem, error) {
	items := []DriveItem{}
	next := endpoint
	for page := 1; next != ""; page++ {
		var collection DriveItemCollection
		if err := c.DoJSON(ctx, http.MethodGet, next, nil, &collection, http.StatusOK); err != nil {
			return nil, err
		}
		items = append(items, collection.Value...)
		logging.GraphLogger.Debug("Fetched drive item page",
			"endpoint", endpoint,
			"page", page,
			"count", len(collection.Value),
			"has_next", collection.NextLink != "")
		if !all {
			break
		}
		next = collection.NextLink
	}
	return items, nil
}

// HandleHTTPResponse checks for the usual success statuses (200, 201, 204).
func (c *Client) HandleHTTPResponse(resp *http.Response, operation string) error {
	method, endpoint := "", operation
	if resp.Request != nil {
		method = resp.Request.Method
		endpoint = resp.Request.URL.String()
	}
	if err := CheckStatus(method, endpoint, resp, http.StatusOK, http.StatusCreated, http.StatusNoContent); err != nil {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	return nil
}

// ReadResponseBody reads the entire response body and returns it as bytes.
func (c *Client) ReadResponseBody(resp *http.Response, operation string) ([]byte, error) {
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.GraphLogger.Debug("Failed to read response body", "error", err)
		return nil, fmt.Errorf("failed to read %s response body: %w", operation, err)
	}
	logging.GraphLogger.Debug("Read response body", "operation", operation, "bytes", len(content))
	return content, nil
}

// GetContentTypeFromResponse extracts the content type, falling back to application/octet-stream.
func (c *Client) GetContentTypeFromResponse(resp *http.Response) string {
	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}
