// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebl/onedrive-mcp-server/internal/auth"
)

func TestURL(t *testing.T) {
	c := NewClient("token", Options{BaseURL: "https://example.test/v1.0/"})

	assert.Equal(t, "https://example.test/v1.0/me/drive", c.URL("/me/drive"))
	assert.Equal(t, "https://example.test/v1.0/me/drive", c.URL("me/drive"))
	assert.Equal(t, "https://other.test/page?$skiptoken=x", c.URL("https://other.test/page?$skiptoken=x"))
}

func TestMakeAuthenticatedRequest(t *testing.T) {
	t.Run("cleared tokens", func(t *testing.T) {
		c := NewClient("", Options{})
		_, err := c.MakeAuthenticatedRequest(context.Background(), http.MethodGet, "https://graph.microsoft.com/v1.0/me", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "authentication required: tokens have been cleared")
	})

	t.Run("sets auth and correlation headers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			assert.NotEmpty(t, r.Header.Get("client-request-id"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, int64(7), r.ContentLength)
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, `{"a":1}`, string(body))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		c := NewClient("token", fastOptions(server.URL))
		resp, err := c.MakeAuthenticatedRequest(context.Background(), http.MethodPatch, c.URL("/x"),
			strings.NewReader(`{"a":1}`), map[string]string{"Content-Type": "application/json"})
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("invalid url", func(t *testing.T) {
		c := NewClient("token", fastOptions(""))
		_, err := c.MakeAuthenticatedRequest(context.Background(), http.MethodGet, "://invalid-url", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing protocol scheme")
	})

	t.Run("refreshes once on 401", func(t *testing.T) {
		ids := newIdentityServer(t)
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "payload", string(body))
			if r.Header.Get("Authorization") != "Bearer fresh-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		tm := &auth.TokenManager{AccessToken: "stale", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour).Unix()}
		c := NewClientWithTokenRefresh("stale", ids.config(), tm, "", fastOptions(server.URL))

		resp, err := c.MakeAuthenticatedRequest(context.Background(), http.MethodPost, c.URL("/x"), strings.NewReader("payload"), nil)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, int32(1), ids.refreshes.Load())
		assert.Equal(t, "fresh-token", c.AccessToken())
	})

	t.Run("401 without refresh token is returned", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		c := NewClient("token", fastOptions(server.URL))
		resp, err := c.MakeAuthenticatedRequest(context.Background(), http.MethodGet, c.URL("/x"), nil, nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c := NewClient("token", fastOptions(server.URL))
		resp, err := c.MakeAuthenticatedRequest(context.Background(), http.MethodGet, c.URL("/x"), nil, nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("gives back the final status after retries", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := NewClient("token", fastOptions(server.URL))
		resp, err := c.MakeAuthenticatedRequest(context.Background(), http.MethodGet, c.URL("/x"), nil, nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		c := NewClient("token", fastOptions("http://127.0.0.1:1"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.MakeAuthenticatedRequest(ctx, http.MethodGet, c.URL("/x"), nil, nil)
		require.Error(t, err)
	})
}

func TestDoJSON(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/me/drive/root/children", r.URL.Path)
			var in map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "Reports", in["name"])

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"01ABC","name":"Reports","folder":{"childCount":0}}`))
		}))
		defer server.Close()

		c := NewClient("token", fastOptions(server.URL))
		var item DriveItem
		err := c.DoJSON(context.Background(), http.MethodPost, "/me/drive/root/children",
			map[string]any{"name": "Reports"}, &item, http.StatusOK, http.StatusCreated)
		require.NoError(t, err)
		assert.Equal(t, "01ABC", item.ID)
		assert.True(t, item.IsFolder())
	})

	t.Run("graph error is classified", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"itemNotFound","message":"The resource could not be found."}}`))
		}))
		defer server.Close()

		c := NewClient("token", fastOptions(server.URL))
		err := c.DoJSON(context.Background(), http.MethodGet, "/me/drive/items/nope", nil, &DriveItem{}, http.StatusOK)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrResourceNotFound))
		assert.True(t, errors.Is(err, ErrUnexpectedStatus))

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Equal(t, "itemNotFound", statusErr.Code)
		assert.Equal(t, "Unexpected status code produced by 'GET /me/drive/items/nope': 404 (itemNotFound: The resource could not be found.)", err.Error())
	})

	t.Run("no content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		c := NewClient("token", fastOptions(server.URL))
		var item DriveItem
		require.NoError(t, c.DoJSON(context.Background(), http.MethodDelete, "/me/drive/items/1", nil, &item, http.StatusNoContent))
		assert.Empty(t, item.ID)
	})

	t.Run("bad json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		}))
		defer server.Close()

		c := NewClient("token", fastOptions(server.URL))
		err := c.DoJSON(context.Background(), http.MethodGet, "/me/drive", nil, &Drive{}, http.StatusOK)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode GET /me/drive response")
	})
}

func TestHandleHTTPResponse(t *testing.T) {
	c := NewClient("token", Options{})

	for _, code := range []int{http.StatusOK, http.StatusCreated, http.StatusNoContent} {
		resp := &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(""))}
		assert.NoError(t, c.HandleHTTPResponse(resp, "op"))
	}

	req, _ := http.NewRequest(http.MethodGet, "https://graph.microsoft.com/v1.0/me/drive", nil)
	resp := &http.Response{
		StatusCode: http.StatusForbidden,
		Body:       io.NopCloser(strings.NewReader(`{"error":{"code":"accessDenied","message":"nope"}}`)),
		Request:    req,
	}
	err := c.HandleHTTPResponse(resp, "GetDrive")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccessDenied))
	assert.Contains(t, err.Error(), "GetDrive failed")
}

func TestReadResponseBodyAndContentType(t *testing.T) {
	c := NewClient("token", Options{})

	resp := &http.Response{
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   io.NopCloser(strings.NewReader("hello")),
	}
	data, err := c.ReadResponseBody(resp, "op")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", c.GetContentTypeFromResponse(resp))

	empty := &http.Response{Header: http.Header{}}
	assert.Equal(t, "application/octet-stream", c.GetContentTypeFromResponse(empty))
}

func TestListDriveItems(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("$skiptoken") == "p2" {
			_, _ = w.Write([]byte(`{"value":[{"id":"3","name":"c"}]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value":           []map[string]any{{"id": "1", "name": "a"}, {"id": "2", "name": "b"}},
			"@odata.nextLink": server.URL + "/me/drive/root/children?$skiptoken=p2",
		})
	}))
	defer server.Close()

	c := NewClient("token", fastOptions(server.URL))

	items, err := c.ListDriveItems(context.Background(), "/me/drive/root/children", true)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "c", items[2].Name)

	items, err = c.ListDriveItems(context.Background(), "/me/drive/root/children", false)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
