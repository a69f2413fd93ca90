// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPRequestFunc struct {
	responses []mockHTTPResponse
	callCount int
	requests  []mockRequestCall
}

type mockRequestCall struct {
	method  string
	url     string
	body    string
	headers map[string]string
}

type mockHTTPResponse struct {
	resp *http.Response
	err  error
}

func (m *mockHTTPRequestFunc) call(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	bodyStr := ""
	if body != nil {
		bodyBytes, _ := io.ReadAll(body)
		bodyStr = string(bodyBytes)
	}

	m.requests = append(m.requests, mockRequestCall{
		method:  method,
		url:     url,
		body:    bodyStr,
		headers: headers,
	})

	if m.callCount >= len(m.responses) {
		return nil, fmt.Errorf("unexpected request call %d", m.callCount)
	}

	response := m.responses[m.callCount]
	m.callCount++
	return response.resp, response.err
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func newMockResponse(statusCode int, body string, contentType string) *http.Response {
	resp := &http.Response{
		StatusCode: statusCode,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return resp
}

func TestNewRequestFunc(t *testing.T) {
	var gotMethod, gotRange, gotType string
	var gotLength int64
	var gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotRange = r.Header.Get("Content-Range")
		gotType = r.Header.Get("Content-Type")
		gotLength = r.ContentLength
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	do := NewRequestFunc(server.Client())

	t.Run("applies headers and content length", func(t *testing.T) {
		// io.MultiReader hides the length from net/http, so Content-Length must come from the header
		body := io.MultiReader(strings.NewReader("hello"))
		resp, err := do(context.Background(), http.MethodPut, server.URL, body, map[string]string{
			"Content-Type":   "text/plain",
			"Content-Length": "5",
			"Content-Range":  "bytes 0-4/10",
		})
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, http.MethodPut, gotMethod)
		assert.Equal(t, "bytes 0-4/10", gotRange)
		assert.Equal(t, "text/plain", gotType)
		assert.Equal(t, int64(5), gotLength)
		assert.Equal(t, "hello", gotBody)
	})

	t.Run("zero content length sends empty body", func(t *testing.T) {
		resp, err := do(context.Background(), http.MethodPut, server.URL, strings.NewReader(""), map[string]string{
			"Content-Length": "0",
			"Content-Range":  "bytes 0-0/0",
		})
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, int64(0), gotLength)
		assert.Empty(t, gotBody)
	})

	t.Run("rejects malformed content length", func(t *testing.T) {
		_, err := do(context.Background(), http.MethodPut, server.URL, nil, map[string]string{"Content-Length": "ten"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid Content-Length header")
	})

	t.Run("invalid method", func(t *testing.T) {
		_, err := do(context.Background(), "BAD\nMETHOD", server.URL, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid method")
	})
}

func TestWithAutoCleanup(t *testing.T) {
	t.Run("closes body after handler", func(t *testing.T) {
		body := &trackingBody{Reader: strings.NewReader("data")}
		resp := &http.Response{StatusCode: 200, Body: body}

		err := WithAutoCleanup(resp, func(r *http.Response) error {
			assert.False(t, body.closed)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, body.closed)
	})

	t.Run("closes body when handler fails", func(t *testing.T) {
		body := &trackingBody{Reader: strings.NewReader("data")}
		resp := &http.Response{StatusCode: 500, Body: body}

		err := WithAutoCleanup(resp, func(r *http.Response) error {
			return errors.New("handler failed")
		})
		assert.EqualError(t, err, "handler failed")
		assert.True(t, body.closed)
	})

	t.Run("nil response", func(t *testing.T) {
		err := WithAutoCleanup(nil, func(r *http.Response) error { return nil })
		assert.EqualError(t, err, "nil response provided")
	})
}

func TestSafeRequest(t *testing.T) {
	mock := &mockHTTPRequestFunc{responses: []mockHTTPResponse{
		{resp: newMockResponse(204, "", "")},
	}}

	var handled int
	err := SafeRequest(context.Background(), mock.call, func(resp *http.Response, operation string) error {
		handled = resp.StatusCode
		assert.Equal(t, "delete item", operation)
		return nil
	}, http.MethodDelete, "https://graph.example/items/1", nil, nil, "delete item")

	require.NoError(t, err)
	assert.Equal(t, 204, handled)
	require.Len(t, mock.requests, 1)
	assert.Equal(t, http.MethodDelete, mock.requests[0].method)
}

func TestSafeRequestWithBody(t *testing.T) {
	tests := []struct {
		name        string
		response    mockHTTPResponse
		handler     HTTPResponseHandler
		reader      HTTPBodyReader
		expected    string
		expectedErr string
	}{
		{
			name:     "reads body directly",
			response: mockHTTPResponse{resp: newMockResponse(200, `{"id":"1"}`, "application/json")},
			expected: `{"id":"1"}`,
		},
		{
			name:     "custom reader",
			response: mockHTTPResponse{resp: newMockResponse(200, "ignored", "")},
			reader: func(resp *http.Response, operation string) ([]byte, error) {
				return []byte("custom"), nil
			},
			expected: "custom",
		},
		{
			name:     "handler rejects status",
			response: mockHTTPResponse{resp: newMockResponse(404, "missing", "")},
			handler: func(resp *http.Response, operation string) error {
				return fmt.Errorf("%s failed: HTTP %d", operation, resp.StatusCode)
			},
			expectedErr: "get item failed: HTTP 404",
		},
		{
			name:        "transport error",
			response:    mockHTTPResponse{err: errors.New("connection refused")},
			expectedErr: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockHTTPRequestFunc{responses: []mockHTTPResponse{tt.response}}
			data, err := SafeRequestWithBody(context.Background(), mock.call, tt.handler, tt.reader,
				http.MethodGet, "https://graph.example/items/1", nil, nil, "get item")

			if tt.expectedErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(data))
		})
	}
}

func TestSafeRequestWithCustomHandler(t *testing.T) {
	mock := &mockHTTPRequestFunc{responses: []mockHTTPResponse{
		{resp: newMockResponse(202, "", "")},
	}}
	mock.responses[0].resp.Header.Set("Location", "https://monitor.example/op/1")

	var location string
	err := SafeRequestWithCustomHandler(context.Background(), mock.call, func(resp *http.Response) error {
		location = resp.Header.Get("Location")
		return nil
	}, http.MethodPost, "https://graph.example/items/1/copy", strings.NewReader(`{}`), map[string]string{"Content-Type": "application/json"})

	require.NoError(t, err)
	assert.Equal(t, "https://monitor.example/op/1", location)
	assert.Equal(t, `{}`, mock.requests[0].body)
	assert.Equal(t, "application/json", mock.requests[0].headers["Content-Type"])
}
