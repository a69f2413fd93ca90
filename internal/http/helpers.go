// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// helpers.go - Shared HTTP utilities for automatic resource cleanup and safe request handling.
//
// HTTPRequestFunc is the transport abstraction used across the module: it takes a
// method, a URL, headers to add and a body to attach, executes the request and
// hands back the raw response. The Graph client, the OAuth token endpoints and the
// upload session driver all speak through it, which keeps them testable with a
// plain function value.
//
// Usage across modules:
// - internal/graph: authenticated Graph API requests
// - internal/auth: OAuth token exchange and refresh operations
// - internal/upload: range PUTs against pre-authenticated upload URLs

package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// HTTPRequestFunc represents a function that makes HTTP requests
type HTTPRequestFunc func(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error)

// HTTPResponseHandler represents a function that handles HTTP responses
type HTTPResponseHandler func(resp *http.Response, operation string) error

// HTTPBodyReader represents a function that reads response bodies
type HTTPBodyReader func(resp *http.Response, operation string) ([]byte, error)

// Doer is satisfied by *http.Client and by test doubles.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewRequestFunc adapts a Doer into an HTTPRequestFunc. A Content-Length header,
// when present, is also applied to the request itself so that bodies that are
// not *bytes.Reader or *strings.Reader are not sent chunked.
func NewRequestFunc(client Doer) HTTPRequestFunc {
	return func(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, err
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		if cl, ok := headers["Content-Length"]; ok {
			n, err := strconv.ParseInt(cl, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length header %q: %w", cl, err)
			}
			req.ContentLength = n
			if n == 0 {
				req.Body = http.NoBody
			}
		}
		return client.Do(req)
	}
}

// WithAutoCleanup executes a function with a response and ensures cleanup
func WithAutoCleanup(resp *http.Response, fn func(*http.Response) error) error {
	if resp == nil {
		return fmt.Errorf("nil response provided")
	}
	defer resp.Body.Close()
	return fn(resp)
}

// SafeRequest executes an HTTP request with automatic cleanup and error handling
func SafeRequest(
	ctx context.Context,
	makeRequest HTTPRequestFunc,
	handleResponse HTTPResponseHandler,
	method, url string,
	body io.Reader,
	headers map[string]string,
	operation string,
) error {
	resp, err := makeRequest(ctx, method, url, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if handleResponse != nil {
		return handleResponse(resp, operation)
	}

	return nil
}

// SafeRequestWithBody executes a request and returns the response body with automatic cleanup
func SafeRequestWithBody(
	ctx context.Context,
	makeRequest HTTPRequestFunc,
	handleResponse HTTPResponseHandler,
	readBody HTTPBodyReader,
	method, url string,
	body io.Reader,
	headers map[string]string,
	operation string,
) ([]byte, error) {
	resp, err := makeRequest(ctx, method, url, body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if handleResponse != nil {
		if err := handleResponse(resp, operation); err != nil {
			return nil, err
		}
	}

	if readBody != nil {
		return readBody(resp, operation)
	}

	return io.ReadAll(resp.Body)
}

// SafeRequestWithCustomHandler executes a request with a custom response handler and automatic cleanup
func SafeRequestWithCustomHandler(
	ctx context.Context,
	makeRequest HTTPRequestFunc,
	handler func(*http.Response) error,
	method, url string,
	body io.Reader,
	headers map[string]string,
) error {
	resp, err := makeRequest(ctx, method, url, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return handler(resp)
}
