// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package graph

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestCheckStatusAccepted(t *testing.T) {
	assert.NoError(t, CheckStatus("GET", "/me/drive", response(200, ""), 200))
	assert.NoError(t, CheckStatus("POST", "/x", response(201, ""), 200, 201))
}

func TestCheckStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"code wins over status", 400, `{"error":{"code":"itemNotFound"}}`, ErrResourceNotFound},
		{"name conflict", 409, `{"error":{"code":"nameAlreadyExists"}}`, ErrConflict},
		{"quota by code", 507, `{"error":{"code":"quotaLimitReached"}}`, ErrQuotaExceeded},
		{"throttled by code", 429, `{"error":{"code":"activityLimitReached"}}`, ErrRetryLater},
		{"invalid token", 401, `{"error":{"code":"InvalidAuthenticationToken"}}`, ErrReauthRequired},
		{"bad request", 400, ``, ErrInvalidRequest},
		{"unauthorized", 401, ``, ErrReauthRequired},
		{"forbidden", 403, ``, ErrAccessDenied},
		{"gone", 410, ``, ErrResourceNotFound},
		{"conflict", 409, ``, ErrConflict},
		{"insufficient storage", 507, ``, ErrQuotaExceeded},
		{"service unavailable", 503, `not json`, ErrRetryLater},
		{"bandwidth", 509, ``, ErrRetryLater},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStatus("GET", "/e", response(tt.status, tt.body), 200)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "expected %v, got %v", tt.want, err)
			assert.True(t, errors.Is(err, ErrUnexpectedStatus))
		})
	}
}

func TestCheckStatusUnknown(t *testing.T) {
	err := CheckStatus("PUT", "/e", response(418, ""), 200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.False(t, errors.Is(err, ErrInvalidRequest))
	assert.Equal(t, "Unexpected status code produced by 'PUT /e': 418", err.Error())
}

func TestConflictError(t *testing.T) {
	cause := CheckStatus("POST", "/children", response(409, `{"error":{"code":"nameAlreadyExists"}}`), 201)
	err := &ConflictError{Name: "Reports", Err: cause}

	assert.Equal(t, `There is already a drive item named "Reports" in this folder`, err.Error())
	assert.True(t, errors.Is(err, ErrConflict))
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))

	bare := &ConflictError{Name: "x"}
	assert.True(t, errors.Is(bare, ErrConflict))
}

func TestNewStatusError(t *testing.T) {
	err := NewStatusError("GET", "/me/drive", 403, "accessDenied", "nope")
	assert.True(t, errors.Is(err, ErrAccessDenied))
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Equal(t, "Unexpected status code produced by 'GET /me/drive': 403 (accessDenied: nope)", err.Error())
}
