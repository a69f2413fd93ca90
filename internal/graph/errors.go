// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
)

var (
	ErrReauthRequired   = errors.New("re-authentication required")
	ErrAccessDenied     = errors.New("access denied")
	ErrRetryLater       = errors.New("retry later")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrResourceNotFound = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// StatusError reports a Graph response outside the accepted status set.
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Code       string // Graph error code, e.g. itemNotFound
	Message    string // Graph error message
	kind       error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("Unexpected status code produced by '%s %s': %d", e.Method, e.Endpoint, e.StatusCode)
	if e.Code != "" || e.Message != "" {
		msg += fmt.Sprintf(" (%s: %s)", e.Code, e.Message)
	}
	return msg
}

// Unwrap returns the sentinel matching the Graph error code or HTTP status.
func (e *StatusError) Unwrap() error {
	if e.kind != nil {
		return e.kind
	}
	return ErrUnexpectedStatus
}

// Is lets every StatusError match ErrUnexpectedStatus in addition to its kind.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// ConflictError reports an item name that already exists in the target folder.
type ConflictError struct {
	Name string
	Err  error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("There is already a drive item named \"%s\" in this folder", e.Name)
}

func (e *ConflictError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConflict
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CheckStatus returns nil when resp carries one of the accepted statuses. Otherwise
// it consumes the body and returns a *StatusError classified against the sentinels.
func CheckStatus(method, endpoint string, resp *http.Response, accepted ...int) error {
	if slices.Contains(accepted, resp.StatusCode) {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var parsed graphErrorBody
	_ = json.Unmarshal(body, &parsed)

	return &StatusError{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Code:       parsed.Error.Code,
		Message:    parsed.Error.Message,
		kind:       classify(resp.StatusCode, parsed.Error.Code),
	}
}

// NewStatusError builds a classified StatusError for a failure reported outside
// a raw response, such as an SDK call.
func NewStatusError(method, endpoint string, status int, code, message string) *StatusError {
	return &StatusError{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: status,
		Code:       code,
		Message:    message,
		kind:       classify(status, code),
	}
}

func classify(status int, code string) error {
	switch code {
	case "accessDenied":
		return ErrAccessDenied
	case "activityLimitReached", "serviceNotAvailable":
		return ErrRetryLater
	case "itemNotFound":
		return ErrResourceNotFound
	case "nameAlreadyExists":
		return ErrConflict
	case "invalidRange", "invalidRequest", "malwareDetected", "notAllowed",
		"notSupported", "resourceModified", "resyncRequired":
		return ErrInvalidRequest
	case "quotaLimitReached":
		return ErrQuotaExceeded
	case "unauthenticated", "InvalidAuthenticationToken":
		return ErrReauthRequired
	}

	switch status {
	case http.StatusBadRequest, http.StatusMethodNotAllowed, http.StatusNotAcceptable,
		http.StatusLengthRequired, http.StatusPreconditionFailed,
		http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType,
		http.StatusRequestedRangeNotSatisfiable, http.StatusUnprocessableEntity:
		return ErrInvalidRequest
	case http.StatusUnauthorized:
		return ErrReauthRequired
	case http.StatusForbidden:
		return ErrAccessDenied
	case http.StatusGone, http.StatusNotFound:
		return ErrResourceNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusInsufficientStorage:
		return ErrQuotaExceeded
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusNotImplemented, http.StatusServiceUnavailable, 509:
		return ErrRetryLater
	}
	return nil
}
