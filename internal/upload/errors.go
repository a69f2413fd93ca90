// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration reports caller misuse detected before any request is sent.
	ErrInvalidConfiguration = errors.New("invalid upload configuration")

	// ErrIncompleteUpload reports that every range was accepted but no item was created.
	ErrIncompleteUpload = errors.New("OneDrive did not create a drive item for the uploaded file")

	// ErrUnexpectedStatus is matched by every *UnexpectedStatusError.
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// UnexpectedStatusError reports a range PUT answered with a status outside the protocol.
type UnexpectedStatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("Unexpected status code produced by '%s %s': %d", e.Method, e.URL, e.StatusCode)
}

func (e *UnexpectedStatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
