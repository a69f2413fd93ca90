// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package drives

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	msgraphmodels "github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"

	"github.com/gebl/onedrive-mcp-server/internal/graph"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

// callSDK runs an SDK request, refreshing an expired token first and once more
// when Graph answers 401. operation is "METHOD endpoint" and names the call in errors.
func callSDK[T any](ctx context.Context, c *DriveClient, operation string, call func() (T, error)) (T, error) {
	var zero T
	canRefresh := c.TokenManager != nil && c.OAuthConfig != nil

	if canRefresh && c.TokenManager.IsExpired() {
		logging.DriveLogger.Debug("Token is expired, attempting refresh before SDK call")
		if err := c.RefreshTokenIfNeeded(ctx); err != nil {
			return zero, fmt.Errorf("token expired and refresh failed: %w", err)
		}
	}

	result, err := call()
	if err != nil && canRefresh && statusOf(err) == http.StatusUnauthorized {
		logging.DriveLogger.Debug("Auth error detected in SDK call, attempting token refresh", "operation", operation)
		if refreshErr := c.RefreshToken(ctx); refreshErr != nil {
			return zero, fmt.Errorf("authentication failed and token refresh failed: %w", refreshErr)
		}
		result, err = call()
	}
	if err != nil {
		method, endpoint, _ := strings.Cut(operation, " ")
		return zero, sdkError(method, endpoint, err)
	}
	return result, nil
}

func statusOf(err error) int {
	var odataErr *odataerrors.ODataError
	if errors.As(err, &odataErr) {
		return odataErr.GetStatusCode()
	}
	return 0
}

// sdkError maps an SDK OData error onto the graph error sentinels. Other errors
// are returned unchanged.
func sdkError(method, endpoint string, err error) error {
	var odataErr *odataerrors.ODataError
	if !errors.As(err, &odataErr) {
		return err
	}
	code, message := "", ""
	if main := odataErr.GetErrorEscaped(); main != nil {
		code = deref(main.GetCode())
		message = deref(main.GetMessage())
	}
	logging.DriveLogger.Debug("Graph SDK request failed",
		"method", method,
		"endpoint", endpoint,
		"status", odataErr.GetStatusCode(),
		"code", code)
	return graph.NewStatusError(method, endpoint, odataErr.GetStatusCode(), code, message)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func convertDrives(values []msgraphmodels.Driveable) []graph.Drive {
	drives := make([]graph.Drive, 0, len(values))
	for _, d := range values {
		if d != nil {
			drives = append(drives, ConvertDrive(d))
		}
	}
	return drives
}

// ConvertDrive copies an SDK drive into the REST model.
func ConvertDrive(d msgraphmodels.Driveable) graph.Drive {
	drive := graph.Drive{
		ID:                   deref(d.GetId()),
		Name:                 deref(d.GetName()),
		Description:          deref(d.GetDescription()),
		DriveType:            deref(d.GetDriveType()),
		WebURL:               deref(d.GetWebUrl()),
		CreatedDateTime:      d.GetCreatedDateTime(),
		LastModifiedDateTime: d.GetLastModifiedDateTime(),
		Owner:                convertIdentitySet(d.GetOwner()),
	}
	if q := d.GetQuota(); q != nil {
		drive.Quota = &graph.Quota{
			Total:     derefInt(q.GetTotal()),
			Used:      derefInt(q.GetUsed()),
			Remaining: derefInt(q.GetRemaining()),
			Deleted:   derefInt(q.GetDeleted()),
			State:     deref(q.GetState()),
		}
	}
	return drive
}

func convertIdentitySet(s msgraphmodels.IdentitySetable) *graph.IdentitySet {
	if s == nil {
		return nil
	}
	set := &graph.IdentitySet{
		User:        convertIdentity(s.GetUser()),
		Application: convertIdentity(s.GetApplication()),
		Device:      convertIdentity(s.GetDevice()),
	}
	if set.User == nil && set.Application == nil && set.Device == nil {
		return nil
	}
	return set
}

func convertIdentity(i msgraphmodels.Identityable) *graph.Identity {
	if i == nil {
		return nil
	}
	return &graph.Identity{ID: deref(i.GetId()), DisplayName: deref(i.GetDisplayName())}
}
