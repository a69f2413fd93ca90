// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// drives.go - Drive level operations for the Microsoft Graph API client.
//
// Drive metadata is fetched through the Graph SDK, including nextLink paging for
// /me/drives. Item lookups that only need the REST shape (by ID, by path, special
// folders, shared and recent items) go through the client's JSON helper.
//
// Usage Example:
//   client := drives.NewDriveClient(graphClient)
//   drive, err := client.GetMyDrive(ctx)
//   if err != nil {
//       logging.DriveLogger.Error("Failed to get drive", "error", err)
//   }

package drives

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	abstractions "github.com/microsoft/kiota-abstractions-go"
	msgraphmodels "github.com/microsoftgraph/msgraph-sdk-go/models"

	"github.com/gebl/onedrive-mcp-server/internal/graph"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

// SpecialFolders lists the names accepted by GetSpecialFolder.
var SpecialFolders = []string{"documents", "photos", "cameraroll", "approot", "music"}

// DriveClient provides drive operations for the Graph API client
type DriveClient struct {
	*graph.Client
}

// NewDriveClient creates a new drive client
func NewDriveClient(client *graph.Client) *DriveClient {
	return &DriveClient{Client: client}
}

// DriveBase returns the endpoint prefix for a drive; an empty ID means the
// signed-in user's drive.
func DriveBase(driveID string) (string, error) {
	if driveID == "" {
		return "/me/drive", nil
	}
	if _, err := graph.SanitizeItemID(driveID, "drive ID"); err != nil {
		return "", err
	}
	return "/drives/" + driveID, nil
}

// ListDrives lists every drive available to the signed-in user, following nextLink pages.
func (c *DriveClient) ListDrives(ctx context.Context) ([]graph.Drive, error) {
	logging.DriveLogger.Info("Listing drives using Microsoft Graph SDK with paging")

	result, err := callSDK(ctx, c, "GET /me/drives", func() (msgraphmodels.DriveCollectionResponseable, error) {
		return c.GraphClient.Me().Drives().Get(ctx, nil)
	})
	if err != nil {
		return nil, err
	}

	drives := []graph.Drive{}
	if result == nil {
		return drives, nil
	}
	drives = append(drives, convertDrives(result.GetValue())...)

	nextLink := result.GetOdataNextLink()
	for nextLink != nil && *nextLink != "" {
		logging.DriveLogger.Debug("Fetching next page of drives", "next_link", *nextLink)
		requestInfo := abstractions.NewRequestInformation()
		requestInfo.UrlTemplate = *nextLink
		requestInfo.Method = abstractions.GET
		resp, err := c.GraphClient.GetAdapter().Send(ctx, requestInfo, msgraphmodels.CreateDriveCollectionResponseFromDiscriminatorValue, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch next page of drives: %w", sdkError("GET", *nextLink, err))
		}
		page, ok := resp.(msgraphmodels.DriveCollectionResponseable)
		if !ok {
			return nil, fmt.Errorf("unexpected drive page type %T", resp)
		}
		drives = append(drives, convertDrives(page.GetValue())...)
		nextLink = page.GetOdataNextLink()
	}

	logging.DriveLogger.Info("Found drives", "count", len(drives))
	return drives, nil
}

// GetMyDrive returns the signed-in user's OneDrive.
func (c *DriveClient) GetMyDrive(ctx context.Context) (*graph.Drive, error) {
	return c.getDrive(ctx, "GET /me/drive", func() (msgraphmodels.Driveable, error) {
		return c.GraphClient.Me().Drive().Get(ctx, nil)
	})
}

// GetDriveByID returns a drive by its ID.
func (c *DriveClient) GetDriveByID(ctx context.Context, driveID string) (*graph.Drive, error) {
	if _, err := graph.SanitizeItemID(driveID, "drive ID"); err != nil {
		return nil, err
	}
	return c.getDrive(ctx, "GET /drives/"+driveID, func() (msgraphmodels.Driveable, error) {
		return c.GraphClient.Drives().ByDriveId(driveID).Get(ctx, nil)
	})
}

// GetDriveByUser returns a user's OneDrive.
func (c *DriveClient) GetDriveByUser(ctx context.Context, userID string) (*graph.Drive, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	return c.getDrive(ctx, "GET /users/"+userID+"/drive", func() (msgraphmodels.Driveable, error) {
		return c.GraphClient.Users().ByUserId(userID).Drive().Get(ctx, nil)
	})
}

// GetDriveByGroup returns a group's document library.
func (c *DriveClient) GetDriveByGroup(ctx context.Context, groupID string) (*graph.Drive, error) {
	if _, err := graph.SanitizeItemID(groupID, "group ID"); err != nil {
		return nil, err
	}
	return c.getDrive(ctx, "GET /groups/"+groupID+"/drive", func() (msgraphmodels.Driveable, error) {
		return c.GraphClient.Groups().ByGroupId(groupID).Drive().Get(ctx, nil)
	})
}

// GetDriveBySite returns a SharePoint site's default document library.
func (c *DriveClient) GetDriveBySite(ctx context.Context, siteID string) (*graph.Drive, error) {
	if strings.TrimSpace(siteID) == "" {
		return nil, fmt.Errorf("site ID cannot be empty")
	}
	return c.getDrive(ctx, "GET /sites/"+siteID+"/drive", func() (msgraphmodels.Driveable, error) {
		return c.GraphClient.Sites().BySiteId(siteID).Drive().Get(ctx, nil)
	})
}

func (c *DriveClient) getDrive(ctx context.Context, operation string, call func() (msgraphmodels.Driveable, error)) (*graph.Drive, error) {
	logging.DriveLogger.Debug("Fetching drive", "operation", operation)
	result, err := callSDK(ctx, c, operation, call)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%s returned no drive", operation)
	}
	drive := ConvertDrive(result)
	logging.DriveLogger.Debug("Drive fetched", "drive_id", drive.ID, "drive_type", drive.DriveType)
	return &drive, nil
}

// GetItemByID returns an item by ID. An empty driveID means the signed-in user's drive.
func (c *DriveClient) GetItemByID(ctx context.Context, driveID, itemID string) (*graph.DriveItem, error) {
	base, err := DriveBase(driveID)
	if err != nil {
		return nil, err
	}
	if _, err := graph.SanitizeItemID(itemID, "item ID"); err != nil {
		return nil, err
	}
	var item graph.DriveItem
	if err := c.DoJSON(ctx, http.MethodGet, base+"/items/"+itemID, nil, &item, http.StatusOK); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItemByPath returns the item at a path relative to the drive root.
func (c *DriveClient) GetItemByPath(ctx context.Context, driveID, path string) (*graph.DriveItem, error) {
	base, err := DriveBase(driveID)
	if err != nil {
		return nil, err
	}
	escaped := graph.EscapePath(path)
	if escaped == "/" {
		return c.GetRoot(ctx, driveID)
	}
	var item graph.DriveItem
	if err := c.DoJSON(ctx, http.MethodGet, base+"/root:"+escaped, nil, &item, http.StatusOK); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetRoot returns the root folder of a drive.
func (c *DriveClient) GetRoot(ctx context.Context, driveID string) (*graph.DriveItem, error) {
	base, err := DriveBase(driveID)
	if err != nil {
		return nil, err
	}
	var item graph.DriveItem
	if err := c.DoJSON(ctx, http.MethodGet, base+"/root", nil, &item, http.StatusOK); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetSpecialFolder returns one of the well-known folders listed in SpecialFolders.
func (c *DriveClient) GetSpecialFolder(ctx context.Context, name string) (*graph.DriveItem, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !slices.Contains(SpecialFolders, name) {
		return nil, fmt.Errorf("invalid special folder %q: must be one of %s", name, strings.Join(SpecialFolders, ", "))
	}
	var item graph.DriveItem
	if err := c.DoJSON(ctx, http.MethodGet, "/me/drive/special/"+name, nil, &item, http.StatusOK); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetShared lists items other users have shared with the signed-in user.
func (c *DriveClient) GetShared(ctx context.Context) ([]graph.DriveItem, error) {
	items, err := c.ListDriveItems(ctx, "/me/drive/sharedWithMe", true)
	if err != nil {
		return nil, err
	}
	logging.DriveLogger.Debug("Shared items listed", "count", len(items))
	return items, nil
}

// GetRecent lists the signed-in user's recently used items.
func (c *DriveClient) GetRecent(ctx context.Context) ([]graph.DriveItem, error) {
	items, err := c.ListDriveItems(ctx, "/me/drive/recent", true)
	if err != nil {
		return nil, err
	}
	logging.DriveLogger.Debug("Recent items listed", "count", len(items))
	return items, nil
}

// CreateSharedFolder adds a folder shared by another user to the root of a drive.
func (c *DriveClient) CreateSharedFolder(ctx context.Context, driveID, name string, remote graph.ItemReference) (*graph.DriveItem, error) {
	base, err := DriveBase(driveID)
	if err != nil {
		return nil, err
	}
	if err := graph.ValidateItemName(name); err != nil {
		return nil, err
	}
	if remote.ID == "" || remote.DriveID == "" {
		return nil, fmt.Errorf("remote item reference needs both id and driveId")
	}

	body := map[string]any{
		"name": name,
		"remoteItem": map[string]any{
			"id":              remote.ID,
			"parentReference": map[string]any{"driveId": remote.DriveID},
		},
	}
	var item graph.DriveItem
	if err := c.DoJSON(ctx, http.MethodPost, base+"/root/children", body, &item, http.StatusCreated); err != nil {
		if errors.Is(err, graph.ErrConflict) {
			return nil, &graph.ConflictError{Name: name, Err: err}
		}
		return nil, err
	}
	logging.DriveLogger.Info("Shared folder added", "name", name, "item_id", item.ID)
	return &item, nil
}

// ResolvePath returns the drive path of an item. It lets the authorization
// layer check tool calls that address items by ID.
func (c *DriveClient) ResolvePath(ctx context.Context, driveID, itemID string) (string, error) {
	item, err := c.GetItemByID(ctx, driveID, itemID)
	if err != nil {
		return "", err
	}
	return item.Path(), nil
}
