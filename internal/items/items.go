// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// items.go - Item level operations for the Microsoft Graph API client.
//
// Every operation takes an ItemRef, so items can be addressed by ID or by path
// on any drive. Small files are uploaded with a single PUT; larger content goes
// through an upload session whose ranges are sent by upload.Driver over a
// transport without credentials or retries.
//
// Usage Example:
//   client := items.NewItemClient(graphClient)
//   children, err := client.GetChildren(ctx, items.ItemRef{Path: "/Documents"}, items.ChildrenOptions{All: true})
//   if err != nil {
//       logging.ItemLogger.Error("Failed to list children", "error", err)
//   }

package items

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	units "github.com/docker/go-units"

	"github.com/gebl/onedrive-mcp-server/internal/graph"
	httputils "github.com/gebl/onedrive-mcp-server/internal/http"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
	"github.com/gebl/onedrive-mcp-server/internal/upload"
)

// ItemClient provides item operations for the Graph API client
type ItemClient struct {
	*graph.Client

	// UploadTransport sends upload session ranges and polls copy monitors.
	// Both URLs are pre-authenticated.
	UploadTransport httputils.HTTPRequestFunc
}

// NewItemClient creates a new item client
func NewItemClient(client *graph.Client) *ItemClient {
	return &ItemClient{Client: client, UploadTransport: graph.NewUploadTransport()}
}

// GetItem returns the metadata of an item.
func (c *ItemClient) GetItem(ctx context.Context, ref ItemRef) (*graph.DriveItem, error) {
	endpoint, err := ref.Endpoint("")
	if err != nil {
		return nil, err
	}
	var item graph.DriveItem
	if err := c.DoJSON(ctx, http.MethodGet, endpoint, nil, &item, http.StatusOK); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetChildren lists the children of a folder.
func (c *ItemClient) GetChildren(ctx context.Context, ref ItemRef, opts ChildrenOptions) ([]graph.DriveItem, error) {
	endpoint, err := ref.Endpoint("children")
	if err != nil {
		return nil, err
	}
	params, err := ChildrenParams(opts)
	if err != nil {
		return nil, err
	}

	logging.ItemLogger.Debug("Listing children", "ref", ref.String(), "top", opts.Top, "order_by", opts.OrderBy, "all", opts.All)
	children, err := c.ListDriveItems(ctx, params.Apply(endpoint), opts.All)
	if err != nil {
		return nil, err
	}
	logging.ItemLogger.Info("Listed children", "ref", ref.String(), "count", len(children))
	return children, nil
}

// CreateFolder creates a folder named name inside the folder ref.
func (c *ItemClient) CreateFolder(ctx context.Context, ref ItemRef, name string, opts FolderOptions) (*graph.DriveItem, error) {
	if err := graph.ValidateItemName(name); err != nil {
		return nil, err
	}
	endpoint, err := ref.Endpoint("children")
	if err != nil {
		return nil, err
	}
	params, err := FolderParams(name, opts)
	if err != nil {
		return nil, err
	}

	var item graph.DriveItem
	if err := c.DoJSON(ctx, http.MethodPost, endpoint, params.Body, &item, http.StatusOK, http.StatusCreated); err != nil {
		return nil, conflict(name, err)
	}
	logging.ItemLogger.Info("Folder created", "parent", ref.String(), "name", item.Name, "item_id", item.ID)
	return &item, nil
}

// Delete moves an item to the recycle bin.
func (c *ItemClient) Delete(ctx context.Context, ref ItemRef) error {
	endpoint, err := ref.Endpoint("")
	if err != nil {
		return err
	}
	if err := c.DoJSON(ctx, http.MethodDelete, endpoint, nil, nil, http.StatusNoContent); err != nil {
		return err
	}
	logging.ItemLogger.Info("Item deleted", "ref", ref.String())
	return nil
}

// Upload creates or replaces a file named name inside the folder ref with a single PUT.
// OneDrive limits this to small files; use UploadLarge above a few megabytes.
func (c *ItemClient) Upload(ctx context.Context, ref ItemRef, name string, content io.Reader, opts UploadOptions) (*graph.DriveItem, error) {
	endpoint, err := ref.ChildEndpoint(name, "content")
	if err != nil {
		return nil, err
	}
	params, err := UploadParams(opts)
	if err != nil {
		return nil, err
	}
	if content == nil {
		content = bytes.NewReader(nil)
	}

	resp, err := c.MakeAuthenticatedRequest(ctx, http.MethodPut, c.URL(params.Apply(endpoint)), content, params.Headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := graph.CheckStatus(http.MethodPut, endpoint, resp, http.StatusOK, http.StatusCreated); err != nil {
		return nil, conflict(name, err)
	}
	var item graph.DriveItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	logging.ItemLogger.Info("File uploaded",
		"parent", ref.String(),
		"name", item.Name,
		"item_id", item.ID,
		"size", units.HumanSize(float64(item.Size)))
	return &item, nil
}

// StartUpload creates an upload session for a file named name inside the folder ref.
func (c *ItemClient) StartUpload(ctx context.Context, ref ItemRef, name string, opts SessionOptions) (*upload.Session, error) {
	endpoint, err := ref.ChildEndpoint(name, "createUploadSession")
	if err != nil {
		return nil, err
	}
	params, err := SessionParams(name, opts)
	if err != nil {
		return nil, err
	}

	var session upload.Session
	if err := c.DoJSON(ctx, http.MethodPost, endpoint, params.Body, &session, http.StatusOK); err != nil {
		return nil, conflict(name, err)
	}
	logging.ItemLogger.Debug("Upload session created",
		"parent", ref.String(),
		"name", name,
		"expires", session.ExpirationDateTime)
	return &session, nil
}

// UploadLarge creates an upload session and sends source through it.
func (c *ItemClient) UploadLarge(ctx context.Context, ref ItemRef, name string, source upload.ContentSource, sessionOpts SessionOptions, uploadOpts upload.Options, progress upload.ProgressFunc) (*graph.DriveItem, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: content source is nil", upload.ErrInvalidConfiguration)
	}
	session, err := c.StartUpload(ctx, ref, name, sessionOpts)
	if err != nil {
		return nil, err
	}

	driver := upload.NewDriver(c.UploadTransport)
	driver.Progress = progress
	item, err := driver.Complete(ctx, session, source, uploadOpts)
	if err != nil {
		return nil, fmt.Errorf("upload of %s failed: %w", name, err)
	}
	return item, nil
}

// Download returns the content of a file. Graph answers with a redirect to a
// pre-authenticated URL, which the transport follows. The caller closes the body.
func (c *ItemClient) Download(ctx context.Context, ref ItemRef) (io.ReadCloser, string, error) {
	endpoint, err := ref.Endpoint("content")
	if err != nil {
		return nil, "", err
	}
	resp, err := c.MakeAuthenticatedRequest(ctx, http.MethodGet, c.URL(endpoint), nil, nil)
	if err != nil {
		return nil, "", err
	}
	if err := graph.CheckStatus(http.MethodGet, endpoint, resp, http.StatusOK); err != nil {
		resp.Body.Close()
		return nil, "", err
	}
	contentType := c.GetContentTypeFromResponse(resp)
	logging.ItemLogger.Debug("Download started", "ref", ref.String(), "content_type", contentType, "length", resp.ContentLength)
	return resp.Body, contentType, nil
}

// Rename changes the name, and optionally the description, of an item.
func (c *ItemClient) Rename(ctx context.Context, ref ItemRef, name, description string) (*graph.DriveItem, error) {
	if err := graph.ValidateItemName(name); err != nil {
		return nil, err
	}
	endpoint, err := ref.Endpoint("")
	if err != nil {
		return nil, err
	}
	var item graph.DriveItem
	if err := c.DoJSON(ctx, http.MethodPatch, endpoint, RenameParams(name, description).Body, &item, http.StatusOK); err != nil {
		return nil, conflict(name, err)
	}
	logging.ItemLogger.Info("Item renamed", "ref", ref.String(), "name", item.Name)
	return &item, nil
}

// Move places an item under destination, optionally renaming it.
func (c *ItemClient) Move(ctx context.Context, ref, destination ItemRef, newName string) (*graph.DriveItem, error) {
	if newName != "" {
		if err := graph.ValidateItemName(newName); err != nil {
			return nil, err
		}
	}
	endpoint, err := ref.Endpoint("")
	if err != nil {
		return nil, err
	}
	params, err := MoveParams(destination, newName)
	if err != nil {
		return nil, err
	}
	var item graph.DriveItem
	if err := c.DoJSON(ctx, http.MethodPatch, endpoint, params.Body, &item, http.StatusOK); err != nil {
		name := newName
		if name == "" {
			name = ref.String()
		}
		return nil, conflict(name, err)
	}
	logging.ItemLogger.Info("Item moved", "ref", ref.String(), "destination", destination.String())
	return &item, nil
}

// Copy starts an asynchronous copy of an item under destination and returns the
// monitor URL to poll with GetCopyStatus.
func (c *ItemClient) Copy(ctx context.Context, ref, destination ItemRef, newName string) (string, error) {
	if newName != "" {
		if err := graph.ValidateItemName(newName); err != nil {
			return "", err
		}
	}
	endpoint, err := ref.Endpoint("copy")
	if err != nil {
		return "", err
	}
	params, err := CopyParams(destination, newName)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(params.Body)
	if err != nil {
		return "", fmt.Errorf("failed to encode copy request: %w", err)
	}

	resp, err := c.MakeAuthenticatedRequest(ctx, http.MethodPost, c.URL(endpoint), bytes.NewReader(data),
		map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := graph.CheckStatus(http.MethodPost, endpoint, resp, http.StatusAccepted); err != nil {
		return "", err
	}
	monitor := resp.Header.Get("Location")
	if monitor == "" {
		return "", fmt.Errorf("copy of %s was accepted without a monitor URL", ref.String())
	}
	logging.ItemLogger.Info("Copy started", "ref", ref.String(), "destination", destination.String())
	return monitor, nil
}

// CopyStatus is the state reported by a copy monitor URL.
type CopyStatus struct {
	Status             string  `json:"status"` // notStarted, inProgress, completed, failed
	PercentageComplete float64 `json:"percentageComplete"`
	ResourceID         string  `json:"resourceId,omitempty"`
}

// Done reports whether the copy has finished, successfully or not.
func (s CopyStatus) Done() bool {
	return s.Status == "completed" || s.Status == "failed"
}

// GetCopyStatus polls a copy monitor URL. Monitor URLs need no credentials.
func (c *ItemClient) GetCopyStatus(ctx context.Context, monitorURL string) (*CopyStatus, error) {
	if !strings.HasPrefix(monitorURL, "https://") && !strings.HasPrefix(monitorURL, "http://") {
		return nil, fmt.Errorf("invalid monitor URL %q", monitorURL)
	}
	resp, err := c.UploadTransport(ctx, http.MethodGet, monitorURL, nil, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := graph.CheckStatus(http.MethodGet, monitorURL, resp, http.StatusOK, http.StatusAccepted); err != nil {
		return nil, err
	}
	var status CopyStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode copy status: %w", err)
	}
	return &status, nil
}

// CreateLink creates a sharing link for an item.
func (c *ItemClient) CreateLink(ctx context.Context, ref ItemRef, linkType, scope string) (*graph.Permission, error) {
	endpoint, err := ref.Endpoint("createLink")
	if err != nil {
		return nil, err
	}
	params, err := LinkParams(linkType, scope)
	if err != nil {
		return nil, err
	}
	var permission graph.Permission
	if err := c.DoJSON(ctx, http.MethodPost, endpoint, params.Body, &permission, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	logging.ItemLogger.Info("Sharing link created", "ref", ref.String(), "type", linkType, "scope", scope)
	return &permission, nil
}

func conflict(name string, err error) error {
	if errors.Is(err, graph.ErrConflict) {
		return &graph.ConflictError{Name: name, Err: err}
	}
	return err
}
