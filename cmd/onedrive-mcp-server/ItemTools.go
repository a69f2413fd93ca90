// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	units "github.com/docker/go-units"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gebl/onedrive-mcp-server/internal/graph"
	"github.com/gebl/onedrive-mcp-server/internal/items"
	"github.com/gebl/onedrive-mcp-server/internal/resources"
	"github.com/gebl/onedrive-mcp-server/internal/tools"
	"github.com/gebl/onedrive-mcp-server/internal/utils"
)

// copyPollInterval is how often copyItem checks the copy monitor when waiting.
var copyPollInterval = 2 * time.Second

var errMissingTarget = errors.New("itemId or path is required")

// itemView is the JSON shape tools return for a drive item.
type itemView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Path         string     `json:"path"`
	Kind         string     `json:"kind"`
	Size         int64      `json:"size"`
	HumanSize    string     `json:"humanSize"`
	MimeType     string     `json:"mimeType,omitempty"`
	ChildCount   *int       `json:"childCount,omitempty"`
	Description  string     `json:"description,omitempty"`
	DriveID      string     `json:"driveId,omitempty"`
	ParentID     string     `json:"parentId,omitempty"`
	WebURL       string     `json:"webUrl,omitempty"`
	ModifiedBy   string     `json:"modifiedBy,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

func newItemView(item graph.DriveItem) itemView {
	view := itemView{
		ID:           item.ID,
		Name:         item.Name,
		Path:         item.Path(),
		Kind:         "file",
		Size:         item.Size,
		HumanSize:    units.HumanSize(float64(item.Size)),
		Description:  item.Description,
		WebURL:       item.WebURL,
		ModifiedBy:   item.LastModifiedBy.DisplayName(),
		LastModified: item.LastModifiedDateTime,
	}
	switch {
	case item.IsFolder():
		view.Kind = "folder"
		count := item.Folder.ChildCount
		view.ChildCount = &count
	case item.RemoteItem != nil:
		view.Kind = "remote"
	}
	if item.File != nil {
		view.MimeType = item.File.MimeType
	}
	if item.ParentReference != nil {
		view.DriveID = item.ParentReference.DriveID
		view.ParentID = item.ParentReference.ID
	}
	return view
}

func newItemViews(list []graph.DriveItem) []itemView {
	views := make([]itemView, 0, len(list))
	for _, item := range list {
		views = append(views, newItemView(item))
	}
	return views
}

// registerItemTools registers file and folder management tools
func registerItemTools(r *toolRegistrar, a *app) {
	r.add(tools.ToolsetItems, mcp.NewTool("getItem",
		mcp.WithDescription(resources.MustGetToolDescription("getItem")),
		withDriveID(),
		mcp.WithString("itemId", mcp.Description("Item ID")),
		mcp.WithString("path", mcp.Description("Item path from the drive root, e.g. /Documents/report.docx")),
	), a.getItem)

	r.add(tools.ToolsetItems, mcp.NewTool("listChildren",
		mcp.WithDescription(resources.MustGetToolDescription("listChildren")),
		withDriveID(),
		mcp.WithString("itemId", mcp.Description("Folder ID")),
		mcp.WithString("path", mcp.Description("Folder path. Empty lists the drive root")),
		mcp.WithNumber("top", mcp.Description("Page size (1-999)")),
		mcp.WithString("orderBy", mcp.Description("Sort order, e.g. name or lastModifiedDateTime desc")),
		mcp.WithBoolean("all", mcp.Description("Follow paging until every child is listed")),
		mcp.WithString("pattern", mcp.Description("Glob on item names, e.g. *.pdf")),
	), a.listChildren)

	r.add(tools.ToolsetItems, mcp.NewTool("createFolder",
		mcp.WithDescription(resources.MustGetToolDescription("createFolder")),
		withDriveID(),
		mcp.WithString("name", mcp.Required(), mcp.Description("Folder name")),
		mcp.WithString("parentId", mcp.Description("Parent folder ID")),
		mcp.WithString("parentPath", mcp.Description("Parent folder path. Empty means the root")),
		mcp.WithString("description", mcp.Description("Folder description")),
		mcp.WithString("conflictBehavior", mcp.Description("fail, replace or rename"),
			mcp.Enum(items.ConflictFail, items.ConflictReplace, items.ConflictRename)),
	), a.createFolder)

	r.add(tools.ToolsetItems, mcp.NewTool("deleteItem",
		mcp.WithDescription(resources.MustGetToolDescription("deleteItem")),
		withDriveID(),
		mcp.WithString("itemId", mcp.Description("Item ID")),
		mcp.WithString("path", mcp.Description("Item path")),
	), a.deleteItem)

	r.add(tools.ToolsetItems, mcp.NewTool("renameItem",
		mcp.WithDescription(resources.MustGetToolDescription("renameItem")),
		withDriveID(),
		mcp.WithString("itemId", mcp.Description("Item ID")),
		mcp.WithString("path", mcp.Description("Item path")),
		mcp.WithString("newName", mcp.Required(), mcp.Description("New item name")),
		mcp.WithString("description", mcp.Description("New description")),
	), a.renameItem)

	r.add(tools.ToolsetItems, mcp.NewTool("moveItem",
		mcp.WithDescription(resources.MustGetToolDescription("moveItem")),
		withDriveID(),
		mcp.WithString("itemId", mcp.Description("Item ID")),
		mcp.WithString("path", mcp.Description("Item path")),
		mcp.WithString("destinationId", mcp.Description("Destination folder ID")),
		mcp.WithString("destinationPath", mcp.Description("Destination folder path")),
		mcp.WithString("newName", mcp.Description("Optional new name")),
	), a.moveItem)

	r.add(tools.ToolsetItems, mcp.NewTool("copyItem",
		mcp.WithDescription(resources.MustGetToolDescription("copyItem")),
		withDriveID(),
		mcp.WithString("itemId", mcp.Description("Item ID")),
		mcp.WithString("path", mcp.Description("Item path")),
		mcp.WithString("destinationDriveId", mcp.Description("Destination drive ID. Defaults to driveId")),
		mcp.WithString("destinationId", mcp.Description("Destination folder ID")),
		mcp.WithString("destinationPath", mcp.Description("Destination folder path")),
		mcp.WithString("newName", mcp.Description("Optional name for the copy")),
		mcp.WithBoolean("wait", mcp.Description("Poll the copy monitor until the copy finishes")),
		mcp.WithNumber("maxWaitSeconds", mcp.Description("Longest time to wait when wait is true (default 60)")),
	), a.copyItem)

	r.add(tools.ToolsetItems, mcp.NewTool("createLink",
		mcp.WithDescription(resources.MustGetToolDescription("createLink")),
		withDriveID(),
		mcp.WithString("itemId", mcp.Description("Item ID")),
		mcp.WithString("path", mcp.Description("Item path")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Link type"), mcp.Enum(items.LinkTypes...)),
		mcp.WithString("scope", mcp.Description("Link scope"), mcp.Enum(items.LinkScopes...)),
	), a.createLink)
}

// targetRef reads the item a tool acts on and refuses the implicit drive root.
func targetRef(req mcp.CallToolRequest) (items.ItemRef, error) {
	ref := itemRef(req)
	if ref.ItemID == "" && graph.NormalizePath(ref.Path) == "/" {
		return ref, errMissingTarget
	}
	return ref, nil
}

func (a *app) getItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("getItem")
	ref := itemRef(req)

	item, err := a.items.GetItem(ctx, ref)
	if err != nil {
		return logger.Fail(err, "ref", ref.String())
	}
	return logger.Succeed(newItemView(*item), "item_id", item.ID)
}

func (a *app) listChildren(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("listChildren")
	ref := itemRef(req)
	pattern := req.GetString("pattern", "")
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return utils.ToolResults.NewErrorf("list children", "invalid pattern %q", pattern), nil
	}

	children, err := a.items.GetChildren(ctx, ref, items.ChildrenOptions{
		Top:     req.GetInt("top", 0),
		OrderBy: req.GetString("orderBy", ""),
		All:     req.GetBool("all", false),
	})
	if err != nil {
		return logger.Fail(err, "ref", ref.String())
	}

	visible := a.filterItems(children)
	if pattern != "" {
		matched := visible[:0]
		for _, child := range visible {
			if ok, _ := doublestar.Match(pattern, child.Name); ok {
				matched = append(matched, child)
			}
		}
		visible = matched
	}
	return logger.Succeed(newItemViews(visible), "ref", ref.String(), "count", len(visible))
}

func (a *app) createFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("createFolder")
	name, err := utils.RequireString(req, "name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent := parentRef(req)

	folder, err := a.items.CreateFolder(ctx, parent, name, items.FolderOptions{
		Description:      req.GetString("description", ""),
		ConflictBehavior: req.GetString("conflictBehavior", ""),
	})
	if err != nil {
		return logger.Fail(err, "parent", parent.String(), "name", name)
	}
	return logger.Succeed(newItemView(*folder), "item_id", folder.ID)
}

func (a *app) deleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("deleteItem")
	ref, err := targetRef(req)
	if err != nil {
		return utils.ToolResults.NewError("delete item", err), nil
	}

	if err := a.items.Delete(ctx, ref); err != nil {
		return logger.Fail(err, "ref", ref.String())
	}
	return logger.Succeed(map[string]any{
		"success": true,
		"message": fmt.Sprintf("Deleted %s", ref.String()),
	})
}

func (a *app) renameItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("renameItem")
	newName, err := utils.RequireString(req, "newName")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ref, err := targetRef(req)
	if err != nil {
		return utils.ToolResults.NewError("rename item", err), nil
	}

	item, err := a.items.Rename(ctx, ref, newName, req.GetString("description", ""))
	if err != nil {
		return logger.Fail(err, "ref", ref.String(), "new_name", newName)
	}
	return logger.Succeed(newItemView(*item), "item_id", item.ID)
}

func (a *app) moveItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("moveItem")
	ref, err := targetRef(req)
	if err != nil {
		return utils.ToolResults.NewError("move item", err), nil
	}
	destination := destinationRef(req)

	item, err := a.items.Move(ctx, ref, destination, req.GetString("newName", ""))
	if err != nil {
		return logger.Fail(err, "ref", ref.String(), "destination", destination.String())
	}
	return logger.Succeed(newItemView(*item), "item_id", item.ID)
}

func (a *app) copyItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("copyItem")
	ref, err := targetRef(req)
	if err != nil {
		return utils.ToolResults.NewError("copy item", err), nil
	}
	destination := destinationRef(req)

	monitorURL, err := a.items.Copy(ctx, ref, destination, req.GetString("newName", ""))
	if err != nil {
		return logger.Fail(err, "ref", ref.String(), "destination", destination.String())
	}
	response := map[string]any{"monitorUrl": monitorURL, "status": "inProgress"}
	if !req.GetBool("wait", false) {
		return logger.Succeed(response)
	}

	maxWait := time.Duration(req.GetInt("maxWaitSeconds", 60)) * time.Second
	status, err := a.waitForCopy(ctx, req, monitorURL, maxWait)
	if err != nil {
		return logger.Fail(err, "monitor_url", monitorURL)
	}
	response["status"] = status.Status
	response["percentageComplete"] = status.PercentageComplete
	if status.ResourceID != "" {
		response["itemId"] = status.ResourceID
	}
	if status.Status == "failed" {
		return utils.ToolResults.NewErrorf("copy item", "OneDrive reported the copy of %s as failed", ref.String()), nil
	}
	return logger.Succeed(response, "status", status.Status)
}

// waitForCopy polls monitorURL until the copy finishes or maxWait passes. The
// last status seen is returned when time runs out.
func (a *app) waitForCopy(ctx context.Context, req mcp.CallToolRequest, monitorURL string, maxWait time.Duration) (*items.CopyStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()
	notifier := utils.NewProgressNotifier(ctx, req)

	ticker := time.NewTicker(copyPollInterval)
	defer ticker.Stop()

	var last *items.CopyStatus
	for {
		status, err := a.items.GetCopyStatus(ctx, monitorURL)
		switch {
		case err == nil:
			last = status
			notifier.SendNotification(int64(status.PercentageComplete), 100, "Copy "+status.Status)
			if status.Done() {
				return status, nil
			}
		case ctx.Err() == nil:
			return nil, err
		}

		select {
		case <-ctx.Done():
			if last == nil {
				return nil, fmt.Errorf("copy did not report progress within %s", maxWait)
			}
			return last, nil
		case <-ticker.C:
		}
	}
}

func (a *app) createLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("createLink")
	linkType, err := utils.RequireString(req, "type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ref, err := targetRef(req)
	if err != nil {
		return utils.ToolResults.NewError("create link", err), nil
	}

	permission, err := a.items.CreateLink(ctx, ref, linkType, req.GetString("scope", ""))
	if err != nil {
		return logger.Fail(err, "ref", ref.String(), "type", linkType)
	}
	return logger.Succeed(permission, "permission_id", permission.ID)
}
