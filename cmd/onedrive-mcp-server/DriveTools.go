// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package main

import (
	"context"
	"strings"

	units "github.com/docker/go-units"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gebl/onedrive-mcp-server/internal/drives"
	"github.com/gebl/onedrive-mcp-server/internal/graph"
	"github.com/gebl/onedrive-mcp-server/internal/resources"
	"github.com/gebl/onedrive-mcp-server/internal/tools"
	"github.com/gebl/onedrive-mcp-server/internal/utils"
)

// driveSummary adds human readable quota figures to a drive.
type driveSummary struct {
	graph.Drive
	QuotaUsed      string `json:"quotaUsed,omitempty"`
	QuotaTotal     string `json:"quotaTotal,omitempty"`
	QuotaRemaining string `json:"quotaRemaining,omitempty"`
}

func summarizeDrive(d graph.Drive) driveSummary {
	summary := driveSummary{Drive: d}
	if d.Quota != nil {
		summary.QuotaUsed = units.HumanSize(float64(d.Quota.Used))
		summary.QuotaTotal = units.HumanSize(float64(d.Quota.Total))
		summary.QuotaRemaining = units.HumanSize(float64(d.Quota.Remaining))
	}
	return summary
}

// registerDriveTools registers drive discovery tools
func registerDriveTools(r *toolRegistrar, a *app) {
	r.add(tools.ToolsetDrives, mcp.NewTool("listDrives",
		mcp.WithDescription(resources.MustGetToolDescription("listDrives")),
	), a.listDrives)

	r.add(tools.ToolsetDrives, mcp.NewTool("getDrive",
		mcp.WithDescription(resources.MustGetToolDescription("getDrive")),
		mcp.WithString("driveId", mcp.Description("Drive ID")),
		mcp.WithString("userId", mcp.Description("User ID or user principal name whose OneDrive to get")),
		mcp.WithString("groupId", mcp.Description("Microsoft 365 group ID whose document library to get")),
		mcp.WithString("siteId", mcp.Description("SharePoint site ID whose default document library to get")),
	), a.getDrive)

	r.add(tools.ToolsetDrives, mcp.NewTool("getSpecialFolder",
		mcp.WithDescription(resources.MustGetToolDescription("getSpecialFolder")),
		mcp.WithString("name", mcp.Required(),
			mcp.Description("Special folder name"),
			mcp.Enum(drives.SpecialFolders...)),
	), a.getSpecialFolder)

	r.add(tools.ToolsetDrives, mcp.NewTool("listShared",
		mcp.WithDescription(resources.MustGetToolDescription("listShared")),
	), a.listShared)

	r.add(tools.ToolsetDrives, mcp.NewTool("listRecent",
		mcp.WithDescription(resources.MustGetToolDescription("listRecent")),
	), a.listRecent)
}

func (a *app) listDrives(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("listDrives")

	list, err := a.drives.ListDrives(ctx)
	if err != nil {
		return logger.Fail(err)
	}
	summaries := make([]driveSummary, 0, len(list))
	for _, d := range list {
		summaries = append(summaries, summarizeDrive(d))
	}
	return logger.Succeed(summaries, "count", len(summaries))
}

func (a *app) getDrive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("getDrive")

	lookups := map[string]func(context.Context, string) (*graph.Drive, error){
		"driveId": a.drives.GetDriveByID,
		"userId":  a.drives.GetDriveByUser,
		"groupId": a.drives.GetDriveByGroup,
		"siteId":  a.drives.GetDriveBySite,
	}
	var given []string
	for _, key := range []string{"driveId", "userId", "groupId", "siteId"} {
		if strings.TrimSpace(req.GetString(key, "")) != "" {
			given = append(given, key)
		}
	}
	if len(given) > 1 {
		return utils.ToolResults.NewErrorf("get drive", "pass only one of %s", strings.Join(given, ", ")), nil
	}

	var (
		drive *graph.Drive
		err   error
	)
	if len(given) == 0 {
		drive, err = a.drives.GetMyDrive(ctx)
	} else {
		drive, err = lookups[given[0]](ctx, strings.TrimSpace(req.GetString(given[0], "")))
	}
	if err != nil {
		return logger.Fail(err)
	}
	return logger.Succeed(summarizeDrive(*drive), "drive_id", drive.ID)
}

func (a *app) getSpecialFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("getSpecialFolder")

	name, err := utils.RequireString(req, "name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folder, err := a.drives.GetSpecialFolder(ctx, name)
	if err != nil {
		return logger.Fail(err, "name", name)
	}
	return logger.Succeed(newItemView(*folder), "item_id", folder.ID)
}

func (a *app) listShared(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return a.listItems(ctx, "listShared", a.drives.GetShared)
}

func (a *app) listRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return a.listItems(ctx, "listRecent", a.drives.GetRecent)
}

func (a *app) listItems(ctx context.Context, operation string, list func(context.Context) ([]graph.DriveItem, error)) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger(operation)

	found, err := list(ctx)
	if err != nil {
		return logger.Fail(err)
	}
	visible := a.filterItems(found)
	return logger.Succeed(newItemViews(visible), "count", len(visible), "hidden", len(found)-len(visible))
}

