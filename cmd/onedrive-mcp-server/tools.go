// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package main

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gebl/onedrive-mcp-server/internal/auth"
	"github.com/gebl/onedrive-mcp-server/internal/authorization"
	"github.com/gebl/onedrive-mcp-server/internal/config"
	"github.com/gebl/onedrive-mcp-server/internal/drives"
	"github.com/gebl/onedrive-mcp-server/internal/graph"
	"github.com/gebl/onedrive-mcp-server/internal/items"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
	"github.com/gebl/onedrive-mcp-server/internal/tools"
)

// app holds the clients shared by the tool handlers.
type app struct {
	cfg         *config.Config
	authManager *auth.AuthManager
	drives      *drives.DriveClient
	items       *items.ItemClient
	resolver    *authorization.CachedResolver
}

func newApp(cfg *config.Config, graphClient *graph.Client, authManager *auth.AuthManager) *app {
	driveClient := drives.NewDriveClient(graphClient)
	return &app{
		cfg:         cfg,
		authManager: authManager,
		drives:      driveClient,
		items:       items.NewItemClient(graphClient),
		resolver:    authorization.NewCachedResolver(driveClient),
	}
}

// toolRegistrar adds tools to the MCP server when their toolset is enabled.
type toolRegistrar struct {
	server     *server.MCPServer
	registry   *tools.ToolsetRegistry
	authConfig *authorization.AuthorizationConfig
	resolver   authorization.PathResolver
}

// add registers a tool behind the authorization wrapper.
func (r *toolRegistrar) add(toolset string, tool mcp.Tool, handler authorization.ToolHandler) {
	r.register(toolset, tool, authorization.AuthorizedToolHandler(tool.Name, handler, r.authConfig, r.resolver))
}

// addUnguarded registers a tool that must work before the user is signed in.
func (r *toolRegistrar) addUnguarded(toolset string, tool mcp.Tool, handler authorization.ToolHandler) {
	r.register(toolset, tool, handler)
}

func (r *toolRegistrar) register(toolset string, tool mcp.Tool, handler authorization.ToolHandler) {
	if !r.registry.RegisterTool(tools.Tool{Name: tool.Name, Description: tool.Description, Toolset: toolset}) {
		logging.ToolsLogger.Debug("Skipping tool from disabled toolset", "tool", tool.Name, "toolset", toolset)
		return
	}
	r.server.AddTool(tool, server.ToolHandlerFunc(handler))
}

// registerTools registers all MCP tools for the OneDrive server and returns the
// registry of tools that were enabled.
func registerTools(s *server.MCPServer, a *app) *tools.ToolsetRegistry {
	logging.ToolsLogger.Debug("Starting tool registration")

	registry := tools.NewToolsetRegistry(a.cfg.Toolsets)
	if unknown := registry.Unknown(); len(unknown) > 0 {
		logging.ToolsLogger.Warn("Ignoring unknown toolsets", "toolsets", unknown, "valid_toolsets", tools.AllToolsets)
	}

	r := &toolRegistrar{
		server:     s,
		registry:   registry,
		authConfig: a.cfg.Authorization,
		resolver:   a.resolver,
	}

	registerAuthTools(r, a)
	registerDriveTools(r, a)
	registerItemTools(r, a)
	registerTransferTools(r, a)

	logging.ToolsLogger.Debug("All tools registered successfully", "count", len(registry.ListTools()))
	return registry
}

// itemRef reads the item addressed by itemId or path.
func itemRef(req mcp.CallToolRequest) items.ItemRef {
	return items.ItemRef{
		DriveID: req.GetString("driveId", ""),
		ItemID:  req.GetString("itemId", ""),
		Path:    req.GetString("path", ""),
	}
}

// parentRef reads the folder addressed by parentId or parentPath.
func parentRef(req mcp.CallToolRequest) items.ItemRef {
	return items.ItemRef{
		DriveID: req.GetString("driveId", ""),
		ItemID:  req.GetString("parentId", ""),
		Path:    req.GetString("parentPath", ""),
	}
}

// destinationRef reads the folder addressed by destinationId or destinationPath.
func destinationRef(req mcp.CallToolRequest) items.ItemRef {
	return items.ItemRef{
		DriveID: req.GetString("destinationDriveId", req.GetString("driveId", "")),
		ItemID:  req.GetString("destinationId", ""),
		Path:    req.GetString("destinationPath", ""),
	}
}

// filterItems hides items the path permissions do not allow reading.
func (a *app) filterItems(list []graph.DriveItem) []graph.DriveItem {
	return a.cfg.Authorization.FilterItems(list)
}

// withDriveID adds the optional driveId argument shared by item tools.
func withDriveID() mcp.ToolOption {
	return mcp.WithString("driveId", mcp.Description("Drive ID from listDrives. Empty means the signed-in user's OneDrive"))
}
