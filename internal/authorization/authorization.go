// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package authorization

import (
	"context"
	"fmt"
	"strings"

	"github.com/gebl/onedrive-mcp-server/internal/graph"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

// PermissionLevel defines the level of access allowed
type PermissionLevel string

const (
	PermissionNone  PermissionLevel = "none"  // Block all access
	PermissionRead  PermissionLevel = "read"  // Allow read-only operations
	PermissionWrite PermissionLevel = "write" // Allow read + write operations
	PermissionFull  PermissionLevel = "full"  // Allow all operations (same as write for most tools)
)

// Valid reports whether p is one of the known levels.
func (p PermissionLevel) Valid() bool {
	switch p {
	case PermissionNone, PermissionRead, PermissionWrite, PermissionFull:
		return true
	}
	return false
}

// ToolCategory represents different categories of tools for authorization
type ToolCategory string

const (
	CategoryAuthTools     ToolCategory = "auth_tools"
	CategoryDriveRead     ToolCategory = "drive_read"
	CategoryItemRead      ToolCategory = "item_read"
	CategoryItemWrite     ToolCategory = "item_write"
	CategoryTransferRead  ToolCategory = "transfer_read"
	CategoryTransferWrite ToolCategory = "transfer_write"
)

// ToolOperation represents whether a tool performs read or write operations
type ToolOperation string

const (
	OperationRead  ToolOperation = "read"
	OperationWrite ToolOperation = "write"
)

// AuthorizationConfig holds tool category and drive path permissions.
type AuthorizationConfig struct {
	Enabled         bool                             `json:"enabled"`
	DefaultMode     PermissionLevel                  `json:"default_mode"`      // Fallback for unmatched paths
	DefaultToolMode PermissionLevel                  `json:"default_tool_mode"` // Fallback for tool categories
	ToolPermissions map[ToolCategory]PermissionLevel `json:"tool_permissions"`
	PathPermissions map[string]PermissionLevel       `json:"path_permissions"` // doublestar pattern -> level

	engine *PatternEngine
}

// ResourceContext describes the drive paths a tool call touches.
type ResourceContext struct {
	Paths     []string // Normalized paths that must allow the operation
	ItemIDs   []string // IDs that could not be resolved to a path
	Operation ToolOperation
}

// String returns a human-readable representation of the resource context
func (rc ResourceContext) String() string {
	parts := []string{}
	if len(rc.Paths) > 0 {
		parts = append(parts, fmt.Sprintf("paths=%s", strings.Join(rc.Paths, ",")))
	}
	if len(rc.ItemIDs) > 0 {
		parts = append(parts, fmt.Sprintf("unresolved_ids=%s", strings.Join(rc.ItemIDs, ",")))
	}
	parts = append(parts, fmt.Sprintf("operation=%s", rc.Operation))
	return strings.Join(parts, ", ")
}

// ToolInfo contains metadata about an MCP tool
type ToolInfo struct {
	Category     ToolCategory
	Operation    ToolOperation
	IsFilterTool bool // Results are filtered by path instead of the call being checked
}

// ToolRegistry maps tool names to their categories and operations
var ToolRegistry = map[string]ToolInfo{
	// Authentication tools
	"getAuthStatus": {CategoryAuthTools, OperationRead, false},
	"refreshToken":  {CategoryAuthTools, OperationWrite, false},
	"initiateAuth":  {CategoryAuthTools, OperationWrite, false},
	"clearAuth":     {CategoryAuthTools, OperationWrite, false},

	// Drive tools
	"listDrives":       {CategoryDriveRead, OperationRead, false},
	"getDrive":         {CategoryDriveRead, OperationRead, false},
	"getSpecialFolder": {CategoryDriveRead, OperationRead, false},
	"listShared":       {CategoryDriveRead, OperationRead, true},
	"listRecent":       {CategoryDriveRead, OperationRead, true},

	// Item read tools
	"getItem":      {CategoryItemRead, OperationRead, false},
	"listChildren": {CategoryItemRead, OperationRead, false},

	// Item write tools
	"createFolder": {CategoryItemWrite, OperationWrite, false},
	"deleteItem":   {CategoryItemWrite, OperationWrite, false},
	"renameItem":   {CategoryItemWrite, OperationWrite, false},
	"moveItem":     {CategoryItemWrite, OperationWrite, false},
	"copyItem":     {CategoryItemWrite, OperationWrite, false},
	"createLink":   {CategoryItemWrite, OperationWrite, false},

	// Transfer tools
	"downloadText": {CategoryTransferRead, OperationRead, false},
	"downloadFile": {CategoryTransferRead, OperationRead, false},
	"uploadFile":   {CategoryTransferWrite, OperationWrite, false},
	"uploadText":   {CategoryTransferWrite, OperationWrite, false},
}

// NewAuthorizationConfig returns a disabled configuration that defaults to read.
func NewAuthorizationConfig() *AuthorizationConfig {
	return &AuthorizationConfig{
		Enabled:         false,
		DefaultMode:     PermissionRead,
		DefaultToolMode: PermissionRead,
		ToolPermissions: make(map[ToolCategory]PermissionLevel),
		PathPermissions: make(map[string]PermissionLevel),
	}
}

// CompileMatchers compiles the path patterns. It is called lazily on first use
// and must be called again after PathPermissions changes.
func (ac *AuthorizationConfig) CompileMatchers() error {
	engine := NewPatternEngine()
	if err := engine.CompilePatterns(ac.PathPermissions); err != nil {
		return fmt.Errorf("failed to compile path permissions: %w", err)
	}
	ac.engine = engine
	logging.AuthorizationLogger.Debug("Authorization matchers compiled", "path_patterns", len(ac.PathPermissions))
	return nil
}

func (ac *AuthorizationConfig) patterns() *PatternEngine {
	if ac.engine == nil {
		if err := ac.CompileMatchers(); err != nil {
			logging.AuthorizationLogger.Error("Invalid path permissions, falling back to default mode", "error", err)
			ac.engine = NewPatternEngine()
		}
	}
	return ac.engine
}

// IsAuthorized checks a tool call against the tool category and every path it touches.
func (ac *AuthorizationConfig) IsAuthorized(ctx context.Context, toolName string, resourceContext ResourceContext) error {
	if ac == nil || !ac.Enabled {
		logging.AuthorizationLogger.Debug("Authorization disabled, allowing all operations", "tool", toolName)
		return nil
	}

	logging.AuthorizationLogger.Debug("Checking authorization",
		"tool", toolName,
		"resource_context", resourceContext.String())

	toolInfo, exists := ToolRegistry[toolName]
	if !exists {
		logging.AuthorizationLogger.Warn("Unknown tool requested", "tool", toolName)
		return fmt.Errorf("unknown tool: %s", toolName)
	}

	toolPermission := ac.getToolPermission(toolInfo.Category)
	if !permissionAllowsOperation(toolPermission, toolInfo.Operation) {
		logging.AuthorizationLogger.Info("Tool category access denied",
			"tool", toolName,
			"category", toolInfo.Category,
			"required_operation", toolInfo.Operation,
			"allowed_permission", toolPermission)
		return fmt.Errorf("access denied: tool category '%s' requires '%s' permission but only '%s' is granted",
			toolInfo.Category, toolInfo.Operation, toolPermission)
	}

	if toolInfo.IsFilterTool {
		return nil
	}

	for _, path := range resourceContext.Paths {
		permission := ac.PathPermission(path)
		if !permissionAllowsOperation(permission, toolInfo.Operation) {
			logging.AuthorizationLogger.Info("Path access denied",
				"tool", toolName,
				"path", path,
				"required_operation", toolInfo.Operation,
				"allowed_permission", permission)
			return fmt.Errorf("access denied: '%s' requires '%s' permission but only '%s' is granted",
				path, toolInfo.Operation, permission)
		}
	}

	// An item that could not be located is held to the default mode so that
	// addressing it by ID cannot bypass path rules.
	if len(resourceContext.ItemIDs) > 0 && !permissionAllowsOperation(ac.defaultMode(), toolInfo.Operation) {
		logging.AuthorizationLogger.Info("Unresolved item denied by default mode",
			"tool", toolName,
			"item_ids", resourceContext.ItemIDs,
			"default_mode", ac.defaultMode())
		return fmt.Errorf("access denied: item %s could not be resolved to a path and the default mode is '%s'",
			strings.Join(resourceContext.ItemIDs, ","), ac.defaultMode())
	}

	logging.AuthorizationLogger.Debug("Authorization granted",
		"tool", toolName,
		"category", toolInfo.Category,
		"resource_context", resourceContext.String())
	return nil
}

func (ac *AuthorizationConfig) defaultMode() PermissionLevel {
	if ac.DefaultMode == "" {
		return PermissionRead
	}
	return ac.DefaultMode
}

func (ac *AuthorizationConfig) getToolPermission(category ToolCategory) PermissionLevel {
	// Auth tools must stay reachable so a locked-out server can sign in again.
	if category == CategoryAuthTools {
		if permission, exists := ac.ToolPermissions[category]; exists && permission != PermissionNone {
			return permission
		}
		return PermissionFull
	}
	if permission, exists := ac.ToolPermissions[category]; exists {
		return permission
	}
	if ac.DefaultToolMode != "" {
		return ac.DefaultToolMode
	}
	return ac.defaultMode()
}

// PathPermission returns the permission for a drive path, falling back to DefaultMode.
func (ac *AuthorizationConfig) PathPermission(path string) PermissionLevel {
	if permission, _, ok := ac.patterns().Match(path); ok {
		return permission
	}
	return ac.defaultMode()
}

// CanRead reports whether path may be read. Always true when authorization is disabled.
func (ac *AuthorizationConfig) CanRead(path string) bool {
	if ac == nil || !ac.Enabled {
		return true
	}
	return permissionAllowsOperation(ac.PathPermission(path), OperationRead)
}

func permissionAllowsOperation(permission PermissionLevel, operation ToolOperation) bool {
	switch permission {
	case PermissionNone:
		return false
	case PermissionRead:
		return operation == OperationRead
	case PermissionWrite, PermissionFull:
		return true
	default:
		return false
	}
}

// FilterItems drops items whose path resolves to 'none'.
func (ac *AuthorizationConfig) FilterItems(items []graph.DriveItem) []graph.DriveItem {
	if ac == nil || !ac.Enabled {
		return items
	}

	filtered := make([]graph.DriveItem, 0, len(items))
	for _, item := range items {
		path := item.Path()
		if ac.CanRead(path) {
			filtered = append(filtered, item)
			continue
		}
		logging.AuthorizationLogger.Debug("Item filtered by path permission", "path", path, "item_id", item.ID)
	}

	if removed := len(items) - len(filtered); removed > 0 {
		logging.AuthorizationLogger.Info("Filtered items by authorization",
			"original_count", len(items),
			"filtered_count", len(filtered),
			"removed", removed)
	}
	return filtered
}
