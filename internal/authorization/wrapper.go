// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package authorization

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

// ToolHandler represents the signature of an MCP tool handler function
type ToolHandler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Forgetter drops cached item paths after an item changes.
type Forgetter interface {
	Forget(driveID, itemID string)
}

// AuthorizedToolHandler wraps a tool handler with tool category and path checks.
// Denials are reported as tool errors, not Go errors.
func AuthorizedToolHandler(toolName string, handler ToolHandler, authConfig *AuthorizationConfig, resolver PathResolver) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if authConfig == nil || !authConfig.Enabled {
			logging.AuthorizationLogger.Debug("Authorization wrapper bypassed",
				"tool", toolName,
				"reason", "authorization_disabled")
			return handler(ctx, req)
		}

		resourceContext := ExtractResourceContext(ctx, toolName, req, resolver)

		if err := authConfig.IsAuthorized(ctx, toolName, resourceContext); err != nil {
			logging.AuthorizationLogger.Info("Authorization check failed",
				"tool", toolName,
				"resource_context", resourceContext.String(),
				"error", err.Error())
			return mcp.NewToolResultError(fmt.Sprintf("Authorization failed: %v", err)), nil
		}

		result, err := handler(ctx, req)

		// Moved, renamed or deleted items no longer live at their cached path.
		if forgetter, ok := resolver.(Forgetter); ok && resourceContext.Operation == OperationWrite {
			args := req.GetArguments()
			if id := getStringParam(args, "itemId"); id != "" {
				forgetter.Forget(getStringParam(args, "driveId"), id)
			}
		}
		return result, err
	}
}

// AuthorizationInfo summarizes the authorization configuration for status output.
type AuthorizationInfo struct {
	Enabled         bool              `json:"enabled"`
	DefaultMode     string            `json:"default_mode"`
	DefaultToolMode string            `json:"default_tool_mode"`
	PathRules       int               `json:"path_rules_configured"`
	ToolRules       map[string]string `json:"tool_permissions,omitempty"`
	Patterns        []string          `json:"patterns,omitempty"`
}

// GetAuthorizationInfo returns information about the current authorization configuration
func GetAuthorizationInfo(authConfig *AuthorizationConfig) AuthorizationInfo {
	if authConfig == nil {
		return AuthorizationInfo{Enabled: false}
	}

	info := AuthorizationInfo{
		Enabled:         authConfig.Enabled,
		DefaultMode:     string(authConfig.defaultMode()),
		DefaultToolMode: string(authConfig.DefaultToolMode),
		PathRules:       len(authConfig.PathPermissions),
	}
	if len(authConfig.ToolPermissions) > 0 {
		info.ToolRules = make(map[string]string, len(authConfig.ToolPermissions))
		for category, level := range authConfig.ToolPermissions {
			info.ToolRules[string(category)] = string(level)
		}
	}
	for _, p := range authConfig.patterns().GetAllPatterns() {
		info.Patterns = append(info.Patterns, fmt.Sprintf("%s=%s", p.Original, p.Permission))
	}
	return info
}

// ValidateAuthorizationConfig checks permission levels and compiles the path patterns.
func ValidateAuthorizationConfig(authConfig *AuthorizationConfig) error {
	if authConfig == nil {
		return nil
	}

	if authConfig.DefaultMode != "" && !authConfig.DefaultMode.Valid() {
		return fmt.Errorf("invalid default_mode: %s (must be one of: none, read, write, full)", authConfig.DefaultMode)
	}
	if authConfig.DefaultToolMode != "" && !authConfig.DefaultToolMode.Valid() {
		return fmt.Errorf("invalid default_tool_mode: %s (must be one of: none, read, write, full)", authConfig.DefaultToolMode)
	}

	categories := make([]string, 0, len(authConfig.ToolPermissions))
	for category := range authConfig.ToolPermissions {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)
	for _, category := range categories {
		if mode := authConfig.ToolPermissions[ToolCategory(category)]; !mode.Valid() {
			return fmt.Errorf("invalid tool permission for '%s': %s (must be one of: none, read, write, full)", category, mode)
		}
	}

	patterns := make([]string, 0, len(authConfig.PathPermissions))
	for pattern := range authConfig.PathPermissions {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)
	for _, pattern := range patterns {
		if mode := authConfig.PathPermissions[pattern]; !mode.Valid() {
			return fmt.Errorf("invalid path permission for '%s': %s (must be one of: none, read, write, full)", pattern, mode)
		}
	}

	return authConfig.CompileMatchers()
}
