// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package authorization

import (
	"context"
	"path"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gebl/onedrive-mcp-server/internal/graph"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

// PathResolver looks up the drive path of an item addressed by ID.
type PathResolver interface {
	ResolvePath(ctx context.Context, driveID, itemID string) (string, error)
}

// Tool arguments that name a drive path, and those that name an item ID.
var (
	pathArguments = []string{"path", "parentPath", "destinationPath"}
	idArguments   = []string{"itemId", "parentId", "destinationId"}
)

// ExtractResourceContext collects every drive path a tool call touches. Item IDs
// are resolved through resolver; IDs that cannot be resolved are kept aside so
// the caller can apply the default mode to them.
func ExtractResourceContext(ctx context.Context, toolName string, req mcp.CallToolRequest, resolver PathResolver) ResourceContext {
	rc := ResourceContext{Operation: getToolOperation(toolName)}
	args := req.GetArguments()
	driveID := getStringParam(args, "driveId")

	var containers []string
	source := ""
	for _, key := range pathArguments {
		if p := getStringParam(args, key); p != "" {
			normalized := graph.NormalizePath(p)
			rc.Paths = append(rc.Paths, normalized)
			if key == "path" {
				source = normalized
			} else {
				containers = append(containers, normalized)
			}
		}
	}

	for _, key := range idArguments {
		id := getStringParam(args, key)
		if id == "" {
			continue
		}
		resolved := ""
		if resolver != nil {
			p, err := resolver.ResolvePath(ctx, driveID, id)
			if err != nil {
				logging.AuthorizationLogger.Debug("Could not resolve item path", "item_id", id, "error", err)
			} else {
				resolved = graph.NormalizePath(p)
			}
		}
		if resolved == "" {
			rc.ItemIDs = append(rc.ItemIDs, id)
			continue
		}
		rc.Paths = append(rc.Paths, resolved)
		if key == "itemId" {
			if source == "" {
				source = resolved
			}
		} else {
			containers = append(containers, resolved)
		}
	}

	// The item being created or renamed is checked too, so a rule on the new
	// path applies even when its folder is writable.
	name := getStringParam(args, "name")
	if name == "" {
		name = getStringParam(args, "newName")
	}
	if name != "" {
		if len(containers) > 0 {
			for _, dir := range containers {
				rc.Paths = append(rc.Paths, graph.NormalizePath(path.Join(dir, name)))
			}
		} else if source != "" {
			rc.Paths = append(rc.Paths, graph.NormalizePath(path.Join(path.Dir(source), name)))
		}
	}

	logging.AuthorizationLogger.Debug("Resource context extracted",
		"tool", toolName,
		"resource_context", rc.String())
	return rc
}

func getStringParam(args map[string]interface{}, key string) string {
	if value, ok := args[key]; ok {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return ""
}

func getToolOperation(toolName string) ToolOperation {
	if info, ok := ToolRegistry[toolName]; ok {
		return info.Operation
	}
	return OperationWrite
}
