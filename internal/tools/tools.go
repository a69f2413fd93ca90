// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package tools

import (
	"sort"
	"strings"
)

// Toolsets group the MCP tools so deployments can expose a subset.
const (
	ToolsetAuth     = "auth"
	ToolsetDrives   = "drives"
	ToolsetItems    = "items"
	ToolsetTransfer = "transfer"
)

// AllToolsets lists every toolset in registration order.
var AllToolsets = []string{ToolsetAuth, ToolsetDrives, ToolsetItems, ToolsetTransfer}

// Tool represents a callable tool/method in the MCP server
// Name: the method name (e.g., "listChildren")
// Description: a short description
// Toolset: the toolset/category (e.g., "items")
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Toolset     string `json:"toolset"`
}

// ToolsetRegistry manages enabled toolsets and their tools
type ToolsetRegistry struct {
	Enabled map[string]bool
	tools   map[string]Tool
}

// NewToolsetRegistry enables the given toolsets. An empty list enables all of them.
func NewToolsetRegistry(toolsets []string) *ToolsetRegistry {
	enabled := make(map[string]bool)
	for _, t := range toolsets {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			enabled[t] = true
		}
	}
	return &ToolsetRegistry{
		Enabled: enabled,
		tools:   make(map[string]Tool),
	}
}

// IsEnabled reports whether tools of a toolset should be registered. The auth
// toolset is always enabled so the server can sign in.
func (r *ToolsetRegistry) IsEnabled(toolset string) bool {
	if len(r.Enabled) == 0 || toolset == ToolsetAuth {
		return true
	}
	return r.Enabled[strings.ToLower(toolset)]
}

// Unknown returns enabled toolset names that match no toolset.
func (r *ToolsetRegistry) Unknown() []string {
	known := make(map[string]bool, len(AllToolsets))
	for _, t := range AllToolsets {
		known[t] = true
	}
	var unknown []string
	for t := range r.Enabled {
		if !known[t] {
			unknown = append(unknown, t)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// RegisterTool records a tool if its toolset is enabled and reports whether it did.
func (r *ToolsetRegistry) RegisterTool(tool Tool) bool {
	if !r.IsEnabled(tool.Toolset) {
		return false
	}
	r.tools[tool.Name] = tool
	return true
}

// ListTools returns all registered tools sorted by name
func (r *ToolsetRegistry) ListTools() []Tool {
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}
