// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolsetRegistry_EmptyEnablesAll(t *testing.T) {
	r := NewToolsetRegistry(nil)
	for _, ts := range AllToolsets {
		assert.True(t, r.IsEnabled(ts), ts)
	}
	assert.Empty(t, r.Unknown())
}

func TestToolsetRegistry_Subset(t *testing.T) {
	r := NewToolsetRegistry([]string{" Items ", "transfer", ""})

	assert.True(t, r.IsEnabled(ToolsetItems))
	assert.True(t, r.IsEnabled(ToolsetTransfer))
	assert.False(t, r.IsEnabled(ToolsetDrives))
	assert.True(t, r.IsEnabled(ToolsetAuth), "auth is always enabled")
}

func TestToolsetRegistry_Unknown(t *testing.T) {
	r := NewToolsetRegistry([]string{"items", "pages", "notebooks"})
	assert.Equal(t, []string{"notebooks", "pages"}, r.Unknown())
}

func TestToolsetRegistry_RegisterTool(t *testing.T) {
	r := NewToolsetRegistry([]string{"items"})

	assert.True(t, r.RegisterTool(Tool{Name: "listChildren", Toolset: ToolsetItems}))
	assert.True(t, r.RegisterTool(Tool{Name: "getAuthStatus", Toolset: ToolsetAuth}))
	assert.True(t, r.RegisterTool(Tool{Name: "createFolder", Toolset: ToolsetItems}))
	assert.False(t, r.RegisterTool(Tool{Name: "listDrives", Toolset: ToolsetDrives}))

	names := []string{}
	for _, tool := range r.ListTools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"createFolder", "getAuthStatus", "listChildren"}, names)
}
