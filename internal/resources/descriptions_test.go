// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebl/onedrive-mcp-server/internal/authorization"
)

func TestGetToolDescription(t *testing.T) {
	tests := []struct {
		name     string
		toolName string
		wantErr  bool
	}{
		{"existing tool - getAuthStatus", "getAuthStatus", false},
		{"existing tool - listChildren", "listChildren", false},
		{"existing tool - uploadFile", "uploadFile", false},
		{"non-existent tool", "nonExistentTool", true},
		{"empty tool name", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := GetToolDescription(tt.toolName)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, desc)
				assert.Contains(t, err.Error(), "description not found for tool")
				return
			}
			assert.NoError(t, err)
			assert.NotEmpty(t, desc)
		})
	}
}

func TestMustGetToolDescription(t *testing.T) {
	t.Run("existing tool", func(t *testing.T) {
		desc := MustGetToolDescription("getAuthStatus")
		assert.Contains(t, desc, "authentication")
	})

	t.Run("non-existent tool panics", func(t *testing.T) {
		assert.Panics(t, func() {
			MustGetToolDescription("nonExistentTool")
		})
	})
}

func TestGetAllDescriptions(t *testing.T) {
	all := GetAllDescriptions()

	// Every tool known to the authorization layer is registered with a description.
	for tool := range authorization.ToolRegistry {
		desc, exists := all[tool]
		assert.True(t, exists, "Missing tool description for: %s", tool)
		assert.NotEmpty(t, desc, "Empty description for tool: %s", tool)
	}
	assert.Len(t, all, len(authorization.ToolRegistry))

	// The returned map is a copy.
	all["testTool"] = "test description"
	assert.NotContains(t, GetAllDescriptions(), "testTool")
}

func TestToolDescriptionsContent(t *testing.T) {
	tests := []struct {
		tool          string
		shouldContain []string
	}{
		{"listChildren", []string{"pattern", "orderBy", "path permissions"}},
		{"createFolder", []string{"conflictBehavior", "reserved name"}},
		{"createLink", []string{"view", "edit", "embed", "anonymous", "organization"}},
		{"uploadFile", []string{"upload session", "progress", "conflictBehavior"}},
		{"downloadText", []string{"raw", "markdown", "text"}},
		{"getSpecialFolder", []string{"documents", "photos", "cameraroll", "approot", "music"}},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			desc, err := GetToolDescription(tt.tool)
			require.NoError(t, err)
			for _, content := range tt.shouldContain {
				assert.Contains(t, desc, content, "Tool %s description should contain '%s'", tt.tool, content)
			}
		})
	}
}
