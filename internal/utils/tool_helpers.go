// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// tool_helpers.go - Common utilities for MCP tool handlers to reduce code duplication.
//
// This module provides centralized functions for common MCP tool handler patterns:
// - Error result creation with consistent formatting
// - JSON marshaling with standardized error handling
// - Tool operation logging with timing and context
//
// These utilities keep error handling, logging and response formatting
// consistent across tool handlers.

package utils

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

// ToolResult provides helper functions for creating consistent MCP tool results
type ToolResult struct{}

// NewError creates a standardized error result with consistent formatting
func (tr ToolResult) NewError(operation string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", operation, err))
}

// NewErrorf creates a standardized error result with formatted message
func (tr ToolResult) NewErrorf(operation string, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %s", operation, fmt.Sprintf(format, args...)))
}

// NewJSONResult marshals data to JSON and returns a text result, or error result if marshaling fails
func (tr ToolResult) NewJSONResult(operation string, data any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		logging.ToolsLogger.Error("Failed to marshal JSON response", "operation", operation, "error", err)
		return tr.NewError(fmt.Sprintf("marshal %s response", operation), err)
	}
	return mcp.NewToolResultText(string(jsonBytes))
}

// Global instance for easy access
var ToolResults = ToolResult{}

// ToolLogger provides standardized logging for tool operations
type ToolLogger struct {
	operation string
	startTime time.Time
}

// NewToolLogger creates a new tool logger for an operation
func NewToolLogger(operation string) *ToolLogger {
	logging.ToolsLogger.Info("Starting tool operation", "operation", operation, "type", "tool_invocation")
	return &ToolLogger{
		operation: operation,
		startTime: time.Now(),
	}
}

// LogError logs an error with operation context
func (tl *ToolLogger) LogError(err error, extraFields ...any) {
	fields := []any{"operation", tl.operation, "error", err}
	fields = append(fields, extraFields...)
	logging.ToolsLogger.Error("Tool operation failed", fields...)
}

// LogDebug logs debug information with operation context
func (tl *ToolLogger) LogDebug(message string, extraFields ...any) {
	fields := []any{"operation", tl.operation}
	fields = append(fields, extraFields...)
	logging.ToolsLogger.Debug(message, fields...)
}

// LogSuccess logs successful completion with duration
func (tl *ToolLogger) LogSuccess(extraFields ...any) {
	fields := []any{"operation", tl.operation, "duration", time.Since(tl.startTime)}
	fields = append(fields, extraFields...)
	logging.ToolsLogger.Debug("Tool operation completed successfully", fields...)
}

// Fail logs err and returns the matching error result.
func (tl *ToolLogger) Fail(err error, extraFields ...any) (*mcp.CallToolResult, error) {
	tl.LogError(err, extraFields...)
	return ToolResults.NewError(tl.operation, err), nil
}

// Succeed logs success and returns data as a JSON result.
func (tl *ToolLogger) Succeed(data any, extraFields ...any) (*mcp.CallToolResult, error) {
	tl.LogSuccess(extraFields...)
	return ToolResults.NewJSONResult(tl.operation, data), nil
}

// RequireString extracts a required, non-empty string argument.
func RequireString(req mcp.CallToolRequest, name string) (string, error) {
	value, err := req.RequireString(name)
	if err != nil {
		return "", fmt.Errorf("%s is required", name)
	}
	if value == "" {
		return "", fmt.Errorf("%s cannot be empty", name)
	}
	return value, nil
}
