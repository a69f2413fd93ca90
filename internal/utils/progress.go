// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package utils

import (
	"context"
	"fmt"

	units "github.com/docker/go-units"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

const progressMethod = "notifications/progress"

// NotificationSender delivers notifications to the MCP client. *server.MCPServer implements it.
type NotificationSender interface {
	SendNotificationToClient(ctx context.Context, method string, params map[string]any) error
}

// ProgressNotifier sends progress notifications for one tool call. It is a
// no-op when the client did not ask for progress.
type ProgressNotifier struct {
	sender NotificationSender
	ctx    context.Context
	token  mcp.ProgressToken
}

// NewProgressNotifier creates a notifier for req using the server stored in ctx.
func NewProgressNotifier(ctx context.Context, req mcp.CallToolRequest) *ProgressNotifier {
	var sender NotificationSender
	if s := server.ServerFromContext(ctx); s != nil {
		sender = s
	}
	return NewProgressNotifierWithSender(ctx, sender, ExtractProgressToken(req))
}

// NewProgressNotifierWithSender creates a notifier with an explicit sender and token.
func NewProgressNotifierWithSender(ctx context.Context, sender NotificationSender, token mcp.ProgressToken) *ProgressNotifier {
	return &ProgressNotifier{sender: sender, ctx: ctx, token: token}
}

// ExtractProgressToken returns the progress token of req, or nil when there is none.
func ExtractProgressToken(req mcp.CallToolRequest) mcp.ProgressToken {
	if req.Params.Meta == nil {
		return nil
	}
	if s, ok := req.Params.Meta.ProgressToken.(string); ok && s == "" {
		return nil
	}
	return req.Params.Meta.ProgressToken
}

// IsValid returns whether this notifier has the required components to send notifications
func (pn *ProgressNotifier) IsValid() bool {
	return pn != nil && pn.sender != nil && pn.token != nil
}

// SendNotification sends a progress notification. total may be 0 when unknown.
func (pn *ProgressNotifier) SendNotification(progress, total int64, message string) {
	if !pn.IsValid() {
		logging.ToolsLogger.Debug("Skipping progress notification - no progress token or server",
			"progress", progress,
			"total", total,
			"message", message)
		return
	}

	params := map[string]any{
		"progressToken": pn.token,
		"progress":      progress,
	}
	if total > 0 {
		params["total"] = total
	}
	if message != "" {
		params["message"] = message
	}

	if err := pn.sender.SendNotificationToClient(pn.ctx, progressMethod, params); err != nil {
		logging.ToolsLogger.Warn("Failed to send progress notification to client",
			"error", err,
			"progressToken", pn.token,
			"progress", progress,
			"total", total)
		return
	}
	logging.ToolsLogger.Debug("Sent progress notification to client",
		"progressToken", pn.token,
		"progress", progress,
		"total", total,
		"message", message)
}

// SendMessage sends a progress message without a total.
func (pn *ProgressNotifier) SendMessage(progress int64, message string) {
	pn.SendNotification(progress, 0, message)
}

// UploadProgress adapts the notifier to an upload progress callback that
// reports bytes sent in human readable form.
func (pn *ProgressNotifier) UploadProgress(name string) func(sent, total int64) {
	return func(sent, total int64) {
		pn.SendNotification(sent, total, fmt.Sprintf("Uploaded %s of %s for %s",
			units.HumanSize(float64(sent)), units.HumanSize(float64(total)), name))
	}
}
