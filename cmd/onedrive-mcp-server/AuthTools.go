// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gebl/onedrive-mcp-server/internal/authorization"
	"github.com/gebl/onedrive-mcp-server/internal/resources"
	"github.com/gebl/onedrive-mcp-server/internal/tools"
	"github.com/gebl/onedrive-mcp-server/internal/utils"
)

// registerAuthTools registers authentication-related MCP tools
func registerAuthTools(r *toolRegistrar, a *app) {
	r.add(tools.ToolsetAuth, mcp.NewTool("getAuthStatus",
		mcp.WithDescription(resources.MustGetToolDescription("getAuthStatus")),
	), a.getAuthStatus)

	r.add(tools.ToolsetAuth, mcp.NewTool("refreshToken",
		mcp.WithDescription(resources.MustGetToolDescription("refreshToken")),
	), a.refreshToken)

	// initiateAuth and clearAuth run before or instead of a signed-in session,
	// so they skip the authorization wrapper.
	r.addUnguarded(tools.ToolsetAuth, mcp.NewTool("initiateAuth",
		mcp.WithDescription(resources.MustGetToolDescription("initiateAuth")),
	), a.initiateAuth)

	r.addUnguarded(tools.ToolsetAuth, mcp.NewTool("clearAuth",
		mcp.WithDescription(resources.MustGetToolDescription("clearAuth")),
	), a.clearAuth)
}

func (a *app) getAuthStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("getAuthStatus")
	if a.authManager == nil {
		return utils.ToolResults.NewError("get auth status", fmt.Errorf("authentication manager not available")), nil
	}

	status := a.authManager.GetAuthStatus()
	response := map[string]any{
		"auth":          status,
		"authorization": authorization.GetAuthorizationInfo(a.cfg.Authorization),
	}
	return logger.Succeed(response, "authenticated", status.Authenticated)
}

func (a *app) refreshToken(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("refreshToken")
	if a.authManager == nil {
		return mcp.NewToolResultError("Authentication manager not available"), nil
	}

	status, err := a.authManager.RefreshToken(ctx)
	if err != nil {
		return logger.Fail(err)
	}
	return logger.Succeed(status)
}

func (a *app) initiateAuth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("initiateAuth")
	if a.authManager == nil {
		return mcp.NewToolResultError("Authentication manager not available"), nil
	}

	session, err := a.authManager.InitiateAuth()
	if err != nil {
		return logger.Fail(err)
	}

	response := map[string]any{
		"authUrl":        session.AuthURL,
		"instructions":   "Visit this URL in your browser to authenticate with Microsoft. The authentication will complete automatically.",
		"timeoutMinutes": session.TimeoutMinutes,
		"state":          session.State,
	}
	if session.CallbackAddr != "" {
		response["callbackAddr"] = session.CallbackAddr
	}
	return logger.Succeed(response, "auth_url_generated", true)
}

func (a *app) clearAuth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("clearAuth")
	if a.authManager == nil {
		return mcp.NewToolResultError("Authentication manager not available"), nil
	}

	if err := a.authManager.ClearAuth(); err != nil {
		return logger.Fail(err)
	}
	// Cached paths belong to the account that just signed out.
	a.resolver.Clear()

	return logger.Succeed(map[string]any{
		"success": true,
		"message": "Authentication tokens cleared successfully. Use initiateAuth to re-authenticate.",
	})
}
