// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"

	units "github.com/docker/go-units"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gebl/onedrive-mcp-server/internal/content"
	"github.com/gebl/onedrive-mcp-server/internal/graph"
	"github.com/gebl/onedrive-mcp-server/internal/items"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
	"github.com/gebl/onedrive-mcp-server/internal/resources"
	"github.com/gebl/onedrive-mcp-server/internal/tools"
	"github.com/gebl/onedrive-mcp-server/internal/upload"
	"github.com/gebl/onedrive-mcp-server/internal/utils"
)

const (
	defaultTextMaxBytes = 1 << 20
	defaultFileMaxBytes = 10 << 20
	defaultImageWidth   = 1024
	defaultImageHeight  = 768

	uploadMethodSimple  = "simple"
	uploadMethodSession = "session"
)

// uploadResult is returned by the upload tools.
type uploadResult struct {
	Item   itemView `json:"item"`
	Method string   `json:"method"`
	Size   string   `json:"size"`
	Format string   `json:"format,omitempty"`
}

// registerTransferTools registers upload and download tools
func registerTransferTools(r *toolRegistrar, a *app) {
	r.add(tools.ToolsetTransfer, mcp.NewTool("uploadFile",
		mcp.WithDescription(resources.MustGetToolDescription("uploadFile")),
		withDriveID(),
		mcp.WithString("localPath", mcp.Required(), mcp.Description("Path of the local file to upload")),
		mcp.WithString("name", mcp.Description("Name in OneDrive. Defaults to the local file name")),
		mcp.WithString("parentId", mcp.Description("Destination folder ID")),
		mcp.WithString("parentPath", mcp.Description("Destination folder path. Empty means the root")),
		mcp.WithString("contentType", mcp.Description("MIME type sent with the content. Guessed from the extension when empty")),
		mcp.WithString("description", mcp.Description("File description, used for session uploads")),
		mcp.WithString("conflictBehavior", mcp.Description("fail, replace or rename"),
			mcp.Enum(items.ConflictFail, items.ConflictReplace, items.ConflictRename)),
	), a.uploadFile)

	r.add(tools.ToolsetTransfer, mcp.NewTool("uploadText",
		mcp.WithDescription(resources.MustGetToolDescription("uploadText")),
		withDriveID(),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name, e.g. notes.md")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text content")),
		mcp.WithString("parentId", mcp.Description("Destination folder ID")),
		mcp.WithString("parentPath", mcp.Description("Destination folder path. Empty means the root")),
		mcp.WithString("convert", mcp.Description("none (default) or html"), mcp.Enum("none", "html")),
		mcp.WithString("conflictBehavior", mcp.Description("fail, replace (default) or rename"),
			mcp.Enum(items.ConflictFail, items.ConflictReplace, items.ConflictRename)),
	), a.uploadText)

	r.add(tools.ToolsetTransfer, mcp.NewTool("downloadText",
		mcp.WithDescription(resources.MustGetToolDescription("downloadText")),
		withDriveID(),
		mcp.WithString("itemId", mcp.Description("File ID")),
		mcp.WithString("path", mcp.Description("File path")),
		mcp.WithString("format", mcp.Description("raw (default), markdown or text"), mcp.Enum("raw", "markdown", "text")),
		mcp.WithNumber("maxBytes", mcp.Description("Largest file to return (default 1 MiB)")),
	), a.downloadText)

	r.add(tools.ToolsetTransfer, mcp.NewTool("downloadFile",
		mcp.WithDescription(resources.MustGetToolDescription("downloadFile")),
		withDriveID(),
		mcp.WithString("itemId", mcp.Description("File ID")),
		mcp.WithString("path", mcp.Description("File path")),
		mcp.WithBoolean("fullSize", mcp.Description("Return images without scaling")),
		mcp.WithNumber("maxWidth", mcp.Description("Largest image width (default 1024)")),
		mcp.WithNumber("maxHeight", mcp.Description("Largest image height (default 768)")),
		mcp.WithNumber("maxBytes", mcp.Description("Largest file to return (default 10 MiB)")),
	), a.downloadFile)
}

// guessContentType picks a MIME type from the file extension, falling back to fallback.
func guessContentType(name, fallback string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		return ct
	}
	return fallback
}

// sendContent uploads source with a single request when it fits the simple
// upload limit and through an upload session otherwise.
func (a *app) sendContent(ctx context.Context, req mcp.CallToolRequest, parent items.ItemRef, name string, source upload.ContentSource, contentType, conflictBehavior, description string) (*graph.DriveItem, string, error) {
	uploadCfg := a.cfg.Upload
	if source.Size() <= uploadCfg.SimpleUploadMax {
		item, err := a.items.Upload(ctx, parent, name, io.NewSectionReader(source, 0, source.Size()), items.UploadOptions{
			ContentType:      contentType,
			ConflictBehavior: conflictBehavior,
		})
		return item, uploadMethodSimple, err
	}

	notifier := utils.NewProgressNotifier(ctx, req)
	item, err := a.items.UploadLarge(ctx, parent, name, source,
		items.SessionOptions{ConflictBehavior: conflictBehavior, Description: description},
		upload.Options{ContentType: contentType, ChunkSize: uploadCfg.ChunkSize},
		notifier.UploadProgress(name))
	return item, uploadMethodSession, err
}

func (a *app) uploadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("uploadFile")
	localPath, err := utils.RequireString(req, "localPath")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := req.GetString("name", filepath.Base(localPath))
	parent := parentRef(req)

	source, err := upload.OpenFileSource(localPath)
	if err != nil {
		return logger.Fail(err, "local_path", localPath)
	}
	defer source.Close()

	contentType := req.GetString("contentType", "")
	if contentType == "" {
		contentType = guessContentType(name, a.cfg.Upload.ContentType)
	}

	logger.LogDebug("Uploading local file",
		"local_path", localPath,
		"name", name,
		"size", units.HumanSize(float64(source.Size())),
		"content_type", contentType)

	item, method, err := a.sendContent(ctx, req, parent, name, source, contentType,
		req.GetString("conflictBehavior", ""), req.GetString("description", ""))
	if err != nil {
		return logger.Fail(err, "parent", parent.String(), "name", name, "method", method)
	}
	return logger.Succeed(uploadResult{
		Item:   newItemView(*item),
		Method: method,
		Size:   units.HumanSize(float64(source.Size())),
	}, "item_id", item.ID, "method", method)
}

// htmlName swaps the extension of name for .html.
func htmlName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ".html"
}

func textContentType(format content.TextFormat) string {
	switch format {
	case content.FormatHTML:
		return "text/html"
	case content.FormatMarkdown:
		return "text/markdown"
	default:
		return "text/plain"
	}
}

func (a *app) uploadText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("uploadText")
	name, err := utils.RequireString(req, "name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("content is required"), nil
	}
	parent := parentRef(req)

	format := content.DetectTextFormat(text)
	switch convert := strings.ToLower(req.GetString("convert", "none")); convert {
	case "", "none":
	case "html":
		var source content.TextFormat
		text, source = content.ToHTML(text)
		name = htmlName(name)
		format = content.FormatHTML
		logger.LogDebug("Converted text to HTML", "source_format", source.String(), "name", name)
	default:
		return utils.ToolResults.NewErrorf("upload text", "invalid convert %q: must be none or html", convert), nil
	}
	contentType := textContentType(format) + "; charset=utf-8"

	data := []byte(text)
	item, method, err := a.sendContent(ctx, req, parent, name, upload.NewBytesSource(data), contentType,
		req.GetString("conflictBehavior", items.ConflictReplace), "")
	if err != nil {
		return logger.Fail(err, "parent", parent.String(), "name", name)
	}
	return logger.Succeed(uploadResult{
		Item:   newItemView(*item),
		Method: method,
		Size:   units.HumanSize(float64(len(data))),
		Format: format.String(),
	}, "item_id", item.ID, "format", format.String())
}

// readLimited reads at most maxBytes from r and fails when there is more.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file is larger than the %s limit", units.HumanSize(float64(maxBytes)))
	}
	return data, nil
}

// isHTML reports whether a downloaded text should be treated as HTML.
func isHTML(contentType, text string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "text/html" {
		return true
	}
	return content.DetectTextFormat(text) == content.FormatHTML
}

func (a *app) downloadText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("downloadText")
	ref, err := targetRef(req)
	if err != nil {
		return utils.ToolResults.NewError("download text", err), nil
	}
	format := strings.ToLower(req.GetString("format", "raw"))
	if format != "raw" && format != "markdown" && format != "text" {
		return utils.ToolResults.NewErrorf("download text", "invalid format %q: must be raw, markdown or text", format), nil
	}

	body, contentType, err := a.items.Download(ctx, ref)
	if err != nil {
		return logger.Fail(err, "ref", ref.String())
	}
	defer body.Close()

	data, err := readLimited(body, int64(req.GetInt("maxBytes", defaultTextMaxBytes)))
	if err != nil {
		return logger.Fail(err, "ref", ref.String())
	}
	text := string(data)
	logging.LogContent(logging.ToolsLogger, slog.LevelDebug, "Downloaded text content", "content", text)

	returned := "raw"
	if format != "raw" && isHTML(contentType, text) {
		switch format {
		case "markdown":
			text, err = content.HTMLToMarkdown(text)
		case "text":
			text, err = content.HTMLToText(text)
		}
		if err != nil {
			return logger.Fail(err, "ref", ref.String(), "format", format)
		}
		returned = format
	}

	return logger.Succeed(map[string]any{
		"contentType": contentType,
		"format":      returned,
		"size":        units.HumanSize(float64(len(data))),
		"content":     text,
	}, "ref", ref.String(), "format", returned)
}

func (a *app) downloadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := utils.NewToolLogger("downloadFile")
	ref, err := targetRef(req)
	if err != nil {
		return utils.ToolResults.NewError("download file", err), nil
	}

	body, contentType, err := a.items.Download(ctx, ref)
	if err != nil {
		return logger.Fail(err, "ref", ref.String())
	}
	defer body.Close()

	data, err := readLimited(body, int64(req.GetInt("maxBytes", defaultFileMaxBytes)))
	if err != nil {
		return logger.Fail(err, "ref", ref.String())
	}
	originalSize := len(data)

	scaled := false
	if strings.HasPrefix(contentType, "image/") && !req.GetBool("fullSize", false) {
		maxWidth := req.GetInt("maxWidth", defaultImageWidth)
		maxHeight := req.GetInt("maxHeight", defaultImageHeight)
		data, scaled, err = content.ScaleImageIfNeeded(data, contentType, maxWidth, maxHeight)
		if err != nil {
			return logger.Fail(err, "ref", ref.String())
		}
	}

	return logger.Succeed(map[string]any{
		"contentType":  contentType,
		"size":         units.HumanSize(float64(len(data))),
		"originalSize": units.HumanSize(float64(originalSize)),
		"scaled":       scaled,
		"data":         content.EncodeDataURI(data, contentType),
	}, "ref", ref.String(), "scaled", scaled)
}
