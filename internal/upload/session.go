// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// session.go - Upload session driver.
//
// Complete sends the content of a ContentSource to an upload session URL, one
// range per PUT, strictly in order. Every range except the last must be
// answered with 202 Accepted; the last must be answered with 200 or 201 and the
// created drive item. Anything else stops the upload. Nothing is retried and
// the session's nextExpectedRanges are never consulted, so a failed upload is
// restarted by creating a new session.
//
// Usage Example:
//   driver := upload.NewDriver(graph.NewUploadTransport())
//   item, err := driver.Complete(ctx, session, upload.NewBytesSource(data), upload.Options{})
//   if errors.Is(err, upload.ErrIncompleteUpload) {
//       // every range was accepted but OneDrive created nothing
//   }

package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	units "github.com/docker/go-units"

	"github.com/gebl/onedrive-mcp-server/internal/graph"
	httputils "github.com/gebl/onedrive-mcp-server/internal/http"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

const (
	// DefaultChunkSize is 320 KiB. OneDrive requires range sizes to be a multiple of it.
	DefaultChunkSize int64 = 327680

	// DefaultContentType is sent when no content type is configured.
	DefaultContentType = "application/octet-stream"
)

// Session is a pending upload created by createUploadSession.
type Session struct {
	UploadURL          string     `json:"uploadUrl"`
	ExpirationDateTime *time.Time `json:"expirationDateTime,omitempty"`
	NextExpectedRanges []string   `json:"nextExpectedRanges,omitempty"`
}

// Options configures a single upload. Zero values take the defaults.
type Options struct {
	ContentType string
	ChunkSize   int64
}

func (o Options) resolve() (Options, error) {
	if o.ChunkSize < 0 {
		return o, invalidConfig("chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ContentType == "" {
		o.ContentType = DefaultContentType
	}
	return o, nil
}

// ProgressFunc is called after each range is accepted with the bytes sent so far.
type ProgressFunc func(sent, total int64)

// Driver sends upload session ranges through an injected transport.
type Driver struct {
	transport httputils.HTTPRequestFunc

	// Progress, when set, is called after every accepted range.
	Progress ProgressFunc

	now func() time.Time
}

// NewDriver creates a driver that issues its PUT requests through transport.
func NewDriver(transport httputils.HTTPRequestFunc) *Driver {
	return &Driver{transport: transport, now: time.Now}
}

// Complete uploads source to session and returns the drive item OneDrive created.
//
// A 202 on the last range yields ErrIncompleteUpload. Any status outside the
// protocol yields an *UnexpectedStatusError. Transport errors are returned as is.
func (d *Driver) Complete(ctx context.Context, session *Session, source ContentSource, opts Options) (*graph.DriveItem, error) {
	logger := logging.UploadLogger

	if d.transport == nil {
		return nil, invalidConfig("no transport configured")
	}
	if session == nil || session.UploadURL == "" {
		return nil, invalidConfig("upload session has no upload URL")
	}
	if source == nil {
		return nil, invalidConfig("no content source")
	}
	if session.ExpirationDateTime != nil && !session.ExpirationDateTime.IsZero() && !d.now().Before(*session.ExpirationDateTime) {
		return nil, invalidConfig("upload session expired at %s", session.ExpirationDateTime.Format(time.RFC3339))
	}
	opts, err := opts.resolve()
	if err != nil {
		return nil, err
	}

	plan, err := Plan(source.Size(), opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	count := plan.Len()
	logger.Info("Starting upload session",
		"size", units.HumanSize(float64(plan.Total())),
		"chunk_size", units.BytesSize(float64(opts.ChunkSize)),
		"ranges", count,
		"content_type", opts.ContentType)

	var sent int64
	for i := 0; i < count; i++ {
		r := plan.At(i)
		last := i == count-1

		resp, err := d.transport(ctx, http.MethodPut, session.UploadURL, io.NewSectionReader(source, r.Start, r.Length()), map[string]string{
			"Content-Type":   opts.ContentType,
			"Content-Length": strconv.FormatInt(r.Length(), 10),
			"Content-Range":  r.HeaderValue(),
		})
		if err != nil {
			logger.Debug("Range request failed", "range", r.HeaderValue(), "error", err)
			return nil, err
		}

		logger.Debug("Range response", "range", r.HeaderValue(), "index", i+1, "ranges", count, "status", resp.StatusCode)

		switch {
		case resp.StatusCode == http.StatusAccepted && !last:
			drain(resp)
			sent += r.Length()
			if d.Progress != nil {
				d.Progress(sent, plan.Total())
			}

		case resp.StatusCode == http.StatusAccepted && last:
			drain(resp)
			logger.Warn("Final range accepted without creating an item", "ranges", count)
			return nil, ErrIncompleteUpload

		case (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated) && last:
			var item graph.DriveItem
			err := httputils.WithAutoCleanup(resp, func(resp *http.Response) error {
				return json.NewDecoder(resp.Body).Decode(&item)
			})
			if err != nil {
				return nil, fmt.Errorf("failed to decode uploaded drive item: %w", err)
			}
			if d.Progress != nil {
				d.Progress(plan.Total(), plan.Total())
			}
			logger.Info("Upload session completed", "item_id", item.ID, "size", units.HumanSize(float64(plan.Total())))
			return &item, nil

		default:
			drain(resp)
			logger.Warn("Unexpected status during upload", "range", r.HeaderValue(), "status", resp.StatusCode)
			return nil, &UnexpectedStatusError{Method: http.MethodPut, URL: session.UploadURL, StatusCode: resp.StatusCode}
		}
	}

	// Unreachable: the final range always returns above.
	return nil, ErrIncompleteUpload
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
