// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// image.go - Image scaling for downloaded files.
//
// Images returned to MCP clients are base64 encoded, so large photos are scaled
// down before encoding. Data that is not a decodable JPEG, PNG or GIF is
// returned unchanged.
//
// Usage Example:
//   scaled, wasScaled, err := content.ScaleImageIfNeeded(data, "image/jpeg", 1024, 768)
//   if err != nil {
//       // Handle error
//   }

package content

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"

	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

// ScaleImageIfNeeded scales an image down to fit within maxWidth x maxHeight,
// keeping its aspect ratio. It returns the original data and false when the
// image already fits or cannot be processed.
func ScaleImageIfNeeded(imageData []byte, contentType string, maxWidth, maxHeight int) ([]byte, bool, error) {
	logger := logging.ContentLogger

	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, false, fmt.Errorf("maximum image dimensions must be positive, got %dx%d", maxWidth, maxHeight)
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !strings.HasPrefix(contentType, "image/") {
		return imageData, false, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		logger.Debug("Failed to decode image for scaling", "content_type", contentType, "error", err)
		return imageData, false, nil
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxWidth && height <= maxHeight {
		logger.Debug("Image size within limits, no scaling needed", "width", width, "height", height, "max_width", maxWidth, "max_height", maxHeight)
		return imageData, false, nil
	}

	scale := min(float64(maxWidth)/float64(width), float64(maxHeight)/float64(height))
	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch contentType {
	case "image/jpeg", "image/jpg":
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85})
	case "image/png":
		err = png.Encode(&buf, scaled)
	case "image/gif":
		err = gif.Encode(&buf, scaled, nil)
	default:
		logger.Debug("Unsupported image format for scaling", "content_type", contentType)
		return imageData, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode scaled %s: %w", contentType, err)
	}

	logger.Debug("Scaled image",
		"original_bytes", len(imageData),
		"scaled_bytes", buf.Len(),
		"original_width", width,
		"original_height", height,
		"new_width", newWidth,
		"new_height", newHeight)
	return buf.Bytes(), true, nil
}

// EncodeDataURI encodes data as a base64 data URI.
func EncodeDataURI(data []byte, contentType string) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
