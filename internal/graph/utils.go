// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// utils.go - Input validation and path helpers for Graph endpoints.
//
// Item IDs and paths end up inside request URLs, so they are checked or escaped
// before use.
//
// Usage Example:
//   id, err := graph.SanitizeItemID(itemID, "itemID")
//   if err != nil {
//       return nil, err
//   }
//
//   endpoint := "/me/drive/root:" + graph.EscapePath("/Documents/Q1 report.docx")

package graph

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

const maxIDLength = 256

// SanitizeItemID validates a drive or item ID to prevent path injection.
// Business IDs look like "01BYE5RZ6QN3ZWBTUFOFD3GSPGOHDJD36K", personal ones
// like "D4648F06C91D9D3D!54927".
func SanitizeItemID(id, idType string) (string, error) {
	sanitized := strings.TrimSpace(id)
	if sanitized == "" {
		return "", fmt.Errorf("%s cannot be empty", idType)
	}
	if len(sanitized) > maxIDLength {
		logging.GraphLogger.Debug("ID too long", "id_type", idType, "length", len(sanitized))
		return "", fmt.Errorf("%s is too long", idType)
	}
	for _, r := range sanitized {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '!', r == '_', r == '.':
		default:
			logging.GraphLogger.Debug("Invalid character in ID", "id_type", idType, "char", string(r))
			return "", fmt.Errorf("%s contains invalid characters", idType)
		}
	}
	return sanitized, nil
}

// NormalizePath returns path with a single leading slash and no trailing slash.
// The drive root is "/".
func NormalizePath(path string) string {
	path = strings.TrimSpace(strings.ReplaceAll(path, "\\", "/"))
	parts := strings.Split(path, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			kept = append(kept, p)
		}
	}
	return "/" + strings.Join(kept, "/")
}

// EscapePath normalizes path and escapes each segment for use after "root:".
func EscapePath(path string) string {
	normalized := NormalizePath(path)
	if normalized == "/" {
		return normalized
	}
	segments := strings.Split(strings.TrimPrefix(normalized, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segments, "/")
}

var reservedNames = map[string]bool{
	".lock": true, "CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM0": true, "COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT0": true, "LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
	"desktop.ini": true,
}

// ValidateItemName rejects names OneDrive refuses to store.
func ValidateItemName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("item name cannot be empty")
	}
	if i := strings.IndexAny(name, `"*:<>?/\|`); i >= 0 {
		return fmt.Errorf("item name %q contains illegal character %q", name, name[i])
	}
	if strings.HasPrefix(name, "~$") || strings.Contains(name, "_vti_") {
		return fmt.Errorf("item name %q uses a reserved pattern", name)
	}
	base := name
	if dot := strings.Index(name, "."); dot > 0 {
		base = name[:dot]
	}
	if reservedNames[name] || reservedNames[strings.ToUpper(base)] {
		return fmt.Errorf("item name %q is reserved", name)
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") || strings.HasPrefix(name, " ") {
		return fmt.Errorf("item name %q cannot start with a space or end with a space or period", name)
	}
	return nil
}
