// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package items

import (
	"fmt"
	"net/url"
	"path"

	"github.com/gebl/onedrive-mcp-server/internal/drives"
	"github.com/gebl/onedrive-mcp-server/internal/graph"
)

// ItemRef addresses a drive item by ID or by path. ItemID wins when both are
// set; neither means the drive root. An empty DriveID means the signed-in
// user's drive.
type ItemRef struct {
	DriveID string
	ItemID  string
	Path    string
}

func (r ItemRef) String() string {
	drive := r.DriveID
	if drive == "" {
		drive = "me"
	}
	if r.ItemID != "" {
		return fmt.Sprintf("%s:%s", drive, r.ItemID)
	}
	return fmt.Sprintf("%s:%s", drive, graph.NormalizePath(r.Path))
}

// Endpoint returns the Graph endpoint of the item, optionally followed by an action
// such as "children" or "content".
func (r ItemRef) Endpoint(action string) (string, error) {
	base, err := drives.DriveBase(r.DriveID)
	if err != nil {
		return "", err
	}

	if r.ItemID != "" {
		if _, err := graph.SanitizeItemID(r.ItemID, "item ID"); err != nil {
			return "", err
		}
		endpoint := base + "/items/" + r.ItemID
		if action != "" {
			endpoint += "/" + action
		}
		return endpoint, nil
	}

	escaped := graph.EscapePath(r.Path)
	if escaped == "/" {
		endpoint := base + "/root"
		if action != "" {
			endpoint += "/" + action
		}
		return endpoint, nil
	}
	endpoint := base + "/root:" + escaped
	if action != "" {
		endpoint += ":/" + action
	}
	return endpoint, nil
}

// ChildEndpoint returns the endpoint of a child named name, followed by action.
// The child need not exist yet, which is how uploads address new files.
func (r ItemRef) ChildEndpoint(name, action string) (string, error) {
	if err := graph.ValidateItemName(name); err != nil {
		return "", err
	}
	base, err := drives.DriveBase(r.DriveID)
	if err != nil {
		return "", err
	}

	var endpoint string
	if r.ItemID != "" {
		if _, err := graph.SanitizeItemID(r.ItemID, "item ID"); err != nil {
			return "", err
		}
		endpoint = base + "/items/" + r.ItemID + ":/" + url.PathEscape(name) + ":"
	} else {
		endpoint = base + "/root:" + graph.EscapePath(path.Join(graph.NormalizePath(r.Path), name)) + ":"
	}
	if action != "" {
		endpoint += "/" + action
	}
	return endpoint, nil
}

// parentReference describes r as the target folder of a move or copy.
func (r ItemRef) parentReference() (map[string]any, error) {
	ref := map[string]any{}
	if r.DriveID != "" {
		if _, err := graph.SanitizeItemID(r.DriveID, "drive ID"); err != nil {
			return nil, err
		}
		ref["driveId"] = r.DriveID
	}
	if r.ItemID != "" {
		if _, err := graph.SanitizeItemID(r.ItemID, "destination ID"); err != nil {
			return nil, err
		}
		ref["id"] = r.ItemID
		return ref, nil
	}
	prefix := "/drive/root:"
	if r.DriveID != "" {
		prefix = "/drives/" + r.DriveID + "/root:"
	}
	normalized := graph.NormalizePath(r.Path)
	if normalized == "/" {
		ref["path"] = prefix
	} else {
		ref["path"] = prefix + normalized
	}
	return ref, nil
}
