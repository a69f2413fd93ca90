// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// models.go - OneDrive resource representations returned by the Graph REST API.
//
// Only the fields the server reads or reports are modelled; unknown JSON fields
// are ignored on decode.

package graph

import "time"

// Identity is a user, application or device reference.
type Identity struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// IdentitySet groups the identities attached to an action.
type IdentitySet struct {
	User        *Identity `json:"user,omitempty"`
	Application *Identity `json:"application,omitempty"`
	Device      *Identity `json:"device,omitempty"`
	Group       *Identity `json:"group,omitempty"`
}

// DisplayName returns the first non-empty display name in the set.
func (s *IdentitySet) DisplayName() string {
	if s == nil {
		return ""
	}
	for _, id := range []*Identity{s.User, s.Group, s.Application, s.Device} {
		if id != nil && id.DisplayName != "" {
			return id.DisplayName
		}
	}
	return ""
}

// Quota reports storage usage for a drive, in bytes.
type Quota struct {
	Total     int64  `json:"total"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
	Deleted   int64  `json:"deleted"`
	State     string `json:"state,omitempty"`
}

// Drive is a top-level OneDrive or document library.
type Drive struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name,omitempty"`
	Description          string       `json:"description,omitempty"`
	DriveType            string       `json:"driveType,omitempty"`
	WebURL               string       `json:"webUrl,omitempty"`
	Owner                *IdentitySet `json:"owner,omitempty"`
	Quota                *Quota       `json:"quota,omitempty"`
	CreatedDateTime      *time.Time   `json:"createdDateTime,omitempty"`
	LastModifiedDateTime *time.Time   `json:"lastModifiedDateTime,omitempty"`
}

// ItemReference points at a drive item, usually a parent folder.
type ItemReference struct {
	DriveID   string `json:"driveId,omitempty"`
	DriveType string `json:"driveType,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Path      string `json:"path,omitempty"`
}

// Hashes carries the content hashes OneDrive computes for files.
type Hashes struct {
	QuickXorHash string `json:"quickXorHash,omitempty"`
	SHA1Hash     string `json:"sha1Hash,omitempty"`
	SHA256Hash   string `json:"sha256Hash,omitempty"`
}

// FileFacet is present on items that are files.
type FileFacet struct {
	MimeType string  `json:"mimeType,omitempty"`
	Hashes   *Hashes `json:"hashes,omitempty"`
}

// FolderFacet is present on items that are folders.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// SpecialFolderFacet names the well-known folder an item represents.
type SpecialFolderFacet struct {
	Name string `json:"name,omitempty"`
}

// DeletedFacet is present on items in the recycle bin.
type DeletedFacet struct {
	State string `json:"state,omitempty"`
}

// DriveItem is a file, folder or other item stored in a drive.
type DriveItem struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name,omitempty"`
	Description          string              `json:"description,omitempty"`
	Size                 int64               `json:"size,omitempty"`
	ETag                 string              `json:"eTag,omitempty"`
	CTag                 string              `json:"cTag,omitempty"`
	WebURL               string              `json:"webUrl,omitempty"`
	CreatedBy            *IdentitySet        `json:"createdBy,omitempty"`
	LastModifiedBy       *IdentitySet        `json:"lastModifiedBy,omitempty"`
	CreatedDateTime      *time.Time          `json:"createdDateTime,omitempty"`
	LastModifiedDateTime *time.Time          `json:"lastModifiedDateTime,omitempty"`
	ParentReference      *ItemReference      `json:"parentReference,omitempty"`
	File                 *FileFacet          `json:"file,omitempty"`
	Folder               *FolderFacet        `json:"folder,omitempty"`
	RemoteItem           *DriveItem          `json:"remoteItem,omitempty"`
	Deleted              *DeletedFacet       `json:"deleted,omitempty"`
	SpecialFolder        *SpecialFolderFacet `json:"specialFolder,omitempty"`
	DownloadURL          string              `json:"@microsoft.graph.downloadUrl,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (i *DriveItem) IsFolder() bool {
	return i.Folder != nil
}

// Path returns the item's path relative to the drive root, e.g. "/Documents/report.docx".
// Items without a parent reference path are treated as living at the root.
func (i *DriveItem) Path() string {
	if i.ParentReference == nil || i.ParentReference.Path == "" {
		if i.Name == "" || i.Name == "root" {
			return "/"
		}
		return "/" + i.Name
	}
	parent := i.ParentReference.Path
	// Graph reports parent paths as /drive/root: or /drives/{id}/root:/sub
	if idx := indexRootColon(parent); idx >= 0 {
		parent = parent[idx+len("root:"):]
	}
	if parent == "" || parent == "/" {
		return "/" + i.Name
	}
	return parent + "/" + i.Name
}

func indexRootColon(path string) int {
	for j := 0; j+5 <= len(path); j++ {
		if path[j:j+5] == "root:" {
			return j
		}
	}
	return -1
}

// DriveItemCollection is a page of drive items.
type DriveItemCollection struct {
	Value    []DriveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink,omitempty"`
}

// SharingLink describes a link that grants access to an item.
type SharingLink struct {
	Type   string `json:"type,omitempty"`
	Scope  string `json:"scope,omitempty"`
	WebURL string `json:"webUrl,omitempty"`
}

// Permission is a sharing permission on an item.
type Permission struct {
	ID    string       `json:"id"`
	Roles []string     `json:"roles,omitempty"`
	Link  *SharingLink `json:"link,omitempty"`
}
