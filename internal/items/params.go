// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package items

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gebl/onedrive-mcp-server/internal/upload"
)

// Conflict behaviours accepted by OneDrive when a name is already taken.
const (
	ConflictFail    = "fail"
	ConflictReplace = "replace"
	ConflictRename  = "rename"

	conflictBehaviorKey = "@microsoft.graph.conflictBehavior"
)

// ChildrenOptions controls a children listing.
type ChildrenOptions struct {
	Top     int    // Page size, 0 for the Graph default
	OrderBy string // e.g. "name" or "lastModifiedDateTime desc"
	All     bool   // Follow nextLink until every child is listed
}

// FolderOptions controls folder creation.
type FolderOptions struct {
	Description      string
	ConflictBehavior string
}

// UploadOptions controls a simple upload.
type UploadOptions struct {
	ContentType      string
	ConflictBehavior string
}

// SessionOptions controls upload session creation.
type SessionOptions struct {
	ConflictBehavior string
	Description      string
}

// Params are the query, header and body parameters of one request.
type Params struct {
	Query   url.Values
	Headers map[string]string
	Body    map[string]any
}

// Apply appends the query parameters to endpoint.
func (p Params) Apply(endpoint string) string {
	if len(p.Query) == 0 {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + p.Query.Encode()
}

func validateConflictBehavior(behavior string) error {
	switch behavior {
	case "", ConflictFail, ConflictReplace, ConflictRename:
		return nil
	}
	return fmt.Errorf("invalid conflict behavior %q: must be one of fail, replace, rename", behavior)
}

// ChildrenParams maps ChildrenOptions onto $top and $orderby.
func ChildrenParams(o ChildrenOptions) (Params, error) {
	if o.Top < 0 || o.Top > 999 {
		return Params{}, fmt.Errorf("top must be between 0 and 999, got %d", o.Top)
	}
	p := Params{Query: url.Values{}}
	if o.Top > 0 {
		p.Query.Set("$top", strconv.Itoa(o.Top))
	}
	if o.OrderBy != "" {
		p.Query.Set("$orderby", o.OrderBy)
	}
	return p, nil
}

// FolderParams builds the body that creates a folder named name.
func FolderParams(name string, o FolderOptions) (Params, error) {
	if err := validateConflictBehavior(o.ConflictBehavior); err != nil {
		return Params{}, err
	}
	body := map[string]any{
		"name":   name,
		"folder": map[string]any{},
	}
	if o.Description != "" {
		body["description"] = o.Description
	}
	behavior := o.ConflictBehavior
	if behavior == "" {
		behavior = ConflictFail
	}
	body[conflictBehaviorKey] = behavior
	return Params{Body: body}, nil
}

// UploadParams maps UploadOptions onto the conflict query and Content-Type header.
func UploadParams(o UploadOptions) (Params, error) {
	if err := validateConflictBehavior(o.ConflictBehavior); err != nil {
		return Params{}, err
	}
	contentType := o.ContentType
	if contentType == "" {
		contentType = upload.DefaultContentType
	}
	p := Params{
		Query:   url.Values{},
		Headers: map[string]string{"Content-Type": contentType},
	}
	if o.ConflictBehavior != "" {
		p.Query.Set(conflictBehaviorKey, o.ConflictBehavior)
	}
	return p, nil
}

// SessionParams builds the createUploadSession body for name.
func SessionParams(name string, o SessionOptions) (Params, error) {
	if err := validateConflictBehavior(o.ConflictBehavior); err != nil {
		return Params{}, err
	}
	item := map[string]any{"name": name}
	if o.ConflictBehavior != "" {
		item[conflictBehaviorKey] = o.ConflictBehavior
	}
	if o.Description != "" {
		item["description"] = o.Description
	}
	return Params{Body: map[string]any{"item": item}}, nil
}

// RenameParams builds the PATCH body for a rename.
func RenameParams(name, description string) Params {
	body := map[string]any{"name": name}
	if description != "" {
		body["description"] = description
	}
	return Params{Body: body}
}

// MoveParams builds the PATCH body that moves an item under destination.
func MoveParams(destination ItemRef, newName string) (Params, error) {
	parent, err := destination.parentReference()
	if err != nil {
		return Params{}, err
	}
	body := map[string]any{"parentReference": parent}
	if newName != "" {
		body["name"] = newName
	}
	return Params{Body: body}, nil
}

// CopyParams builds the copy body for destination.
func CopyParams(destination ItemRef, newName string) (Params, error) {
	return MoveParams(destination, newName)
}

// Link types and scopes accepted by createLink.
var (
	LinkTypes  = []string{"view", "edit", "embed"}
	LinkScopes = []string{"anonymous", "organization", "users"}
)

// LinkParams builds the createLink body.
func LinkParams(linkType, scope string) (Params, error) {
	if !slices.Contains(LinkTypes, linkType) {
		return Params{}, fmt.Errorf("invalid link type %q: must be one of %s", linkType, strings.Join(LinkTypes, ", "))
	}
	body := map[string]any{"type": linkType}
	if scope != "" {
		if !slices.Contains(LinkScopes, scope) {
			return Params{}, fmt.Errorf("invalid link scope %q: must be one of %s", scope, strings.Join(LinkScopes, ", "))
		}
		body["scope"] = scope
	}
	return Params{Body: body}, nil
}
