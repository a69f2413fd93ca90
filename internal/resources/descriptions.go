// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package resources

import (
	"fmt"
	"maps"
)

// toolDescriptions contains all tool descriptions as Go string constants
var toolDescriptions = map[string]string{
	"getAuthStatus": "Check authentication status including token state (VALID, EXPIRING, EXPIRED or MISSING), expiry and refresh availability. Shows if you're logged in to OneDrive.",

	"refreshToken": "Refresh the current authentication token to extend the session without full re-authentication.",

	"initiateAuth": "Start the OAuth authentication flow. Returns a URL to visit in your browser to sign in with Microsoft. The server waits for the callback on the configured redirect URI.\n\nInitial setup workflow: 1. Start server 2. Check status with getAuthStatus 3. Authenticate with initiateAuth 4. Visit the provided URL in a browser 5. The server receives the callback and stores the tokens. Always explain next steps to the user.",

	"clearAuth": "Logout by clearing all stored authentication tokens. Requires re-authentication for future OneDrive operations.",

	"listDrives": "List every drive the signed-in user can access: their OneDrive plus any document libraries. Returns id, name, driveType, owner and quota (with human readable sizes) as a JSON array.\n\nUse the returned id as driveId in other tools to work outside the user's own OneDrive. Leave driveId empty to use the user's OneDrive.",

	"getDrive": "Get one drive. With no arguments returns the signed-in user's OneDrive. Otherwise pass exactly one of driveId, userId, groupId or siteId to fetch that drive, a user's OneDrive, a group's library or a SharePoint site's default library.\n\nRESPONSE FORMAT: JSON object with id, name, driveType, webUrl, owner and quota (total, used, remaining, deleted, state).",

	"getSpecialFolder": "Get a well-known folder of the user's OneDrive by name: documents, photos, cameraroll, approot or music. Returns the folder as a drive item, including its id and path.",

	"listShared": "List items other people have shared with the signed-in user. Items the server's path permissions hide are left out.",

	"listRecent": "List the signed-in user's recently used files. Items the server's path permissions hide are left out.",

	"getItem": "Get the metadata of a file or folder, addressed by itemId or by path (e.g. \"/Documents/report.docx\"). Returns id, name, size, path, timestamps, and file or folder details.\n\nItems can always be addressed by path; use itemId when you already have one from a listing.",

	"listChildren": "List the files and folders inside a folder, addressed by itemId or path. An empty path lists the drive root.\n\n**OPTIONS:**\n- top: page size (1-999)\n- orderBy: e.g. \"name\" or \"lastModifiedDateTime desc\"\n- all: follow paging until every child is listed\n- pattern: glob on the item name, e.g. \"*.pdf\" or \"report-{2023,2024}*\"\n\nItems the server's path permissions hide are left out.",

	"createFolder": "Create a folder inside a parent folder (parentId or parentPath; empty means the root).\n\n**NAME RESTRICTIONS:** Cannot contain: \" * : < > ? / \\ |, cannot be a reserved name such as CON or desktop.ini, and cannot end with a space or period.\n**CONFLICTS:** conflictBehavior is fail (default), replace or rename. With fail, an existing name returns an error naming the item.",

	"deleteItem": "Delete a file or folder by itemId or path. Deleted items go to the OneDrive recycle bin.\n\nAlways confirm destructive operations with the user before proceeding.",

	"renameItem": "Rename a file or folder, optionally updating its description. Fails if the new name is already used in the same folder.",

	"moveItem": "Move a file or folder into another folder (destinationId or destinationPath), optionally giving it a new name. Moving across drives is not supported by OneDrive; use copyItem instead.",

	"copyItem": "Copy a file or folder into another folder, optionally under a new name. Copies run asynchronously: the tool returns a monitor URL and, with wait=true, polls it until the copy completes or fails.",

	"createLink": "Create a sharing link for an item.\n\n**TYPES:** view (read-only), edit (read-write), embed (embeddable, personal accounts only).\n**SCOPES:** anonymous (anyone with the link), organization (people in your organization), users (specific people). Omit scope for the tenant default.\n\nReturns the permission id, roles and link URL.",

	"uploadFile": "Upload a local file into a OneDrive folder (parentId or parentPath). Files up to the configured simple upload limit are sent in one request; larger files use an upload session that sends the file in sequential ranges and reports progress.\n\n**CONFLICTS:** conflictBehavior is fail, replace or rename.\n**RESPONSE:** The created drive item, the upload method used and the human readable size.",

	"uploadText": "Create or replace a text file from inline content. With convert=html, Markdown or plain text is converted to a standalone HTML document (title taken from the first heading) and stored with a .html name.\n\n**FORMAT DETECTION:** HTML content is stored as-is; Markdown is detected from headings, lists, code fences, tables and links.",

	"downloadText": "Download a text file and return its content. format controls the result:\n- raw (default): the file as stored\n- markdown: HTML converted to Markdown\n- text: HTML converted to plain text with aligned tables\n\nNon-HTML files are returned raw whatever the format. Files larger than maxBytes are refused.",

	"downloadFile": "Download any file and return it base64 encoded with its MIME type. Images are scaled down to fit maxWidth x maxHeight (default 1024x768) unless fullSize is true. Files larger than maxBytes are refused.",
}

// GetToolDescription returns the description for a specific tool
func GetToolDescription(toolName string) (string, error) {
	desc, exists := toolDescriptions[toolName]
	if !exists {
		return "", fmt.Errorf("description not found for tool: %s", toolName)
	}
	return desc, nil
}

// MustGetToolDescription returns the description for a tool or panics if not found
// This should only be used during server initialization where we want to fail fast
func MustGetToolDescription(toolName string) string {
	desc, exists := toolDescriptions[toolName]
	if !exists {
		panic(fmt.Sprintf("Tool description not found: %s", toolName))
	}
	return desc
}

// GetAllDescriptions returns a copy of all tool descriptions
func GetAllDescriptions() map[string]string {
	return maps.Clone(toolDescriptions)
}
