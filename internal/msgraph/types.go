package msgraph

import "strings"

// ChildCountUnknown indicates the child count was not present in the API response.
const ChildCountUnknown = -1

// Item represents a drive item (file or folder).
// Fields are normalized from the Graph API response — callers never see raw API data.
type Item struct {
	ID            string
	Name          string
	DriveID       string // normalized: lowercase (Graph API casing is inconsistent)
	WebURL        string
	ParentPath    string // raw parentReference.path, e.g. "/drive/root:/Folder/Sub"
	IsFolder      bool
	IsDeleted     bool // delta deletion marker
	SharedChanged bool // delta sharing-changed marker
	ChildCount    int  // ChildCountUnknown if not present
}

// Path returns the item's path relative to the drive root, computed from
// the parentReference path and the item name. Delta responses carry paths
// like "/drive/root:/Folder/Sub"; everything up to and including ":/" is
// the drive prefix.
func (it Item) Path() string {
	parent := it.ParentPath
	if idx := strings.Index(parent, ":/"); idx >= 0 {
		parent = parent[idx+2:]
	} else {
		parent = ""
	}

	if parent != "" {
		return "/" + parent + "/" + it.Name
	}

	return "/" + it.Name
}

// Drive represents a document library or personal drive.
type Drive struct {
	ID         string
	Name       string
	WebURL     string
	OwnerEmail string
	OwnerName  string
}

// User represents a directory user enumerated for the scan.
type User struct {
	ID          string
	DisplayName string
	UPN         string
}

// Site represents a SharePoint site.
type Site struct {
	ID     string
	Name   string
	WebURL string
}

// Identity is a user or group referenced by a permission.
type Identity struct {
	Email       string
	DisplayName string
}

// Link describes a sharing link facet.
type Link struct {
	Scope string // "anonymous", "organization", "users"
	Type  string // "view", "edit"
}

// Permission is a normalized, non-inherited sharing permission on an item.
type Permission struct {
	ID                string
	Roles             []string
	Link              *Link
	GrantedUser       *Identity  // direct grant to a user
	GrantedGroup      *Identity  // direct grant to a group
	GrantedIdentities []Identity // link-scoped specific people
	GrantedBy         Identity
	CreatedDateTime   string // raw RFC3339 string, persisted as-is
}

// driveItemResponse mirrors the Graph API driveItem JSON.
// Unexported — callers use Item via toItem() normalization.
type driveItemResponse struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	WebURL          string        `json:"webUrl"`
	ParentReference *parentRef    `json:"parentReference"`
	Folder          *folderFacet  `json:"folder"`
	Deleted         *deletedFacet `json:"deleted"`
	SharedChanged   bool          `json:"@microsoft.graph.sharedChanged"` //nolint:tagliatelle // Graph API annotation key
}

type parentRef struct {
	ID      string `json:"id"`
	DriveID string `json:"driveId"`
	Path    string `json:"path"`
}

type folderFacet struct {
	ChildCount int `json:"childCount"`
}

type deletedFacet struct {
	State string `json:"state"`
}

// toItem normalizes a Graph API driveItem response into our Item type.
func (d *driveItemResponse) toItem() Item {
	item := Item{
		ID:            d.ID,
		Name:          d.Name,
		WebURL:        d.WebURL,
		IsFolder:      d.Folder != nil,
		IsDeleted:     d.Deleted != nil,
		SharedChanged: d.SharedChanged,
		ChildCount:    ChildCountUnknown,
	}

	// Normalize DriveID to lowercase — Graph API returns inconsistent casing
	// for drive IDs across endpoints.
	if d.ParentReference != nil {
		item.DriveID = strings.ToLower(d.ParentReference.DriveID)
		item.ParentPath = d.ParentReference.Path
	}

	if d.Folder != nil {
		item.ChildCount = d.Folder.ChildCount
	}

	return item
}
