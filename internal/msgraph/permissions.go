package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// permissionResponse mirrors the Graph API permission JSON.
// Unexported — callers use Permission via toPermission() normalization.
type permissionResponse struct {
	ID                    string          `json:"id"`
	Roles                 []string        `json:"roles"`
	Link                  *linkFacet      `json:"link"`
	GrantedToV2           *identitySet    `json:"grantedToV2"`
	GrantedTo             *identitySet    `json:"grantedTo"`
	GrantedToIdentitiesV2 []identitySet   `json:"grantedToIdentitiesV2"`
	GrantedByV2           *identitySet    `json:"grantedByV2"`
	GrantedBy             *identitySet    `json:"grantedBy"`
	InheritedFrom         *inheritedFacet `json:"inheritedFrom"`
	CreatedDateTime       string          `json:"createdDateTime"`
}

type linkFacet struct {
	Scope string `json:"scope"`
	Type  string `json:"type"`
}

type identitySet struct {
	User  *rawIdentity `json:"user"`
	Group *rawIdentity `json:"group"`
}

type rawIdentity struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type inheritedFacet struct {
	DriveID string `json:"driveId"`
	Path    string `json:"path"`
}

type permissionsListResponse struct {
	Value []permissionResponse `json:"value"`
}

// inherited reports whether the permission came from a parent drive or path.
func (p *permissionResponse) inherited() bool {
	return p.InheritedFrom != nil && (p.InheritedFrom.DriveID != "" || p.InheritedFrom.Path != "")
}

// toPermission normalizes a Graph API permission response into our Permission type.
func (p *permissionResponse) toPermission() Permission {
	perm := Permission{
		ID:              p.ID,
		Roles:           p.Roles,
		CreatedDateTime: p.CreatedDateTime,
	}

	if p.Link != nil {
		perm.Link = &Link{Scope: p.Link.Scope, Type: p.Link.Type}
	}

	if p.GrantedToV2 != nil {
		if p.GrantedToV2.Group != nil {
			perm.GrantedGroup = toIdentity(p.GrantedToV2.Group)
		}

		if p.GrantedToV2.User != nil {
			perm.GrantedUser = toIdentity(p.GrantedToV2.User)
		}
	}

	// Legacy grantedTo fallback, seen on older tenants.
	if perm.GrantedUser == nil && p.GrantedTo != nil && p.GrantedTo.User != nil {
		perm.GrantedUser = toIdentity(p.GrantedTo.User)
	}

	for i := range p.GrantedToIdentitiesV2 {
		if u := p.GrantedToIdentitiesV2[i].User; u != nil {
			perm.GrantedIdentities = append(perm.GrantedIdentities, *toIdentity(u))
		}
	}

	grantedBy := p.GrantedByV2
	if grantedBy == nil {
		grantedBy = p.GrantedBy
	}

	if grantedBy != nil && grantedBy.User != nil {
		perm.GrantedBy = *toIdentity(grantedBy.User)
	}

	return perm
}

func toIdentity(r *rawIdentity) *Identity {
	return &Identity{Email: r.Email, DisplayName: r.DisplayName}
}

// ItemPermissions returns the non-inherited permissions of a drive item.
// Permissions inherited from a parent drive or path are filtered out —
// only explicit grants and links on the item itself are relevant.
func (c *Client) ItemPermissions(ctx context.Context, driveID, itemID string) ([]Permission, error) {
	path := fmt.Sprintf("/drives/%s/items/%s/permissions", driveID, itemID)

	resp, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var plr permissionsListResponse
	if err := json.NewDecoder(resp.Body).Decode(&plr); err != nil {
		return nil, fmt.Errorf("msgraph: decoding permissions response: %w", err)
	}

	perms := make([]Permission, 0, len(plr.Value))

	for i := range plr.Value {
		if plr.Value[i].inherited() {
			continue
		}

		perms = append(perms, plr.Value[i].toPermission())
	}

	c.logger.Debug("fetched item permissions",
		slog.String("drive_id", driveID),
		slog.String("item_id", itemID),
		slog.Int("raw_count", len(plr.Value)),
		slog.Int("explicit_count", len(perms)),
	)

	return perms, nil
}
