package scan

import (
	"context"
	"log/slog"

	"github.com/tonimelisma/sharegraph-go/internal/classify"
	"github.com/tonimelisma/sharegraph-go/internal/graphstore"
	"github.com/tonimelisma/sharegraph-go/internal/msgraph"
)

// itemInfo carries the item fields both traversal modes resolve before
// classifying its permissions.
type itemInfo struct {
	ItemID   string
	Path     string
	WebURL   string
	ItemType string // "File" or "Folder"
}

func itemType(isFolder bool) string {
	if isFolder {
		return "Folder"
	}

	return "File"
}

// persistPermissions classifies each permission of an item and upserts
// the resulting sharing records. The owner's own Owner grant on their own
// item is not a sharing fact and is skipped. Returns the number of edges
// written. This is the single funnel both the walker and the delta
// consumer go through, so classification is identical across modes.
func persistPermissions(
	ctx context.Context,
	store GraphWriter,
	t Target,
	info itemInfo,
	perms []msgraph.Permission,
	tenantDomain, runID string,
	logger *slog.Logger,
) (int, error) {
	count := 0

	for i := range perms {
		perm := &perms[i]

		sharingType := classify.SharingType(perm)
		aud := classify.SharedWith(perm, tenantDomain)
		role := classify.Role(perm)
		risk := classify.RiskLevel(sharingType, aud.Type, info.Path)

		// The owner's own grant on their own item is not a share.
		if role == "Owner" && aud.Label == t.OwnerEmail {
			continue
		}

		grantedBy := classify.GrantedBy(perm)
		if grantedBy == "" {
			grantedBy = t.OwnerEmail
		}

		recipients := len(perm.GrantedIdentities)
		if recipients < 1 {
			recipients = 1
		}

		rec := &graphstore.PermissionRecord{
			SiteID:   t.SiteID,
			DriveID:  t.DriveID,
			ItemID:   info.ItemID,
			ItemPath: info.Path,
			WebURL:   info.WebURL,
			ItemType: info.ItemType,

			PrincipalEmail:  classify.PrincipalEmail(sharingType, aud),
			PrincipalName:   aud.Label,
			PrincipalSource: aud.Type,

			SharingType:     sharingType,
			SharedWithType:  aud.Type,
			Role:            role,
			RiskLevel:       risk,
			RiskScore:       classify.RiskScore(aud.Type, sharingType, info.Path, role, info.ItemType, recipients),
			CreatedDateTime: perm.CreatedDateTime,
			GrantedBy:       grantedBy,

			RunID: runID,
		}

		if err := store.MergePermission(ctx, rec); err != nil {
			return count, err
		}

		logger.Debug("persisted sharing edge",
			slog.String("path", info.Path),
			slog.String("principal", rec.PrincipalEmail),
			slog.String("risk", risk),
		)

		count++
	}

	return count, nil
}
