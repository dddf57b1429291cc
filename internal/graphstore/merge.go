package graphstore

import (
	"context"
	"fmt"
	"log/slog"
)

// MergeUser upserts a User node keyed by email.
func (s *Store) MergeUser(ctx context.Context, email, displayName, source string) error {
	_, err := s.q.Run(ctx,
		"MERGE (u:User {email: $email}) SET u.displayName = $name, u.source = $source",
		map[string]any{"email": email, "name": displayName, "source": source},
	)

	return err
}

// MergeSite upserts a Site node keyed by siteId.
func (s *Store) MergeSite(ctx context.Context, siteID, name, webURL, source string) error {
	_, err := s.q.Run(ctx,
		"MERGE (s:Site {siteId: $siteId}) SET s.name = $name, s.webUrl = $url, s.source = $source",
		map[string]any{"siteId": siteID, "name": name, "url": webURL, "source": source},
	)

	return err
}

// MergeFile upserts a File node keyed by (driveId, itemId). This is the
// metadata-only path used for content-only delta changes — sharing edges
// are untouched.
func (s *Store) MergeFile(ctx context.Context, driveID, itemID, path, webURL, fileType string) error {
	_, err := s.q.Run(ctx,
		`MERGE (f:File {driveId: $driveId, itemId: $itemId})
		 SET f.path = $path, f.webUrl = $url, f.type = $type`,
		map[string]any{
			"driveId": driveID,
			"itemId":  itemID,
			"path":    path,
			"url":     webURL,
			"type":    fileType,
		},
	)

	return err
}

// MergeOwns creates the OWNS relationship between a User and a Site.
// Structural; created once, never removed.
func (s *Store) MergeOwns(ctx context.Context, userEmail, siteID string) error {
	_, err := s.q.Run(ctx,
		`MATCH (u:User {email: $email})
		 MATCH (s:Site {siteId: $siteId})
		 MERGE (u)-[:OWNS]->(s)`,
		map[string]any{"email": userEmail, "siteId": siteID},
	)

	return err
}

// PermissionRecord is one classified sharing observation: the item, the
// principal it is shared with, and the classification results. Both
// traversal modes persist observations through MergePermission.
type PermissionRecord struct {
	SiteID   string
	DriveID  string
	ItemID   string
	ItemPath string
	WebURL   string
	ItemType string // "File" or "Folder"

	PrincipalEmail  string // User node key; pseudo-principals for link audiences
	PrincipalName   string
	PrincipalSource string

	SharingType     string
	SharedWithType  string
	Role            string
	RiskLevel       string
	RiskScore       int
	CreatedDateTime string
	GrantedBy       string

	RunID string
}

// MergePermission upserts File, User, SHARED_WITH, CONTAINS, and FOUND in
// a single statement, stamping the edge with the observing run. Safe to
// repeat: every write is a keyed MERGE.
func (s *Store) MergePermission(ctx context.Context, rec *PermissionRecord) error {
	_, err := s.q.Run(ctx, `
		MERGE (f:File {driveId: $driveId, itemId: $itemId})
		SET f.path = $path, f.webUrl = $webUrl, f.type = $fileType
		WITH f
		MERGE (u:User {email: $userEmail})
		SET u.displayName = $userName, u.source = $userSource
		WITH f, u
		MERGE (f)-[s:SHARED_WITH]->(u)
		SET s.sharingType = $sharingType,
		    s.sharedWithType = $sharedWithType,
		    s.role = $role,
		    s.riskLevel = $riskLevel,
		    s.riskScore = $riskScore,
		    s.createdDateTime = $created,
		    s.lastSeenRunId = $runId,
		    s.grantedBy = $grantedBy
		WITH f
		MATCH (site:Site {siteId: $siteId})
		MERGE (site)-[:CONTAINS]->(f)
		WITH f
		MATCH (r:ScanRun {runId: $runId})
		MERGE (r)-[:FOUND]->(f)`,
		map[string]any{
			"driveId":        rec.DriveID,
			"itemId":         rec.ItemID,
			"path":           rec.ItemPath,
			"webUrl":         rec.WebURL,
			"fileType":       rec.ItemType,
			"userEmail":      rec.PrincipalEmail,
			"userName":       rec.PrincipalName,
			"userSource":     rec.PrincipalSource,
			"sharingType":    rec.SharingType,
			"sharedWithType": rec.SharedWithType,
			"role":           rec.Role,
			"riskLevel":      rec.RiskLevel,
			"riskScore":      rec.RiskScore,
			"created":        rec.CreatedDateTime,
			"runId":          rec.RunID,
			"grantedBy":      rec.GrantedBy,
			"siteId":         rec.SiteID,
		},
	)
	if err != nil {
		return fmt.Errorf("graphstore: merging permission for %s/%s: %w", rec.DriveID, rec.ItemID, err)
	}

	return nil
}

// RemoveFilePermissions deletes all SHARED_WITH edges of an item and
// marks the File node deleted. Used when the delta feed reports an item
// as removed; the node itself stays for history.
func (s *Store) RemoveFilePermissions(ctx context.Context, driveID, itemID, runID string) error {
	_, err := s.q.Run(ctx,
		`MATCH (f:File {driveId: $driveId, itemId: $itemId})
		 OPTIONAL MATCH (f)-[s:SHARED_WITH]->()
		 DELETE s
		 SET f.deletedAt = datetime(), f.deletedByRunId = $runId`,
		map[string]any{"driveId": driveID, "itemId": itemID, "runId": runID},
	)
	if err != nil {
		return err
	}

	s.logger.Debug("removed file permissions",
		slog.String("drive_id", driveID),
		slog.String("item_id", itemID),
	)

	return nil
}
