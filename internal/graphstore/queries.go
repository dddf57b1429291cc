package graphstore

import "context"

// SharingRecord is one row of the read surface consumed by the report
// and dashboard layers: a sharing edge joined to its file, site, and
// owner.
type SharingRecord struct {
	RiskLevel       string
	RiskScore       int
	Source          string
	ItemPath        string
	ItemWebURL      string
	ItemType        string
	SharingType     string
	SharedWith      string
	SharedWithName  string
	SharedWithType  string
	Role            string
	CreatedDateTime string
	GrantedBy       string
	OwnerEmail      string
	SiteName        string
}

// LatestCompletedRun returns the runId of the most recent completed
// ScanRun, or empty when no run has ever completed. Runs stuck in
// "running" (crashed) or marked "failed" are ignored.
func (s *Store) LatestCompletedRun(ctx context.Context) (string, error) {
	rows, err := s.q.Run(ctx, `
		MATCH (r:ScanRun {status: 'completed'})
		RETURN r.runId AS runId
		ORDER BY r.timestamp DESC
		LIMIT 1`,
		nil,
	)
	if err != nil {
		return "", err
	}

	if len(rows) == 0 {
		return "", nil
	}

	runID, _ := rows[0]["runId"].(string)

	return runID, nil
}

// SharingData returns all sharing records observed by the given run,
// highest risk first. This is the contract the reporter builds CSV/PDF
// exports from and the dashboard filters by owner.
func (s *Store) SharingData(ctx context.Context, runID string) ([]SharingRecord, error) {
	rows, err := s.q.Run(ctx, `
		MATCH (f:File)-[s:SHARED_WITH {lastSeenRunId: $runId}]->(u:User)
		MATCH (site:Site)-[:CONTAINS]->(f)
		OPTIONAL MATCH (owner:User)-[:OWNS]->(site)
		RETURN
			s.riskLevel AS riskLevel,
			s.riskScore AS riskScore,
			site.source AS source,
			f.path AS itemPath,
			f.webUrl AS itemWebUrl,
			f.type AS itemType,
			s.sharingType AS sharingType,
			u.email AS sharedWith,
			u.displayName AS sharedWithName,
			s.sharedWithType AS sharedWithType,
			s.role AS role,
			s.createdDateTime AS createdDateTime,
			s.grantedBy AS grantedBy,
			owner.email AS ownerEmail,
			site.name AS siteName
		ORDER BY
			CASE s.riskLevel WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END,
			owner.email, f.path`,
		map[string]any{"runId": runID},
	)
	if err != nil {
		return nil, err
	}

	records := make([]SharingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, SharingRecord{
			RiskLevel:       str(row["riskLevel"]),
			RiskScore:       int(i64(row["riskScore"])),
			Source:          str(row["source"]),
			ItemPath:        str(row["itemPath"]),
			ItemWebURL:      str(row["itemWebUrl"]),
			ItemType:        str(row["itemType"]),
			SharingType:     str(row["sharingType"]),
			SharedWith:      str(row["sharedWith"]),
			SharedWithName:  str(row["sharedWithName"]),
			SharedWithType:  str(row["sharedWithType"]),
			Role:            str(row["role"]),
			CreatedDateTime: str(row["createdDateTime"]),
			GrantedBy:       str(row["grantedBy"]),
			OwnerEmail:      str(row["ownerEmail"]),
			SiteName:        str(row["siteName"]),
		})
	}

	return records, nil
}

// str and i64 convert loosely-typed Bolt record values. Absent or null
// properties come back as nil interfaces.
func str(v any) string {
	s, _ := v.(string)
	return s
}

func i64(v any) int64 {
	n, _ := v.(int64)
	return n
}
