// Package scan implements the synchronization engine: the full-crawl
// walker, the delta consumer, and the orchestrator that decides between
// them and manages the scan-run lifecycle.
package scan

import (
	"context"
	"time"

	"github.com/tonimelisma/sharegraph-go/internal/graphstore"
	"github.com/tonimelisma/sharegraph-go/internal/msgraph"
)

// API is the slice of the Graph client the scan engine consumes.
// Implemented by *msgraph.Client; tests inject mocks.
type API interface {
	TenantDomain(ctx context.Context) (string, error)
	ListUsers(ctx context.Context) ([]msgraph.User, error)
	UserDrive(ctx context.Context, userID string) (*msgraph.Drive, error)
	ListSites(ctx context.Context) ([]msgraph.Site, error)
	SiteDrives(ctx context.Context, siteID string) ([]msgraph.Drive, error)
	ListChildren(ctx context.Context, driveID, parentID string) ([]msgraph.Item, error)
	ItemPermissions(ctx context.Context, driveID, itemID string) ([]msgraph.Permission, error)
	DeltaAll(ctx context.Context, driveID, token string) ([]msgraph.Item, string, error)
	SeedDeltaLink(ctx context.Context, driveID string) (string, error)
}

// GraphWriter is the slice of the persistence layer the scan engine
// consumes. Implemented by *graphstore.Store; tests inject mocks.
type GraphWriter interface {
	MergeUser(ctx context.Context, email, displayName, source string) error
	MergeSite(ctx context.Context, siteID, name, webURL, source string) error
	MergeFile(ctx context.Context, driveID, itemID, path, webURL, fileType string) error
	MergeOwns(ctx context.Context, userEmail, siteID string) error
	MergePermission(ctx context.Context, rec *graphstore.PermissionRecord) error
	RemoveFilePermissions(ctx context.Context, driveID, itemID, runID string) error

	CreateScanRun(ctx context.Context, scanType string) (string, error)
	FinishScanRun(ctx context.Context, runID, status string) error
	LastFullScanTime(ctx context.Context) (time.Time, error)
	HasDeltaStates(ctx context.Context) (bool, error)
	SaveDeltaLink(ctx context.Context, driveID, deltaLink string) error
	DeltaLink(ctx context.Context, driveID string) (string, error)
	SweepStaleEdges(ctx context.Context, runID string) (int, error)
}

// Target identifies one drive traversal: the drive, the Site node it
// hangs under, and the owner whose own Owner grant is skipped.
type Target struct {
	DriveID    string
	SiteID     string
	OwnerEmail string
}

// Summary reports the outcome of one orchestrator run.
type Summary struct {
	RunID       string
	ScanType    string
	SharedItems int
	Drives      int
	SweptEdges  int
}
