package scan

import (
	"context"
	"sync"
	"time"

	"github.com/tonimelisma/sharegraph-go/internal/graphstore"
	"github.com/tonimelisma/sharegraph-go/internal/msgraph"
)

// mockAPI is a canned-response API implementation. Error fields inject
// failures for specific calls.
type mockAPI struct {
	mu sync.Mutex

	tenantDomain string
	users        []msgraph.User
	drives       map[string]*msgraph.Drive // userID -> drive
	sites        []msgraph.Site
	siteDrives   map[string][]msgraph.Drive
	children     map[string][]msgraph.Item       // parentID -> children
	perms        map[string][]msgraph.Permission // itemID -> permissions
	deltaItems   map[string][]msgraph.Item       // driveID -> changed items
	deltaToken   string
	seedLink     string

	userDriveErr    map[string]error // userID -> error
	siteDrivesErr   map[string]error // siteID -> error
	listChildrenErr map[string]error // parentID -> error
	permsErr        map[string]error // itemID -> error
	deltaErr        error
	seedErr         error

	permCalls  int
	deltaCalls []string // driveIDs DeltaAll was invoked for
	walkCalls  []string // driveIDs ListChildren("root") was invoked for
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		tenantDomain: "contoso.com",
		drives:       map[string]*msgraph.Drive{},
		siteDrives:   map[string][]msgraph.Drive{},
		children:     map[string][]msgraph.Item{},
		perms:        map[string][]msgraph.Permission{},
		deltaItems:   map[string][]msgraph.Item{},
		seedLink:     "https://graph.microsoft.com/v1.0/seeded",
		deltaToken:   "https://graph.microsoft.com/v1.0/next-token",
	}
}

func (m *mockAPI) TenantDomain(_ context.Context) (string, error) {
	return m.tenantDomain, nil
}

func (m *mockAPI) ListUsers(_ context.Context) ([]msgraph.User, error) {
	return m.users, nil
}

func (m *mockAPI) UserDrive(_ context.Context, userID string) (*msgraph.Drive, error) {
	if err := m.userDriveErr[userID]; err != nil {
		return nil, err
	}

	return m.drives[userID], nil
}

func (m *mockAPI) ListSites(_ context.Context) ([]msgraph.Site, error) {
	return m.sites, nil
}

func (m *mockAPI) SiteDrives(_ context.Context, siteID string) ([]msgraph.Drive, error) {
	if err := m.siteDrivesErr[siteID]; err != nil {
		return nil, err
	}

	return m.siteDrives[siteID], nil
}

func (m *mockAPI) ListChildren(_ context.Context, driveID, parentID string) ([]msgraph.Item, error) {
	m.mu.Lock()
	if parentID == "root" {
		m.walkCalls = append(m.walkCalls, driveID)
	}
	m.mu.Unlock()

	if err := m.listChildrenErr[parentID]; err != nil {
		return nil, err
	}

	return m.children[parentID], nil
}

func (m *mockAPI) ItemPermissions(_ context.Context, _, itemID string) ([]msgraph.Permission, error) {
	m.mu.Lock()
	m.permCalls++
	m.mu.Unlock()

	if err := m.permsErr[itemID]; err != nil {
		return nil, err
	}

	return m.perms[itemID], nil
}

func (m *mockAPI) DeltaAll(_ context.Context, driveID, _ string) ([]msgraph.Item, string, error) {
	m.mu.Lock()
	m.deltaCalls = append(m.deltaCalls, driveID)
	m.mu.Unlock()

	if m.deltaErr != nil {
		return nil, "", m.deltaErr
	}

	return m.deltaItems[driveID], m.deltaToken, nil
}

func (m *mockAPI) SeedDeltaLink(_ context.Context, _ string) (string, error) {
	if m.seedErr != nil {
		return "", m.seedErr
	}

	return m.seedLink, nil
}

func (m *mockAPI) permissionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.permCalls
}

// mockStore records every write. Error fields inject failures.
type mockStore struct {
	mu sync.Mutex

	users       []string
	sites       []string
	owns        [][2]string // [userEmail, siteID]
	files       []string    // itemIDs touched by MergeFile
	permissions []graphstore.PermissionRecord
	removed     []string          // itemIDs whose edges were dropped
	savedLinks  map[string]string // driveID -> token

	storedLinks map[string]string // DeltaLink responses
	hasDelta    bool
	lastFull    time.Time

	createdRuns  []string          // scan types
	finishedRuns map[string]string // runID -> status
	sweepCalls   int
	sweepResult  int

	mergePermErr error
	mergeFileErr error
	sweepErr     error
}

func newMockStore() *mockStore {
	return &mockStore{
		savedLinks:   map[string]string{},
		storedLinks:  map[string]string{},
		finishedRuns: map[string]string{},
	}
}

func (m *mockStore) MergeUser(_ context.Context, email, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = append(m.users, email)

	return nil
}

func (m *mockStore) MergeSite(_ context.Context, siteID, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sites = append(m.sites, siteID)

	return nil
}

func (m *mockStore) MergeFile(_ context.Context, _, itemID, _, _, _ string) error {
	if m.mergeFileErr != nil {
		return m.mergeFileErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = append(m.files, itemID)

	return nil
}

func (m *mockStore) MergeOwns(_ context.Context, userEmail, siteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.owns = append(m.owns, [2]string{userEmail, siteID})

	return nil
}

func (m *mockStore) MergePermission(_ context.Context, rec *graphstore.PermissionRecord) error {
	if m.mergePermErr != nil {
		return m.mergePermErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.permissions = append(m.permissions, *rec)

	return nil
}

func (m *mockStore) RemoveFilePermissions(_ context.Context, _, itemID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removed = append(m.removed, itemID)

	return nil
}

func (m *mockStore) CreateScanRun(_ context.Context, scanType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createdRuns = append(m.createdRuns, scanType)

	return "test-run", nil
}

func (m *mockStore) FinishScanRun(_ context.Context, runID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.finishedRuns[runID] = status

	return nil
}

func (m *mockStore) LastFullScanTime(_ context.Context) (time.Time, error) {
	return m.lastFull, nil
}

func (m *mockStore) HasDeltaStates(_ context.Context) (bool, error) {
	return m.hasDelta, nil
}

func (m *mockStore) SaveDeltaLink(_ context.Context, driveID, deltaLink string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.savedLinks[driveID] = deltaLink

	return nil
}

func (m *mockStore) DeltaLink(_ context.Context, driveID string) (string, error) {
	return m.storedLinks[driveID], nil
}

func (m *mockStore) SweepStaleEdges(_ context.Context, _ string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepCalls++
	if m.sweepErr != nil {
		return 0, m.sweepErr
	}

	return m.sweepResult, nil
}

func (m *mockStore) permissionRecords() []graphstore.PermissionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]graphstore.PermissionRecord(nil), m.permissions...)
}
