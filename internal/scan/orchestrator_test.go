package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/sharegraph-go/internal/graphstore"
	"github.com/tonimelisma/sharegraph-go/internal/msgraph"
)

func defaultConfig() Config {
	return Config{
		FullRescanInterval: 24 * time.Hour,
		Workers:            2,
	}
}

// tenantFixture populates one user with a OneDrive and one site with one
// document library.
func tenantFixture(api *mockAPI) {
	api.users = []msgraph.User{
		{ID: "u1", DisplayName: "Ann", UPN: "ann@contoso.com"},
	}
	api.drives["u1"] = &msgraph.Drive{ID: "drive-ann", WebURL: "https://contoso-my.sharepoint.com/personal/ann"}
	api.children["root"] = []msgraph.Item{{ID: "file1", Name: "budget.xlsx"}}
	api.perms["file1"] = []msgraph.Permission{anonLink("p1")}

	api.sites = []msgraph.Site{
		{ID: "site-fin", Name: "Finance", WebURL: "https://contoso.sharepoint.com/sites/finance"},
	}
	api.siteDrives["site-fin"] = []msgraph.Drive{
		{ID: "drive-fin", Name: "Documents", OwnerEmail: "ann@contoso.com", OwnerName: "Ann"},
	}
}

func TestDecideMode(t *testing.T) {
	tests := []struct {
		name      string
		forceFull bool
		hasDelta  bool
		lastFull  time.Time
		want      string
	}{
		{"forced full", true, true, time.Now(), graphstore.ScanTypeFull},
		{"no delta state", false, false, time.Now(), graphstore.ScanTypeFull},
		{"never completed full", false, true, time.Time{}, graphstore.ScanTypeFull},
		{"stale full scan", false, true, time.Now().Add(-48 * time.Hour), graphstore.ScanTypeFull},
		{"fresh full scan", false, true, time.Now().Add(-1 * time.Hour), graphstore.ScanTypeDelta},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			store.hasDelta = tt.hasDelta
			store.lastFull = tt.lastFull

			cfg := defaultConfig()
			cfg.ForceFull = tt.forceFull

			o := New(newMockAPI(), store, cfg, nil)

			mode, err := o.decideMode(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestRun_FullScan(t *testing.T) {
	api := newMockAPI()
	tenantFixture(api)

	store := newMockStore()
	store.sweepResult = 2

	o := New(api, store, defaultConfig(), nil)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, graphstore.ScanTypeFull, summary.ScanType)
	assert.Equal(t, "test-run", summary.RunID)
	assert.Equal(t, 2, summary.Drives, "OneDrive plus one document library")
	assert.Equal(t, 2, summary.SweptEdges)
	assert.Equal(t, graphstore.RunStatusCompleted, store.finishedRuns["test-run"])
	assert.Equal(t, 1, store.sweepCalls, "full runs end with a stale-edge sweep")

	// OneDrive owners get a synthetic site keyed by user ID.
	assert.Contains(t, store.sites, "onedrive-u1")
	assert.Contains(t, store.sites, "site-fin")
	assert.Contains(t, store.owns, [2]string{"ann@contoso.com", "onedrive-u1"})
	assert.Contains(t, store.owns, [2]string{"ann@contoso.com", "site-fin"})
}

func TestRun_DeltaUsesTokensAndFallsBack(t *testing.T) {
	api := newMockAPI()
	tenantFixture(api)
	api.deltaItems["drive-ann"] = []msgraph.Item{
		{ID: "file1", Name: "budget.xlsx", ParentPath: "/drive/root:", SharedChanged: true},
	}

	store := newMockStore()
	store.hasDelta = true
	store.lastFull = time.Now().Add(-time.Hour)
	// Only the OneDrive has a stored token; the site library must be walked.
	store.storedLinks["drive-ann"] = "https://graph.microsoft.com/v1.0/tok-ann"

	o := New(api, store, defaultConfig(), nil)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, graphstore.ScanTypeDelta, summary.ScanType)
	assert.Equal(t, []string{"drive-ann"}, api.deltaCalls)
	assert.Contains(t, api.walkCalls, "drive-fin")
	assert.NotContains(t, api.walkCalls, "drive-ann")
	assert.Zero(t, store.sweepCalls, "delta runs never sweep")
}

func TestRun_ExpiredTokenFallsBackToWalk(t *testing.T) {
	api := newMockAPI()
	tenantFixture(api)
	api.deltaErr = &msgraph.APIError{StatusCode: 410, Err: msgraph.ErrGone}

	store := newMockStore()
	store.hasDelta = true
	store.lastFull = time.Now().Add(-time.Hour)
	store.storedLinks["drive-ann"] = "expired-token"

	cfg := defaultConfig()
	cfg.SkipSites = true

	o := New(api, store, cfg, nil)

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"drive-ann"}, api.deltaCalls)
	assert.Contains(t, api.walkCalls, "drive-ann", "expired token should trigger a full walk")
	assert.Equal(t, graphstore.RunStatusCompleted, store.finishedRuns["test-run"])
}

func TestRun_SkipsUsersWithoutDrive(t *testing.T) {
	api := newMockAPI()
	tenantFixture(api)
	api.users = append(api.users, msgraph.User{ID: "u2", UPN: "bob@contoso.com"})
	api.userDriveErr = map[string]error{
		"u2": &msgraph.APIError{StatusCode: 404, Err: msgraph.ErrNotFound},
	}

	store := newMockStore()
	o := New(api, store, defaultConfig(), nil)

	summary, err := o.Run(context.Background())
	require.NoError(t, err, "an unprovisioned OneDrive must not fail the run")
	assert.Equal(t, 2, summary.Drives)
	assert.NotContains(t, store.users, "bob@contoso.com")
}

func TestRun_SkipsInaccessibleSites(t *testing.T) {
	api := newMockAPI()
	tenantFixture(api)
	api.siteDrivesErr = map[string]error{
		"site-fin": &msgraph.APIError{StatusCode: 403, Err: msgraph.ErrForbidden},
	}

	store := newMockStore()
	o := New(api, store, defaultConfig(), nil)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Drives, "only the OneDrive was scanned")
}

func TestRun_UserAllowList(t *testing.T) {
	api := newMockAPI()
	tenantFixture(api)
	api.users = append(api.users, msgraph.User{ID: "u2", UPN: "bob@contoso.com"})
	api.drives["u2"] = &msgraph.Drive{ID: "drive-bob"}

	store := newMockStore()

	cfg := defaultConfig()
	cfg.Users = []string{"ANN@contoso.com"} // case-insensitive
	cfg.SkipSites = true

	o := New(api, store, cfg, nil)

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, store.users, "ann@contoso.com")
	assert.NotContains(t, store.users, "bob@contoso.com")
	assert.NotContains(t, api.walkCalls, "drive-bob")
}

func TestRun_SkipSites(t *testing.T) {
	api := newMockAPI()
	tenantFixture(api)

	store := newMockStore()

	cfg := defaultConfig()
	cfg.SkipSites = true

	o := New(api, store, cfg, nil)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Drives)
	assert.NotContains(t, store.sites, "site-fin")
}

func TestRun_PersistFailureMarksRunFailed(t *testing.T) {
	api := newMockAPI()
	tenantFixture(api)

	store := newMockStore()
	store.mergePermErr = assert.AnError

	o := New(api, store, defaultConfig(), nil)

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, graphstore.RunStatusFailed, store.finishedRuns["test-run"])
	assert.Zero(t, store.sweepCalls, "failed runs must not sweep")
}

func TestRun_SweepFailureMarksRunFailed(t *testing.T) {
	api := newMockAPI()
	tenantFixture(api)

	store := newMockStore()
	store.sweepErr = assert.AnError

	o := New(api, store, defaultConfig(), nil)

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, graphstore.RunStatusFailed, store.finishedRuns["test-run"],
		"a run that traversed but could not sweep must still reach a terminal state")
}

func TestDriveLocks_Striping(t *testing.T) {
	var locks driveLocks

	a := locks.forDrive("drive-a")
	b := locks.forDrive("drive-a")
	assert.Same(t, a, b, "same drive maps to the same mutex")
}
