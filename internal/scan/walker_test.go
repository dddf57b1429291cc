package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/sharegraph-go/internal/msgraph"
)

func anonLink(id string) msgraph.Permission {
	return msgraph.Permission{
		ID:    id,
		Roles: []string{"read"},
		Link:  &msgraph.Link{Scope: "anonymous", Type: "view"},
	}
}

func testTarget() Target {
	return Target{DriveID: "d1", SiteID: "site1", OwnerEmail: "ann@contoso.com"}
}

func TestWalkDrive_TraversesAndPersists(t *testing.T) {
	api := newMockAPI()
	api.children["root"] = []msgraph.Item{
		{ID: "folder1", Name: "Finance", IsFolder: true, ChildCount: 1},
		{ID: "file1", Name: "notes.txt"},
	}
	api.children["folder1"] = []msgraph.Item{
		{ID: "file2", Name: "budget.xlsx"},
	}
	api.perms["file2"] = []msgraph.Permission{anonLink("p1")}

	store := newMockStore()
	w := NewWalker(api, store, nil)

	count, err := w.WalkDrive(context.Background(), testTarget(), "contoso.com", "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	recs := store.permissionRecords()
	require.Len(t, recs, 1)
	assert.Equal(t, "file2", recs[0].ItemID)
	assert.Equal(t, "/Finance/budget.xlsx", recs[0].ItemPath)
	assert.Equal(t, "Link-Anyone", recs[0].SharingType)
	assert.Equal(t, "HIGH", recs[0].RiskLevel)
	assert.Equal(t, "run-1", recs[0].RunID)

	// Every item's permissions are inspected, folders included.
	assert.Equal(t, 3, api.permissionCalls())

	// A fresh delta token is seeded after the walk.
	assert.Equal(t, api.seedLink, store.savedLinks["d1"])
}

func TestWalkDrive_SkipsOwnerGrant(t *testing.T) {
	api := newMockAPI()
	api.children["root"] = []msgraph.Item{{ID: "file1", Name: "mine.docx"}}
	api.perms["file1"] = []msgraph.Permission{
		{
			ID:          "p-owner",
			Roles:       []string{"owner"},
			GrantedUser: &msgraph.Identity{Email: "ann@contoso.com", DisplayName: "Ann"},
		},
		{
			ID:          "p-share",
			Roles:       []string{"read"},
			GrantedUser: &msgraph.Identity{Email: "bob@contoso.com", DisplayName: "Bob"},
		},
	}

	store := newMockStore()
	w := NewWalker(api, store, nil)

	count, err := w.WalkDrive(context.Background(), testTarget(), "contoso.com", "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the owner's own grant is not a share")

	recs := store.permissionRecords()
	require.Len(t, recs, 1)
	assert.Equal(t, "bob@contoso.com", recs[0].PrincipalEmail)
}

func TestWalkDrive_SubtreeListingFailureSkips(t *testing.T) {
	api := newMockAPI()
	api.children["root"] = []msgraph.Item{
		{ID: "broken", Name: "Restricted", IsFolder: true, ChildCount: 5},
		{ID: "file1", Name: "ok.txt"},
	}
	api.listChildrenErr = map[string]error{
		"broken": &msgraph.APIError{StatusCode: 403, Err: msgraph.ErrForbidden},
	}
	api.perms["file1"] = []msgraph.Permission{anonLink("p1")}

	store := newMockStore()
	w := NewWalker(api, store, nil)

	count, err := w.WalkDrive(context.Background(), testTarget(), "contoso.com", "run-1")
	require.NoError(t, err, "an unreadable subtree must not fail the walk")
	assert.Equal(t, 1, count)
}

func TestWalkDrive_PermissionFetchFailureSkipsItem(t *testing.T) {
	api := newMockAPI()
	api.children["root"] = []msgraph.Item{{ID: "file1", Name: "locked.txt"}}
	api.permsErr = map[string]error{
		"file1": &msgraph.APIError{StatusCode: 404, Err: msgraph.ErrNotFound},
	}

	store := newMockStore()
	w := NewWalker(api, store, nil)

	count, err := w.WalkDrive(context.Background(), testTarget(), "contoso.com", "run-1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, store.permissionRecords())
}

func TestWalkDrive_SeedFailureNotFatal(t *testing.T) {
	api := newMockAPI()
	api.children["root"] = []msgraph.Item{}
	api.seedErr = &msgraph.APIError{StatusCode: 500, Err: msgraph.ErrServerError}

	store := newMockStore()
	w := NewWalker(api, store, nil)

	_, err := w.WalkDrive(context.Background(), testTarget(), "contoso.com", "run-1")
	require.NoError(t, err)
	assert.Empty(t, store.savedLinks)
}

func TestWalkDrive_ContextCancellation(t *testing.T) {
	api := newMockAPI()
	api.children["root"] = []msgraph.Item{{ID: "file1", Name: "a.txt"}}

	store := newMockStore()
	w := NewWalker(api, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.WalkDrive(ctx, testTarget(), "contoso.com", "run-1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestWalkDrive_Rerun_SameRecords(t *testing.T) {
	api := newMockAPI()
	api.children["root"] = []msgraph.Item{{ID: "file1", Name: "a.xlsx"}}
	api.perms["file1"] = []msgraph.Permission{anonLink("p1")}

	store := newMockStore()
	w := NewWalker(api, store, nil)

	_, err := w.WalkDrive(context.Background(), testTarget(), "contoso.com", "run-1")
	require.NoError(t, err)
	_, err = w.WalkDrive(context.Background(), testTarget(), "contoso.com", "run-1")
	require.NoError(t, err)

	recs := store.permissionRecords()
	require.Len(t, recs, 2)
	assert.Equal(t, recs[0], recs[1], "re-walking unchanged state produces identical upserts")
}
