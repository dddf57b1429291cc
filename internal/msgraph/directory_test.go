package msgraph

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organization", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"value": [{"verifiedDomains": [
				{"name": "contoso.onmicrosoft.com", "isDefault": false},
				{"name": "contoso.com", "isDefault": true}
			]}]
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	domain, err := client.TenantDomain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "contoso.com", domain)
}

func TestListUsers_FiltersAndPaginates(t *testing.T) {
	var srv *httptest.Server

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(`{"value": [
				{"id": "u3", "displayName": "Carol", "userPrincipalName": "carol@contoso.com",
				 "accountEnabled": true, "assignedLicenses": [{}]}
			]}`))

			return
		}

		assert.Equal(t, "accountEnabled eq true", r.URL.Query().Get("$filter"))
		fmt.Fprintf(w, `{"value": [
			{"id": "u1", "displayName": "Ann", "userPrincipalName": "ann@contoso.com",
			 "accountEnabled": true, "assignedLicenses": [{}]},
			{"id": "u2", "displayName": "Room", "userPrincipalName": "room@contoso.com",
			 "accountEnabled": true, "assignedLicenses": []}
		], "@odata.nextLink": "%s/users?page=2"}`, srv.URL)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	users, err := client.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2, "unlicensed account should be excluded")
	assert.Equal(t, "ann@contoso.com", users[0].UPN)
	assert.Equal(t, "carol@contoso.com", users[1].UPN)
}

func TestUserDrive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/u1/drive", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "DRIVE-ABC", "name": "OneDrive", "webUrl": "https://contoso-my.sharepoint.com/personal/ann"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	drive, err := client.UserDrive(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "drive-abc", drive.ID, "drive ID should be lowercased")
	assert.Equal(t, "OneDrive", drive.Name)
}

func TestListSites_FiltersSystemAndPersonal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/getAllSites", r.URL.Path)
		_, _ = w.Write([]byte(`{"value": [
			{"id": "s1", "displayName": "Finance", "webUrl": "https://contoso.sharepoint.com/sites/finance"},
			{"id": "s2", "displayName": "", "webUrl": "https://contoso.sharepoint.com/sites/system"},
			{"id": "s3", "displayName": "Ann", "webUrl": "https://contoso-my.sharepoint.com/personal/ann"}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	sites, err := client.ListSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "Finance", sites[0].Name)
}

func TestSiteDrives_OwnerFacet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/s1/drives", r.URL.Path)
		_, _ = w.Write([]byte(`{"value": [
			{"id": "D1", "name": "Documents", "webUrl": "https://contoso.sharepoint.com/sites/finance/Shared",
			 "owner": {"user": {"email": "ann@contoso.com", "displayName": "Ann"}}}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	drives, err := client.SiteDrives(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, drives, 1)
	assert.Equal(t, "d1", drives[0].ID)
	assert.Equal(t, "ann@contoso.com", drives[0].OwnerEmail)
	assert.Equal(t, "Ann", drives[0].OwnerName)
}
