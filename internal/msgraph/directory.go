package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// sitePageSize is the $top value for site enumeration.
const sitePageSize = 1000

// userResponse mirrors the Graph API user JSON.
type userResponse struct {
	ID               string            `json:"id"`
	DisplayName      string            `json:"displayName"`
	UPN              string            `json:"userPrincipalName"`
	AccountEnabled   bool              `json:"accountEnabled"`
	AssignedLicenses []json.RawMessage `json:"assignedLicenses"`
}

func (u *userResponse) toUser() User {
	return User{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		UPN:         u.UPN,
	}
}

type usersListResponse struct {
	Value    []userResponse `json:"value"`
	NextLink string         `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

// driveResponse mirrors the Graph API drive JSON.
type driveResponse struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	WebURL string       `json:"webUrl"`
	Owner  *identitySet `json:"owner"`
}

func (d *driveResponse) toDrive() Drive {
	drive := Drive{
		ID:     strings.ToLower(d.ID),
		Name:   d.Name,
		WebURL: d.WebURL,
	}

	if d.Owner != nil && d.Owner.User != nil {
		drive.OwnerEmail = d.Owner.User.Email
		drive.OwnerName = d.Owner.User.DisplayName
	}

	return drive
}

type drivesListResponse struct {
	Value    []driveResponse `json:"value"`
	NextLink string          `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

// siteResponse mirrors the Graph API site JSON.
type siteResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
}

type sitesListResponse struct {
	Value    []siteResponse `json:"value"`
	NextLink string         `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

type organizationResponse struct {
	Value []struct {
		VerifiedDomains []struct {
			Name      string `json:"name"`
			IsDefault bool   `json:"isDefault"`
		} `json:"verifiedDomains"`
	} `json:"value"`
}

// TenantDomain returns the tenant's default verified domain, used as the
// internal/external boundary for audience classification.
func (c *Client) TenantDomain(ctx context.Context) (string, error) {
	resp, err := c.Get(ctx, "/organization")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var or organizationResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return "", fmt.Errorf("msgraph: decoding organization response: %w", err)
	}

	if len(or.Value) == 0 {
		return "", fmt.Errorf("msgraph: organization endpoint returned no tenants")
	}

	for _, d := range or.Value[0].VerifiedDomains {
		if d.IsDefault {
			return d.Name, nil
		}
	}

	return "", nil
}

// ListUsers returns all enabled, licensed users in the tenant,
// handling pagination automatically. Unlicensed accounts (rooms, service
// accounts) have no OneDrive and are excluded.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	query := url.Values{
		"$filter": {"accountEnabled eq true"},
		"$select": {"id,displayName,userPrincipalName,accountEnabled,assignedLicenses"},
	}
	apiPath := "/users?" + query.Encode()

	var users []User

	for apiPath != "" {
		resp, err := c.Get(ctx, apiPath)
		if err != nil {
			return nil, err
		}

		var ulr usersListResponse

		decodeErr := json.NewDecoder(resp.Body).Decode(&ulr)
		resp.Body.Close()

		if decodeErr != nil {
			return nil, fmt.Errorf("msgraph: decoding users response: %w", decodeErr)
		}

		for i := range ulr.Value {
			u := &ulr.Value[i]
			if !u.AccountEnabled || len(u.AssignedLicenses) == 0 {
				continue
			}

			users = append(users, u.toUser())
		}

		apiPath = ""
		if ulr.NextLink != "" {
			apiPath, err = c.stripBaseURL(ulr.NextLink)
			if err != nil {
				return nil, err
			}
		}
	}

	c.logger.Info("enumerated users",
		slog.Int("count", len(users)),
	)

	return users, nil
}

// UserDrive returns a user's default OneDrive drive.
// Users without a provisioned OneDrive surface ErrNotFound.
func (c *Client) UserDrive(ctx context.Context, userID string) (*Drive, error) {
	resp, err := c.Get(ctx, fmt.Sprintf("/users/%s/drive", userID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dr driveResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("msgraph: decoding drive response: %w", err)
	}

	drive := dr.toDrive()

	return &drive, nil
}

// ListSites enumerates all SharePoint sites in the tenant. Personal
// OneDrive hosts (-my.sharepoint.com) and sites without a display name
// (system sites) are filtered out.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	query := url.Values{
		"$select": {"id,displayName,webUrl"},
		"$top":    {fmt.Sprint(sitePageSize)},
	}
	apiPath := "/sites/getAllSites?" + query.Encode()

	var sites []Site

	for apiPath != "" {
		resp, err := c.Get(ctx, apiPath)
		if err != nil {
			return nil, err
		}

		var slr sitesListResponse

		decodeErr := json.NewDecoder(resp.Body).Decode(&slr)
		resp.Body.Close()

		if decodeErr != nil {
			return nil, fmt.Errorf("msgraph: decoding sites response: %w", decodeErr)
		}

		for _, s := range slr.Value {
			if s.DisplayName == "" || strings.Contains(s.WebURL, "-my.sharepoint.com") {
				continue
			}

			sites = append(sites, Site{ID: s.ID, Name: s.DisplayName, WebURL: s.WebURL})
		}

		apiPath = ""
		if slr.NextLink != "" {
			apiPath, err = c.stripBaseURL(slr.NextLink)
			if err != nil {
				return nil, err
			}
		}
	}

	c.logger.Info("enumerated sites",
		slog.Int("count", len(sites)),
	)

	return sites, nil
}

// SiteDrives returns all document libraries of a site.
func (c *Client) SiteDrives(ctx context.Context, siteID string) ([]Drive, error) {
	apiPath := fmt.Sprintf("/sites/%s/drives", siteID)

	var drives []Drive

	for apiPath != "" {
		resp, err := c.Get(ctx, apiPath)
		if err != nil {
			return nil, err
		}

		var dlr drivesListResponse

		decodeErr := json.NewDecoder(resp.Body).Decode(&dlr)
		resp.Body.Close()

		if decodeErr != nil {
			return nil, fmt.Errorf("msgraph: decoding site drives response: %w", decodeErr)
		}

		for i := range dlr.Value {
			drives = append(drives, dlr.Value[i].toDrive())
		}

		apiPath = ""
		if dlr.NextLink != "" {
			apiPath, err = c.stripBaseURL(dlr.NextLink)
			if err != nil {
				return nil, err
			}
		}
	}

	return drives, nil
}
