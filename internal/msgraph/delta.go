package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// deltaPreferHeader asks the delta endpoint to surface sharing changes:
// items whose permissions changed since the last token carry the
// @microsoft.graph.sharedChanged annotation. Without this header the feed
// only reports content changes.
var deltaPreferHeader = http.Header{
	"Prefer": {"deltashowsharingchanges"},
}

// deltaResponse mirrors the Graph API delta response JSON structure.
// Unexported — callers receive normalized DeltaPage values.
type deltaResponse struct {
	Value     []driveItemResponse `json:"value"`
	NextLink  string              `json:"@odata.nextLink"`  //nolint:tagliatelle // OData annotation key
	DeltaLink string              `json:"@odata.deltaLink"` //nolint:tagliatelle // OData annotation key
}

// deltaHTTPPrefix is the scheme prefix used to detect full URL tokens
// returned by the Graph API delta endpoint.
const deltaHTTPPrefix = "http"

// DeltaPage is one page of delta changes for a drive.
// Exactly one of NextLink (more pages) or DeltaLink (done) is set.
type DeltaPage struct {
	Items     []Item
	NextLink  string
	DeltaLink string
}

// Delta fetches one page of delta changes for a drive.
// token is the DeltaLink or NextLink value from a previous page — a full
// URL that gets converted to a path. HTTP 410 (Gone) means the token has
// expired — surfaces as ErrGone.
func (c *Client) Delta(ctx context.Context, driveID, token string) (*DeltaPage, error) {
	path, err := c.buildDeltaPath(driveID, token)
	if err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, path, deltaPreferHeader)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dr deltaResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("msgraph: decoding delta response: %w", err)
	}

	items := make([]Item, 0, len(dr.Value))
	for i := range dr.Value {
		items = append(items, dr.Value[i].toItem())
	}

	c.logger.Debug("fetched delta page",
		slog.String("drive_id", driveID),
		slog.Int("count", len(items)),
		slog.Bool("has_next_link", dr.NextLink != ""),
		slog.Bool("has_delta_link", dr.DeltaLink != ""),
	)

	return &DeltaPage{
		Items:     items,
		NextLink:  dr.NextLink,
		DeltaLink: dr.DeltaLink,
	}, nil
}

// buildDeltaPath constructs the API path for a delta request.
// A non-URL token is treated as a literal token query parameter.
func (c *Client) buildDeltaPath(driveID, token string) (string, error) {
	if token == "" {
		return fmt.Sprintf("/drives/%s/root/delta", driveID), nil
	}

	if !strings.HasPrefix(token, deltaHTTPPrefix) {
		return fmt.Sprintf("/drives/%s/root/delta?token=%s", driveID, token), nil
	}

	path, err := c.stripBaseURL(token)
	if err != nil {
		return "", fmt.Errorf("msgraph: invalid delta token URL: %w", err)
	}

	return path, nil
}

// DeltaAll follows the delta feed from the given token until the server
// returns a fresh deltaLink, and returns the combined changed items plus
// that new token for the next cycle.
func (c *Client) DeltaAll(ctx context.Context, driveID, token string) ([]Item, string, error) {
	c.logger.Info("following delta feed",
		slog.String("drive_id", driveID),
	)

	var allItems []Item

	currentToken := token
	page := 1

	for {
		dp, err := c.Delta(ctx, driveID, currentToken)
		if err != nil {
			return nil, "", err
		}

		allItems = append(allItems, dp.Items...)

		// DeltaLink means we have consumed all pages — done.
		if dp.DeltaLink != "" {
			c.logger.Info("delta feed complete",
				slog.String("drive_id", driveID),
				slog.Int("total_items", len(allItems)),
				slog.Int("pages", page),
			)

			return allItems, dp.DeltaLink, nil
		}

		// NextLink means more pages — continue with the next page URL as token.
		if dp.NextLink != "" {
			currentToken = dp.NextLink
			page++

			continue
		}

		// Neither link present — unexpected, but treat as complete with empty token.
		c.logger.Warn("delta response has neither nextLink nor deltaLink",
			slog.String("drive_id", driveID),
			slog.Int("page", page),
		)

		return allItems, "", nil
	}
}

// SeedDeltaLink obtains a delta token representing the drive's current
// state without enumerating its contents (token=latest). The returned
// link is the starting point for future incremental scans.
func (c *Client) SeedDeltaLink(ctx context.Context, driveID string) (string, error) {
	path := fmt.Sprintf("/drives/%s/root/delta?token=latest", driveID)

	resp, err := c.get(ctx, path, deltaPreferHeader)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var dr deltaResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return "", fmt.Errorf("msgraph: decoding delta seed response: %w", err)
	}

	if dr.DeltaLink == "" {
		return "", fmt.Errorf("msgraph: delta seed for drive %s returned no deltaLink", driveID)
	}

	c.logger.Debug("seeded delta link",
		slog.String("drive_id", driveID),
	)

	return dr.DeltaLink, nil
}
