package scan

import (
	"context"
	"log/slog"
)

// Consumer applies incremental changes from a drive's delta feed.
type Consumer struct {
	api    API
	store  GraphWriter
	logger *slog.Logger
}

// NewConsumer creates a Consumer.
func NewConsumer(api API, store GraphWriter, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{api: api, store: store, logger: logger}
}

// ConsumeDrive follows the stored continuation token and applies the
// minimal update for each changed item, in priority order: deletion
// marker, permission change, content-only metadata refresh. The fresh
// token is persisted at the end, even when nothing changed; the prior
// stored token is kept when the feed ends without issuing a new one.
// Returns the number of sharing edges written.
func (c *Consumer) ConsumeDrive(ctx context.Context, t Target, token, tenantDomain, runID string) (int, error) {
	items, newToken, err := c.api.DeltaAll(ctx, t.DriveID, token)
	if err != nil {
		return 0, err
	}

	c.logger.Info("processing delta changes",
		slog.String("drive_id", t.DriveID),
		slog.Int("changed_items", len(items)),
	)

	count := 0

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		// Deletion wins: drop the item's sharing edges, no permission fetch.
		if item.IsDeleted {
			if err := c.store.RemoveFilePermissions(ctx, t.DriveID, item.ID, runID); err != nil {
				return count, err
			}

			continue
		}

		itemPath := item.Path()

		// Content-only change: refresh item metadata, leave sharing alone.
		if !item.SharedChanged {
			if err := c.store.MergeFile(ctx, t.DriveID, item.ID, itemPath, item.WebURL, itemType(item.IsFolder)); err != nil {
				return count, err
			}

			continue
		}

		n, err := c.resyncPermissions(ctx, t, item.ID, itemPath, item.WebURL, itemType(item.IsFolder), tenantDomain, runID)
		if err != nil {
			return count, err
		}

		count += n
	}

	// A degenerate feed can end without a fresh deltaLink. Keep the
	// prior stored token instead of clobbering it with an empty one.
	if newToken == "" {
		c.logger.Warn("delta feed ended without a new token, keeping stored token",
			slog.String("drive_id", t.DriveID),
		)

		return count, nil
	}

	if err := c.store.SaveDeltaLink(ctx, t.DriveID, newToken); err != nil {
		return count, err
	}

	return count, nil
}

// resyncPermissions re-fetches an item's current explicit permissions and
// re-runs the same classify/upsert sequence as the full-crawl walker.
// The fresh fetch is authoritative for what exists now; edges it no
// longer contains are left for the full-scan sweep.
func (c *Consumer) resyncPermissions(ctx context.Context, t Target, itemID, itemPath, webURL, fileType, tenantDomain, runID string) (int, error) {
	perms, err := c.api.ItemPermissions(ctx, t.DriveID, itemID)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		c.logger.Warn("could not get permissions",
			slog.String("drive_id", t.DriveID),
			slog.String("path", itemPath),
			slog.String("error", err.Error()),
		)

		return 0, nil
	}

	info := itemInfo{
		ItemID:   itemID,
		Path:     itemPath,
		WebURL:   webURL,
		ItemType: fileType,
	}

	return persistPermissions(ctx, c.store, t, info, perms, tenantDomain, runID, c.logger)
}
