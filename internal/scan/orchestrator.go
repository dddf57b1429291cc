package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/sharegraph-go/internal/graphstore"
	"github.com/tonimelisma/sharegraph-go/internal/msgraph"
)

// Config holds the orchestrator's runtime options.
type Config struct {
	// ForceFull forces a full crawl regardless of stored delta state.
	ForceFull bool
	// FullRescanInterval is the maximum age of the last completed full
	// scan before delta tokens are no longer trusted.
	FullRescanInterval time.Duration
	// Workers bounds the number of concurrent drive traversals.
	Workers int
	// Users is an optional UPN allow-list; empty scans every user.
	Users []string
	// SkipSites disables the SharePoint site traversal.
	SkipSites bool
}

// defaultWorkers is used when Config.Workers is unset.
const defaultWorkers = 4

// Orchestrator is the top-level control loop: it decides full versus
// delta mode once per run, enumerates owners and their drives, and
// dispatches each drive to the walker or the consumer under a bounded
// worker pool.
type Orchestrator struct {
	api      API
	store    GraphWriter
	cfg      Config
	walker   *Walker
	consumer *Consumer
	locks    driveLocks
	logger   *slog.Logger
}

// New creates an Orchestrator.
func New(api API, store GraphWriter, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Workers < 1 {
		cfg.Workers = defaultWorkers
	}

	return &Orchestrator{
		api:      api,
		store:    store,
		cfg:      cfg,
		walker:   NewWalker(api, store, logger),
		consumer: NewConsumer(api, store, logger),
		logger:   logger,
	}
}

// Run executes one synchronization run: mode decision, scan-run creation,
// traversal of all owners' drives, and terminal status. Any error that
// escapes the traversal marks the run failed and propagates; partial
// results written before the failure remain (upserts make re-running
// safe).
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	mode, err := o.decideMode(ctx)
	if err != nil {
		return nil, err
	}

	runID, err := o.store.CreateScanRun(ctx, mode)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: runID, ScanType: mode}

	if err := o.runAll(ctx, runID, mode, summary); err != nil {
		return summary, o.failRun(ctx, runID, err)
	}

	// Mark-and-sweep after a successful full crawl: edges on files this
	// run confirmed present but did not re-observe are stale.
	if mode == graphstore.ScanTypeFull {
		swept, err := o.store.SweepStaleEdges(ctx, runID)
		if err != nil {
			return summary, o.failRun(ctx, runID, err)
		}

		summary.SweptEdges = swept
	}

	if err := o.store.FinishScanRun(ctx, runID, graphstore.RunStatusCompleted); err != nil {
		return summary, o.failRun(ctx, runID, err)
	}

	o.logger.Info("scan run complete",
		slog.String("run_id", runID),
		slog.String("scan_type", mode),
		slog.Int("shared_items", summary.SharedItems),
		slog.Int("drives", summary.Drives),
		slog.Int("swept_edges", summary.SweptEdges),
	)

	return summary, nil
}

// failRun marks the scan run failed and wraps the original error. The
// failed status is written even when ctx is already canceled, so only a
// process crash can leave a run in the running state.
func (o *Orchestrator) failRun(ctx context.Context, runID string, err error) error {
	if failErr := o.store.FinishScanRun(context.WithoutCancel(ctx), runID, graphstore.RunStatusFailed); failErr != nil {
		o.logger.Error("could not mark scan run failed",
			slog.String("run_id", runID),
			slog.String("error", failErr.Error()),
		)
	}

	return fmt.Errorf("scan: run %s failed: %w", runID, err)
}

// decideMode picks full or delta for this run. Short-circuit order:
// force flag, no stored tokens anywhere, stale or missing last full
// scan — each forces full; otherwise delta.
func (o *Orchestrator) decideMode(ctx context.Context) (string, error) {
	if o.cfg.ForceFull {
		o.logger.Info("scan mode: full (forced)")
		return graphstore.ScanTypeFull, nil
	}

	hasStates, err := o.store.HasDeltaStates(ctx)
	if err != nil {
		return "", err
	}

	if !hasStates {
		o.logger.Info("scan mode: full (no delta state stored)")
		return graphstore.ScanTypeFull, nil
	}

	lastFull, err := o.store.LastFullScanTime(ctx)
	if err != nil {
		return "", err
	}

	if lastFull.IsZero() || time.Since(lastFull) > o.cfg.FullRescanInterval {
		o.logger.Info("scan mode: full (last full scan too old)",
			slog.Time("last_full", lastFull),
		)

		return graphstore.ScanTypeFull, nil
	}

	o.logger.Info("scan mode: delta",
		slog.Time("last_full", lastFull),
	)

	return graphstore.ScanTypeDelta, nil
}

// runAll enumerates owners and dispatches their drives to the worker
// pool. Traversal order is not significant; per-drive locks prevent
// intra-drive races.
func (o *Orchestrator) runAll(ctx context.Context, runID, mode string, summary *Summary) error {
	tenantDomain, err := o.api.TenantDomain(ctx)
	if err != nil {
		return fmt.Errorf("resolving tenant domain: %w", err)
	}

	o.logger.Info("tenant domain resolved",
		slog.String("domain", tenantDomain),
	)

	var sharedItems, drives atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	if err := o.dispatchUsers(gctx, g, runID, mode, tenantDomain, &sharedItems, &drives); err != nil {
		// Wait for in-flight tasks before reporting the enumeration error.
		if waitErr := g.Wait(); waitErr != nil {
			return waitErr
		}

		return err
	}

	if !o.cfg.SkipSites {
		if err := o.dispatchSites(gctx, g, runID, mode, tenantDomain, &sharedItems, &drives); err != nil {
			if waitErr := g.Wait(); waitErr != nil {
				return waitErr
			}

			return err
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	summary.SharedItems = int(sharedItems.Load())
	summary.Drives = int(drives.Load())

	return nil
}

// dispatchUsers enumerates OneDrive owners and queues one task per user.
func (o *Orchestrator) dispatchUsers(
	ctx context.Context,
	g *errgroup.Group,
	runID, mode, tenantDomain string,
	sharedItems, drives *atomic.Int64,
) error {
	users, err := o.api.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("enumerating users: %w", err)
	}

	users = filterUsers(users, o.cfg.Users)

	o.logger.Info("starting OneDrive traversal",
		slog.Int("users", len(users)),
	)

	for _, user := range users {
		user := user

		g.Go(func() error {
			n, scanned, err := o.scanUserDrive(ctx, user, runID, mode, tenantDomain)
			if err != nil {
				return err
			}

			sharedItems.Add(int64(n))

			if scanned {
				drives.Add(1)
			}

			return nil
		})
	}

	return nil
}

// scanUserDrive resolves one user's OneDrive and traverses it. Users
// without a drive (unprovisioned, disabled) are skipped.
func (o *Orchestrator) scanUserDrive(ctx context.Context, user msgraph.User, runID, mode, tenantDomain string) (int, bool, error) {
	drive, err := o.api.UserDrive(ctx, user.ID)
	if err != nil {
		if msgraph.IsSkippable(err) {
			o.logger.Warn("no OneDrive for user, skipping",
				slog.String("upn", user.UPN),
				slog.String("error", err.Error()),
			)

			return 0, false, nil
		}

		return 0, false, fmt.Errorf("resolving drive for %s: %w", user.UPN, err)
	}

	siteID := "onedrive-" + user.ID

	if err := o.store.MergeUser(ctx, user.UPN, user.DisplayName, "internal"); err != nil {
		return 0, false, err
	}

	if err := o.store.MergeSite(ctx, siteID, user.DisplayName, drive.WebURL, "OneDrive"); err != nil {
		return 0, false, err
	}

	if err := o.store.MergeOwns(ctx, user.UPN, siteID); err != nil {
		return 0, false, err
	}

	target := Target{DriveID: drive.ID, SiteID: siteID, OwnerEmail: user.UPN}

	n, err := o.scanDrive(ctx, target, runID, mode, tenantDomain)
	if err != nil {
		return 0, false, err
	}

	o.logger.Info("OneDrive traversal done",
		slog.String("upn", user.UPN),
		slog.Int("shared_items", n),
	)

	return n, true, nil
}

// dispatchSites enumerates SharePoint sites and queues one task per site.
func (o *Orchestrator) dispatchSites(
	ctx context.Context,
	g *errgroup.Group,
	runID, mode, tenantDomain string,
	sharedItems, drives *atomic.Int64,
) error {
	sites, err := o.api.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("enumerating sites: %w", err)
	}

	o.logger.Info("starting SharePoint traversal",
		slog.Int("sites", len(sites)),
	)

	for _, site := range sites {
		site := site

		g.Go(func() error {
			n, scanned, err := o.scanSite(ctx, site, runID, mode, tenantDomain)
			if err != nil {
				return err
			}

			sharedItems.Add(int64(n))
			drives.Add(int64(scanned))

			return nil
		})
	}

	return nil
}

// scanSite traverses all document libraries of one site. Inaccessible
// sites are skipped.
func (o *Orchestrator) scanSite(ctx context.Context, site msgraph.Site, runID, mode, tenantDomain string) (int, int, error) {
	if err := o.store.MergeSite(ctx, site.ID, site.Name, site.WebURL, "SharePoint"); err != nil {
		return 0, 0, err
	}

	siteDrives, err := o.api.SiteDrives(ctx, site.ID)
	if err != nil {
		if msgraph.IsSkippable(err) {
			o.logger.Warn("could not access site drives, skipping site",
				slog.String("site", site.Name),
				slog.String("error", err.Error()),
			)

			return 0, 0, nil
		}

		return 0, 0, fmt.Errorf("listing drives for site %s: %w", site.Name, err)
	}

	total := 0
	scanned := 0

	for _, drive := range siteDrives {
		// Best-effort ownership edge from the drive's owner facet.
		if drive.OwnerEmail != "" {
			if err := o.store.MergeUser(ctx, drive.OwnerEmail, drive.OwnerName, "internal"); err != nil {
				return total, scanned, err
			}

			if err := o.store.MergeOwns(ctx, drive.OwnerEmail, site.ID); err != nil {
				return total, scanned, err
			}
		}

		target := Target{DriveID: drive.ID, SiteID: site.ID, OwnerEmail: drive.OwnerEmail}

		n, err := o.scanDrive(ctx, target, runID, mode, tenantDomain)
		if err != nil {
			return total, scanned, err
		}

		total += n
		scanned++
	}

	o.logger.Info("site traversal done",
		slog.String("site", site.Name),
		slog.Int("drives", scanned),
		slog.Int("shared_items", total),
	)

	return total, scanned, nil
}

// scanDrive traverses one drive under its per-drive lock. Delta mode
// uses the consumer when a token exists; everything else — full mode,
// or delta mode with no token for this specific drive — performs a full
// walk, which then seeds a token.
func (o *Orchestrator) scanDrive(ctx context.Context, t Target, runID, mode, tenantDomain string) (int, error) {
	mu := o.locks.forDrive(t.DriveID)
	mu.Lock()
	defer mu.Unlock()

	if mode == graphstore.ScanTypeDelta {
		token, err := o.store.DeltaLink(ctx, t.DriveID)
		if err != nil {
			return 0, err
		}

		if token != "" {
			n, err := o.consumer.ConsumeDrive(ctx, t, token, tenantDomain, runID)
			if err == nil || !errors.Is(err, msgraph.ErrGone) {
				return n, err
			}

			// The server expired the token; re-walk the drive to pick up
			// whatever the dead feed would have reported.
			o.logger.Warn("delta token expired, falling back to full walk",
				slog.String("drive_id", t.DriveID),
			)
		} else {
			o.logger.Info("no delta token for drive, falling back to full walk",
				slog.String("drive_id", t.DriveID),
			)
		}
	}

	return o.walker.WalkDrive(ctx, t, tenantDomain, runID)
}

// filterUsers applies the UPN allow-list; an empty list keeps everyone.
func filterUsers(users []msgraph.User, allow []string) []msgraph.User {
	if len(allow) == 0 {
		return users
	}

	allowed := make(map[string]bool, len(allow))
	for _, upn := range allow {
		allowed[strings.ToLower(upn)] = true
	}

	filtered := make([]msgraph.User, 0, len(users))

	for _, u := range users {
		if allowed[strings.ToLower(u.UPN)] {
			filtered = append(filtered, u)
		}
	}

	return filtered
}
