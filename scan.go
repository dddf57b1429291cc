package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/tonimelisma/sharegraph-go/internal/graphstore"
	"github.com/tonimelisma/sharegraph-go/internal/msgraph"
	"github.com/tonimelisma/sharegraph-go/internal/scan"
)

// Scan command flags.
var (
	flagFull      bool
	flagUsers     []string
	flagSkipSites bool
)

// newScanCmd returns the scan command, which performs one full or delta
// synchronization run and exits. Designed to run under cron.
func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one synchronization pass against the tenant",
		Long: "Scans the tenant's OneDrive and SharePoint sharing state and upserts it " +
			"into the graph database. Uses stored delta tokens when fresh, otherwise " +
			"performs a full crawl.",
		RunE: runScan,
	}

	cmd.Flags().BoolVar(&flagFull, "full", false, "force a full crawl, ignoring stored delta tokens")
	cmd.Flags().StringSliceVar(&flagUsers, "users", nil, "only scan these users (UPNs; repeatable or comma-separated)")
	cmd.Flags().BoolVar(&flagSkipSites, "skip-sites", false, "skip the SharePoint site traversal")

	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if timeout := resolvedCfg.Scan.Timeout(); timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	store, closeStore, err := graphstore.Connect(ctx,
		resolvedCfg.Neo4j.URI,
		resolvedCfg.Neo4j.User,
		resolvedCfg.Neo4j.Password,
		resolvedCfg.Neo4j.Database,
		logger,
	)
	if err != nil {
		return err
	}
	defer closeStore(context.WithoutCancel(ctx)) //nolint:errcheck

	api := buildAPIClient(logger)

	users := resolvedCfg.Scan.Users
	if len(flagUsers) > 0 {
		users = flagUsers
	}

	orch := scan.New(api, store, scan.Config{
		ForceFull:          flagFull || resolvedCfg.Scan.ForceFull,
		FullRescanInterval: resolvedCfg.Scan.RescanInterval(),
		Workers:            resolvedCfg.Scan.Workers,
		Users:              users,
		SkipSites:          flagSkipSites || resolvedCfg.Scan.SkipSites,
	}, logger)

	_, err = orch.Run(ctx)

	return err
}

// buildAPIClient wires the Graph client: app-only credential, shared
// rate limiter derived from call_delay_ms, default HTTP client.
func buildAPIClient(logger *slog.Logger) *msgraph.Client {
	cred := msgraph.NewAppCredential(
		resolvedCfg.GraphAPI.TenantID,
		resolvedCfg.GraphAPI.ClientID,
		resolvedCfg.GraphAPI.ClientSecret,
	)

	limiter := buildLimiter(resolvedCfg.GraphAPI.CallDelayMS)

	return msgraph.NewClient(msgraph.DefaultBaseURL, defaultHTTPClient(), cred, limiter, logger)
}

// buildLimiter converts the configured inter-call delay into a shared
// token bucket. Zero delay disables limiting.
func buildLimiter(delayMS int) *rate.Limiter {
	if delayMS <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	interval := time.Duration(delayMS) * time.Millisecond

	return rate.NewLimiter(rate.Every(interval), 1)
}
