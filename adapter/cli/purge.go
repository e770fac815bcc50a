package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/application"
	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
	"github.com/felixgeelhaar/tweetsweep/internal/purge/infrastructure/xapi"
	"github.com/felixgeelhaar/tweetsweep/pkg/observability"
)

// previewWidth is the number of characters of text shown per dry-run line.
const previewWidth = 80

type purgeOptions struct {
	dryRun       bool
	archive      string
	before       string
	after        string
	contains     string
	exclude      string
	yes          bool
	ledger       string
	cache        string
	reuseCache   bool
	refreshCache bool
}

var purgeFlags purgeOptions

func registerPurgeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&purgeFlags.dryRun, "dry-run", false, "show what would be deleted without deleting")
	f.StringVar(&purgeFlags.archive, "archive", "", "read tweets from an archive tweets.js or JSON file instead of the API")
	f.StringVar(&purgeFlags.before, "before", "", "only tweets created before this date (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&purgeFlags.after, "after", "", "only tweets created after this date (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&purgeFlags.contains, "contains", "", "only tweets whose text contains this (case-insensitive)")
	f.StringVar(&purgeFlags.exclude, "exclude", "", "skip tweets whose text contains this (case-insensitive)")
	f.BoolVarP(&purgeFlags.yes, "yes", "y", false, "skip the confirmation prompt")
	f.StringVar(&purgeFlags.ledger, "ledger", "", "ledger location: JSON file, SQLite file or postgres:// URL (default $LEDGER_URL)")
	f.StringVar(&purgeFlags.cache, "cache", "", "fetch cache location: JSON file or redis:// URL (default $CACHE_URL)")
	f.BoolVar(&purgeFlags.reuseCache, "reuse-cache", false, "use cached tweets without asking")
	f.BoolVar(&purgeFlags.refreshCache, "refresh-cache", false, "ignore cached tweets and fetch again")
}

func (o purgeOptions) criteria() (domain.FilterCriteria, error) {
	c := domain.FilterCriteria{
		Contains: o.contains,
		Exclude:  o.exclude,
	}
	if o.before != "" {
		t, err := application.ParseBound(o.before)
		if err != nil {
			return c, fmt.Errorf("--before: %w", err)
		}
		c.Before = &t
	}
	if o.after != "" {
		t, err := application.ParseBound(o.after)
		if err != nil {
			return c, fmt.Errorf("--after: %w", err)
		}
		c.After = &t
	}
	return c, nil
}

func (o purgeOptions) cachePolicy() application.CachePolicy {
	switch {
	case o.reuseCache:
		return application.CacheReuse
	case o.refreshCache:
		return application.CacheRefresh
	default:
		return application.CacheAsk
	}
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	opts := purgeFlags

	if opts.reuseCache && opts.refreshCache {
		return errors.New("--reuse-cache and --refresh-cache cannot be used together")
	}
	criteria, err := opts.criteria()
	if err != nil {
		return err
	}

	prompter := NewPrompter(cmd.InOrStdin(), out)

	var deleter application.Deleter
	var source application.ItemSource
	if opts.archive != "" {
		// A dry run of an archive makes no API calls, so it needs no login.
		if !opts.dryRun {
			client, user, err := authenticate(ctx, out)
			if err != nil {
				return err
			}
			ctx = observability.WithUserID(ctx, user.ID)
			deleter = client
		}
		source = application.NewArchiveSource(opts.archive, observability.Component(logger, "archive"))
	} else {
		client, user, err := authenticate(ctx, out)
		if err != nil {
			return err
		}
		ctx = observability.WithUserID(ctx, user.ID)

		cache, err := container.Cache(ctx, opts.cache)
		if err != nil {
			return err
		}
		source = application.NewRemoteFetchSource(client, cache, user.ID, observability.Component(logger, "fetch")).
			WithPageSize(container.Config.FetchPageSize).
			WithCachePolicy(opts.cachePolicy(), application.NewYesNoConfirmer(prompter)).
			WithMetrics(container.Metrics)
		deleter = client
	}

	items, err := source.Items(ctx)
	if err != nil {
		if errors.Is(err, application.ErrInterrupted) {
			fmt.Fprintf(out, "Interrupted while fetching after %d tweets. Fetched tweets are cached.\n", len(items))
		}
		return err
	}
	fmt.Fprintf(out, "Found %d tweets\n", len(items))

	filtered, stages := application.NewFilterPipeline(observability.Component(logger, "filter")).Apply(items, criteria)
	for _, stage := range stages {
		fmt.Fprintf(out, "  %s %q: %d -> %d\n", stage.Stage, stage.Value, stage.Before, stage.After)
	}
	if len(filtered) == 0 {
		fmt.Fprintln(out, "No tweets match the filters.")
		return nil
	}

	ledger, err := container.Ledger(ctx, opts.ledger)
	if err != nil {
		return err
	}
	location := ledgerLocation(ledger, opts.ledger, container.Config.LedgerURL)

	orchestrator, err := container.Orchestrator(deleter, ledger, application.NewLiteralConfirmer(prompter, ""))
	if err != nil {
		return err
	}
	report, runErr := orchestrator.Run(ctx, filtered, application.Options{
		DryRun:       opts.dryRun,
		SkipConfirm:  opts.yes,
		PreviewLimit: container.Config.PreviewLimit,
	})
	if runErr == nil || report.Aborted || report.Interrupted {
		printReport(out, report, location)
	}
	logRunMetrics(ctx)
	return runErr
}

// authenticate resolves the account behind the configured token. It runs
// before any item is loaded so a bad token stops the run with no work done.
func authenticate(ctx context.Context, out io.Writer) (*xapi.Client, domain.User, error) {
	client, err := container.APIClient(ctx)
	if err != nil {
		return nil, domain.User{}, err
	}
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, domain.User{}, err
	}
	fmt.Fprintf(out, "Authenticated as @%s\n", user.Handle)
	return client, user, nil
}

// ledgerLocation describes where the ledger lives without leaking
// credentials from a database URL.
func ledgerLocation(ledger any, flag, configured string) string {
	if p, ok := ledger.(interface{ Path() string }); ok {
		return p.Path()
	}
	location := flag
	if location == "" {
		location = configured
	}
	if u, err := url.Parse(location); err == nil && u.User != nil {
		return u.Redacted()
	}
	return location
}

func printReport(out io.Writer, report *application.Report, ledger string) {
	if report == nil {
		return
	}

	rule := strings.Repeat("=", 60)
	if report.DryRun {
		fmt.Fprintf(out, "\n%s\nDRY RUN - would delete %d tweets:\n%s\n", rule, report.Candidates, rule)
		for i, item := range report.Preview {
			created := item.CreatedAt
			if created == "" {
				created = "unknown date"
			}
			fmt.Fprintf(out, "  %d. [%s] %s\n", i+1, created, item.Preview(previewWidth))
		}
		if more := report.Candidates - len(report.Preview); more > 0 {
			fmt.Fprintf(out, "  ... and %d more tweets\n", more)
		}
		fmt.Fprintln(out, "\nRun without --dry-run to actually delete these tweets.")
		return
	}

	if report.Cancelled {
		fmt.Fprintln(out, "Cancelled. Nothing was deleted.")
		return
	}

	if report.AlreadyDeleted > 0 {
		fmt.Fprintf(out, "Skipping %d already-deleted tweets (from previous runs)\n", report.AlreadyDeleted)
		if report.AlreadyDeleted == report.Candidates {
			fmt.Fprintln(out, "All tweets already deleted!")
			return
		}
	}

	fmt.Fprintf(out, "\n%s\nDone! Deleted: %d, Failed: %d\n", rule, report.Deleted, report.Failed)
	if report.AlreadyGone > 0 {
		fmt.Fprintf(out, "  (%d were already gone)\n", report.AlreadyGone)
	}
	if report.Pauses > 0 {
		fmt.Fprintf(out, "  rate limit pauses: %d\n", report.Pauses)
	}
	switch {
	case report.Aborted:
		fmt.Fprintf(out, "Run stopped: %s\nProgress is saved, run again to resume.\n", report.AbortReason)
	case report.Interrupted:
		fmt.Fprintln(out, "Interrupted. Progress is saved, run again to resume.")
	}
	fmt.Fprintf(out, "Log saved to: %s\n%s\n", ledger, rule)
}

func logRunMetrics(ctx context.Context) {
	m := container.Metrics
	logger.DebugContext(ctx, "run metrics",
		"delete_calls", len(m.GetTimings(observability.MetricDeleteCall)),
		"mean_delete_call", m.MeanTiming(observability.MetricDeleteCall).String(),
		"pages_fetched", m.GetCounter(observability.MetricPagesFetched),
		"rate_limited", m.GetCounter(observability.MetricRateLimited),
	)
}
