package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/docopt/docopt-go"

	"github.com/EvanHao918/fintellic-mobile-sub000/fintellic"
)

const LocalVersion = "0.0.0-local"

func main() {
	defaults := fintellic.DefaultClientSettings()

	usage := fmt.Sprintf(
		`Fintellic operator cli.

The default urls are:
    api_url: %s
    live_url: %s

Usage:
    fintellicctl login --user_auth=<user_auth> [--password=<password>]
        [--api_url=<api_url>]
    fintellicctl logout
    fintellicctl feed [--pages=<pages>] [--api_url=<api_url>]
    fintellicctl vote <filing_id> <vote> [--api_url=<api_url>]
    fintellicctl watchlist [add <ticker> | remove <ticker>] [--api_url=<api_url>]
    fintellicctl pricing [--api_url=<api_url>]
    fintellicctl calendar [<month>] [--api_url=<api_url>]
    fintellicctl tail [--api_url=<api_url>] [--live_url=<live_url>]

Options:
    -h --help                Show this screen.
    --version                Show version.
    --api_url=<api_url>
    --live_url=<live_url>
    --user_auth=<user_auth>
    --password=<password>
    --pages=<pages>          Feed pages to load [default: 1].`,
		defaults.ApiUrl,
		defaults.LiveUrl,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], Version())
	if err != nil {
		panic(err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	event := fintellic.NewEventWithContext(cancelCtx)
	event.SetOnSignals(syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	ctx := event.Ctx()

	settings := loadSettings(opts)

	prefs, err := fintellic.OpenSqlitePreferenceStore(
		filepath.Join(fintellic.DataDir(), "prefs.db"),
	)
	if err != nil {
		panic(err)
	}
	defer prefs.Close()

	api := fintellic.NewFintellicApiWithContext(ctx, settings.ApiUrl)
	sessionStore := fintellic.NewSessionStore(api, prefs)

	if login_, _ := opts.Bool("login"); login_ {
		login(sessionStore, opts)
	} else if logout_, _ := opts.Bool("logout"); logout_ {
		requireSession(sessionStore)
		if err := sessionStore.Logout(); err != nil {
			panic(err)
		}
		fmt.Printf("logged out\n")
	} else if feed_, _ := opts.Bool("feed"); feed_ {
		requireSession(sessionStore)
		feed(api, opts, settings)
	} else if vote_, _ := opts.Bool("vote"); vote_ {
		requireSession(sessionStore)
		vote(api, opts)
	} else if watchlist_, _ := opts.Bool("watchlist"); watchlist_ {
		requireSession(sessionStore)
		watchlist(api, prefs, opts)
	} else if pricing_, _ := opts.Bool("pricing"); pricing_ {
		requireSession(sessionStore)
		pricing(api, prefs)
	} else if calendar_, _ := opts.Bool("calendar"); calendar_ {
		requireSession(sessionStore)
		calendar(api, opts)
	} else if tail_, _ := opts.Bool("tail"); tail_ {
		session := requireSession(sessionStore)
		tail(ctx, api, settings, session)
	}
}

func loadSettings(opts docopt.Opts) *fintellic.ClientSettings {
	settings := fintellic.DefaultClientSettings()

	if path, ok := fintellic.ResolveConfigPath(""); ok {
		loaded, err := fintellic.LoadClientSettings(path)
		if err != nil {
			panic(err)
		}
		settings = loaded
	}

	if apiUrlAny := opts["--api_url"]; apiUrlAny != nil {
		settings.ApiUrl = apiUrlAny.(string)
	}
	if liveUrlAny := opts["--live_url"]; liveUrlAny != nil {
		settings.LiveUrl = liveUrlAny.(string)
	}

	return settings
}

func login(sessionStore *fintellic.SessionStore, opts docopt.Opts) {
	userAuth := opts["--user_auth"].(string)

	var password string
	if passwordAny := opts["--password"]; passwordAny != nil {
		password = passwordAny.(string)
	} else {
		fmt.Print("Enter password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			panic(err)
		}
		password = string(passwordBytes)
		fmt.Printf("\n")
	}

	session, err := sessionStore.Login(userAuth, password)
	if err != nil {
		panic(err)
	}

	fmt.Printf("user_id: %s\n", session.UserId)
	fmt.Printf("username: %s\n", session.Username)
}

func requireSession(sessionStore *fintellic.SessionStore) *fintellic.Session {
	session, err := sessionStore.RestoreSession()
	if err != nil {
		panic(err)
	}
	if session == nil || !session.Authenticated {
		fmt.Printf("not logged in. run `fintellicctl login` first.\n")
		os.Exit(1)
	}
	return session
}

func feed(api *fintellic.FintellicApi, opts docopt.Opts, settings *fintellic.ClientSettings) {
	pages, _ := opts.Int("--pages")

	registry := fintellic.NewFilingRegistry()
	feedStore := fintellic.NewFeedStore(api, registry, settings.PageSize)

	if _, err := feedStore.Refresh(); err != nil {
		panic(err)
	}
	for i := 1; i < pages && feedStore.HasMore(); i += 1 {
		if _, err := feedStore.NextPage(); err != nil {
			panic(err)
		}
	}

	for _, filing := range feedStore.Items() {
		printFiling(filing)
	}
	if feedStore.HasMore() {
		fmt.Printf("... more available\n")
	}
}

func vote(api *fintellic.FintellicApi, opts docopt.Opts) {
	filingId, err := fintellic.ParseId(opts["<filing_id>"].(string))
	if err != nil {
		panic(err)
	}
	voteType := fintellic.VoteType(opts["<vote>"].(string))

	registry := fintellic.NewFilingRegistry()
	voteService := fintellic.NewVoteService(api, registry)

	voteState, err := voteService.CastVote(filingId, voteType)
	if err != nil {
		panic(err)
	}

	fmt.Printf(
		"%s: bullish=%d neutral=%d bearish=%d (you: %s)\n",
		filingId,
		voteState.VoteCounts.Bullish,
		voteState.VoteCounts.Neutral,
		voteState.VoteCounts.Bearish,
		voteState.CallerVote,
	)
}

func watchlist(api *fintellic.FintellicApi, prefs fintellic.PreferenceStore, opts docopt.Opts) {
	watchlistStore := fintellic.NewWatchlistStore(api, prefs)

	var entries []*fintellic.WatchlistEntry
	var err error
	if add_, _ := opts.Bool("add"); add_ {
		entries, err = watchlistStore.Add(opts["<ticker>"].(string))
	} else if remove_, _ := opts.Bool("remove"); remove_ {
		entries, err = watchlistStore.Remove(opts["<ticker>"].(string))
	} else {
		entries, err = watchlistStore.Refresh()
	}
	if err != nil {
		panic(err)
	}

	for _, entry := range entries {
		if entry.CompanyName != "" {
			fmt.Printf("%-8s %s\n", entry.Ticker, entry.CompanyName)
		} else {
			fmt.Printf("%s\n", entry.Ticker)
		}
	}
}

func pricing(api *fintellic.FintellicApi, prefs fintellic.PreferenceStore) {
	billingStore := fintellic.NewBillingStore(api, prefs)

	pricingInfo, err := billingStore.FetchPricing()
	if err != nil {
		panic(err)
	}
	fmt.Printf("monthly: %.2f %s\n", pricingInfo.MonthlyPrice, pricingInfo.Currency)
	fmt.Printf("yearly: %.2f %s\n", pricingInfo.YearlyPrice, pricingInfo.Currency)

	earlyBird, err := billingStore.FetchEarlyBirdStatus()
	if err != nil {
		panic(err)
	}
	if earlyBird.Eligible {
		fmt.Printf(
			"early bird: %.2f %s (%d slots remaining)\n",
			earlyBird.LockedInPrice,
			pricingInfo.Currency,
			earlyBird.SlotsRemaining,
		)
	}
}

func calendar(api *fintellic.FintellicApi, opts docopt.Opts) {
	var month string
	if monthAny := opts["<month>"]; monthAny != nil {
		month = monthAny.(string)
	} else {
		month = time.Now().Format("2006-01")
	}

	registry := fintellic.NewFilingRegistry()
	calendarStore := fintellic.NewCalendarStore(api, registry)

	entries, err := calendarStore.FetchMonth(month)
	if err != nil {
		panic(err)
	}

	for _, entry := range entries {
		fmt.Printf("%s %-8s %s", entry.Date, entry.Ticker, entry.EventType)
		if entry.Filing != nil {
			fmt.Printf(" [%s filed]", entry.Filing.FilingType)
		}
		fmt.Printf("\n")
	}
}

// tail follows the live tally stream and prints each registry change
func tail(
	ctx context.Context,
	api *fintellic.FintellicApi,
	settings *fintellic.ClientSettings,
	session *fintellic.Session,
) {
	registry := fintellic.NewFilingRegistry()
	feedStore := fintellic.NewFeedStore(api, registry, settings.PageSize)

	if _, err := feedStore.Refresh(); err != nil {
		panic(err)
	}

	transport := fintellic.NewLiveTransportWithDefaults(ctx, registry, settings.LiveUrl, session.ByJwt)
	defer transport.Close()

	for {
		notify := registry.NotifyChannel()
		select {
		case <-ctx.Done():
			return
		case <-notify:
		}
		for _, filing := range feedStore.Items() {
			printFiling(filing)
		}
		fmt.Printf("---\n")
	}
}

func printFiling(filing *fintellic.FilingSummary) {
	fmt.Printf(
		"%s %-8s %-5s %s (bullish=%d neutral=%d bearish=%d)\n",
		filing.PublishedAt.Format("2006-01-02"),
		filing.Ticker,
		filing.FilingType,
		filing.OneLiner,
		filing.VoteCounts.Bullish,
		filing.VoteCounts.Neutral,
		filing.VoteCounts.Bearish,
	)
}

func Version() string {
	if version := os.Getenv("FINTELLIC_VERSION"); version != "" {
		return version
	}
	return LocalVersion
}
