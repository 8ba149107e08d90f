package fintellic

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestWatchlistEntryTaggedUnion(t *testing.T) {
	// the server mixes bare ticker strings and detailed objects in the
	// same array; both resolve to the one canonical shape
	payload := `["AAPL", {"ticker": "TSLA", "company_name": "Tesla Inc", "last_price": 412.5}, "NVDA"]`

	var entries []*WatchlistEntry
	err := json.Unmarshal([]byte(payload), &entries)
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, len(entries))

	assert.Equal(t, "AAPL", entries[0].Ticker)
	assert.Equal(t, "", entries[0].CompanyName)

	assert.Equal(t, "TSLA", entries[1].Ticker)
	assert.Equal(t, "Tesla Inc", entries[1].CompanyName)
	assert.Equal(t, 412.5, entries[1].LastPrice)

	assert.Equal(t, "NVDA", entries[2].Ticker)
}

func TestWatchlistRefreshCachesAndFallsBack(t *testing.T) {
	fail := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			writeStatus(w, 500, "upstream down")
			return
		}
		writeJson(w, &GetWatchlistResult{
			Entries: []*WatchlistEntry{
				{Ticker: "AAPL", CompanyName: "Apple Inc"},
				{Ticker: "TSLA", CompanyName: "Tesla Inc"},
			},
		})
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	prefs := NewMemoryPreferenceStore()
	watchlistStore := NewWatchlistStore(api, prefs)

	entries, err := watchlistStore.Refresh()
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(entries))

	fail = true
	entries, err = watchlistStore.Refresh()
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(entries))
	assert.Equal(t, "AAPL", entries[0].Ticker)
}

func TestWatchlistNoCacheFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, 500, "upstream down")
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	watchlistStore := NewWatchlistStore(api, NewMemoryPreferenceStore())

	_, err := watchlistStore.Refresh()
	_, ok := err.(*FetchError)
	assert.Equal(t, true, ok)
}

func TestWatchlistAddRemove(t *testing.T) {
	entries := []*WatchlistEntry{
		{Ticker: "AAPL"},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var args WatchlistTickerArgs
		readJson(r, &args)
		switch r.URL.Path {
		case "/api/v1/watchlist":
			entries = append(entries, &WatchlistEntry{Ticker: args.Ticker})
		case "/api/v1/watchlist/remove":
			next := []*WatchlistEntry{}
			for _, entry := range entries {
				if entry.Ticker != args.Ticker {
					next = append(next, entry)
				}
			}
			entries = next
		}
		writeJson(w, &WatchlistTickerResult{
			Entries: entries,
		})
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	watchlistStore := NewWatchlistStore(api, NewMemoryPreferenceStore())

	added, err := watchlistStore.Add("NVDA")
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(added))

	removed, err := watchlistStore.Remove("AAPL")
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(removed))
	assert.Equal(t, "NVDA", removed[0].Ticker)

	_, err = watchlistStore.Add("")
	_, ok := err.(*ValidationError)
	assert.Equal(t, true, ok)
}
