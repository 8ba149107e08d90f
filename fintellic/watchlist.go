package fintellic

import (
	"encoding/json"
	"sync"

	"github.com/golang/glog"
)

// WatchlistEntry arrives from the server either as a bare ticker string or
// as a detailed object. The two shapes are resolved here, once, at the api
// boundary; everything downstream sees one canonical shape.
type WatchlistEntry struct {
	Ticker      string  `json:"ticker"`
	CompanyName string  `json:"company_name,omitempty"`
	LastPrice   float64 `json:"last_price,omitempty"`
}

func (self *WatchlistEntry) UnmarshalJSON(src []byte) error {
	if 0 < len(src) && src[0] == '"' {
		var ticker string
		if err := json.Unmarshal(src, &ticker); err != nil {
			return err
		}
		*self = WatchlistEntry{
			Ticker: ticker,
		}
		return nil
	}

	// break the recursion into this unmarshaller
	type detailedWatchlistEntry WatchlistEntry
	var detailed detailedWatchlistEntry
	if err := json.Unmarshal(src, &detailed); err != nil {
		return err
	}
	*self = WatchlistEntry(detailed)
	return nil
}

// WatchlistStore tracks the user's watched tickers with an offline cache.
// Reads fall back to the last cached copy when the gateway is unavailable.
type WatchlistStore struct {
	api   *FintellicApi
	prefs PreferenceStore

	stateLock sync.Mutex
	entries   []*WatchlistEntry

	updateMonitor *Monitor
}

func NewWatchlistStore(api *FintellicApi, prefs PreferenceStore) *WatchlistStore {
	return &WatchlistStore{
		api:           api,
		prefs:         prefs,
		updateMonitor: NewMonitor(),
	}
}

func (self *WatchlistStore) Refresh() ([]*WatchlistEntry, error) {
	result, err := self.api.GetWatchlistSync()
	if err != nil {
		// stale-read fallback
		cached, ok := self.readCache()
		if !ok {
			return nil, err
		}
		glog.Infof("[watchlist]fetch failed, serving cached copy = %s\n", err)
		self.apply(cached, false)
		return self.Entries(), nil
	}

	self.apply(result.Entries, true)
	return self.Entries(), nil
}

func (self *WatchlistStore) Add(ticker string) ([]*WatchlistEntry, error) {
	if ticker == "" {
		return nil, &ValidationError{
			Message: "ticker is required",
		}
	}

	result, err := self.api.AddWatchlistTickerSync(&WatchlistTickerArgs{
		Ticker: ticker,
	})
	if err != nil {
		return nil, err
	}

	self.apply(result.Entries, true)
	return self.Entries(), nil
}

func (self *WatchlistStore) Remove(ticker string) ([]*WatchlistEntry, error) {
	result, err := self.api.RemoveWatchlistTickerSync(&WatchlistTickerArgs{
		Ticker: ticker,
	})
	if err != nil {
		return nil, err
	}

	self.apply(result.Entries, true)
	return self.Entries(), nil
}

func (self *WatchlistStore) Entries() []*WatchlistEntry {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	entries := make([]*WatchlistEntry, 0, len(self.entries))
	for _, entry := range self.entries {
		entryCopy := *entry
		entries = append(entries, &entryCopy)
	}
	return entries
}

func (self *WatchlistStore) NotifyChannel() <-chan struct{} {
	return self.updateMonitor.NotifyChannel()
}

func (self *WatchlistStore) apply(entries []*WatchlistEntry, cache bool) {
	self.stateLock.Lock()
	self.entries = entries
	self.stateLock.Unlock()

	if cache {
		if entriesJson, err := json.Marshal(entries); err == nil {
			if err := self.prefs.Set(PrefKeyWatchlist, string(entriesJson)); err != nil {
				glog.Infof("[watchlist]cache write failed = %s\n", err)
			}
		}
	}

	self.updateMonitor.NotifyAll()
}

func (self *WatchlistStore) readCache() ([]*WatchlistEntry, bool) {
	entriesJson, ok, err := self.prefs.Get(PrefKeyWatchlist)
	if err != nil || !ok {
		return nil, false
	}
	var entries []*WatchlistEntry
	if err := json.Unmarshal([]byte(entriesJson), &entries); err != nil {
		return nil, false
	}
	return entries, true
}
