package fintellic

import (
	"sync"
	"time"
)

var searchLog = LogFn(LogLevelDebug, "search")

type SearchResultFunction = func(query string, companies []*CompanySummary, err error)

// SearchDebouncer is a single-slot timer: a new keystroke cancels and
// replaces any pending timer, so at most one search request is issued per
// settling period. A response that was overtaken by a newer keystroke is
// dropped.
type SearchDebouncer struct {
	api           *FintellicApi
	settleTimeout time.Duration
	callback      SearchResultFunction

	stateLock        sync.Mutex
	pendingTimer     *time.Timer
	issuedGeneration uint64
}

func NewSearchDebouncerWithDefaults(api *FintellicApi, callback SearchResultFunction) *SearchDebouncer {
	return NewSearchDebouncer(api, DefaultClientSettings().SearchDebounce, callback)
}

func NewSearchDebouncer(api *FintellicApi, settleTimeout time.Duration, callback SearchResultFunction) *SearchDebouncer {
	return &SearchDebouncer{
		api:           api,
		settleTimeout: settleTimeout,
		callback:      callback,
	}
}

// Update registers the latest query text. The search fires once the text
// has settled for the debounce period.
func (self *SearchDebouncer) Update(query string) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.issuedGeneration += 1
	generation := self.issuedGeneration

	if self.pendingTimer != nil {
		self.pendingTimer.Stop()
		self.pendingTimer = nil
	}
	if query == "" {
		return
	}

	self.pendingTimer = time.AfterFunc(self.settleTimeout, func() {
		self.run(generation, query)
	})
}

func (self *SearchDebouncer) Cancel() {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.issuedGeneration += 1
	if self.pendingTimer != nil {
		self.pendingTimer.Stop()
		self.pendingTimer = nil
	}
}

func (self *SearchDebouncer) run(generation uint64, query string) {
	result, err := self.api.SearchCompaniesSync(query)

	self.stateLock.Lock()
	latest := generation == self.issuedGeneration
	self.stateLock.Unlock()

	if !latest {
		searchLog("discard stale search %q", query)
		return
	}

	if err != nil {
		self.callback(query, nil, err)
		return
	}
	self.callback(query, result.Companies, nil)
}
