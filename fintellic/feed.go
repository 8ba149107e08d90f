package fintellic

import (
	"sync"

	"github.com/golang/glog"
)

var feedLog = LogFn(LogLevelDebug, "feed")

// FeedPage is one applied fetch result.
// `HasMore` is a named policy, not a server cursor: a full page means more
// may exist, a short page means the end was reached.
type FeedPage struct {
	Items   []*FilingSummary
	HasMore bool
}

// FeedStore holds the ordered filing list for infinite scroll.
// Order is server-assigned recency order, never client-reordered; ids are
// unique within the list. Every successful fetch publishes its items into
// the filing registry so vote state for freshly loaded items is
// immediately consistent with any prior mutation.
type FeedStore struct {
	api      *FintellicApi
	registry *FilingRegistry

	pageSize int

	stateLock    sync.Mutex
	items        []*FilingSummary
	itemIds      map[Id]bool
	currentPage  int
	hasMore      bool
	isLoading    bool
	isRefreshing bool
	lastError    error

	// requests are tagged with a monotonically increasing generation;
	// a response is applied only if its generation is the latest issued
	issuedGeneration uint64

	updateMonitor *Monitor
}

func NewFeedStoreWithDefaults(api *FintellicApi, registry *FilingRegistry) *FeedStore {
	return NewFeedStore(api, registry, DefaultClientSettings().PageSize)
}

func NewFeedStore(api *FintellicApi, registry *FilingRegistry, pageSize int) *FeedStore {
	return &FeedStore{
		api:           api,
		registry:      registry,
		pageSize:      pageSize,
		items:         []*FilingSummary{},
		itemIds:       map[Id]bool{},
		hasMore:       true,
		updateMonitor: NewMonitor(),
	}
}

// FetchPage loads one page. `isRefresh` replaces the whole list and resets
// to page 1; otherwise the page is appended. A duplicate trigger while a
// fetch is already in flight is suppressed and returns the current state
// without issuing a request. A fetch failure preserves whatever items are
// already loaded.
func (self *FeedStore) FetchPage(pageNumber int, isRefresh bool) (*FeedPage, error) {
	self.stateLock.Lock()
	// a refresh may overtake an in-flight append; its generation
	// supersedes the append response. duplicate like-kind triggers are
	// suppressed.
	suppressed := false
	if isRefresh {
		pageNumber = 1
		suppressed = self.isRefreshing
	} else {
		suppressed = self.isLoading || self.isRefreshing
	}
	if suppressed {
		page := &FeedPage{
			Items:   self.itemsSnapshotLocked(),
			HasMore: self.hasMore,
		}
		self.stateLock.Unlock()
		feedLog("suppressed duplicate fetch page=%d", pageNumber)
		return page, nil
	}
	if isRefresh {
		self.isRefreshing = true
	} else {
		self.isLoading = true
	}
	self.issuedGeneration += 1
	generation := self.issuedGeneration
	self.stateLock.Unlock()

	result, err := self.api.GetFilingsSync(pageNumber, self.pageSize)

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if isRefresh {
		self.isRefreshing = false
	} else {
		self.isLoading = false
	}

	if generation != self.issuedGeneration {
		// superseded by a newer request. discard deterministically,
		// success or failure; a stale error must not clobber state the
		// latest request already settled
		feedLog("discard superseded response page=%d", pageNumber)
		return &FeedPage{
			Items:   self.itemsSnapshotLocked(),
			HasMore: self.hasMore,
		}, nil
	}

	if err != nil {
		// errored. the loaded items are never cleared on a failed fetch
		self.lastError = err
		glog.Infof("[feed]fetch page=%d error = %s\n", pageNumber, err)
		return nil, err
	}

	self.lastError = nil

	// write-through so prior vote mutations and fresh items agree
	self.registry.Publish(result.Filings...)

	if isRefresh {
		self.items = []*FilingSummary{}
		self.itemIds = map[Id]bool{}
	}
	for _, summary := range result.Filings {
		if self.itemIds[summary.FilingId] {
			// duplicate across page boundaries
			continue
		}
		self.itemIds[summary.FilingId] = true
		self.items = append(self.items, summary)
	}
	self.currentPage = pageNumber
	self.hasMore = self.pageSize <= len(result.Filings)

	self.updateMonitor.NotifyAll()

	return &FeedPage{
		Items:   self.itemsSnapshotLocked(),
		HasMore: self.hasMore,
	}, nil
}

func (self *FeedStore) Refresh() (*FeedPage, error) {
	return self.FetchPage(1, true)
}

func (self *FeedStore) NextPage() (*FeedPage, error) {
	self.stateLock.Lock()
	pageNumber := self.currentPage + 1
	self.stateLock.Unlock()
	return self.FetchPage(pageNumber, false)
}

// Items reconciles every held copy against the registry and returns a
// snapshot. Reconciliation on every read cycle is the propagation
// contract that keeps all surfaces eventually consistent.
func (self *FeedStore) Items() []*FilingSummary {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.itemsSnapshotLocked()
}

func (self *FeedStore) itemsSnapshotLocked() []*FilingSummary {
	items := make([]*FilingSummary, 0, len(self.items))
	for _, item := range self.items {
		self.registry.Reconcile(item)
		itemCopy := *item
		items = append(items, &itemCopy)
	}
	return items
}

func (self *FeedStore) CurrentPage() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.currentPage
}

func (self *FeedStore) HasMore() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.hasMore
}

func (self *FeedStore) IsLoading() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.isLoading
}

func (self *FeedStore) IsRefreshing() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.isRefreshing
}

func (self *FeedStore) LastError() error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.lastError
}

func (self *FeedStore) NotifyChannel() <-chan struct{} {
	return self.updateMonitor.NotifyChannel()
}
