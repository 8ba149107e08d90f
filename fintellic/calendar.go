package fintellic

import (
	"sync"

	"github.com/golang/glog"
)

type CalendarEntry struct {
	Date        string         `json:"date"`
	Ticker      string         `json:"ticker"`
	CompanyName string         `json:"company_name"`
	EventType   string         `json:"event_type"`
	Filing      *FilingSummary `json:"filing,omitempty"`
}

// CalendarStore holds one month of earnings calendar entries. Entries that
// reference filings publish into the registry, so a vote cast anywhere is
// visible on the calendar surface too.
type CalendarStore struct {
	api      *FintellicApi
	registry *FilingRegistry

	stateLock sync.Mutex
	month     string
	entries   []*CalendarEntry
	isLoading bool
	lastError error

	issuedGeneration uint64

	updateMonitor *Monitor
}

func NewCalendarStore(api *FintellicApi, registry *FilingRegistry) *CalendarStore {
	return &CalendarStore{
		api:           api,
		registry:      registry,
		entries:       []*CalendarEntry{},
		updateMonitor: NewMonitor(),
	}
}

// FetchMonth loads the entries for a month ("2026-08"). Switching months
// while a fetch is in flight supersedes the older response.
func (self *CalendarStore) FetchMonth(month string) ([]*CalendarEntry, error) {
	self.stateLock.Lock()
	self.isLoading = true
	self.issuedGeneration += 1
	generation := self.issuedGeneration
	self.stateLock.Unlock()

	result, err := self.api.GetEarningsCalendarSync(month)

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.isLoading = false

	if err != nil {
		// loaded entries are preserved on a failed fetch
		self.lastError = err
		glog.Infof("[calendar]fetch %s error = %s\n", month, err)
		return nil, err
	}

	if generation != self.issuedGeneration {
		return self.entriesSnapshotLocked(), nil
	}

	self.lastError = nil

	for _, entry := range result.Entries {
		if entry.Filing != nil {
			self.registry.Publish(entry.Filing)
		}
	}

	self.month = month
	self.entries = result.Entries

	self.updateMonitor.NotifyAll()

	return self.entriesSnapshotLocked(), nil
}

func (self *CalendarStore) Entries() []*CalendarEntry {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.entriesSnapshotLocked()
}

func (self *CalendarStore) entriesSnapshotLocked() []*CalendarEntry {
	entries := make([]*CalendarEntry, 0, len(self.entries))
	for _, entry := range self.entries {
		entryCopy := *entry
		if entry.Filing != nil {
			self.registry.Reconcile(entry.Filing)
			filingCopy := *entry.Filing
			entryCopy.Filing = &filingCopy
		}
		entries = append(entries, &entryCopy)
	}
	return entries
}

func (self *CalendarStore) Month() string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.month
}

func (self *CalendarStore) IsLoading() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.isLoading
}

func (self *CalendarStore) LastError() error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.lastError
}

func (self *CalendarStore) NotifyChannel() <-chan struct{} {
	return self.updateMonitor.NotifyChannel()
}
