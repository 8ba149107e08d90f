package fintellic

import (
	"sync"

	"github.com/golang/glog"

	"golang.org/x/exp/maps"
)

// the subset of filing fields that are mutable client-side
type FilingVoteState struct {
	VoteCounts VoteCounts
	CallerVote VoteType
}

// FilingRegistry is the single source of truth for the mutable filing
// fields (`VoteCounts`, `CallerVote`). The same filing may be materialized
// independently in the feed, the calendar and detail views; each copy
// reconciles against the registry on read. Entries are never deleted
// within a session, just superseded by fresher writes.
type FilingRegistry struct {
	stateLock  sync.Mutex
	voteStates map[Id]FilingVoteState

	updateMonitor *Monitor
}

func NewFilingRegistry() *FilingRegistry {
	return &FilingRegistry{
		voteStates:    map[Id]FilingVoteState{},
		updateMonitor: NewMonitor(),
	}
}

func (self *FilingRegistry) Get(filingId Id) (FilingVoteState, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	voteState, ok := self.voteStates[filingId]
	return voteState, ok
}

func (self *FilingRegistry) FilingIds() []Id {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return maps.Keys(self.voteStates)
}

// Write records the authoritative vote state for a filing.
// Only the vote service and the live transport call this.
func (self *FilingRegistry) Write(filingId Id, voteState FilingVoteState) {
	self.stateLock.Lock()
	previous, ok := self.voteStates[filingId]
	changed := !ok || previous != voteState
	self.voteStates[filingId] = voteState
	self.stateLock.Unlock()

	if changed {
		glog.V(2).Infof("[registry]write %s\n", filingId)
		self.updateMonitor.NotifyAll()
	}
}

// WriteVoteCounts updates the tallies only, preserving the caller's own
// vote. Used by the live transport, which streams aggregate tallies
// without per-user state.
func (self *FilingRegistry) WriteVoteCounts(filingId Id, voteCounts VoteCounts) {
	self.stateLock.Lock()
	voteState, ok := self.voteStates[filingId]
	if !ok {
		voteState = FilingVoteState{
			CallerVote: VoteNone,
		}
	}
	changed := !ok || voteState.VoteCounts != voteCounts
	voteState.VoteCounts = voteCounts
	self.voteStates[filingId] = voteState
	self.stateLock.Unlock()

	if changed {
		glog.V(2).Infof("[registry]tally %s\n", filingId)
		self.updateMonitor.NotifyAll()
	}
}

// Publish registers freshly fetched summaries, creating entries lazily.
// An existing entry is preserved: a paged response may have been
// serialized before a vote the client already confirmed, and adopting it
// would roll the user's own vote back. Fresher values arrive only through
// explicit writes (vote confirmations, live tally updates).
func (self *FilingRegistry) Publish(summaries ...*FilingSummary) {
	changed := false

	self.stateLock.Lock()
	for _, summary := range summaries {
		if _, ok := self.voteStates[summary.FilingId]; ok {
			continue
		}
		self.voteStates[summary.FilingId] = FilingVoteState{
			VoteCounts: summary.VoteCounts,
			CallerVote: summary.CallerVote,
		}
		changed = true
	}
	self.stateLock.Unlock()

	if changed {
		self.updateMonitor.NotifyAll()
	}
}

// Reconcile overwrites the summary's mutable fields with the registry's
// value if and only if they differ. Returns whether the copy changed,
// so callers can avoid unnecessary re-renders.
func (self *FilingRegistry) Reconcile(summary *FilingSummary) bool {
	voteState, ok := self.Get(summary.FilingId)
	if !ok {
		return false
	}
	if summary.VoteCounts == voteState.VoteCounts && summary.CallerVote == voteState.CallerVote {
		return false
	}
	summary.VoteCounts = voteState.VoteCounts
	summary.CallerVote = voteState.CallerVote
	return true
}

func (self *FilingRegistry) ReconcileAll(summaries []*FilingSummary) int {
	changedCount := 0
	for _, summary := range summaries {
		if self.Reconcile(summary) {
			changedCount += 1
		}
	}
	return changedCount
}

// closed on the next registry write; mounted surfaces select on this to
// re-reconcile
func (self *FilingRegistry) NotifyChannel() <-chan struct{} {
	return self.updateMonitor.NotifyChannel()
}

// VoteService applies a vote mutation to the registry.
// The mutation is pessimistic-confirmed: the registry is written only in
// the fulfilled phase, with the authoritative tallies returned by the
// server. On failure the registry is left unchanged.
type VoteService struct {
	api      *FintellicApi
	registry *FilingRegistry
}

func NewVoteService(api *FintellicApi, registry *FilingRegistry) *VoteService {
	return &VoteService{
		api:      api,
		registry: registry,
	}
}

func (self *VoteService) CastVote(filingId Id, voteType VoteType) (FilingVoteState, error) {
	result, err := self.api.VoteFilingSync(filingId, &VoteFilingArgs{
		VoteType: voteType,
	})
	if err != nil {
		switch e := err.(type) {
		case *AuthError:
			return FilingVoteState{}, &VoteError{
				FilingId: filingId,
				Message:  e.Message,
			}
		case *ValidationError:
			return FilingVoteState{}, &VoteError{
				FilingId: filingId,
				Message:  e.Message,
			}
		case *FetchError:
			// a missing filing is the server rejecting the vote, not a
			// transport failure
			if e.StatusCode == 404 {
				return FilingVoteState{}, &VoteError{
					FilingId: filingId,
					Message:  e.Message,
				}
			}
			return FilingVoteState{}, err
		default:
			return FilingVoteState{}, err
		}
	}

	voteState := FilingVoteState{
		VoteCounts: result.VoteCounts,
		CallerVote: result.CallerVote,
	}
	self.registry.Write(filingId, voteState)

	glog.V(2).Infof("[vote]%s %s\n", filingId, voteType)
	return voteState, nil
}
