package fintellic

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"
)

func newFeedTestServer(pages map[int][]*FilingSummary) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		writeJson(w, &GetFilingsResult{
			Filings: pages[page],
		})
	}))
}

func TestFeedPagination(t *testing.T) {
	server := newFeedTestServer(map[int][]*FilingSummary{
		1: testFilingPage(0, 20),
		2: testFilingPage(20, 5),
	})
	defer server.Close()

	api := NewFintellicApi(server.URL)
	registry := NewFilingRegistry()
	feedStore := NewFeedStore(api, registry, 20)

	page, err := feedStore.FetchPage(1, true)
	assert.Equal(t, nil, err)
	assert.Equal(t, 20, len(page.Items))
	// a full page means more may exist
	assert.Equal(t, true, page.HasMore)
	assert.Equal(t, 1, feedStore.CurrentPage())

	page, err = feedStore.FetchPage(2, false)
	assert.Equal(t, nil, err)
	assert.Equal(t, 25, len(page.Items))
	// a short page means the end was reached
	assert.Equal(t, false, page.HasMore)
	assert.Equal(t, 2, feedStore.CurrentPage())
}

func TestFeedNoDuplicates(t *testing.T) {
	// page 2 re-serves two filings from page 1, as happens when new
	// filings shift the server-side pagination window
	page1 := testFilingPage(0, 20)
	page2 := append([]*FilingSummary{page1[18], page1[19]}, testFilingPage(20, 18)...)

	server := newFeedTestServer(map[int][]*FilingSummary{
		1: page1,
		2: page2,
	})
	defer server.Close()

	api := NewFintellicApi(server.URL)
	feedStore := NewFeedStore(api, NewFilingRegistry(), 20)

	feedStore.FetchPage(1, true)
	feedStore.FetchPage(2, false)

	items := feedStore.Items()
	assert.Equal(t, 38, len(items))

	seen := map[Id]bool{}
	for _, item := range items {
		assert.Equal(t, false, seen[item.FilingId])
		seen[item.FilingId] = true
	}
}

func TestFeedErrorPreservesItems(t *testing.T) {
	fail := false
	pages := map[int][]*FilingSummary{
		1: testFilingPage(0, 20),
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			writeStatus(w, 500, "upstream down")
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		writeJson(w, &GetFilingsResult{
			Filings: pages[page],
		})
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	feedStore := NewFeedStore(api, NewFilingRegistry(), 20)

	_, err := feedStore.FetchPage(1, true)
	assert.Equal(t, nil, err)

	fail = true
	_, err = feedStore.FetchPage(2, false)
	assert.NotEqual(t, nil, err)
	assert.NotEqual(t, nil, feedStore.LastError())

	// the list is never cleared on a failed append or refresh
	assert.Equal(t, 20, len(feedStore.Items()))

	_, err = feedStore.FetchPage(1, true)
	assert.NotEqual(t, nil, err)
	assert.Equal(t, 20, len(feedStore.Items()))
}

func TestFeedRefreshReplaces(t *testing.T) {
	pages := map[int][]*FilingSummary{
		1: testFilingPage(0, 20),
		2: testFilingPage(20, 20),
	}
	server := newFeedTestServer(pages)
	defer server.Close()

	api := NewFintellicApi(server.URL)
	feedStore := NewFeedStore(api, NewFilingRegistry(), 20)

	feedStore.FetchPage(1, true)
	feedStore.FetchPage(2, false)
	assert.Equal(t, 40, len(feedStore.Items()))

	pages[1] = testFilingPage(100, 20)
	page, err := feedStore.Refresh()
	assert.Equal(t, nil, err)
	assert.Equal(t, 20, len(page.Items))
	assert.Equal(t, 1, feedStore.CurrentPage())
	assert.Equal(t, testFilingId(100), page.Items[0].FilingId)
}

func TestFeedRefreshSupersedesAppend(t *testing.T) {
	appendStarted := make(chan struct{})
	releaseAppend := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 2 {
			close(appendStarted)
			<-releaseAppend
			writeJson(w, &GetFilingsResult{
				Filings: testFilingPage(20, 20),
			})
			return
		}
		writeJson(w, &GetFilingsResult{
			Filings: testFilingPage(0, 20),
		})
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	feedStore := NewFeedStore(api, NewFilingRegistry(), 20)

	feedStore.FetchPage(1, true)

	var waitGroup sync.WaitGroup
	waitGroup.Add(1)
	go func() {
		defer waitGroup.Done()
		feedStore.FetchPage(2, false)
	}()

	<-appendStarted

	// the refresh is issued after the append, so the append response is
	// superseded and discarded
	page, err := feedStore.Refresh()
	assert.Equal(t, nil, err)
	assert.Equal(t, 20, len(page.Items))

	close(releaseAppend)
	waitGroup.Wait()

	assert.Equal(t, 20, len(feedStore.Items()))
	assert.Equal(t, 1, feedStore.CurrentPage())
}

func TestFeedSupersededFailureDiscarded(t *testing.T) {
	appendStarted := make(chan struct{})
	releaseAppend := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 2 {
			close(appendStarted)
			<-releaseAppend
			writeStatus(w, 500, "upstream down")
			return
		}
		writeJson(w, &GetFilingsResult{
			Filings: testFilingPage(0, 20),
		})
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	feedStore := NewFeedStore(api, NewFilingRegistry(), 20)

	feedStore.FetchPage(1, true)

	var waitGroup sync.WaitGroup
	waitGroup.Add(1)
	go func() {
		defer waitGroup.Done()
		feedStore.FetchPage(2, false)
	}()

	<-appendStarted

	_, err := feedStore.Refresh()
	assert.Equal(t, nil, err)

	close(releaseAppend)
	waitGroup.Wait()

	// the superseded failure must not leave an error state the refresh
	// already cleared
	assert.Equal(t, nil, feedStore.LastError())
	assert.Equal(t, 20, len(feedStore.Items()))
	assert.Equal(t, 1, feedStore.CurrentPage())
}

func TestFeedSuppressesDuplicateAppend(t *testing.T) {
	requestCount := 0
	firstStarted := make(chan struct{})
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount += 1
		if requestCount == 1 {
			close(firstStarted)
			<-release
		}
		writeJson(w, &GetFilingsResult{
			Filings: testFilingPage(0, 20),
		})
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	feedStore := NewFeedStore(api, NewFilingRegistry(), 20)

	var waitGroup sync.WaitGroup
	waitGroup.Add(1)
	go func() {
		defer waitGroup.Done()
		feedStore.FetchPage(1, false)
	}()

	<-firstStarted
	assert.Equal(t, true, feedStore.IsLoading())

	// the duplicate trigger is suppressed without a request
	_, err := feedStore.FetchPage(2, false)
	assert.Equal(t, nil, err)

	close(release)
	waitGroup.Wait()

	assert.Equal(t, 1, requestCount)
}
