package fintellic

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/glog"
)

type PricingInfo struct {
	MonthlyPrice          float64 `json:"monthly_price"`
	YearlyPrice           float64 `json:"yearly_price"`
	EarlyBirdMonthlyPrice float64 `json:"early_bird_monthly_price,omitempty"`
	Currency              string  `json:"currency"`
}

// early-bird is a pricing eligibility tier for early-registered users
// with a locked-in rate
type EarlyBirdStatus struct {
	Eligible       bool    `json:"eligible"`
	LockedInPrice  float64 `json:"locked_in_price,omitempty"`
	SlotsRemaining int     `json:"slots_remaining,omitempty"`
}

type SubscriptionInfo struct {
	SubscriptionId Id        `json:"subscription_id"`
	Plan           string    `json:"plan"`
	Status         string    `json:"status"`
	ExpiresAt      time.Time `json:"expires_at"`
	EarlyBird      bool      `json:"early_bird,omitempty"`
}

// BillingStore caches pricing, early-bird eligibility and the current
// subscription independently. Each fetch persists its last-known-good copy
// and falls back to it when the gateway fails, so the UI can always render
// something once any fetch has ever succeeded. Cached copies live until
// overwritten or explicitly cleared; pricing and eligibility change
// infrequently enough that no expiry is applied.
type BillingStore struct {
	api   *FintellicApi
	prefs PreferenceStore

	stateLock    sync.Mutex
	pricing      *PricingInfo
	earlyBird    *EarlyBirdStatus
	subscription *SubscriptionInfo

	updateMonitor *Monitor
}

func NewBillingStore(api *FintellicApi, prefs PreferenceStore) *BillingStore {
	return &BillingStore{
		api:           api,
		prefs:         prefs,
		updateMonitor: NewMonitor(),
	}
}

// fetch with last-known-good fallback. `stale` is true when the returned
// value came from the cache because the live fetch failed. With no cached
// copy the fetch error propagates.
func fetchWithCache[T any](prefs PreferenceStore, key string, fetch func() (*T, error)) (value *T, stale bool, err error) {
	value, err = fetch()
	if err == nil {
		if valueJson, marshalErr := json.Marshal(value); marshalErr == nil {
			if cacheErr := prefs.Set(key, string(valueJson)); cacheErr != nil {
				glog.Infof("[billing]cache write %s failed = %s\n", key, cacheErr)
			}
		}
		return value, false, nil
	}

	valueJson, ok, cacheErr := prefs.Get(key)
	if cacheErr != nil || !ok {
		return nil, false, err
	}
	var cached T
	if unmarshalErr := json.Unmarshal([]byte(valueJson), &cached); unmarshalErr != nil {
		return nil, false, err
	}
	glog.Infof("[billing]fetch %s failed, serving cached copy = %s\n", key, err)
	return &cached, true, nil
}

func (self *BillingStore) FetchPricing() (*PricingInfo, error) {
	pricing, _, err := fetchWithCache(self.prefs, PrefKeyPricing, self.api.GetPricingSync)
	if err != nil {
		return nil, err
	}

	self.stateLock.Lock()
	self.pricing = pricing
	self.stateLock.Unlock()
	self.updateMonitor.NotifyAll()

	pricingCopy := *pricing
	return &pricingCopy, nil
}

func (self *BillingStore) FetchEarlyBirdStatus() (*EarlyBirdStatus, error) {
	earlyBird, _, err := fetchWithCache(self.prefs, PrefKeyEarlyBird, self.api.GetEarlyBirdStatusSync)
	if err != nil {
		return nil, err
	}

	self.stateLock.Lock()
	self.earlyBird = earlyBird
	self.stateLock.Unlock()
	self.updateMonitor.NotifyAll()

	earlyBirdCopy := *earlyBird
	return &earlyBirdCopy, nil
}

func (self *BillingStore) FetchSubscription() (*SubscriptionInfo, error) {
	subscription, _, err := fetchWithCache(self.prefs, PrefKeySubscription, self.api.GetSubscriptionSync)
	if err != nil {
		return nil, err
	}

	self.stateLock.Lock()
	self.subscription = subscription
	self.stateLock.Unlock()
	self.updateMonitor.NotifyAll()

	subscriptionCopy := *subscription
	return &subscriptionCopy, nil
}

// subscription commands replace the in-memory subscription wholesale with
// the server-returned authoritative object. On failure the prior state is
// retained and the error surfaces to the caller; the store does not retry.

func (self *BillingStore) CreateSubscription(plan string, paymentToken string) (*SubscriptionInfo, error) {
	subscription, err := self.api.CreateSubscriptionSync(&CreateSubscriptionArgs{
		Plan:         plan,
		PaymentToken: paymentToken,
	})
	if err != nil {
		return nil, err
	}
	return self.applySubscription(subscription), nil
}

func (self *BillingStore) UpdateSubscription(plan string) (*SubscriptionInfo, error) {
	subscription, err := self.api.UpdateSubscriptionSync(&UpdateSubscriptionArgs{
		Plan: plan,
	})
	if err != nil {
		return nil, err
	}
	return self.applySubscription(subscription), nil
}

func (self *BillingStore) CancelSubscription() (*SubscriptionInfo, error) {
	subscription, err := self.api.CancelSubscriptionSync()
	if err != nil {
		return nil, err
	}
	return self.applySubscription(subscription), nil
}

func (self *BillingStore) applySubscription(subscription *SubscriptionInfo) *SubscriptionInfo {
	self.stateLock.Lock()
	self.subscription = subscription
	self.stateLock.Unlock()

	if subscriptionJson, err := json.Marshal(subscription); err == nil {
		if cacheErr := self.prefs.Set(PrefKeySubscription, string(subscriptionJson)); cacheErr != nil {
			glog.Infof("[billing]cache write failed = %s\n", cacheErr)
		}
	}
	self.updateMonitor.NotifyAll()

	subscriptionCopy := *subscription
	return &subscriptionCopy
}

func (self *BillingStore) Pricing() *PricingInfo {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if self.pricing == nil {
		return nil
	}
	pricingCopy := *self.pricing
	return &pricingCopy
}

func (self *BillingStore) EarlyBirdStatus() *EarlyBirdStatus {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if self.earlyBird == nil {
		return nil
	}
	earlyBirdCopy := *self.earlyBird
	return &earlyBirdCopy
}

func (self *BillingStore) Subscription() *SubscriptionInfo {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if self.subscription == nil {
		return nil
	}
	subscriptionCopy := *self.subscription
	return &subscriptionCopy
}

// ClearCache drops the persisted billing copies. Called on logout.
func (self *BillingStore) ClearCache() error {
	self.stateLock.Lock()
	self.pricing = nil
	self.earlyBird = nil
	self.subscription = nil
	self.stateLock.Unlock()

	err := self.prefs.Remove(PrefKeyPricing, PrefKeyEarlyBird, PrefKeySubscription)
	self.updateMonitor.NotifyAll()
	return err
}

func (self *BillingStore) NotifyChannel() <-chan struct{} {
	return self.updateMonitor.NotifyChannel()
}
