package fintellic

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestPricingStaleReadFallback(t *testing.T) {
	fail := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			writeStatus(w, 500, "upstream down")
			return
		}
		writeJson(w, &PricingInfo{
			MonthlyPrice: 39,
			YearlyPrice:  399,
			Currency:     "USD",
		})
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	prefs := NewMemoryPreferenceStore()
	billingStore := NewBillingStore(api, prefs)

	pricing, err := billingStore.FetchPricing()
	assert.Equal(t, nil, err)
	assert.Equal(t, 39.0, pricing.MonthlyPrice)

	// the gateway goes away; the cached copy is served instead
	fail = true
	pricing, err = billingStore.FetchPricing()
	assert.Equal(t, nil, err)
	assert.Equal(t, 39.0, pricing.MonthlyPrice)
	assert.Equal(t, "USD", pricing.Currency)
}

func TestPricingNoCacheFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, 500, "upstream down")
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	billingStore := NewBillingStore(api, NewMemoryPreferenceStore())

	// first-ever fetch with no prior cache: no fallback available
	_, err := billingStore.FetchPricing()
	_, ok := err.(*FetchError)
	assert.Equal(t, true, ok)
	assert.Equal(t, nil, billingStore.Pricing())
}

func TestCachesAreIndependent(t *testing.T) {
	failEarlyBird := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/billing/pricing":
			writeJson(w, &PricingInfo{
				MonthlyPrice: 39,
				Currency:     "USD",
			})
		case "/api/v1/billing/early-bird":
			if failEarlyBird {
				writeStatus(w, 500, "upstream down")
				return
			}
			writeJson(w, &EarlyBirdStatus{
				Eligible:       true,
				LockedInPrice:  19,
				SlotsRemaining: 42,
			})
		}
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	billingStore := NewBillingStore(api, NewMemoryPreferenceStore())

	_, err := billingStore.FetchPricing()
	assert.Equal(t, nil, err)

	// early-bird failing with no cache does not disturb pricing
	failEarlyBird = true
	_, err = billingStore.FetchEarlyBirdStatus()
	assert.NotEqual(t, nil, err)
	assert.NotEqual(t, nil, billingStore.Pricing())
	assert.Equal(t, nil, billingStore.EarlyBirdStatus())
}

func TestSubscriptionCommandReplacesWholesale(t *testing.T) {
	subscriptionId := testFilingId(80)
	failUpdate := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "PUT" && failUpdate {
			writeStatus(w, 500, "billing provider down")
			return
		}
		plan := "monthly"
		if r.Method == "PUT" {
			plan = "yearly"
		}
		writeJson(w, &SubscriptionInfo{
			SubscriptionId: subscriptionId,
			Plan:           plan,
			Status:         "active",
			ExpiresAt:      time.Date(2027, 8, 31, 0, 0, 0, 0, time.UTC),
			EarlyBird:      true,
		})
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	billingStore := NewBillingStore(api, NewMemoryPreferenceStore())

	created, err := billingStore.CreateSubscription("monthly", "payment-token")
	assert.Equal(t, nil, err)
	assert.Equal(t, "monthly", created.Plan)
	assert.Equal(t, subscriptionId, created.SubscriptionId)

	updated, err := billingStore.UpdateSubscription("yearly")
	assert.Equal(t, nil, err)
	assert.Equal(t, "yearly", updated.Plan)

	// a failed command retains the last-known-good subscription
	failUpdate = true
	_, err = billingStore.UpdateSubscription("monthly")
	assert.NotEqual(t, nil, err)
	assert.Equal(t, "yearly", billingStore.Subscription().Plan)
}

func TestClearCacheOnLogout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/billing/pricing":
			writeJson(w, &PricingInfo{
				MonthlyPrice: 39,
				Currency:     "USD",
			})
		case "/api/v1/auth/login":
			writeJson(w, &AuthLoginWithPasswordResult{
				ByJwt: "session-jwt",
				User:  &ApiUser{UserAuth: "user@example.com"},
			})
		}
	}))
	defer server.Close()

	api := NewFintellicApi(server.URL)
	prefs := NewMemoryPreferenceStore()
	billingStore := NewBillingStore(api, prefs)
	sessionStore := NewSessionStore(api, prefs)

	sessionStore.AddChangeCallback(func(session *Session) {
		if session == nil {
			billingStore.ClearCache()
		}
	})

	sessionStore.Login("user@example.com", "password123")
	billingStore.FetchPricing()
	assert.NotEqual(t, nil, billingStore.Pricing())

	sessionStore.Logout()
	assert.Equal(t, nil, billingStore.Pricing())

	_, ok, _ := prefs.Get(PrefKeyPricing)
	assert.Equal(t, false, ok)
}
