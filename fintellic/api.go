package fintellic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHttpTimeout = 60 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

const apiBasePath = "/api/v1"

func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

type apiCallback[R any] interface {
	Result(result R, err error)
}

// for internal use
type simpleApiCallback[R any] struct {
	callback func(result R, err error)
}

func NewApiCallback[R any](callback func(result R, err error)) apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: callback,
	}
}

func NewNoopApiCallback[R any]() apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: func(result R, err error) {},
	}
}

func (self *simpleApiCallback[R]) Result(result R, err error) {
	self.callback(result, err)
}

type ApiCallbackResult[R any] struct {
	Result R
	Error  error
}

func NewBlockingApiCallback[R any]() (apiCallback[R], chan ApiCallbackResult[R]) {
	c := make(chan ApiCallbackResult[R])
	apiCallback := NewApiCallback[R](func(result R, err error) {
		c <- ApiCallbackResult[R]{
			Result: result,
			Error:  err,
		}
	})
	return apiCallback, c
}

// FintellicApi is the remote gateway. It is stateless except for the
// ambient bearer credential, which only the session store writes.
type FintellicApi struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiUrl string

	byJwt string
}

func NewFintellicApi(apiUrl string) *FintellicApi {
	return NewFintellicApiWithContext(context.Background(), apiUrl)
}

func NewFintellicApiWithContext(ctx context.Context, apiUrl string) *FintellicApi {
	cancelCtx, cancel := context.WithCancel(ctx)

	return &FintellicApi{
		ctx:    cancelCtx,
		cancel: cancel,
		apiUrl: apiUrl,
	}
}

// this gets attached to api calls that need it
func (self *FintellicApi) SetByJwt(byJwt string) {
	self.byJwt = byJwt
}

func (self *FintellicApi) ByJwt() string {
	return self.byJwt
}

func (self *FintellicApi) url(path string) string {
	return fmt.Sprintf("%s%s%s", self.apiUrl, apiBasePath, path)
}

type ApiUser struct {
	UserId   Id     `json:"user_id"`
	UserAuth string `json:"user_auth"`
	Username string `json:"username,omitempty"`
	Tier     string `json:"tier,omitempty"`
}

type AuthLoginWithPasswordCallback apiCallback[*AuthLoginWithPasswordResult]

type AuthLoginWithPasswordArgs struct {
	UserAuth string `json:"user_auth"`
	Password string `json:"password"`
}

type AuthLoginWithPasswordResult struct {
	ByJwt string   `json:"by_jwt"`
	User  *ApiUser `json:"user"`
}

func (self *FintellicApi) AuthLoginWithPassword(authLoginWithPassword *AuthLoginWithPasswordArgs, callback AuthLoginWithPasswordCallback) {
	go post(
		self.ctx,
		self.url("/auth/login"),
		authLoginWithPassword,
		self.byJwt,
		&AuthLoginWithPasswordResult{},
		callback,
	)
}

func (self *FintellicApi) AuthLoginWithPasswordSync(authLoginWithPassword *AuthLoginWithPasswordArgs) (*AuthLoginWithPasswordResult, error) {
	return post(
		self.ctx,
		self.url("/auth/login"),
		authLoginWithPassword,
		self.byJwt,
		&AuthLoginWithPasswordResult{},
		NewNoopApiCallback[*AuthLoginWithPasswordResult](),
	)
}

type AuthCreateAccountCallback apiCallback[*AuthCreateAccountResult]

type AuthCreateAccountArgs struct {
	UserAuth string `json:"user_auth"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type AuthCreateAccountResult struct {
	ByJwt string                  `json:"by_jwt,omitempty"`
	User  *ApiUser                `json:"user,omitempty"`
	Error *AuthCreateAccountError `json:"error,omitempty"`
}

type AuthCreateAccountError struct {
	AccountExists bool   `json:"account_exists"`
	Message       string `json:"message"`
}

func (self *FintellicApi) AuthCreateAccount(authCreateAccount *AuthCreateAccountArgs, callback AuthCreateAccountCallback) {
	go post(
		self.ctx,
		self.url("/auth/register"),
		authCreateAccount,
		self.byJwt,
		&AuthCreateAccountResult{},
		callback,
	)
}

func (self *FintellicApi) AuthCreateAccountSync(authCreateAccount *AuthCreateAccountArgs) (*AuthCreateAccountResult, error) {
	return post(
		self.ctx,
		self.url("/auth/register"),
		authCreateAccount,
		self.byJwt,
		&AuthCreateAccountResult{},
		NewNoopApiCallback[*AuthCreateAccountResult](),
	)
}

type AuthSocialLoginCallback apiCallback[*AuthSocialLoginResult]

type AuthSocialLoginArgs struct {
	Provider string `json:"provider"`
	AuthJwt  string `json:"auth_jwt"`
}

type AuthSocialLoginResult struct {
	ByJwt string   `json:"by_jwt"`
	User  *ApiUser `json:"user"`
}

func (self *FintellicApi) AuthSocialLogin(authSocialLogin *AuthSocialLoginArgs, callback AuthSocialLoginCallback) {
	go post(
		self.ctx,
		self.url("/auth/social"),
		authSocialLogin,
		self.byJwt,
		&AuthSocialLoginResult{},
		callback,
	)
}

func (self *FintellicApi) AuthSocialLoginSync(authSocialLogin *AuthSocialLoginArgs) (*AuthSocialLoginResult, error) {
	return post(
		self.ctx,
		self.url("/auth/social"),
		authSocialLogin,
		self.byJwt,
		&AuthSocialLoginResult{},
		NewNoopApiCallback[*AuthSocialLoginResult](),
	)
}

type GetFilingsCallback apiCallback[*GetFilingsResult]

type GetFilingsResult struct {
	Filings []*FilingSummary `json:"filings"`
}

func (self *FintellicApi) GetFilings(page int, pageSize int, callback GetFilingsCallback) {
	go get(
		self.ctx,
		self.url(fmt.Sprintf("/filings?page=%d&page_size=%d", page, pageSize)),
		self.byJwt,
		&GetFilingsResult{},
		callback,
	)
}

func (self *FintellicApi) GetFilingsSync(page int, pageSize int) (*GetFilingsResult, error) {
	return get(
		self.ctx,
		self.url(fmt.Sprintf("/filings?page=%d&page_size=%d", page, pageSize)),
		self.byJwt,
		&GetFilingsResult{},
		NewNoopApiCallback[*GetFilingsResult](),
	)
}

type GetFilingCallback apiCallback[*FilingDetail]

func (self *FintellicApi) GetFiling(filingId Id, callback GetFilingCallback) {
	go get(
		self.ctx,
		self.url(fmt.Sprintf("/filings/%s", filingId)),
		self.byJwt,
		&FilingDetail{},
		callback,
	)
}

func (self *FintellicApi) GetFilingSync(filingId Id) (*FilingDetail, error) {
	return get(
		self.ctx,
		self.url(fmt.Sprintf("/filings/%s", filingId)),
		self.byJwt,
		&FilingDetail{},
		NewNoopApiCallback[*FilingDetail](),
	)
}

type VoteFilingCallback apiCallback[*VoteFilingResult]

type VoteFilingArgs struct {
	VoteType VoteType `json:"vote_type"`
}

// every vote mutation returns the authoritative tallies for the filing
type VoteFilingResult struct {
	VoteCounts VoteCounts `json:"vote_counts"`
	CallerVote VoteType   `json:"caller_vote"`
}

func (self *FintellicApi) VoteFiling(filingId Id, voteFiling *VoteFilingArgs, callback VoteFilingCallback) {
	go post(
		self.ctx,
		self.url(fmt.Sprintf("/filings/%s/vote", filingId)),
		voteFiling,
		self.byJwt,
		&VoteFilingResult{},
		callback,
	)
}

func (self *FintellicApi) VoteFilingSync(filingId Id, voteFiling *VoteFilingArgs) (*VoteFilingResult, error) {
	return post(
		self.ctx,
		self.url(fmt.Sprintf("/filings/%s/vote", filingId)),
		voteFiling,
		self.byJwt,
		&VoteFilingResult{},
		NewNoopApiCallback[*VoteFilingResult](),
	)
}

type GetEarningsCalendarCallback apiCallback[*GetEarningsCalendarResult]

type GetEarningsCalendarResult struct {
	Entries []*CalendarEntry `json:"entries"`
}

func (self *FintellicApi) GetEarningsCalendar(month string, callback GetEarningsCalendarCallback) {
	go get(
		self.ctx,
		self.url(fmt.Sprintf("/calendar?month=%s", url.QueryEscape(month))),
		self.byJwt,
		&GetEarningsCalendarResult{},
		callback,
	)
}

func (self *FintellicApi) GetEarningsCalendarSync(month string) (*GetEarningsCalendarResult, error) {
	return get(
		self.ctx,
		self.url(fmt.Sprintf("/calendar?month=%s", url.QueryEscape(month))),
		self.byJwt,
		&GetEarningsCalendarResult{},
		NewNoopApiCallback[*GetEarningsCalendarResult](),
	)
}

type SearchCompaniesCallback apiCallback[*SearchCompaniesResult]

type SearchCompaniesResult struct {
	Companies []*CompanySummary `json:"companies"`
}

type CompanySummary struct {
	Ticker      string `json:"ticker"`
	CompanyName string `json:"company_name"`
	Industry    string `json:"industry,omitempty"`
}

func (self *FintellicApi) SearchCompanies(query string, callback SearchCompaniesCallback) {
	go get(
		self.ctx,
		self.url(fmt.Sprintf("/companies/search?q=%s", url.QueryEscape(query))),
		self.byJwt,
		&SearchCompaniesResult{},
		callback,
	)
}

func (self *FintellicApi) SearchCompaniesSync(query string) (*SearchCompaniesResult, error) {
	return get(
		self.ctx,
		self.url(fmt.Sprintf("/companies/search?q=%s", url.QueryEscape(query))),
		self.byJwt,
		&SearchCompaniesResult{},
		NewNoopApiCallback[*SearchCompaniesResult](),
	)
}

type GetWatchlistCallback apiCallback[*GetWatchlistResult]

type GetWatchlistResult struct {
	Entries []*WatchlistEntry `json:"entries"`
}

func (self *FintellicApi) GetWatchlist(callback GetWatchlistCallback) {
	go get(
		self.ctx,
		self.url("/watchlist"),
		self.byJwt,
		&GetWatchlistResult{},
		callback,
	)
}

func (self *FintellicApi) GetWatchlistSync() (*GetWatchlistResult, error) {
	return get(
		self.ctx,
		self.url("/watchlist"),
		self.byJwt,
		&GetWatchlistResult{},
		NewNoopApiCallback[*GetWatchlistResult](),
	)
}

type WatchlistTickerCallback apiCallback[*WatchlistTickerResult]

type WatchlistTickerArgs struct {
	Ticker string `json:"ticker"`
}

type WatchlistTickerResult struct {
	Entries []*WatchlistEntry `json:"entries"`
}

func (self *FintellicApi) AddWatchlistTicker(watchlistTicker *WatchlistTickerArgs, callback WatchlistTickerCallback) {
	go post(
		self.ctx,
		self.url("/watchlist"),
		watchlistTicker,
		self.byJwt,
		&WatchlistTickerResult{},
		callback,
	)
}

func (self *FintellicApi) AddWatchlistTickerSync(watchlistTicker *WatchlistTickerArgs) (*WatchlistTickerResult, error) {
	return post(
		self.ctx,
		self.url("/watchlist"),
		watchlistTicker,
		self.byJwt,
		&WatchlistTickerResult{},
		NewNoopApiCallback[*WatchlistTickerResult](),
	)
}

func (self *FintellicApi) RemoveWatchlistTicker(watchlistTicker *WatchlistTickerArgs, callback WatchlistTickerCallback) {
	go post(
		self.ctx,
		self.url("/watchlist/remove"),
		watchlistTicker,
		self.byJwt,
		&WatchlistTickerResult{},
		callback,
	)
}

func (self *FintellicApi) RemoveWatchlistTickerSync(watchlistTicker *WatchlistTickerArgs) (*WatchlistTickerResult, error) {
	return post(
		self.ctx,
		self.url("/watchlist/remove"),
		watchlistTicker,
		self.byJwt,
		&WatchlistTickerResult{},
		NewNoopApiCallback[*WatchlistTickerResult](),
	)
}

type GetPricingCallback apiCallback[*PricingInfo]

func (self *FintellicApi) GetPricing(callback GetPricingCallback) {
	go get(
		self.ctx,
		self.url("/billing/pricing"),
		self.byJwt,
		&PricingInfo{},
		callback,
	)
}

func (self *FintellicApi) GetPricingSync() (*PricingInfo, error) {
	return get(
		self.ctx,
		self.url("/billing/pricing"),
		self.byJwt,
		&PricingInfo{},
		NewNoopApiCallback[*PricingInfo](),
	)
}

type GetEarlyBirdStatusCallback apiCallback[*EarlyBirdStatus]

func (self *FintellicApi) GetEarlyBirdStatus(callback GetEarlyBirdStatusCallback) {
	go get(
		self.ctx,
		self.url("/billing/early-bird"),
		self.byJwt,
		&EarlyBirdStatus{},
		callback,
	)
}

func (self *FintellicApi) GetEarlyBirdStatusSync() (*EarlyBirdStatus, error) {
	return get(
		self.ctx,
		self.url("/billing/early-bird"),
		self.byJwt,
		&EarlyBirdStatus{},
		NewNoopApiCallback[*EarlyBirdStatus](),
	)
}

type GetSubscriptionCallback apiCallback[*SubscriptionInfo]

func (self *FintellicApi) GetSubscription(callback GetSubscriptionCallback) {
	go get(
		self.ctx,
		self.url("/billing/subscription"),
		self.byJwt,
		&SubscriptionInfo{},
		callback,
	)
}

func (self *FintellicApi) GetSubscriptionSync() (*SubscriptionInfo, error) {
	return get(
		self.ctx,
		self.url("/billing/subscription"),
		self.byJwt,
		&SubscriptionInfo{},
		NewNoopApiCallback[*SubscriptionInfo](),
	)
}

type CreateSubscriptionCallback apiCallback[*SubscriptionInfo]

type CreateSubscriptionArgs struct {
	Plan         string `json:"plan"`
	PaymentToken string `json:"payment_token"`
}

func (self *FintellicApi) CreateSubscription(createSubscription *CreateSubscriptionArgs, callback CreateSubscriptionCallback) {
	go post(
		self.ctx,
		self.url("/billing/subscription"),
		createSubscription,
		self.byJwt,
		&SubscriptionInfo{},
		callback,
	)
}

func (self *FintellicApi) CreateSubscriptionSync(createSubscription *CreateSubscriptionArgs) (*SubscriptionInfo, error) {
	return post(
		self.ctx,
		self.url("/billing/subscription"),
		createSubscription,
		self.byJwt,
		&SubscriptionInfo{},
		NewNoopApiCallback[*SubscriptionInfo](),
	)
}

type UpdateSubscriptionCallback apiCallback[*SubscriptionInfo]

type UpdateSubscriptionArgs struct {
	Plan string `json:"plan"`
}

func (self *FintellicApi) UpdateSubscription(updateSubscription *UpdateSubscriptionArgs, callback UpdateSubscriptionCallback) {
	go put(
		self.ctx,
		self.url("/billing/subscription"),
		updateSubscription,
		self.byJwt,
		&SubscriptionInfo{},
		callback,
	)
}

func (self *FintellicApi) UpdateSubscriptionSync(updateSubscription *UpdateSubscriptionArgs) (*SubscriptionInfo, error) {
	return put(
		self.ctx,
		self.url("/billing/subscription"),
		updateSubscription,
		self.byJwt,
		&SubscriptionInfo{},
		NewNoopApiCallback[*SubscriptionInfo](),
	)
}

type CancelSubscriptionCallback apiCallback[*SubscriptionInfo]

func (self *FintellicApi) CancelSubscription(callback CancelSubscriptionCallback) {
	go post(
		self.ctx,
		self.url("/billing/subscription/cancel"),
		nil,
		self.byJwt,
		&SubscriptionInfo{},
		callback,
	)
}

func (self *FintellicApi) CancelSubscriptionSync() (*SubscriptionInfo, error) {
	return post(
		self.ctx,
		self.url("/billing/subscription/cancel"),
		nil,
		self.byJwt,
		&SubscriptionInfo{},
		NewNoopApiCallback[*SubscriptionInfo](),
	)
}

type GetNotificationSettingsCallback apiCallback[*NotificationSettings]

func (self *FintellicApi) GetNotificationSettings(callback GetNotificationSettingsCallback) {
	go get(
		self.ctx,
		self.url("/notifications/settings"),
		self.byJwt,
		&NotificationSettings{},
		callback,
	)
}

func (self *FintellicApi) GetNotificationSettingsSync() (*NotificationSettings, error) {
	return get(
		self.ctx,
		self.url("/notifications/settings"),
		self.byJwt,
		&NotificationSettings{},
		NewNoopApiCallback[*NotificationSettings](),
	)
}

type UpdateNotificationSettingsCallback apiCallback[*NotificationSettings]

func (self *FintellicApi) UpdateNotificationSettings(settings *NotificationSettings, callback UpdateNotificationSettingsCallback) {
	go put(
		self.ctx,
		self.url("/notifications/settings"),
		settings,
		self.byJwt,
		&NotificationSettings{},
		callback,
	)
}

func (self *FintellicApi) UpdateNotificationSettingsSync(settings *NotificationSettings) (*NotificationSettings, error) {
	return put(
		self.ctx,
		self.url("/notifications/settings"),
		settings,
		self.byJwt,
		&NotificationSettings{},
		NewNoopApiCallback[*NotificationSettings](),
	)
}

type RegisterDeviceTokenCallback apiCallback[*RegisterDeviceTokenResult]

type RegisterDeviceTokenArgs struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type RegisterDeviceTokenResult struct {
	Registered bool `json:"registered"`
}

func (self *FintellicApi) RegisterDeviceToken(registerDeviceToken *RegisterDeviceTokenArgs, callback RegisterDeviceTokenCallback) {
	go post(
		self.ctx,
		self.url("/notifications/device"),
		registerDeviceToken,
		self.byJwt,
		&RegisterDeviceTokenResult{},
		callback,
	)
}

func (self *FintellicApi) RegisterDeviceTokenSync(registerDeviceToken *RegisterDeviceTokenArgs) (*RegisterDeviceTokenResult, error) {
	return post(
		self.ctx,
		self.url("/notifications/device"),
		registerDeviceToken,
		self.byJwt,
		&RegisterDeviceTokenResult{},
		NewNoopApiCallback[*RegisterDeviceTokenResult](),
	)
}

type UnregisterDeviceTokenCallback apiCallback[*UnregisterDeviceTokenResult]

type UnregisterDeviceTokenArgs struct {
	Token string `json:"token"`
}

type UnregisterDeviceTokenResult struct {
	Unregistered bool `json:"unregistered"`
}

func (self *FintellicApi) UnregisterDeviceToken(unregisterDeviceToken *UnregisterDeviceTokenArgs, callback UnregisterDeviceTokenCallback) {
	go post(
		self.ctx,
		self.url("/notifications/device/remove"),
		unregisterDeviceToken,
		self.byJwt,
		&UnregisterDeviceTokenResult{},
		callback,
	)
}

func (self *FintellicApi) UnregisterDeviceTokenSync(unregisterDeviceToken *UnregisterDeviceTokenArgs) (*UnregisterDeviceTokenResult, error) {
	return post(
		self.ctx,
		self.url("/notifications/device/remove"),
		unregisterDeviceToken,
		self.byJwt,
		&UnregisterDeviceTokenResult{},
		NewNoopApiCallback[*UnregisterDeviceTokenResult](),
	)
}

// the server reports errors as json {"detail": "..."} or plain text
func responseErrorMessage(responseBodyBytes []byte) string {
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(responseBodyBytes, &body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(responseBodyBytes))
}

func post[R any](ctx context.Context, url string, args any, byJwt string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, "POST", url, args, byJwt, result, callback)
}

func put[R any](ctx context.Context, url string, args any, byJwt string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, "PUT", url, args, byJwt, result, callback)
}

func get[R any](ctx context.Context, url string, byJwt string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, "GET", url, nil, byJwt, result, callback)
}

func request[R any](ctx context.Context, method string, url string, args any, byJwt string, result R, callback apiCallback[R]) (R, error) {
	var requestBodyBytes []byte
	if args == nil {
		requestBodyBytes = make([]byte, 0)
	} else {
		var err error
		requestBodyBytes, err = json.Marshal(args)
		if err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(requestBodyBytes))
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	req.Header.Add("Content-Type", "application/json")

	if byJwt != "" {
		auth := fmt.Sprintf("Bearer %s", byJwt)
		req.Header.Add("Authorization", auth)
	}

	client := defaultClient()
	r, err := client.Do(req)
	if err != nil {
		// transport failure with no more specific classification
		var empty R
		fetchErr := &FetchError{
			Message: err.Error(),
		}
		callback.Result(empty, fetchErr)
		return empty, fetchErr
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	if http.StatusOK != r.StatusCode {
		err = classifyStatus(r.StatusCode, responseErrorMessage(responseBodyBytes))
		callback.Result(result, err)
		return result, err
	}

	if err != nil {
		callback.Result(result, err)
		return result, err
	}

	err = json.Unmarshal(responseBodyBytes, &result)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	callback.Result(result, nil)
	return result, nil
}
