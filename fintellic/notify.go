package fintellic

import (
	"encoding/json"
	"sync"

	"github.com/golang/glog"
)

// server-owned notification preference flags. the client holds one copy,
// refreshed on mount and after every successful mutation.
type NotificationSettings struct {
	Enabled        bool `json:"notification_enabled"`
	WatchlistOnly  bool `json:"watchlist_only"`
	Filing10K      bool `json:"filing_10k"`
	Filing10Q      bool `json:"filing_10q"`
	Filing8K       bool `json:"filing_8k"`
	FilingS1       bool `json:"filing_s1"`
	DailyReminder  bool `json:"daily_reminder"`
	EarningsAlerts bool `json:"earnings_alerts"`
}

const (
	SettingNotificationEnabled = "notification_enabled"
	SettingWatchlistOnly       = "watchlist_only"
	SettingFiling10K           = "filing_10k"
	SettingFiling10Q           = "filing_10q"
	SettingFiling8K            = "filing_8k"
	SettingFilingS1            = "filing_s1"
	SettingDailyReminder       = "daily_reminder"
	SettingEarningsAlerts      = "earnings_alerts"
)

type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
)

// the local device notification capability, outside this core's contract
type DevicePush interface {
	IsAvailable() bool
	RequestPermission() (PermissionStatus, error)
	Token() (string, error)
	Platform() string
}

// `Synced` becomes true only after the token has been both obtained from
// the device and accepted by the server:
// unregistered -> denied | permission granted -> token obtained -> synced
type DeviceTokenState struct {
	Token         string `json:"token,omitempty"`
	HasPermission bool   `json:"has_permission"`
	Synced        bool   `json:"synced"`
}

type NotificationStore struct {
	api    *FintellicApi
	prefs  PreferenceStore
	device DevicePush

	stateLock   sync.Mutex
	settings    *NotificationSettings
	deviceToken DeviceTokenState

	updateMonitor *Monitor
}

func NewNotificationStore(api *FintellicApi, prefs PreferenceStore, device DevicePush) *NotificationStore {
	store := &NotificationStore{
		api:           api,
		prefs:         prefs,
		device:        device,
		updateMonitor: NewMonitor(),
	}

	if deviceTokenJson, ok, err := prefs.Get(PrefKeyDeviceToken); err == nil && ok {
		var deviceToken DeviceTokenState
		if err := json.Unmarshal([]byte(deviceTokenJson), &deviceToken); err == nil {
			store.deviceToken = deviceToken
		}
	}

	return store
}

func (self *NotificationStore) Refresh() (*NotificationSettings, error) {
	settings, err := self.api.GetNotificationSettingsSync()
	if err != nil {
		return nil, err
	}

	self.stateLock.Lock()
	self.settings = settings
	self.stateLock.Unlock()
	self.updateMonitor.NotifyAll()

	settingsCopy := *settings
	return &settingsCopy, nil
}

func (self *NotificationStore) Settings() *NotificationSettings {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if self.settings == nil {
		return nil
	}
	settingsCopy := *self.settings
	return &settingsCopy
}

func (self *NotificationStore) DeviceTokenState() DeviceTokenState {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.deviceToken
}

// EnablePushNotifications walks the device registration handshake:
// request permission, obtain a token, register it with the server.
// Returns true only once registration succeeds. An explicit denial
// returns false without error; the caller must not flip the stored
// enabled preference in that case.
func (self *NotificationStore) EnablePushNotifications() (bool, error) {
	if !self.device.IsAvailable() {
		return false, &PermissionError{
			Capability: "push notifications",
		}
	}

	status, err := self.device.RequestPermission()
	if err != nil {
		return false, err
	}
	if status != PermissionGranted {
		self.applyDeviceToken(DeviceTokenState{
			HasPermission: false,
		})
		return false, nil
	}

	token, err := self.device.Token()
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, &PermissionError{
			Capability: "device token",
		}
	}

	self.applyDeviceToken(DeviceTokenState{
		Token:         token,
		HasPermission: true,
	})

	if _, err := self.api.RegisterDeviceTokenSync(&RegisterDeviceTokenArgs{
		Token:    token,
		Platform: self.device.Platform(),
	}); err != nil {
		// token obtained but not accepted by the server; not synced
		return false, err
	}

	self.applyDeviceToken(DeviceTokenState{
		Token:         token,
		HasPermission: true,
		Synced:        true,
	})

	return true, nil
}

// DisablePushNotifications unregisters the device token best-effort.
// A user must always be able to opt out even if the unregister call
// fails, so a gateway failure does not block the preference update.
func (self *NotificationStore) DisablePushNotifications() {
	self.stateLock.Lock()
	token := self.deviceToken.Token
	hasPermission := self.deviceToken.HasPermission
	self.stateLock.Unlock()

	if token != "" {
		if _, err := self.api.UnregisterDeviceTokenSync(&UnregisterDeviceTokenArgs{
			Token: token,
		}); err != nil {
			glog.Infof("[notify]unregister device token failed = %s\n", err)
		}
	}

	self.applyDeviceToken(DeviceTokenState{
		Token:         token,
		HasPermission: hasPermission,
		Synced:        false,
	})
}

// UpdateSetting flips one preference flag. For `notification_enabled` the
// device registration flow runs to completion, success or explicit
// denial, before the server preference update is sent: the client must
// never report the setting as on while no usable device token is
// registered.
func (self *NotificationStore) UpdateSetting(key string, value bool) (*NotificationSettings, error) {
	self.stateLock.Lock()
	var next NotificationSettings
	if self.settings != nil {
		next = *self.settings
	}
	self.stateLock.Unlock()

	if key == SettingNotificationEnabled {
		if value {
			enabled, err := self.EnablePushNotifications()
			if err != nil {
				return nil, err
			}
			if !enabled {
				// denied. the stored preference is left unchanged
				return nil, &PermissionError{
					Capability: "push notifications",
				}
			}
		} else {
			self.DisablePushNotifications()
		}
	}

	if err := setSettingField(&next, key, value); err != nil {
		return nil, err
	}

	settings, err := self.api.UpdateNotificationSettingsSync(&next)
	if err != nil {
		return nil, err
	}

	self.stateLock.Lock()
	self.settings = settings
	self.stateLock.Unlock()
	self.updateMonitor.NotifyAll()

	settingsCopy := *settings
	return &settingsCopy, nil
}

func (self *NotificationStore) NotifyChannel() <-chan struct{} {
	return self.updateMonitor.NotifyChannel()
}

func (self *NotificationStore) applyDeviceToken(deviceToken DeviceTokenState) {
	self.stateLock.Lock()
	self.deviceToken = deviceToken
	self.stateLock.Unlock()

	if deviceTokenJson, err := json.Marshal(deviceToken); err == nil {
		if prefErr := self.prefs.Set(PrefKeyDeviceToken, string(deviceTokenJson)); prefErr != nil {
			glog.Infof("[notify]device token persist failed = %s\n", prefErr)
		}
	}
	self.updateMonitor.NotifyAll()
}

func setSettingField(settings *NotificationSettings, key string, value bool) error {
	switch key {
	case SettingNotificationEnabled:
		settings.Enabled = value
	case SettingWatchlistOnly:
		settings.WatchlistOnly = value
	case SettingFiling10K:
		settings.Filing10K = value
	case SettingFiling10Q:
		settings.Filing10Q = value
	case SettingFiling8K:
		settings.Filing8K = value
	case SettingFilingS1:
		settings.FilingS1 = value
	case SettingDailyReminder:
		settings.DailyReminder = value
	case SettingEarningsAlerts:
		settings.EarningsAlerts = value
	default:
		return &ValidationError{
			Message: "unknown setting: " + key,
		}
	}
	return nil
}
