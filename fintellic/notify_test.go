package fintellic

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/assert/v2"
)

type testDevicePush struct {
	available       bool
	permission      PermissionStatus
	token           string
	permissionCalls int
	tokenCalls      int
}

func (self *testDevicePush) IsAvailable() bool {
	return self.available
}

func (self *testDevicePush) RequestPermission() (PermissionStatus, error) {
	self.permissionCalls += 1
	return self.permission, nil
}

func (self *testDevicePush) Token() (string, error) {
	self.tokenCalls += 1
	return self.token, nil
}

func (self *testDevicePush) Platform() string {
	return "ios"
}

type notifyTestServer struct {
	*httptest.Server

	settings        NotificationSettings
	registerCalls   int
	unregisterCalls int
	updateCalls     int
	failRegister    bool
	failUnregister  bool
}

func newNotifyTestServer() *notifyTestServer {
	self := &notifyTestServer{}
	self.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/notifications/settings":
			if r.Method == "PUT" {
				self.updateCalls += 1
				readJson(r, &self.settings)
			}
			writeJson(w, &self.settings)
		case "/api/v1/notifications/device":
			self.registerCalls += 1
			if self.failRegister {
				writeStatus(w, 500, "push provider down")
				return
			}
			writeJson(w, &RegisterDeviceTokenResult{
				Registered: true,
			})
		case "/api/v1/notifications/device/remove":
			self.unregisterCalls += 1
			if self.failUnregister {
				writeStatus(w, 500, "push provider down")
				return
			}
			writeJson(w, &UnregisterDeviceTokenResult{
				Unregistered: true,
			})
		}
	}))
	return self
}

func TestEnableDeniedLeavesSettingUnchanged(t *testing.T) {
	server := newNotifyTestServer()
	defer server.Close()

	device := &testDevicePush{
		available:  true,
		permission: PermissionDenied,
	}

	api := NewFintellicApi(server.URL)
	notificationStore := NewNotificationStore(api, NewMemoryPreferenceStore(), device)

	notificationStore.Refresh()

	enabled, err := notificationStore.EnablePushNotifications()
	assert.Equal(t, nil, err)
	assert.Equal(t, false, enabled)
	assert.Equal(t, 0, device.tokenCalls)
	assert.Equal(t, 0, server.registerCalls)

	// the enable flow runs before any preference update; on denial the
	// server never sees the flag flip and the stored setting stays false
	_, err = notificationStore.UpdateSetting(SettingNotificationEnabled, true)
	_, ok := err.(*PermissionError)
	assert.Equal(t, true, ok)
	assert.Equal(t, 0, server.updateCalls)
	assert.Equal(t, false, notificationStore.Settings().Enabled)
}

func TestEnableRegistersDeviceToken(t *testing.T) {
	server := newNotifyTestServer()
	defer server.Close()

	device := &testDevicePush{
		available:  true,
		permission: PermissionGranted,
		token:      "device-token-1",
	}

	api := NewFintellicApi(server.URL)
	prefs := NewMemoryPreferenceStore()
	notificationStore := NewNotificationStore(api, prefs, device)

	notificationStore.Refresh()

	settings, err := notificationStore.UpdateSetting(SettingNotificationEnabled, true)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, settings.Enabled)
	assert.Equal(t, 1, server.registerCalls)
	assert.Equal(t, 1, server.updateCalls)

	deviceToken := notificationStore.DeviceTokenState()
	assert.Equal(t, "device-token-1", deviceToken.Token)
	assert.Equal(t, true, deviceToken.HasPermission)
	assert.Equal(t, true, deviceToken.Synced)

	// the token state survives a restart
	restarted := NewNotificationStore(api, prefs, device)
	assert.Equal(t, deviceToken, restarted.DeviceTokenState())
}

func TestEnableRegistrationFailureNotSynced(t *testing.T) {
	server := newNotifyTestServer()
	defer server.Close()
	server.failRegister = true

	device := &testDevicePush{
		available:  true,
		permission: PermissionGranted,
		token:      "device-token-1",
	}

	api := NewFintellicApi(server.URL)
	notificationStore := NewNotificationStore(api, NewMemoryPreferenceStore(), device)

	notificationStore.Refresh()

	enabled, err := notificationStore.EnablePushNotifications()
	assert.NotEqual(t, nil, err)
	assert.Equal(t, false, enabled)

	// token obtained but never accepted by the server
	deviceToken := notificationStore.DeviceTokenState()
	assert.Equal(t, "device-token-1", deviceToken.Token)
	assert.Equal(t, false, deviceToken.Synced)

	// the preference update is blocked too
	_, err = notificationStore.UpdateSetting(SettingNotificationEnabled, true)
	assert.NotEqual(t, nil, err)
	assert.Equal(t, 0, server.updateCalls)
	assert.Equal(t, false, notificationStore.Settings().Enabled)
}

func TestDisableIsBestEffort(t *testing.T) {
	server := newNotifyTestServer()
	defer server.Close()

	device := &testDevicePush{
		available:  true,
		permission: PermissionGranted,
		token:      "device-token-1",
	}

	api := NewFintellicApi(server.URL)
	notificationStore := NewNotificationStore(api, NewMemoryPreferenceStore(), device)

	notificationStore.Refresh()

	_, err := notificationStore.UpdateSetting(SettingNotificationEnabled, true)
	assert.Equal(t, nil, err)

	// the unregister call fails, but a user must always be able to opt
	// out: the preference update proceeds anyway
	server.failUnregister = true
	settings, err := notificationStore.UpdateSetting(SettingNotificationEnabled, false)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, settings.Enabled)
	assert.Equal(t, 1, server.unregisterCalls)
	assert.Equal(t, false, notificationStore.DeviceTokenState().Synced)
}

func TestOtherSettingsSkipDeviceFlow(t *testing.T) {
	server := newNotifyTestServer()
	defer server.Close()

	device := &testDevicePush{
		available:  true,
		permission: PermissionDenied,
	}

	api := NewFintellicApi(server.URL)
	notificationStore := NewNotificationStore(api, NewMemoryPreferenceStore(), device)

	notificationStore.Refresh()

	// non-enablement keys update directly, even with permission denied
	settings, err := notificationStore.UpdateSetting(SettingWatchlistOnly, true)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, settings.WatchlistOnly)
	assert.Equal(t, 0, device.permissionCalls)
	assert.Equal(t, 1, server.updateCalls)

	_, err = notificationStore.UpdateSetting("bogus_key", true)
	_, ok := err.(*ValidationError)
	assert.Equal(t, true, ok)
}

func TestEnableUnavailableCapability(t *testing.T) {
	server := newNotifyTestServer()
	defer server.Close()

	device := &testDevicePush{
		available: false,
	}

	api := NewFintellicApi(server.URL)
	notificationStore := NewNotificationStore(api, NewMemoryPreferenceStore(), device)

	enabled, err := notificationStore.EnablePushNotifications()
	assert.Equal(t, false, enabled)
	_, ok := err.(*PermissionError)
	assert.Equal(t, true, ok)
}
