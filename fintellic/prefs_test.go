package fintellic

import (
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestMemoryPreferenceStore(t *testing.T) {
	prefs := NewMemoryPreferenceStore()

	_, present, err := prefs.Get(PrefKeyAuthToken)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, present)

	assert.Equal(t, nil, prefs.Set(PrefKeyAuthToken, "jwt"))
	value, present, err := prefs.Get(PrefKeyAuthToken)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, present)
	assert.Equal(t, "jwt", value)

	assert.Equal(t, nil, prefs.Remove(PrefKeyAuthToken))
	_, present, err = prefs.Get(PrefKeyAuthToken)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, present)
}

func TestSqlitePreferenceStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fintellic", "prefs.db")

	prefs, err := OpenSqlitePreferenceStore(dbPath)
	assert.Equal(t, nil, err)
	assert.Equal(t, dbPath, prefs.Path())

	assert.Equal(t, nil, prefs.Set(PrefKeyAuthToken, "jwt"))
	assert.Equal(t, nil, prefs.Set(PrefKeyUser, `{"username":"ada"}`))
	assert.Equal(t, nil, prefs.Set(PrefKeyPricing, `{"monthly":999}`))

	// upsert overwrites
	assert.Equal(t, nil, prefs.Set(PrefKeyAuthToken, "jwt2"))
	value, present, err := prefs.Get(PrefKeyAuthToken)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, present)
	assert.Equal(t, "jwt2", value)

	assert.Equal(t, nil, prefs.Remove(PrefKeyAuthToken, PrefKeyUser))
	_, present, err = prefs.Get(PrefKeyAuthToken)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, present)
	_, present, err = prefs.Get(PrefKeyUser)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, present)

	assert.Equal(t, nil, prefs.Close())

	// values survive reopen
	prefs, err = OpenSqlitePreferenceStore(dbPath)
	assert.Equal(t, nil, err)
	defer prefs.Close()

	value, present, err = prefs.Get(PrefKeyPricing)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, present)
	assert.Equal(t, `{"monthly":999}`, value)
}
