package fintellic

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// namespaced preference keys. the preference store doubles as the offline
// cache and the credential store.
const (
	PrefKeyAuthToken            = "fintellic.auth_token"
	PrefKeyUser                 = "fintellic.user"
	PrefKeyInstanceId           = "fintellic.instance_id"
	PrefKeyWatchlist            = "fintellic.watchlist"
	PrefKeyPricing              = "fintellic.pricing"
	PrefKeyEarlyBird            = "fintellic.early_bird"
	PrefKeySubscription         = "fintellic.subscription"
	PrefKeyDeviceToken          = "fintellic.device_token"
	PrefKeyNotificationSettings = "fintellic.notification_settings"
)

// opaque scoped key-value storage.
// `Get` returns (value, present, err); a missing key is not an error.
type PreferenceStore interface {
	Get(key string) (string, bool, error)
	Set(key string, value string) error
	Remove(keys ...string) error
}

type MemoryPreferenceStore struct {
	stateLock sync.Mutex
	values    map[string]string
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{
		values: map[string]string{},
	}
}

func (self *MemoryPreferenceStore) Get(key string) (string, bool, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	value, ok := self.values[key]
	return value, ok, nil
}

func (self *MemoryPreferenceStore) Set(key string, value string) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.values[key] = value
	return nil
}

func (self *MemoryPreferenceStore) Remove(keys ...string) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	for _, key := range keys {
		delete(self.values, key)
	}
	return nil
}

// SqlitePreferenceStore persists preferences in a single-table SQLite
// database on device.
type SqlitePreferenceStore struct {
	conn *sql.DB
	path string
}

func OpenSqlitePreferenceStore(dbPath string) (*SqlitePreferenceStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening preference store: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &SqlitePreferenceStore{
		conn: conn,
		path: dbPath,
	}, nil
}

func (self *SqlitePreferenceStore) Get(key string) (string, bool, error) {
	var value string
	err := self.conn.QueryRow(
		"SELECT value FROM preferences WHERE key = ?",
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (self *SqlitePreferenceStore) Set(key string, value string) error {
	_, err := self.conn.Exec(
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key,
		value,
	)
	return err
}

func (self *SqlitePreferenceStore) Remove(keys ...string) error {
	tx, err := self.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, key := range keys {
		if _, err := tx.Exec("DELETE FROM preferences WHERE key = ?", key); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (self *SqlitePreferenceStore) Path() string {
	return self.path
}

func (self *SqlitePreferenceStore) Close() error {
	return self.conn.Close()
}
