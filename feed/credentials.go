package feed

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type CredentialStoreSettings struct {
	// durable slot for the session credential
	Path string
	// an almost-expired credential is treated as absent
	ExpiryMargin time.Duration
}

func DefaultCredentialStoreSettings() *CredentialStoreSettings {
	path := ""
	if home, err := os.UserHomeDir(); err == nil {
		path = filepath.Join(home, ".jpeg", "credentials.json")
	}
	return &CredentialStoreSettings{
		Path:         path,
		ExpiryMargin: 5 * time.Minute,
	}
}

type StoredCredential struct {
	Token     string    `json:"token"`
	UserId    string    `json:"userId,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (self *StoredCredential) expired(margin time.Duration) bool {
	if self.ExpiresAt.IsZero() {
		return false
	}
	return !time.Now().Add(margin).Before(self.ExpiresAt)
}

// one durable slot holding the session credential with an expiry.
// cleared on logout
type CredentialStore struct {
	stateLock sync.Mutex

	settings *CredentialStoreSettings
}

func NewCredentialStoreWithDefaults() *CredentialStore {
	return NewCredentialStore(DefaultCredentialStoreSettings())
}

func NewCredentialStore(settings *CredentialStoreSettings) *CredentialStore {
	return &CredentialStore{
		settings: settings,
	}
}

// nil when the slot is empty, unreadable, or the credential expired
func (self *CredentialStore) Get() *StoredCredential {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.settings.Path == "" {
		return nil
	}

	data, err := os.ReadFile(self.settings.Path)
	if err != nil {
		return nil
	}

	var credential StoredCredential
	if err := json.Unmarshal(data, &credential); err != nil {
		return nil
	}
	if credential.Token == "" || credential.expired(self.settings.ExpiryMargin) {
		return nil
	}
	return &credential
}

func (self *CredentialStore) Put(credential *StoredCredential) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.settings.Path == "" {
		return nil
	}

	data, err := json.MarshalIndent(credential, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(self.settings.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(self.settings.Path, data, 0600)
}

// idempotent
func (self *CredentialStore) Clear() error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.settings.Path == "" {
		return nil
	}

	err := os.Remove(self.settings.Path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
