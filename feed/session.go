package feed

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

type SessionStoreSettings struct {
	// used when neither the login result nor the token carries an expiry
	DefaultSessionDuration time.Duration
}

func DefaultSessionStoreSettings() *SessionStoreSettings {
	return &SessionStoreSettings{
		DefaultSessionDuration: 30 * 24 * time.Hour,
	}
}

// holds the authenticated principal for the session.
// the principal is created at login and destroyed at logout.
// generation increments on every login/logout so that in-flight
// reconciliation can detect a session change and drop itself
type SessionStore struct {
	api         *FeedApi
	credentials *CredentialStore

	stateLock  sync.Mutex
	principal  *Principal
	generation int

	changeCallbacks *CallbackList[ChangeFunction]

	settings *SessionStoreSettings
}

func NewSessionStoreWithDefaults(api *FeedApi, credentials *CredentialStore) *SessionStore {
	return NewSessionStore(api, credentials, DefaultSessionStoreSettings())
}

func NewSessionStore(api *FeedApi, credentials *CredentialStore, settings *SessionStoreSettings) *SessionStore {
	return &SessionStore{
		api:             api,
		credentials:     credentials,
		changeCallbacks: NewCallbackList[ChangeFunction](),
		settings:        settings,
	}
}

func (self *SessionStore) Login(email string, password string) (*Principal, error) {
	result, err := self.api.AuthLoginSync(&AuthLoginArgs{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, &RemoteCallError{Op: "login", Cause: err}
	}
	if result.Error != nil {
		return nil, &AuthError{Message: result.Error.Message}
	}

	userId := result.UserId
	userName := result.UserName
	expiresAt := time.Time{}
	if result.ExpiresAt != nil {
		expiresAt = *result.ExpiresAt
	}
	if sessionToken, err := ParseSessionTokenUnverified(result.Token); err == nil {
		if userId == "" {
			userId = sessionToken.UserId
		}
		if userName == "" {
			userName = sessionToken.UserName
		}
		if expiresAt.IsZero() {
			expiresAt = sessionToken.ExpiresAt
		}
	}
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(self.settings.DefaultSessionDuration)
	}

	principal := &Principal{
		Id:     userId,
		Name:   userName,
		Handle: HandleForName(userName),
	}

	self.api.SetToken(result.Token)
	if err := self.credentials.Put(&StoredCredential{
		Token:     result.Token,
		UserId:    userId,
		ExpiresAt: expiresAt,
	}); err != nil {
		glog.Infof("[session]could not persist credential: %s\n", err)
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.principal = principal
		self.generation += 1
	}()
	self.change()

	return principal, nil
}

// always succeeds locally
func (self *SessionStore) Logout() {
	self.api.SetToken("")
	if err := self.credentials.Clear(); err != nil {
		glog.Infof("[session]could not clear credential: %s\n", err)
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.principal = nil
		self.generation += 1
	}()
	self.change()
}

// silent re-authentication from the persisted credential.
// failure here means not authenticated, never fatal
func (self *SessionStore) Resume() bool {
	credential := self.credentials.Get()
	if credential == nil {
		return false
	}

	self.api.SetToken(credential.Token)
	result, err := self.api.GetMeSync()
	if err != nil {
		glog.V(1).Infof("[session]resume rejected: %s\n", err)
		self.api.SetToken("")
		return false
	}

	principal := &Principal{
		Id:     result.Id,
		Name:   result.UserName,
		Handle: HandleForName(result.UserName),
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.principal = principal
		self.generation += 1
	}()
	self.change()

	return true
}

func (self *SessionStore) Principal() *Principal {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.principal == nil {
		return nil
	}
	// make a copy
	principal := *self.principal
	return &principal
}

func (self *SessionStore) IsAuthenticated() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.principal != nil
}

func (self *SessionStore) Generation() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.generation
}

func (self *SessionStore) AddChangeCallback(changeCallback ChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(changeCallback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

func (self *SessionStore) change() {
	for _, changeCallback := range self.changeCallbacks.Get() {
		changeCallback()
	}
}
