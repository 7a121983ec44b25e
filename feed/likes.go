package feed

import (
	"sync"

	"golang.org/x/exp/maps"
)

// the set of post ids the principal has liked, from the client's
// last known perspective. this can transiently diverge from the
// platform while a toggle is in flight
type LikesStore struct {
	api     *FeedApi
	session *SessionStore

	stateLock    sync.Mutex
	likedPostIds map[string]bool

	changeCallbacks *CallbackList[ChangeFunction]
}

func NewLikesStore(api *FeedApi, session *SessionStore) *LikesStore {
	return &LikesStore{
		api:             api,
		session:         session,
		likedPostIds:    map[string]bool{},
		changeCallbacks: NewCallbackList[ChangeFunction](),
	}
}

// fetches the full liked id set for the current principal.
// empty set when not authenticated
func (self *LikesStore) Hydrate() error {
	if !self.session.IsAuthenticated() {
		self.Clear()
		return nil
	}

	result, err := self.api.GetUserLikesSync()
	if err != nil {
		return &HydrationError{Op: "likes", Cause: err}
	}

	likedPostIds := map[string]bool{}
	for _, postId := range result.LikedPostIds {
		likedPostIds[postId] = true
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.likedPostIds = likedPostIds
	}()
	self.change()

	return nil
}

func (self *LikesStore) Has(postId string) bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.likedPostIds[postId]
}

func (self *LikesStore) Ids() []string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return maps.Keys(self.likedPostIds)
}

// pure local set mutation
func (self *LikesStore) MarkLiked(postId string) {
	changed := false
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if !self.likedPostIds[postId] {
			self.likedPostIds[postId] = true
			changed = true
		}
	}()
	if changed {
		self.change()
	}
}

// pure local set mutation
func (self *LikesStore) MarkUnliked(postId string) {
	changed := false
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if self.likedPostIds[postId] {
			delete(self.likedPostIds, postId)
			changed = true
		}
	}()
	if changed {
		self.change()
	}
}

func (self *LikesStore) Clear() {
	changed := false
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if 0 < len(self.likedPostIds) {
			self.likedPostIds = map[string]bool{}
			changed = true
		}
	}()
	if changed {
		self.change()
	}
}

func (self *LikesStore) AddChangeCallback(changeCallback ChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(changeCallback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

func (self *LikesStore) change() {
	for _, changeCallback := range self.changeCallbacks.Get() {
		changeCallback()
	}
}
