package feed

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

type PostsStoreSettings struct {
	// a confirmed post supersedes a pending post with the same author,
	// title and body when their create times are within this window
	PendingMatchWindow time.Duration
}

func DefaultPostsStoreSettings() *PostsStoreSettings {
	return &PostsStoreSettings{
		PendingMatchWindow: 2 * time.Minute,
	}
}

// the known set of posts keyed by id. insertion order is irrelevant.
// display order is always a derived sort by create time, newest first,
// recomputed from the map and never separately maintained
type PostsStore struct {
	api *FeedApi

	stateLock sync.Mutex
	posts     map[string]*Post
	// optimistic like adjustments currently in flight, reapplied on
	// top of any snapshot a fetch merges in
	likeDeltas map[string]int

	changeCallbacks *CallbackList[ChangeFunction]

	settings *PostsStoreSettings
}

func NewPostsStoreWithDefaults(api *FeedApi) *PostsStore {
	return NewPostsStore(api, DefaultPostsStoreSettings())
}

func NewPostsStore(api *FeedApi, settings *PostsStoreSettings) *PostsStore {
	return &PostsStore{
		api:             api,
		posts:           map[string]*Post{},
		likeDeltas:      map[string]int{},
		changeCallbacks: NewCallbackList[ChangeFunction](),
		settings:        settings,
	}
}

func (self *PostsStore) FetchGlobalFeed() error {
	result, err := self.api.GetFeedSync()
	if err != nil {
		return &HydrationError{Op: "feed", Cause: err}
	}
	self.merge(*result)
	return nil
}

func (self *PostsStore) FetchPostsByAuthor(authorId string) error {
	result, err := self.api.GetUserPostsSync(authorId)
	if err != nil {
		return &HydrationError{Op: "author posts", Cause: err}
	}
	self.merge(*result)
	return nil
}

// the server is authoritative for confirmed posts: incoming entries
// overwrite any existing entry with the same id. pending entries are
// never touched by a merge, except when a confirmed incoming post
// supersedes one (same author, title and body, close create times),
// in which case the pending entry is removed in the same merge so the
// same logical post is never visible twice
func (self *PostsStore) merge(items []*FeedItem) {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		incoming := []*Post{}
		for _, item := range items {
			post := item.ToPost()
			if post.Pending() {
				// the server never returns temp ids
				continue
			}
			if delta := self.likeDeltas[post.Id]; delta != 0 {
				post.LikeCount += delta
			}
			self.posts[post.Id] = post
			incoming = append(incoming, post)
		}

		for pendingId, pending := range self.posts {
			if !pending.Pending() {
				continue
			}
			for _, post := range incoming {
				if self.supersedes(post, pending) {
					delete(self.posts, pendingId)
					break
				}
			}
		}
	}()
	self.change()
}

// must be called with `stateLock`
func (self *PostsStore) supersedes(confirmed *Post, pending *Post) bool {
	if confirmed.Author.Id != pending.Author.Id {
		return false
	}
	if confirmed.Title != pending.Title || confirmed.Body != pending.Body {
		return false
	}
	d := confirmed.CreatedAt.Sub(pending.CreatedAt)
	if d < 0 {
		d = -d
	}
	return d <= self.settings.PendingMatchWindow
}

func (self *PostsStore) Upsert(post *Post) {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		// make a copy
		c := *post
		self.posts[post.Id] = &c
	}()
	self.change()
}

// idempotent. safe even if the post is already gone
func (self *PostsStore) Remove(postId string) {
	changed := false
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if _, ok := self.posts[postId]; ok {
			delete(self.posts, postId)
			changed = true
		}
	}()
	if changed {
		self.change()
	}
}

func (self *PostsStore) Get(postId string) *Post {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	post, ok := self.posts[postId]
	if !ok {
		return nil
	}
	// make a copy
	c := *post
	return &c
}

func (self *PostsStore) Len() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.posts)
}

func (self *PostsStore) AdjustLikeCount(postId string, delta int) {
	changed := false
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if post, ok := self.posts[postId]; ok {
			post.LikeCount += delta
			changed = true
		}
	}()
	if changed {
		self.change()
	}
}

// must be paired with `resolveLikeDelta` when the toggle resolves
func (self *PostsStore) registerLikeDelta(postId string, delta int) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.likeDeltas[postId] += delta
	if self.likeDeltas[postId] == 0 {
		delete(self.likeDeltas, postId)
	}
}

func (self *PostsStore) resolveLikeDelta(postId string, delta int) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.likeDeltas[postId] -= delta
	if self.likeDeltas[postId] == 0 {
		delete(self.likeDeltas, postId)
	}
}

// pure projection, newest first
func (self *PostsStore) AllSortedByRecency() []*Post {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return sortedByRecency(self.posts, func(post *Post) bool {
		return true
	})
}

// pure projection, newest first
func (self *PostsStore) ByAuthorSortedByRecency(authorId string) []*Post {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return sortedByRecency(self.posts, func(post *Post) bool {
		return post.Author.Id == authorId
	})
}

func sortedByRecency(posts map[string]*Post, include func(*Post) bool) []*Post {
	out := []*Post{}
	for _, post := range posts {
		if include(post) {
			// make a copy
			c := *post
			out = append(out, &c)
		}
	}
	slices.SortStableFunc(out, func(a *Post, b *Post) int {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		} else if b.CreatedAt.After(a.CreatedAt) {
			return 1
		}
		// stable display order for equal times
		return strings.Compare(b.Id, a.Id)
	})
	return out
}

func (self *PostsStore) AddChangeCallback(changeCallback ChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(changeCallback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

func (self *PostsStore) change() {
	for _, changeCallback := range self.changeCallbacks.Get() {
		changeCallback()
	}
}
