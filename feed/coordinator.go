package feed

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

type PostCreateFunction func(err error)

type LikeToggleFunction func(err error)

// runs each user initiated mutation as a three phase protocol:
// 1. apply the optimistic local change and return to the caller immediately
// 2. issue the remote call
// 3. on success leave state as applied, on failure apply the exact
//    inverse of phase 1 and surface the error
//
// the session generation is snapshotted in phase 1. if it changed by
// the time the call resolves (logout or re-login mid flight), phase 3
// is dropped instead of mutating the new session's state
type Coordinator struct {
	api     *FeedApi
	session *SessionStore
	likes   *LikesStore
	posts   *PostsStore

	stateLock     sync.Mutex
	inFlightLikes map[string]bool
}

func NewCoordinator(api *FeedApi, session *SessionStore, likes *LikesStore, posts *PostsStore) *Coordinator {
	return &Coordinator{
		api:           api,
		session:       session,
		likes:         likes,
		posts:         posts,
		inFlightLikes: map[string]bool{},
	}
}

// inserts a pending post with a temp id at the head of the collection
// and submits it. on failure the pending post is removed. on success,
// if the platform returned the canonical id the pending entry is
// replaced in place, otherwise it is left for a later feed fetch to
// supersede. returns the temp id
func (self *Coordinator) CreatePost(title string, body string, callback PostCreateFunction) (string, error) {
	principal := self.session.Principal()
	if principal == nil {
		// checked before phase 1, no optimistic effect
		return "", ErrNotAuthenticated
	}
	if callback == nil {
		callback = func(err error) {}
	}

	generation := self.session.Generation()

	pendingId := NewPendingPostId()
	pending := &Post{
		Id:        pendingId,
		Author:    principal.Author(),
		Title:     title,
		Body:      body,
		CreatedAt: time.Now(),
	}
	self.posts.Upsert(pending)

	self.api.CreatePost(
		&CreatePostArgs{
			AuthorId:    principal.Id,
			PostTitle:   title,
			PostContent: body,
		},
		NewApiCallback[*CreatePostResult](func(result *CreatePostResult, err error) {
			if self.session.Generation() != generation {
				// the resolution is dropped, but the pending post belongs to
				// the old session and can never be confirmed, so it is removed
				glog.V(1).Infof("[coordinator]drop create-post resolution for a stale session\n")
				self.posts.Remove(pendingId)
				return
			}

			if err == nil && result.Error != nil {
				err = &AuthError{Message: result.Error.Message}
			}
			if err != nil {
				// idempotent removal, safe even if already gone
				self.posts.Remove(pendingId)
				callback(&RemoteCallError{Op: "create post", Cause: err})
				return
			}

			if result.PostId != "" {
				confirmed := *pending
				confirmed.Id = result.PostId
				if result.CreatedAt != nil {
					confirmed.CreatedAt = *result.CreatedAt
				}
				self.posts.Remove(pendingId)
				self.posts.Upsert(&confirmed)
			}
			callback(nil)
		}),
	)

	return pendingId, nil
}

// flips the like membership and the displayed count together, then
// issues the like or unlike call. on failure both are inverted back
// together. a pending post is a silent no-op since temp ids cannot be
// liked server side. toggles are serialized per post id: a second
// toggle while one is in flight is rejected with no optimistic effect
func (self *Coordinator) ToggleLike(postId string, wasLiked bool, callback LikeToggleFunction) error {
	if IsPendingPostId(postId) {
		// no mutation, no remote call
		return nil
	}
	if !self.session.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if callback == nil {
		callback = func(err error) {}
	}

	err := func() error {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if self.inFlightLikes[postId] {
			return ErrToggleInFlight
		}
		self.inFlightLikes[postId] = true
		return nil
	}()
	if err != nil {
		return err
	}

	generation := self.session.Generation()

	delta := 1
	if wasLiked {
		delta = -1
	}

	// phase 1: membership and count move together, never one without the other
	if wasLiked {
		self.likes.MarkUnliked(postId)
	} else {
		self.likes.MarkLiked(postId)
	}
	self.posts.registerLikeDelta(postId, delta)
	self.posts.AdjustLikeCount(postId, delta)

	resolve := NewApiCallback[*LikePostResult](func(result *LikePostResult, err error) {
		func() {
			self.stateLock.Lock()
			defer self.stateLock.Unlock()
			delete(self.inFlightLikes, postId)
		}()
		self.posts.resolveLikeDelta(postId, delta)

		if self.session.Generation() != generation {
			glog.V(1).Infof("[coordinator]drop like-toggle resolution for a stale session\n")
			return
		}

		if err == nil && result.Error != nil {
			err = &AuthError{Message: result.Error.Message}
		}
		if err != nil {
			// invert phase 1, both together
			if wasLiked {
				self.likes.MarkLiked(postId)
			} else {
				self.likes.MarkUnliked(postId)
			}
			self.posts.AdjustLikeCount(postId, -delta)
			callback(&RemoteCallError{Op: "like toggle", Cause: err})
			return
		}

		callback(nil)
	})

	if wasLiked {
		self.api.UnlikePost(postId, resolve)
	} else {
		self.api.LikePost(postId, resolve)
	}

	return nil
}
