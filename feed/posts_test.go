package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestProjectionsSortedByRecency(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// response order is oldest first on purpose
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/users/u2/posts")
		json.NewEncoder(w).Encode(FeedResult{
			&FeedItem{PostId: "p1", UserId: "u2", AuthorUserName: "ann", PostContent: "first", CreatedAt: t0},
			&FeedItem{PostId: "p2", UserId: "u2", AuthorUserName: "ann", PostContent: "second", CreatedAt: t0.Add(1 * time.Hour)},
			&FeedItem{PostId: "p3", UserId: "u2", AuthorUserName: "ann", PostContent: "third", CreatedAt: t0.Add(2 * time.Hour)},
		})
	}))
	defer server.Close()

	api := NewFeedApiWithDefaults(server.URL)
	defer api.Close()
	posts := NewPostsStoreWithDefaults(api)

	err := posts.FetchPostsByAuthor("u2")
	assert.Equal(t, err, nil)

	byAuthor := posts.ByAuthorSortedByRecency("u2")
	assert.Equal(t, len(byAuthor), 3)
	assert.Equal(t, byAuthor[0].Id, "p3")
	assert.Equal(t, byAuthor[1].Id, "p2")
	assert.Equal(t, byAuthor[2].Id, "p1")

	assert.Equal(t, len(posts.ByAuthorSortedByRecency("u9")), 0)

	all := posts.AllSortedByRecency()
	assert.Equal(t, len(all), 3)
	assert.Equal(t, all[0].Id, "p3")
}

func TestMergeOverwritesConfirmedPosts(t *testing.T) {
	api := NewFeedApiWithDefaults("http://unused")
	defer api.Close()
	posts := NewPostsStoreWithDefaults(api)

	posts.Upsert(&Post{Id: "p1", Body: "stale", LikeCount: 1, CreatedAt: time.Now()})

	posts.merge([]*FeedItem{
		{PostId: "p1", UserId: "u1", AuthorUserName: "ann", PostContent: "fresh", LikeCount: 7, CreatedAt: time.Now()},
	})

	p1 := posts.Get("p1")
	assert.Equal(t, p1.Body, "fresh")
	assert.Equal(t, p1.LikeCount, 7)
}

func TestMergeNeverTouchesPendingPosts(t *testing.T) {
	api := NewFeedApiWithDefaults("http://unused")
	defer api.Close()
	posts := NewPostsStoreWithDefaults(api)

	pendingId := NewPendingPostId()
	posts.Upsert(&Post{
		Id:        pendingId,
		Author:    Author{Id: "u1"},
		Body:      "mine",
		CreatedAt: time.Now(),
	})

	posts.merge([]*FeedItem{
		{PostId: "p9", UserId: "u3", AuthorUserName: "bob", PostContent: "other", CreatedAt: time.Now()},
	})

	pending := posts.Get(pendingId)
	assert.NotEqual(t, pending, nil)
	assert.Equal(t, pending.Body, "mine")
	assert.Equal(t, posts.Len(), 2)
}

func TestMergeSupersedesMatchingPending(t *testing.T) {
	api := NewFeedApiWithDefaults("http://unused")
	defer api.Close()
	posts := NewPostsStoreWithDefaults(api)

	now := time.Now()
	pendingId := NewPendingPostId()
	posts.Upsert(&Post{
		Id:        pendingId,
		Author:    Author{Id: "u1", Name: "ann"},
		Body:      "hello world",
		CreatedAt: now,
	})

	// the confirmed copy of the same logical post comes back in a feed fetch
	posts.merge([]*FeedItem{
		{PostId: "p100", UserId: "u1", AuthorUserName: "ann", PostContent: "hello world", LikeCount: 0, CreatedAt: now.Add(5 * time.Second)},
	})

	// no duplicate visible post for the same logical content
	assert.Equal(t, posts.Len(), 1)
	assert.Equal(t, posts.Get(pendingId), nil)
	assert.NotEqual(t, posts.Get("p100"), nil)
}

func TestMergeDoesNotSupersedeDifferentPending(t *testing.T) {
	api := NewFeedApiWithDefaults("http://unused")
	defer api.Close()
	posts := NewPostsStoreWithDefaults(api)

	now := time.Now()
	pendingId := NewPendingPostId()
	posts.Upsert(&Post{
		Id:        pendingId,
		Author:    Author{Id: "u1", Name: "ann"},
		Body:      "hello world",
		CreatedAt: now,
	})

	// same author, different content
	posts.merge([]*FeedItem{
		{PostId: "p100", UserId: "u1", AuthorUserName: "ann", PostContent: "something else", CreatedAt: now},
	})

	assert.Equal(t, posts.Len(), 2)
	assert.NotEqual(t, posts.Get(pendingId), nil)
}

func TestMergeReappliesInFlightLikeDelta(t *testing.T) {
	api := NewFeedApiWithDefaults("http://unused")
	defer api.Close()
	posts := NewPostsStoreWithDefaults(api)

	posts.Upsert(&Post{Id: "p1", LikeCount: 3, CreatedAt: time.Now()})

	// an optimistic toggle is in flight
	posts.registerLikeDelta("p1", 1)
	posts.AdjustLikeCount("p1", 1)
	assert.Equal(t, posts.Get("p1").LikeCount, 4)

	// a fetch snapshot arrives that does not include the toggle yet
	posts.merge([]*FeedItem{
		{PostId: "p1", UserId: "u1", AuthorUserName: "ann", LikeCount: 3, CreatedAt: time.Now()},
	})
	assert.Equal(t, posts.Get("p1").LikeCount, 4)

	// the toggle resolves
	posts.resolveLikeDelta("p1", 1)

	// the next snapshot is authoritative
	posts.merge([]*FeedItem{
		{PostId: "p1", UserId: "u1", AuthorUserName: "ann", LikeCount: 4, CreatedAt: time.Now()},
	})
	assert.Equal(t, posts.Get("p1").LikeCount, 4)
}

func TestRemoveIsIdempotent(t *testing.T) {
	api := NewFeedApiWithDefaults("http://unused")
	defer api.Close()
	posts := NewPostsStoreWithDefaults(api)

	posts.Upsert(&Post{Id: "p1", CreatedAt: time.Now()})
	posts.Remove("p1")
	posts.Remove("p1")
	assert.Equal(t, posts.Get("p1"), nil)
	assert.Equal(t, posts.Len(), 0)
}

func TestPostsChangeCallback(t *testing.T) {
	api := NewFeedApiWithDefaults("http://unused")
	defer api.Close()
	posts := NewPostsStoreWithDefaults(api)

	changes := 0
	unsub := posts.AddChangeCallback(func() {
		changes += 1
	})

	posts.Upsert(&Post{Id: "p1", CreatedAt: time.Now()})
	assert.Equal(t, changes, 1)

	// removing an absent post does not notify
	posts.Remove("p2")
	assert.Equal(t, changes, 1)

	unsub()
	posts.Remove("p1")
	assert.Equal(t, changes, 1)
}
