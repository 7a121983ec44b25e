package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-playground/assert/v2"
)

func newTestSession(t *testing.T, apiUrl string) (*FeedApi, *SessionStore) {
	api := NewFeedApiWithDefaults(apiUrl)
	t.Cleanup(api.Close)
	credentials := NewCredentialStore(&CredentialStoreSettings{
		Path: filepath.Join(t.TempDir(), "credentials.json"),
	})
	session := NewSessionStoreWithDefaults(api, credentials)
	return api, session
}

func likesTestServer(t *testing.T, likedPostIds []string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&AuthLoginResult{
			Token:    "tok",
			UserId:   "u1",
			UserName: "ann",
		})
	})
	mux.HandleFunc("/users/me/likes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.Header.Get("Authorization"), "Bearer tok")
		json.NewEncoder(w).Encode(&GetUserLikesResult{LikedPostIds: likedPostIds})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestLikesHydrate(t *testing.T) {
	server := likesTestServer(t, []string{"p1", "p3"})
	api, session := newTestSession(t, server.URL)
	likes := NewLikesStore(api, session)

	// not authenticated: hydrate is an empty set no-op
	err := likes.Hydrate()
	assert.Equal(t, err, nil)
	assert.Equal(t, len(likes.Ids()), 0)

	_, err = session.Login("ann@example.com", "pw")
	assert.Equal(t, err, nil)

	err = likes.Hydrate()
	assert.Equal(t, err, nil)
	assert.Equal(t, likes.Has("p1"), true)
	assert.Equal(t, likes.Has("p2"), false)
	assert.Equal(t, likes.Has("p3"), true)

	ids := likes.Ids()
	sort.Strings(ids)
	assert.Equal(t, ids, []string{"p1", "p3"})
}

func TestLikesHydrateFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&AuthLoginResult{Token: "tok", UserId: "u1", UserName: "ann"})
	})
	mux.HandleFunc("/users/me/likes", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server exploded", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api, session := newTestSession(t, server.URL)
	likes := NewLikesStore(api, session)
	_, err := session.Login("ann@example.com", "pw")
	assert.Equal(t, err, nil)

	err = likes.Hydrate()
	assert.NotEqual(t, err, nil)
	hydrationErr, ok := err.(*HydrationError)
	assert.Equal(t, ok, true)
	assert.Equal(t, hydrationErr.Op, "likes")
	// nothing is rolled back or mutated on hydration failure
	assert.Equal(t, len(likes.Ids()), 0)
}

func TestLikesMarks(t *testing.T) {
	api := NewFeedApiWithDefaults("http://unused")
	defer api.Close()
	credentials := NewCredentialStore(&CredentialStoreSettings{Path: filepath.Join(t.TempDir(), "c.json")})
	session := NewSessionStoreWithDefaults(api, credentials)
	likes := NewLikesStore(api, session)

	changes := 0
	unsub := likes.AddChangeCallback(func() {
		changes += 1
	})
	defer unsub()

	likes.MarkLiked("p1")
	assert.Equal(t, likes.Has("p1"), true)
	assert.Equal(t, changes, 1)

	// already present, no change event
	likes.MarkLiked("p1")
	assert.Equal(t, changes, 1)

	likes.MarkUnliked("p1")
	assert.Equal(t, likes.Has("p1"), false)
	assert.Equal(t, changes, 2)

	// already absent, no change event
	likes.MarkUnliked("p1")
	assert.Equal(t, changes, 2)

	likes.MarkLiked("p2")
	likes.Clear()
	assert.Equal(t, len(likes.Ids()), 0)
}
