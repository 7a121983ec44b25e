package feed

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

type ClientSettings struct {
	Api         *FeedApiSettings
	Credentials *CredentialStoreSettings
	Session     *SessionStoreSettings
	Posts       *PostsStoreSettings
}

func DefaultClientSettings() *ClientSettings {
	return &ClientSettings{
		Api:         DefaultFeedApiSettings(),
		Credentials: DefaultCredentialStoreSettings(),
		Session:     DefaultSessionStoreSettings(),
		Posts:       DefaultPostsStoreSettings(),
	}
}

// composes the api, the stores and the coordinator, and wires the
// auth transitions: the likes set hydrates when authentication goes
// false -> true and clears when it goes true -> false
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	api         *FeedApi
	credentials *CredentialStore
	session     *SessionStore
	likes       *LikesStore
	posts       *PostsStore
	coordinator *Coordinator

	stateLock         sync.Mutex
	lastAuthenticated bool

	unsubSessionChange func()
}

func NewClientWithDefaults(ctx context.Context, apiUrl string) *Client {
	return NewClient(ctx, apiUrl, DefaultClientSettings())
}

func NewClient(ctx context.Context, apiUrl string, settings *ClientSettings) *Client {
	cancelCtx, cancel := context.WithCancel(ctx)

	api := NewFeedApi(cancelCtx, apiUrl, settings.Api)
	credentials := NewCredentialStore(settings.Credentials)
	session := NewSessionStore(api, credentials, settings.Session)
	likes := NewLikesStore(api, session)
	posts := NewPostsStore(api, settings.Posts)
	coordinator := NewCoordinator(api, session, likes, posts)

	client := &Client{
		ctx:         cancelCtx,
		cancel:      cancel,
		api:         api,
		credentials: credentials,
		session:     session,
		likes:       likes,
		posts:       posts,
		coordinator: coordinator,
	}
	client.unsubSessionChange = session.AddChangeCallback(client.sessionChanged)

	return client
}

func (self *Client) sessionChanged() {
	authenticated := self.session.IsAuthenticated()

	transitioned := false
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if authenticated != self.lastAuthenticated {
			self.lastAuthenticated = authenticated
			transitioned = true
		}
	}()
	if !transitioned {
		return
	}

	if authenticated {
		go func() {
			if err := self.likes.Hydrate(); err != nil {
				glog.Infof("[client]%s\n", err)
			}
		}()
	} else {
		self.likes.Clear()
	}
}

func (self *Client) Api() *FeedApi {
	return self.api
}

func (self *Client) Session() *SessionStore {
	return self.session
}

func (self *Client) Likes() *LikesStore {
	return self.likes
}

func (self *Client) Posts() *PostsStore {
	return self.posts
}

func (self *Client) Coordinator() *Coordinator {
	return self.coordinator
}

func (self *Client) Close() {
	self.unsubSessionChange()
	self.api.Close()
	self.cancel()
}
