package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

type FeedApiSettings struct {
	HttpTimeout        time.Duration
	HttpConnectTimeout time.Duration
	HttpTlsTimeout     time.Duration
}

func DefaultFeedApiSettings() *FeedApiSettings {
	return &FeedApiSettings{
		HttpTimeout:        60 * time.Second,
		HttpConnectTimeout: 5 * time.Second,
		HttpTlsTimeout:     5 * time.Second,
	}
}

func (self *FeedApiSettings) client() *http.Client {
	// see https://medium.com/@nate510/don-t-use-go-s-default-http-client-4804cb19f779
	dialer := &net.Dialer{
		Timeout: self.HttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: self.HttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   self.HttpTimeout,
	}
}

type apiCallback[R any] interface {
	Result(result R, err error)
}

// for internal use
type simpleApiCallback[R any] struct {
	callback func(result R, err error)
}

func NewApiCallback[R any](callback func(result R, err error)) apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: callback,
	}
}

func NewNoopApiCallback[R any]() apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: func(result R, err error) {},
	}
}

func (self *simpleApiCallback[R]) Result(result R, err error) {
	self.callback(result, err)
}

type ApiCallbackResult[R any] struct {
	Result R
	Error  error
}

func NewBlockingApiCallback[R any]() (apiCallback[R], chan ApiCallbackResult[R]) {
	c := make(chan ApiCallbackResult[R])
	apiCallback := NewApiCallback[R](func(result R, err error) {
		c <- ApiCallbackResult[R]{
			Result: result,
			Error:  err,
		}
	})
	return apiCallback, c
}

type FeedApi struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiUrl string

	token string

	settings *FeedApiSettings
}

func NewFeedApiWithDefaults(apiUrl string) *FeedApi {
	return NewFeedApi(context.Background(), apiUrl, DefaultFeedApiSettings())
}

func NewFeedApi(ctx context.Context, apiUrl string, settings *FeedApiSettings) *FeedApi {
	cancelCtx, cancel := context.WithCancel(ctx)

	return &FeedApi{
		ctx:      cancelCtx,
		cancel:   cancel,
		apiUrl:   apiUrl,
		settings: settings,
	}
}

// this gets attached to api calls that need it
func (self *FeedApi) SetToken(token string) {
	self.token = token
}

func (self *FeedApi) Token() string {
	return self.token
}

func (self *FeedApi) Close() {
	self.cancel()
}

type AuthLoginCallback apiCallback[*AuthLoginResult]

type AuthLoginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResult struct {
	Token     string                `json:"token,omitempty"`
	UserId    string                `json:"userId,omitempty"`
	UserName  string                `json:"username,omitempty"`
	ExpiresAt *time.Time            `json:"expiresAt,omitempty"`
	Error     *AuthLoginResultError `json:"error,omitempty"`
}

type AuthLoginResultError struct {
	Message string `json:"message"`
}

func (self *FeedApi) AuthLogin(authLogin *AuthLoginArgs, callback AuthLoginCallback) {
	go post(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/auth/login", self.apiUrl),
		authLogin,
		self.token,
		&AuthLoginResult{},
		callback,
	)
}

func (self *FeedApi) AuthLoginSync(authLogin *AuthLoginArgs) (*AuthLoginResult, error) {
	return post(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/auth/login", self.apiUrl),
		authLogin,
		self.token,
		&AuthLoginResult{},
		NewNoopApiCallback[*AuthLoginResult](),
	)
}

type AuthRegisterCallback apiCallback[*AuthRegisterResult]

type AuthRegisterArgs struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthRegisterResult struct {
	Token     string                   `json:"token,omitempty"`
	UserId    string                   `json:"userId,omitempty"`
	UserName  string                   `json:"username,omitempty"`
	ExpiresAt *time.Time               `json:"expiresAt,omitempty"`
	Error     *AuthRegisterResultError `json:"error,omitempty"`
}

type AuthRegisterResultError struct {
	Message string `json:"message"`
}

func (self *FeedApi) AuthRegister(authRegister *AuthRegisterArgs, callback AuthRegisterCallback) {
	go post(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/auth/register", self.apiUrl),
		authRegister,
		self.token,
		&AuthRegisterResult{},
		callback,
	)
}

func (self *FeedApi) AuthRegisterSync(authRegister *AuthRegisterArgs) (*AuthRegisterResult, error) {
	return post(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/auth/register", self.apiUrl),
		authRegister,
		self.token,
		&AuthRegisterResult{},
		NewNoopApiCallback[*AuthRegisterResult](),
	)
}

type GetMeCallback apiCallback[*GetMeResult]

type GetMeResult struct {
	Id       string `json:"id"`
	UserName string `json:"username"`
}

func (self *FeedApi) GetMe(callback GetMeCallback) {
	go get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/users/me", self.apiUrl),
		self.token,
		&GetMeResult{},
		callback,
	)
}

func (self *FeedApi) GetMeSync() (*GetMeResult, error) {
	return get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/users/me", self.apiUrl),
		self.token,
		&GetMeResult{},
		NewNoopApiCallback[*GetMeResult](),
	)
}

// feed item as it comes off the wire
type FeedItem struct {
	PostId         string    `json:"postId"`
	UserId         string    `json:"userId"`
	AuthorUserName string    `json:"authorUsername"`
	PostTitle      string    `json:"postTitle,omitempty"`
	PostContent    string    `json:"postContent"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
	ImageUrl       string    `json:"imageUrl,omitempty"`
	LikeCount      int       `json:"likeCount,omitempty"`
	CommentCount   int       `json:"commentCount,omitempty"`
}

func (self *FeedItem) ToPost() *Post {
	return &Post{
		Id: self.PostId,
		Author: Author{
			Id:     self.UserId,
			Name:   self.AuthorUserName,
			Handle: HandleForName(self.AuthorUserName),
		},
		Title:      self.PostTitle,
		Body:       self.PostContent,
		CreatedAt:  self.CreatedAt,
		ImageUrl:   self.ImageUrl,
		LikeCount:  self.LikeCount,
		ReplyCount: self.CommentCount,
	}
}

type FeedResult []*FeedItem

type GetFeedCallback apiCallback[*FeedResult]

func (self *FeedApi) GetFeed(callback GetFeedCallback) {
	go get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/feed", self.apiUrl),
		self.token,
		&FeedResult{},
		callback,
	)
}

func (self *FeedApi) GetFeedSync() (*FeedResult, error) {
	return get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/feed", self.apiUrl),
		self.token,
		&FeedResult{},
		NewNoopApiCallback[*FeedResult](),
	)
}

type GetUserPostsCallback apiCallback[*FeedResult]

func (self *FeedApi) GetUserPosts(userId string, callback GetUserPostsCallback) {
	go get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/users/%s/posts", self.apiUrl, userId),
		self.token,
		&FeedResult{},
		callback,
	)
}

func (self *FeedApi) GetUserPostsSync(userId string) (*FeedResult, error) {
	return get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/users/%s/posts", self.apiUrl, userId),
		self.token,
		&FeedResult{},
		NewNoopApiCallback[*FeedResult](),
	)
}

type GetPostCallback apiCallback[*FeedItem]

func (self *FeedApi) GetPost(postId string, callback GetPostCallback) {
	go get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/posts/%s", self.apiUrl, postId),
		self.token,
		&FeedItem{},
		callback,
	)
}

func (self *FeedApi) GetPostSync(postId string) (*FeedItem, error) {
	return get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/posts/%s", self.apiUrl, postId),
		self.token,
		&FeedItem{},
		NewNoopApiCallback[*FeedItem](),
	)
}

type GetUserCallback apiCallback[*GetUserResult]

type GetUserResult struct {
	Id             string    `json:"id"`
	UserName       string    `json:"username"`
	Bio            string    `json:"bio,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
	FollowerCount  int       `json:"followersCount,omitempty"`
	FollowingCount int       `json:"followingCount,omitempty"`
}

func (self *FeedApi) GetUser(userId string, callback GetUserCallback) {
	go get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/users/%s", self.apiUrl, userId),
		self.token,
		&GetUserResult{},
		callback,
	)
}

func (self *FeedApi) GetUserSync(userId string) (*GetUserResult, error) {
	return get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/users/%s", self.apiUrl, userId),
		self.token,
		&GetUserResult{},
		NewNoopApiCallback[*GetUserResult](),
	)
}

type GetUserLikesCallback apiCallback[*GetUserLikesResult]

type GetUserLikesResult struct {
	LikedPostIds []string `json:"likedPostIds"`
}

func (self *FeedApi) GetUserLikes(callback GetUserLikesCallback) {
	go get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/users/me/likes", self.apiUrl),
		self.token,
		&GetUserLikesResult{},
		callback,
	)
}

func (self *FeedApi) GetUserLikesSync() (*GetUserLikesResult, error) {
	return get(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/users/me/likes", self.apiUrl),
		self.token,
		&GetUserLikesResult{},
		NewNoopApiCallback[*GetUserLikesResult](),
	)
}

type CreatePostCallback apiCallback[*CreatePostResult]

type CreatePostArgs struct {
	AuthorId    string `json:"authorId"`
	PostTitle   string `json:"postTitle,omitempty"`
	PostContent string `json:"postContent"`
}

type CreatePostResult struct {
	// the canonical id is not guaranteed in all variants of this flow.
	// when absent, the pending entry is reconciled by a later feed fetch
	PostId    string                 `json:"postId,omitempty"`
	CreatedAt *time.Time             `json:"createdAt,omitempty"`
	Error     *CreatePostResultError `json:"error,omitempty"`
}

type CreatePostResultError struct {
	Message string `json:"message"`
}

func (self *FeedApi) CreatePost(createPost *CreatePostArgs, callback CreatePostCallback) {
	go post(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/posts", self.apiUrl),
		createPost,
		self.token,
		&CreatePostResult{},
		callback,
	)
}

func (self *FeedApi) CreatePostSync(createPost *CreatePostArgs) (*CreatePostResult, error) {
	return post(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/posts", self.apiUrl),
		createPost,
		self.token,
		&CreatePostResult{},
		NewNoopApiCallback[*CreatePostResult](),
	)
}

type LikePostCallback apiCallback[*LikePostResult]

type LikePostResult struct {
	Error *LikePostResultError `json:"error,omitempty"`
}

type LikePostResultError struct {
	Message string `json:"message"`
}

func (self *FeedApi) LikePost(postId string, callback LikePostCallback) {
	go post(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/posts/%s/like", self.apiUrl, postId),
		nil,
		self.token,
		&LikePostResult{},
		callback,
	)
}

func (self *FeedApi) LikePostSync(postId string) (*LikePostResult, error) {
	return post(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/posts/%s/like", self.apiUrl, postId),
		nil,
		self.token,
		&LikePostResult{},
		NewNoopApiCallback[*LikePostResult](),
	)
}

func (self *FeedApi) UnlikePost(postId string, callback LikePostCallback) {
	go del(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/posts/%s/like", self.apiUrl, postId),
		self.token,
		&LikePostResult{},
		callback,
	)
}

func (self *FeedApi) UnlikePostSync(postId string) (*LikePostResult, error) {
	return del(
		self.ctx,
		self.settings,
		fmt.Sprintf("%s/posts/%s/like", self.apiUrl, postId),
		self.token,
		&LikePostResult{},
		NewNoopApiCallback[*LikePostResult](),
	)
}

func post[R any](ctx context.Context, settings *FeedApiSettings, url string, args any, token string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, settings, "POST", url, args, token, result, callback)
}

func get[R any](ctx context.Context, settings *FeedApiSettings, url string, token string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, settings, "GET", url, nil, token, result, callback)
}

func del[R any](ctx context.Context, settings *FeedApiSettings, url string, token string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, settings, "DELETE", url, nil, token, result, callback)
}

func request[R any](ctx context.Context, settings *FeedApiSettings, method string, url string, args any, token string, result R, callback apiCallback[R]) (R, error) {
	var requestBodyBytes []byte
	if args == nil {
		requestBodyBytes = make([]byte, 0)
	} else {
		var err error
		requestBodyBytes, err = json.Marshal(args)
		if err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(requestBodyBytes))
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	req.Header.Add("Content-Type", "application/json")

	if token != "" {
		auth := fmt.Sprintf("Bearer %s", token)
		req.Header.Add("Authorization", auth)
	}

	client := settings.client()
	r, err := client.Do(req)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	if http.StatusOK != r.StatusCode {
		// the response body is the error message
		errorMessage := strings.TrimSpace(string(responseBodyBytes))
		err = errors.New(errorMessage)
		callback.Result(result, err)
		return result, err
	}

	if err != nil {
		callback.Result(result, err)
		return result, err
	}

	err = json.Unmarshal(responseBodyBytes, &result)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	callback.Result(result, nil)
	return result, nil
}
