package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/jpegapp/feed/feed"
)

const sendBufferSize = 32

type ChatClientSettings struct {
	WsHandshakeTimeout time.Duration
	AuthTimeout        time.Duration
	ReconnectTimeout   time.Duration
	PingTimeout        time.Duration
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration
	HttpTimeout        time.Duration
}

func DefaultChatClientSettings() *ChatClientSettings {
	return &ChatClientSettings{
		WsHandshakeTimeout: 2 * time.Second,
		AuthTimeout:        2 * time.Second,
		ReconnectTimeout:   5 * time.Second,
		PingTimeout:        1 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReadTimeout:        15 * time.Second,
		HttpTimeout:        60 * time.Second,
	}
}

type ChatAuth struct {
	UserId     string
	Token      string
	AppVersion string
}

type Message struct {
	Id        string    `json:"id,omitempty"`
	ChannelId string    `json:"channelId"`
	UserId    string    `json:"userId,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// the externally defined frame envelope of the chat backend.
// not a protocol of this client's own design
type envelope struct {
	Type    string     `json:"type"`
	Auth    *authFrame `json:"auth,omitempty"`
	Message *Message   `json:"message,omitempty"`
}

type authFrame struct {
	UserId     string `json:"userId"`
	Token      string `json:"token"`
	AppVersion string `json:"appVersion,omitempty"`
}

type MessageFunction func(message *Message)

// the chat url is the backend's https base. the websocket side uses
// the same host with the ws scheme
func wsBaseUrl(chatUrl string) string {
	if after, ok := strings.CutPrefix(chatUrl, "https://"); ok {
		return "wss://" + after
	}
	if after, ok := strings.CutPrefix(chatUrl, "http://"); ok {
		return "ws://" + after
	}
	return chatUrl
}

// client for the third party chat backend. maintains one websocket
// to the backend with reconnect, and fans received messages out to
// message callbacks
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	chatUrl string
	auth    *ChatAuth

	send chan *envelope

	stateLock sync.Mutex
	connected bool

	connectMonitor   *feed.Monitor
	messageCallbacks *feed.CallbackList[MessageFunction]

	settings *ChatClientSettings
}

func NewClientWithDefaults(ctx context.Context, chatUrl string, auth *ChatAuth) *Client {
	return NewClient(ctx, chatUrl, auth, DefaultChatClientSettings())
}

func NewClient(ctx context.Context, chatUrl string, auth *ChatAuth, settings *ChatClientSettings) *Client {
	cancelCtx, cancel := context.WithCancel(ctx)

	client := &Client{
		ctx:              cancelCtx,
		cancel:           cancel,
		chatUrl:          chatUrl,
		auth:             auth,
		send:             make(chan *envelope, sendBufferSize),
		connectMonitor:   feed.NewMonitor(),
		messageCallbacks: feed.NewCallbackList[MessageFunction](),
		settings:         settings,
	}
	go client.run()
	return client
}

func (self *Client) run() {
	defer self.cancel()

	authBytes, err := json.Marshal(&envelope{
		Type: "auth",
		Auth: &authFrame{
			UserId:     self.auth.UserId,
			Token:      self.auth.Token,
			AppVersion: self.auth.AppVersion,
		},
	})
	if err != nil {
		return
	}

	for {
		connect := func() (*websocket.Conn, error) {
			dialer := &websocket.Dialer{
				HandshakeTimeout: self.settings.WsHandshakeTimeout,
			}
			wsUrl := fmt.Sprintf("%s/connect?user_id=%s", wsBaseUrl(self.chatUrl), self.auth.UserId)
			ws, _, err := dialer.DialContext(self.ctx, wsUrl, nil)
			if err != nil {
				return nil, err
			}

			success := false
			defer func() {
				if !success {
					ws.Close()
				}
			}()

			ws.SetWriteDeadline(time.Now().Add(self.settings.AuthTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, authBytes); err != nil {
				return nil, err
			}
			ws.SetReadDeadline(time.Now().Add(self.settings.AuthTimeout))
			if _, ackBytes, err := ws.ReadMessage(); err != nil {
				return nil, err
			} else {
				var ack envelope
				if err := json.Unmarshal(ackBytes, &ack); err != nil {
					return nil, err
				}
				if ack.Type != "auth_ok" {
					return nil, fmt.Errorf("auth response error: %s", ack.Type)
				}
			}

			success = true
			return ws, nil
		}

		ws, err := connect()
		if err != nil {
			glog.Infof("[chat]auth error %s = %s\n", self.auth.UserId, err)
			select {
			case <-self.ctx.Done():
				return
			case <-time.After(self.settings.ReconnectTimeout):
				continue
			}
		}

		self.setConnected(true)
		func() {
			defer ws.Close()
			defer self.setConnected(false)

			handleCtx, handleCancel := context.WithCancel(self.ctx)
			defer handleCancel()

			go func() {
				defer handleCancel()

				for {
					select {
					case <-handleCtx.Done():
						return
					case message, ok := <-self.send:
						if !ok {
							return
						}

						messageBytes, err := json.Marshal(message)
						if err != nil {
							glog.Infof("[chat]%s-> encode error = %s\n", self.auth.UserId, err)
							continue
						}
						ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
						if err := ws.WriteMessage(websocket.TextMessage, messageBytes); err != nil {
							// note that for websocket a deadline timeout cannot be recovered
							glog.Infof("[chat]%s-> error = %s\n", self.auth.UserId, err)
							return
						}
						glog.V(2).Infof("[chat]%s->\n", self.auth.UserId)
					case <-time.After(self.settings.PingTimeout):
						pingBytes, _ := json.Marshal(&envelope{Type: "ping"})
						ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
						if err := ws.WriteMessage(websocket.TextMessage, pingBytes); err != nil {
							return
						}
					}
				}
			}()

			go func() {
				defer handleCancel()

				for {
					select {
					case <-handleCtx.Done():
						return
					default:
					}

					ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
					_, messageBytes, err := ws.ReadMessage()
					if err != nil {
						glog.Infof("[chat]%s<- error = %s\n", self.auth.UserId, err)
						return
					}

					var frame envelope
					if err := json.Unmarshal(messageBytes, &frame); err != nil {
						glog.V(2).Infof("[chat]%s<- decode error = %s\n", self.auth.UserId, err)
						continue
					}
					switch frame.Type {
					case "ping", "pong":
						glog.V(2).Infof("[chat]ping %s<-\n", self.auth.UserId)
					case "message":
						if frame.Message != nil {
							self.receive(frame.Message)
						}
					default:
						glog.V(2).Infof("[chat]other=%s %s<-\n", frame.Type, self.auth.UserId)
					}
				}
			}()

			select {
			case <-handleCtx.Done():
			}
		}()

		select {
		case <-self.ctx.Done():
			return
		case <-time.After(self.settings.ReconnectTimeout):
		}
	}
}

func (self *Client) setConnected(connected bool) {
	self.stateLock.Lock()
	self.connected = connected
	self.stateLock.Unlock()
	self.connectMonitor.NotifyAll()
}

func (self *Client) Connected() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.connected
}

// closed and renewed on every connect/disconnect transition
func (self *Client) ConnectChannel() <-chan struct{} {
	return self.connectMonitor.NotifyChannel()
}

func (self *Client) receive(message *Message) {
	for _, messageCallback := range self.messageCallbacks.Get() {
		messageCallback(message)
	}
}

func (self *Client) AddMessageCallback(messageCallback MessageFunction) func() {
	callbackId := self.messageCallbacks.Add(messageCallback)
	return func() {
		self.messageCallbacks.Remove(callbackId)
	}
}

// non blocking. fails when the send buffer is full rather than
// stalling the caller
func (self *Client) Send(message *Message) error {
	select {
	case <-self.ctx.Done():
		return fmt.Errorf("chat client closed")
	case self.send <- &envelope{Type: "message", Message: message}:
		return nil
	default:
		return fmt.Errorf("chat send buffer full")
	}
}

func (self *Client) Close() {
	self.cancel()
}

// handle for one messaging channel
type Channel struct {
	client *Client

	channelType string
	channelId   string
}

func (self *Client) Channel(channelType string, channelId string) *Channel {
	return &Channel{
		client:      self,
		channelType: channelType,
		channelId:   channelId,
	}
}

func (self *Channel) Id() string {
	return self.channelId
}

func (self *Channel) Send(text string) error {
	return self.client.Send(&Message{
		ChannelId: self.channelId,
		UserId:    self.client.auth.UserId,
		Text:      text,
	})
}

// messages for this channel only
func (self *Channel) AddMessageCallback(messageCallback MessageFunction) func() {
	return self.client.AddMessageCallback(func(message *Message) {
		if message.ChannelId == self.channelId {
			messageCallback(message)
		}
	})
}
