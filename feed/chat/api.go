package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jpegapp/feed/feed"
)

// rest side of the chat backend: channel management and user search.
// these are synchronous; the realtime side is the websocket in chat.go

type CreateChannelArgs struct {
	ChannelType string   `json:"type"`
	ChannelId   feed.Id  `json:"id"`
	Name        string   `json:"name,omitempty"`
	MemberIds   []string `json:"members"`
}

type CreateChannelResult struct {
	ChannelType string   `json:"type"`
	ChannelId   feed.Id  `json:"id"`
	Name        string   `json:"name,omitempty"`
	MemberIds   []string `json:"members,omitempty"`
}

// creates a messaging channel with a locally generated channel id,
// mirroring how the web client creates direct message channels.
// the channel id travels as a uuid string on the wire
func (self *Client) CreateChannel(ctx context.Context, name string, memberIds []string) (*Channel, error) {
	args := &CreateChannelArgs{
		ChannelType: "messaging",
		ChannelId:   feed.NewId(),
		Name:        name,
		MemberIds:   memberIds,
	}
	var result CreateChannelResult
	err := self.request(ctx, "POST", fmt.Sprintf("%s/channels", self.chatUrl), args, &result)
	if err != nil {
		return nil, err
	}
	return self.Channel(result.ChannelType, result.ChannelId.String()), nil
}

type ChatUser struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type queryUsersResult struct {
	Users []*ChatUser `json:"users"`
}

func (self *Client) QueryUsers(ctx context.Context, nameFilter string) ([]*ChatUser, error) {
	queryUrl := fmt.Sprintf("%s/users", self.chatUrl)
	if nameFilter != "" {
		queryUrl = fmt.Sprintf("%s?name=%s", queryUrl, url.QueryEscape(nameFilter))
	}
	var result queryUsersResult
	err := self.request(ctx, "GET", queryUrl, nil, &result)
	if err != nil {
		return nil, err
	}
	return result.Users, nil
}

func (self *Client) request(ctx context.Context, method string, requestUrl string, args any, result any) error {
	var requestBodyBytes []byte
	if args != nil {
		var err error
		requestBodyBytes, err = json.Marshal(args)
		if err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, requestUrl, bytes.NewReader(requestBodyBytes))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", self.auth.Token))

	client := &http.Client{
		Timeout: self.settings.HttpTimeout,
	}
	r, err := client.Do(req)
	if err != nil {
		return err
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	if http.StatusOK != r.StatusCode {
		// the response body is the error message
		return errors.New(strings.TrimSpace(string(responseBodyBytes)))
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(responseBodyBytes, result)
}
