package feed

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// prefix for locally created posts that have not been confirmed by the platform.
// a post with a temp id is never a target of like/unlike
const PendingPostIdPrefix = "temp-"

// comparable
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func (self Id) String() string {
	return encodeUuid(self)
}

func (self *Id) MarshalJSON() ([]byte, error) {
	var buf [16]byte
	copy(buf[0:16], self[0:16])
	var buff bytes.Buffer
	buff.WriteByte('"')
	buff.WriteString(encodeUuid(buf))
	buff.WriteByte('"')
	return buff.Bytes(), nil
}

func (self *Id) UnmarshalJSON(src []byte) error {
	if len(src) != 38 {
		return fmt.Errorf("invalid length for UUID: %v", len(src))
	}
	buf, err := parseUuid(string(src[1 : len(src)-1]))
	if err != nil {
		return err
	}
	*self = buf
	return nil
}

func parseUuid(src string) (dst [16]byte, err error) {
	switch len(src) {
	case 36:
		src = src[0:8] + src[9:13] + src[14:18] + src[19:23] + src[24:]
	case 32:
		// dashes already stripped, assume valid
	default:
		// assume invalid.
		return dst, fmt.Errorf("cannot parse UUID %v", src)
	}

	buf, err := hex.DecodeString(src)
	if err != nil {
		return dst, err
	}

	copy(dst[:], buf)
	return dst, err
}

func encodeUuid(src [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", src[0:4], src[4:6], src[6:8], src[8:10], src[10:16])
}

func NewPendingPostId() string {
	return fmt.Sprintf("%s%s", PendingPostIdPrefix, NewId())
}

func IsPendingPostId(postId string) bool {
	return strings.HasPrefix(postId, PendingPostIdPrefix)
}

// denormalized author snapshot embedded in a post.
// this does not update retroactively if the profile changes
type Author struct {
	Id     string
	Name   string
	Handle string
}

// the logged in user for the current session
type Principal struct {
	Id     string
	Name   string
	Handle string
}

func (self *Principal) Author() Author {
	return Author{
		Id:     self.Id,
		Name:   self.Name,
		Handle: self.Handle,
	}
}

// display handle derived from the user name, e.g. "Jane Doe" -> "@janedoe"
func HandleForName(name string) string {
	return "@" + strings.ReplaceAll(strings.ToLower(name), " ", "")
}

type Post struct {
	Id         string
	Author     Author
	Title      string
	Body       string
	CreatedAt  time.Time
	ImageUrl   string
	LikeCount  int
	ReplyCount int
}

func (self *Post) Pending() bool {
	return IsPendingPostId(self.Id)
}

// change notification used by all stores.
// views subscribe on mount and call the returned unsub on unmount
type ChangeFunction func()

var ErrNotAuthenticated = errors.New("not authenticated")

// a second toggle for the same post while one is in flight.
// mutations are serialized per post id
var ErrToggleInFlight = errors.New("like toggle already in flight")

// credentials rejected by the platform
type AuthError struct {
	Message string
}

func (self *AuthError) Error() string {
	if self.Message == "" {
		return "auth rejected"
	}
	return self.Message
}

// network or server failure during the remote phase of a mutation.
// the local optimistic state has already been rolled back when this surfaces
type RemoteCallError struct {
	Op    string
	Cause error
}

func (self *RemoteCallError) Error() string {
	return fmt.Sprintf("%s failed: %s", self.Op, self.Cause)
}

func (self *RemoteCallError) Unwrap() error {
	return self.Cause
}

// a feed or likes fetch failed. nothing is rolled back since hydration
// does not mutate optimistically
type HydrationError struct {
	Op    string
	Cause error
}

func (self *HydrationError) Error() string {
	return fmt.Sprintf("%s hydration failed: %s", self.Op, self.Cause)
}

func (self *HydrationError) Unwrap() error {
	return self.Cause
}
