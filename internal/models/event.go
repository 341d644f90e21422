package models

import "encoding/json"

// Event post types delivered by the bot runtime.
const (
	PostTypeMessage = "message"
	PostTypeRequest = "request"
	PostTypeNotice  = "notice"
	PostTypeMeta    = "meta_event"
)

// Request event types and sub types.
const (
	RequestTypeFriend = "friend"
	RequestTypeGroup  = "group"
	SubTypeInvite     = "invite"
)

// Event is the envelope every OneBot v11 event shares. Payload keeps the raw
// JSON so type-specific fields can be decoded after dispatch on PostType.
type Event struct {
	Time     int64  `json:"time"`
	SelfID   int64  `json:"self_id"`
	PostType string `json:"post_type"`

	// Message event fields
	MessageType string `json:"message_type,omitempty"`
	RawMessage  string `json:"raw_message,omitempty"`
	UserID      int64  `json:"user_id,omitempty"`
	GroupID     int64  `json:"group_id,omitempty"`
	Sender      Sender `json:"sender,omitempty"`

	// Request event fields
	RequestType string `json:"request_type,omitempty"`
	SubType     string `json:"sub_type,omitempty"`
	Comment     string `json:"comment,omitempty"`
	Flag        string `json:"flag,omitempty"`
}

type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

// IsFriendRequest reports whether the event is an inbound friend-add request.
func (e *Event) IsFriendRequest() bool {
	return e.PostType == PostTypeRequest && e.RequestType == RequestTypeFriend
}

// IsGroupInvite reports whether the event is an inbound group-invite request.
func (e *Event) IsGroupInvite() bool {
	return e.PostType == PostTypeRequest && e.RequestType == RequestTypeGroup && e.SubType == SubTypeInvite
}

// ParseEvent decodes a raw event frame.
func ParseEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
