package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// ClientConfig holds the OneBot HTTP API client configuration.
type ClientConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	RetryCount  int
}

// Segment is one element of a OneBot v11 array-format message.
type Segment struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Message is an ordered list of segments.
type Message []Segment

// Text builds a plain-text segment.
func Text(text string) Segment {
	return Segment{Type: "text", Data: map[string]interface{}{"text": text}}
}

// Image builds an image segment referencing a URL or base64 payload.
func Image(file string) Segment {
	return Segment{Type: "image", Data: map[string]interface{}{"file": file}}
}

// ImageBytes builds an image segment carrying raw image bytes inline.
func ImageBytes(data []byte) Segment {
	return Image("base64://" + base64.StdEncoding.EncodeToString(data))
}

// APIResponse is the envelope every action call returns.
type APIResponse struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
}

// OK reports whether the action succeeded.
func (r *APIResponse) OK() bool {
	return r.Status == "ok" && r.Retcode == 0
}

// ErrorText returns the platform-reported failure text, preferring the
// human wording when present.
func (r *APIResponse) ErrorText() string {
	if r.Wording != "" {
		return r.Wording
	}
	if r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf("retcode %d", r.Retcode)
}

// SendMessageResult is the payload of send_private_msg / send_group_msg.
type SendMessageResult struct {
	MessageID int64 `json:"message_id"`
}

// StrangerInfo is the payload of get_stranger_info.
type StrangerInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

// GroupInfo is the payload of get_group_info.
type GroupInfo struct {
	GroupID     int64  `json:"group_id"`
	GroupName   string `json:"group_name"`
	MemberCount int    `json:"member_count"`
}

// LoginInfo is the payload of get_login_info.
type LoginInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

// Friend is one entry of get_friend_list.
type Friend struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark"`
}
