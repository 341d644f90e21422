package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"time": 1756700000,
		"self_id": 10001,
		"post_type": "request",
		"request_type": "group",
		"sub_type": "invite",
		"user_id": 20002,
		"group_id": 30003,
		"flag": "flag-1"
	}`))
	require.NoError(t, err)

	assert.Equal(t, int64(10001), ev.SelfID)
	assert.True(t, ev.IsGroupInvite())
	assert.False(t, ev.IsFriendRequest())
	assert.Equal(t, "flag-1", ev.Flag)
}

func TestParseEventRejectsGarbage(t *testing.T) {
	_, err := ParseEvent([]byte(`{`))
	assert.Error(t, err)
}

func TestFriendRequestDetection(t *testing.T) {
	ev := &Event{PostType: PostTypeRequest, RequestType: RequestTypeFriend}
	assert.True(t, ev.IsFriendRequest())

	// A group join request without the invite sub type is not an invite
	ev = &Event{PostType: PostTypeRequest, RequestType: RequestTypeGroup, SubType: "add"}
	assert.False(t, ev.IsGroupInvite())
}

func TestRequestRecordKey(t *testing.T) {
	assert.Equal(t, "friend_20002", RequestRecordKey(RequestKindFriend, 20002))
	assert.Equal(t, "group_30003", RequestRecordKey(RequestKindGroup, 30003))
}
