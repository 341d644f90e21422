package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, bot *mockBotClient, routes ...Route) (*Dispatcher, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	router := NewRouter()
	router.Register(routes...)
	admins := map[int64][]int64{10001: {111}}
	request := NewRequestService(store, bot, func(selfID int64) []int64 { return admins[selfID] }, testLogger())
	return NewDispatcher(store, bot, router, request, admins, testLogger()), store
}

func TestDispatcherRoutesGroupMessage(t *testing.T) {
	bot := &mockBotClient{}
	var handled []string
	route := Route{
		Name:    "echo",
		Pattern: regexp.MustCompile(`^#echo$`),
		Handler: func(ctx context.Context, pc *Context, match []string) error {
			handled = append(handled, pc.Text)
			return pc.Reply(ctx, types.Message{types.Text("ok")})
		},
	}
	d, _ := newTestDispatcher(t, bot, route)

	bot.On("SendGroupMessage", mock.Anything, int64(30003), mock.Anything).
		Return(&types.SendMessageResult{MessageID: 1}, nil)

	d.HandleEvent(context.Background(), []byte(`{
		"time": 1756700000, "self_id": 10001, "post_type": "message",
		"message_type": "group", "group_id": 30003, "user_id": 20002,
		"raw_message": "#echo"
	}`))

	assert.Equal(t, []string{"#echo"}, handled)
	bot.AssertCalled(t, "SendGroupMessage", mock.Anything, int64(30003), mock.Anything)
	bot.AssertNotCalled(t, "SendPrivateMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcherRoutesPrivateMessage(t *testing.T) {
	bot := &mockBotClient{}
	route := Route{
		Name:    "echo",
		Pattern: regexp.MustCompile(`^#echo$`),
		Handler: func(ctx context.Context, pc *Context, match []string) error {
			return pc.Reply(ctx, types.Message{types.Text("ok")})
		},
	}
	d, _ := newTestDispatcher(t, bot, route)

	bot.On("SendPrivateMessage", mock.Anything, int64(20002), mock.Anything).
		Return(&types.SendMessageResult{MessageID: 2}, nil)

	d.HandleEvent(context.Background(), []byte(`{
		"time": 1756700000, "self_id": 10001, "post_type": "message",
		"message_type": "private", "user_id": 20002, "raw_message": "#echo"
	}`))

	bot.AssertCalled(t, "SendPrivateMessage", mock.Anything, int64(20002), mock.Anything)
}

func TestDispatcherAdminDetection(t *testing.T) {
	bot := &mockBotClient{}
	var sawAdmin []bool
	route := Route{
		Name:    "whoami",
		Pattern: regexp.MustCompile(`^#whoami$`),
		Handler: func(ctx context.Context, pc *Context, match []string) error {
			sawAdmin = append(sawAdmin, pc.IsAdmin)
			return nil
		},
	}
	d, _ := newTestDispatcher(t, bot, route)

	frame := func(userID string) []byte {
		return []byte(`{"self_id": 10001, "post_type": "message", "message_type": "private", "user_id": ` + userID + `, "raw_message": "#whoami"}`)
	}
	d.HandleEvent(context.Background(), frame("111"))
	d.HandleEvent(context.Background(), frame("20002"))

	assert.Equal(t, []bool{true, false}, sawAdmin)
}

func TestDispatcherForwardsRequestEvents(t *testing.T) {
	bot := &mockBotClient{}
	d, store := newTestDispatcher(t, bot)

	bot.On("GetStrangerInfo", mock.Anything, int64(20002)).
		Return(&types.StrangerInfo{UserID: 20002, Nickname: "tester"}, nil)
	bot.On("SendPrivateMessage", mock.Anything, int64(111), mock.Anything).
		Return(&types.SendMessageResult{MessageID: 3}, nil)

	d.HandleEvent(context.Background(), []byte(`{
		"time": 1756700000, "self_id": 10001, "post_type": "request",
		"request_type": "friend", "user_id": 20002,
		"comment": "hi", "flag": "flag-1"
	}`))

	require.True(t, store.has("Yz:request:friend_20002"))
	bot.AssertCalled(t, "SendPrivateMessage", mock.Anything, int64(111), mock.Anything)
}

func TestDispatcherDropsMalformedFrames(t *testing.T) {
	bot := &mockBotClient{}
	d, _ := newTestDispatcher(t, bot)

	d.HandleEvent(context.Background(), []byte(`{not json`))
	d.HandleEvent(context.Background(), []byte(`{"post_type": "message", "raw_message": ""}`))

	bot.AssertNotCalled(t, "SendPrivateMessage", mock.Anything, mock.Anything, mock.Anything)
	bot.AssertNotCalled(t, "SendGroupMessage", mock.Anything, mock.Anything, mock.Anything)
}
