package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

// Mock bot client
type mockBotClient struct {
	mock.Mock
}

func (m *mockBotClient) SendPrivateMessage(ctx context.Context, userID int64, message types.Message) (*types.SendMessageResult, error) {
	args := m.Called(ctx, userID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendMessageResult), args.Error(1)
}

func (m *mockBotClient) SendGroupMessage(ctx context.Context, groupID int64, message types.Message) (*types.SendMessageResult, error) {
	args := m.Called(ctx, groupID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendMessageResult), args.Error(1)
}

func (m *mockBotClient) GetStrangerInfo(ctx context.Context, userID int64) (*types.StrangerInfo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.StrangerInfo), args.Error(1)
}

func (m *mockBotClient) GetGroupInfo(ctx context.Context, groupID int64) (*types.GroupInfo, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.GroupInfo), args.Error(1)
}

func (m *mockBotClient) GetLoginInfo(ctx context.Context) (*types.LoginInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.LoginInfo), args.Error(1)
}

func (m *mockBotClient) GetFriendList(ctx context.Context) ([]types.Friend, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Friend), args.Error(1)
}

func (m *mockBotClient) SetFriendAddRequest(ctx context.Context, flag string, approve bool) error {
	args := m.Called(ctx, flag, approve)
	return args.Error(0)
}

func (m *mockBotClient) SetGroupAddRequest(ctx context.Context, flag, subType string, approve bool, reason string) error {
	args := m.Called(ctx, flag, subType, approve, reason)
	return args.Error(0)
}

func (m *mockBotClient) SendLike(ctx context.Context, userID int64, times int) error {
	args := m.Called(ctx, userID, times)
	return args.Error(0)
}

// fakeStore is an in-memory Store that records write ordering.
type fakeStore struct {
	mu        sync.Mutex
	data      map[string]string
	setErr    error
	getErr    error
	deleteErr error

	// ops records the sequence of mutating operations by key.
	ops []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	f.ops = append(f.ops, "set:"+key)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	value, found := f.data[key]
	return value, found, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.data, key)
	f.ops = append(f.ops, "delete:"+key)
	return nil
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, found := f.data[key]
	return found
}

// replyRecorder captures handler replies.
type replyRecorder struct {
	mu       sync.Mutex
	messages []types.Message
	err      error
}

func (r *replyRecorder) reply(ctx context.Context, message types.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, message)
	return nil
}

func (r *replyRecorder) all() []types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages
}

// replyText flattens the text segments of the i-th reply.
func (r *replyRecorder) replyText(i int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.messages) {
		return ""
	}
	text := ""
	for _, seg := range r.messages[i] {
		if seg.Type == "text" {
			text += seg.Data["text"].(string)
		}
	}
	return text
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestContext(store Store, bot types.Client, recorder *replyRecorder) *Context {
	return &Context{
		Store:   store,
		Bot:     bot,
		SelfID:  10001,
		UserID:  20002,
		IsAdmin: true,
		Reply:   recorder.reply,
		Logger:  logrus.NewEntry(testLogger()),
	}
}
