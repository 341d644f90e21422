package service

import (
	"context"
	"time"

	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"

	"github.com/sirupsen/logrus"
)

// Store is the key-value persistence surface the plugins depend on.
type Store interface {
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// ReplyFunc sends a message back to the chat the triggering message came from.
type ReplyFunc func(ctx context.Context, message types.Message) error

// Context carries everything a command handler needs. Handlers receive it
// explicitly instead of reaching for process-wide state.
type Context struct {
	Store Store
	Bot   types.Client

	// SelfID is the receiving bot account.
	SelfID int64
	// UserID is the sender of the triggering message.
	UserID int64
	// GroupID is set for group messages, zero otherwise.
	GroupID int64
	// IsAdmin reports whether the sender is a configured administrator of
	// the receiving bot account.
	IsAdmin bool

	// Text is the plain message text. Rewriters may replace it before
	// routing.
	Text string

	Reply  ReplyFunc
	Logger *logrus.Entry
}
