package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_FirstMatchWins(t *testing.T) {
	router := NewRouter()

	var fired []string
	router.Register(
		Route{
			Name:    "first",
			Pattern: regexp.MustCompile(`^hello`),
			Handler: func(ctx context.Context, pc *Context, match []string) error {
				fired = append(fired, "first")
				return nil
			},
		},
		Route{
			Name:    "second",
			Pattern: regexp.MustCompile(`^hello world$`),
			Handler: func(ctx context.Context, pc *Context, match []string) error {
				fired = append(fired, "second")
				return nil
			},
		},
	)

	recorder := &replyRecorder{}
	pc := newTestContext(newFakeStore(), &mockBotClient{}, recorder)
	pc.Text = "hello world"

	matched, err := router.Dispatch(context.Background(), pc)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, []string{"first"}, fired)
}

func TestRouter_NoMatch(t *testing.T) {
	router := NewRouter()
	router.Register(Route{
		Name:    "only",
		Pattern: regexp.MustCompile(`^#ping$`),
		Handler: func(ctx context.Context, pc *Context, match []string) error {
			t.Fatal("handler must not fire")
			return nil
		},
	})

	recorder := &replyRecorder{}
	pc := newTestContext(newFakeStore(), &mockBotClient{}, recorder)
	pc.Text = "#pong"

	matched, err := router.Dispatch(context.Background(), pc)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestRouter_AdminOnlySkippedForNonAdmins(t *testing.T) {
	router := NewRouter()

	var fired []string
	router.Register(
		Route{
			Name:      "admin",
			Pattern:   regexp.MustCompile(`^#cmd$`),
			AdminOnly: true,
			Handler: func(ctx context.Context, pc *Context, match []string) error {
				fired = append(fired, "admin")
				return nil
			},
		},
		Route{
			Name:    "public",
			Pattern: regexp.MustCompile(`^#cmd$`),
			Handler: func(ctx context.Context, pc *Context, match []string) error {
				fired = append(fired, "public")
				return nil
			},
		},
	)

	recorder := &replyRecorder{}
	pc := newTestContext(newFakeStore(), &mockBotClient{}, recorder)
	pc.IsAdmin = false
	pc.Text = "#cmd"

	matched, err := router.Dispatch(context.Background(), pc)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, []string{"public"}, fired, "admin route must be invisible to non-admins")
}

func TestRouter_RewritersRunBeforeRouting(t *testing.T) {
	router := NewRouter()
	router.RegisterRewriter(func(pc *Context) {
		pc.Text = "#rewritten"
	})

	var got string
	router.Register(Route{
		Name:    "target",
		Pattern: regexp.MustCompile(`^#rewritten$`),
		Handler: func(ctx context.Context, pc *Context, match []string) error {
			got = pc.Text
			return nil
		},
	})

	recorder := &replyRecorder{}
	pc := newTestContext(newFakeStore(), &mockBotClient{}, recorder)
	pc.Text = "#original"

	matched, err := router.Dispatch(context.Background(), pc)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, "#rewritten", got)
}

func TestRouter_HandlerErrorPropagates(t *testing.T) {
	router := NewRouter()
	router.Register(Route{
		Name:    "failing",
		Pattern: regexp.MustCompile(`^#fail$`),
		Handler: func(ctx context.Context, pc *Context, match []string) error {
			return errors.New("boom")
		},
	})

	recorder := &replyRecorder{}
	pc := newTestContext(newFakeStore(), &mockBotClient{}, recorder)
	pc.Text = "#fail"

	matched, err := router.Dispatch(context.Background(), pc)
	assert.True(t, matched)
	assert.EqualError(t, err, "boom")
}

func TestRouter_SubmatchesPassedToHandler(t *testing.T) {
	router := NewRouter()

	var match []string
	router.Register(Route{
		Name:    "capture",
		Pattern: regexp.MustCompile(`^#(\d{4})(\d{2})$`),
		Handler: func(ctx context.Context, pc *Context, m []string) error {
			match = m
			return nil
		},
	})

	recorder := &replyRecorder{}
	pc := newTestContext(newFakeStore(), &mockBotClient{}, recorder)
	pc.Text = "#202509"

	_, err := router.Dispatch(context.Background(), pc)
	require.NoError(t, err)
	require.Len(t, match, 3)
	assert.Equal(t, "2025", match[1])
	assert.Equal(t, "09", match[2])
}
