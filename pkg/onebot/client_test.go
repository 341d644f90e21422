package onebot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/kvcfdd/yunzai-go/internal/errors"
	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) types.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(types.ClientConfig{
		BaseURL:     server.URL,
		AccessToken: "test-token",
		Timeout:     5 * time.Second,
		RetryCount:  1,
	})
}

func okResponse(data string) string {
	return `{"status": "ok", "retcode": 0, "data": ` + data + `}`
}

func TestSendPrivateMessage(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotBody map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(okResponse(`{"message_id": 42}`)))
	})

	result, err := client.SendPrivateMessage(context.Background(), 20002, types.Message{types.Text("hi")})
	require.NoError(t, err)

	assert.Equal(t, "/send_private_msg", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, float64(20002), gotBody["user_id"])
	assert.Equal(t, int64(42), result.MessageID)
}

func TestSetFriendAddRequest(t *testing.T) {
	var gotBody map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(okResponse("null")))
	})

	require.NoError(t, client.SetFriendAddRequest(context.Background(), "flag-1", true))
	assert.Equal(t, "flag-1", gotBody["flag"])
	assert.Equal(t, true, gotBody["approve"])
}

func TestActionFailureCarriesWording(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "failed", "retcode": 100, "wording": "参数错误"}`))
	})

	err := client.SendLike(context.Background(), 20002, 10)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeOneBotAPI, apperrors.GetCode(err))
	assert.Equal(t, "参数错误", apperrors.GetUserMessage(err))
	assert.False(t, apperrors.IsAlreadyProcessed(err))
}

func TestAlreadyProcessedConflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "failed", "retcode": 100, "wording": "该请求已经被处理了"}`))
	})

	err := client.SetFriendAddRequest(context.Background(), "stale-flag", true)
	require.Error(t, err)
	assert.True(t, apperrors.IsAlreadyProcessed(err))
}

func TestTransportFailureIsRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(okResponse("null")))
	}))
	t.Cleanup(server.Close)

	client := NewClient(types.ClientConfig{
		BaseURL:    server.URL,
		Timeout:    5 * time.Second,
		RetryCount: 3,
	})

	require.NoError(t, client.SendLike(context.Background(), 20002, 10))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestActionFailureIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"status": "failed", "retcode": 100, "message": "denied"}`))
	})

	err := client.SendLike(context.Background(), 20002, 10)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetFriendList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(okResponse(`[{"user_id": 1, "nickname": "a"}, {"user_id": 2, "nickname": "b"}]`)))
	})

	friends, err := client.GetFriendList(context.Background())
	require.NoError(t, err)
	require.Len(t, friends, 2)
	assert.Equal(t, int64(2), friends[1].UserID)
}

func TestNoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(okResponse("null")))
	}))
	t.Cleanup(server.Close)

	client := NewClient(types.ClientConfig{BaseURL: server.URL})
	require.NoError(t, client.SendLike(context.Background(), 1, 1))
	assert.Empty(t, gotAuth)
}
