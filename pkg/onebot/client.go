package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kvcfdd/yunzai-go/internal/constants"
	apperrors "github.com/kvcfdd/yunzai-go/internal/errors"
	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"
)

// alreadyProcessedMarker is the free-text substring the platform reports when
// an approval flag has already been consumed. The platform exposes no
// structured code for this conflict, only the wording.
const alreadyProcessedMarker = "请求已经被处理"

type OneBotClient struct {
	baseURL     string
	accessToken string
	retryCount  int
	client      *http.Client
}

func NewClient(cfg types.ClientConfig) types.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Duration(constants.DefaultHTTPTimeoutSec) * time.Second
	}
	retryCount := cfg.RetryCount
	if retryCount <= 0 {
		retryCount = 1
	}
	return &OneBotClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		retryCount:  retryCount,
		client:      &http.Client{Timeout: timeout},
	}
}

func (c *OneBotClient) SendPrivateMessage(ctx context.Context, userID int64, message types.Message) (*types.SendMessageResult, error) {
	params := map[string]interface{}{
		"user_id": userID,
		"message": message,
	}

	var result types.SendMessageResult
	if err := c.callAction(ctx, "send_private_msg", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *OneBotClient) SendGroupMessage(ctx context.Context, groupID int64, message types.Message) (*types.SendMessageResult, error) {
	params := map[string]interface{}{
		"group_id": groupID,
		"message":  message,
	}

	var result types.SendMessageResult
	if err := c.callAction(ctx, "send_group_msg", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *OneBotClient) GetStrangerInfo(ctx context.Context, userID int64) (*types.StrangerInfo, error) {
	params := map[string]interface{}{
		"user_id":  userID,
		"no_cache": true,
	}

	var result types.StrangerInfo
	if err := c.callAction(ctx, "get_stranger_info", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *OneBotClient) GetGroupInfo(ctx context.Context, groupID int64) (*types.GroupInfo, error) {
	params := map[string]interface{}{
		"group_id": groupID,
		"no_cache": true,
	}

	var result types.GroupInfo
	if err := c.callAction(ctx, "get_group_info", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *OneBotClient) GetLoginInfo(ctx context.Context) (*types.LoginInfo, error) {
	var result types.LoginInfo
	if err := c.callAction(ctx, "get_login_info", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *OneBotClient) GetFriendList(ctx context.Context) ([]types.Friend, error) {
	var result []types.Friend
	if err := c.callAction(ctx, "get_friend_list", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *OneBotClient) SetFriendAddRequest(ctx context.Context, flag string, approve bool) error {
	params := map[string]interface{}{
		"flag":    flag,
		"approve": approve,
	}
	return c.callAction(ctx, "set_friend_add_request", params, nil)
}

func (c *OneBotClient) SetGroupAddRequest(ctx context.Context, flag, subType string, approve bool, reason string) error {
	params := map[string]interface{}{
		"flag":     flag,
		"sub_type": subType,
		"approve":  approve,
		"reason":   reason,
	}
	return c.callAction(ctx, "set_group_add_request", params, nil)
}

func (c *OneBotClient) SendLike(ctx context.Context, userID int64, times int) error {
	params := map[string]interface{}{
		"user_id": userID,
		"times":   times,
	}
	return c.callAction(ctx, "send_like", params, nil)
}

// callAction posts one action to the runtime and decodes the data payload
// into result when it is non-nil. Transport-level failures are retried up to
// the configured count; action-level failures are not.
func (c *OneBotClient) callAction(ctx context.Context, action string, params interface{}, result interface{}) error {
	var resp *types.APIResponse
	var lastErr error

	for attempt := 0; attempt < c.retryCount; attempt++ {
		resp, lastErr = c.doRequest(ctx, action, params)
		if lastErr == nil {
			break
		}
		if !apperrors.IsRetryable(lastErr) || attempt == c.retryCount-1 {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond):
		}
	}
	if lastErr != nil {
		return lastErr
	}

	if !resp.OK() {
		errText := resp.ErrorText()
		cause := fmt.Errorf("%s: %s", action, errText)
		if strings.Contains(resp.Message, alreadyProcessedMarker) || strings.Contains(resp.Wording, alreadyProcessedMarker) {
			return apperrors.NewAlreadyProcessedError(action, cause)
		}
		return apperrors.Wrap(cause, apperrors.ErrCodeOneBotAPI, "action failed").
			WithContext("action", action).
			WithContext("retcode", resp.Retcode).
			WithUserMessage(errText)
	}

	if result != nil && len(resp.Data) > 0 && string(resp.Data) != "null" {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeOneBotAPI, "failed to decode action data").
				WithContext("action", action)
		}
	}

	return nil
}

func (c *OneBotClient) doRequest(ctx context.Context, action string, params interface{}) (*types.APIResponse, error) {
	if params == nil {
		params = map[string]interface{}{}
	}

	jsonData, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.WrapRetryable(err, apperrors.ErrCodeOneBotAPI, "request failed").
			WithContext("action", action)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.WrapRetryable(err, apperrors.ErrCodeOneBotAPI, "failed to read response").
			WithContext("action", action)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewAPIError("onebot", action, resp.StatusCode,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var apiResp types.APIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeOneBotAPI, "failed to decode response").
			WithContext("action", action)
	}

	return &apiResp, nil
}
