package hakush

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kvcfdd/yunzai-go/internal/constants"
	apperrors "github.com/kvcfdd/yunzai-go/internal/errors"
)

// DefaultBaseURL is the public schedule API host.
const DefaultBaseURL = "https://api.hakush.in"

// browserUserAgent mirrors what a desktop browser sends; the API rejects
// clients without one.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// Client fetches tower schedules and period details for both games.
type Client interface {
	GetGITowerSchedule(ctx context.Context) (map[string]GIPeriod, error)
	GetGITowerDetail(ctx context.Context, key string) (*GITowerDetail, error)
	GetWavesTowerSchedule(ctx context.Context) (map[string]WavesPeriod, error)
	GetWavesTowerDetail(ctx context.Context, key string) (*WavesTowerDetail, error)
	BaseURL() string
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: time.Duration(constants.DefaultScheduleFetchTimeoutSec) * time.Second,
		},
	}
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) GetGITowerSchedule(ctx context.Context) (map[string]GIPeriod, error) {
	var schedule map[string]GIPeriod
	if err := c.getJSON(ctx, "/gi/data/tower.json", &schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (c *HTTPClient) GetGITowerDetail(ctx context.Context, key string) (*GITowerDetail, error) {
	var detail GITowerDetail
	if err := c.getJSON(ctx, "/gi/data/zh/tower/"+key+".json", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *HTTPClient) GetWavesTowerSchedule(ctx context.Context) (map[string]WavesPeriod, error) {
	var schedule map[string]WavesPeriod
	if err := c.getJSON(ctx, "/ww/data/tower.json", &schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (c *HTTPClient) GetWavesTowerDetail(ctx context.Context, key string) (*WavesTowerDetail, error) {
	var detail WavesTowerDetail
	if err := c.getJSON(ctx, "/ww/data/zh/tower/"+key+".json", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeScheduleAPI, "schedule request failed").
			WithContext("path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.NewNotFoundError("schedule", path)
	}
	if resp.StatusCode != http.StatusOK {
		return apperrors.NewAPIError("schedule", path, resp.StatusCode,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return nil
}
