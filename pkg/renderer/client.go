package renderer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kvcfdd/yunzai-go/internal/constants"
	apperrors "github.com/kvcfdd/yunzai-go/internal/errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// browserUserAgent is sent on template downloads; some hosts reject requests
// without a browser identity.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// Client renders an HTML template plus variables into an image via the
// external screenshot service.
type Client interface {
	Render(ctx context.Context, template string, data interface{}) ([]byte, error)
	EnsureTemplate(ctx context.Context, name, downloadURL string) error
}

type ClientConfig struct {
	BaseURL     string
	TemplateDir string
	Timeout     time.Duration
}

type renderRequest struct {
	TaskID   string      `json:"taskId"`
	Template string      `json:"template"`
	TplFile  string      `json:"tplFile"`
	Data     interface{} `json:"data"`
}

type renderResponse struct {
	Status string `json:"status"`
	Image  string `json:"image"`
	Error  string `json:"error,omitempty"`
}

type HTTPClient struct {
	baseURL     string
	templateDir string
	client      *http.Client
	logger      *logrus.Logger
}

func NewClient(cfg ClientConfig, logger *logrus.Logger) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Duration(constants.DefaultRenderTimeoutSec) * time.Second
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		templateDir: cfg.TemplateDir,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// EnsureTemplate downloads the named template into the template directory
// when it is not already present. A download failure is returned to the
// caller but leaves any later manual placement of the file usable.
func (c *HTTPClient) EnsureTemplate(ctx context.Context, name, downloadURL string) error {
	path := filepath.Join(c.templateDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create template request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeRendererAPI, "template download failed").
			WithContext("template", name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.NewAPIError("renderer", downloadURL, resp.StatusCode,
			fmt.Errorf("template download returned status %d", resp.StatusCode))
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read template body: %w", err)
	}

	if err := os.WriteFile(path, content, 0640); err != nil {
		return fmt.Errorf("failed to write template file: %w", err)
	}

	c.logger.WithField("template", name).Info("Template downloaded")
	return nil
}

// Render posts the template and its variables to the screenshot service and
// returns the rendered image bytes.
func (c *HTTPClient) Render(ctx context.Context, template string, data interface{}) ([]byte, error) {
	reqBody := renderRequest{
		TaskID:   uuid.NewString(),
		Template: template,
		TplFile:  filepath.Join(c.templateDir, template),
		Data:     data,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.WrapRetryable(err, apperrors.ErrCodeRendererAPI, "render request failed").
			WithContext("template", template)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewAPIError("renderer", "/render", resp.StatusCode,
			fmt.Errorf("render returned status %d", resp.StatusCode))
	}

	var result renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode render response: %w", err)
	}

	if result.Status != "ok" {
		return nil, apperrors.New(apperrors.ErrCodeRendererAPI, "render failed").
			WithContext("template", template).
			WithUserMessage(result.Error)
	}

	image, err := base64.StdEncoding.DecodeString(result.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered image: %w", err)
	}

	return image, nil
}
