package renderer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/kvcfdd/yunzai-go/internal/errors"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRenderReturnsImageBytes(t *testing.T) {
	var gotReq renderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/render", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(renderResponse{
			Status: "ok",
			Image:  base64.StdEncoding.EncodeToString([]byte("png-bytes")),
		})
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{BaseURL: server.URL, TemplateDir: "/tmp/templates"}, quietLogger())

	img, err := client.Render(context.Background(), "tower.html", map[string]string{"k": "v"})
	require.NoError(t, err)

	assert.Equal(t, []byte("png-bytes"), img)
	assert.NotEmpty(t, gotReq.TaskID)
	assert.Equal(t, "tower.html", gotReq.Template)
	assert.Equal(t, "/tmp/templates/tower.html", gotReq.TplFile)
}

func TestRenderServiceFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(renderResponse{Status: "error", Error: "template not found"})
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{BaseURL: server.URL}, quietLogger())

	_, err := client.Render(context.Background(), "missing.html", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRendererAPI, apperrors.GetCode(err))
	assert.Equal(t, "template not found", apperrors.GetUserMessage(err))
}

func TestRenderHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{BaseURL: server.URL}, quietLogger())

	_, err := client.Render(context.Background(), "tower.html", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestEnsureTemplateDownloads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>tower</html>"))
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	client := NewClient(ClientConfig{TemplateDir: dir}, quietLogger())

	require.NoError(t, client.EnsureTemplate(context.Background(), "tower.html", server.URL))

	content, err := os.ReadFile(filepath.Join(dir, "tower.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>tower</html>", string(content))
}

func TestEnsureTemplateSkipsExisting(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("fresh"))
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tower.html"), []byte("existing"), 0640))

	client := NewClient(ClientConfig{TemplateDir: dir}, quietLogger())
	require.NoError(t, client.EnsureTemplate(context.Background(), "tower.html", server.URL))

	assert.Zero(t, calls)
	content, err := os.ReadFile(filepath.Join(dir, "tower.html"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(content))
}

func TestEnsureTemplateDownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{TemplateDir: t.TempDir()}, quietLogger())

	err := client.EnsureTemplate(context.Background(), "tower.html", server.URL)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRendererAPI, apperrors.GetCode(err))
}
