package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kvcfdd/yunzai-go/internal/constants"
	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"

	"github.com/sirupsen/logrus"
)

const presetDownloadBaseURL = "https://raw.githubusercontent.com/kvcfdd/yunzai-js/refs/heads/main/json/"

var (
	presetRefreshPattern = regexp.MustCompile(`^#?(刷新|更新|初始化)预设面板$`)
	presetSkipPattern    = regexp.MustCompile(`添加|删除|表情`)
	presetStripPattern   = regexp.MustCompile(`#(星铁)?`)
	presetPanelPattern   = regexp.MustCompile(`面板|圣遗物|伤害|武器`)
	presetUIDPattern     = regexp.MustCompile(`\d+`)
)

// presetKeywords are rewritten to reserved preset-panel UIDs; the keyword's
// index selects the UID suffix.
var presetKeywords = []string{"极限", "核爆"}

var presetKeywordPattern = regexp.MustCompile(strings.Join(presetKeywords, "|"))

type presetFileSource struct {
	game      string
	source    string
	target    string
	downloads []string
}

// PresetService keeps the preset panel data files in place and rewrites
// preset keywords in inbound messages to panel-query commands.
type PresetService struct {
	dataDir string
	client  *http.Client
	logger  *logrus.Logger
}

func NewPresetService(dataDir string, logger *logrus.Logger) *PresetService {
	return &PresetService{
		dataDir: dataDir,
		client: &http.Client{
			Timeout: time.Duration(constants.DefaultHTTPTimeoutSec) * time.Second,
		},
		logger: logger,
	}
}

func (s *PresetService) Routes() []Route {
	return []Route{
		{
			Name:      "preset-refresh",
			Pattern:   presetRefreshPattern,
			AdminOnly: true,
			Handler:   s.refresh,
		},
	}
}

// Rewriter returns the pre-routing keyword rewriter.
func (s *PresetService) Rewriter() Rewriter {
	return s.rewrite
}

func (s *PresetService) fileSources() []presetFileSource {
	return []presetFileSource{
		{
			game:      "gs",
			source:    filepath.Join(s.dataDir, "resources", "presetPanelData", "gs"),
			target:    filepath.Join(s.dataDir, "data", "PlayerData", "gs"),
			downloads: []string{"100000000.json", "100000001.json"},
		},
		{
			game:      "sr",
			source:    filepath.Join(s.dataDir, "resources", "presetPanelData", "sr"),
			target:    filepath.Join(s.dataDir, "data", "PlayerData", "sr"),
			downloads: []string{"100000000.json"},
		},
	}
}

// Setup downloads missing preset source files and copies them into the
// player-data directories. Individual download failures are logged and do
// not abort the remaining work.
func (s *PresetService) Setup(ctx context.Context) error {
	for _, src := range s.fileSources() {
		if _, err := os.Stat(src.source); os.IsNotExist(err) {
			s.logger.WithField("dir", src.source).Info("Preset source directory missing, downloading")
			if err := os.MkdirAll(src.source, 0750); err != nil {
				return fmt.Errorf("failed to create preset source dir: %w", err)
			}

			for _, file := range src.downloads {
				url := presetDownloadBaseURL + src.game + "/" + file
				if err := s.downloadFile(ctx, url, filepath.Join(src.source, file)); err != nil {
					s.logger.WithError(err).WithField("file", file).Error("Failed to download preset file")
				} else {
					s.logger.WithField("file", file).Info("Preset file downloaded")
				}
			}
		}

		if err := os.MkdirAll(src.target, 0750); err != nil {
			return fmt.Errorf("failed to create preset target dir: %w", err)
		}

		if _, err := os.Stat(src.source); os.IsNotExist(err) {
			s.logger.WithField("dir", src.source).Warn("Preset source directory still missing, skipping copy")
			continue
		}

		copied, err := s.copyJSONFiles(src.source, src.target)
		if err != nil {
			return err
		}
		if copied == 0 {
			s.logger.WithField("dir", src.source).Warn("No preset files to copy")
			continue
		}
		s.logger.WithFields(logrus.Fields{"game": src.game, "files": copied}).Info("Preset data copied")
	}
	return nil
}

func (s *PresetService) downloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	return os.WriteFile(dest, content, 0640)
}

func (s *PresetService) copyJSONFiles(source, target string) (int, error) {
	entries, err := os.ReadDir(source)
	if err != nil {
		return 0, fmt.Errorf("failed to read preset source dir: %w", err)
	}

	copied := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(source, entry.Name()))
		if err != nil {
			return copied, fmt.Errorf("failed to read preset file: %w", err)
		}
		if err := os.WriteFile(filepath.Join(target, entry.Name()), content, 0640); err != nil {
			return copied, fmt.Errorf("failed to copy preset file: %w", err)
		}
		copied++
	}
	return copied, nil
}

func (s *PresetService) refresh(ctx context.Context, pc *Context, _ []string) error {
	if err := s.Setup(ctx); err != nil {
		s.logger.WithError(err).Error("Preset data refresh failed")
		return pc.Reply(ctx, types.Message{types.Text("预设面板数据刷新失败，请检查后台日志。")})
	}
	return pc.Reply(ctx, types.Message{types.Text("预设面板数据刷新成功！")})
}

// rewrite replaces preset keywords in the message text with their reserved
// UIDs and normalizes the first part into a panel-query command. Messages
// that are not preset queries pass through untouched.
func (s *PresetService) rewrite(pc *Context) {
	text := pc.Text
	if !presetKeywordPattern.MatchString(text) || presetSkipPattern.MatchString(text) {
		return
	}

	parts := []string{text}
	if strings.Contains(text, "换") {
		parts = strings.Split(text, "换")
	}

	for _, keyword := range presetKeywords {
		if parts[0] == keyword {
			return
		}
	}

	result := make([]string, len(parts))
	for i, part := range parts {
		result[i] = part
		for idx, keyword := range presetKeywords {
			if strings.Contains(part, keyword) {
				result[i] = strings.Replace(part, keyword, fmt.Sprintf("10000000%d", idx), 1)
				break
			}
		}
	}

	if presetKeywordPattern.MatchString(parts[0]) {
		msg := presetStripPattern.ReplaceAllString(result[0], "")
		uid := presetUIDPattern.FindString(msg)
		name := strings.Replace(msg, uid, "", 1)

		suffix := "面板"
		if presetPanelPattern.MatchString(msg) {
			suffix = ""
		}
		result[0] = "#" + name + suffix + uid
	}

	if len(parts) > 1 {
		pc.Text = strings.Join(result, "换")
	} else {
		pc.Text = result[0]
	}
}
