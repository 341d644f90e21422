package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"

	"github.com/sirupsen/logrus"
)

var (
	aliasAddPattern    = regexp.MustCompile(`^ww添加(.*)别名(.*)$`)
	aliasRemovePattern = regexp.MustCompile(`^ww移除(.*)别名(.*)$`)
)

// AliasService edits the character alias file through chat commands. The file
// maps a main character name to the list of its aliases; the main name is
// always kept as a member of its own list.
type AliasService struct {
	filePath string
	logger   *logrus.Logger

	// mu serializes read-modify-write cycles against the alias file.
	mu sync.Mutex
}

func NewAliasService(filePath string, logger *logrus.Logger) *AliasService {
	return &AliasService{
		filePath: filePath,
		logger:   logger,
	}
}

func (s *AliasService) Routes() []Route {
	return []Route{
		{
			Name:      "alias-add",
			Pattern:   aliasAddPattern,
			AdminOnly: true,
			Handler:   s.add,
		},
		{
			Name:      "alias-remove",
			Pattern:   aliasRemovePattern,
			AdminOnly: true,
			Handler:   s.remove,
		},
	}
}

// load reads the alias file, coercing any non-list values to single-element
// lists. A missing file yields guidance instead of an empty map so a typo in
// the configured path is noticed.
func (s *AliasService) load(ctx context.Context, pc *Context) (map[string][]string, bool) {
	if s.filePath == "" {
		s.replyText(ctx, pc, "错误：插件未配置别名文件路径，请联系机器人管理员检查插件设置。")
		return nil, false
	}

	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		s.logger.WithField("path", s.filePath).Warn("Alias file does not exist")
		dir := filepath.Dir(s.filePath)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if mkErr := os.MkdirAll(dir, 0750); mkErr != nil {
				s.logger.WithError(mkErr).WithField("dir", dir).Error("Failed to create alias directory")
				s.replyText(ctx, pc, fmt.Sprintf("创建目录 %s 失败，请检查权限或手动创建。文件 %s 也需要手动创建。", dir, filepath.Base(s.filePath)))
				return nil, false
			}
			s.replyText(ctx, pc, fmt.Sprintf("错误：指定的别名文件不存在，但已尝试创建其所在目录。\n请在 %s 下手动创建空的JSON文件 '{}' 并命名为 %s。", dir, filepath.Base(s.filePath)))
			return nil, false
		}
		s.replyText(ctx, pc, fmt.Sprintf("错误：指定的别名文件 %s 不存在。\n请检查路径或手动创建该文件 (初始内容可为 '{}')。", s.filePath))
		return nil, false
	}

	content, err := os.ReadFile(s.filePath)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read alias file")
		s.replyText(ctx, pc, fmt.Sprintf("读取或解析别名文件失败，请检查文件格式或查看控制台日志。\n错误: %v", err))
		return nil, false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		s.logger.WithError(err).Error("Failed to parse alias file")
		s.replyText(ctx, pc, fmt.Sprintf("读取或解析别名文件失败，请检查文件格式或查看控制台日志。\n错误: %v", err))
		return nil, false
	}

	aliases := make(map[string][]string, len(raw))
	for key, value := range raw {
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			aliases[key] = list
			continue
		}
		// Coerce scalar values into a single-element list
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			s.logger.WithField("name", key).Warn("Alias entry is not a list, coercing")
			aliases[key] = []string{single}
			continue
		}
		aliases[key] = []string{strings.Trim(string(value), `"`)}
	}

	return aliases, true
}

func (s *AliasService) save(ctx context.Context, pc *Context, aliases map[string][]string, successMsg string) {
	content, err := json.MarshalIndent(aliases, "", "  ")
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode alias file")
		s.replyText(ctx, pc, fmt.Sprintf("保存别名文件失败，请查看控制台日志。\n错误: %v", err))
		return
	}

	if err := os.WriteFile(s.filePath, content, 0640); err != nil {
		s.logger.WithError(err).Error("Failed to write alias file")
		s.replyText(ctx, pc, fmt.Sprintf("保存别名文件失败，请查看控制台日志。\n错误: %v", err))
		return
	}

	s.logger.WithField("path", s.filePath).Info("Alias file updated")
	s.replyText(ctx, pc, successMsg)
}

// findMainName resolves an input that may be either a main name or any
// existing alias.
func findMainName(aliases map[string][]string, input string) string {
	for mainName, list := range aliases {
		if mainName == input {
			return mainName
		}
		for _, alias := range list {
			if alias == input {
				return mainName
			}
		}
	}
	return ""
}

func (s *AliasService) add(ctx context.Context, pc *Context, match []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := strings.TrimSpace(match[1])
	newAlias := strings.TrimSpace(match[2])

	if target == "" {
		s.replyText(ctx, pc, "请输入要添加别名的角色或现有别名。\n用法：ww添加[角色名/旧别名]别名[新别名]")
		return nil
	}
	if newAlias == "" {
		s.replyText(ctx, pc, "请输入要添加的新别名。\n用法：ww添加[角色名/旧别名]别名[新别名]")
		return nil
	}

	aliases, ok := s.load(ctx, pc)
	if !ok {
		return nil
	}

	mainName := findMainName(aliases, target)
	if mainName == "" {
		if target == newAlias {
			s.replyText(ctx, pc, fmt.Sprintf("不能将角色名 “%s” 添加为其自身的唯一新别名。如果想创建新角色条目，请确保新别名与角色主名不同，或手动编辑JSON。", target))
			return nil
		}
		s.logger.WithFields(logrus.Fields{"name": target, "alias": newAlias}).Info("Creating new alias entry")
		aliases[target] = []string{target, newAlias}
		s.save(ctx, pc, aliases, fmt.Sprintf("已为新角色 “%s” 创建条目并添加别名：“%s”。", target, newAlias))
		return nil
	}

	for _, alias := range aliases[mainName] {
		if alias == newAlias {
			s.replyText(ctx, pc, fmt.Sprintf("“%s”已经是角色“%s”的别名了。", newAlias, mainName))
			return nil
		}
	}

	aliases[mainName] = append(aliases[mainName], newAlias)
	s.save(ctx, pc, aliases, fmt.Sprintf("成功为角色“%s”添加别名：“%s”。", mainName, newAlias))
	return nil
}

func (s *AliasService) remove(ctx context.Context, pc *Context, match []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := strings.TrimSpace(match[1])
	aliasToDelete := strings.TrimSpace(match[2])

	if target == "" {
		s.replyText(ctx, pc, "请输入要移除其别名的角色或现有别名。\n用法：ww移除[角色名/旧别名]别名[要移除的别名]")
		return nil
	}
	if aliasToDelete == "" {
		s.replyText(ctx, pc, "请输入要移除的别名。\n用法：ww移除[角色名/旧别名]别名[要移除的别名]")
		return nil
	}

	aliases, ok := s.load(ctx, pc)
	if !ok {
		return nil
	}

	mainName := findMainName(aliases, target)
	if mainName == "" {
		s.replyText(ctx, pc, fmt.Sprintf("未在别名文件中找到角色或别名：“%s”。无法移除其别名。", target))
		return nil
	}

	hasAlias := false
	for _, alias := range aliases[mainName] {
		if alias == aliasToDelete {
			hasAlias = true
			break
		}
	}
	if !hasAlias {
		s.replyText(ctx, pc, fmt.Sprintf("角色“%s”没有名为“%s”的别名。", mainName, aliasToDelete))
		return nil
	}

	if aliasToDelete == mainName {
		s.replyText(ctx, pc, fmt.Sprintf("操作被阻止：不能移除与角色主要名称 (“%s”) 相同的别名。\n这个别名是该角色的核心标识，应始终保留在别名列表中。\n如果您想移除整个角色条目，请手动编辑JSON文件。", mainName))
		return nil
	}

	filtered := aliases[mainName][:0]
	for _, alias := range aliases[mainName] {
		if alias != aliasToDelete {
			filtered = append(filtered, alias)
		}
	}
	aliases[mainName] = filtered

	if len(aliases[mainName]) == 0 {
		// Never leave an entry without its main name
		s.logger.WithField("name", mainName).Warn("Alias list emptied, restoring main name")
		aliases[mainName] = append(aliases[mainName], mainName)
		s.save(ctx, pc, aliases, fmt.Sprintf("成功从角色“%s”的别名中移除了“%s”。\n注意：别名列表因此变空，已自动将主要名称 “%s” 添加回别名列表。", mainName, aliasToDelete, mainName))
		return nil
	}

	s.save(ctx, pc, aliases, fmt.Sprintf("成功从角色“%s”的别名中移除了“%s”。", mainName, aliasToDelete))
	return nil
}

func (s *AliasService) replyText(ctx context.Context, pc *Context, text string) {
	if err := pc.Reply(ctx, types.Message{types.Text(text)}); err != nil {
		s.logger.WithError(err).Warn("Failed to send alias reply")
	}
}
