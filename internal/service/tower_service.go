package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kvcfdd/yunzai-go/pkg/hakush"
	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"
	"github.com/kvcfdd/yunzai-go/pkg/renderer"

	"github.com/sirupsen/logrus"
)

const (
	giTowerTemplate    = "tower.html"
	giTowerTemplateURL = "https://raw.xn--6rtu33f.top/kvcfdd/yunzai-js/refs/heads/main/html/tower.html"
)

var giTowerPattern = regexp.MustCompile(`^#?(\d{4})(\d{2})\s*(深渊|深境螺旋)$`)

type giRenderMonster struct {
	Name string `json:"name"`
	HP   string `json:"hp"`
	Icon string `json:"icon"`
}

type giRenderRoom struct {
	Header     string            `json:"header"`
	FirstHalf  []giRenderMonster `json:"firstHalf"`
	SecondHalf []giRenderMonster `json:"secondHalf"`
}

type giRenderLeyline struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
	Icon string `json:"icon"`
}

type giRenderData struct {
	QueryDateStr string          `json:"queryDateStr"`
	Begin        string          `json:"begin"`
	End          string          `json:"end"`
	Leyline      giRenderLeyline `json:"leyline"`
	Buff         string          `json:"buff"`
	Rooms        []giRenderRoom  `json:"rooms"`
}

// TowerService answers monthly Spiral Abyss queries with a rendered image.
type TowerService struct {
	schedule hakush.Client
	renderer renderer.Client
	logger   *logrus.Logger
}

func NewTowerService(schedule hakush.Client, rd renderer.Client, logger *logrus.Logger) *TowerService {
	return &TowerService{schedule: schedule, renderer: rd, logger: logger}
}

// Setup makes sure the render template is on disk. A download failure is
// logged but not fatal; queries report the missing template to the user.
func (s *TowerService) Setup(ctx context.Context) {
	if err := s.renderer.EnsureTemplate(ctx, giTowerTemplate, giTowerTemplateURL); err != nil {
		s.logger.WithError(err).Error("Failed to prepare abyss template")
	}
}

func (s *TowerService) Routes() []Route {
	return []Route{
		{
			Name:    "gi-tower-query",
			Pattern: giTowerPattern,
			Handler: s.query,
		},
	}
}

func (s *TowerService) query(ctx context.Context, pc *Context, match []string) error {
	year, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	if month < 1 || month > 12 {
		return pc.Reply(ctx, types.Message{types.Text("请输入有效的月份（01-12）。")})
	}

	dateStr := fmt.Sprintf("%d年%d月", year, month)
	if err := pc.Reply(ctx, types.Message{types.Text("正在查询，请稍候...")}); err != nil {
		return err
	}

	key, period, err := s.findPeriod(ctx, year, month)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch abyss schedule")
		return pc.Reply(ctx, types.Message{types.Text("查询深渊信息时发生错误，请查看控制台日志。")})
	}
	if key == "" {
		return pc.Reply(ctx, types.Message{types.Text(fmt.Sprintf("暂无【%s】开始的深渊数据。", dateStr))})
	}

	detail, err := s.schedule.GetGITowerDetail(ctx, key)
	if err != nil {
		s.logger.WithError(err).WithField("period", key).Error("Failed to fetch abyss detail")
		return pc.Reply(ctx, types.Message{types.Text(fmt.Sprintf("获取【%s】的深渊详情失败。", dateStr))})
	}

	data := s.prepareRenderData(detail, dateStr, period)
	img, err := s.renderer.Render(ctx, giTowerTemplate, data)
	if err != nil {
		s.logger.WithError(err).Error("Abyss render failed")
		return pc.Reply(ctx, types.Message{types.Text("深渊图片渲染失败，请检查后台日志。")})
	}

	if err := pc.Reply(ctx, types.Message{types.ImageBytes(img)}); err != nil {
		return err
	}
	s.logger.WithField("date", dateStr).Info("Abyss image sent")
	return nil
}

// findPeriod picks the schedule entry whose window begins in the requested
// month; when several begin in the same month the earliest wins.
func (s *TowerService) findPeriod(ctx context.Context, year, month int) (string, hakush.GIPeriod, error) {
	schedule, err := s.schedule.GetGITowerSchedule(ctx)
	if err != nil {
		return "", hakush.GIPeriod{}, err
	}

	type match struct {
		key    string
		period hakush.GIPeriod
	}
	var matches []match
	for key, period := range schedule {
		begin, err := hakush.ParseScheduleTime(period.LiveBegin)
		if err != nil {
			s.logger.WithError(err).WithField("period", key).Warn("Skipping schedule entry with bad timestamp")
			continue
		}
		if begin.Year() == year && int(begin.Month()) == month {
			matches = append(matches, match{key: key, period: period})
		}
	}
	if len(matches) == 0 {
		return "", hakush.GIPeriod{}, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].period.LiveBegin < matches[j].period.LiveBegin
	})
	return matches[0].key, matches[0].period, nil
}

func (s *TowerService) prepareRenderData(detail *hakush.GITowerDetail, dateStr string, period hakush.GIPeriod) giRenderData {
	base := s.schedule.BaseURL()

	leyline := giRenderLeyline{
		Name: detail.Leyline.Name,
		Desc: strings.ReplaceAll(
			strings.ReplaceAll(detail.Leyline.Desc, "<color=#F39000>", `<span class="highlight">`),
			"</color>", "</span>"),
		Icon: fmt.Sprintf("%s/gi/UI/%s.webp", base, detail.Leyline.Icon),
	}

	data := giRenderData{
		QueryDateStr: dateStr,
		Begin:        period.LiveBegin,
		End:          period.LiveEnd,
		Leyline:      leyline,
	}

	floor12, ok := detail.Floor["12"]
	if !ok {
		return data
	}

	roomNums := make([]string, 0, len(floor12.Room))
	for num := range floor12.Room {
		roomNums = append(roomNums, num)
	}
	sort.Slice(roomNums, func(i, j int) bool {
		a, _ := strconv.Atoi(roomNums[i])
		b, _ := strconv.Atoi(roomNums[j])
		return a < b
	})

	for _, num := range roomNums {
		room := floor12.Room[num]
		data.Rooms = append(data.Rooms, giRenderRoom{
			Header:     roomHeader(num, room),
			FirstHalf:  s.renderMonsters(room.First),
			SecondHalf: s.renderMonsters(room.Second),
		})
	}
	data.Buff = strings.Join(floor12.Buff, "<br>")
	return data
}

// roomHeader formats "12-<room> <3★>s/<2★>s/<1★>s Lv.<level>" from the
// star-time conditions, which the API lists from one star upward.
func roomHeader(num string, room hakush.GIRoom) string {
	seconds := make([]int, 0, len(room.Cond))
	for _, cond := range room.Cond {
		if len(cond) > 1 {
			seconds = append(seconds, cond[1])
		}
	}
	for i, j := 0, len(seconds)-1; i < j; i, j = i+1, j-1 {
		seconds[i], seconds[j] = seconds[j], seconds[i]
	}
	return fmt.Sprintf("12-%s %ds/%ds/%ds Lv.%d",
		num, condSecond(seconds, 2), condSecond(seconds, 1), condSecond(seconds, 0), room.Level)
}

func condSecond(seconds []int, i int) int {
	if i < len(seconds) {
		return seconds[i]
	}
	return 0
}

func (s *TowerService) renderMonsters(monsters []hakush.GIMonster) []giRenderMonster {
	out := make([]giRenderMonster, 0, len(monsters))
	for _, m := range monsters {
		out = append(out, giRenderMonster{
			Name: m.Name,
			HP:   fmt.Sprintf("HP: %d", int64(math.Round(m.Hp))),
			Icon: fmt.Sprintf("%s/gi/UI/%s.webp", s.schedule.BaseURL(), m.Icon),
		})
	}
	return out
}
