package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kvcfdd/yunzai-go/pkg/hakush"
	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"
	"github.com/kvcfdd/yunzai-go/pkg/renderer"

	"github.com/sirupsen/logrus"
)

const (
	wavesTowerTemplate    = "tower1.html"
	wavesTowerTemplateURL = "https://raw.githubusercontent.com/kvcfdd/yunzai-js/refs/heads/main/html/tower1.html"
)

var wavesTowerPattern = regexp.MustCompile(`^/(\d{4})(\d{2})\s*(深塔|深渊|逆境深塔)$`)

// wavesColorMap maps the API's element color tags to render colors.
var wavesColorMap = map[string]string{
	"导电": "#b45bff", "electro": "#b45bff", "Thunder": "#b45bff",
	"热熔": "#f0744e", "pyro": "#f0744e", "Fire": "#f0744e", "Highlight": "#f0744e",
	"冷凝": "#41aefb", "cryo": "#41aefb", "Ice": "#41aefb",
	"气动": "#53f9b1", "anemo": "#53f9b1", "Wind": "#53f9b1",
	"衍射": "#f7e62f", "geo": "#f7e62f", "Light": "#f7e62f",
	"湮灭": "#e649a6", "havoc": "#e649a6", "Dark": "#e649a6",
}

type wavesElement struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

var wavesElements = map[int]wavesElement{
	1: {ID: 1, Name: "导电", Icon: wavesElementIcon("Thunder"), Color: wavesColorMap["导电"]},
	2: {ID: 2, Name: "热熔", Icon: wavesElementIcon("Fire"), Color: wavesColorMap["热熔"]},
	3: {ID: 3, Name: "冷凝", Icon: wavesElementIcon("Ice"), Color: wavesColorMap["冷凝"]},
	4: {ID: 4, Name: "气动", Icon: wavesElementIcon("Wind"), Color: wavesColorMap["气动"]},
	5: {ID: 5, Name: "衍射", Icon: wavesElementIcon("Light"), Color: wavesColorMap["衍射"]},
	6: {ID: 6, Name: "湮灭", Icon: wavesElementIcon("Dark"), Color: wavesColorMap["湮灭"]},
}

func wavesElementIcon(name string) string {
	return fmt.Sprintf("%s/ww/UI/UIResources/Common/Image/IconElementAttri/T_IconElementAttri%s.webp",
		hakush.DefaultBaseURL, name)
}

// wavesAreaOrder fixes the display order of the three tower areas.
var wavesAreaOrder = map[string]int{"残响之塔": 1, "深境之塔": 2, "回音之塔": 3}

type wavesRenderMonster struct {
	HP      string `json:"hp"`
	IconURL string `json:"iconUrl"`
}

type wavesRenderFloor struct {
	MonsterIcons      []wavesRenderMonster `json:"monsterIcons"`
	Buffs             []string             `json:"buffs"`
	RecommendElements []wavesElement       `json:"recommendElements"`
}

type wavesRenderArea struct {
	Name        string             `json:"name"`
	Floors      []wavesRenderFloor `json:"floors"`
	HeaderStyle string             `json:"headerStyle"`
}

type wavesRenderSchedule struct {
	Begin string            `json:"begin"`
	End   string            `json:"end"`
	Areas []wavesRenderArea `json:"areas"`
}

type wavesRenderData struct {
	QueryDateStr     string                `json:"queryDateStr"`
	Schedules        []wavesRenderSchedule `json:"schedules"`
	ShowPeriodHeader bool                  `json:"showPeriodHeader"`
	Begin            string                `json:"begin"`
	End              string                `json:"end"`
	Background       string                `json:"bg"`
}

// WavesService answers monthly Tower of Adversity queries with a rendered
// image covering every period that starts in the requested month.
type WavesService struct {
	schedule hakush.Client
	renderer renderer.Client
	logger   *logrus.Logger
}

func NewWavesService(schedule hakush.Client, rd renderer.Client, logger *logrus.Logger) *WavesService {
	return &WavesService{schedule: schedule, renderer: rd, logger: logger}
}

func (s *WavesService) Setup(ctx context.Context) {
	if err := s.renderer.EnsureTemplate(ctx, wavesTowerTemplate, wavesTowerTemplateURL); err != nil {
		s.logger.WithError(err).Error("Failed to prepare tower template")
	}
}

func (s *WavesService) Routes() []Route {
	return []Route{
		{
			Name:    "waves-tower-query",
			Pattern: wavesTowerPattern,
			Handler: s.query,
		},
	}
}

func (s *WavesService) query(ctx context.Context, pc *Context, match []string) error {
	year, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	if month < 1 || month > 12 {
		return pc.Reply(ctx, types.Message{types.Text("请输入有效的月份（01-12）。")})
	}

	dateStr := fmt.Sprintf("%d年%d月", year, month)
	if err := pc.Reply(ctx, types.Message{types.Text("正在查询，请稍候...")}); err != nil {
		return err
	}

	keys, err := s.findPeriods(ctx, year, month)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch tower schedule")
		return pc.Reply(ctx, types.Message{types.Text("查询深塔信息时发生错误，请查看控制台日志。")})
	}
	if len(keys) == 0 {
		return pc.Reply(ctx, types.Message{types.Text(fmt.Sprintf("暂无【%s】深塔数据。", dateStr))})
	}

	details, err := s.fetchDetails(ctx, keys)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch tower details")
		return pc.Reply(ctx, types.Message{types.Text("查询深塔信息时发生错误，请查看控制台日志。")})
	}

	data := s.prepareRenderData(details, dateStr)
	img, err := s.renderer.Render(ctx, wavesTowerTemplate, data)
	if err != nil {
		s.logger.WithError(err).Error("Tower render failed")
		return pc.Reply(ctx, types.Message{types.Text("深塔图片渲染失败，请检查后台日志。")})
	}

	return pc.Reply(ctx, types.Message{types.ImageBytes(img)})
}

// findPeriods returns every schedule key whose window begins in the
// requested month, ordered by begin time.
func (s *WavesService) findPeriods(ctx context.Context, year, month int) ([]string, error) {
	schedule, err := s.schedule.GetWavesTowerSchedule(ctx)
	if err != nil {
		return nil, err
	}

	type match struct {
		key   string
		begin string
	}
	var matches []match
	for key, period := range schedule {
		begin, err := hakush.ParseScheduleTime(period.Begin)
		if err != nil {
			s.logger.WithError(err).WithField("period", key).Warn("Skipping schedule entry with bad timestamp")
			continue
		}
		if begin.Year() == year && int(begin.Month()) == month {
			matches = append(matches, match{key: key, begin: period.Begin})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].begin < matches[j].begin
	})

	keys := make([]string, len(matches))
	for i, m := range matches {
		keys[i] = m.key
	}
	return keys, nil
}

// fetchDetails loads all period details concurrently; any single failure
// fails the whole query.
func (s *WavesService) fetchDetails(ctx context.Context, keys []string) ([]*hakush.WavesTowerDetail, error) {
	details := make([]*hakush.WavesTowerDetail, len(keys))
	errs := make([]error, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			details[i], errs[i] = s.schedule.GetWavesTowerDetail(ctx, key)
		}(i, key)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("period %s: %w", keys[i], err)
		}
	}
	return details, nil
}

func (s *WavesService) prepareRenderData(details []*hakush.WavesTowerDetail, dateStr string) wavesRenderData {
	schedules := make([]wavesRenderSchedule, 0, len(details))
	for _, detail := range details {
		schedules = append(schedules, wavesRenderSchedule{
			Begin: detail.Begin,
			End:   detail.End,
			Areas: s.renderAreas(detail),
		})
	}

	data := wavesRenderData{
		QueryDateStr:     dateStr,
		Schedules:        schedules,
		ShowPeriodHeader: len(schedules) > 1,
		Background:       fmt.Sprintf("%s/ww/bg/%d.webp", s.schedule.BaseURL(), rand.Intn(20)+1),
	}
	if len(schedules) > 0 {
		data.Begin = schedules[0].Begin
		data.End = schedules[len(schedules)-1].End
	}
	return data
}

func (s *WavesService) renderAreas(detail *hakush.WavesTowerDetail) []wavesRenderArea {
	areas := make([]wavesRenderArea, 0, len(detail.Area))
	for _, area := range detail.Area {
		floors := make([]wavesRenderFloor, 0, len(area.Floor))
		for _, num := range sortedNumericKeys(area.Floor) {
			floors = append(floors, s.renderFloor(area.Floor[num]))
		}

		name := "未知区域"
		if first, ok := area.Floor["1"]; ok && first.AreaName != "" {
			name = first.AreaName
		}

		areas = append(areas, wavesRenderArea{
			Name:        name,
			Floors:      floors,
			HeaderStyle: areaHeaderStyle(floors),
		})
	}

	sort.Slice(areas, func(i, j int) bool {
		return areaRank(areas[i].Name) < areaRank(areas[j].Name)
	})
	return areas
}

func (s *WavesService) renderFloor(floor hakush.WavesFloor) wavesRenderFloor {
	out := wavesRenderFloor{}

	for _, key := range sortedNumericKeys(floor.Monsters) {
		m := floor.Monsters[key]
		out.MonsterIcons = append(out.MonsterIcons, wavesRenderMonster{
			HP:      monsterHP(m),
			IconURL: monsterIconURL(s.schedule.BaseURL(), m.Icon),
		})
	}

	for _, key := range sortedNumericKeys(floor.Buffs) {
		out.Buffs = append(out.Buffs, renderBuffDesc(floor.Buffs[key].Desc))
	}

	for _, id := range floor.RecommendElement {
		if elem, ok := wavesElements[id]; ok {
			out.RecommendElements = append(out.RecommendElements, elem)
		}
	}
	return out
}

// monsterHP scales the strongest trial-character base life by the growth
// ratio; monsters without trial data show no HP line.
func monsterHP(m hakush.WavesMonster) string {
	if len(m.Try) == 0 || m.TryGrowth == nil {
		return ""
	}
	maxLife := 0.0
	for _, try := range m.Try {
		if try.Life > maxLife {
			maxLife = try.Life
		}
	}
	return fmt.Sprintf("HP: %d", int64(math.Round(maxLife*m.TryGrowth.LifeMaxRatio/10000)))
}

// monsterIconURL rebases the asset path onto the head-icon directory; the
// API payload points at full-body art.
func monsterIconURL(base, icon string) string {
	parts := strings.Split(icon, "/")
	fileName := parts[len(parts)-1]
	if dot := strings.Index(fileName, "."); dot >= 0 {
		fileName = fileName[:dot]
	}
	return fmt.Sprintf("%s/ww/UI/UIResources/Common/Image/IconMonsterHead/%s.webp", base, fileName)
}

// renderBuffDesc rewrites the API's color tags into styled spans.
func renderBuffDesc(desc string) string {
	for key, color := range wavesColorMap {
		tag := regexp.MustCompile(`(?i)<color=` + regexp.QuoteMeta(key) + `>`)
		desc = tag.ReplaceAllString(desc, fmt.Sprintf(`<span style="color: %s">`, color))
	}
	return strings.ReplaceAll(desc, "</color>", "</span>")
}

// areaHeaderStyle colors the area header after the first floor's recommended
// elements, blending two colors into a gradient when present.
func areaHeaderStyle(floors []wavesRenderFloor) string {
	if len(floors) == 0 {
		return ""
	}
	elems := floors[0].RecommendElements
	switch {
	case len(elems) >= 2:
		return fmt.Sprintf("border-width: 4px 0 0 0; border-style: solid; border-image: linear-gradient(to right, %s, %s) 1;",
			elems[0].Color, elems[1].Color)
	case len(elems) == 1:
		return fmt.Sprintf("border-top: 4px solid %s;", elems[0].Color)
	default:
		return ""
	}
}

func areaRank(name string) int {
	if rank, ok := wavesAreaOrder[name]; ok {
		return rank
	}
	return 99
}

func sortedNumericKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.Atoi(keys[i])
		b, berr := strconv.Atoi(keys[j])
		if aerr != nil || berr != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}
