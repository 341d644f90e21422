package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kvcfdd/yunzai-go/pkg/hakush"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dispatchWaves(t *testing.T, svc *WavesService, pc *Context, text string) bool {
	t.Helper()
	router := NewRouter()
	router.Register(svc.Routes()...)
	pc.Text = text
	matched, err := router.Dispatch(context.Background(), pc)
	require.NoError(t, err)
	return matched
}

func wavesDetailFixture() *hakush.WavesTowerDetail {
	return &hakush.WavesTowerDetail{
		Begin: "2025-09-04 04:00:00",
		End:   "2025-10-02 04:00:00",
		Area: map[string]hakush.WavesArea{
			"2": {
				Floor: map[string]hakush.WavesFloor{
					"1": {
						AreaName: "深境之塔",
						Monsters: map[string]hakush.WavesMonster{
							"1": {
								Icon: "/Game/Aki/UI/UIResources/Common/Image/IconMonster/T_IconMonster_995.T_IconMonster_995",
								Try: map[string]hakush.WavesTryChar{
									"1": {Life: 1000},
									"2": {Life: 3000},
								},
								TryGrowth: &hakush.WavesTryGrowth{LifeMaxRatio: 25000},
							},
						},
						Buffs: map[string]hakush.WavesBuff{
							"1": {Desc: "<color=热熔>热熔伤害</color>加深"},
						},
						RecommendElement: []int{2, 3},
					},
				},
			},
			"1": {
				Floor: map[string]hakush.WavesFloor{
					"1": {
						AreaName:         "残响之塔",
						RecommendElement: []int{6},
					},
				},
			},
		},
	}
}

func TestWavesQuery_RendersAllPeriodsOfMonth(t *testing.T) {
	schedule := &mockScheduleClient{}
	render := &mockRenderClient{}
	svc := NewWavesService(schedule, render, testLogger())

	schedule.On("GetWavesTowerSchedule", mock.Anything).Return(map[string]hakush.WavesPeriod{
		"1000": {Begin: "2025-09-04 04:00:00", End: "2025-09-18 04:00:00"},
		"1001": {Begin: "2025-09-18 04:00:00", End: "2025-10-02 04:00:00"},
		"999":  {Begin: "2025-08-21 04:00:00", End: "2025-09-04 04:00:00"},
	}, nil)
	schedule.On("GetWavesTowerDetail", mock.Anything, "1000").Return(wavesDetailFixture(), nil)
	schedule.On("GetWavesTowerDetail", mock.Anything, "1001").Return(wavesDetailFixture(), nil)

	var rendered wavesRenderData
	render.On("Render", mock.Anything, "tower1.html", mock.Anything).
		Run(func(args mock.Arguments) {
			rendered = args.Get(2).(wavesRenderData)
		}).
		Return([]byte("png-bytes"), nil)

	recorder := &replyRecorder{}
	pc := newTestContext(newFakeStore(), &mockBotClient{}, recorder)

	require.True(t, dispatchWaves(t, svc, pc, "/202509深塔"))

	require.Len(t, rendered.Schedules, 2)
	assert.True(t, rendered.ShowPeriodHeader)
	assert.Equal(t, "2025-09-04 04:00:00", rendered.Begin)

	replies := recorder.all()
	require.Len(t, replies, 2)
	assert.Equal(t, "image", replies[1][0].Type)

	schedule.AssertExpectations(t)
}

func TestWavesQuery_NoData(t *testing.T) {
	schedule := &mockScheduleClient{}
	svc := NewWavesService(schedule, &mockRenderClient{}, testLogger())

	schedule.On("GetWavesTowerSchedule", mock.Anything).Return(map[string]hakush.WavesPeriod{}, nil)

	recorder := &replyRecorder{}
	pc := newTestContext(newFakeStore(), &mockBotClient{}, recorder)

	require.True(t, dispatchWaves(t, svc, pc, "/202509深塔"))
	assert.Equal(t, "暂无【2025年9月】深塔数据。", recorder.replyText(1))
}

func TestWavesQuery_DetailFailureAborts(t *testing.T) {
	schedule := &mockScheduleClient{}
	svc := NewWavesService(schedule, &mockRenderClient{}, testLogger())

	schedule.On("GetWavesTowerSchedule", mock.Anything).Return(map[string]hakush.WavesPeriod{
		"1000": {Begin: "2025-09-04 04:00:00", End: "2025-09-18 04:00:00"},
	}, nil)
	schedule.On("GetWavesTowerDetail", mock.Anything, "1000").Return(nil, errors.New("not found"))

	recorder := &replyRecorder{}
	pc := newTestContext(newFakeStore(), &mockBotClient{}, recorder)

	require.True(t, dispatchWaves(t, svc, pc, "/202509逆境深塔"))
	assert.Equal(t, "查询深塔信息时发生错误，请查看控制台日志。", recorder.replyText(1))
}

func TestWavesRenderAreas_OrderAndStyle(t *testing.T) {
	svc := NewWavesService(&mockScheduleClient{}, &mockRenderClient{}, testLogger())

	areas := svc.renderAreas(wavesDetailFixture())
	require.Len(t, areas, 2)

	// Fixed display order regardless of map iteration
	assert.Equal(t, "残响之塔", areas[0].Name)
	assert.Equal(t, "深境之塔", areas[1].Name)

	// Single element: solid border in that element's color
	assert.Equal(t, "border-top: 4px solid #e649a6;", areas[0].HeaderStyle)

	// Two elements: gradient between their colors
	assert.Contains(t, areas[1].HeaderStyle, "linear-gradient(to right, #f0744e, #41aefb)")
}

func TestWavesRenderFloor_MonstersAndBuffs(t *testing.T) {
	svc := NewWavesService(&mockScheduleClient{}, &mockRenderClient{}, testLogger())

	floor := wavesDetailFixture().Area["2"].Floor["1"]
	rendered := svc.renderFloor(floor)

	require.Len(t, rendered.MonsterIcons, 1)
	// 3000 base life scaled by 25000/10000
	assert.Equal(t, "HP: 7500", rendered.MonsterIcons[0].HP)
	assert.Equal(t,
		"https://api.hakush.in/ww/UI/UIResources/Common/Image/IconMonsterHead/T_IconMonster_995.webp",
		rendered.MonsterIcons[0].IconURL)

	require.Len(t, rendered.Buffs, 1)
	assert.Equal(t, `<span style="color: #f0744e">热熔伤害</span>加深`, rendered.Buffs[0])

	require.Len(t, rendered.RecommendElements, 2)
	assert.Equal(t, "热熔", rendered.RecommendElements[0].Name)
	assert.Equal(t, "冷凝", rendered.RecommendElements[1].Name)
}

func TestWavesMonsterHP_NoTrialData(t *testing.T) {
	assert.Empty(t, monsterHP(hakush.WavesMonster{Icon: "x"}))
	assert.Empty(t, monsterHP(hakush.WavesMonster{
		Try: map[string]hakush.WavesTryChar{"1": {Life: 100}},
	}))
}

func TestWavesRenderBuffDesc_CaseInsensitiveTags(t *testing.T) {
	assert.Equal(t,
		`<span style="color: #b45bff">导电</span>`,
		renderBuffDesc("<color=导电>导电</color>"))
	assert.Equal(t,
		`<span style="color: #41aefb">Ice</span>`,
		renderBuffDesc("<color=ice>Ice</color>"))
}

func TestWavesTowerPattern(t *testing.T) {
	assert.True(t, wavesTowerPattern.MatchString("/202509深塔"))
	assert.True(t, wavesTowerPattern.MatchString("/202509 深渊"))
	assert.True(t, wavesTowerPattern.MatchString("/202509逆境深塔"))
	assert.False(t, wavesTowerPattern.MatchString("#202509深塔"))
	assert.False(t, wavesTowerPattern.MatchString("/20259深塔"))
}
