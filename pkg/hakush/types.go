package hakush

import (
	"fmt"
	"time"
)

// scheduleTimeLayout is the timestamp format of the schedule API.
const scheduleTimeLayout = "2006-01-02 15:04:05"

// ParseScheduleTime parses a schedule timestamp, accepting both the API's
// native layout and RFC3339.
func ParseScheduleTime(s string) (time.Time, error) {
	if t, err := time.Parse(scheduleTimeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized schedule time %q", s)
}

// GIPeriod is one Spiral Abyss schedule window.
type GIPeriod struct {
	LiveBegin string `json:"live_begin"`
	LiveEnd   string `json:"live_end"`
}

// GIMonster is one enemy entry in an abyss room.
type GIMonster struct {
	Name string  `json:"Name"`
	Hp   float64 `json:"Hp"`
	Icon string  `json:"Icon"`
}

// GIRoom is one room of an abyss floor. Cond holds (stars, seconds) pairs.
type GIRoom struct {
	Cond   [][]int     `json:"Cond"`
	Level  int         `json:"Level"`
	First  []GIMonster `json:"First"`
	Second []GIMonster `json:"Second"`
}

// GIFloor is one abyss floor with its rooms and floor-wide buffs.
type GIFloor struct {
	Room map[string]GIRoom `json:"Room"`
	Buff []string          `json:"Buff"`
}

// GILeyline is the abyss blessing of the period.
type GILeyline struct {
	Name string `json:"Name"`
	Desc string `json:"Desc"`
	Icon string `json:"Icon"`
}

// GITowerDetail is the full detail payload for one abyss period.
type GITowerDetail struct {
	Leyline GILeyline          `json:"Leyline"`
	Floor   map[string]GIFloor `json:"Floor"`
}

// WavesPeriod is one Tower of Adversity schedule window.
type WavesPeriod struct {
	Begin string `json:"begin"`
	End   string `json:"end"`
}

// WavesTryChar carries the trial-character base life used for HP scaling.
type WavesTryChar struct {
	Life float64 `json:"Life"`
}

// WavesTryGrowth carries the growth ratios applied to trial-character stats.
type WavesTryGrowth struct {
	LifeMaxRatio float64 `json:"LifeMaxRatio"`
}

// WavesMonster is one enemy entry on a tower floor.
type WavesMonster struct {
	Icon      string                  `json:"Icon"`
	Try       map[string]WavesTryChar `json:"Try"`
	TryGrowth *WavesTryGrowth         `json:"TryGrowth"`
}

// WavesBuff is one floor buff with a color-tagged description.
type WavesBuff struct {
	Desc string `json:"Desc"`
}

// WavesFloor is one floor of a tower area.
type WavesFloor struct {
	AreaName         string                  `json:"AreaName"`
	Monsters         map[string]WavesMonster `json:"Monsters"`
	Buffs            map[string]WavesBuff    `json:"Buffs"`
	RecommendElement []int                   `json:"RecommendElement"`
}

// WavesArea is one tower area keyed by floor number.
type WavesArea struct {
	Floor map[string]WavesFloor `json:"Floor"`
}

// WavesTowerDetail is the full detail payload for one tower period.
type WavesTowerDetail struct {
	Begin string                `json:"Begin"`
	End   string                `json:"End"`
	Area  map[string]WavesArea  `json:"Area"`
}
