// Package kline derives synthetic four-hour bars from daily bars. The
// Taiwan session (09:00-13:30) is split into a morning bar at 09:00 and
// a short afternoon bar at 13:00, with interpolated OHLC and a fixed
// volume split.
package kline

import (
	"math"
	"sort"
	"time"

	"tritrend/internal/markethours"
	"tritrend/internal/model"
)

// Interpolation weights: most of the day's move and volume lands in
// the four-hour morning segment.
const (
	morningMoveRatio   = 0.8
	morningVolumeRatio = 0.7
	morningWickRatio   = 0.1
	afternoonWickRatio = 0.05
)

// SplitDaily converts daily bars into four-hour bars, two per trading
// day, sorted ascending. Input order does not matter and the input is
// not mutated. Empty input yields nil.
func SplitDaily(daily []model.Bar) []model.Bar {
	if len(daily) == 0 {
		return nil
	}
	out := make([]model.Bar, 0, 2*len(daily))
	for _, d := range daily {
		m, a := splitOne(d)
		out = append(out, m, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].TS.Before(out[j].TS)
	})
	return out
}

func splitOne(d model.Bar) (morning, afternoon model.Bar) {
	day := d.TS.In(markethours.Taipei)
	move := d.Close - d.Open
	wick := math.Abs(move)

	morningClose := d.Open + move*morningMoveRatio

	morning = model.Bar{
		Symbol: d.Symbol,
		TS:     time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, markethours.Taipei),
		Open:   d.Open,
		High:   math.Max(d.Open, morningClose) + wick*morningWickRatio,
		Low:    math.Min(d.Open, morningClose) - wick*morningWickRatio,
		Close:  morningClose,
		Volume: math.Floor(d.Volume * morningVolumeRatio),
		Period: model.PeriodFourHour,
	}
	afternoon = model.Bar{
		Symbol: d.Symbol,
		TS:     time.Date(day.Year(), day.Month(), day.Day(), 13, 0, 0, 0, markethours.Taipei),
		Open:   morningClose,
		High:   math.Max(morningClose, d.Close) + wick*afternoonWickRatio,
		Low:    math.Min(morningClose, d.Close) - wick*afternoonWickRatio,
		Close:  d.Close,
		Volume: d.Volume - morning.Volume,
		Period: model.PeriodFourHour,
	}
	return morning, afternoon
}
