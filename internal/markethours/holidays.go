package markethours

import "time"

// TWSE market closures for 2026.
// Source: TWSE published trading calendar.
var twseHolidays2026 = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // New Year's Day
	{time.February, 13}, // Lunar New Year market close
	{time.February, 16}, // Lunar New Year
	{time.February, 17}, // Lunar New Year
	{time.February, 18}, // Lunar New Year
	{time.February, 19}, // Lunar New Year
	{time.February, 20}, // Lunar New Year
	{time.April, 3},     // Children's Day (observed)
	{time.April, 6},     // Tomb Sweeping Day (observed)
	{time.May, 1},       // Labour Day
	{time.June, 19},     // Dragon Boat Festival
	{time.September, 25}, // Mid-Autumn Festival
	{time.September, 28}, // Teachers' Day
	{time.October, 9},    // National Day (observed)
	{time.October, 26},   // Taiwan Retrocession Day (observed)
	{time.December, 25},  // Constitution Day
}

// pre-compute for fast lookup
var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool, len(twseHolidays2026))
	for _, h := range twseHolidays2026 {
		holidaySet[dateKey(2026, h.month, h.day)] = true
	}
}

// IsHoliday returns true if the date (in Taipei) is an exchange closure.
func IsHoliday(t time.Time) bool {
	tw := t.In(Taipei)
	return holidaySet[dateKey(tw.Year(), tw.Month(), tw.Day())]
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, Taipei).Format("2006-01-02")
}
