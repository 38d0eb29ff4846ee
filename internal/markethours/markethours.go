package markethours

import (
	"fmt"
	"time"
)

// Taipei is the TWSE exchange timezone (UTC+8, no DST).
var Taipei = time.FixedZone("Asia/Taipei", 8*3600)

// Session boundaries in Taipei local time.
const (
	OpenHour    = 9
	OpenMinute  = 0
	CloseHour   = 13
	CloseMinute = 30

	// Pre-open window for analysis and order staging.
	PreMarketOpenHour  = 7
	PreMarketCloseHour = 9 // exclusive; pre-market ends when the session opens
)

// IsMarketOpen returns true if t falls within TWSE trading hours
// (09:00–13:30 Taipei, Mon–Fri, excluding holidays).
func IsMarketOpen(t time.Time) bool {
	tw := t.In(Taipei)
	if !IsTradingDay(tw) {
		return false
	}
	hm := tw.Hour()*60 + tw.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsPreMarket returns true during the 07:00–08:59 staging window on a
// trading day.
func IsPreMarket(t time.Time) bool {
	tw := t.In(Taipei)
	if !IsTradingDay(tw) {
		return false
	}
	return tw.Hour() >= PreMarketOpenHour && tw.Hour() < PreMarketCloseHour
}

// IsWeekday returns true if t is Mon–Fri in Taipei.
func IsWeekday(t time.Time) bool {
	wd := t.In(Taipei).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not an exchange holiday.
func IsTradingDay(t time.Time) bool {
	tw := t.In(Taipei)
	return IsWeekday(tw) && !IsHoliday(tw)
}

// NextOpen returns the next session open (09:00 Taipei on the next
// trading day). If t is before today's open on a trading day, returns
// today's open.
func NextOpen(t time.Time) time.Time {
	tw := t.In(Taipei)

	todayOpen := time.Date(tw.Year(), tw.Month(), tw.Day(), OpenHour, OpenMinute, 0, 0, Taipei)
	if tw.Before(todayOpen) && IsTradingDay(tw) {
		return todayOpen
	}

	d := tw.AddDate(0, 0, 1)
	for i := 0; i < 15; i++ { // bounded scan across weekends and holiday runs
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, Taipei)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(tw.Year(), tw.Month(), tw.Day()+1, OpenHour, OpenMinute, 0, 0, Taipei)
}

// NextPreMarket returns the start of the next pre-open staging window
// (07:00 Taipei on the next trading day).
func NextPreMarket(t time.Time) time.Time {
	open := NextOpen(t)
	return time.Date(open.Year(), open.Month(), open.Day(), PreMarketOpenHour, 0, 0, 0, Taipei)
}

// TodayClose returns today's session close (13:30 Taipei).
func TodayClose(t time.Time) time.Time {
	tw := t.In(Taipei)
	return time.Date(tw.Year(), tw.Month(), tw.Day(), CloseHour, CloseMinute, 0, 0, Taipei)
}

// TimeUntilClose returns the duration until today's close, or 0 if the
// session has ended.
func TimeUntilClose(t time.Time) time.Duration {
	d := TodayClose(t).Sub(t.In(Taipei))
	if d < 0 {
		return 0
	}
	return d
}

// TimeUntilOpen returns the duration until the next session open.
func TimeUntilOpen(t time.Time) time.Duration {
	return NextOpen(t).Sub(t.In(Taipei))
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("Market Open — closes in %s", fmtDur(TimeUntilClose(t)))
	}
	if IsPreMarket(t) {
		return fmt.Sprintf("Pre-Market — opens in %s", fmtDur(TimeUntilOpen(t)))
	}
	next := NextOpen(t)
	tw := next.In(Taipei)
	return fmt.Sprintf("Market Closed — opens %s %s (%s)",
		tw.Weekday().String()[:3], tw.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
