// Package calendar derives the month grid shown on the interview schedule
// screen. The grid is a pure value computed from a reference month and the
// current in-memory event snapshot; nothing here touches the network.
package calendar

import (
	"time"

	appLog "hiredesk/internal/log"
	"hiredesk/internal/model"
)

// Day is one cell of the 7-wide month grid.
type Day struct {
	Date           time.Time             `json:"date"`
	IsCurrentMonth bool                  `json:"is_current_month"`
	Events         []model.ScheduleEvent `json:"events"`
}

// Direction selects which adjacent month AdvanceMonth moves to.
type Direction int

const (
	Back    Direction = -1
	Forward Direction = 1
)

// Build derives the day cells for the month containing ref. Only the year
// and month of ref are read. loc is the canonical display zone used for
// day attribution; if nil, time.Local is used.
//
// Guarantees:
//   - the cell count is a positive multiple of 7
//   - cells are in strictly ascending date order
//   - exactly one contiguous run of IsCurrentMonth cells, one per day of
//     the month
//   - every event whose start date falls in the displayed month lands in
//     exactly one cell, matched by calendar year/month/day in loc
//
// Events whose start date does not parse are skipped; they simply appear
// in no cell. The skip is surfaced as a data-quality log line rather than
// an error so one bad record never blanks the whole grid.
func Build(ref time.Time, loc *time.Location, events []model.ScheduleEvent) []Day {
	if loc == nil {
		loc = time.Local
	}

	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
	lastDay := first.AddDate(0, 1, -1).Day()

	// Bucket in-month events by day-of-month up front so cell
	// construction is a lookup, not a scan.
	byDay := make(map[int][]model.ScheduleEvent)
	for _, ev := range events {
		t, ok := EventDate(ev.StartDate, loc)
		if !ok {
			appLog.Debug("event start date unparseable, omitted from grid",
				"event_id", ev.ID, "start_date", ev.StartDate)
			continue
		}
		if t.Year() == first.Year() && t.Month() == first.Month() {
			byDay[t.Day()] = append(byDay[t.Day()], ev)
		}
	}

	// Leading cells: trailing days of the previous month, enough to align
	// day 1 with its weekday column (0=Sunday..6=Saturday).
	lead := int(first.Weekday())
	cells := make([]Day, 0, lead+lastDay+6)
	for i := lead; i > 0; i-- {
		cells = append(cells, Day{
			Date:           first.AddDate(0, 0, -i),
			IsCurrentMonth: false,
			Events:         []model.ScheduleEvent{},
		})
	}

	for day := 1; day <= lastDay; day++ {
		evs := byDay[day]
		if evs == nil {
			evs = []model.ScheduleEvent{}
		}
		cells = append(cells, Day{
			Date:           first.AddDate(0, 0, day-1),
			IsCurrentMonth: true,
			Events:         evs,
		})
	}

	// Trailing cells: leading days of the next month until the grid forms
	// complete weeks.
	next := first.AddDate(0, 1, 0)
	for i := 0; len(cells)%7 != 0; i++ {
		cells = append(cells, Day{
			Date:           next.AddDate(0, 0, i),
			IsCurrentMonth: false,
			Events:         []model.ScheduleEvent{},
		})
	}

	return cells
}

// AdvanceMonth moves ref by exactly one calendar month in the given
// direction. The day is pinned to the 1st so month-length overflow (for
// instance Jan 31 -> "Feb 31") cannot occur. Pure transform: advancing
// forward then back lands on the original month.
func AdvanceMonth(ref time.Time, dir Direction) time.Time {
	base := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	return base.AddDate(0, int(dir), 0)
}

// eventDateLayouts are the accepted start-date forms, most specific first.
var eventDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// EventDate parses a backend start-date value into a wall-clock date in
// the display zone. The calendar date is taken as written in the value,
// never shifted through the viewer's offset, so "2024-02-29T10:00:00Z"
// lands on Feb 29 for every viewer.
func EventDate(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), true
		}
	}
	return time.Time{}, false
}
