package schedule

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"hiredesk/internal/calendar"
	"hiredesk/internal/model"
)

const icsProductID = "-//hiredesk//Interview Schedule//EN"

// timeLayouts are the accepted free-form start/end time shapes.
var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"}

// WriteICS serializes the given events as an iCalendar feed. Cancelled
// interviews are included with STATUS:CANCELLED so subscribed calendars
// drop them; events whose date does not parse are skipped.
func WriteICS(w io.Writer, events []model.ScheduleEvent, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetCalscale("GREGORIAN")

	now := time.Now()
	for _, ev := range events {
		day, ok := calendar.EventDate(ev.StartDate, loc)
		if !ok {
			continue
		}

		uid := ev.MeetingID + "@hiredesk"
		ve := cal.AddEvent(uid)
		ve.SetDtStampTime(now)
		ve.SetSummary(ev.Subject)

		start, startOK := combine(day, ev.StartTime, loc)
		end, endOK := combine(day, ev.EndTime, loc)
		if startOK {
			ve.SetStartAt(start)
			if endOK && end.After(start) {
				ve.SetEndAt(end)
			} else {
				ve.SetEndAt(start.Add(time.Hour))
			}
		} else {
			// No usable time of day: emit an all-day entry.
			ve.SetAllDayStartAt(day)
			ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
		}

		if ev.Online() {
			ve.SetLocation("Online")
			if ev.MeetingLink != "" {
				ve.SetURL(ev.MeetingLink)
			}
		} else if ev.Modality != "" {
			ve.SetLocation(ev.Modality)
		}

		desc := "Interview with " + ev.ApplicantName + " <" + ev.ApplicantEmail + ">"
		if ev.Remarks != "" {
			desc += "\n" + ev.Remarks
		}
		ve.SetDescription(desc)

		switch ev.Status {
		case model.StatusCancelled:
			ve.SetStatus(ics.ObjectStatusCancelled)
		case model.StatusAccepted, model.StatusCompleted:
			ve.SetStatus(ics.ObjectStatusConfirmed)
		default:
			ve.SetStatus(ics.ObjectStatusTentative)
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

// WriteCSV writes the events as a flat CSV table.
func WriteCSV(w io.Writer, events []model.ScheduleEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "start", "end", "subject", "applicant", "email", "modality", "status"}); err != nil {
		return err
	}
	for _, ev := range events {
		rec := []string{
			ev.StartDate,
			calendar.FormatTime(ev.StartTime),
			calendar.FormatTime(ev.EndTime),
			ev.Subject,
			ev.ApplicantName,
			ev.ApplicantEmail,
			ev.Modality,
			string(ev.Status),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// combine merges a calendar day with a free-form time-of-day string.
func combine(day time.Time, clock string, loc *time.Location) (time.Time, bool) {
	clock = strings.TrimSpace(strings.ToUpper(clock))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), true
		}
	}
	return time.Time{}, false
}

// Summary renders one event as a single console line for the -once dump.
func Summary(ev model.ScheduleEvent) string {
	where := ev.Modality
	if ev.Online() {
		where = "online"
	}
	return fmt.Sprintf("%s %s-%s  %-30s %s (%s) [%s]",
		ev.StartDate,
		calendar.FormatTime(ev.StartTime),
		calendar.FormatTime(ev.EndTime),
		ev.Subject,
		ev.ApplicantName,
		where,
		ev.Status,
	)
}
