package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"recurcal/internal/model"
)

// ProductID is written as PRODID on encoded calendars.
const ProductID = "-//recurcal//occurrences//EN"

// OccurrenceUID derives a stable UID for one occurrence, so re-exporting the
// same window yields identical events.
func OccurrenceUID(o model.Occurrence) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("recurcal:"+o.Key())).String() + "@recurcal"
}

// EncodeOccurrences renders occurrences as a flat VCALENDAR: one VEVENT per
// occurrence with UTC start and end and no recurrence rules.
func EncodeOccurrences(occ []model.Occurrence, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ical.MethodPublish)

	for _, o := range occ {
		ev := cal.AddEvent(OccurrenceUID(o))
		ev.SetDtStampTime(stamp.UTC())
		if o.AllDay {
			ev.SetAllDayStartAt(o.Start)
			ev.SetAllDayEndAt(o.End)
		} else {
			ev.SetStartAt(o.Start.UTC())
			ev.SetEndAt(o.End.UTC())
		}
		if o.Summary != "" {
			ev.SetSummary(o.Summary)
		}
		if o.Description != "" {
			ev.SetDescription(o.Description)
		}
		if o.Location != "" {
			ev.SetLocation(o.Location)
		}
	}
	return cal.Serialize()
}
