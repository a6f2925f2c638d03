package ics

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"agendacal/internal/agenda"
	"agendacal/internal/model"
	"agendacal/internal/recurrence"
)

const productID = "-//agendacal//agenda export//EN"

const (
	floatingLayout = "20060102T150405"
	dateLayout     = "20060102"
)

// uidNamespace seeds the name-based UUIDs given to exported events, so the
// same agenda always exports the same UIDs.
var uidNamespace = uuid.MustParse("6f0c6c55-3f7e-4c59-9a0e-3c2b8e1d7a41")

// Encode renders a as an iCalendar document, one VEVENT per event in
// insertion order. Start and end are written as floating local times;
// stamp fills DTSTAMP.
func Encode(a *agenda.Agenda, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	i := 0
	for e := range a.All() {
		ve := cal.AddEvent(eventUID(i, e))
		ve.SetDtStampTime(stamp)
		ve.SetSummary(e.Title())
		ve.SetProperty(ical.ComponentPropertyDtStart, civil.DateTimeOf(e.Start()).In(time.UTC).Format(floatingLayout))
		ve.SetProperty(ical.ComponentPropertyDtEnd, civil.DateTimeOf(e.End()).In(time.UTC).Format(floatingLayout))

		if r, ok := e.Repetition(); ok {
			ve.AddRrule(ruleFor(e, r))
			for _, d := range r.Exceptions() {
				ve.AddExdate(d.In(time.UTC).Format(dateLayout), ical.WithValue(string(ical.ValueDataTypeDate)))
			}
		}
		i++
	}
	return cal.Serialize()
}

// ruleFor renders the RRULE value. A termination built from a count keeps
// COUNT; one built from a date becomes UNTIL at the event's start time on
// that date, so the last occurrence is included.
//
// A monthly event starting after the 28th falls back to the last day of
// shorter months. Plain FREQ=MONTHLY would skip those months instead, so
// the rule spells it out as "day d, or the last day if earlier".
func ruleFor(e *model.Event, r *recurrence.Repetition) string {
	opt := rrule.ROption{Freq: rruleFrequency(r.Frequency())}
	if d := e.Start().Day(); r.Frequency() == recurrence.Monthly && d > 28 {
		opt.Bymonthday = []int{d, -1}
		opt.Bysetpos = []int{1}
	}
	if t, ok := r.Termination(); ok {
		if t.ByCount() && t.Occurrences() > 0 {
			opt.Count = int(t.Occurrences())
		} else {
			until := civil.DateTime{Date: t.DateInclusive(), Time: civil.TimeOf(e.Start())}
			opt.Until = until.In(e.Start().Location())
		}
	}
	return opt.RRuleString()
}

func rruleFrequency(f recurrence.Frequency) rrule.Frequency {
	switch f {
	case recurrence.Weekly:
		return rrule.WEEKLY
	case recurrence.Monthly:
		return rrule.MONTHLY
	default:
		return rrule.DAILY
	}
}

func eventUID(i int, e *model.Event) string {
	name := fmt.Sprintf("%d|%s|%s", i, e.Title(), civil.DateTimeOf(e.Start()))
	return uuid.NewSHA1(uidNamespace, []byte(name)).String() + "@agendacal"
}
