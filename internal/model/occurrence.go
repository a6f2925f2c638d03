package model

import (
	"time"

	"cloud.google.com/go/civil"
)

// Occurrence is a single concrete instance of an event.
type Occurrence struct {
	Title string

	// InstanceKey identifies the instance among all occurrences of the same
	// event, derived from the local start time.
	InstanceKey string

	Recurring bool

	Start time.Time
	End   time.Time
}

func (e *Event) occurrenceAt(start time.Time) Occurrence {
	end := civil.DateTimeOf(wallClock(start).Add(e.duration)).In(start.Location())
	return Occurrence{
		Title:       e.title,
		InstanceKey: civil.DateTimeOf(start).String(),
		Recurring:   e.repetition != nil,
		Start:       start,
		End:         end,
	}
}

// OccurrencesBetween lists the occurrences whose date falls in the
// inclusive range [from, to], in chronological order. For a single event
// that means its span touches the range. At most limit occurrences are
// returned when limit > 0; the second result reports whether that cap cut
// the list short.
func (e *Event) OccurrencesBetween(from, to civil.Date, limit int) ([]Occurrence, bool) {
	out := make([]Occurrence, 0)
	if to.Before(from) {
		return out, false
	}

	if e.repetition == nil {
		if !e.EndDate().Before(from) && !e.StartDate().After(to) {
			out = append(out, e.occurrenceAt(e.start))
		}
		return out, false
	}

	r := e.repetition
	freq := r.Frequency()
	if !freq.Valid() {
		return out, false
	}

	startDate := e.StartDate()
	last := to
	if t, ok := r.Termination(); ok && t.DateInclusive().Before(last) {
		last = t.DateInclusive()
	}

	var step int64
	if startDate.Before(from) {
		step = freq.Between(startDate, from)
	}
	clock := civil.DateTimeOf(e.start).Time
	for ; ; step++ {
		d := freq.Step(startDate, step)
		if d.After(last) {
			break
		}
		if d.Before(from) || r.IsException(d) {
			continue
		}
		if limit > 0 && len(out) >= limit {
			return out, true
		}
		at := civil.DateTime{Date: d, Time: clock}.In(e.start.Location())
		out = append(out, e.occurrenceAt(at))
	}
	return out, false
}
