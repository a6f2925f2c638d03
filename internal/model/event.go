package model

import (
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/civil"

	"agendacal/internal/recurrence"
)

// Unbounded is what NumberOfOccurrences reports for events with no
// termination, recurring or not.
const Unbounded = math.MaxInt32

// Event is a titled span of time that happens once, or repeatedly when a
// Repetition is attached.
//
// Start is read by wall clock: the calendar date and time-of-day shown by
// start.Location(). The span [Start, Start+Duration] is computed on that
// wall-clock reading, so DST transitions never shift an event's dates.
type Event struct {
	title    string
	start    time.Time
	duration time.Duration

	// repetition is nil for single events. Once set it is never cleared.
	repetition *recurrence.Repetition
}

func NewEvent(title string, start time.Time, duration time.Duration) *Event {
	return &Event{
		title:    title,
		start:    start,
		duration: duration,
	}
}

func (e *Event) Title() string           { return e.title }
func (e *Event) Start() time.Time        { return e.start }
func (e *Event) Duration() time.Duration { return e.duration }

// StartDate is the calendar date of Start.
func (e *Event) StartDate() civil.Date { return civil.DateOf(e.start) }

// End is Start+Duration on the wall clock, in Start's location.
func (e *Event) End() time.Time {
	end := civil.DateTimeOf(wallClock(e.start).Add(e.duration))
	return end.In(e.start.Location())
}

// EndDate is the calendar date of End.
func (e *Event) EndDate() civil.Date {
	return civil.DateOf(wallClock(e.start).Add(e.duration))
}

func (e *Event) HasRepetition() bool { return e.repetition != nil }

// Repetition returns the attached Repetition, if any.
func (e *Event) Repetition() (*recurrence.Repetition, bool) {
	return e.repetition, e.repetition != nil
}

// SetRepetition makes the event recur with frequency f. Any previous
// Repetition is replaced along with its exceptions and termination.
func (e *Event) SetRepetition(f recurrence.Frequency) {
	e.repetition = recurrence.NewRepetition(f)
}

// AddException suppresses the occurrence on d. No-op on a single event.
func (e *Event) AddException(d civil.Date) {
	if e.repetition == nil {
		return
	}
	e.repetition.AddException(d)
}

// SetTerminationDate ends the recurrence on d, inclusive. No-op on a
// single event.
func (e *Event) SetTerminationDate(d civil.Date) {
	if e.repetition == nil {
		return
	}
	e.repetition.SetTermination(recurrence.TerminationAt(e.StartDate(), e.repetition.Frequency(), d))
}

// SetTerminationCount ends the recurrence after n occurrences. No-op on a
// single event.
func (e *Event) SetTerminationCount(n int64) {
	if e.repetition == nil {
		return
	}
	e.repetition.SetTermination(recurrence.TerminationAfter(e.StartDate(), e.repetition.Frequency(), n))
}

func (e *Event) termination() (recurrence.Termination, bool) {
	if e.repetition == nil {
		return recurrence.Termination{}, false
	}
	return e.repetition.Termination()
}

// OccurrenceCount returns the total number of occurrences when the event
// recurs with a termination.
func (e *Event) OccurrenceCount() (int64, bool) {
	t, ok := e.termination()
	if !ok {
		return 0, false
	}
	return t.Occurrences(), true
}

// NumberOfOccurrences is OccurrenceCount with Unbounded standing in for
// both single events and recurrences without termination.
func (e *Event) NumberOfOccurrences() int {
	n, ok := e.OccurrenceCount()
	if !ok {
		return Unbounded
	}
	return int(n)
}

// TerminationDate returns the inclusive last date of a terminated
// recurrence.
func (e *Event) TerminationDate() (civil.Date, bool) {
	t, ok := e.termination()
	if !ok {
		return civil.Date{}, false
	}
	return t.DateInclusive(), true
}

// IsInDay reports whether the event occurs on day.
//
// A single event is present on every date its span touches, both ends
// included. A recurring event is present only on the start date of each
// occurrence; Duration does not carry a repetition onto following days.
func (e *Event) IsInDay(day civil.Date) bool {
	if e.repetition == nil {
		return !day.Before(e.StartDate()) && !day.After(e.EndDate())
	}
	return e.recursOn(day)
}

func (e *Event) recursOn(day civil.Date) bool {
	r := e.repetition
	startDate := e.StartDate()

	if day.Before(startDate) {
		return false
	}
	if r.IsException(day) {
		return false
	}

	freq := r.Frequency()
	steps := freq.Between(startDate, day)
	if steps < 0 {
		return false
	}
	if freq.Step(startDate, steps) != day {
		return false
	}

	if t, ok := r.Termination(); ok && day.After(t.DateInclusive()) {
		return false
	}
	return true
}

func (e *Event) String() string {
	return fmt.Sprintf("Event{title=%q, start=%s, duration=%s}",
		e.title, civil.DateTimeOf(e.start), e.duration)
}

// wallClock re-reads t's date and time-of-day in UTC so that adding a
// duration moves the wall clock by exactly that amount.
func wallClock(t time.Time) time.Time {
	return civil.DateTimeOf(t).In(time.UTC)
}
