// Package agenda holds an ordered collection of events and answers
// day-listing, title lookup and free-slot queries over it.
//
// An Agenda has no internal locking; callers sharing one across goroutines
// must serialize access themselves.
package agenda

import (
	"iter"
	"slices"

	"cloud.google.com/go/civil"

	"agendacal/internal/model"
)

// Agenda is an insertion-ordered list of events. Duplicate titles are
// allowed and nothing is ever removed.
type Agenda struct {
	events []*model.Event
}

func New() *Agenda {
	return &Agenda{}
}

// AddEvent appends e. No validation or deduplication is performed.
func (a *Agenda) AddEvent(e *model.Event) {
	a.events = append(a.events, e)
}

func (a *Agenda) Len() int { return len(a.events) }

// Events returns a copy of the event list in insertion order.
func (a *Agenda) Events() []*model.Event {
	return slices.Clone(a.events)
}

// All iterates over the events in insertion order.
func (a *Agenda) All() iter.Seq[*model.Event] {
	return func(yield func(*model.Event) bool) {
		for _, e := range a.events {
			if !yield(e) {
				return
			}
		}
	}
}

// EventsInDay returns, in insertion order, every event occurring on day.
func (a *Agenda) EventsInDay(day civil.Date) []*model.Event {
	return a.filter(func(e *model.Event) bool { return e.IsInDay(day) })
}

// FindByTitle returns, in insertion order, every event whose title is
// exactly title.
func (a *Agenda) FindByTitle(title string) []*model.Event {
	return a.filter(func(e *model.Event) bool { return e.Title() == title })
}

// IsFreeFor reports whether candidate's span [start, end) overlaps no
// single event in the agenda. Touching ends do not conflict. Recurring
// events are never considered, whatever their occurrences.
func (a *Agenda) IsFreeFor(candidate *model.Event) bool {
	start, end := candidate.Start(), candidate.End()
	for _, e := range a.events {
		if e.HasRepetition() {
			continue
		}
		if start.Before(e.End()) && e.Start().Before(end) {
			return false
		}
	}
	return true
}

func (a *Agenda) filter(keep func(*model.Event) bool) []*model.Event {
	out := make([]*model.Event, 0)
	for _, e := range a.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
