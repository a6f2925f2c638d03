package recurrence

import (
	"slices"

	"cloud.google.com/go/civil"
)

// Repetition is the recurring shape of an event apart from its own start
// and duration: a stepping frequency, an optional termination and a set of
// exception dates. No ordering checks are made; callers are trusted.
type Repetition struct {
	frequency   Frequency
	exceptions  map[civil.Date]struct{}
	termination *Termination
}

// NewRepetition returns a Repetition with no exceptions and no termination.
func NewRepetition(f Frequency) *Repetition {
	return &Repetition{
		frequency:  f,
		exceptions: make(map[civil.Date]struct{}),
	}
}

func (r *Repetition) Frequency() Frequency { return r.frequency }

// SetTermination replaces any existing termination.
func (r *Repetition) SetTermination(t Termination) {
	r.termination = &t
}

// Termination returns the current termination, if any.
func (r *Repetition) Termination() (Termination, bool) {
	if r.termination == nil {
		return Termination{}, false
	}
	return *r.termination, true
}

// AddException suppresses the occurrence on d. Adding d again is a no-op.
func (r *Repetition) AddException(d civil.Date) {
	r.exceptions[d] = struct{}{}
}

func (r *Repetition) IsException(d civil.Date) bool {
	_, ok := r.exceptions[d]
	return ok
}

// Exceptions returns the exception dates in chronological order.
func (r *Repetition) Exceptions() []civil.Date {
	out := make([]civil.Date, 0, len(r.exceptions))
	for d := range r.exceptions {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b civil.Date) int {
		switch {
		case a.Before(b):
			return -1
		case a.After(b):
			return 1
		}
		return 0
	})
	return out
}
