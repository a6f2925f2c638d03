package agenda

import (
	"errors"
	"fmt"

	"agendacal/internal/model"
)

var (
	ErrNegativeDuration        = errors.New("event duration is negative")
	ErrTerminationBeforeStart  = errors.New("termination date precedes event start")
	ErrInvalidTerminationCount = errors.New("termination occurrence count is below one")
	ErrInvalidFrequency        = errors.New("repetition frequency is not supported")
)

// Validate reports every rule e breaks that the permissive core accepts
// silently. It returns nil for a well-formed event.
func Validate(e *model.Event) error {
	var errs []error
	if e.Duration() < 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrNegativeDuration, e.Duration()))
	}

	if r, ok := e.Repetition(); ok {
		if !r.Frequency().Valid() {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidFrequency, r.Frequency()))
		}
		if t, ok := r.Termination(); ok {
			switch {
			case t.DateInclusive().Before(e.StartDate()):
				errs = append(errs, fmt.Errorf("%w: %s before %s", ErrTerminationBeforeStart, t.DateInclusive(), e.StartDate()))
			case t.Occurrences() < 1:
				errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidTerminationCount, t.Occurrences()))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("event %q: %w", e.Title(), errors.Join(errs...))
}

// Strict wraps an Agenda and refuses events that fail Validate. Queries
// go straight to the wrapped Agenda.
type Strict struct {
	*Agenda
}

func NewStrict(a *Agenda) *Strict {
	if a == nil {
		a = New()
	}
	return &Strict{Agenda: a}
}

// AddEvent validates e and appends it only when it is well-formed.
func (s *Strict) AddEvent(e *model.Event) error {
	if err := Validate(e); err != nil {
		return err
	}
	s.Agenda.AddEvent(e)
	return nil
}
