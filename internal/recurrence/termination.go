package recurrence

import "cloud.google.com/go/civil"

// Termination bounds a recurring event, either by an inclusive end date or
// by a total number of occurrences. Both values are always populated and
// consistent with the start date and frequency it was built from.
type Termination struct {
	endInclusive civil.Date
	occurrences  int64
	byCount      bool
}

// TerminationAt builds a Termination ending on endInclusive. The occurrence
// count is one plus the whole frequency units between start and the end.
// An end before start is not rejected; the count is then zero or negative.
func TerminationAt(start civil.Date, f Frequency, endInclusive civil.Date) Termination {
	return Termination{
		endInclusive: endInclusive,
		occurrences:  1 + f.Between(start, endInclusive),
	}
}

// TerminationAfter builds a Termination ending after count occurrences.
// A count of 1 ends on start.
func TerminationAfter(start civil.Date, f Frequency, count int64) Termination {
	return Termination{
		endInclusive: f.Step(start, count-1),
		occurrences:  count,
		byCount:      true,
	}
}

// DateInclusive is the last calendar date on which an occurrence is valid.
func (t Termination) DateInclusive() civil.Date { return t.endInclusive }

// Occurrences is the total number of occurrences from the start date
// through DateInclusive.
func (t Termination) Occurrences() int64 { return t.occurrences }

// ByCount reports whether t was built from an occurrence count rather than
// an end date. Serializers use it to keep the caller's original form.
func (t Termination) ByCount() bool { return t.byCount }
