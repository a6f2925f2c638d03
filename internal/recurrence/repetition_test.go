package recurrence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepetitionFrequency(t *testing.T) {
	assert.Equal(t, Daily, NewRepetition(Daily).Frequency())
	assert.Equal(t, Weekly, NewRepetition(Weekly).Frequency())
	assert.Equal(t, Monthly, NewRepetition(Monthly).Frequency())
}

func TestRepetitionExceptions(t *testing.T) {
	r := NewRepetition(Daily)
	assert.False(t, r.IsException(date(2020, 11, 5)))

	r.AddException(date(2020, 11, 15))
	r.AddException(date(2020, 11, 5))
	r.AddException(date(2020, 11, 10))

	assert.True(t, r.IsException(date(2020, 11, 5)))
	assert.True(t, r.IsException(date(2020, 11, 10)))
	assert.True(t, r.IsException(date(2020, 11, 15)))
	assert.False(t, r.IsException(date(2020, 11, 6)))

	assert.Equal(t, []string{"2020-11-05", "2020-11-10", "2020-11-15"}, dateStrings(r))
}

func TestRepetitionAddExceptionIsIdempotent(t *testing.T) {
	once := NewRepetition(Weekly)
	once.AddException(date(2020, 11, 8))

	twice := NewRepetition(Weekly)
	twice.AddException(date(2020, 11, 8))
	twice.AddException(date(2020, 11, 8))

	assert.Equal(t, once.IsException(date(2020, 11, 8)), twice.IsException(date(2020, 11, 8)))
	assert.Len(t, twice.Exceptions(), 1)
}

func TestRepetitionTermination(t *testing.T) {
	r := NewRepetition(Weekly)
	_, ok := r.Termination()
	assert.False(t, ok)

	first := TerminationAt(startDate, Weekly, terminationDate)
	r.SetTermination(first)
	got, ok := r.Termination()
	require.True(t, ok)
	assert.Equal(t, first, got)

	second := TerminationAfter(startDate, Weekly, 3)
	r.SetTermination(second)
	got, ok = r.Termination()
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Occurrences())
}

func dateStrings(r *Repetition) []string {
	var out []string
	for _, d := range r.Exceptions() {
		out = append(out, d.String())
	}
	return out
}
