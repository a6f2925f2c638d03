package recurrence

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

var (
	startDate       = date(2020, 11, 1)
	terminationDate = date(2021, 1, 5)
)

func TestTerminationAt(t *testing.T) {
	term := TerminationAt(startDate, Weekly, terminationDate)

	assert.Equal(t, terminationDate, term.DateInclusive())
	assert.Equal(t, int64(10), term.Occurrences())
	assert.False(t, term.ByCount())
}

func TestTerminationAfter(t *testing.T) {
	term := TerminationAfter(startDate, Weekly, 10)

	assert.Equal(t, int64(10), term.Occurrences())
	assert.Equal(t, date(2021, 1, 3), term.DateInclusive())
	assert.True(t, term.ByCount())
}

func TestTerminationAfterPerFrequency(t *testing.T) {
	tests := []struct {
		name  string
		freq  Frequency
		count int64
		want  string
	}{
		{"five days ends on day four", Daily, 5, "2020-11-05"},
		{"three months ends two months later", Monthly, 3, "2021-01-01"},
		{"single occurrence ends on start", Daily, 1, "2020-11-01"},
		{"twenty five days", Daily, 25, "2020-11-25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := TerminationAfter(startDate, tt.freq, tt.count)
			assert.Equal(t, tt.count, term.Occurrences())
			assert.Equal(t, tt.want, term.DateInclusive().String())
		})
	}
}

func TestTerminationAtPerFrequency(t *testing.T) {
	assert.Equal(t, int64(11), TerminationAt(startDate, Daily, startDate.AddDays(10)).Occurrences())
	assert.Equal(t, int64(6), TerminationAt(startDate, Weekly, Weekly.Step(startDate, 5)).Occurrences())
	assert.Equal(t, int64(4), TerminationAt(startDate, Monthly, Monthly.Step(startDate, 3)).Occurrences())
	assert.Equal(t, int64(1), TerminationAt(startDate, Monthly, startDate).Occurrences())
}

func TestTerminationBeforeStartIsNotRejected(t *testing.T) {
	term := TerminationAt(startDate, Daily, date(2020, 10, 30))
	assert.Equal(t, int64(-1), term.Occurrences())
}

func TestTerminationRoundTrip(t *testing.T) {
	for _, f := range []Frequency{Daily, Weekly, Monthly} {
		for _, start := range []string{"2020-11-01", "2020-01-31", "2021-08-29"} {
			s, _ := civil.ParseDate(start)
			for n := int64(0); n < 40; n++ {
				end := f.Step(s, n)
				count := TerminationAt(s, f, end).Occurrences()
				assert.Equal(t, n+1, count)
				assert.Equal(t, end, TerminationAfter(s, f, count).DateInclusive(), "%s %s +%d", f, start, n)
			}
		}
	}
}
