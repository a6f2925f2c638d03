package agenda

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandOrdersByStart(t *testing.T) {
	f := newFixture()

	res, err := f.agenda.Expand(ExpandConfig{From: nov1, To: nov1.AddDays(8)})
	require.NoError(t, err)
	assert.Empty(t, res.TruncatedEvents)

	// simple + 2 weekly on the 1st and the 8th + 9 daily
	require.Len(t, res.Occurrences, 1+2*2+9)
	for i := 1; i < len(res.Occurrences); i++ {
		assert.False(t, res.Occurrences[i].Start.Before(res.Occurrences[i-1].Start))
	}
	assert.Equal(t, "Simple event", res.Occurrences[0].Title)
	assert.Equal(t, "Never Ending", res.Occurrences[len(res.Occurrences)-1].Title)
}

func TestExpandCapsNeverEndingEvents(t *testing.T) {
	f := newFixture()

	res, err := f.agenda.Expand(ExpandConfig{
		From:                   nov1,
		To:                     civil.Date{Year: 2021, Month: time.December, Day: 31},
		MaxOccurrencesPerEvent: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Never Ending"}, res.TruncatedEvents)
	assert.Len(t, res.Occurrences, 1+10+10+20)
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	_, err := New().Expand(ExpandConfig{From: nov1, To: nov1.AddDays(-1)})
	assert.Error(t, err)
}
