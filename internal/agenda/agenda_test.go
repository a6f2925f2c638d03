package agenda

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendacal/internal/model"
	"agendacal/internal/recurrence"
)

var (
	nov1       = civil.Date{Year: 2020, Month: time.November, Day: 1}
	jan5       = civil.Date{Year: 2021, Month: time.January, Day: 5}
	nov1At2230 = time.Date(2020, time.November, 1, 22, 30, 0, 0, time.UTC)
	min120     = 120 * time.Minute
)

type fixture struct {
	agenda           *Agenda
	simple           *model.Event
	fixedTermination *model.Event
	fixedRepetitions *model.Event
	neverEnding      *model.Event
}

func newFixture() fixture {
	f := fixture{
		simple:           model.NewEvent("Simple event", nov1At2230, min120),
		fixedTermination: model.NewEvent("Fixed termination weekly", nov1At2230, min120),
		fixedRepetitions: model.NewEvent("Fixed termination weekly", nov1At2230, min120),
		neverEnding:      model.NewEvent("Never Ending", nov1At2230, min120),
	}
	f.fixedTermination.SetRepetition(recurrence.Weekly)
	f.fixedTermination.SetTerminationDate(jan5)

	f.fixedRepetitions.SetRepetition(recurrence.Weekly)
	f.fixedRepetitions.SetTerminationCount(10)

	f.neverEnding.SetRepetition(recurrence.Daily)

	f.agenda = New()
	f.agenda.AddEvent(f.simple)
	f.agenda.AddEvent(f.fixedTermination)
	f.agenda.AddEvent(f.fixedRepetitions)
	f.agenda.AddEvent(f.neverEnding)
	return f
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestEventsInDay(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name string
		day  civil.Date
		want []*model.Event
	}{
		{"all four on the first day", nov1, []*model.Event{f.simple, f.fixedTermination, f.fixedRepetitions, f.neverEnding}},
		{"single event spills into the next day", nov1.AddDays(1), []*model.Event{f.simple, f.neverEnding}},
		{"nothing before the start", civil.Date{Year: 2020, Month: time.October, Day: 30}, []*model.Event{}},
		{"three recurring events in range", civil.Date{Year: 2020, Month: time.December, Day: 13}, []*model.Event{f.fixedTermination, f.fixedRepetitions, f.neverEnding}},
		{"only the never ending one after termination", civil.Date{Year: 2021, Month: time.January, Day: 10}, []*model.Event{f.neverEnding}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.agenda.EventsInDay(tt.day))
		})
	}
}

func TestEventsInDayEmptyAgenda(t *testing.T) {
	got := New().EventsInDay(nov1)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAddEventKeepsOrderAndDuplicates(t *testing.T) {
	a := New()
	e1 := model.NewEvent("Event 1", nov1At2230, min120)
	e2 := model.NewEvent("Event 2", at(2020, time.November, 1, 10, 0), time.Hour)

	a.AddEvent(e1)
	a.AddEvent(e2)
	a.AddEvent(e1)

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, []*model.Event{e1, e2, e1}, a.EventsInDay(nov1))
}

func TestFindByTitle(t *testing.T) {
	f := newFixture()

	assert.Equal(t, []*model.Event{f.simple}, f.agenda.FindByTitle("Simple event"))
	assert.Equal(t, []*model.Event{f.fixedTermination, f.fixedRepetitions}, f.agenda.FindByTitle("Fixed termination weekly"))
	assert.Empty(t, f.agenda.FindByTitle("Non-existent event"))
	assert.Empty(t, f.agenda.FindByTitle("simple event"))
}

func TestIsFreeFor(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name  string
		start time.Time
		dur   time.Duration
		want  bool
	}{
		{"no conflict next morning", at(2020, time.November, 2, 10, 0), 30 * time.Minute, true},
		{"partial overlap", at(2020, time.November, 1, 23, 0), time.Hour, false},
		{"complete overlap", at(2020, time.November, 1, 22, 45), 30 * time.Minute, false},
		{"starts before and ends during", at(2020, time.November, 1, 22, 0), 45 * time.Minute, false},
		{"starts exactly at the end", nov1At2230.Add(min120), time.Hour, true},
		{"ends exactly at the start", at(2020, time.November, 1, 20, 30), min120, true},
		{"surrounds the event", at(2020, time.November, 1, 20, 0), 6 * time.Hour, false},
		{"recurring events are ignored", at(2020, time.November, 8, 22, 30), time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := model.NewEvent("Candidate", tt.start, tt.dur)
			assert.Equal(t, tt.want, f.agenda.IsFreeFor(candidate))
		})
	}
}

func TestEventsReturnsACopy(t *testing.T) {
	f := newFixture()

	events := f.agenda.Events()
	require.Len(t, events, 4)
	events[0] = nil

	assert.Equal(t, f.simple, f.agenda.Events()[0])
}

func TestAllStopsEarly(t *testing.T) {
	f := newFixture()

	var seen []*model.Event
	for e := range f.agenda.All() {
		seen = append(seen, e)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []*model.Event{f.simple, f.fixedTermination}, seen)
}

func TestTerminationScenarios(t *testing.T) {
	f := newFixture()

	assert.Equal(t, 10, f.fixedTermination.NumberOfOccurrences())
	end, ok := f.fixedRepetitions.TerminationDate()
	require.True(t, ok)
	assert.Equal(t, civil.Date{Year: 2021, Month: time.January, Day: 3}, end)
}
