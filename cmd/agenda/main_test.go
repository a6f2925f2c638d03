package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendacal/internal/agenda"
	"agendacal/internal/ics"
	"agendacal/internal/model"
	"agendacal/internal/recurrence"
)

// writeFixture stores a two-event agenda as ICS plus a UTC config in a
// temp dir and returns the config path.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	start := time.Date(2020, time.November, 1, 22, 30, 0, 0, time.UTC)
	a := agenda.New()
	a.AddEvent(model.NewEvent("Simple event", start, 2*time.Hour))
	weekly := model.NewEvent("Weekly sync", start, time.Hour)
	weekly.SetRepetition(recurrence.Weekly)
	weekly.SetTerminationCount(10)
	a.AddEvent(weekly)

	icsPath := filepath.Join(dir, "agenda.ics")
	require.NoError(t, os.WriteFile(icsPath, []byte(ics.Encode(a, start)), 0o600))

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "timezone: UTC\nagenda: " + icsPath + "\nlog_level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDayCommand(t *testing.T) {
	cfg := writeFixture(t)

	out, err := run(t, "--config", cfg, "day", "2020-11-08")
	require.NoError(t, err)
	assert.Contains(t, out, "Weekly sync")
	assert.Contains(t, out, "WEEKLY until 2021-01-03")
	assert.NotContains(t, out, "Simple event")

	out, err = run(t, "--config", cfg, "day", "2020-11-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Simple event")
	assert.NotContains(t, out, "Weekly sync")
}

func TestDayCommandRejectsBadDate(t *testing.T) {
	cfg := writeFixture(t)
	_, err := run(t, "--config", cfg, "day", "not-a-date")
	assert.Error(t, err)
}

func TestFindCommand(t *testing.T) {
	cfg := writeFixture(t)

	out, err := run(t, "--config", cfg, "find", "Weekly sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Weekly sync")

	out, err = run(t, "--config", cfg, "find", "weekly sync")
	require.NoError(t, err)
	assert.NotContains(t, out, "Weekly sync")
}

func TestFreeCommand(t *testing.T) {
	cfg := writeFixture(t)

	out, err := run(t, "--config", cfg, "free", "2020-11-01T23:00", "30m")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "busy:"), out)

	out, err = run(t, "--config", cfg, "free", "2020-11-02T00:30", "30m")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "free:"), out)

	// Recurring events never block a slot.
	out, err = run(t, "--config", cfg, "free", "2020-11-08T22:30", "1h")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "free:"), out)
}

func TestOccurrencesCommand(t *testing.T) {
	cfg := writeFixture(t)

	out, err := run(t, "--config", cfg, "occurrences", "2020-11-01", "2020-11-30")
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(out, "Weekly sync"))
	assert.Equal(t, 1, strings.Count(out, "Simple event"))
}

func TestExportCommand(t *testing.T) {
	cfg := writeFixture(t)

	out, err := run(t, "--config", cfg, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "SUMMARY:Simple event")
	assert.Contains(t, out, "COUNT=10")
}

func TestAgendaFlagOverridesConfig(t *testing.T) {
	cfg := writeFixture(t)
	_, err := run(t, "--config", cfg, "--agenda", filepath.Join(t.TempDir(), "missing.ics"), "find", "x")
	assert.Error(t, err)
}
