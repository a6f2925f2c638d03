package ics

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"agendacal/internal/agenda"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
	"agendacal/internal/recurrence"
)

var ErrUnsupportedRule = errors.New("unsupported recurrence rule")

// DecodeOptions controls how VEVENTs become events.
type DecodeOptions struct {
	// Location reads floating and UTC date-times onto a wall clock. If nil,
	// time.Local is used.
	Location *time.Location

	// Strict drops events that fail agenda.Validate.
	Strict bool
}

// Decode parses an iCalendar document into a new Agenda, in VEVENT order.
//
//   - DTEND or DURATION gives the duration; neither means zero (one day for
//     all-day events). All-day spans end one second before their exclusive
//     end so they cover exactly their dates.
//   - RRULE must be DAILY, WEEKLY or MONTHLY with interval 1. A WEEKLY
//     BYDAY naming only the start's weekday is accepted. A MONTHLY rule
//     starting after the 28th must be BYMONTHDAY=<day>,-1;BYSETPOS=1.
//   - EXDATE values become exception dates.
//
// A VEVENT that cannot be represented is logged and skipped; the rest of
// the document still loads.
func Decode(body []byte, opts DecodeOptions) (*agenda.Agenda, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics parse: %w", err)
	}

	a := agenda.New()
	skipped := 0
	for _, ve := range cal.Events() {
		e, err := decodeVEvent(ve, opts.Location)
		if err == nil && opts.Strict {
			err = agenda.Validate(e)
		}
		if err != nil {
			skipped++
			appLog.Error("ics vevent skipped", err, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		a.AddEvent(e)
	}

	appLog.Info("ics decode completed", "event_count", a.Len(), "skipped", skipped)
	return a, nil
}

func decodeVEvent(ve *ical.VEvent, loc *time.Location) (*model.Event, error) {
	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil || startProp.Value == "" {
		return nil, errors.New("missing DTSTART")
	}
	start, allDay, err := parsePropTime(startProp, loc)
	if err != nil {
		return nil, fmt.Errorf("DTSTART: %w", err)
	}

	var duration time.Duration
	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		end, _, err := parsePropTime(ve.GetProperty(ical.ComponentPropertyDtEnd), loc)
		if err != nil {
			return nil, fmt.Errorf("DTEND: %w", err)
		}
		duration = wallDiff(start, end)
	case ve.GetProperty(ical.ComponentPropertyDuration) != nil:
		duration, err = parseICSDuration(ve.GetProperty(ical.ComponentPropertyDuration).Value)
		if err != nil {
			return nil, fmt.Errorf("DURATION: %w", err)
		}
	case allDay:
		duration = 24 * time.Hour
	}
	if allDay && duration > 0 {
		// All-day ends are exclusive day boundaries; stop just short of it
		// so the event does not also cover the following date.
		duration -= time.Second
	}

	e := model.NewEvent(unescapeText(propValue(ve, ical.ComponentPropertySummary)), start, duration)

	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil {
		return e, nil
	}
	if err := applyRule(e, rruleProp.Value, loc); err != nil {
		return nil, err
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := parseICSTime(part, tzOr(p, loc))
			if err != nil {
				return nil, fmt.Errorf("EXDATE %q: %w", part, err)
			}
			e.AddException(civil.DateOf(t.In(loc)))
		}
	}
	return e, nil
}

var dateOnlyUntil = regexp.MustCompile(`(?i)UNTIL=\d{8}(;|$)`)

func applyRule(e *model.Event, raw string, loc *time.Location) error {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return fmt.Errorf("RRULE %q: %w", raw, err)
	}

	var freq recurrence.Frequency
	switch opt.Freq {
	case rrule.DAILY:
		freq = recurrence.Daily
	case rrule.WEEKLY:
		freq = recurrence.Weekly
	case rrule.MONTHLY:
		freq = recurrence.Monthly
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedRule, raw)
	}
	if opt.Interval > 1 {
		return fmt.Errorf("%w: interval %d in %s", ErrUnsupportedRule, opt.Interval, raw)
	}
	if len(opt.Bymonth) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedRule, raw)
	}
	clamped := freq == recurrence.Monthly && e.Start().Day() > 28
	switch {
	case clamped && !isMonthEndFallback(opt, e.Start().Day()):
		// Plain monthly rules from the 29th on skip short months, which an
		// event cannot express.
		return fmt.Errorf("%w: %s", ErrUnsupportedRule, raw)
	case !clamped && (len(opt.Bymonthday) > 0 || len(opt.Bysetpos) > 0):
		return fmt.Errorf("%w: %s", ErrUnsupportedRule, raw)
	}
	if len(opt.Byweekday) > 0 && !byDayIsStartDay(freq, opt.Byweekday, e.Start()) {
		return fmt.Errorf("%w: %s", ErrUnsupportedRule, raw)
	}

	e.SetRepetition(freq)
	switch {
	case opt.Count > 0:
		e.SetTerminationCount(int64(opt.Count))
	case !opt.Until.IsZero():
		if dateOnlyUntil.MatchString(raw) {
			e.SetTerminationDate(civil.DateOf(opt.Until))
		} else {
			e.SetTerminationDate(civil.DateOf(opt.Until.In(loc)))
		}
	}
	return nil
}

// isMonthEndFallback reports whether opt is BYMONTHDAY=day,-1;BYSETPOS=1,
// the monthly rule that lands on day or on the last day of shorter months.
func isMonthEndFallback(opt *rrule.ROption, day int) bool {
	if len(opt.Bysetpos) != 1 || opt.Bysetpos[0] != 1 || len(opt.Bymonthday) != 2 || len(opt.Byweekday) > 0 {
		return false
	}
	a, b := opt.Bymonthday[0], opt.Bymonthday[1]
	return (a == day && b == -1) || (a == -1 && b == day)
}

// byDayIsStartDay accepts the BYDAY=XX that most clients add to a plain
// weekly rule, where XX is the weekday the event starts on.
func byDayIsStartDay(freq recurrence.Frequency, days []rrule.Weekday, start time.Time) bool {
	if freq != recurrence.Weekly || len(days) != 1 || days[0].N() != 0 {
		return false
	}
	// rrule counts from Monday, time.Weekday from Sunday.
	return days[0].Day() == (int(start.Weekday())+6)%7
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

// parsePropTime reads a DTSTART/DTEND property, honouring TZID and
// VALUE=DATE. The result is expressed in loc.
func parsePropTime(p *ical.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	allDay := !strings.Contains(p.Value, "T")
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	t, err := parseICSTime(p.Value, tzOr(p, loc))
	if err != nil {
		return time.Time{}, false, err
	}
	if allDay {
		// Dates are calendar days, not instants: keep them on loc's midnight.
		return civil.DateOf(t).In(loc), true, nil
	}
	return t.In(loc), false, nil
}

// tzOr returns the location named by p's TZID parameter, or loc when it is
// absent or unknown.
func tzOr(p *ical.IANAProperty, loc *time.Location) *time.Location {
	tzs, ok := p.ICalParameters["TZID"]
	if !ok || len(tzs) == 0 {
		return loc
	}
	tz, err := time.LoadLocation(tzs[0])
	if err != nil {
		appLog.Error("unknown TZID; reading as local", err, "tzid", tzs[0])
		return loc
	}
	return tz
}

// parseICSTime parses a basic ICS date or date-time. Floating values are
// read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation(floatingLayout, v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation(dateLayout, v, loc)
}

// wallDiff is the wall-clock distance from start to end.
func wallDiff(start, end time.Time) time.Duration {
	return civil.DateTimeOf(end).In(time.UTC).Sub(civil.DateTimeOf(start).In(time.UTC))
}

var icsDuration = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseICSDuration parses an RFC 5545 dur-value such as PT1H30M or P1D.
// Days count as 24 hours.
func parseICSDuration(v string) (time.Duration, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	m := icsDuration.FindStringSubmatch(v)
	if m == nil || v == "P" || strings.HasSuffix(v, "T") {
		return 0, fmt.Errorf("invalid duration %q", v)
	}

	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

var textUnescaper = strings.NewReplacer(`\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
