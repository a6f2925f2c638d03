package web

import (
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	appLog "agendacal/internal/log"
)

// ResolveLocation loads the named zone, falling back to time.Local when the
// name is empty, "Local" or unknown.
func ResolveLocation(name string) *time.Location {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

// ParseDateTime reads a wall-clock date-time such as 2020-11-02T10:00 or
// 2020-11-02T10:00:30 in loc. An explicit RFC 3339 offset is also accepted.
func ParseDateTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty date-time")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(loc), nil
	}
	if len(v) == len("2006-01-02T15:04") {
		v += ":00"
	}
	dt, err := civil.ParseDateTime(v)
	if err != nil {
		return time.Time{}, err
	}
	return dt.In(loc), nil
}
