package agenda

import (
	"errors"
	"slices"

	"cloud.google.com/go/civil"

	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls range expansion.
type ExpandConfig struct {
	// From / To define the inclusive date window.
	From civil.Date
	To   civil.Date

	// MaxOccurrencesPerEvent is a safety cap against never-ending
	// recurrences over long windows. If zero, defaultMaxOccurrencesPerEvent
	// is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded occurrences and the titles of events
// that hit the per-event cap.
type ExpandResult struct {
	Occurrences     []model.Occurrence
	TruncatedEvents []string
}

// Expand lists the occurrences of every event whose date falls within the
// configured window, ordered by start time. Occurrences starting at the
// same instant keep the agenda's insertion order.
func (a *Agenda) Expand(cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.To.Before(cfg.From) {
		return result, errors.New("expand: To is before From")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	all := make([]model.Occurrence, 0)
	for _, e := range a.events {
		occ, hitCap := e.OccurrencesBetween(cfg.From, cfg.To, cfg.MaxOccurrencesPerEvent)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, e.Title())
			appLog.Error("expand: truncated occurrences for event due to cap",
				errors.New("max occurrences reached"),
				"title", e.Title(),
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		all = append(all, occ...)
	}

	slices.SortStableFunc(all, func(x, y model.Occurrence) int {
		return x.Start.Compare(y.Start)
	})

	appLog.Debug("expand completed",
		"from", cfg.From.String(),
		"to", cfg.To.String(),
		"occurrences", len(all),
	)

	result.Occurrences = all
	return result, nil
}
