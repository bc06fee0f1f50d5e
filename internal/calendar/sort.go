package calendar

import (
	"slices"
	"strings"

	"pinchy/internal/model"
)

// CompareEvents orders events by date, then time of day, with all-day
// events ahead of any clock time on the same date.
func CompareEvents(a, b model.Event) int {
	if c := strings.Compare(a.Date, b.Date); c != 0 {
		return c
	}
	aAll, bAll := a.Time == model.AllDayMarker, b.Time == model.AllDayMarker
	switch {
	case aAll && bAll:
		return 0
	case aAll:
		return -1
	case bAll:
		return 1
	}
	return strings.Compare(a.Time, b.Time)
}

// SortEvents sorts in place. The sort is stable, so sorting an already
// sorted list leaves it unchanged.
func SortEvents(events []model.Event) {
	slices.SortStableFunc(events, CompareEvents)
}

// Dedupe drops events identical in every field, keeping the first.
// An entry present twice in one collection shows up once.
func Dedupe(events []model.Event) []model.Event {
	seen := make(map[model.Event]struct{}, len(events))
	out := events[:0]
	for _, ev := range events {
		if _, ok := seen[ev]; ok {
			continue
		}
		seen[ev] = struct{}{}
		out = append(out, ev)
	}
	return out
}
