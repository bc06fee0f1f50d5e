package khal

import (
	"regexp"
	"strings"
	"unicode"

	"pinchy/internal/model"
)

// datePattern accepts any numeric date; ParseDate decides what it means.
const datePattern = `(\d{1,4}[/.\-]\d{1,2}[/.\-]\d{2,4})`

// grammar matches one line shape. A grammar that matches textually but
// whose date does not normalize reports no match, so the next one is tried.
type grammar struct {
	name  string
	match func(line string, st *state) (model.Event, bool)
}

var (
	dateStartEndRE = regexp.MustCompile(`^` + datePattern + `\s+(\d{2}:\d{2})\s+(\d{2}:\d{2})\s+(.+)`)
	dateStartRE    = regexp.MustCompile(`^` + datePattern + `\s+(\d{2}:\d{2})\s+(.+)`)
	dateTitleRE    = regexp.MustCompile(`^` + datePattern + `\s+(.+)`)
	clockRangeRE   = regexp.MustCompile(`^(\d{2}:\d{2})[-\s]+(\d{2}:\d{2})\s+(.+)`)
)

// grammars in priority order.
var grammars = []grammar{
	{name: "date-start-end", match: matchDateStartEnd},
	{name: "date-start", match: matchDateStart},
	{name: "date-all-day", match: matchDateAllDay},
	{name: "header-clock-range", match: matchHeaderClockRange},
	{name: "header-all-day", match: matchHeaderAllDay},
}

// DATE HH:MM HH:MM title
func matchDateStartEnd(line string, _ *state) (model.Event, bool) {
	m := dateStartEndRE.FindStringSubmatch(line)
	if m == nil {
		return model.Event{}, false
	}
	d, ok := ParseDate(m[1])
	if !ok {
		return model.Event{}, false
	}
	return timed(d, m[2], m[3], m[4]), true
}

// DATE HH:MM title
func matchDateStart(line string, _ *state) (model.Event, bool) {
	m := dateStartRE.FindStringSubmatch(line)
	if m == nil {
		return model.Event{}, false
	}
	d, ok := ParseDate(m[1])
	if !ok {
		return model.Event{}, false
	}
	return timed(d, m[2], "", m[3]), true
}

// DATE title
func matchDateAllDay(line string, _ *state) (model.Event, bool) {
	m := dateTitleRE.FindStringSubmatch(line)
	if m == nil {
		return model.Event{}, false
	}
	d, ok := ParseDate(m[1])
	if !ok {
		return model.Event{}, false
	}
	return allDay(d, m[2]), true
}

// HH:MM-HH:MM title, dated by the last header.
func matchHeaderClockRange(line string, st *state) (model.Event, bool) {
	if st.currentDate == "" {
		return model.Event{}, false
	}
	m := clockRangeRE.FindStringSubmatch(line)
	if m == nil {
		return model.Event{}, false
	}
	return timed(st.currentDate, m[1], m[2], m[3]), true
}

// A bare title under a header is an all-day event. Lines starting with a
// digit are leftovers of other shapes and are not titles.
func matchHeaderAllDay(line string, st *state) (model.Event, bool) {
	if st.currentDate == "" {
		return model.Event{}, false
	}
	if r := []rune(line); len(r) == 0 || unicode.IsDigit(r[0]) {
		return model.Event{}, false
	}
	return allDay(st.currentDate, line), true
}

func timed(date, start, end, title string) model.Event {
	return model.Event{
		Date:     date,
		Time:     start,
		End:      end,
		Title:    strings.TrimSpace(title),
		Calendar: model.KhalCalendar,
	}
}

func allDay(date, title string) model.Event {
	return model.Event{
		Date:     date,
		Time:     model.AllDayMarker,
		Title:    strings.TrimSpace(title),
		Calendar: model.KhalCalendar,
		AllDay:   true,
	}
}
