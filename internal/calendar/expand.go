package calendar

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "pinchy/internal/log"
	"pinchy/internal/model"
)

const (
	// maxOccurrencesPerDefinition caps the occurrences kept for one RRULE.
	maxOccurrencesPerDefinition = 50

	defaultDuration = time.Hour

	untitled = "Untitled"
)

// Window is the range occurrences are selected from. Start and End are
// inclusive; Start's location is the display zone for rendered events.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns [midnight of now, midnight of now + daysAhead] in loc.
func NewWindow(now time.Time, daysAhead int, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	n := now.In(loc)
	start := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, daysAhead)}
}

// Location is the display zone of the window.
func (w Window) Location() *time.Location {
	if loc := w.Start.Location(); loc != nil {
		return loc
	}
	return time.Local
}

// FirstDate and LastDate are the YYYY-MM-DD bounds of the window.
func (w Window) FirstDate() string { return w.Start.Format(dateLayout) }
func (w Window) LastDate() string  { return w.End.In(w.Location()).Format(dateLayout) }

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Expand turns a definition into the events that fall inside w.
// Definitions with an RRULE are expanded; an RRULE that does not parse
// degrades to single-event handling.
func Expand(def Definition, w Window, calendarName string) []model.Event {
	if def.RRule != "" {
		events, err := expandRecurring(def, w, calendarName)
		if err == nil {
			return events
		}
		appLog.Debug("rrule unusable, treating as single event", "uid", def.UID, "rrule", def.RRule, "reason", err)
	}
	return expandSingle(def, w, calendarName)
}

func expandSingle(def Definition, w Window, calendarName string) []model.Event {
	start := def.Start
	if start.After(w.End) {
		return nil
	}

	end := start.Add(defaultDuration)
	if def.HasEnd {
		end = def.End
	}
	if end.Before(w.Start) {
		return nil
	}

	// A date-only DTEND carries no clock time to show.
	hasClockEnd := def.HasEnd && !def.EndIsDate
	return []model.Event{makeEvent(def, start, end, hasClockEnd, calendarName, w.Location())}
}

func expandRecurring(def Definition, w Window, calendarName string) ([]model.Event, error) {
	// A zoneless UNTIL is wall clock in DTSTART's zone, like DTSTART itself.
	opt, err := rrule.StrToROptionInLocation(strings.TrimPrefix(def.RRule, "RRULE:"), def.Start.Location())
	if err != nil {
		return nil, err
	}

	// Duration is fixed per definition; every occurrence reuses it.
	dur := occurrenceDuration(def)

	opt.Dtstart = anchor(*opt, def.Start, w.Start.Add(-dur))
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, err
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range def.ExDates {
		set.ExDate(ex.In(def.Start.Location()))
	}

	next := set.Iterator()
	out := make([]model.Event, 0)
	for {
		occStart, ok := next()
		if !ok || occStart.After(w.End) {
			break
		}
		occEnd := occStart.Add(dur)
		if occStart.Before(w.Start) && occEnd.Before(w.Start) {
			continue
		}
		// Occurrences of timed definitions always have a computed end.
		out = append(out, makeEvent(def, occStart, occEnd, !def.AllDay, calendarName, w.Location()))
		if len(out) >= maxOccurrencesPerDefinition {
			appLog.Debug("rrule expansion capped", "uid", def.UID, "cap", maxOccurrencesPerDefinition)
			break
		}
	}
	return out, nil
}

// anchor moves the start of an uncounted sub-daily rule forward by whole
// periods so iteration begins just before target. The occurrence set is
// unchanged: every occurrence lies on start + k*period.
func anchor(opt rrule.ROption, start, target time.Time) time.Time {
	if opt.Count > 0 || !start.Before(target) {
		return start
	}
	var unit time.Duration
	switch opt.Freq {
	case rrule.HOURLY:
		unit = time.Hour
	case rrule.MINUTELY:
		unit = time.Minute
	case rrule.SECONDLY:
		unit = time.Second
	default:
		return start
	}
	interval := opt.Interval
	if interval <= 0 {
		interval = 1
	}
	period := unit * time.Duration(interval)
	return start.Add(target.Sub(start) / period * period)
}

// occurrenceDuration derives the length of each occurrence from DTSTART
// and DTEND of the same kind, defaulting to one hour.
func occurrenceDuration(def Definition) time.Duration {
	if !def.HasEnd || def.AllDay != def.EndIsDate {
		return defaultDuration
	}
	if d := def.End.Sub(def.Start); d >= 0 {
		return d
	}
	return defaultDuration
}

func makeEvent(def Definition, start, end time.Time, hasClockEnd bool, calendarName string, loc *time.Location) model.Event {
	ev := model.Event{
		Title:    strings.TrimSpace(def.Summary),
		Location: strings.TrimSpace(def.Location),
		Calendar: calendarName,
		AllDay:   def.AllDay,
	}
	if ev.Title == "" {
		ev.Title = untitled
	}

	if def.AllDay {
		// Date-only values are already midnight in the display zone.
		ev.Date = start.Format(dateLayout)
		ev.Time = model.AllDayMarker
		return ev
	}

	s := start.In(loc)
	ev.Date = s.Format(dateLayout)
	ev.Time = s.Format(clockLayout)
	if hasClockEnd {
		ev.End = end.In(loc).Format(clockLayout)
	}
	return ev
}
