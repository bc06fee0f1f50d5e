package calendar

import (
	"time"

	appLog "pinchy/internal/log"
	"pinchy/internal/model"
)

const (
	// MaxEvents caps an aggregated event list.
	MaxEvents = 50
	// MaxDaysAhead bounds the aggregation window.
	MaxDaysAhead = 90
)

// FileResult is the outcome of parsing one calendar file. Err is set when
// the whole file was skipped; SkippedDefinitions counts individual VEVENTs
// that were dropped from an otherwise readable file.
type FileResult struct {
	Path               string
	Events             []model.Event
	SkippedDefinitions int
	Err                error
}

// Skipped reports whether the file contributed nothing because it failed.
func (r FileResult) Skipped() bool { return r.Err != nil }

// ParseFile parses one .ics file and returns the occurrences inside w.
// Unreadable or malformed files yield an empty list.
func ParseFile(path string, w Window, calendarName string) []model.Event {
	return parseFile(path, w, calendarName).Events
}

func parseFile(path string, w Window, calendarName string) FileResult {
	res := FileResult{Path: path}
	parsed, err := readDefinitions(path, w.Location())
	if err != nil {
		res.Err = err
		return res
	}
	res.SkippedDefinitions = parsed.Skipped
	for _, def := range parsed.Definitions {
		res.Events = append(res.Events, Expand(def, w, calendarName)...)
	}
	return res
}

// Aggregator merges events from every selected collection under a root.
type Aggregator struct {
	// Location is the display zone. Nil means time.Local.
	Location *time.Location
	// Now returns the current time; tests pin it.
	Now func() time.Time
}

// NewAggregator returns an Aggregator rendering events in loc.
func NewAggregator(loc *time.Location) *Aggregator {
	return &Aggregator{Location: loc, Now: time.Now}
}

// Window returns the aggregation window for daysAhead, clamped to [0, 90].
func (a *Aggregator) Window(daysAhead int) Window {
	if daysAhead < 0 {
		daysAhead = 0
	}
	if daysAhead > MaxDaysAhead {
		daysAhead = MaxDaysAhead
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return NewWindow(now(), daysAhead, a.Location)
}

// Aggregate parses every .ics file of the selected collections and returns
// up to MaxEvents events dated within the window, sorted by (date, time).
// An empty selection means every collection.
func (a *Aggregator) Aggregate(root string, selected []string, daysAhead int) []model.Event {
	w := a.Window(daysAhead)
	results := a.Collect(root, selected, w)

	first, last := w.FirstDate(), w.LastDate()
	events := make([]model.Event, 0)
	skippedFiles := 0
	for _, r := range results {
		if r.Skipped() {
			skippedFiles++
			appLog.Debug("calendar file skipped", "path", r.Path, "reason", r.Err)
			continue
		}
		for _, ev := range r.Events {
			// Occurrences already running at window start keep their own
			// start date; only dates inside the window are served.
			if ev.Date < first || ev.Date > last {
				continue
			}
			events = append(events, ev)
		}
	}

	events = Dedupe(events)
	SortEvents(events)
	if len(events) > MaxEvents {
		events = events[:MaxEvents]
	}

	appLog.Debug("calendar aggregate completed",
		"root", root,
		"files", len(results),
		"skipped_files", skippedFiles,
		"events", len(events),
	)
	return events
}

// Collect parses every file of the selected collections into per-file
// results without filtering, sorting or capping.
func (a *Aggregator) Collect(root string, selected []string, w Window) []FileResult {
	want := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		want[id] = struct{}{}
	}

	var results []FileResult
	for _, dir := range listCollectionDirs(root) {
		if len(want) > 0 {
			if _, ok := want[dir.id]; !ok {
				continue
			}
		}
		name := DisplayName(dir.path)
		for _, f := range dir.files {
			results = append(results, parseFile(f, w, name))
		}
	}
	return results
}
