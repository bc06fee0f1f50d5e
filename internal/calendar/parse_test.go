package calendar

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"pinchy/internal/model"
)

func TestParseFileSingleEventWindow(t *testing.T) {
	path := writeICS(t, t.TempDir(), "standup.ics", vevent(
		"UID:standup-1",
		"DTSTAMP:20261001T000000Z",
		"DTSTART:20261015T090000",
		"DTEND:20261015T100000",
		"SUMMARY:  Standup ",
		"LOCATION:Room 1",
	))

	// Entirely outside the window.
	later := NewWindow(time.Date(2026, time.November, 20, 0, 0, 0, 0, time.UTC), 7, time.UTC)
	assert.Empty(t, ParseFile(path, later, "Work"))

	got := ParseFile(path, testWindow(7), "Work")
	require.Len(t, got, 1)
	assert.Equal(t, model.Event{
		Date:     "2026-10-15",
		Time:     "09:00",
		End:      "10:00",
		Title:    "Standup",
		Location: "Room 1",
		Calendar: "Work",
		AllDay:   false,
	}, got[0])
}

func TestParseFileAllDay(t *testing.T) {
	path := writeICS(t, t.TempDir(), "holiday.ics", vevent(
		"UID:holiday",
		"DTSTART;VALUE=DATE:20261016",
		"DTEND;VALUE=DATE:20261017",
		"SUMMARY:Holiday",
	))

	got := ParseFile(path, testWindow(7), "Home")
	require.Len(t, got, 1)
	assert.Equal(t, "2026-10-16", got[0].Date)
	assert.Equal(t, model.AllDayMarker, got[0].Time)
	assert.Equal(t, "", got[0].End)
	assert.True(t, got[0].AllDay)
}

func TestParseFileAllDayWithTimedEnd(t *testing.T) {
	path := writeICS(t, t.TempDir(), "odd.ics", vevent(
		"UID:odd",
		"DTSTART:20261016",
		"DTEND:20261016T120000",
		"SUMMARY:Odd",
	))

	got := ParseFile(path, testWindow(7), "Home")
	require.Len(t, got, 1)
	assert.True(t, got[0].AllDay)
	assert.Equal(t, model.AllDayMarker, got[0].Time)
}

func TestParseFileDefaultsAndOverrides(t *testing.T) {
	path := writeICS(t, t.TempDir(), "misc.ics",
		vevent("UID:no-end", "DTSTART:20261015T140000", "SUMMARY:No End", "X-WR-CALNAME:Ignored"),
		vevent("UID:no-title", "DTSTART:20261015T150000", "DTEND:20261015T153000"),
		vevent("UID:escaped", "DTSTART:20261015T160000", "SUMMARY:Lunch\\, then walk", "LOCATION:Cafe\\; Park"),
	)

	got := ParseFile(path, testWindow(7), "Display Name")
	require.Len(t, got, 3)

	assert.Equal(t, "No End", got[0].Title)
	assert.Equal(t, "", got[0].End)
	assert.Equal(t, "Untitled", got[1].Title)
	assert.Equal(t, "15:30", got[1].End)
	assert.Equal(t, "Lunch, then walk", got[2].Title)
	assert.Equal(t, "Cafe; Park", got[2].Location)
	for _, ev := range got {
		assert.Equal(t, "Display Name", ev.Calendar)
	}
}

func TestParseFileTimezones(t *testing.T) {
	path := writeICS(t, t.TempDir(), "tz.ics",
		vevent("UID:ny", "DTSTART;TZID=America/New_York:20261015T090000", "DTEND;TZID=America/New_York:20261015T100000", "SUMMARY:NY"),
		vevent("UID:utc", "DTSTART:20261015T090000Z", "DTEND:20261015T093000Z", "SUMMARY:UTC"),
		vevent("UID:bad-zone", "DTSTART;TZID=Nowhere/Special:20261015T110000", "SUMMARY:Fallback"),
	)

	got := ParseFile(path, testWindow(7), "TZ")
	require.Len(t, got, 3)

	byTitle := map[string]model.Event{}
	for _, ev := range got {
		byTitle[ev.Title] = ev
	}
	// New York is UTC-4 in October.
	assert.Equal(t, "13:00", byTitle["NY"].Time)
	assert.Equal(t, "14:00", byTitle["NY"].End)
	assert.Equal(t, "09:00", byTitle["UTC"].Time)
	assert.Equal(t, "09:30", byTitle["UTC"].End)
	assert.Equal(t, "11:00", byTitle["Fallback"].Time)
}

func TestParseFileKeepsEventRunningAtWindowStart(t *testing.T) {
	path := writeICS(t, t.TempDir(), "late.ics", vevent(
		"UID:late",
		"DTSTART:20261013T230000",
		"DTEND:20261014T010000",
		"SUMMARY:Late",
	))

	got := ParseFile(path, testWindow(7), "Work")
	require.Len(t, got, 1)
	assert.Equal(t, "2026-10-13", got[0].Date)
}

func TestParseFileRecurringDaily(t *testing.T) {
	path := writeICS(t, t.TempDir(), "daily.ics", vevent(
		"UID:daily",
		"DTSTART:20261001T090000",
		"DTEND:20261001T093000",
		"RRULE:FREQ=DAILY;COUNT=100",
		"SUMMARY:Daily",
	))

	got := ParseFile(path, testWindow(7), "Work")
	// Oct 14..20; Oct 21 09:00 is past the window end at midnight.
	require.Len(t, got, 7)
	assert.Equal(t, "2026-10-14", got[0].Date)
	assert.Equal(t, "2026-10-20", got[6].Date)
	for _, ev := range got {
		assert.Equal(t, "09:00", ev.Time)
		assert.Equal(t, "09:30", ev.End)
	}
}

func TestParseFileRecurringWithoutEndUsesOneHour(t *testing.T) {
	path := writeICS(t, t.TempDir(), "weekly.ics", vevent(
		"UID:weekly",
		"DTSTART:20261015T180000",
		"RRULE:FREQ=WEEKLY",
		"SUMMARY:Choir",
	))

	got := ParseFile(path, testWindow(7), "Home")
	require.Len(t, got, 1)
	assert.Equal(t, "18:00", got[0].Time)
	assert.Equal(t, "19:00", got[0].End)
}

func TestParseFileRecurringAllDay(t *testing.T) {
	path := writeICS(t, t.TempDir(), "bins.ics", vevent(
		"UID:bins",
		"DTSTART;VALUE=DATE:20261001",
		"DTEND;VALUE=DATE:20261002",
		"RRULE:FREQ=WEEKLY;BYDAY=TH",
		"SUMMARY:Bins out",
	))

	got := ParseFile(path, testWindow(7), "Home")
	require.Len(t, got, 1)
	assert.Equal(t, "2026-10-15", got[0].Date)
	assert.True(t, got[0].AllDay)
	assert.Equal(t, "", got[0].End)
}

func TestParseFileRecurringExDate(t *testing.T) {
	path := writeICS(t, t.TempDir(), "ex.ics", vevent(
		"UID:ex",
		"DTSTART:20261015T090000",
		"DTEND:20261015T100000",
		"RRULE:FREQ=DAILY;COUNT=5",
		"EXDATE:20261016T090000,20261018T090000",
		"SUMMARY:Sync",
	))

	got := ParseFile(path, testWindow(7), "Work")
	dates := make([]string, 0, len(got))
	for _, ev := range got {
		dates = append(dates, ev.Date)
	}
	assert.Equal(t, []string{"2026-10-15", "2026-10-17", "2026-10-19"}, dates)
}

func TestParseFileRecurrenceCap(t *testing.T) {
	path := writeICS(t, t.TempDir(), "minutely.ics", vevent(
		"UID:minutely",
		"DTSTART:20261014T000000",
		"DTEND:20261014T000100",
		"RRULE:FREQ=MINUTELY",
		"SUMMARY:Tick",
	))

	w := testWindow(7)
	got := ParseFile(path, w, "Work")
	assert.Len(t, got, maxOccurrencesPerDefinition)
	for _, ev := range got {
		assert.LessOrEqual(t, ev.Date, w.LastDate())
	}
}

func TestParseFileRecurrenceStopsAtWindowEnd(t *testing.T) {
	path := writeICS(t, t.TempDir(), "hourly.ics", vevent(
		"UID:hourly",
		"DTSTART:20261014T200000",
		"RRULE:FREQ=HOURLY",
		"SUMMARY:Ping",
	))

	// One day window ends at 2026-10-15 00:00.
	got := ParseFile(path, testWindow(1), "Work")
	require.Len(t, got, 5)
	last := got[len(got)-1]
	assert.Equal(t, "2026-10-15", last.Date)
	assert.Equal(t, "00:00", last.Time)
}

func TestParseFileBadRRuleFallsBackToSingle(t *testing.T) {
	path := writeICS(t, t.TempDir(), "bad-rule.ics", vevent(
		"UID:bad-rule",
		"DTSTART:20261015T090000",
		"RRULE:FREQ=SOMETIMES",
		"SUMMARY:Once",
	))

	got := ParseFile(path, testWindow(7), "Work")
	require.Len(t, got, 1)
	assert.Equal(t, "Once", got[0].Title)
}

func TestParseFileSkipsBadDefinitions(t *testing.T) {
	path := writeICS(t, t.TempDir(), "mixed.ics",
		vevent("UID:no-start", "SUMMARY:Broken"),
		vevent("UID:bad-start", "DTSTART:tomorrow-ish", "SUMMARY:Broken too"),
		standupEvent(),
	)

	res := parseFile(path, testWindow(7), "Work")
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.SkippedDefinitions)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Standup", res.Events[0].Title)
}

func TestParseFileUnreadable(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.ics")
	writeFile(t, garbage, "this is not a calendar")

	assert.Empty(t, ParseFile(garbage, testWindow(7), "Work"))
	assert.Empty(t, ParseFile(filepath.Join(dir, "missing.ics"), testWindow(7), "Work"))

	res := parseFile(filepath.Join(dir, "missing.ics"), testWindow(7), "Work")
	assert.True(t, res.Skipped())
}

func TestParseTimeValue(t *testing.T) {
	ts, dateOnly, err := parseTimeValue("20261015", nil, time.UTC)
	require.NoError(t, err)
	assert.True(t, dateOnly)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), ts)

	ts, dateOnly, err = parseTimeValue("20261015T090000Z", nil, time.Local)
	require.NoError(t, err)
	assert.False(t, dateOnly)
	assert.True(t, ts.Equal(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)))

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	ts, _, err = parseTimeValue("20261015T090000", map[string][]string{"TZID": {"/mozilla.org/20050126_1/Europe/Berlin"}}, time.UTC)
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2026, 10, 15, 9, 0, 0, 0, berlin)))

	_, _, err = parseTimeValue("", nil, time.UTC)
	assert.Error(t, err)
}

func TestOccurrenceDuration(t *testing.T) {
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Hour, occurrenceDuration(Definition{Start: day.Add(9 * time.Hour)}))
	assert.Equal(t, 30*time.Minute, occurrenceDuration(Definition{
		Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 30*time.Minute), HasEnd: true,
	}))
	assert.Equal(t, 48*time.Hour, occurrenceDuration(Definition{
		Start: day, AllDay: true, End: day.AddDate(0, 0, 2), EndIsDate: true, HasEnd: true,
	}))
	// Mixed kinds fall back to one hour.
	assert.Equal(t, time.Hour, occurrenceDuration(Definition{
		Start: day.Add(9 * time.Hour), End: day.AddDate(0, 0, 1), EndIsDate: true, HasEnd: true,
	}))
}

func TestParseFileUntilIsWallClockWestOfUTC(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	w := NewWindow(testNow, 7, ny)

	path := writeICS(t, t.TempDir(), "until.ics",
		vevent("UID:daily-date", "DTSTART;VALUE=DATE:20261014", "RRULE:FREQ=DAILY;UNTIL=20261016", "SUMMARY:Camp"),
		vevent("UID:daily-floating", "DTSTART:20261014T090000", "DTEND:20261014T100000",
			"RRULE:FREQ=DAILY;UNTIL=20261016T090000", "SUMMARY:Standup"),
	)

	got := ParseFile(path, w, "Work")
	var camp, standup []string
	for _, ev := range got {
		switch ev.Title {
		case "Camp":
			camp = append(camp, ev.Date)
		case "Standup":
			standup = append(standup, ev.Date+" "+ev.Time)
		}
	}
	assert.Equal(t, []string{"2026-10-14", "2026-10-15", "2026-10-16"}, camp)
	assert.Equal(t, []string{"2026-10-14 09:00", "2026-10-15 09:00", "2026-10-16 09:00"}, standup)
}

func TestParseFileLongRunningSubDailyRules(t *testing.T) {
	path := writeICS(t, t.TempDir(), "hourly.ics", vevent(
		"UID:hourly",
		"DTSTART:20140101T000000Z",
		"RRULE:FREQ=HOURLY",
		"SUMMARY:Ping",
	))

	// 23:00 the day before still runs into the window; the window end is inclusive.
	got := ParseFile(path, testWindow(1), "Work")
	require.Len(t, got, 26)
	assert.Equal(t, "2026-10-13", got[0].Date)
	assert.Equal(t, "23:00", got[0].Time)
	assert.Equal(t, "2026-10-14", got[1].Date)
	assert.Equal(t, "00:00", got[1].Time)
	assert.Equal(t, "2026-10-15", got[25].Date)

	path = writeICS(t, t.TempDir(), "minutely.ics", vevent(
		"UID:minutely",
		"DTSTART:20200101T000000Z",
		"DTEND:20200101T000030Z",
		"RRULE:FREQ=MINUTELY",
		"SUMMARY:Tick",
	))
	got = ParseFile(path, testWindow(1), "Work")
	require.Len(t, got, maxOccurrencesPerDefinition)
	assert.Equal(t, "2026-10-14", got[0].Date)
	assert.Equal(t, "00:00", got[0].Time)
	assert.Equal(t, "00:49", got[len(got)-1].Time)
}

func TestAnchorKeepsRuleLattice(t *testing.T) {
	start := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	target := testNow

	got := anchor(rrule.ROption{Freq: rrule.HOURLY, Interval: 3}, start, target)
	assert.False(t, got.After(target))
	assert.True(t, target.Sub(got) < 3*time.Hour)
	assert.Zero(t, got.Sub(start)%(3*time.Hour))

	// Counted and day-or-longer rules keep their own start.
	assert.Equal(t, start, anchor(rrule.ROption{Freq: rrule.HOURLY, Count: 5}, start, target))
	assert.Equal(t, start, anchor(rrule.ROption{Freq: rrule.DAILY}, start, target))
	// A start already past the target is left alone.
	assert.Equal(t, target, anchor(rrule.ROption{Freq: rrule.MINUTELY}, target, start))
}

func TestParseFileTextEscapesDecodedOnce(t *testing.T) {
	path := writeICS(t, t.TempDir(), "escapes.ics", vevent(
		"UID:escapes",
		"DTSTART:20261015T090000",
		`SUMMARY:C:\\new folder`,
		`LOCATION:Room 1\, Floor 2`,
	))

	got := ParseFile(path, testWindow(7), "Work")
	require.Len(t, got, 1)
	assert.Equal(t, `C:\new folder`, got[0].Title)
	assert.Equal(t, "Room 1, Floor 2", got[0].Location)
}

func TestParseFileRecurrenceIDOverride(t *testing.T) {
	path := writeICS(t, t.TempDir(), "moved.ics",
		vevent("UID:weekly", "DTSTART:20261014T090000", "DTEND:20261014T100000", "RRULE:FREQ=WEEKLY", "SUMMARY:Weekly"),
		vevent("UID:weekly", "RECURRENCE-ID:20261021T090000", "DTSTART:20261022T110000", "DTEND:20261022T120000", "SUMMARY:Moved"),
	)

	got := ParseFile(path, testWindow(10), "Work")
	var seen []string
	for _, ev := range got {
		seen = append(seen, ev.Date+" "+ev.Time+" "+ev.Title)
	}
	assert.ElementsMatch(t, []string{
		"2026-10-14 09:00 Weekly",
		"2026-10-22 11:00 Moved",
	}, seen)
}
