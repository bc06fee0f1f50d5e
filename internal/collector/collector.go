// Package collector periodically writes the dashboard snapshot consumed by
// GET /api/data.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pinchy/internal/agenda"
	"pinchy/internal/config"
	appLog "pinchy/internal/log"
	"pinchy/internal/model"
)

// snapshotFile is the snapshot name under the data directory.
const snapshotFile = "data.json"

// SnapshotPath returns where the snapshot lives under dataDir.
func SnapshotPath(dataDir string) string {
	return filepath.Join(dataDir, snapshotFile)
}

// Snapshot is the document written by each collection.
type Snapshot struct {
	Calendar       []model.Event `json:"calendar"`
	CalendarSource agenda.Source `json:"calendarSource"`
	GeneratedAt    time.Time     `json:"generatedAt"`
}

// EventSource supplies the events for a snapshot.
type EventSource interface {
	Events(ctx context.Context, days int) agenda.Result
}

// Collector builds snapshots from an EventSource.
type Collector struct {
	source   EventSource
	dataDir  string
	days     int
	limit    int
	schedule string

	// Now returns the snapshot timestamp; tests pin it.
	Now func() time.Time

	// Serializes runs; a triggered collection may overlap a scheduled one.
	mu sync.Mutex
}

// New returns a Collector using cfg's data_dir, days_ahead,
// dashboard_events and collect_cron.
func New(cfg *config.Config, src EventSource) *Collector {
	return &Collector{
		source:   src,
		dataDir:  cfg.DataDir,
		days:     cfg.DaysAhead,
		limit:    cfg.DashboardEvents,
		schedule: cfg.CollectCron,
		Now:      time.Now,
	}
}

// Snapshot builds a snapshot without writing it.
func (c *Collector) Snapshot(ctx context.Context) Snapshot {
	res := c.source.Events(ctx, c.days)
	events := res.Events
	if events == nil {
		events = []model.Event{}
	}
	if c.limit > 0 && len(events) > c.limit {
		events = events[:c.limit]
	}
	return Snapshot{
		Calendar:       events,
		CalendarSource: res.Source,
		GeneratedAt:    c.Now().UTC(),
	}
}

// Collect builds a snapshot and writes it atomically to the data directory.
func (c *Collector) Collect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	snap := c.Snapshot(ctx)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	path := SnapshotPath(c.dataDir)
	if err := config.WriteFileAtomic(path, data, ".pinchy-data-*.tmp"); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	appLog.Info("snapshot written",
		"path", path,
		"events", len(snap.Calendar),
		"source", snap.CalendarSource,
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	return nil
}

// Read loads the last snapshot from dataDir.
func Read(dataDir string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(SnapshotPath(dataDir))
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Run collects once immediately, then on the configured cron schedule
// until ctx is done.
func (c *Collector) Run(ctx context.Context) error {
	sched, err := cron.ParseStandard(c.schedule)
	if err != nil {
		return fmt.Errorf("invalid collect_cron %q: %w", c.schedule, err)
	}

	runOnce := func() {
		if err := c.Collect(ctx); err != nil {
			appLog.Error("collection failed", err)
		}
	}
	runOnce()

	cr := cron.New()
	cr.Schedule(sched, cron.FuncJob(runOnce))
	cr.Start()
	appLog.Info("collector scheduled", "cron", c.schedule, "next", sched.Next(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	<-cr.Stop().Done()
	appLog.Info("collector stopped")
	return nil
}
