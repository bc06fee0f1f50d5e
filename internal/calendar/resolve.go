package calendar

import (
	"os"
	"path/filepath"
	"strings"

	appLog "pinchy/internal/log"
)

// Provenance records which candidate produced a resolved calendar root.
type Provenance string

const (
	ProvenanceConfigured   Provenance = "configured"
	ProvenanceAutoDetected Provenance = "auto-detected"
)

// calendarExt is the extension of files treated as calendar entries.
const calendarExt = ".ics"

// Resolver locates a vdir calendar root. FallbackPaths are probed, in
// order, after the configured path.
type Resolver struct {
	FallbackPaths []string
}

// NewResolver returns a Resolver probing the given fallbacks.
func NewResolver(fallbacks []string) *Resolver {
	return &Resolver{FallbackPaths: append([]string(nil), fallbacks...)}
}

// Candidates returns the ordered, de-duplicated list of paths Resolve probes.
func (r *Resolver) Candidates(configured string) []string {
	out := make([]string, 0, len(r.FallbackPaths)+1)
	if configured != "" {
		out = append(out, configured)
	}
	for _, fb := range r.FallbackPaths {
		if fb == "" || contains(out, fb) {
			continue
		}
		out = append(out, fb)
	}
	return out
}

// Resolve returns the first candidate that is a directory holding at least
// one subdirectory with a .ics file. ok is false when nothing qualifies,
// which callers treat as "no file-based calendars here".
func (r *Resolver) Resolve(configured string) (path string, provenance Provenance, ok bool) {
	for _, candidate := range r.Candidates(configured) {
		resolved, err := resolvePath(candidate)
		if err != nil {
			appLog.Debug("calendar path candidate unavailable", "path", candidate, "reason", err)
			continue
		}
		if !isCalendarRoot(resolved) {
			appLog.Debug("calendar path candidate has no collections", "path", resolved)
			continue
		}
		provenance = ProvenanceAutoDetected
		if candidate == configured {
			provenance = ProvenanceConfigured
		}
		return resolved, provenance, true
	}
	return "", "", false
}

// resolvePath expands "~", makes p absolute and evaluates symlinks.
func resolvePath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func isCalendarRoot(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !isDir(dir, e) {
			continue
		}
		if len(calendarFiles(filepath.Join(dir, e.Name()))) > 0 {
			return true
		}
	}
	return false
}

// isDir follows symlinked collection directories, which vdirsyncer setups
// commonly use.
func isDir(parent string, e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, e.Name()))
	return err == nil && info.IsDir()
}

// calendarFiles lists .ics files directly inside dir, sorted by name.
// Unreadable directories yield nil.
func calendarFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), calendarExt) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
