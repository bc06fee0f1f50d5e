package calendar

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	appLog "pinchy/internal/log"
	"pinchy/internal/model"
)

// vdir metadata files written by vdirsyncer next to the .ics entries.
const (
	displayNameFile = "displayname"
	colorFile       = "color"
)

// collectionDir is one subdirectory of a root that holds calendar files.
type collectionDir struct {
	id    string
	path  string
	files []string
}

// listCollectionDirs returns subdirectories of root with at least one .ics
// file, ordered by directory name.
func listCollectionDirs(root string) []collectionDir {
	entries, err := os.ReadDir(root)
	if err != nil {
		appLog.Debug("calendar root unreadable", "path", root, "reason", err)
		return nil
	}

	// os.ReadDir already sorts by filename.
	out := make([]collectionDir, 0, len(entries))
	for _, e := range entries {
		if !isDir(root, e) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		files := calendarFiles(dir)
		if len(files) == 0 {
			continue
		}
		out = append(out, collectionDir{id: e.Name(), path: dir, files: files})
	}
	return out
}

// ListCollections describes every collection under root. A single bad
// entry never fails the whole listing.
func ListCollections(root string) []model.Collection {
	dirs := listCollectionDirs(root)
	out := make([]model.Collection, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, model.Collection{
			ID:         d.id,
			Name:       DisplayName(d.path),
			Path:       d.path,
			EventCount: len(d.files),
			Color:      readMeta(d.path, colorFile),
		})
	}
	return out
}

// DisplayName returns the collection's displayname file content, or a
// humanized form of the directory name when the file is missing or empty.
func DisplayName(dir string) string {
	if name := readMeta(dir, displayNameFile); name != "" {
		return name
	}
	return Humanize(filepath.Base(dir))
}

// Humanize turns a directory id like "work_shared-cal" into "Work Shared Cal".
func Humanize(id string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(id)

	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func readMeta(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			appLog.Debug("calendar metadata unreadable", "path", filepath.Join(dir, name), "reason", err)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}
