package khal

import (
	"strings"
	"time"
)

// dateLayouts are tried in order; the first that parses wins. Single digit
// layouts also accept zero padded values.
var dateLayouts = []string{
	"2006-1-2", // YYYY-MM-DD
	"2/1/2006", // DD/MM/YYYY
	"2.1.2006", // DD.MM.YYYY
	"1/2/2006", // MM/DD/YYYY
	"2-1-2006", // DD-MM-YYYY
}

// ParseDate normalizes a date token to YYYY-MM-DD.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
