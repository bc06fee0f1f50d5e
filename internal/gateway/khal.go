package gateway

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"pinchy/internal/model"
)

const (
	eventsPromptTemplate = "Run this exact command and return ONLY its raw output with no explanation, " +
		"no markdown formatting, no code fences:\n" +
		"khal list today %dd --format '{start-date} {start-time} {end-time} {title}'"

	calendarsPrompt = "Run `khal printcalendars` and return ONLY the raw output, nothing else. " +
		"No explanation, no markdown formatting, just the calendar names exactly as printed."

	calendarsMaxTokens = 500
)

// KhalListPrompt is the prompt asking the agent for `khal list` output.
func KhalListPrompt(days int) string {
	return fmt.Sprintf(eventsPromptTemplate, days)
}

// ListEvents asks the agent to run `khal list` for the next days and
// returns its raw text.
func (c *Client) ListEvents(ctx context.Context, days int) (string, error) {
	return c.Complete(ctx, KhalListPrompt(days), 0)
}

// ListCalendars asks the agent for `khal printcalendars` and turns each
// printed name into a collection. File counts are unknown on this path.
func (c *Client) ListCalendars(ctx context.Context) ([]model.Collection, error) {
	content, err := c.Complete(ctx, calendarsPrompt, calendarsMaxTokens)
	if err != nil {
		return nil, err
	}
	return ParseCalendarNames(content), nil
}

var bulletRE = regexp.MustCompile(`^\s*[-*]\s*`)

// ParseCalendarNames parses one calendar name per line, ignoring fences,
// comments and list bullets.
func ParseCalendarNames(content string) []model.Collection {
	out := make([]model.Collection, 0)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") || strings.HasPrefix(line, "#") {
			continue
		}
		name := strings.TrimSpace(bulletRE.ReplaceAllString(line, ""))
		if name == "" {
			continue
		}
		id := strings.NewReplacer(" ", "_", "/", "_").Replace(strings.ToLower(name))
		out = append(out, model.Collection{ID: id, Name: name})
	}
	return out
}
