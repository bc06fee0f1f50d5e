package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinchy/internal/config"
)

func chatServer(t *testing.T, status int, content string, seen *chatRequest) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, completionsPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		if status != http.StatusOK {
			http.Error(w, "nope", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(url string) *Client {
	return NewClient(config.GatewayConfig{URL: url + "/", Token: "secret"})
}

func TestListEventsSendsKhalPrompt(t *testing.T) {
	var req chatRequest
	srv, _ := chatServer(t, http.StatusOK, "2026-02-07 09:00 10:00 Standup", &req)

	out, err := newTestClient(srv.URL).ListEvents(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-07 09:00 10:00 Standup", out)

	assert.Equal(t, "openclaw:main", req.Model)
	assert.Equal(t, 2000, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content,
		"khal list today 5d --format '{start-date} {start-time} {end-time} {title}'")
}

func TestListCalendars(t *testing.T) {
	var req chatRequest
	srv, _ := chatServer(t, http.StatusOK, "```\nPersonal\n- Work Stuff\n# note\n* Family/Kids\n```", &req)

	got, err := newTestClient(srv.URL).ListCalendars(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500, req.MaxTokens)
	require.Len(t, got, 3)
	assert.Equal(t, "personal", got[0].ID)
	assert.Equal(t, "Work Stuff", got[1].Name)
	assert.Equal(t, "work_stuff", got[1].ID)
	assert.Equal(t, "family_kids", got[2].ID)
}

func TestCompleteNotConfigured(t *testing.T) {
	_, err := NewClient(config.GatewayConfig{URL: "http://example"}).Complete(context.Background(), "hi", 0)
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilClient *Client
	assert.False(t, nilClient.Configured())
}

func TestCompleteErrors(t *testing.T) {
	srv, _ := chatServer(t, http.StatusInternalServerError, "", nil)
	_, err := newTestClient(srv.URL).Complete(context.Background(), "hi", 0)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)

	srv, _ = chatServer(t, http.StatusOK, "   ", nil)
	_, err = newTestClient(srv.URL).Complete(context.Background(), "hi", 0)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	srv, hits := chatServer(t, http.StatusBadGateway, "", nil)
	c := newTestClient(srv.URL)

	for i := 0; i < breakerFailures; i++ {
		_, err := c.Complete(context.Background(), "hi", 0)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	_, err := c.Complete(context.Background(), "hi", 0)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(breakerFailures), hits.Load())
}

func TestParseCalendarNames(t *testing.T) {
	assert.Empty(t, ParseCalendarNames(""))
	assert.NotNil(t, ParseCalendarNames("```\n```"))

	got := ParseCalendarNames("  Home  \n\n-  \n")
	require.Len(t, got, 1)
	assert.Equal(t, "home", got[0].ID)
	assert.Equal(t, 0, got[0].EventCount)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://gw.local:18789/...(redacted)", redactURL("https://gw.local:18789/some/path?token=x"))
	assert.Equal(t, "gateway://...(redacted)", redactURL("no-scheme"))
}
