package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"journal_backend/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	path     string
	title    string
	tags     string
	priority string
	body     string
}

func ntfyServer(t *testing.T, status int) (*httptest.Server, chan published, *atomic.Int32) {
	t.Helper()
	got := make(chan published, 8)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		got <- published{
			path:     r.URL.Path,
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got, &calls
}

func newTestClient(url string, retries int) *Client {
	return NewClient(Config{
		BaseURL:  url,
		Topic:    "journal-alerts",
		Priority: "high",
		Enabled:  true,
		Retry:    retry.Config{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})
}

func TestSendPublishesToTopic(t *testing.T) {
	srv, got, _ := ntfyServer(t, http.StatusOK)
	c := newTestClient(srv.URL, 0)

	require.NoError(t, c.Send(context.Background(), Message{Title: "Hello", Body: "body", Tags: []string{"a", "b"}}))
	msg := <-got
	require.Equal(t, "/journal-alerts", msg.path)
	require.Equal(t, "Hello", msg.title)
	require.Equal(t, "a,b", msg.tags)
	require.Equal(t, "high", msg.priority)
	require.Equal(t, "body", msg.body)

	sent, failed := c.Stats()
	require.EqualValues(t, 1, sent)
	require.Zero(t, failed)
}

func TestSendDisabledIsNoop(t *testing.T) {
	srv, _, calls := ntfyServer(t, http.StatusOK)
	c := NewClient(Config{BaseURL: srv.URL, Topic: "journal-alerts"})

	require.NoError(t, c.Send(context.Background(), Message{Body: "ignored"}))
	c.NotifyWindowFull(context.Background(), "C3:C102")
	require.Zero(t, calls.Load())
}

func TestSendRetriesServerErrors(t *testing.T) {
	srv, _, calls := ntfyServer(t, http.StatusBadGateway)
	c := newTestClient(srv.URL, 2)

	err := c.Send(context.Background(), Message{Body: "x"})
	require.Error(t, err)
	require.EqualValues(t, 3, calls.Load())
}

func TestSendDoesNotRetryAuthErrors(t *testing.T) {
	srv, _, calls := ntfyServer(t, http.StatusForbidden)
	c := newTestClient(srv.URL, 3)

	err := c.Send(context.Background(), Message{Body: "x"})
	var notifErr *NotificationError
	require.True(t, errors.As(err, &notifErr))
	require.Equal(t, "auth", notifErr.Type)
	require.EqualValues(t, 1, calls.Load())
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	srv, _, calls := ntfyServer(t, http.StatusBadRequest)
	c := newTestClient(srv.URL, 0)
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < circuitThreshold; i++ {
		require.Error(t, c.Send(context.Background(), Message{Body: "x"}))
	}
	err := c.Send(context.Background(), Message{Body: "x"})
	var notifErr *NotificationError
	require.True(t, errors.As(err, &notifErr))
	require.Equal(t, "circuit_open", notifErr.Type)
	require.EqualValues(t, circuitThreshold, calls.Load())

	now = now.Add(circuitCooldown + time.Second)
	require.Error(t, c.Send(context.Background(), Message{Body: "x"}))
	require.EqualValues(t, circuitThreshold+1, calls.Load())
}

func TestNotifyPartialWriteListsCells(t *testing.T) {
	srv, got, _ := ntfyServer(t, http.StatusOK)
	c := newTestClient(srv.URL, 0)

	c.NotifyPartialWrite(context.Background(), "reset", []string{"N12", "N13"}, []string{"N14"})

	select {
	case msg := <-got:
		require.Equal(t, "Trade journal write incomplete", msg.title)
		require.Contains(t, msg.body, "Updated: N12, N13")
		require.Contains(t, msg.body, "Failed: N14")
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}
