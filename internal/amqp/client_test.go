package amqp

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNewRefreshCompleted(t *testing.T) {
	ev := NewRefreshCompleted("key-1", "EUR", 42)

	if ev.KeyID != "key-1" || ev.Currency != "EUR" || ev.Entries != 42 {
		t.Errorf("NewRefreshCompleted() = %+v", ev)
	}
	if ev.Failed() {
		t.Error("completed event should not report Failed()")
	}
	if ev.Timestamp.IsZero() || time.Since(ev.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestNewRefreshFailed(t *testing.T) {
	ev := NewRefreshFailed("key-1", "USD", "exceeded limit")

	if !ev.Failed() {
		t.Error("failed event should report Failed()")
	}
	if ev.Error != "exceeded limit" {
		t.Errorf("Error = %q, want %q", ev.Error, "exceeded limit")
	}
}

func TestRefreshEvent_JSON(t *testing.T) {
	ev := &RefreshEvent{
		KeyID:     "key-1",
		Currency:  "GBP",
		Entries:   7,
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if strings.Contains(string(body), `"error"`) {
		t.Error("error field should be omitted on success events")
	}

	parsed, err := RefreshEventFromJSON(body)
	if err != nil {
		t.Fatalf("RefreshEventFromJSON() error = %v", err)
	}
	if parsed.KeyID != ev.KeyID || parsed.Entries != ev.Entries {
		t.Errorf("parsed = %+v, want %+v", parsed, ev)
	}
	if !parsed.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, ev.Timestamp)
	}
}

func TestRefreshEventFromJSON_Invalid(t *testing.T) {
	if _, err := RefreshEventFromJSON([]byte(`{"entries": "many"}`)); err == nil {
		t.Error("RefreshEventFromJSON() should fail with invalid JSON")
	}
}

func TestNilClientIsNoOp(t *testing.T) {
	var c *Client

	if err := c.PublishRefreshEvent(context.Background(), NewRefreshCompleted("k", "USD", 1)); err != nil {
		t.Errorf("nil client PublishRefreshEvent() = %v, want nil", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("nil client Close() = %v, want nil", err)
	}
}
