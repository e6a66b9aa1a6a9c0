package amqp

import (
	"encoding/json"
	"time"
)

// RefreshEvent announces the outcome of a background data refresh.
// Consumers get only the credential ID and outcome, they fetch the
// snapshot itself from storage if they need it.
type RefreshEvent struct {
	KeyID     string    `json:"key_id"`
	Currency  string    `json:"currency"`
	Entries   int       `json:"entries"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRefreshCompleted creates an event for a successful refresh.
func NewRefreshCompleted(keyID, currency string, entries int) *RefreshEvent {
	return &RefreshEvent{
		KeyID:     keyID,
		Currency:  currency,
		Entries:   entries,
		Timestamp: time.Now(),
	}
}

// NewRefreshFailed creates an event for a failed refresh.
func NewRefreshFailed(keyID, currency, errMsg string) *RefreshEvent {
	return &RefreshEvent{
		KeyID:     keyID,
		Currency:  currency,
		Error:     errMsg,
		Timestamp: time.Now(),
	}
}

// Failed reports whether the event describes a failed refresh.
func (e *RefreshEvent) Failed() bool {
	return e.Error != ""
}

// ToJSON converts the event to JSON bytes.
func (e *RefreshEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// RefreshEventFromJSON creates an event from JSON bytes.
func RefreshEventFromJSON(data []byte) (*RefreshEvent, error) {
	var ev RefreshEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
