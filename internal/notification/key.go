package notification

import (
	"encoding/json"
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
)

// Key is the opaque token carried through the notification channel. Only the
// event id travels; the consumer re-reads the event at fire time, so the
// channel stays decoupled from event schema evolution and naturally tolerates
// events deactivated between scheduling and firing.
type Key struct {
	EventID string `json:"event_id"`
}

// Envelope is the wire form of a scheduled notification. Scope identifiers
// are captured from the scheduling call's context so the consumer can rebuild
// an equivalent context when it fires.
type Envelope struct {
	Key         Key       `json:"key"`
	EffectiveAt time.Time `json:"effective_at"`
	UserToken   string    `json:"user_token"`
	AccountID   string    `json:"account_id"`
	TenantID    string    `json:"tenant_id"`
}

func (e *Envelope) Marshal() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode notification envelope").
			Mark(ierr.ErrSystem)
	}
	return payload, nil
}

func UnmarshalEnvelope(payload []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to decode notification envelope").
			Mark(ierr.ErrValidation)
	}
	return &envelope, nil
}
