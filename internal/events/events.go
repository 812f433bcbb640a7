package events

import "time"

type Type string

const (
	TypeAcquired      Type = "reservation_acquired"
	TypeExtended      Type = "reservation_extended"
	TypeConfirmed     Type = "reservation_confirmed"
	TypeReleased      Type = "reservation_released"
	TypeExpired       Type = "reservation_expired"
	TypeRateLimited   Type = "rate_limit_exceeded"
	TypeCartValidated Type = "cart_validated"
)

// Issue describes one cart line that failed pre-checkout validation.
type Issue struct {
	ItemID    string `json:"item_id"`
	Requested int    `json:"requested_quantity"`
	Available int    `json:"available_quantity"`
	Problem   string `json:"issue"`
}

// Event is emitted toward UI and observability collaborators. Owner is
// always the masked form of the session id, never the raw value.
type Event struct {
	Type       Type          `json:"type"`
	ItemID     string        `json:"item_id,omitempty"`
	Owner      string        `json:"owner,omitempty"`
	Quantity   int           `json:"quantity,omitempty"`
	Available  int           `json:"available,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Issues     []Issue       `json:"issues,omitempty"`
	At         time.Time     `json:"at"`
}

// Emitter receives domain events. Emit must not block; slow consumers
// should buffer on their side.
type Emitter interface {
	Emit(Event)
}

type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }

// Discard drops all events.
var Discard Emitter = EmitterFunc(func(Event) {})

// MaskOwner reduces a session id to a short prefix for event payloads.
func MaskOwner(id string) string {
	const keep = 4
	if len(id) <= keep {
		return id
	}
	return id[:keep] + "***"
}
