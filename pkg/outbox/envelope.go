package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

// EnvelopeVersion is written on every new event. Readers treat a missing
// version as 1.
const EnvelopeVersion = 1

var ErrMalformedEnvelope = errors.New("malformed outbox envelope")

type ActorRef struct {
	UserID uuid.UUID      `json:"userId"`
	Role   enums.UserRole `json:"role,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload_json holds and what goes out
// as the Pub/Sub message body. EventID is the outbox row id.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ParseEnvelope decodes raw and checks it names an event and carries data.
// Every failure wraps ErrMalformedEnvelope; retrying will not fix it.
func ParseEnvelope(raw []byte) (PayloadEnvelope, uuid.UUID, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, uuid.Nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return env, uuid.Nil, fmt.Errorf("%w: event id %q", ErrMalformedEnvelope, env.EventID)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, id, fmt.Errorf("%w: event %s has no data", ErrMalformedEnvelope, id)
	}
	if env.Version <= 0 {
		env.Version = EnvelopeVersion
	}
	return env, id, nil
}
