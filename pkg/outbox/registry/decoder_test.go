package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventFoodExpired, 2, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	output, err := reg.Decode(enums.EventFoodExpired, 2, json.RawMessage(`{"title":"bread"}`))
	require.NoError(t, err)
	require.Equal(t, map[string]string{"title": "bread"}, output)

	_, err = reg.Decode(enums.EventFoodExpired, 1, json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestLifecycleDecoders(t *testing.T) {
	reg := NewLifecycleDecoders()
	matchID := uuid.New()

	raw, err := json.Marshal(payloads.MatchAcceptedEvent{MatchID: matchID, Title: "Bagels"})
	require.NoError(t, err)

	out, err := reg.Decode(enums.EventMatchAccepted, 1, raw)
	require.NoError(t, err)
	evt, ok := out.(*payloads.MatchAcceptedEvent)
	require.True(t, ok)
	require.Equal(t, matchID, evt.MatchID)

	_, err = reg.Decode(enums.EventMatchAccepted, 1, json.RawMessage(`{"match_id":42}`))
	require.Error(t, err)
}
