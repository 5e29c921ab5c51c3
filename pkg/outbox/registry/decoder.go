package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

type schemaKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry decodes consumer side payloads by event type and envelope
// version. It is safe for concurrent use.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[schemaKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[schemaKey]decoderFunc{}}
}

// NewLifecycleDecoders is preloaded with the v1 schema of every catalog event.
func NewLifecycleDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	for _, e := range catalog {
		reg.Register(e.eventType, 1, e.decode)
	}
	return reg
}

// Register adds or replaces the decoder for one schema version.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder func(json.RawMessage) (any, error)) {
	r.mu.Lock()
	r.decoders[schemaKey{eventType, version}] = decoder
	r.mu.Unlock()
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[schemaKey{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no decoder for %s v%d", eventType, version)
	}
	return decode(payload)
}
