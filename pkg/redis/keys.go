package redis

import "strings"

const keyNamespace = "se"

// Keys builds namespaced redis keys. Empty parts are dropped so optional
// scopes do not leave double separators.
type Keys struct{}

func (Keys) IdempotencyKey(scope, id string) string {
	return joinKey("idempotency", scope, id)
}

func (Keys) RateLimitKey(scope string) string {
	return joinKey("rate_limit", scope)
}

func (Keys) LockKey(name string) string {
	return joinKey("lock", name)
}

func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
