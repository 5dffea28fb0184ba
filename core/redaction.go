package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactSensitiveMap copies metadata with secret-bearing values replaced, so
// log fields never carry a subscription secret or a hub challenge.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	case Subscription:
		typed.Secret = redactSecret(typed.Secret)
		return typed
	case *Subscription:
		if typed == nil {
			return typed
		}
		copied := *typed
		copied.Secret = redactSecret(copied.Secret)
		return &copied
	default:
		return value
	}
}

func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return RedactedValue
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	for _, token := range []string{"secret", "challenge", "password", "token", "authorization", "signature"} {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "subscription_id",
		"topic",
		"mode",
		"outcome",
		"idempotency_key",
		"trace_id",
		"request_id":
		return true
	default:
		return false
	}
}
