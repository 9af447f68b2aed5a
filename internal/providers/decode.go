package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
)

// DecodeResponse parses model output into a RawResponse, tolerating code fences
// and prose around a single JSON object.
func DecodeResponse(content string) (models.RawResponse, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: no text content", ErrMalformedResponse)
	}

	var raw models.RawResponse
	directErr := json.Unmarshal([]byte(trimmed), &raw)
	if directErr == nil && raw != nil {
		return raw, nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return nil, fmt.Errorf("%w: %v (payload snippet: %s)", ErrMalformedResponse, directErr, snippet(trimmed))
	}
	raw = nil
	if err := json.Unmarshal([]byte(sanitized), &raw); err != nil || raw == nil {
		return nil, fmt.Errorf("%w: %v (sanitized payload snippet: %s)", ErrMalformedResponse, err, snippet(sanitized))
	}
	return raw, nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.Index(trimmed, "\n"); newline >= 0 {
		trimmed = trimmed[newline+1:]
	}
	if end := strings.LastIndex(trimmed, "```"); end >= 0 {
		trimmed = trimmed[:end]
	}
	return strings.TrimSpace(trimmed)
}

func snippet(s string) string {
	const limit = 160
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
