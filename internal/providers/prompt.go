package providers

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

const maxPromptExemplars = 2

// DefaultRules is sent as the system prompt when no rules text is configured.
const DefaultRules = "You are a card cataloger. Return only JSON using keys: sku, cat, brand, set, year, " +
	"player or character, num, subset, variant, serial, auto, mem, grade, cond, notes, price_est, conf. " +
	"Use images first; hints second. Populate only what is present. If uncertain, set conf < 0.7 and say why in notes. " +
	"For sports use 'player'; for non-sports use 'character'. Output exactly one JSON object."

// SystemPrompt returns the rules text for the request.
func SystemPrompt(req Request) string {
	if rules := strings.TrimSpace(req.Hints.Rules); rules != "" {
		return rules
	}
	return DefaultRules
}

// UserPromptParts returns the text blocks that precede the two images: the
// condensed hints, up to two few-shot examples, the nudge, and an image caption
// carrying the item identifier.
func UserPromptParts(req Request) []string {
	var parts []string

	capsule, err := json.Marshal(req.Hints.Capsule)
	if err != nil {
		capsule = []byte("{}")
	}
	parts = append(parts, "Hints: "+string(capsule))

	exemplars := req.Hints.Exemplars
	if len(exemplars) > maxPromptExemplars {
		exemplars = exemplars[:maxPromptExemplars]
	}
	if len(exemplars) > 0 {
		parts = append(parts, "Few-shot:")
		for _, ex := range exemplars {
			body, err := json.Marshal(map[string]any{"input": ex.Input, "output": ex.Output})
			if err != nil {
				continue
			}
			parts = append(parts, string(body))
		}
	}

	if nudge := strings.TrimSpace(req.Hints.Nudge); nudge != "" {
		parts = append(parts, "Nudge: "+nudge)
	}

	parts = append(parts, fmt.Sprintf("Images: front=%s, back=%s; sku=%s",
		filepath.Base(req.FrontImage), filepath.Base(req.BackImage), req.Hints.ItemID))
	return parts
}

// UserPrompt joins the prompt parts for backends that take a single string.
func UserPrompt(req Request) string {
	return strings.Join(UserPromptParts(req), "\n")
}
