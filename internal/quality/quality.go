// Package quality decides whether a normalized record is good enough to keep.
package quality

import (
	"fmt"
	"strings"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
)

// MinConfidence is the acceptance threshold for a provider's confidence score.
const MinConfidence = 0.65

const maxSubsetOptions = 4

// NeedsRetry reports whether the record falls below the acceptance threshold
// or is missing any of year, set, or number.
func NeedsRetry(r models.CardRecord) bool {
	return r.Conf < MinConfidence || len(missingFields(r)) > 0
}

// BuildNudge returns the extra instruction sent with a re-query.
func BuildNudge(r models.CardRecord, capsule models.Capsule) string {
	var parts []string
	if missing := missingFields(r); len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("Fill %s if visible", strings.Join(missing, ", ")))
	}
	if len(capsule.SubsetVocab) > 0 {
		vocab := capsule.SubsetVocab
		if len(vocab) > maxSubsetOptions {
			vocab = vocab[:maxSubsetOptions]
		}
		parts = append(parts, fmt.Sprintf("Subset options: %s", strings.Join(vocab, ", ")))
	}
	if len(parts) == 0 {
		return "Double-check visible text on the back."
	}
	return strings.Join(parts, "; ") + "."
}

func missingFields(r models.CardRecord) []string {
	var missing []string
	if r.Year == nil {
		missing = append(missing, "year")
	}
	if r.Set == nil || strings.TrimSpace(*r.Set) == "" {
		missing = append(missing, "set")
	}
	if r.Number == nil || strings.TrimSpace(*r.Number) == "" {
		missing = append(missing, "num")
	}
	return missing
}
