// Package mock provides the offline backend and the placeholder record used
// whenever a live call cannot produce one.
package mock

import (
	"context"
	"strconv"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
	"github.com/ageless-collectibles/cardcataloger/internal/providers"
	"github.com/ageless-collectibles/cardcataloger/internal/sku"
)

// PlaceholderConfidence is below the acceptance threshold so placeholders are always flagged for review.
const PlaceholderConfidence = 0.62

// Mock returns placeholder records without contacting any service.
type Mock struct{}

// New returns a new Mock provider
func New() *Mock {
	return &Mock{}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Live() bool { return false }

// Analyze returns the placeholder record for the request's item.
func (m *Mock) Analyze(ctx context.Context, req providers.Request) (models.RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Placeholder(req.Hints.ItemID, req.Hints.Capsule), nil
}

// Placeholder synthesizes a deterministic response from the identifier and the
// capsule's category guess.
func Placeholder(itemID string, capsule models.Capsule) models.RawResponse {
	cat := capsule.LikelyCategory
	if cat == "" {
		cat = models.CategoryOther
	}
	raw := models.RawResponse{
		"sku":       itemID,
		"cat":       string(cat),
		"brand":     "Ageless",
		"set":       "Prototype",
		"year":      2025,
		"subset":    "Base",
		"variant":   "",
		"serial":    "",
		"auto":      false,
		"mem":       false,
		"grade":     models.DefaultGrade,
		"cond":      string(models.ConditionRawEstimate),
		"notes":     "Mock response",
		"price_est": 0.0,
		"conf":      PlaceholderConfidence,
	}
	if parsed, err := sku.Parse(itemID); err == nil {
		raw["num"] = strconv.Itoa(parsed.Seq)
	}
	if cat.UsesPlayer() {
		raw["player"] = "TBD"
	} else {
		raw["character"] = "TBD"
	}
	return raw
}
