package providers

import (
	"strings"
	"testing"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestUserPromptParts(t *testing.T) {
	req := Request{
		FrontImage: "/tmp/job/Box1-MM_0001/Box1-MM_0001_F.jpg",
		BackImage:  "/tmp/job/Box1-MM_0001/Box1-MM_0001_B.jpg",
		Hints: models.HintPayload{
			ItemID:  "Box1-MM_0001",
			Capsule: models.Capsule{LikelyCategory: models.CategoryMarvel},
			Exemplars: []models.Exemplar{
				{Input: "one", Output: map[string]any{"set": "A"}},
				{Input: "two", Output: map[string]any{"set": "B"}},
				{Input: "three", Output: map[string]any{"set": "C"}},
			},
			Nudge: "Fill year if visible.",
		},
	}

	parts := UserPromptParts(req)

	assert.True(t, strings.HasPrefix(parts[0], "Hints: "))
	assert.Contains(t, parts[0], `"likely_cat":"marvel"`)
	assert.Equal(t, "Few-shot:", parts[1])
	assert.Contains(t, parts[2], `"input":"one"`)
	assert.Contains(t, parts[3], `"input":"two"`)
	assert.NotContains(t, strings.Join(parts, "\n"), "three")
	assert.Equal(t, "Nudge: Fill year if visible.", parts[4])
	assert.Equal(t, "Images: front=Box1-MM_0001_F.jpg, back=Box1-MM_0001_B.jpg; sku=Box1-MM_0001", parts[5])
}

func TestUserPromptPartsWithoutOptionalSections(t *testing.T) {
	parts := UserPromptParts(Request{FrontImage: "f.jpg", BackImage: "f.jpg", Hints: models.HintPayload{ItemID: "Box1-AA_0001"}})
	assert.Len(t, parts, 2)
	assert.Equal(t, "Images: front=f.jpg, back=f.jpg; sku=Box1-AA_0001", parts[1])
}

func TestSystemPromptFallsBackToDefaultRules(t *testing.T) {
	assert.Equal(t, DefaultRules, SystemPrompt(Request{}))
	assert.Equal(t, "custom", SystemPrompt(Request{Hints: models.HintPayload{Rules: "  custom \n"}}))
}
