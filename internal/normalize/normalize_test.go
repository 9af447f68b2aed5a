package normalize

import (
	"errors"
	"testing"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAliasesAndCoercion(t *testing.T) {
	record, err := Normalize(models.RawResponse{
		"sku":       "  Box1-SP_0001  ",
		"cat":       "Sports Cards",
		"brand":     " ",
		"set":       "Legends",
		"year":      "1999",
		"player":    "  Ken Griffey Jr.  ",
		"character": "Spider-Man",
		"num":       float64(15),
		"subset":    " ",
		"variant":   "",
		"auto":      "yes",
		"mem":       "no",
		"grade":     "",
		"cond":      "Near Mint",
		"notes":     "  Great card  ",
		"price_est": "12.5",
		"conf":      "0.82",
	})
	require.NoError(t, err)

	assert.Equal(t, "Box1-SP_0001", record.SKU)
	assert.Equal(t, models.CategorySports, record.Category)
	require.NotNil(t, record.Condition)
	assert.Equal(t, models.ConditionNM, *record.Condition)
	require.NotNil(t, record.Year)
	assert.Equal(t, 1999, *record.Year)
	require.NotNil(t, record.Player)
	assert.Equal(t, "Ken Griffey Jr.", *record.Player)
	assert.Nil(t, record.Character)
	require.NotNil(t, record.Number)
	assert.Equal(t, "15", *record.Number)
	assert.Nil(t, record.Brand)
	assert.Nil(t, record.Subset)
	assert.Nil(t, record.Variant)
	assert.Nil(t, record.Serial)
	assert.True(t, record.Auto)
	assert.False(t, record.Mem)
	assert.Equal(t, "raw", record.Grade)
	require.NotNil(t, record.Notes)
	assert.Equal(t, "Great card", *record.Notes)
	require.NotNil(t, record.PriceEst)
	assert.InDelta(t, 12.5, *record.PriceEst, 1e-9)
	assert.InDelta(t, 0.82, record.Conf, 1e-9)
}

func TestNormalizeIdentityExclusivity(t *testing.T) {
	tests := []struct {
		name          string
		raw           models.RawResponse
		wantCategory  models.Category
		wantPlayer    string
		wantCharacter string
	}{
		{
			name:          "non sports keeps character",
			raw:           models.RawResponse{"sku": "X", "cat": "Pokémon", "player": "Ash", "character": "Pikachu", "conf": 0.5},
			wantCategory:  models.CategoryPokemon,
			wantCharacter: "Pikachu",
		},
		{
			name:         "sports keeps player",
			raw:          models.RawResponse{"sku": "X", "cat": "sport", "player": "Jordan", "character": "Space Jam", "conf": 0.5},
			wantCategory: models.CategorySports,
			wantPlayer:   "Jordan",
		},
		{
			name:         "sports moves character into player",
			raw:          models.RawResponse{"sku": "X", "cat": "sports", "character": "Jordan", "conf": 0.5},
			wantCategory: models.CategorySports,
			wantPlayer:   "Jordan",
		},
		{
			name:          "marvel moves player into character",
			raw:           models.RawResponse{"sku": "X", "cat": "collectible-franchise", "player": "Wolverine", "conf": 0.5},
			wantCategory:  models.CategoryMarvel,
			wantCharacter: "Wolverine",
		},
		{
			name:          "unknown category falls back to other",
			raw:           models.RawResponse{"sku": "X", "cat": "baseball-ish", "character": "Mascot", "conf": 0.5},
			wantCategory:  models.CategoryOther,
			wantCharacter: "Mascot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCategory, record.Category)
			assert.Equal(t, tt.wantPlayer, deref(record.Player))
			assert.Equal(t, tt.wantCharacter, deref(record.Character))
			assert.False(t, record.Player != nil && record.Character != nil)
		})
	}
}

func TestNormalizeMinimalPayloadDefaults(t *testing.T) {
	record, err := Normalize(models.RawResponse{"sku": "Box1-AA_0001", "conf": 0.9, "price_est": 0.0})
	require.NoError(t, err)

	assert.Equal(t, models.CategoryOther, record.Category)
	assert.Equal(t, "raw", record.Grade)
	assert.False(t, record.Auto)
	assert.False(t, record.Mem)
	assert.Nil(t, record.PriceEst)
	assert.Nil(t, record.Condition)
	assert.Nil(t, record.Year)
	assert.Nil(t, record.Number)
}

func TestNormalizeCoercionEdges(t *testing.T) {
	tests := []struct {
		name  string
		raw   models.RawResponse
		check func(t *testing.T, r models.CardRecord)
	}{
		{
			name: "non numeric year is dropped",
			raw:  models.RawResponse{"sku": "X", "conf": 1, "year": "circa 1990"},
			check: func(t *testing.T, r models.CardRecord) {
				assert.Nil(t, r.Year)
			},
		},
		{
			name: "huge float year is dropped",
			raw:  models.RawResponse{"sku": "X", "conf": 1, "year": 1e300},
			check: func(t *testing.T, r models.CardRecord) {
				assert.Nil(t, r.Year)
			},
		},
		{
			name: "fractional year is dropped",
			raw:  models.RawResponse{"sku": "X", "conf": 1, "year": 1999.5},
			check: func(t *testing.T, r models.CardRecord) {
				assert.Nil(t, r.Year)
			},
		},
		{
			name: "five digit year string is dropped",
			raw:  models.RawResponse{"sku": "X", "conf": 1, "year": "19999"},
			check: func(t *testing.T, r models.CardRecord) {
				assert.Nil(t, r.Year)
			},
		},
		{
			name: "integral float year is kept",
			raw:  models.RawResponse{"sku": "X", "conf": 1, "year": float64(1987)},
			check: func(t *testing.T, r models.CardRecord) {
				require.NotNil(t, r.Year)
				assert.Equal(t, 1987, *r.Year)
			},
		},
		{
			name: "malformed confidence becomes zero",
			raw:  models.RawResponse{"sku": "X", "conf": "high"},
			check: func(t *testing.T, r models.CardRecord) {
				assert.Equal(t, 0.0, r.Conf)
			},
		},
		{
			name: "confidence is clamped",
			raw:  models.RawResponse{"sku": "X", "conf": 7.5},
			check: func(t *testing.T, r models.CardRecord) {
				assert.Equal(t, 1.0, r.Conf)
			},
		},
		{
			name: "negative price is dropped",
			raw:  models.RawResponse{"sku": "X", "conf": 0.7, "price_est": -3},
			check: func(t *testing.T, r models.CardRecord) {
				assert.Nil(t, r.PriceEst)
			},
		},
		{
			name: "unknown condition is absent",
			raw:  models.RawResponse{"sku": "X", "conf": 0.7, "cond": "pristine"},
			check: func(t *testing.T, r models.CardRecord) {
				assert.Nil(t, r.Condition)
			},
		},
		{
			name: "uppercase condition code",
			raw:  models.RawResponse{"sku": "X", "conf": 0.7, "cond": "RAW-ESTIMATE"},
			check: func(t *testing.T, r models.CardRecord) {
				require.NotNil(t, r.Condition)
				assert.Equal(t, models.ConditionRawEstimate, *r.Condition)
			},
		},
		{
			name: "numeric flags",
			raw:  models.RawResponse{"sku": "X", "conf": 0.7, "auto": float64(1), "mem": "Y"},
			check: func(t *testing.T, r models.CardRecord) {
				assert.True(t, r.Auto)
				assert.True(t, r.Mem)
			},
		},
		{
			name: "serial number stays a string",
			raw:  models.RawResponse{"sku": "X", "conf": 0.7, "serial": float64(25), "num": "12a"},
			check: func(t *testing.T, r models.CardRecord) {
				assert.Equal(t, "25", deref(r.Serial))
				assert.Equal(t, "12a", deref(r.Number))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := Normalize(tt.raw)
			require.NoError(t, err)
			tt.check(t, record)
		})
	}
}

func TestNormalizeRejectsMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		raw   models.RawResponse
		field string
	}{
		{name: "nil payload", raw: nil, field: "sku"},
		{name: "missing sku", raw: models.RawResponse{"conf": 0.9}, field: "sku"},
		{name: "blank sku", raw: models.RawResponse{"sku": "   ", "conf": 0.9}, field: "sku"},
		{name: "missing conf", raw: models.RawResponse{"sku": "X"}, field: "conf"},
		{name: "null conf", raw: models.RawResponse{"sku": "X", "conf": nil}, field: "conf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw)
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCategoryAndConditionAreTotal(t *testing.T) {
	for _, input := range []string{"", "   ", "???", "SPORTS", "TCG", "Marvel Card"} {
		cat := Category(input)
		assert.Contains(t, []models.Category{
			models.CategorySports, models.CategoryMarvel, models.CategoryPokemon, models.CategoryOther,
		}, cat, input)
	}
	assert.Nil(t, Condition(""))
	assert.Nil(t, Condition("mintish"))
	require.NotNil(t, Condition("Very Good"))
	assert.Equal(t, models.ConditionVG, *Condition("Very Good"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
