// Package normalize coerces raw provider payloads into canonical card records.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
	"golang.org/x/text/cases"
)

// ValidationError reports a payload that cannot be coerced into a CardRecord.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s: %s", e.Field, e.Reason)
}

var categoryAliases = map[string]models.Category{
	"sport":                 models.CategorySports,
	"sports":                models.CategorySports,
	"sports cards":          models.CategorySports,
	"trading card":          models.CategorySports,
	"marvel":                models.CategoryMarvel,
	"comic":                 models.CategoryMarvel,
	"marvel card":           models.CategoryMarvel,
	"collectible-franchise": models.CategoryMarvel,
	"collectible franchise": models.CategoryMarvel,
	"franchise":             models.CategoryMarvel,
	"pokemon":               models.CategoryPokemon,
	"pokémon":               models.CategoryPokemon,
	"tcg":                   models.CategoryPokemon,
	"trading-card-game":     models.CategoryPokemon,
	"trading card game":     models.CategoryPokemon,
	"other":                 models.CategoryOther,
}

var conditionAliases = map[string]models.Condition{
	"near mint":    models.ConditionNM,
	"nm":           models.ConditionNM,
	"mint":         models.ConditionNM,
	"excellent":    models.ConditionEX,
	"ex":           models.ConditionEX,
	"very good":    models.ConditionVG,
	"vg":           models.ConditionVG,
	"raw":          models.ConditionRawEstimate,
	"raw estimate": models.ConditionRawEstimate,
	"raw-estimate": models.ConditionRawEstimate,
}

var truthy = map[string]bool{"1": true, "true": true, "yes": true, "y": true}

var folder = cases.Fold()

// Category resolves a free-form category label. Unknown labels map to other.
func Category(value string) models.Category {
	key := folder.String(strings.TrimSpace(value))
	if cat, ok := categoryAliases[key]; ok {
		return cat
	}
	return models.CategoryOther
}

// Condition resolves a free-form condition label. Unknown labels return nil.
func Condition(value string) *models.Condition {
	key := folder.String(strings.TrimSpace(value))
	if key == "" {
		return nil
	}
	if cond, ok := conditionAliases[key]; ok {
		return &cond
	}
	return nil
}

// Normalize validates raw and returns the canonical record. It fails only when
// the identifier or the confidence is missing.
func Normalize(raw models.RawResponse) (models.CardRecord, error) {
	var record models.CardRecord
	if raw == nil {
		return record, &ValidationError{Field: "sku", Reason: "empty payload"}
	}

	id := textValue(raw["sku"])
	if id == nil {
		return record, &ValidationError{Field: "sku", Reason: "missing identifier"}
	}
	confValue, ok := raw["conf"]
	if !ok || confValue == nil {
		return record, &ValidationError{Field: "conf", Reason: "missing confidence"}
	}

	record.SKU = *id
	if cat := textValue(raw["cat"]); cat != nil {
		record.Category = Category(*cat)
	} else {
		record.Category = models.CategoryOther
	}
	record.Brand = textValue(raw["brand"])
	record.Set = textValue(raw["set"])
	record.Year = yearValue(raw["year"])
	record.Player = textValue(raw["player"])
	record.Character = textValue(raw["character"])
	record.Number = textValue(raw["num"])
	record.Subset = textValue(raw["subset"])
	record.Variant = textValue(raw["variant"])
	record.Serial = textValue(raw["serial"])
	record.Auto = boolValue(raw["auto"])
	record.Mem = boolValue(raw["mem"])
	record.Grade = models.DefaultGrade
	if grade := textValue(raw["grade"]); grade != nil {
		record.Grade = *grade
	}
	if cond := textValue(raw["cond"]); cond != nil {
		record.Condition = Condition(*cond)
	}
	record.Notes = textValue(raw["notes"])
	if price, ok := floatValue(raw["price_est"]); ok && price > 0 {
		record.PriceEst = models.Float(price)
	}
	record.Conf = confidence(confValue)

	enforceIdentity(&record)
	return record, nil
}

// enforceIdentity keeps only the identity field that matches the category.
// A value reported under the wrong field is moved to the right one.
func enforceIdentity(r *models.CardRecord) {
	if r.Category.UsesPlayer() {
		if r.Player == nil {
			r.Player = r.Character
		}
		r.Character = nil
		return
	}
	if r.Character == nil {
		r.Character = r.Player
	}
	r.Player = nil
}

func textValue(v any) *string {
	var s string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		s = strconv.Itoa(val)
	case bool:
		s = strconv.FormatBool(val)
	default:
		s = fmt.Sprint(val)
	}
	return models.String(strings.TrimSpace(s))
}

// maxYear bounds accepted years to four digits.
const maxYear = 9999

func yearValue(v any) *int {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val != math.Trunc(val) {
			return nil
		}
		if val < 1 || val > maxYear {
			return nil
		}
		return models.Int(int(val))
	case int:
		return plausibleYear(val)
	case string:
		year, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		return plausibleYear(year)
	default:
		return nil
	}
}

func plausibleYear(year int) *int {
	if year < 1 || year > maxYear {
		return nil
	}
	return models.Int(year)
}

func floatValue(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case int:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func boolValue(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	text := textValue(v)
	if text == nil {
		return false
	}
	return truthy[strings.ToLower(*text)]
}

func confidence(v any) float64 {
	conf, ok := floatValue(v)
	if !ok {
		return 0
	}
	return math.Min(1, math.Max(0, conf))
}
