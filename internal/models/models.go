package models

// Category is the closed set of card families a record can belong to.
type Category string

const (
	CategorySports  Category = "sports"
	CategoryMarvel  Category = "marvel"
	CategoryPokemon Category = "pokemon"
	CategoryOther   Category = "other"
)

// UsesPlayer reports whether records of this category identify the card by player.
func (c Category) UsesPlayer() bool {
	return c == CategorySports
}

// Condition is the closed set of raw condition estimates.
type Condition string

const (
	ConditionNM          Condition = "NM"
	ConditionEX          Condition = "EX"
	ConditionVG          Condition = "VG"
	ConditionRawEstimate Condition = "raw-estimate"
)

// DefaultGrade is used when the provider does not report a grade.
const DefaultGrade = "raw"

// CardRecord is the canonical, normalized description of one card.
// Optional fields are nil when absent so they are omitted from JSON output.
type CardRecord struct {
	SKU       string     `json:"sku"`
	Category  Category   `json:"cat"`
	Brand     *string    `json:"brand,omitempty"`
	Set       *string    `json:"set,omitempty"`
	Year      *int       `json:"year,omitempty"`
	Player    *string    `json:"player,omitempty"`
	Character *string    `json:"character,omitempty"`
	Number    *string    `json:"num,omitempty"`
	Subset    *string    `json:"subset,omitempty"`
	Variant   *string    `json:"variant,omitempty"`
	Serial    *string    `json:"serial,omitempty"`
	Auto      bool       `json:"auto"`
	Mem       bool       `json:"mem"`
	Grade     string     `json:"grade"`
	Condition *Condition `json:"cond,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	PriceEst  *float64   `json:"price_est,omitempty"`
	Conf      float64    `json:"conf"`
}

// Identity returns the player or character name, whichever is populated.
func (r CardRecord) Identity() string {
	if r.Player != nil {
		return *r.Player
	}
	if r.Character != nil {
		return *r.Character
	}
	return ""
}

// RawResponse is the decoded JSON object returned by a provider.
type RawResponse map[string]any

// Item is one queued card: its identifier and the image filenames that belong to it.
type Item struct {
	SKU    string   `json:"sku"`
	Images []string `json:"images"`
}

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
