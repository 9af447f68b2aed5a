package models

// Capsule bundles the categorical guesses derived from an item identifier.
type Capsule struct {
	LikelyCategory         Category          `json:"likely_cat" yaml:"likely_cat"`
	LikelyYearRange        string            `json:"likely_year_range" yaml:"likely_year_range"`
	CanonicalSetCandidates []string          `json:"canonical_set_candidates" yaml:"canonical_set_candidates"`
	BrandCandidates        []string          `json:"brand_candidates" yaml:"brand_candidates"`
	SubsetVocab            []string          `json:"subset_vocab" yaml:"subset_vocab"`
	NumberFormatHint       string            `json:"number_format_hint" yaml:"number_format_hint"`
	CommonOCRFixes         map[string]string `json:"common_ocr_fixes" yaml:"common_ocr_fixes"`
	BannedWords            []string          `json:"banned_words" yaml:"banned_words"`
	KnownParallels         []string          `json:"known_parallels" yaml:"known_parallels"`
	BacksideTells          []string          `json:"backside_tells" yaml:"backside_tells"`
	ImageMaxEdge           int               `json:"image_max_edge,omitempty" yaml:"image_max_edge,omitempty"`
}

// Exemplar is one few-shot example shown to the provider.
type Exemplar struct {
	Tags   []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Input  string         `json:"input,omitempty" yaml:"input,omitempty"`
	Output map[string]any `json:"output" yaml:"output"`
}

// HintPayload is everything sent alongside the images for one provider call.
type HintPayload struct {
	ItemID    string
	Capsule   Capsule
	Exemplars []Exemplar
	Rules     string
	Nudge     string
	MaxTokens int
}

// Clone returns a deep copy so a retry payload never shares state with the first call.
func (h HintPayload) Clone() HintPayload {
	out := h
	out.Capsule = h.Capsule.clone()
	if h.Exemplars != nil {
		out.Exemplars = make([]Exemplar, len(h.Exemplars))
		for i, ex := range h.Exemplars {
			out.Exemplars[i] = ex.clone()
		}
	}
	return out
}

// WithNudge returns a copy carrying the nudge text and at most maxExemplars examples.
func (h HintPayload) WithNudge(nudge string, maxExemplars int) HintPayload {
	out := h.Clone()
	out.Nudge = nudge
	if maxExemplars >= 0 && len(out.Exemplars) > maxExemplars {
		out.Exemplars = out.Exemplars[:maxExemplars]
	}
	return out
}

func (c Capsule) clone() Capsule {
	out := c
	out.CanonicalSetCandidates = cloneStrings(c.CanonicalSetCandidates)
	out.BrandCandidates = cloneStrings(c.BrandCandidates)
	out.SubsetVocab = cloneStrings(c.SubsetVocab)
	out.BannedWords = cloneStrings(c.BannedWords)
	out.KnownParallels = cloneStrings(c.KnownParallels)
	out.BacksideTells = cloneStrings(c.BacksideTells)
	if c.CommonOCRFixes != nil {
		out.CommonOCRFixes = make(map[string]string, len(c.CommonOCRFixes))
		for k, v := range c.CommonOCRFixes {
			out.CommonOCRFixes[k] = v
		}
	}
	return out
}

func (e Exemplar) clone() Exemplar {
	out := e
	out.Tags = cloneStrings(e.Tags)
	if e.Output != nil {
		out.Output = make(map[string]any, len(e.Output))
		for k, v := range e.Output {
			out.Output[k] = v
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
