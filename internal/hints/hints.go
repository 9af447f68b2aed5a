// Package hints assembles the capsule, few-shot exemplars, and rules text
// that accompany each provider call.
package hints

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
	"github.com/ageless-collectibles/cardcataloger/internal/sku"
	"gopkg.in/yaml.v3"
)

const (
	rulesFile    = "rules_minimal.txt"
	exemplarsDir = "exemplars"
	generalTag   = "general"
)

var batchCategories = map[string]models.Category{
	"MM": models.CategoryMarvel,
	"DG": models.CategoryMarvel,
	"BD": models.CategoryMarvel,
	"SP": models.CategorySports,
	"FB": models.CategorySports,
	"BB": models.CategorySports,
	"PK": models.CategoryPokemon,
}

// Options configures a Builder.
type Options struct {
	// PromptsDir holds rules_minimal.txt and an exemplars/ directory.
	PromptsDir    string
	ExemplarLimit int
	ImageMaxEdge  int
	MaxTokens     int
}

// Builder produces a fresh HintPayload per item. The exemplar bank and rules
// text are read once.
type Builder struct {
	opts Options

	once  sync.Once
	bank  []models.Exemplar
	rules string
}

// NewBuilder returns a Builder for opts.
func NewBuilder(opts Options) *Builder {
	if opts.ExemplarLimit < 0 {
		opts.ExemplarLimit = 0
	}
	return &Builder{opts: opts}
}

// Build derives the hint payload for itemID.
func (b *Builder) Build(itemID string) (models.HintPayload, error) {
	capsule, err := Capsule(itemID)
	if err != nil {
		return models.HintPayload{}, err
	}
	capsule.ImageMaxEdge = b.opts.ImageMaxEdge

	b.once.Do(b.load)
	return models.HintPayload{
		ItemID:    itemID,
		Capsule:   capsule,
		Exemplars: SelectExemplars(b.bank, capsule.LikelyCategory, b.opts.ExemplarLimit),
		Rules:     b.rules,
		MaxTokens: b.opts.MaxTokens,
	}, nil
}

// Capsule derives the categorical guesses for an identifier from its batch code.
func Capsule(itemID string) (models.Capsule, error) {
	parsed, err := sku.Parse(itemID)
	if err != nil {
		return models.Capsule{}, err
	}
	cat, ok := batchCategories[parsed.BatchCode]
	if !ok {
		cat = models.CategoryOther
	}
	return models.Capsule{
		LikelyCategory:         cat,
		LikelyYearRange:        "2015-2022",
		CanonicalSetCandidates: []string{"Fleer Ultra", "Upper Deck Marvel", "Topps Chrome"},
		BrandCandidates:        []string{"Upper Deck", "Topps"},
		SubsetVocab:            []string{"Base", "Holo", "PMG", "Canvas"},
		NumberFormatHint:       "### or ###a",
		CommonOCRFixes: map[string]string{
			"O-Pee-Chee":  "O-Pee-Chee",
			"Fleer Ultra": "Fleer Ultra",
		},
		BannedWords:    []string{"collectible trading card", "vibrant"},
		KnownParallels: []string{"PMG", "Spectrum", "Canvas"},
		BacksideTells:  []string{"Short Print", "Checklist"},
	}, nil
}

// SelectExemplars returns up to limit exemplars tagged with cat, falling back
// to those tagged general. Order follows the bank.
func SelectExemplars(bank []models.Exemplar, cat models.Category, limit int) []models.Exemplar {
	if limit <= 0 || len(bank) == 0 {
		return nil
	}
	matches := filterByTag(bank, string(cat))
	if len(matches) == 0 {
		matches = filterByTag(bank, generalTag)
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func filterByTag(bank []models.Exemplar, tag string) []models.Exemplar {
	if tag == "" {
		return nil
	}
	var out []models.Exemplar
	for _, ex := range bank {
		if slices.Contains(ex.Tags, tag) {
			out = append(out, ex)
		}
	}
	return out
}

func (b *Builder) load() {
	if b.opts.PromptsDir == "" {
		return
	}
	rules, err := os.ReadFile(filepath.Join(b.opts.PromptsDir, rulesFile))
	switch {
	case err == nil:
		b.rules = strings.TrimSpace(string(rules))
	case !errors.Is(err, fs.ErrNotExist):
		slog.Warn("Failed to read rules", "path", filepath.Join(b.opts.PromptsDir, rulesFile), "error", err)
	}

	bank, err := LoadExemplarBank(filepath.Join(b.opts.PromptsDir, exemplarsDir))
	if err != nil {
		slog.Warn("Failed to load exemplar bank", "error", err)
	}
	b.bank = bank
}

// LoadExemplarBank reads every .json, .yaml, and .yml file in dir. Each file
// holds a list of exemplars. Unparseable files are skipped.
func LoadExemplarBank(dir string) ([]models.Exemplar, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read exemplar dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var bank []models.Exemplar
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Failed to read exemplar file", "path", path, "error", err)
			continue
		}
		var exemplars []models.Exemplar
		if err := yaml.Unmarshal(data, &exemplars); err != nil {
			slog.Warn("Skipping malformed exemplar file", "path", path, "error", err)
			continue
		}
		bank = append(bank, exemplars...)
	}
	return bank, nil
}
