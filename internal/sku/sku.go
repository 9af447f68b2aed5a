// Package sku parses card identifiers of the form Box<n>-<XX>_<nnnn>.
package sku

import (
	"fmt"
	"regexp"
	"strconv"
)

var pattern = regexp.MustCompile(`^(Box\d+)-([A-Z]{2})_(\d{4})$`)

// SKU is a parsed card identifier.
type SKU struct {
	Box       string
	BatchCode string
	Seq       int
}

// Parse validates id and splits it into its parts.
func Parse(id string) (SKU, error) {
	m := pattern.FindStringSubmatch(id)
	if m == nil {
		return SKU{}, fmt.Errorf("invalid sku %q: expected Box<n>-<XX>_<nnnn>", id)
	}
	seq, err := strconv.Atoi(m[3])
	if err != nil {
		return SKU{}, fmt.Errorf("invalid sku %q: %w", id, err)
	}
	return SKU{Box: m[1], BatchCode: m[2], Seq: seq}, nil
}

// Valid reports whether id matches the identifier pattern.
func Valid(id string) bool {
	return pattern.MatchString(id)
}

func (s SKU) String() string {
	return fmt.Sprintf("%s-%s_%04d", s.Box, s.BatchCode, s.Seq)
}
