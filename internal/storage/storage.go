// Package storage writes per-item results and the aggregate artifacts of a
// batch run under <output>/<job>/results.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
)

// ResultSubdir is the folder under <output>/<job> that a run owns.
const ResultSubdir = "results"

// CSVColumns is the fixed column order of csv/batch.csv.
var CSVColumns = []string{
	"sku", "cat", "brand", "set", "year", "player", "character", "num", "subset",
	"variant", "serial", "auto", "mem", "grade", "cond", "notes", "price_est", "conf",
	"needs_review",
}

// Row is one written item.
type Row struct {
	Record      models.CardRecord
	NeedsReview bool
}

// Writer stores results for a single job. The first Write (or Finalize)
// removes whatever a previous run of the same job left behind.
type Writer struct {
	root     string
	rows     []Row
	prepared bool
	mu       sync.Mutex
}

// ResultRoot returns <output>/<jobID>/results.
func ResultRoot(outputDir, jobID string) string {
	return filepath.Join(outputDir, jobID, ResultSubdir)
}

func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

func (w *Writer) Root() string {
	return w.root
}

// Rows returns a copy of the rows written so far.
func (w *Writer) Rows() []Row {
	w.mu.Lock()
	defer w.mu.Unlock()

	result := make([]Row, len(w.rows))
	copy(result, w.rows)
	return result
}

// Write stores json/<sku>.json, txt/<sku>.txt and appends a row to csv/batch.csv.
func (w *Writer) Write(itemID string, record models.CardRecord, needsReview bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.prepare(); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(w.root, "json", itemID+".json"), record); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(w.root, "txt", itemID+".txt"), []byte(TextSummary(record, needsReview)), 0o644); err != nil {
		return fmt.Errorf("failed to write text summary: %w", err)
	}
	if err := appendCSV(filepath.Join(w.root, "csv", "batch.csv"), CSVRow(record, needsReview)); err != nil {
		return err
	}
	w.rows = append(w.rows, Row{Record: record, NeedsReview: needsReview})
	return nil
}

func (w *Writer) prepare() error {
	if w.prepared {
		return nil
	}
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("failed to clear result directory: %w", err)
	}
	for _, dir := range []string{"json", "txt", "csv"} {
		if err := os.MkdirAll(filepath.Join(w.root, dir), 0o755); err != nil {
			return fmt.Errorf("failed to create result directory: %w", err)
		}
	}
	w.prepared = true
	return nil
}

func writeJSON(path string, record models.CardRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create record file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return file.Close()
}

func appendCSV(path string, row []string) error {
	_, statErr := os.Stat(path)
	writeHeader := errors.Is(statErr, os.ErrNotExist)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open csv: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if writeHeader {
		if err := cw.Write(CSVColumns); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return file.Close()
}

// TextSummary renders the headline, the status line and the notes, if any.
func TextSummary(r models.CardRecord, needsReview bool) string {
	year := "????"
	if r.Year != nil {
		year = strconv.Itoa(*r.Year)
	}
	headline := strings.TrimSpace(fmt.Sprintf("%s %s #%s %s",
		year, valueOr(r.Set, "Unknown set"), valueOr(r.Number, "?"), r.Identity()))

	status := fmt.Sprintf("conf %.2f", r.Conf)
	if needsReview {
		status = "Needs review"
	}
	lines := []string{headline, fmt.Sprintf("Category=%s, %s", r.Category, status)}
	if r.Notes != nil {
		lines = append(lines, *r.Notes)
	}
	return strings.Join(lines, "\n")
}

// CSVRow renders r in CSVColumns order. Absent values are empty cells.
func CSVRow(r models.CardRecord, needsReview bool) []string {
	year, price, cond := "", "", ""
	if r.Year != nil {
		year = strconv.Itoa(*r.Year)
	}
	if r.PriceEst != nil {
		price = strconv.FormatFloat(*r.PriceEst, 'f', -1, 64)
	}
	if r.Condition != nil {
		cond = string(*r.Condition)
	}
	return []string{
		r.SKU,
		string(r.Category),
		valueOr(r.Brand, ""),
		valueOr(r.Set, ""),
		year,
		valueOr(r.Player, ""),
		valueOr(r.Character, ""),
		valueOr(r.Number, ""),
		valueOr(r.Subset, ""),
		valueOr(r.Variant, ""),
		valueOr(r.Serial, ""),
		strconv.FormatBool(r.Auto),
		strconv.FormatBool(r.Mem),
		r.Grade,
		cond,
		valueOr(r.Notes, ""),
		price,
		strconv.FormatFloat(r.Conf, 'f', -1, 64),
		strconv.FormatBool(needsReview),
	}
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
