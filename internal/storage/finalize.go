package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// RunStats describes how a run ended. It is recorded in summary.yaml.
type RunStats struct {
	JobID    string
	Failures int
	Skipped  int
	Aborted  bool
}

// Summary is the content of summary.yaml.
type Summary struct {
	JobID       string          `yaml:"job_id"`
	GeneratedAt time.Time       `yaml:"generated_at"`
	Items       int             `yaml:"items"`
	NeedsReview int             `yaml:"needs_review"`
	Failures    int             `yaml:"provider_failures"`
	Skipped     int             `yaml:"skipped"`
	Aborted     bool            `yaml:"aborted"`
	Categories  map[string]int  `yaml:"categories"`
	Confidence  ConfidenceStats `yaml:"confidence"`
}

// ConfidenceStats are computed over every written record.
type ConfidenceStats struct {
	Average float64 `yaml:"average"`
	Median  float64 `yaml:"median"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
}

type parquetRow struct {
	SKU         string   `parquet:"sku"`
	Category    string   `parquet:"cat"`
	Brand       *string  `parquet:"brand,optional"`
	Set         *string  `parquet:"set,optional"`
	Year        *int64   `parquet:"year,optional"`
	Player      *string  `parquet:"player,optional"`
	Character   *string  `parquet:"character,optional"`
	Number      *string  `parquet:"num,optional"`
	Subset      *string  `parquet:"subset,optional"`
	Variant     *string  `parquet:"variant,optional"`
	Serial      *string  `parquet:"serial,optional"`
	Auto        bool     `parquet:"auto"`
	Mem         bool     `parquet:"mem"`
	Grade       string   `parquet:"grade"`
	Condition   *string  `parquet:"cond,optional"`
	Notes       *string  `parquet:"notes,optional"`
	PriceEst    *float64 `parquet:"price_est,optional"`
	Conf        float64  `parquet:"conf"`
	NeedsReview bool     `parquet:"needs_review"`
}

// Finalize writes parquet/batch.parquet, xlsx/listing.xlsx and summary.yaml
// from the rows written during this run. It is safe to call on a run that
// wrote nothing.
func (w *Writer) Finalize(stats RunStats) (Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.prepare(); err != nil {
		return Summary{}, err
	}
	rows := make([]Row, len(w.rows))
	copy(rows, w.rows)

	if err := writeParquet(filepath.Join(w.root, "parquet", "batch.parquet"), rows); err != nil {
		return Summary{}, err
	}
	if err := writeListing(filepath.Join(w.root, "xlsx", "listing.xlsx"), rows); err != nil {
		return Summary{}, err
	}

	summary := Summarize(stats, rows)
	data, err := yaml.Marshal(summary)
	if err != nil {
		return summary, fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.root, "summary.yaml"), data, 0o644); err != nil {
		return summary, fmt.Errorf("failed to write summary: %w", err)
	}
	return summary, nil
}

// Summarize counts rows by category and review state and computes
// confidence statistics.
func Summarize(stats RunStats, rows []Row) Summary {
	summary := Summary{
		JobID:       stats.JobID,
		GeneratedAt: time.Now().UTC(),
		Items:       len(rows),
		Failures:    stats.Failures,
		Skipped:     stats.Skipped,
		Aborted:     stats.Aborted,
		Categories:  map[string]int{},
	}
	if len(rows) == 0 {
		return summary
	}

	confs := make([]float64, 0, len(rows))
	total := 0.0
	for _, row := range rows {
		summary.Categories[string(row.Record.Category)]++
		if row.NeedsReview {
			summary.NeedsReview++
		}
		confs = append(confs, row.Record.Conf)
		total += row.Record.Conf
	}
	sort.Float64s(confs)

	mid := len(confs) / 2
	median := confs[mid]
	if len(confs)%2 == 0 {
		median = (confs[mid-1] + confs[mid]) / 2
	}
	summary.Confidence = ConfidenceStats{
		Average: total / float64(len(confs)),
		Median:  median,
		Min:     confs[0],
		Max:     confs[len(confs)-1],
	}
	return summary
}

func writeParquet(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create parquet directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	out := make([]parquetRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, toParquetRow(row))
	}

	writer := parquet.NewGenericWriter[parquetRow](file)
	if _, err := writer.Write(out); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return file.Close()
}

func toParquetRow(row Row) parquetRow {
	r := row.Record
	out := parquetRow{
		SKU:         r.SKU,
		Category:    string(r.Category),
		Brand:       r.Brand,
		Set:         r.Set,
		Player:      r.Player,
		Character:   r.Character,
		Number:      r.Number,
		Subset:      r.Subset,
		Variant:     r.Variant,
		Serial:      r.Serial,
		Auto:        r.Auto,
		Mem:         r.Mem,
		Grade:       r.Grade,
		Notes:       r.Notes,
		PriceEst:    r.PriceEst,
		Conf:        r.Conf,
		NeedsReview: row.NeedsReview,
	}
	if r.Year != nil {
		year := int64(*r.Year)
		out.Year = &year
	}
	if r.Condition != nil {
		cond := string(*r.Condition)
		out.Condition = &cond
	}
	return out
}

const listingSheet = "Listing"

func writeListing(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create xlsx directory: %w", err)
	}
	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName("Sheet1", listingSheet); err != nil {
		return fmt.Errorf("failed to name listing sheet: %w", err)
	}

	header := make([]any, len(CSVColumns))
	for i, col := range CSVColumns {
		header[i] = col
	}
	if err := wb.SetSheetRow(listingSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write listing header: %w", err)
	}
	bold, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := wb.SetRowStyle(listingSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style listing header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to resolve listing cell: %w", err)
		}
		values := listingValues(row)
		if err := wb.SetSheetRow(listingSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write listing row %d: %w", i+1, err)
		}
	}

	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save listing workbook: %w", err)
	}
	return nil
}

// listingValues keeps numbers and booleans typed so the sheet can be sorted
// and summed. Absent values are empty cells.
func listingValues(row Row) []any {
	cells := CSVRow(row.Record, row.NeedsReview)
	values := make([]any, len(cells))
	for i, cell := range cells {
		values[i] = cell
	}
	r := row.Record
	if r.Year != nil {
		values[4] = *r.Year
	}
	values[11] = r.Auto
	values[12] = r.Mem
	if r.PriceEst != nil {
		values[16] = *r.PriceEst
	}
	values[17] = r.Conf
	values[18] = row.NeedsReview
	return values
}
