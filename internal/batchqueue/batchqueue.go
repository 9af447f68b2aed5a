// Package batchqueue partitions paired items into job description files and
// reads them back.
package batchqueue

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ageless-collectibles/cardcataloger/internal/eventlog"
	"github.com/ageless-collectibles/cardcataloger/internal/models"
	"github.com/google/uuid"
)

// NewJobID returns an id of the form batch_<unix>_<8 hex>.
func NewJobID(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("batch_%d_%s", now.Unix(), hex[:8])
}

// Build lists the item folders in ready, chunks them into jobs of batchSize,
// and writes <out>/<jobID>.jsonl for each. It returns the job ids in order.
func Build(ready, out string, batchSize int, events *eventlog.Log) ([]string, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create batch dir: %w", err)
	}
	entries, err := os.ReadDir(ready)
	if err != nil {
		return nil, fmt.Errorf("failed to read ready dir: %w", err)
	}
	var skus []string
	for _, entry := range entries {
		if entry.IsDir() {
			skus = append(skus, entry.Name())
		}
	}
	sort.Strings(skus)

	var jobs []string
	for start := 0; start < len(skus); start += batchSize {
		end := min(start+batchSize, len(skus))
		items := make([]models.Item, 0, end-start)
		for _, id := range skus[start:end] {
			images, err := listImages(filepath.Join(ready, id), id)
			if err != nil {
				return jobs, err
			}
			items = append(items, models.Item{SKU: id, Images: images})
		}

		jobID := NewJobID(time.Now())
		if err := Write(filepath.Join(out, jobID+".jsonl"), items); err != nil {
			return jobs, err
		}
		events.Append(eventlog.Event{
			Step:    "queue",
			JobID:   jobID,
			Status:  eventlog.StatusOK,
			Message: fmt.Sprintf("Queued %d item(s)", len(items)),
		})
		jobs = append(jobs, jobID)
	}
	return jobs, nil
}

func listImages(folder, id string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(folder, id+"_*.*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list images for %s: %w", id, err)
	}
	images := make([]string, 0, len(matches))
	for _, m := range matches {
		images = append(images, filepath.Base(m))
	}
	sort.Strings(images)
	return images, nil
}

// Write stores items as one JSON object per line.
func Write(path string, items []models.Item) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create batch file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("failed to encode batch item: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write batch file: %w", err)
	}
	return file.Close()
}

// Load reads a job description file. Blank lines are skipped.
func Load(path string) ([]models.Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer file.Close()

	var items []models.Item
	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var item models.Item
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, fmt.Errorf("failed to parse batch line %d: %w", lineNum, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return items, nil
}
