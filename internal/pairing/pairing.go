// Package pairing groups front/back scans in the inbox into per-item folders.
package pairing

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ageless-collectibles/cardcataloger/internal/eventlog"
	"github.com/ageless-collectibles/cardcataloger/internal/sku"
)

var scanPattern = regexp.MustCompile(`(?i)^(.*)_(F|B)\.(jpg|jpeg|png|tif|tiff)$`)

// Dirs are the folders pairing reads from and writes into.
type Dirs struct {
	Inbox string
	Ready string
	Error string
}

// Pair is one matched front/back scan.
type Pair struct {
	Base  string
	Front string
	Back  string
}

// FindPairs lists complete pairs in inbox, sorted by base name. Files without a
// partner are left alone.
func FindPairs(inbox string) ([]Pair, error) {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	sides := map[string]map[string]string{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		m := scanPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		base, side := m[1], strings.ToUpper(m[2])
		if sides[base] == nil {
			sides[base] = map[string]string{}
		}
		sides[base][side] = entry.Name()
	}

	var pairs []Pair
	for base, s := range sides {
		if s["F"] != "" && s["B"] != "" {
			pairs = append(pairs, Pair{Base: base, Front: s["F"], Back: s["B"]})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Base < pairs[j].Base })
	return pairs, nil
}

// Run moves every valid pair into <ready>/<sku>/ with a pair.json marker and
// every pair with an invalid identifier into <error>/<base>/ with error.txt.
// It returns the number of pairs moved to ready.
func Run(dirs Dirs, events *eventlog.Log) (int, error) {
	for _, dir := range []string{dirs.Inbox, dirs.Ready, dirs.Error} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	pairs, err := FindPairs(dirs.Inbox)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, p := range pairs {
		if err := movePair(dirs, p); err != nil {
			if quarantineErr := quarantine(dirs, p, err); quarantineErr != nil {
				return moved, quarantineErr
			}
			events.Append(eventlog.Event{Step: "pair", SKU: p.Base, Status: eventlog.StatusError, Message: err.Error()})
			continue
		}
		events.Append(eventlog.Event{Step: "pair", SKU: p.Base, Status: eventlog.StatusOK, Message: "Paired scans"})
		moved++
	}
	return moved, nil
}

func movePair(dirs Dirs, p Pair) error {
	if _, err := sku.Parse(p.Base); err != nil {
		return err
	}
	dst := filepath.Join(dirs.Ready, p.Base)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("failed to create item dir: %w", err)
	}
	for _, name := range []string{p.Front, p.Back} {
		if err := MoveFile(filepath.Join(dirs.Inbox, name), filepath.Join(dst, name)); err != nil {
			return err
		}
	}
	marker, err := json.Marshal(map[string]string{"status": "paired", "front": p.Front, "back": p.Back})
	if err != nil {
		return fmt.Errorf("failed to encode pair marker: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dst, "pair.json"), marker, 0o644); err != nil {
		return fmt.Errorf("failed to write pair marker: %w", err)
	}
	return nil
}

func quarantine(dirs Dirs, p Pair, cause error) error {
	dst := filepath.Join(dirs.Error, strings.ReplaceAll(p.Base, "/", "_"))
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("failed to create error dir: %w", err)
	}
	for _, name := range []string{p.Front, p.Back} {
		src := filepath.Join(dirs.Inbox, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := MoveFile(src, filepath.Join(dst, name)); err != nil {
			return err
		}
	}
	if err := os.WriteFile(filepath.Join(dst, "error.txt"), []byte(cause.Error()), 0o644); err != nil {
		return fmt.Errorf("failed to write error note: %w", err)
	}
	return nil
}

// MoveFile renames src to dst, falling back to copy, rename, and delete when
// the two paths are on different filesystems. dst never appears half-written.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	tmp := dst + ".tmp"
	if err := copyFile(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove %s: %w", src, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
