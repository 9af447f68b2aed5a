// Package cataloging runs the post-processing loop over one queued batch.
package cataloging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ageless-collectibles/cardcataloger/internal/batchqueue"
	"github.com/ageless-collectibles/cardcataloger/internal/config"
	"github.com/ageless-collectibles/cardcataloger/internal/eventlog"
	"github.com/ageless-collectibles/cardcataloger/internal/imageprep"
	"github.com/ageless-collectibles/cardcataloger/internal/mock"
	"github.com/ageless-collectibles/cardcataloger/internal/models"
	"github.com/ageless-collectibles/cardcataloger/internal/normalize"
	"github.com/ageless-collectibles/cardcataloger/internal/providers"
	"github.com/ageless-collectibles/cardcataloger/internal/quality"
	"github.com/ageless-collectibles/cardcataloger/internal/sku"
	"github.com/ageless-collectibles/cardcataloger/internal/storage"
	"github.com/gofrs/flock"
)

const step = "post"

// ErrJobLocked is returned when another process is already posting the job.
var ErrJobLocked = errors.New("job is locked by another process")

// State names the stages an item moves through.
type State string

const (
	StatePending         State = "pending"
	StateResolvingImages State = "resolving-images"
	StateCallingProvider State = "calling-provider"
	StateNormalizing     State = "normalizing"
	StateQualityCheck    State = "quality-check"
	StateRequerying      State = "re-querying"
	StateWriting         State = "writing"
	StateDone            State = "done"
	StateError           State = "error"
)

// HintBuilder produces the hint payload for an item.
type HintBuilder interface {
	Build(itemID string) (models.HintPayload, error)
}

// Options configures a Processor.
type Options struct {
	ReadyDir   string
	BatchesDir string
	OutputDir  string
	TmpDir     string

	CompressImages bool
	ImageMaxEdge   int
	Timeout        time.Duration
	MaxFailures    int
	RetryExemplars int

	Model       string
	MaxTokens   int
	Temperature float64
}

// OptionsFromConfig maps the pipeline configuration onto processor options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ReadyDir:       cfg.Paths.Ready,
		BatchesDir:     cfg.Paths.Batches,
		OutputDir:      cfg.Paths.Output,
		TmpDir:         cfg.Paths.Tmp,
		CompressImages: cfg.CompressImages,
		ImageMaxEdge:   cfg.ImageMaxEdge,
		Timeout:        cfg.ItemTimeout(),
		MaxFailures:    cfg.MaxFailures,
		RetryExemplars: cfg.RetryExemplars,
		Model:          cfg.ModelName,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
	}
}

// ItemResult describes one written item.
type ItemResult struct {
	SKU            string
	Record         models.CardRecord
	NeedsReview    bool
	ProviderFailed bool
	Retried        bool
	Summary        string
	Tokens         int
}

// Result is returned for every run that got past setup, including aborted ones.
type Result struct {
	JobID      string
	OutputRoot string
	Items      []ItemResult
	Skipped    int
	Failures   int
	Aborted    bool
	Summary    storage.Summary
}

// Processor posts queued batches.
type Processor struct {
	opts     Options
	provider providers.Provider
	hints    HintBuilder
	events   *eventlog.Log
}

func NewProcessor(opts Options, provider providers.Provider, hints HintBuilder, events *eventlog.Log) *Processor {
	return &Processor{
		opts:     opts,
		provider: provider,
		hints:    hints,
		events:   events,
	}
}

// Process runs every item of jobID through the provider and writes the results.
// The output root is returned even when the run is aborted early.
func (p *Processor) Process(ctx context.Context, jobID string) (Result, error) {
	result := Result{
		JobID:      jobID,
		OutputRoot: storage.ResultRoot(p.opts.OutputDir, jobID),
	}

	items, err := batchqueue.Load(filepath.Join(p.opts.BatchesDir, jobID+".jsonl"))
	if err != nil {
		return result, err
	}

	jobDir := filepath.Join(p.opts.OutputDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return result, fmt.Errorf("failed to create job directory: %w", err)
	}
	lock := flock.New(filepath.Join(jobDir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return result, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !locked {
		return result, fmt.Errorf("%w: %s", ErrJobLocked, jobID)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release job lock", "job_id", jobID, "error", err)
		}
	}()

	slog.Info("Processing batch", "job_id", jobID, "items", len(items), "provider", p.provider.Name())

	writer := storage.NewWriter(result.OutputRoot)
	budget := NewFailureBudget(p.opts.MaxFailures)

	var runErr error
	abortedRemaining := 0
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			result.Skipped += len(items) - i
			runErr = err
			break
		}

		itemResult, err := p.processItem(ctx, jobID, item, writer, budget)
		if err != nil {
			var resolveErr *resolveError
			if errors.As(err, &resolveErr) {
				result.Skipped++
				p.events.Append(eventlog.Event{
					Step: step, JobID: jobID, SKU: item.SKU,
					Status: eventlog.StatusResolveError, Message: resolveErr.Error(),
				})
			} else {
				result.Skipped += len(items) - i
				runErr = err
				break
			}
		} else {
			result.Items = append(result.Items, itemResult)
		}

		if budget.ShouldAbort() {
			result.Aborted = true
			abortedRemaining = len(items) - i - 1
			result.Skipped += abortedRemaining
			break
		}
	}
	result.Failures = budget.Count()

	if result.Aborted {
		message := fmt.Sprintf("Aborted remaining SKUs after %d provider failure(s).", budget.Count())
		if abortedRemaining > 0 {
			message += fmt.Sprintf(" %d item(s) not processed.", abortedRemaining)
		}
		p.events.Append(eventlog.Event{Step: step, JobID: jobID, Status: eventlog.StatusAborted, Message: message})
	}

	summary, err := writer.Finalize(storage.RunStats{
		JobID:    jobID,
		Failures: result.Failures,
		Skipped:  result.Skipped,
		Aborted:  result.Aborted,
	})
	result.Summary = summary
	if err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to finalize batch: %w", err)
	}
	return result, runErr
}

type resolveError struct {
	err error
}

func (e *resolveError) Error() string { return e.err.Error() }

func (e *resolveError) Unwrap() error { return e.err }

func (p *Processor) processItem(ctx context.Context, jobID string, item models.Item, writer *storage.Writer, budget *FailureBudget) (ItemResult, error) {
	logger := slog.With("job_id", jobID, "sku", item.SKU)
	transition := func(state State) {
		logger.Debug("Item state", "state", state)
	}
	transition(StatePending)

	transition(StateResolvingImages)
	if _, err := sku.Parse(item.SKU); err != nil {
		transition(StateError)
		return ItemResult{}, &resolveError{err: err}
	}
	front, back, err := ResolveImages(filepath.Join(p.opts.ReadyDir, item.SKU), item.Images)
	if err != nil {
		transition(StateError)
		return ItemResult{}, &resolveError{err: err}
	}
	hints, err := p.hints.Build(item.SKU)
	if err != nil {
		transition(StateError)
		return ItemResult{}, &resolveError{err: err}
	}
	front, back = p.prepareImages(ctx, jobID, item.SKU, front, back)

	transition(StateCallingProvider)
	req := providers.Request{
		FrontImage:  front,
		BackImage:   back,
		Hints:       hints,
		Model:       p.opts.Model,
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
	}
	out := ItemResult{SKU: item.SKU}
	raw, err := providers.CallWithTimeout(ctx, p.provider, req, p.opts.Timeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ItemResult{}, ctxErr
		}
		budget.RecordFailure()
		out.ProviderFailed = true
		p.events.Append(eventlog.Event{
			Step: step, JobID: jobID, SKU: item.SKU,
			Status: providerFailureStatus(err), Message: err.Error(),
		})
		raw = mock.Placeholder(item.SKU, hints.Capsule)
	}
	out.Tokens = EstimateTokens(raw)

	transition(StateNormalizing)
	record, err := normalize.Normalize(raw)
	if err != nil {
		p.events.Append(eventlog.Event{
			Step: step, JobID: jobID, SKU: item.SKU,
			Status: eventlog.StatusSchemaError, Message: err.Error(),
		})
		record, err = normalize.Normalize(mock.Placeholder(item.SKU, hints.Capsule))
		if err != nil {
			transition(StateError)
			return ItemResult{}, fmt.Errorf("failed to normalize placeholder for %s: %w", item.SKU, err)
		}
	}

	transition(StateQualityCheck)
	needsReview := quality.NeedsRetry(record)
	if needsReview && p.provider.Live() && !budget.ShouldAbort() {
		transition(StateRequerying)
		out.Retried = true
		record, needsReview = p.requery(ctx, jobID, req, record)
	}

	transition(StateWriting)
	if err := writer.Write(item.SKU, record, needsReview); err != nil {
		transition(StateError)
		return ItemResult{}, fmt.Errorf("failed to write outputs for %s: %w", item.SKU, err)
	}
	out.Record = record
	out.NeedsReview = needsReview
	out.Summary = SummaryLine(record, needsReview, out.Tokens)

	status := eventlog.StatusOK
	if needsReview {
		status = eventlog.StatusNeedsReview
	}
	p.events.Append(eventlog.Event{
		Step: step, JobID: jobID, SKU: item.SKU,
		Status: status, Summary: out.Summary, Tokens: out.Tokens,
	})
	transition(StateDone)
	return out, nil
}

// requery asks the provider once more with a nudge. The retry record replaces
// the original only if it is satisfactory or at least as confident.
func (p *Processor) requery(ctx context.Context, jobID string, req providers.Request, original models.CardRecord) (models.CardRecord, bool) {
	retryReq := req
	retryReq.Hints = req.Hints.WithNudge(quality.BuildNudge(original, req.Hints.Capsule), p.opts.RetryExemplars)

	raw, err := providers.CallWithTimeout(ctx, p.provider, retryReq, p.opts.Timeout)
	if err == nil {
		var retry models.CardRecord
		retry, err = normalize.Normalize(raw)
		if err == nil {
			retryReview := quality.NeedsRetry(retry)
			if !retryReview || retry.Conf >= original.Conf {
				return retry, retryReview
			}
			return original, true
		}
	}
	p.events.Append(eventlog.Event{
		Step: step, JobID: jobID, SKU: req.Hints.ItemID,
		Status: eventlog.StatusRetryError, Message: err.Error(),
	})
	return original, true
}

func (p *Processor) prepareImages(ctx context.Context, jobID, itemID, front, back string) (string, string) {
	if !p.opts.CompressImages {
		return front, back
	}
	destDir := filepath.Join(p.opts.TmpDir, jobID, itemID)
	preparedFront, preparedBack, err := imageprep.PreparePair(ctx, front, back, destDir, p.opts.ImageMaxEdge)
	if err != nil {
		slog.Warn("Image preparation failed, sending originals", "sku", itemID, "error", err)
		return front, back
	}
	return preparedFront, preparedBack
}

func providerFailureStatus(err error) string {
	if errors.Is(err, providers.ErrTimeout) {
		return eventlog.StatusTimeout
	}
	return eventlog.StatusError
}

// ResolveImages picks the front and back image of an item folder. Names ending
// in _F/_front or _B/_back win, then names containing front/back. Without a
// front the first image is used, and without a back the other image (or the
// front again).
func ResolveImages(folder string, images []string) (string, string, error) {
	if len(images) == 0 {
		return "", "", fmt.Errorf("no images listed for %s", filepath.Base(folder))
	}

	var front, back string
	for _, name := range images {
		stem := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
		switch {
		case front == "" && (strings.HasSuffix(stem, "_f") || strings.HasSuffix(stem, "_front")):
			front = name
		case back == "" && (strings.HasSuffix(stem, "_b") || strings.HasSuffix(stem, "_back")):
			back = name
		}
	}
	for _, name := range images {
		lower := strings.ToLower(name)
		switch {
		case front == "" && name != back && strings.Contains(lower, "front"):
			front = name
		case back == "" && name != front && strings.Contains(lower, "back"):
			back = name
		}
	}
	if front == "" {
		front = images[0]
		if front == back && len(images) > 1 {
			front = images[1]
		}
	}
	if back == "" {
		back = front
		for _, name := range images {
			if name != front {
				back = name
				break
			}
		}
	}

	frontPath := filepath.Join(folder, front)
	backPath := filepath.Join(folder, back)
	for _, path := range []string{frontPath, backPath} {
		info, err := os.Stat(path)
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve image: %w", err)
		}
		if info.IsDir() {
			return "", "", fmt.Errorf("failed to resolve image: %s is a directory", path)
		}
	}
	return frontPath, backPath, nil
}

// EstimateTokens approximates the size of a provider reply as a quarter of its
// JSON length, never less than one.
func EstimateTokens(raw models.RawResponse) int {
	data, err := json.Marshal(raw)
	if err != nil {
		return 1
	}
	return max(1, len(data)/4)
}

// SummaryLine is the one-line digest logged and printed for each item.
func SummaryLine(r models.CardRecord, needsReview bool, tokens int) string {
	year := "?"
	if r.Year != nil {
		year = strconv.Itoa(*r.Year)
	}
	set, num := "?", "?"
	if r.Set != nil {
		set = *r.Set
	}
	if r.Number != nil {
		num = *r.Number
	}
	flag := ""
	if needsReview {
		flag = " ⚠"
	}
	return fmt.Sprintf("%s %s %s %s :: conf=%.2f%s tok~%d", year, set, num, r.Identity(), r.Conf, flag, tokens)
}
