// Package dispatcher orchestrates per-platform submission across the
// rate-limit, dedup, and credential gates, producing exactly one result per
// requested platform.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/filebug/filebug/internal/adapters"
	"github.com/filebug/filebug/internal/credentials"
	"github.com/filebug/filebug/internal/dedup"
	"github.com/filebug/filebug/internal/logging"
	"github.com/filebug/filebug/internal/report"
)

// Submission is one completed submit call, retrievable by id.
type Submission struct {
	ID        string
	Issue     report.Issue
	Results   []report.SubmissionResult
	CreatedAt time.Time
}

// BatchItem pairs one batch issue with its submission outcome. Err is set
// only for issues rejected before dispatch (validation failures).
type BatchItem struct {
	ID      string
	Issue   report.Issue
	Results []report.SubmissionResult
	Err     error
}

// Dispatcher owns the gate pipeline and the in-memory submission log.
type Dispatcher struct {
	store      *credentials.Store
	index      *dedup.Index
	submitters map[report.Platform]adapters.Submitter
	limits     *rateLimits

	mu  sync.Mutex
	log map[string]*Submission
}

// New creates a dispatcher over the given credential store, dedup index, and
// adapter set (typically adapters.All()).
func New(store *credentials.Store, index *dedup.Index, submitters map[report.Platform]adapters.Submitter) *Dispatcher {
	return &Dispatcher{
		store:      store,
		index:      index,
		submitters: submitters,
		limits:     newRateLimits(),
		log:        make(map[string]*Submission),
	}
}

// Submit files the issue on every requested platform. It validates the issue
// before contacting anything, then evaluates the rate-limit, dedup, and
// credential gates per platform in that order, and finally either synthesizes
// a dry-run result or invokes the adapter. Failures on one platform never
// abort the others. Successful results are recorded into the dedup index.
func (d *Dispatcher) Submit(ctx context.Context, issue report.Issue, opts report.SubmitOptions) (string, []report.SubmissionResult, error) {
	if err := issue.Validate(); err != nil {
		return "", nil, err
	}

	id := uuid.NewString()
	logger := logging.WithSubmission(id)

	// The dedup decision is a property of the issue, not the platform;
	// compute it once and apply it at each platform's dedup gate.
	var decision *dedup.Decision
	if opts.Dedupe {
		dec := d.index.Check(issue)
		decision = &dec
		logger.Debug("dedup check", "decision", dec.Kind.String())
	}

	results := make([]report.SubmissionResult, 0, len(opts.Platforms))
	for _, platform := range opts.Platforms {
		results = append(results, d.submitOne(ctx, platform, issue, opts, decision, id))
	}

	for _, res := range results {
		if res.Status == report.StatusSuccess {
			d.index.Record(issue, res.Platform, string(res.Status))
		}
	}

	sub := &Submission{
		ID:        id,
		Issue:     issue,
		Results:   results,
		CreatedAt: time.Now(),
	}
	d.mu.Lock()
	d.log[id] = sub
	d.mu.Unlock()

	return id, results, nil
}

// submitOne runs the gate pipeline for a single platform.
func (d *Dispatcher) submitOne(ctx context.Context, platform report.Platform, issue report.Issue, opts report.SubmitOptions, decision *dedup.Decision, id string) report.SubmissionResult {
	logger := logging.WithPlatform(string(platform)).With(slog.String("submission_id", id))

	// Rate-limit gate: terminal for this call, caller retries later.
	if blocked, reset := d.limits.exhausted(platform); blocked {
		logger.Warn("rate-limit gate tripped", "reset", reset)
		return report.Failure(platform, fmt.Sprintf("rate limited: quota window resets at %s", reset.Format(time.RFC3339)))
	}

	// Dedup gate: a duplicate or near-duplicate short-circuits the
	// platform with a skip, never an adapter call.
	if decision != nil {
		switch decision.Kind {
		case dedup.Duplicate:
			logger.Debug("dedup gate: duplicate", "hash", decision.Existing.ContentHash)
			return report.Skipped(platform, report.SkipDuplicate,
				fmt.Sprintf("already submitted as %s (platforms: %d, history: %d entries)",
					decision.Existing.ContentHash, len(decision.Existing.Platforms), len(decision.Existing.History)))
		case dedup.Similar:
			logger.Debug("dedup gate: similar", "matches", len(decision.Matches))
			return report.Skipped(platform, report.SkipSimilar, similarDetail(decision.Matches))
		}
	}

	// Credential gate: an empty pool fails this platform only.
	cred, err := d.store.Get(platform)
	if err != nil {
		var noCreds *credentials.NoCredentialsError
		if errors.As(err, &noCreds) {
			logger.Warn("credential gate: empty pool")
		}
		return report.Failure(platform, err.Error())
	}

	if opts.DryRun {
		return report.DryRun(platform, issue)
	}

	submitter := d.submitters[platform]
	if submitter == nil {
		return report.Failure(platform, fmt.Sprintf("no adapter registered for %s", platform))
	}

	res, err := submitter.Submit(ctx, issue, cred, opts)
	if err != nil {
		var aerr *adapters.AdapterError
		if errors.As(err, &aerr) {
			d.limits.observeError(platform, aerr)
		}
		logger.Warn("adapter failed", "error", err)
		return report.Failure(platform, err.Error())
	}

	d.limits.observe(platform, res.Rate)
	logger.Debug("adapter succeeded", "url", res.URL)
	return report.Success(platform, res.URL)
}

// similarDetail renders the ranked match list as skip evidence.
func similarDetail(matches []dedup.Match) string {
	detail := fmt.Sprintf("%d similar submission(s):", len(matches))
	for _, m := range matches {
		detail += fmt.Sprintf(" %q (%.2f)", m.NormalizedTitle, m.Similarity)
	}
	return detail
}

// SubmitBatch applies Submit to each issue independently. One issue's
// failure never prevents processing of the rest; results stay associated
// with the issue that produced them.
func (d *Dispatcher) SubmitBatch(ctx context.Context, issues []report.Issue, opts report.SubmitOptions) []BatchItem {
	items := make([]BatchItem, 0, len(issues))
	for _, issue := range issues {
		id, results, err := d.Submit(ctx, issue, opts)
		items = append(items, BatchItem{
			ID:      id,
			Issue:   issue,
			Results: results,
			Err:     err,
		})
	}
	return items
}

// HasAdapter reports whether an adapter is registered for the platform.
func (d *Dispatcher) HasAdapter(platform report.Platform) bool {
	return d.submitters[platform] != nil
}

// Submission returns a copy of a completed submission by id.
func (d *Dispatcher) Submission(id string) (*Submission, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub, ok := d.log[id]
	if !ok {
		return nil, false
	}
	cp := *sub
	cp.Results = append([]report.SubmissionResult(nil), sub.Results...)
	return &cp, true
}
