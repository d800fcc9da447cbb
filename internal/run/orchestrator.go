// Package run drives a full application round: search, dedupe against
// the ledger, optional AI gating, the per-job form protocol, and the
// immediate ledger write after every attempt.
package run

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"applyflow-engine/internal/ai"
	"applyflow-engine/internal/apply"
	"applyflow-engine/internal/browser"
	"applyflow-engine/internal/config"
	"applyflow-engine/internal/domain"
	"applyflow-engine/internal/events"
	"applyflow-engine/internal/ledger"
	"applyflow-engine/internal/platform"
	"applyflow-engine/internal/report"
)

// PageFactory opens a fresh browser page per application attempt.
type PageFactory func() (browser.Page, error)

type Orchestrator struct {
	Cfg      config.Config
	Ledger   ledger.Ledger
	Sources  []platform.Source
	Verifier apply.Verifier      // nil when email verification is disabled
	AI       ai.ContentGenerator // nil when AI is disabled
	Sink     report.ResultsSink  // nil when reporting is disabled
	Hub      *events.Hub         // nil is fine, publish becomes a no-op
	NewPage  PageFactory
}

// RunOnce executes one complete round across all configured sources.
// It returns an error only when the ledger becomes unavailable; every
// other failure is contained, counted, and reflected in the summary.
func (o *Orchestrator) RunOnce(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log.Printf("[run] %s starting, %d sources", summary.RunID, len(o.Sources))
	o.publish(summary.RunID, events.TypeRunStarted, map[string]int{"sources": len(o.Sources)})

	if o.Cfg.App.ParallelPlatforms {
		g, gctx := errgroup.WithContext(ctx)
		results := make([]domain.PlatformSummary, len(o.Sources))
		for i, src := range o.Sources {
			i, src := i, src
			g.Go(func() error {
				ps, err := o.runPlatform(gctx, src)
				results[i] = ps
				return err
			})
		}
		err := g.Wait()
		for _, ps := range results {
			summary.Add(ps)
		}
		if err != nil {
			return summary, err
		}
	} else {
		for _, src := range o.Sources {
			ps, err := o.runPlatform(ctx, src)
			summary.Add(ps)
			if err != nil {
				return summary, err
			}
		}
	}

	summary.FinishedAt = time.Now().UTC()
	log.Printf("[run] %s done: %d found, %d submitted, %d errors",
		summary.RunID, summary.JobsFound, summary.Submitted, summary.Errors)
	o.publish(summary.RunID, events.TypeRunFinished, summary)

	if o.Sink != nil {
		if err := o.Sink.Report(ctx, summary); err != nil {
			// Reporting is best effort; the run already succeeded.
			log.Printf("[run] results sink failed: %v", err)
		}
	}
	return summary, nil
}

// runPlatform returns a non-nil error only on ledger unavailability or
// context cancellation, both of which abort the whole run.
func (o *Orchestrator) runPlatform(ctx context.Context, src platform.Source) (domain.PlatformSummary, error) {
	name := src.Name()
	pcfg := o.Cfg.Platforms[name]
	ps := domain.PlatformSummary{Platform: name}

	jobs, err := src.Search(ctx, domain.SearchCriteria{
		Keywords:        o.Cfg.Search.Keywords,
		Locations:       o.Cfg.Search.Locations,
		ExperienceLevel: o.Cfg.Search.ExperienceLevel,
		RemoteOnly:      o.Cfg.Search.RemoteOnly,
		DatePosted:      o.Cfg.Search.DatePosted,
		EasyApplyOnly:   o.Cfg.Search.EasyApplyOnly,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ps, ctx.Err()
		}
		log.Printf("[run] %s: search failed: %v", name, err)
		ps.Errors++
		return ps, nil
	}
	ps.JobsFound = len(jobs)

	fresh, err := o.filterApplied(ctx, jobs, &ps)
	if err != nil {
		return ps, err
	}

	candidates := o.gate(ctx, name, fresh, pcfg.MaxApplications, &ps)

	pace := time.Duration(o.Cfg.Application.PaceSeconds) * time.Second
	limiter := rate.NewLimiter(rate.Inf, 1)
	if pace > 0 {
		limiter = rate.NewLimiter(rate.Every(pace), 1)
	}

	for _, cand := range candidates {
		if err := limiter.Wait(ctx); err != nil {
			return ps, err
		}
		if err := o.applyAndRecord(ctx, cand, &ps); err != nil {
			return ps, err
		}
	}

	log.Printf("[run] %s: %d found, %d already applied, %d filtered, %d submitted, %d errors",
		name, ps.JobsFound, ps.AlreadyApplied, ps.AIFiltered, ps.ApplicationsSubmitted, ps.Errors)
	o.publish("", events.TypePlatformFinished, ps)
	return ps, nil
}

// filterApplied drops every posting already in the ledger. One batched
// read per platform.
func (o *Orchestrator) filterApplied(ctx context.Context, jobs []domain.JobPosting, ps *domain.PlatformSummary) ([]domain.JobPosting, error) {
	if len(jobs) == 0 {
		return nil, nil
	}
	keys := make([]ledger.Key, 0, len(jobs))
	for _, j := range jobs {
		keys = append(keys, ledger.Key{JobID: j.JobID, Platform: j.Platform})
	}
	seen, err := o.Ledger.HasAppliedBatch(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("dedupe check: %w", err)
	}
	fresh := jobs[:0]
	for _, j := range jobs {
		if seen[ledger.Key{JobID: j.JobID, Platform: j.Platform}] {
			ps.AlreadyApplied++
			continue
		}
		fresh = append(fresh, j)
	}
	return fresh, nil
}

type candidate struct {
	job     domain.JobPosting
	score   int
	content apply.Content
}

// gate scores postings when AI is enabled and keeps the ones at or
// above the threshold, scanning at most 3x the application cap so a
// run of irrelevant postings cannot stall the round. Scoring errors
// degrade to accepting the posting without AI content.
func (o *Orchestrator) gate(ctx context.Context, name string, jobs []domain.JobPosting, maxApps int, ps *domain.PlatformSummary) []candidate {
	if maxApps <= 0 {
		maxApps = 1
	}
	out := make([]candidate, 0, maxApps)

	if o.AI == nil || !o.Cfg.AI.Enabled {
		for _, j := range jobs {
			if len(out) >= maxApps {
				break
			}
			out = append(out, candidate{job: j})
		}
		return out
	}

	threshold := o.Cfg.AI.RelevanceThreshold
	if threshold <= 0 {
		threshold = 6
	}
	scanBudget := maxApps * 3

	for i, j := range jobs {
		if len(out) >= maxApps || i >= scanBudget {
			break
		}
		rel, err := o.AI.ScoreRelevance(ctx, j)
		if err != nil {
			log.Printf("[run] %s: relevance scoring for %q failed, keeping posting: %v", name, j.Title, err)
			out = append(out, candidate{job: j})
			continue
		}
		if rel.Score < threshold {
			log.Printf("[run] %s: skipping %q (score %d: %s)", name, j.Title, rel.Score, rel.Reasoning)
			ps.AIFiltered++
			continue
		}
		out = append(out, candidate{job: j, score: rel.Score, content: o.generateContent(ctx, name, j)})
	}
	return out
}

// generateContent is best effort: any failure means the attempt runs
// with the configured generic answers instead.
func (o *Orchestrator) generateContent(ctx context.Context, name string, job domain.JobPosting) apply.Content {
	var content apply.Content
	letter, err := o.AI.CoverLetter(ctx, job)
	if err != nil {
		log.Printf("[run] %s: cover letter for %q failed: %v", name, job.Title, err)
	} else {
		content.CoverLetter = letter
	}
	summary, err := o.AI.OptimizeSection(ctx, job, o.Cfg.AI.ResumeSummary)
	if err != nil {
		log.Printf("[run] %s: summary tailoring for %q failed: %v", name, job.Title, err)
	} else {
		content.Summary = summary
	}
	return content
}

// applyAndRecord runs one attempt and writes the ledger record before
// anything else can happen. The record lands even when the attempt
// panics. The returned error is non-nil only for ledger unavailability
// or cancellation.
func (o *Orchestrator) applyAndRecord(ctx context.Context, cand candidate, ps *domain.PlatformSummary) error {
	job := cand.job

	if o.Cfg.App.DryRun {
		log.Printf("[run] dry-run: would apply to %q at %s (%s)", job.Title, job.Company, job.URL)
		return nil
	}

	o.publish("", events.TypeApplicationStarted, map[string]string{
		"job_id": job.JobID, "platform": job.Platform, "title": job.Title,
	})

	result := o.attempt(ctx, cand)

	status := domain.StatusError
	applied := domain.AppliedJob{
		Title:          job.Title,
		Company:        job.Company,
		URL:            job.URL,
		RelevanceScore: cand.score,
		AIEnhanced:     cand.content.CoverLetter != "" || cand.content.Summary != "",
	}
	switch result.Outcome {
	case apply.OutcomeCompleted:
		status = domain.StatusApplied
		ps.ApplicationsSubmitted++
	case apply.OutcomeFailed:
		applied.FailureReason = result.Reason
		ps.Errors++
	}
	applied.Status = status
	ps.AppliedJobs = append(ps.AppliedJobs, applied)

	created, err := o.Ledger.Record(ctx, ledger.Record{
		JobID:     job.JobID,
		Platform:  job.Platform,
		Title:     job.Title,
		Company:   job.Company,
		URL:       job.URL,
		AppliedAt: time.Now().UTC(),
		Status:    status,
		Metadata: map[string]string{
			"steps":    fmt.Sprintf("%d", result.Steps),
			"verified": fmt.Sprintf("%t", result.Verified),
			"reason":   result.Reason,
		},
	})
	if err != nil {
		if errors.Is(err, ledger.ErrUnavailable) {
			return fmt.Errorf("record %s/%s: %w", job.Platform, job.JobID, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[run] record %s/%s failed: %v", job.Platform, job.JobID, err)
		ps.Errors++
		return nil
	}
	if !created {
		// Another worker got there first; the attempt still happened, but
		// the ledger keeps a single record per pair.
		log.Printf("[run] %s/%s already recorded", job.Platform, job.JobID)
	}

	o.publish("", events.TypeApplicationRecorded, applied)
	return nil
}

// attempt isolates one browser session. A panic inside the page driver
// or the form protocol fails this attempt only.
func (o *Orchestrator) attempt(ctx context.Context, cand candidate) (result apply.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[run] attempt for %s/%s panicked: %v", cand.job.Platform, cand.job.JobID, r)
			result = apply.Result{Outcome: apply.OutcomeFailed, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	page, err := o.NewPage()
	if err != nil {
		return apply.Result{Outcome: apply.OutcomeFailed, Reason: fmt.Sprintf("open page: %v", err)}
	}
	if closer, ok := page.(interface{ Close() }); ok {
		defer closer.Close()
	}

	if err := page.Navigate(ctx, cand.job.URL); err != nil {
		return apply.Result{Outcome: apply.OutcomeFailed, Reason: fmt.Sprintf("navigate: %v", err)}
	}

	m := &apply.Machine{
		StepCap:  o.Cfg.Application.StepCap,
		Answers:  mergedAnswers(o.Cfg.Application.PersonalInfo, o.Cfg.Application.Answers),
		Verifier: o.Verifier,
	}
	return m.RunWithContent(ctx, page, cand.content)
}

func mergedAnswers(personal, answers map[string]string) map[string]string {
	merged := make(map[string]string, len(personal)+len(answers))
	for k, v := range personal {
		merged[k] = v
	}
	for k, v := range answers {
		merged[k] = v
	}
	return merged
}

func (o *Orchestrator) publish(runID, typ string, data any) {
	if o.Hub == nil {
		return
	}
	o.Hub.Publish(events.MakeEvent(runID, typ, 1, data))
}
