// Package pipeline runs the full scrape-to-ledger flow: sequential company
// iteration, per-posting upsert with a fixed inter-item delay, stale-job
// deactivation, and the end-of-run ledger roll.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/ledger"
	"github.com/jobsift/jobsift/internal/signature"
)

// Company identifies one employer whose postings are processed.
type Company struct {
	ID   int64
	Name string
}

// Source yields the currently listed postings for a company. A source error
// fails that company only; the run continues with the next one.
type Source interface {
	Postings(ctx context.Context, company Company) ([]jobs.Posting, error)
}

// Summary aggregates one run's outcomes.
type Summary struct {
	Companies int
	Failures  int
	New       int
	Existing  int
	Rejected  int
	// Signatures of every posting upserted this run, deduplicated.
	Signatures ledger.Set
	// Duplicates detected by the ledger roll, best-effort.
	Duplicates int
}

// Runner orchestrates a pipeline execution.
type Runner struct {
	engine *jobs.Engine
	ledger ledger.Store
	delay  time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

type Option func(*Runner)

// WithClock overrides the runner's time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner builds a Runner. delay is the mandatory pause between postings,
// rate-limiting the extraction collaborator.
func NewRunner(engine *jobs.Engine, ledgerStore ledger.Store, delay time.Duration, log zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		engine: engine,
		ledger: ledgerStore,
		delay:  delay,
		log:    log.With().Str("component", "pipeline").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every company in order and rolls the day's signatures into
// the ledger. It returns an error only when ctx is cancelled; company-level
// failures are counted in the summary instead.
func (r *Runner) Run(ctx context.Context, companies []Company, src Source) (Summary, error) {
	summary := Summary{Signatures: ledger.Set{}}
	for _, company := range companies {
		summary.Companies++
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := r.runCompany(ctx, company, src, &summary); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failures++
			r.log.Error().Err(err).
				Int64("company_id", company.ID).
				Str("company", company.Name).
				Msg("company failed, continuing with next")
		}
	}

	res := ledger.Roll(ctx, r.ledger, summary.Signatures, r.now(), r.log)
	summary.Duplicates = len(res.Duplicates)

	r.log.Info().
		Int("companies", summary.Companies).
		Int("failures", summary.Failures).
		Int("new", summary.New).
		Int("existing", summary.Existing).
		Int("rejected", summary.Rejected).
		Msg("run finished")
	return summary, nil
}

func (r *Runner) runCompany(ctx context.Context, company Company, src Source, summary *Summary) error {
	postings, err := src.Postings(ctx, company)
	if err != nil {
		return fmt.Errorf("fetch postings: %w", err)
	}

	var observed []int64
	for i, p := range postings {
		if i > 0 {
			if err := sleep(ctx, r.delay); err != nil {
				return err
			}
		}
		id, status, err := r.engine.Upsert(ctx, company.ID, p)
		if err != nil {
			return err
		}
		switch status {
		case jobs.StatusNew:
			summary.New++
		case jobs.StatusExisting:
			summary.Existing++
		case jobs.StatusRejected:
			summary.Rejected++
			continue
		}
		observed = append(observed, id)
		summary.Signatures[signature.Compute(company.ID, p.Title)] = struct{}{}
	}

	if _, err := r.engine.MarkInactive(ctx, company.ID, observed); err != nil {
		return err
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
