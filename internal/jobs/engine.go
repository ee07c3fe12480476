// Package jobs implements the idempotent job upsert keyed by signature, and
// the bulk deactivation of jobs that disappeared from a company's page.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobsift/jobsift/internal/signature"
	"github.com/jobsift/jobsift/internal/store"
	"github.com/jobsift/jobsift/internal/taxonomy"
)

// Defaults applied to optional posting fields on first insert.
const (
	DefaultExperienceLevel = "Not specified"
	DefaultEmploymentType  = "Full-time"
	DefaultWorkMode        = "Not specified"
)

// Posting is one scraped job as handed over by the posting source. A zero
// PostedAt means the source did not carry a posting date.
type Posting struct {
	Title           string
	Description     string
	Requirements    string
	PreferredSkills string
	ExperienceLevel string
	EmploymentType  string
	Location        string
	WorkMode        string
	ApplicationURL  string
	JobFunction     string
	PostedAt        time.Time
}

// Status is the outcome of upserting one posting. It is only meaningful
// when Upsert returns a nil error; error paths report StatusUnknown.
type Status int

const (
	// StatusUnknown accompanies a non-nil error; nothing is known about
	// the posting's fate.
	StatusUnknown Status = iota
	// StatusRejected means the posting was missing required fields and no
	// record was written.
	StatusRejected
	// StatusExisting means a job with this signature already existed and
	// only its last-seen timestamp moved.
	StatusExisting
	// StatusNew means a job record was created and tagged.
	StatusNew
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusRejected:
		return "rejected"
	case StatusExisting:
		return "existing"
	case StatusNew:
		return "new"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// TechnologyMatcher resolves a posting's technologies. Satisfied by
// *taxonomy.Matcher.
type TechnologyMatcher interface {
	ExtractTechnologies(ctx context.Context, title, description string) []taxonomy.Match
}

// Engine upserts postings into the store. All writes for one posting happen
// in a single transaction.
type Engine struct {
	store   store.Store
	matcher TechnologyMatcher
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(st store.Store, matcher TechnologyMatcher, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		matcher: matcher,
		log:     log.With().Str("component", "jobs").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Upsert creates or refreshes the job record for a posting.
//
// Postings without a title or description are rejected with a warning and no
// id; they are never an error. An existing job (same signature) only gets its
// last-seen timestamp refreshed: first-seen content wins, later edits to the
// description are ignored. A new job is inserted with field defaults and
// is_active set, then tagged with matched technologies. A unique-violation
// race on insert resolves to the existing-job path.
func (e *Engine) Upsert(ctx context.Context, companyID int64, p Posting) (int64, Status, error) {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Description) == "" {
		e.log.Warn().
			Int64("company_id", companyID).
			Str("title", p.Title).
			Msg("posting rejected: missing title or description")
		return 0, StatusRejected, nil
	}

	sig := signature.Compute(companyID, p.Title)
	var (
		id     int64
		status Status
	)
	err := e.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		id, status, err = e.upsertTx(ctx, tx, companyID, p, sig)
		return err
	})
	if err != nil {
		return 0, StatusUnknown, fmt.Errorf("upsert job (company %d, sig %s): %w", companyID, sig, err)
	}
	e.log.Debug().
		Int64("company_id", companyID).
		Int64("job_id", id).
		Stringer("status", status).
		Msg("posting upserted")
	return id, status, nil
}

func (e *Engine) upsertTx(ctx context.Context, tx store.Store, companyID int64, p Posting, sig string) (int64, Status, error) {
	now := e.now()

	existing, err := tx.Jobs().GetBySignature(ctx, sig)
	switch {
	case err == nil:
		if err := tx.Jobs().TouchLastSeen(ctx, existing.ID, now); err != nil {
			return 0, StatusUnknown, err
		}
		return existing.ID, StatusExisting, nil
	case !errors.Is(err, store.ErrNotFound):
		return 0, StatusUnknown, err
	}

	job := e.buildJob(companyID, p, sig, now)
	id, err := tx.Jobs().Insert(ctx, job)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost a race against another writer; the signature is the
		// arbiter of identity, so treat it as an existing job.
		raced, getErr := tx.Jobs().GetBySignature(ctx, sig)
		if getErr != nil {
			return 0, StatusUnknown, fmt.Errorf("resolve duplicate signature: %w", getErr)
		}
		if err := tx.Jobs().TouchLastSeen(ctx, raced.ID, now); err != nil {
			return 0, StatusUnknown, err
		}
		return raced.ID, StatusExisting, nil
	}
	if err != nil {
		return 0, StatusUnknown, err
	}

	for _, match := range e.matcher.ExtractTechnologies(ctx, p.Title, p.Description) {
		link := store.JobTechnology{
			JobID:        id,
			TechnologyID: match.TechnologyID,
			IsPrimary:    match.IsPrimary,
		}
		if err := tx.Links().Upsert(ctx, link); err != nil {
			return 0, StatusUnknown, fmt.Errorf("link technology %d: %w", match.TechnologyID, err)
		}
	}
	return id, StatusNew, nil
}

func (e *Engine) buildJob(companyID int64, p Posting, sig string, now time.Time) *store.Job {
	job := &store.Job{
		CompanyID:       companyID,
		Title:           p.Title,
		Slug:            signature.Slugify(p.Title),
		Description:     p.Description,
		Requirements:    p.Requirements,
		PreferredSkills: p.PreferredSkills,
		ExperienceLevel: p.ExperienceLevel,
		EmploymentType:  p.EmploymentType,
		Location:        p.Location,
		WorkMode:        p.WorkMode,
		ApplicationURL:  p.ApplicationURL,
		JobFunction:     p.JobFunction,
		Signature:       sig,
		IsActive:        true,
		FirstSeenAt:     now,
		LastSeenAt:      now,
		PostedAt:        p.PostedAt,
	}
	if job.ExperienceLevel == "" {
		job.ExperienceLevel = DefaultExperienceLevel
	}
	if job.EmploymentType == "" {
		job.EmploymentType = DefaultEmploymentType
	}
	if job.WorkMode == "" {
		job.WorkMode = DefaultWorkMode
	}
	if job.PostedAt.IsZero() {
		job.PostedAt = now
	}
	return job
}

// MarkInactive flips is_active off on every currently active job of the
// company that is absent from observed. It returns how many jobs were
// deactivated. There is no grace period: a job missing from one scrape is
// deactivated immediately.
func (e *Engine) MarkInactive(ctx context.Context, companyID int64, observed []int64) (int, error) {
	active, err := e.store.Jobs().ListActiveIDs(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("list active jobs for company %d: %w", companyID, err)
	}
	observedSet := make(map[int64]struct{}, len(observed))
	for _, id := range observed {
		observedSet[id] = struct{}{}
	}
	var stale []int64
	for _, id := range active {
		if _, ok := observedSet[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := e.store.Jobs().Deactivate(ctx, stale); err != nil {
		return 0, fmt.Errorf("deactivate %d jobs for company %d: %w", len(stale), companyID, err)
	}
	e.log.Info().
		Int64("company_id", companyID).
		Int("deactivated", len(stale)).
		Msg("stale jobs deactivated")
	return len(stale), nil
}
