// Package store defines the persistence contracts for jobs, technologies,
// and job-technology links, plus the per-posting transactional unit of work.
// Implementations: Postgres (sqlx/pgx) and an in-memory store for tests and
// dry runs.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by point lookups that match nothing.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an insert violates a unique key.
	// The upsert engine relies on it to re-resolve races to the
	// existing-job path.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Job is the persisted job record. Signature is the unique dedup key;
// content fields keep their first-seen values and only LastSeenAt moves on
// repeat sightings.
type Job struct {
	ID              int64     `db:"id"`
	CompanyID       int64     `db:"company_id"`
	Title           string    `db:"title"`
	Slug            string    `db:"slug"`
	Description     string    `db:"description"`
	Requirements    string    `db:"requirements"`
	PreferredSkills string    `db:"preferred_skills"`
	ExperienceLevel string    `db:"experience_level"`
	EmploymentType  string    `db:"employment_type"`
	Location        string    `db:"location"`
	WorkMode        string    `db:"work_mode"`
	ApplicationURL  string    `db:"application_url"`
	JobFunction     string    `db:"job_function"`
	Signature       string    `db:"signature"`
	IsActive        bool      `db:"is_active"`
	FirstSeenAt     time.Time `db:"first_seen_at"`
	LastSeenAt      time.Time `db:"last_seen_at"`
	PostedAt        time.Time `db:"posted_at"`
}

// Technology is a taxonomy entry. Name is unique case-insensitively;
// ParentID, when set, forms a tree.
type Technology struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Category string `db:"category"`
	ParentID *int64 `db:"parent_id"`
}

// JobTechnology links a job to a technology. At most one row per job should
// carry IsPrimary, but the data layer does not enforce that.
type JobTechnology struct {
	JobID        int64 `db:"job_id"`
	TechnologyID int64 `db:"technology_id"`
	IsPrimary    bool  `db:"is_primary"`
}

// Store aggregates the repositories and the transactional boundary.
type Store interface {
	Jobs() JobStore
	Technologies() TechnologyStore
	Links() LinkStore

	// WithTx runs fn against a transactional view of the store. If fn
	// returns an error every write made inside it is rolled back.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type JobStore interface {
	GetBySignature(ctx context.Context, sig string) (*Job, error)
	// Insert persists a new job and returns its id. A signature
	// collision reports ErrDuplicate without poisoning a surrounding
	// transaction: callers may keep issuing statements on the same tx
	// to resolve the race.
	Insert(ctx context.Context, job *Job) (int64, error)
	TouchLastSeen(ctx context.Context, id int64, at time.Time) error
	// ListActiveIDs returns the ids of a company's currently active jobs.
	ListActiveIDs(ctx context.Context, companyID int64) ([]int64, error)
	Deactivate(ctx context.Context, ids []int64) error
}

type TechnologyStore interface {
	// List returns up to limit entries in primary-key order.
	List(ctx context.Context, limit int) ([]Technology, error)
	Insert(ctx context.Context, tech *Technology) (int64, error)
}

type LinkStore interface {
	// Upsert inserts the link or, when the (job, technology) pair already
	// exists, updates only is_primary.
	Upsert(ctx context.Context, link JobTechnology) error
	ListByJob(ctx context.Context, jobID int64) ([]JobTechnology, error)
}
