package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// Postgres implements Store over sqlx with the pgx stdlib driver.
type Postgres struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

// OpenPostgres connects to dsn and pings it.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db, ext: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Jobs() JobStore                { return &pgJobs{ext: p.ext} }
func (p *Postgres) Technologies() TechnologyStore { return &pgTechs{ext: p.ext} }
func (p *Postgres) Links() LinkStore              { return &pgLinks{ext: p.ext} }

func (p *Postgres) WithTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Postgres{db: p.db, ext: tx}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// translateErr maps driver errors onto the store sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

type pgJobs struct {
	ext sqlx.ExtContext
}

func (r *pgJobs) GetBySignature(ctx context.Context, sig string) (*Job, error) {
	var job Job
	err := sqlx.GetContext(ctx, r.ext, &job,
		`SELECT id, company_id, title, slug, description, requirements,
		        preferred_skills, experience_level, employment_type, location,
		        work_mode, application_url, job_function, signature, is_active,
		        first_seen_at, last_seen_at, posted_at
		   FROM jobs WHERE signature = $1`, sig)
	if err != nil {
		return nil, translateErr(err)
	}
	return &job, nil
}

func (r *pgJobs) Insert(ctx context.Context, job *Job) (int64, error) {
	// ON CONFLICT DO NOTHING keeps a signature collision from aborting
	// the surrounding transaction; callers recover on the same tx.
	var id int64
	err := sqlx.GetContext(ctx, r.ext, &id,
		`INSERT INTO jobs (company_id, title, slug, description, requirements,
		        preferred_skills, experience_level, employment_type, location,
		        work_mode, application_url, job_function, signature, is_active,
		        first_seen_at, last_seen_at, posted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		 ON CONFLICT (signature) DO NOTHING
		 RETURNING id`,
		job.CompanyID, job.Title, job.Slug, job.Description, job.Requirements,
		job.PreferredSkills, job.ExperienceLevel, job.EmploymentType, job.Location,
		job.WorkMode, job.ApplicationURL, job.JobFunction, job.Signature, job.IsActive,
		job.FirstSeenAt, job.LastSeenAt, job.PostedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// No row returned means the insert was skipped on conflict.
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, translateErr(err)
	}
	return id, nil
}

func (r *pgJobs) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	res, err := r.ext.ExecContext(ctx,
		`UPDATE jobs SET last_seen_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return translateErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgJobs) ListActiveIDs(ctx context.Context, companyID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.ext, &ids,
		`SELECT id FROM jobs WHERE company_id = $1 AND is_active ORDER BY id`, companyID)
	if err != nil {
		return nil, translateErr(err)
	}
	return ids, nil
}

func (r *pgJobs) Deactivate(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE jobs SET is_active = FALSE WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("build deactivate query: %w", err)
	}
	_, err = r.ext.ExecContext(ctx, r.ext.Rebind(query), args...)
	return translateErr(err)
}

type pgTechs struct {
	ext sqlx.ExtContext
}

func (r *pgTechs) List(ctx context.Context, limit int) ([]Technology, error) {
	query := `SELECT id, name, category, parent_id FROM technologies ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	var techs []Technology
	if err := sqlx.SelectContext(ctx, r.ext, &techs, query, args...); err != nil {
		return nil, translateErr(err)
	}
	return techs, nil
}

func (r *pgTechs) Insert(ctx context.Context, tech *Technology) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, r.ext, &id,
		`INSERT INTO technologies (name, category, parent_id)
		 VALUES ($1,$2,$3) RETURNING id`,
		tech.Name, tech.Category, tech.ParentID)
	if err != nil {
		return 0, translateErr(err)
	}
	return id, nil
}

type pgLinks struct {
	ext sqlx.ExtContext
}

func (r *pgLinks) Upsert(ctx context.Context, link JobTechnology) error {
	_, err := r.ext.ExecContext(ctx,
		`INSERT INTO job_technologies (job_id, technology_id, is_primary)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (job_id, technology_id)
		 DO UPDATE SET is_primary = EXCLUDED.is_primary`,
		link.JobID, link.TechnologyID, link.IsPrimary)
	return translateErr(err)
}

func (r *pgLinks) ListByJob(ctx context.Context, jobID int64) ([]JobTechnology, error) {
	var links []JobTechnology
	err := sqlx.SelectContext(ctx, r.ext, &links,
		`SELECT job_id, technology_id, is_primary
		   FROM job_technologies WHERE job_id = $1 ORDER BY technology_id`, jobID)
	if err != nil {
		return nil, translateErr(err)
	}
	return links, nil
}
