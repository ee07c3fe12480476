package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsift/jobsift/internal/store"
	"github.com/jobsift/jobsift/internal/taxonomy"
)

type fixedMatcher struct {
	matches []taxonomy.Match
	calls   int
}

func (m *fixedMatcher) ExtractTechnologies(ctx context.Context, title, description string) []taxonomy.Match {
	m.calls++
	return m.matches
}

// tickClock returns a clock that advances one second per call.
func tickClock() func() time.Time {
	t := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestEngine(t *testing.T, matches []taxonomy.Match) (*Engine, *store.Memory, *fixedMatcher) {
	t.Helper()
	mem := store.NewMemory()
	matcher := &fixedMatcher{matches: matches}
	return NewEngine(mem, matcher, zerolog.Nop(), WithClock(tickClock())), mem, matcher
}

func posting(title, description string) Posting {
	return Posting{Title: title, Description: description}
}

func TestUpsertRejectsMissingFields(t *testing.T) {
	e, mem, _ := newTestEngine(t, nil)
	ctx := context.Background()

	for _, p := range []Posting{
		{Description: "has description"},
		{Title: "has title"},
		{},
	} {
		id, status, err := e.Upsert(ctx, 1, p)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, status)
		assert.Zero(t, id)
	}
	assert.Equal(t, 0, mem.JobCount())
}

func TestUpsertCreatesThenRefreshes(t *testing.T) {
	e, mem, _ := newTestEngine(t, nil)
	ctx := context.Background()

	id1, status, err := e.Upsert(ctx, 1, posting("Backend Engineer", "original description"))
	require.NoError(t, err)
	assert.Equal(t, StatusNew, status)

	first, ok := mem.GetJob(id1)
	require.True(t, ok)

	// case/whitespace variant of the same title, new description
	id2, status, err := e.Upsert(ctx, 1, posting("  backend   ENGINEER ", "edited description"))
	require.NoError(t, err)
	assert.Equal(t, StatusExisting, status)
	assert.Equal(t, id1, id2)

	second, _ := mem.GetJob(id1)
	assert.True(t, second.LastSeenAt.After(first.LastSeenAt), "last_seen_at must strictly increase")
	assert.Equal(t, "original description", second.Description, "first-seen content wins")
	assert.True(t, second.FirstSeenAt.Equal(first.FirstSeenAt))
	assert.Equal(t, 1, mem.JobCount())
}

func TestUpsertAppliesDefaults(t *testing.T) {
	e, mem, _ := newTestEngine(t, nil)
	ctx := context.Background()

	id, _, err := e.Upsert(ctx, 1, posting("Platform Engineer (Go)", "desc"))
	require.NoError(t, err)

	job, _ := mem.GetJob(id)
	assert.Equal(t, DefaultExperienceLevel, job.ExperienceLevel)
	assert.Equal(t, DefaultEmploymentType, job.EmploymentType)
	assert.Equal(t, DefaultWorkMode, job.WorkMode)
	assert.Equal(t, "platform-engineer-go", job.Slug)
	assert.True(t, job.IsActive)
	assert.False(t, job.PostedAt.IsZero())
	assert.True(t, job.PostedAt.Equal(job.FirstSeenAt))
}

func TestUpsertKeepsProvidedFields(t *testing.T) {
	e, mem, _ := newTestEngine(t, nil)
	ctx := context.Background()

	posted := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	id, _, err := e.Upsert(ctx, 1, Posting{
		Title:           "Data Engineer",
		Description:     "desc",
		ExperienceLevel: "Senior",
		EmploymentType:  "Contract",
		WorkMode:        "Remote",
		PostedAt:        posted,
	})
	require.NoError(t, err)

	job, _ := mem.GetJob(id)
	assert.Equal(t, "Senior", job.ExperienceLevel)
	assert.Equal(t, "Contract", job.EmploymentType)
	assert.Equal(t, "Remote", job.WorkMode)
	assert.True(t, job.PostedAt.Equal(posted))
}

func TestUpsertTagsNewJobsOnly(t *testing.T) {
	matches := []taxonomy.Match{
		{TechnologyID: 1, IsPrimary: true},
		{TechnologyID: 2, IsPrimary: false},
	}
	e, mem, matcher := newTestEngine(t, matches)
	ctx := context.Background()

	id, _, err := e.Upsert(ctx, 1, posting("Backend Engineer", "Python and Docker"))
	require.NoError(t, err)

	links, err := mem.Links().ListByJob(ctx, id)
	require.NoError(t, err)
	require.Len(t, links, 2)
	primaries := 0
	for _, l := range links {
		if l.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
	assert.Equal(t, 1, matcher.calls)

	// repeat sighting does not re-run matching
	_, _, err = e.Upsert(ctx, 1, posting("Backend Engineer", "Python and Docker"))
	require.NoError(t, err)
	assert.Equal(t, 1, matcher.calls)
}

func TestUpsertBatchIsIdempotent(t *testing.T) {
	e, mem, _ := newTestEngine(t, []taxonomy.Match{{TechnologyID: 7, IsPrimary: true}})
	ctx := context.Background()

	batch := []Posting{
		posting("Backend Engineer", "d1"),
		posting("Frontend Engineer", "d2"),
	}
	var firstIDs []int64
	for _, p := range batch {
		id, _, err := e.Upsert(ctx, 1, p)
		require.NoError(t, err)
		firstIDs = append(firstIDs, id)
	}
	for i, p := range batch {
		id, status, err := e.Upsert(ctx, 1, p)
		require.NoError(t, err)
		assert.Equal(t, StatusExisting, status)
		assert.Equal(t, firstIDs[i], id)
	}
	assert.Equal(t, 2, mem.JobCount())
	for _, id := range firstIDs {
		links, err := mem.Links().ListByJob(ctx, id)
		require.NoError(t, err)
		assert.Len(t, links, 1)
	}
}

// raceStore forces the first signature lookup to miss so the engine races
// its insert against a row that already exists.
type raceStore struct {
	store.Store
	misses int
}

func (r *raceStore) Jobs() store.JobStore {
	return &raceJobs{JobStore: r.Store.Jobs(), owner: r}
}

func (r *raceStore) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return r.Store.WithTx(ctx, func(tx store.Store) error {
		return fn(&raceStore{Store: tx, misses: r.misses})
	})
}

type raceJobs struct {
	store.JobStore
	owner *raceStore
}

func (j *raceJobs) GetBySignature(ctx context.Context, sig string) (*store.Job, error) {
	if j.owner.misses > 0 {
		j.owner.misses--
		return nil, store.ErrNotFound
	}
	return j.JobStore.GetBySignature(ctx, sig)
}

func TestUpsertDuplicateRaceResolvesToExisting(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	e := NewEngine(mem, &fixedMatcher{}, zerolog.Nop(), WithClock(tickClock()))
	id, _, err := e.Upsert(ctx, 1, posting("Backend Engineer", "d"))
	require.NoError(t, err)

	racing := NewEngine(&raceStore{Store: mem, misses: 1}, &fixedMatcher{}, zerolog.Nop(), WithClock(tickClock()))
	id2, status, err := racing.Upsert(ctx, 1, posting("Backend Engineer", "d"))
	require.NoError(t, err)
	assert.Equal(t, StatusExisting, status)
	assert.Equal(t, id, id2)
	assert.Equal(t, 1, mem.JobCount())
}

// failingLinks makes every link upsert fail to exercise rollback.
type failingLinks struct {
	store.Store
}

func (f *failingLinks) Links() store.LinkStore { return failLinkStore{} }

func (f *failingLinks) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.WithTx(ctx, func(tx store.Store) error {
		return fn(&failingLinks{Store: tx})
	})
}

type failLinkStore struct{}

func (failLinkStore) Upsert(ctx context.Context, link store.JobTechnology) error {
	return errors.New("link write failed")
}

func (failLinkStore) ListByJob(ctx context.Context, jobID int64) ([]store.JobTechnology, error) {
	return nil, nil
}

func TestUpsertRollsBackJobWhenLinkWriteFails(t *testing.T) {
	mem := store.NewMemory()
	matcher := &fixedMatcher{matches: []taxonomy.Match{{TechnologyID: 1, IsPrimary: true}}}
	e := NewEngine(&failingLinks{Store: mem}, matcher, zerolog.Nop(), WithClock(tickClock()))

	_, status, err := e.Upsert(context.Background(), 1, posting("Backend Engineer", "d"))
	require.Error(t, err)
	assert.Equal(t, StatusUnknown, status, "error paths must not report a definite status")
	assert.Equal(t, 0, mem.JobCount(), "job insert must roll back with the failed link write")
}

func TestMarkInactiveDeactivatesOnlyUnobserved(t *testing.T) {
	e, mem, _ := newTestEngine(t, nil)
	ctx := context.Background()

	var ids []int64
	for _, title := range []string{"A", "B", "C"} {
		id, _, err := e.Upsert(ctx, 1, posting(title, "d"))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	n, err := e.MarkInactive(ctx, 1, ids[:2])
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := mem.Jobs().ListActiveIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ids[:2], active)

	gone, _ := mem.GetJob(ids[2])
	assert.False(t, gone.IsActive)
}

func TestMarkInactiveNoStaleJobs(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	id, _, err := e.Upsert(ctx, 1, posting("A", "d"))
	require.NoError(t, err)

	n, err := e.MarkInactive(ctx, 1, []int64{id})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkInactiveScopedToCompany(t *testing.T) {
	e, mem, _ := newTestEngine(t, nil)
	ctx := context.Background()

	id1, _, err := e.Upsert(ctx, 1, posting("A", "d"))
	require.NoError(t, err)
	id2, _, err := e.Upsert(ctx, 2, posting("A", "d"))
	require.NoError(t, err)

	n, err := e.MarkInactive(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job1, _ := mem.GetJob(id1)
	job2, _ := mem.GetJob(id2)
	assert.False(t, job1.IsActive)
	assert.True(t, job2.IsActive)
}
