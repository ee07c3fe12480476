package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory Store used by tests and dry runs. WithTx snapshots
// the whole state and restores it when fn fails; writes are rolled back but
// are visible to concurrent readers while the transaction runs, which is
// fine for the sequential pipeline and for tests.
type Memory struct {
	mu sync.Mutex
	st memState
}

type linkKey struct {
	jobID, techID int64
}

type memState struct {
	jobs       map[int64]Job
	jobsBySig  map[string]int64
	techs      map[int64]Technology
	techOrder  []int64
	links      map[linkKey]JobTechnology
	linkOrder  []linkKey
	nextJobID  int64
	nextTechID int64
}

func NewMemory() *Memory {
	return &Memory{st: memState{
		jobs:       map[int64]Job{},
		jobsBySig:  map[string]int64{},
		techs:      map[int64]Technology{},
		links:      map[linkKey]JobTechnology{},
		nextJobID:  1,
		nextTechID: 1,
	}}
}

func (s memState) clone() memState {
	out := memState{
		jobs:       make(map[int64]Job, len(s.jobs)),
		jobsBySig:  make(map[string]int64, len(s.jobsBySig)),
		techs:      make(map[int64]Technology, len(s.techs)),
		techOrder:  append([]int64(nil), s.techOrder...),
		links:      make(map[linkKey]JobTechnology, len(s.links)),
		linkOrder:  append([]linkKey(nil), s.linkOrder...),
		nextJobID:  s.nextJobID,
		nextTechID: s.nextTechID,
	}
	for k, v := range s.jobs {
		out.jobs[k] = v
	}
	for k, v := range s.jobsBySig {
		out.jobsBySig[k] = v
	}
	for k, v := range s.techs {
		out.techs[k] = v
	}
	for k, v := range s.links {
		out.links[k] = v
	}
	return out
}

func (m *Memory) Jobs() JobStore                { return (*memJobs)(m) }
func (m *Memory) Technologies() TechnologyStore { return (*memTechs)(m) }
func (m *Memory) Links() LinkStore              { return (*memLinks)(m) }

func (m *Memory) WithTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	saved := m.st.clone()
	m.mu.Unlock()
	if err := fn(m); err != nil {
		m.mu.Lock()
		m.st = saved
		m.mu.Unlock()
		return err
	}
	return nil
}

// GetJob returns a copy of the stored job, for assertions in tests.
func (m *Memory) GetJob(id int64) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.st.jobs[id]
	return j, ok
}

// JobCount reports the number of stored job rows.
func (m *Memory) JobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.jobs)
}

type memJobs Memory

func (m *memJobs) GetBySignature(ctx context.Context, sig string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.st.jobsBySig[sig]
	if !ok {
		return nil, ErrNotFound
	}
	j := m.st.jobs[id]
	return &j, nil
}

func (m *memJobs) Insert(ctx context.Context, job *Job) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.jobsBySig[job.Signature]; ok {
		return 0, ErrDuplicate
	}
	id := m.st.nextJobID
	m.st.nextJobID++
	stored := *job
	stored.ID = id
	m.st.jobs[id] = stored
	m.st.jobsBySig[job.Signature] = id
	return id, nil
}

func (m *memJobs) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.st.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.LastSeenAt = at
	m.st.jobs[id] = j
	return nil
}

func (m *memJobs) ListActiveIDs(ctx context.Context, companyID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, j := range m.st.jobs {
		if j.CompanyID == companyID && j.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })
	return ids, nil
}

func (m *memJobs) Deactivate(ctx context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if j, ok := m.st.jobs[id]; ok {
			j.IsActive = false
			m.st.jobs[id] = j
		}
	}
	return nil
}

type memTechs Memory

func (m *memTechs) List(ctx context.Context, limit int) ([]Technology, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Technology, 0, len(m.st.techOrder))
	for _, id := range m.st.techOrder {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.st.techs[id])
	}
	return out, nil
}

func (m *memTechs) Insert(ctx context.Context, tech *Technology) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.techs {
		if strings.EqualFold(existing.Name, tech.Name) {
			return 0, ErrDuplicate
		}
	}
	id := m.st.nextTechID
	m.st.nextTechID++
	stored := *tech
	stored.ID = id
	m.st.techs[id] = stored
	m.st.techOrder = append(m.st.techOrder, id)
	return id, nil
}

type memLinks Memory

func (m *memLinks) Upsert(ctx context.Context, link JobTechnology) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := linkKey{link.JobID, link.TechnologyID}
	if existing, ok := m.st.links[key]; ok {
		existing.IsPrimary = link.IsPrimary
		m.st.links[key] = existing
		return nil
	}
	m.st.links[key] = link
	m.st.linkOrder = append(m.st.linkOrder, key)
	return nil
}

func (m *memLinks) ListByJob(ctx context.Context, jobID int64) ([]JobTechnology, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []JobTechnology
	for _, key := range m.st.linkOrder {
		if key.jobID == jobID {
			out = append(out, m.st.links[key])
		}
	}
	return out, nil
}
