// Package ledger keeps the rolling cross-day signature history used to
// detect duplicate postings between consecutive runs.
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Set is a set of job signatures.
type Set map[string]struct{}

// NewSet builds a Set from signatures.
func NewSet(sigs ...string) Set {
	s := make(Set, len(sigs))
	for _, sig := range sigs {
		s[sig] = struct{}{}
	}
	return s
}

// Sorted returns the set's members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for sig := range s {
		out = append(out, sig)
	}
	sort.Strings(out)
	return out
}

// Result of reconciling one day's signatures against the previous ledger.
type Result struct {
	// Duplicates were seen both today and in yesterday's ledger.
	Duplicates Set
	// NewUnique were seen today for the first time.
	NewUnique Set
	// AllUnique is the rolling union persisted as today's ledger.
	AllUnique Set
}

// Reconcile computes today's ledger state from yesterday's. Pure set
// algebra: duplicates = today ∩ yesterday, new = today − duplicates,
// all = yesterday ∪ new.
func Reconcile(yesterday, today Set) Result {
	res := Result{
		Duplicates: make(Set),
		NewUnique:  make(Set),
		AllUnique:  make(Set, len(yesterday)+len(today)),
	}
	for sig := range yesterday {
		res.AllUnique[sig] = struct{}{}
	}
	for sig := range today {
		if _, seen := yesterday[sig]; seen {
			res.Duplicates[sig] = struct{}{}
		} else {
			res.NewUnique[sig] = struct{}{}
			res.AllUnique[sig] = struct{}{}
		}
	}
	return res
}

// Report is the persisted per-day ledger blob.
type Report struct {
	Signatures       []string  `json:"signatures"`
	Count            int       `json:"count"`
	PreviousDayCount int       `json:"previous_day_count"`
	NewUniqueCount   int       `json:"new_unique_count"`
	DuplicatesCount  int       `json:"duplicates_count"`
	Timestamp        time.Time `json:"timestamp"`
}

// Store persists daily ledgers, keyed by date.
type Store interface {
	// Load returns the signature set saved for the given day. A missing
	// day is an empty set, not an error.
	Load(ctx context.Context, day time.Time) (Set, error)
	Save(ctx context.Context, day time.Time, report Report) error
	// SaveDuplicates writes the day's duplicate side report.
	SaveDuplicates(ctx context.Context, day time.Time, sigs []string) error
}

// Roll reconciles today's signatures against yesterday's ledger and persists
// the result. Best-effort: storage failures are logged and swallowed so they
// never block the run's job output. The returned Result is valid either way.
func Roll(ctx context.Context, st Store, today Set, now time.Time, log zerolog.Logger) Result {
	log = log.With().Str("component", "ledger").Logger()

	yesterday, err := st.Load(ctx, now.AddDate(0, 0, -1))
	if err != nil {
		log.Warn().Err(err).Msg("loading previous ledger failed, treating as empty")
		yesterday = Set{}
	}

	res := Reconcile(yesterday, today)
	report := Report{
		Signatures:       res.AllUnique.Sorted(),
		Count:            len(res.AllUnique),
		PreviousDayCount: len(yesterday),
		NewUniqueCount:   len(res.NewUnique),
		DuplicatesCount:  len(res.Duplicates),
		Timestamp:        now,
	}
	if err := st.Save(ctx, now, report); err != nil {
		log.Error().Err(err).Msg("saving ledger failed")
	}
	if len(res.Duplicates) > 0 {
		if err := st.SaveDuplicates(ctx, now, res.Duplicates.Sorted()); err != nil {
			log.Error().Err(err).Msg("saving duplicate report failed")
		}
	}
	log.Info().
		Int("all_unique", len(res.AllUnique)).
		Int("new_unique", len(res.NewUnique)).
		Int("duplicates", len(res.Duplicates)).
		Msg("ledger rolled")
	return res
}
