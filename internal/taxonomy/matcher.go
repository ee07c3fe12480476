package taxonomy

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// primaryExcerptLen bounds the description excerpt sent to the extractor
// when electing a primary technology.
const primaryExcerptLen = 500

// Extractor is the external extraction collaborator. Both methods may fail;
// failures never abort a job, they degrade to empty/default results.
type Extractor interface {
	// ExtractNames maps a posting's free text to candidate technology
	// name strings.
	ExtractNames(ctx context.Context, title, description string) ([]string, error)
	// PickPrimary names the candidate most central to the role, or ""
	// when it cannot tell.
	PickPrimary(ctx context.Context, title, description string, candidates []string) (string, error)
}

// Match pairs a resolved technology with its primary flag.
type Match struct {
	TechnologyID int64
	IsPrimary    bool
}

// Matcher composes name extraction, taxonomy matching, and primary election.
type Matcher struct {
	snap *Snapshot
	ext  Extractor
	log  zerolog.Logger
}

func NewMatcher(snap *Snapshot, ext Extractor, log zerolog.Logger) *Matcher {
	return &Matcher{snap: snap, ext: ext, log: log.With().Str("component", "matcher").Logger()}
}

// ExtractTechnologies resolves a posting's technologies. It never fails: any
// collaborator error yields an empty result for this job and a warning.
func (m *Matcher) ExtractTechnologies(ctx context.Context, title, description string) []Match {
	names, err := m.ext.ExtractNames(ctx, title, description)
	if err != nil {
		m.log.Warn().Err(err).Str("title", title).Msg("technology extraction failed, skipping job tags")
		return nil
	}
	ids := m.snap.Match(names)
	if len(ids) == 0 {
		return nil
	}
	primary := m.choosePrimary(ctx, ids, title, description)
	out := make([]Match, len(ids))
	for i, id := range ids {
		out[i] = Match{TechnologyID: id, IsPrimary: id == primary}
	}
	return out
}

// choosePrimary elects one id from ids (never empty here). With multiple
// candidates it asks the collaborator; an error or an answer that maps to no
// candidate falls back to the first id in matched order.
func (m *Matcher) choosePrimary(ctx context.Context, ids []int64, title, description string) int64 {
	if len(ids) == 1 {
		return ids[0]
	}
	candidates := make([]string, len(ids))
	for i, id := range ids {
		name, _ := m.snap.Name(id)
		candidates[i] = name
	}
	answer, err := m.ext.PickPrimary(ctx, title, excerpt(description, primaryExcerptLen), candidates)
	if err != nil {
		m.log.Warn().Err(err).Str("title", title).Msg("primary election failed, using first match")
		return ids[0]
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	for i, name := range candidates {
		if strings.ToLower(name) == answer {
			return ids[i]
		}
	}
	return ids[0]
}

func excerpt(s string, n int) string {
	if runes := []rune(s); len(runes) > n {
		return string(runes[:n])
	}
	return s
}
