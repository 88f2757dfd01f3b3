package workflow

import (
	"sort"
	"time"
)

// Outcome labels recorded per record.
const (
	OutcomeUpdated  = "updated"
	OutcomeVerified = "verified"
	OutcomeSynced   = "synced"
	OutcomeUnknown  = "unknown"
	OutcomeSkipped  = "skipped"
	OutcomeErrored  = "errored"
)

// Summary aggregates the counters of one run.
type Summary struct {
	RunID         string         `json:"runId"`
	StartedAt     time.Time      `json:"startedAt"`
	Duration      time.Duration  `json:"duration"`
	Total         int            `json:"total"`
	Processed     int            `json:"processed"`
	Updated       int            `json:"updated"`
	Verified      int            `json:"verified"`
	Synced        int            `json:"synced"`
	Unknown       int            `json:"unknown"`
	Skipped       int            `json:"skipped"`
	Errored       int            `json:"errored"`
	CutoffReached bool           `json:"cutoffReached"`
	Interrupted   bool           `json:"interrupted,omitempty"`
	BySource      map[string]int `json:"bySource"`
	Unresolved    []Unresolved   `json:"-"`
}

// SourceCount is one row of the per-source breakdown.
type SourceCount struct {
	Source string
	Count  int
}

// Sources returns the per-source breakdown ordered by count, then name.
func (s Summary) Sources() []SourceCount {
	out := make([]SourceCount, 0, len(s.BySource))
	for source, count := range s.BySource {
		out = append(out, SourceCount{Source: source, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Source < out[j].Source
	})
	return out
}

func (s *Summary) count(outcome string) {
	switch outcome {
	case OutcomeUpdated:
		s.Updated++
	case OutcomeVerified:
		s.Verified++
	case OutcomeSynced:
		s.Synced++
	case OutcomeUnknown:
		s.Unknown++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeErrored:
		s.Errored++
	}
}

func (s *Summary) credit(source string) {
	if source == "" {
		return
	}
	if s.BySource == nil {
		s.BySource = map[string]int{}
	}
	s.BySource[source]++
}
