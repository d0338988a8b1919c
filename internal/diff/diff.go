package diff

import (
	"cmp"
	"slices"

	"github.com/vim-jp/vimmagazinetools/internal/checkpoint"
	"github.com/vim-jp/vimmagazinetools/internal/github"
	"github.com/vim-jp/vimmagazinetools/internal/patch"
	"github.com/vim-jp/vimmagazinetools/internal/script"
	"github.com/vim-jp/vimmagazinetools/internal/version"
)

// NewPatches returns the patches strictly newer than since, in input order.
func NewPatches(records []patch.Record, since version.Version) []patch.Record {
	var out []patch.Record
	for _, r := range records {
		if version.Compare(r.Version, since) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// NewScripts returns the scripts whose id is greater than since, in input order.
func NewScripts(records []script.Record, since script.ID) []script.Record {
	var out []script.Record
	for _, r := range records {
		if r.ID > since {
			out = append(out, r)
		}
	}
	return out
}

// NewIssues returns the issues numbered above since, in input order.
func NewIssues(issues []github.Issue, since int) []github.Issue {
	var out []github.Issue
	for _, is := range issues {
		if is.Number > since {
			out = append(out, is)
		}
	}
	return out
}

// Ranked is a script with its download delta since the previous snapshot.
type Ranked struct {
	Record script.Record
	Diff   int
}

// Rank orders current scripts by downloads gained since old. Scripts absent
// from old count from zero. Ties keep the higher script id first: records
// are stably sorted by id descending, then by delta descending.
func Rank(old []script.Snapshot, cur []script.Record) []Ranked {
	baseline := make(map[script.ID]int, len(old))
	for _, s := range old {
		baseline[s.ID] = s.Downloads
	}

	ranked := make([]Ranked, 0, len(cur))
	for _, r := range cur {
		ranked = append(ranked, Ranked{Record: r, Diff: r.Downloads - baseline[r.ID]})
	}

	slices.SortStableFunc(ranked, func(a, b Ranked) int { return cmp.Compare(b.Record.ID, a.Record.ID) })
	slices.SortStableFunc(ranked, func(a, b Ranked) int { return cmp.Compare(b.Diff, a.Diff) })
	return ranked
}

// IssueSummary holds current issue counts and their change since the
// checkpoint.
type IssueSummary struct {
	Open        int
	Closed      int
	OpenDelta   int
	ClosedDelta int
	// MaxNumber is the highest issue number fetched, 0 when there are none.
	MaxNumber int
}

// SummarizeIssues counts issues by state against the previous counters.
func SummarizeIssues(issues []github.Issue, prev checkpoint.IssueCounters) IssueSummary {
	var s IssueSummary
	for _, is := range issues {
		switch is.State {
		case github.StateOpen:
			s.Open++
		case github.StateClosed:
			s.Closed++
		}
		s.MaxNumber = max(s.MaxNumber, is.Number)
	}
	s.OpenDelta = s.Open - prev.OpenCount
	s.ClosedDelta = s.Closed - prev.ClosedCount
	return s
}

// Counters converts the summary into the counters stored in the next
// checkpoint.
func (s IssueSummary) Counters() checkpoint.IssueCounters {
	return checkpoint.IssueCounters{OpenCount: s.Open, ClosedCount: s.Closed, Number: s.MaxNumber}
}
