package digest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vim-jp/vimmagazinetools/internal/checkpoint"
	"github.com/vim-jp/vimmagazinetools/internal/github"
	"github.com/vim-jp/vimmagazinetools/internal/patch"
	"github.com/vim-jp/vimmagazinetools/internal/script"
	"github.com/vim-jp/vimmagazinetools/internal/version"
)

const scenarioCheckpoint = `{
  "updated": "2026-09-15",
  "vim": {"version": "8.0.0500"},
  "script": {
    "script_id": "200",
    "state": [
      {"script_id": "150", "rating": 3, "downloads": 1000},
      {"script_id": "200", "rating": 1, "downloads": 40}
    ]
  },
  "vim-jp/issues": {"opencount": 3, "closedcount": 7, "number": 50}
}`

type fakeSources struct {
	patches []patch.Record
	scripts []script.Record
	issues  []github.Issue

	patchErr error
	issueErr error

	issueRepo string
}

func (f *fakeSources) Patches(context.Context) ([]patch.Record, error) {
	return f.patches, f.patchErr
}

func (f *fakeSources) Scripts(context.Context) ([]script.Record, error) {
	return f.scripts, nil
}

func (f *fakeSources) Issues(_ context.Context, owner, repo string) ([]github.Issue, error) {
	f.issueRepo = owner + "/" + repo
	return f.issues, f.issueErr
}

func scenarioSources() *fakeSources {
	var issues []github.Issue
	for n := 1; n <= 10; n++ {
		state := github.StateClosed
		if n <= 3 {
			state = github.StateOpen
		}
		issues = append(issues, github.Issue{Number: n * 5, Title: "old", URL: "u", State: state})
	}
	issues = append(issues, github.Issue{Number: 51, Title: "new_issue", URL: "https://github.com/vim-jp/issues/issues/51", State: github.StateOpen})

	return &fakeSources{
		patches: patch.Parse("  10  8.0.0499  older\n  10  8.0.0500  seen\n  10  8.0.0600  brand new\n", map[string]string{"v8.0.0600": "deadbeef"}),
		scripts: []script.Record{
			{ID: 150, URL: script.ID(150).URL(), Name: "old.vim", Summary: "old", Downloads: 1010, Rating: 3},
			{ID: 200, URL: script.ID(200).URL(), Name: "seen.vim", Summary: "seen", Downloads: 40, Rating: 1},
			{ID: 201, URL: script.ID(201).URL(), Name: "fresh.vim", Summary: "fresh", Downloads: 25, Rating: 0},
		},
		issues: issues,
	}
}

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(scenarioCheckpoint), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
}

func TestRunScenarioWithoutUpdate(t *testing.T) {
	path := writeScenario(t)
	src := scenarioSources()

	var stages []string
	res, err := Run(context.Background(), src, Options{
		StateFile: path,
		Now:       fixedNow,
		Progress:  func(s string) { stages = append(stages, s) },
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(stages) != StageCount {
		t.Fatalf("stages=%v want %d", stages, StageCount)
	}
	if src.issueRepo != "vim-jp/issues" {
		t.Fatalf("issues fetched for %q", src.issueRepo)
	}

	out := string(res.Report)
	mustContain := []string{
		"- [8.0.0600 : brand new](https://github.com/vim/vim/commit/deadbeef)\n\n## 新着スクリプト",
		"## 新着スクリプト\n\n- [fresh.vim : fresh](https://vim.sourceforge.io/scripts/script.php?script_id=201)\n\n",
		"1. [fresh.vim : fresh](https://vim.sourceforge.io/scripts/script.php?script_id=201) (25)\n",
		"2. [old.vim : old](https://vim.sourceforge.io/scripts/script.php?script_id=150) (10)\n",
		"3. [seen.vim : seen](https://vim.sourceforge.io/scripts/script.php?script_id=200) (0)\n",
		"## vim-jp/issues\n\nOpen : 4 (+1) | Closed : 7 (+0)\n\n- [Issue #51 : new&#x5f;issue](https://github.com/vim-jp/issues/issues/51)\n\n",
	}
	for _, want := range mustContain {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"8.0.0500 : seen", "8.0.0499", "- [seen.vim", "Issue #50 "} {
		if strings.Contains(out, unwanted) {
			t.Fatalf("report should not contain %q:\n%s", unwanted, out)
		}
	}

	if res.Persisted {
		t.Fatalf("checkpoint should not be persisted without Update")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != scenarioCheckpoint {
		t.Fatalf("checkpoint file changed without Update")
	}

	next := res.Next
	if next.Vim.Version.String() != "8.0.0600" || next.Script.LastID != 201 {
		t.Fatalf("unexpected next checkpoint: %+v", next)
	}
	if ic := next.Issues["vim-jp/issues"]; ic != (checkpoint.IssueCounters{OpenCount: 4, ClosedCount: 7, Number: 51}) {
		t.Fatalf("unexpected next counters: %+v", ic)
	}
}

func TestRunScenarioWithUpdate(t *testing.T) {
	path := writeScenario(t)

	res, err := Run(context.Background(), scenarioSources(), Options{StateFile: path, Update: true, Now: fixedNow})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Persisted {
		t.Fatalf("checkpoint should be persisted with Update")
	}

	saved, err := checkpoint.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if saved.Updated.Format(checkpoint.DateLayout) != "2026-10-15" {
		t.Fatalf("updated=%s", saved.Updated.Format(checkpoint.DateLayout))
	}
	if version.Compare(saved.Vim.Version, version.MustParse("8.0.0600")) != 0 || saved.Script.LastID != 201 {
		t.Fatalf("unexpected saved checkpoint: %+v", saved)
	}
	if len(saved.Script.Snapshot) != 3 || saved.Script.Snapshot[2] != (script.Snapshot{ID: 201, Rating: 0, Downloads: 25}) {
		t.Fatalf("unexpected snapshot: %+v", saved.Script.Snapshot)
	}
	if ic := saved.Issues["vim-jp/issues"]; ic.Number != 51 || ic.OpenCount != 4 {
		t.Fatalf("unexpected saved counters: %+v", ic)
	}

	// A second run against the new baseline has nothing new to report.
	res, err = Run(context.Background(), scenarioSources(), Options{StateFile: path, Now: fixedNow})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	out := string(res.Report)
	if strings.Contains(out, "brand new") || strings.Contains(out, "- [fresh.vim") || strings.Contains(out, "Issue #51") {
		t.Fatalf("second report should have no new items:\n%s", out)
	}
	if !strings.Contains(out, "Open : 4 (+0) | Closed : 7 (+0)") {
		t.Fatalf("unexpected counts:\n%s", out)
	}
}

func TestRunSourceFailureIsFatal(t *testing.T) {
	path := writeScenario(t)
	src := scenarioSources()
	src.issueErr = errors.New("listing open issues for vim-jp/issues: HTTP 502")

	res, err := Run(context.Background(), src, Options{StateFile: path, Update: true, Now: fixedNow})
	if err == nil {
		t.Fatalf("expected error, got report %q", res.Report)
	}
	if !strings.HasPrefix(err.Error(), "issues: ") {
		t.Fatalf("error should name the failing stage: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != scenarioCheckpoint {
		t.Fatalf("checkpoint must not change when a source fails")
	}
}

func TestRunMissingCheckpoint(t *testing.T) {
	_, err := Run(context.Background(), scenarioSources(), Options{StateFile: filepath.Join(t.TempDir(), "none.json")})
	if err == nil || !strings.Contains(err.Error(), "no checkpoint") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunHTML(t *testing.T) {
	res, err := Run(context.Background(), scenarioSources(), Options{StateFile: writeScenario(t), HTML: true, Now: fixedNow})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	out := string(res.Report)
	if !strings.Contains(out, "<h2>vim-jp/issues</h2>") || !strings.Contains(out, `<a href="https://github.com/vim/vim/commit/deadbeef">`) {
		t.Fatalf("unexpected HTML:\n%s", out)
	}
}

func TestNextCheckpointKeepsMarkersWhenSourcesAreEmpty(t *testing.T) {
	prev := checkpoint.New(fixedNow())
	prev.Vim.Version = version.MustParse("8.0.0500")
	prev.Script.LastID = 200
	prev.Issues["vim/vim"] = checkpoint.IssueCounters{OpenCount: 9}

	next := nextCheckpoint(prev, fixedNow(), nil, nil, "vim-jp/issues", checkpoint.IssueCounters{Number: 50})
	if next.Vim.Version.String() != "8.0.0500" || next.Script.LastID != 200 {
		t.Fatalf("markers should carry over: %+v", next)
	}
	if next.Issues["vim/vim"].OpenCount != 9 || next.Issues["vim-jp/issues"].Number != 50 {
		t.Fatalf("unexpected issues: %+v", next.Issues)
	}
	if len(next.Script.Snapshot) != 0 {
		t.Fatalf("snapshot should be empty: %+v", next.Script.Snapshot)
	}
	next.Issues["vim/vim"] = checkpoint.IssueCounters{}
	if prev.Issues["vim/vim"].OpenCount != 9 {
		t.Fatalf("prev checkpoint was modified")
	}
}
