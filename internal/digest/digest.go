package digest

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/vim-jp/vimmagazinetools/internal/checkpoint"
	"github.com/vim-jp/vimmagazinetools/internal/diff"
	"github.com/vim-jp/vimmagazinetools/internal/github"
	"github.com/vim-jp/vimmagazinetools/internal/logging"
	"github.com/vim-jp/vimmagazinetools/internal/patch"
	"github.com/vim-jp/vimmagazinetools/internal/report"
	"github.com/vim-jp/vimmagazinetools/internal/script"
)

// Stages reported through Options.Progress, in order.
const (
	StagePatches = "patches"
	StageScripts = "scripts"
	StageIssues  = "issues"
	StageRender  = "render"
)

// StageCount is the number of Progress calls made by a successful Run.
const StageCount = 4

type Options struct {
	StateFile string
	// Update persists the next checkpoint to StateFile.
	Update bool
	// IssueRepo is "owner/repo"; defaults to checkpoint.DefaultIssueRepo.
	IssueRepo string
	HTML      bool
	Now       func() time.Time
	// Progress is called after each stage completes.
	Progress func(stage string)
}

type Result struct {
	Report []byte
	// Next is the checkpoint for the following run. It is written to disk
	// only when Persisted is true.
	Next      *checkpoint.Checkpoint
	Persisted bool
}

func normalizeOptions(opts Options) Options {
	if opts.IssueRepo == "" {
		opts.IssueRepo = checkpoint.DefaultIssueRepo
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Progress == nil {
		opts.Progress = func(string) {}
	}
	return opts
}

// Run produces one digest against the checkpoint in opts.StateFile. The
// report is rendered in memory; nothing is returned for output unless every
// source was fetched.
func Run(ctx context.Context, src Sources, opts Options) (*Result, error) {
	opts = normalizeOptions(opts)
	logging.Debugf("Verbose: generate start state=%q update=%t issues=%s html=%t\n", opts.StateFile, opts.Update, opts.IssueRepo, opts.HTML)

	owner, repo, err := github.SplitRepo(opts.IssueRepo)
	if err != nil {
		return nil, err
	}

	prev, err := checkpoint.Load(opts.StateFile)
	if err != nil {
		return nil, err
	}
	prevIssues, ok := prev.IssueCountersFor(opts.IssueRepo)
	if !ok {
		logging.Warnf("checkpoint has no counters for %s, treating every issue as new\n", opts.IssueRepo)
	}
	logging.Debugf("Verbose: loaded checkpoint updated=%s version=%s script=%d snapshot=%d issue=%d\n",
		prev.Updated.Format(checkpoint.DateLayout), prev.Vim.Version, prev.Script.LastID, len(prev.Script.Snapshot), prevIssues.Number)

	patches, err := src.Patches(ctx)
	if err != nil {
		return nil, fmt.Errorf("patches: %w", err)
	}
	opts.Progress(StagePatches)

	scripts, err := src.Scripts(ctx)
	if err != nil {
		return nil, fmt.Errorf("scripts: %w", err)
	}
	opts.Progress(StageScripts)

	issues, err := src.Issues(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("issues: %w", err)
	}
	opts.Progress(StageIssues)

	summary := diff.SummarizeIssues(issues, prevIssues)
	d := report.Digest{
		Patches:   diff.NewPatches(patches, prev.Vim.Version),
		Scripts:   diff.NewScripts(scripts, prev.Script.LastID),
		Ranking:   diff.Rank(prev.Script.Snapshot, scripts),
		IssueRepo: opts.IssueRepo,
		Issues:    summary,
		NewIssues: diff.NewIssues(issues, prevIssues.Number),
	}
	logging.Debugf("Verbose: digest new-patches=%d new-scripts=%d new-issues=%d\n", len(d.Patches), len(d.Scripts), len(d.NewIssues))

	out, err := render(d, opts.HTML)
	if err != nil {
		return nil, err
	}
	opts.Progress(StageRender)

	counters := summary.Counters()
	if len(issues) == 0 {
		counters.Number = prevIssues.Number
	}
	next := nextCheckpoint(prev, opts.Now(), patches, scripts, opts.IssueRepo, counters)
	result := &Result{Report: out, Next: next}
	if opts.Update {
		if err := next.Save(opts.StateFile); err != nil {
			return nil, err
		}
		result.Persisted = true
		logging.Debugf("Verbose: checkpoint written to %s\n", opts.StateFile)
	}
	return result, nil
}

func render(d report.Digest, html bool) ([]byte, error) {
	var md bytes.Buffer
	if err := report.Write(&md, d); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	if !html {
		return md.Bytes(), nil
	}
	var buf bytes.Buffer
	if err := report.HTML(&buf, md.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// nextCheckpoint derives the baseline for the following run. prev is not
// modified. When a source returned nothing its previous marker is kept.
func nextCheckpoint(prev *checkpoint.Checkpoint, now time.Time, patches []patch.Record, scripts []script.Record, issueRepo string, counters checkpoint.IssueCounters) *checkpoint.Checkpoint {
	next := checkpoint.New(now)
	next.Vim = prev.Vim
	next.Script.LastID = prev.Script.LastID

	if len(patches) > 0 {
		next.Vim.Version = patches[len(patches)-1].Version
	}
	if len(scripts) > 0 {
		next.Script.LastID = scripts[len(scripts)-1].ID
	}
	next.Script.Snapshot = script.Reduce(scripts)

	next.Issues = maps.Clone(prev.Issues)
	if next.Issues == nil {
		next.Issues = make(map[string]checkpoint.IssueCounters)
	}
	next.Issues[issueRepo] = counters
	return next
}
