package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/vim-jp/vimmagazinetools/internal/diff"
	"github.com/vim-jp/vimmagazinetools/internal/github"
	"github.com/vim-jp/vimmagazinetools/internal/patch"
	"github.com/vim-jp/vimmagazinetools/internal/script"
	"github.com/yuin/goldmark"
)

// RankingSize is the number of ranking entries shown in a digest.
const RankingSize = 10

const (
	headingReleases = "リリース情報"
	headingScripts  = "新着スクリプト"
	headingRanking  = "月間ダウンロードランキング"
)

// Brackets and backslashes are escaped; emphasis characters become numeric
// entities so they display unchanged without starting markdown formatting.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	`<`, `\<`,
	`[`, `\[`,
	`]`, `\]`,
	"`", "&#x60;",
	`_`, "&#x5f;",
	`^`, "&#x5e;",
	`*`, "&#x2a;",
)

// EscapeMarkdown makes s safe to embed as link text.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func link(text, url string) string {
	return fmt.Sprintf("[%s](%s)", EscapeMarkdown(text), url)
}

// PatchLine renders a patch as a list item.
func PatchLine(r patch.Record) string {
	return "- " + link(r.Version.String()+" : "+r.Summary, r.URL)
}

// ScriptLine renders a script as a list item.
func ScriptLine(r script.Record) string {
	return "- " + link(r.Name+" : "+r.Summary, scriptURL(r))
}

// IssueLine renders an issue as a list item.
func IssueLine(is github.Issue) string {
	return "- " + link(fmt.Sprintf("Issue #%d : %s", is.Number, is.Title), is.URL)
}

// RankingLine renders one ranking entry; rank starts at 1.
func RankingLine(rank int, r diff.Ranked) string {
	return fmt.Sprintf("%d. %s (%d)", rank, link(r.Record.Name+" : "+r.Record.Summary, scriptURL(r.Record)), r.Diff)
}

// IssueCountLine renders the open/closed totals with their deltas.
func IssueCountLine(s diff.IssueSummary) string {
	return fmt.Sprintf("Open : %d (%+d) | Closed : %d (%+d)", s.Open, s.OpenDelta, s.Closed, s.ClosedDelta)
}

func scriptURL(r script.Record) string {
	if r.URL != "" {
		return r.URL
	}
	return r.ID.URL()
}

// Digest is everything shown in one periodic report. Slices hold only the
// items that are new since the checkpoint, already in display order.
type Digest struct {
	Patches   []patch.Record
	Scripts   []script.Record
	Ranking   []diff.Ranked
	IssueRepo string
	Issues    diff.IssueSummary
	NewIssues []github.Issue
}

// Write renders d as markdown sections.
func Write(w io.Writer, d Digest) error {
	bw := bufio.NewWriter(w)

	section(bw, headingReleases, func() {
		for _, p := range d.Patches {
			fmt.Fprintln(bw, PatchLine(p))
		}
	})
	section(bw, headingScripts, func() {
		for _, s := range d.Scripts {
			fmt.Fprintln(bw, ScriptLine(s))
		}
	})
	section(bw, headingRanking, func() {
		for i, r := range d.Ranking[:min(len(d.Ranking), RankingSize)] {
			fmt.Fprintln(bw, RankingLine(i+1, r))
		}
	})
	section(bw, d.IssueRepo+" issues", func() {
		fmt.Fprintln(bw, IssueCountLine(d.Issues))
		fmt.Fprintln(bw)
		for _, is := range d.NewIssues {
			fmt.Fprintln(bw, IssueLine(is))
		}
	})

	return bw.Flush()
}

func section(w io.Writer, heading string, body func()) {
	fmt.Fprintf(w, "## %s\n\n", heading)
	body()
	fmt.Fprintln(w)
}

// Lines writes one line per element, for the list subcommands.
func Lines[T any](w io.Writer, items []T, render func(T) string) error {
	bw := bufio.NewWriter(w)
	for _, it := range items {
		fmt.Fprintln(bw, render(it))
	}
	return bw.Flush()
}

// RankingLines writes every ranking entry, unlike the digest which keeps
// only the top RankingSize.
func RankingLines(w io.Writer, ranked []diff.Ranked) error {
	bw := bufio.NewWriter(w)
	for i, r := range ranked {
		fmt.Fprintln(bw, RankingLine(i+1, r))
	}
	return bw.Flush()
}

// HTML converts rendered markdown to an HTML fragment.
func HTML(w io.Writer, markdown []byte) error {
	var buf bytes.Buffer
	if err := goldmark.Convert(markdown, &buf); err != nil {
		return fmt.Errorf("converting report to HTML: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
