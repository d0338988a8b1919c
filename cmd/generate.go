package cmd

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/vim-jp/vimmagazinetools/internal/checkpoint"
	"github.com/vim-jp/vimmagazinetools/internal/digest"
	"github.com/vim-jp/vimmagazinetools/internal/logging"
	"github.com/vim-jp/vimmagazinetools/internal/patch"
	"golang.org/x/term"
)

var (
	updateState bool
	htmlOutput  bool
	issueRepo   string
)

var generateCmd = &cobra.Command{
	Use:   "generate [--update] <stateFile>",
	Short: "Render what changed since the checkpoint in stateFile",
	Long: `Fetch every source, compare it with the checkpoint in stateFile and
print the digest as markdown. With --update the checkpoint is advanced
to the data just fetched; without it the file is left untouched.`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := remoteSources()
		if err != nil {
			return err
		}

		progress, done := newProgress(cmd.ErrOrStderr())
		res, err := digest.Run(cmd.Context(), src, digest.Options{
			StateFile: args[0],
			Update:    updateState,
			IssueRepo: issueRepo,
			HTML:      htmlOutput,
			Progress:  progress,
		})
		done()
		if err != nil {
			return err
		}

		if _, err := cmd.OutOrStdout().Write(res.Report); err != nil {
			return err
		}
		if res.Persisted {
			logging.Debugf("Verbose: checkpoint %s advanced to %s\n", args[0], res.Next.Updated.Format(checkpoint.DateLayout))
		}
		return nil
	},
}

// newProgress returns a stage callback that drives a progress bar when w is
// an interactive terminal, and a no-op otherwise. The returned func clears
// the bar.
func newProgress(w io.Writer) (func(stage string), func()) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) || logging.Verbose() {
		return nil, func() {}
	}
	bar := progressbar.NewOptions(digest.StageCount,
		progressbar.OptionSetWriter(f),
		progressbar.OptionSetDescription("Fetching"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	stage := func(name string) {
		bar.Describe(name)
		_ = bar.Add(1)
	}
	return stage, func() { _ = bar.Finish() }
}

func init() {
	generateCmd.Flags().BoolVar(&updateState, "update", false, "Write the advanced checkpoint back to stateFile")
	generateCmd.Flags().BoolVar(&htmlOutput, "html", false, "Render the digest as HTML instead of markdown")
	generateCmd.Flags().StringVar(&issueRepo, "issues", checkpoint.DefaultIssueRepo, "Issue tracker repository as owner/repo")
	generateCmd.Flags().StringSliceVar(&releases, "release", []string{patch.DefaultRelease}, "Vim release lines whose patches are listed (repeatable)")

	rootCmd.AddCommand(generateCmd)
}
