package cmd

import (
	"github.com/spf13/cobra"
	"github.com/vim-jp/vimmagazinetools/internal/diff"
	"github.com/vim-jp/vimmagazinetools/internal/patch"
	"github.com/vim-jp/vimmagazinetools/internal/report"
	"github.com/vim-jp/vimmagazinetools/internal/script"
)

var patchlistCmd = &cobra.Command{
	Use:   "patchlist",
	Short: "List every patch of the configured release lines",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := remoteSources()
		if err != nil {
			return err
		}
		patches, err := src.Patches(cmd.Context())
		if err != nil {
			return err
		}
		return report.Lines(cmd.OutOrStdout(), patches, report.PatchLine)
	},
}

var scriptlistCmd = &cobra.Command{
	Use:   "scriptlist",
	Short: "List every script in the vim.org directory",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := remoteSources()
		if err != nil {
			return err
		}
		scripts, err := src.Scripts(cmd.Context())
		if err != nil {
			return err
		}
		return report.Lines(cmd.OutOrStdout(), scripts, report.ScriptLine)
	},
}

var githubissuelistCmd = &cobra.Command{
	Use:   "githubissuelist <owner> <repo>",
	Short: "List open and closed issues of a GitHub repository",
	Args:  usageArgs(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := remoteSources()
		if err != nil {
			return err
		}
		issues, err := src.Issues(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return report.Lines(cmd.OutOrStdout(), issues, report.IssueLine)
	},
}

var scriptjsonCmd = &cobra.Command{
	Use:   "scriptjson",
	Short: "Print a download snapshot of every script as JSON",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := remoteSources()
		if err != nil {
			return err
		}
		scripts, err := src.Scripts(cmd.Context())
		if err != nil {
			return err
		}
		return script.WriteSnapshots(cmd.OutOrStdout(), script.Reduce(scripts))
	},
}

var scriptrankingCmd = &cobra.Command{
	Use:   "scriptranking <old.json> <new.json>",
	Short: "Rank scripts by downloads gained between two snapshots",
	Args:  usageArgs(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		old, err := script.LoadSnapshots(args[0])
		if err != nil {
			return err
		}
		cur, err := script.LoadSnapshots(args[1])
		if err != nil {
			return err
		}
		return report.RankingLines(cmd.OutOrStdout(), diff.Rank(old, script.Expand(cur)))
	},
}

func init() {
	patchlistCmd.Flags().StringSliceVar(&releases, "release", []string{patch.DefaultRelease}, "Vim release lines whose patches are listed (repeatable)")

	rootCmd.AddCommand(patchlistCmd, scriptlistCmd, githubissuelistCmd, scriptjsonCmd, scriptrankingCmd)
}
