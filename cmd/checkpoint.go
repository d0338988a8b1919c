package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"github.com/vim-jp/vimmagazinetools/internal/checkpoint"
	"github.com/vim-jp/vimmagazinetools/internal/logging"
)

var checkpointForce bool

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or create digest checkpoint files",
}

var checkpointInitCmd = &cobra.Command{
	Use:   "init <stateFile>",
	Short: "Write an empty checkpoint so the first digest lists everything",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCheckpoint(args[0], checkpointForce, time.Now())
	},
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show <stateFile>",
	Short: "Summarise a checkpoint file",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		cp, err := checkpoint.Load(args[0])
		if err != nil {
			return err
		}
		return showCheckpoint(cmd.OutOrStdout(), cp)
	},
}

func initCheckpoint(path string, force bool, now time.Time) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := checkpoint.New(now).Save(path); err != nil {
		return err
	}
	logging.Infof("Wrote empty checkpoint to %s\n", path)
	return nil
}

func showCheckpoint(w io.Writer, cp *checkpoint.Checkpoint) error {
	cnf := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
	}
	table := tablewriter.NewTable(w, tablewriter.WithConfig(cnf))
	table.Header("Field", "Value")

	vim := cp.Vim.Version.String()
	if cp.Vim.Version.IsZero() {
		vim = "(none)"
	}
	rows := [][]string{
		{"Updated", cp.Updated.Format(checkpoint.DateLayout)},
		{"Vim patch", vim},
		{"Last script", fmt.Sprintf("%d", cp.Script.LastID)},
		{"Snapshot scripts", fmt.Sprintf("%d", len(cp.Script.Snapshot))},
	}
	repos := make([]string, 0, len(cp.Issues))
	for repo := range cp.Issues {
		repos = append(repos, repo)
	}
	slices.Sort(repos)
	for _, repo := range repos {
		ic := cp.Issues[repo]
		rows = append(rows, []string{repo, fmt.Sprintf("open %d, closed %d, last #%d", ic.OpenCount, ic.ClosedCount, ic.Number)})
	}
	for _, r := range rows {
		if err := table.Append(r[0], r[1]); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func init() {
	checkpointInitCmd.Flags().BoolVar(&checkpointForce, "force", false, "Overwrite an existing file")

	checkpointCmd.AddCommand(checkpointInitCmd, checkpointShowCmd)
	rootCmd.AddCommand(checkpointCmd)
}
