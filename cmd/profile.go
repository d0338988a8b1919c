package cmd

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/vim-jp/vimmagazinetools/internal/logging"
	"github.com/vim-jp/vimmagazinetools/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved option profiles",
}

// Flags for profile create
var (
	profReleases  *[]string
	profIssueRepo *string
	profTimeout   *string
	profRetries   *int
	profHTML      *bool
	profVerbose   *bool
)

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new profile",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := &profile.Profile{}

		if cmd.Flags().Changed("release") {
			p.Releases = profReleases
		}
		if cmd.Flags().Changed("issues") {
			p.IssueRepo = profIssueRepo
		}
		if cmd.Flags().Changed("timeout") {
			p.Timeout = profTimeout
		}
		if cmd.Flags().Changed("retries") {
			p.Retries = profRetries
		}
		if cmd.Flags().Changed("html") {
			p.HTML = profHTML
		}
		if cmd.Flags().Changed("verbose") {
			p.Verbose = profVerbose
		}
		if cmd.Flags().Changed("log-file") {
			p.LogFile = &logFile
		}

		if err := profile.Save(args[0], p); err != nil {
			return err
		}
		logging.Infof("Profile %q saved to %s\n", args[0], profile.Dir())
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := profile.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			logging.Infoln("No profiles saved.")
			return nil
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a profile's contents",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.Load(args[0])
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(p); err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return err
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved profile",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profile.Delete(args[0]); err != nil {
			return err
		}
		logging.Infof("Profile %q deleted.\n", args[0])
		return nil
	},
}

func init() {
	// Local to create so they don't write through to the live option vars.
	profReleases = profileCreateCmd.Flags().StringSlice("release", nil, "Vim release lines whose patches are listed (repeatable)")
	profIssueRepo = profileCreateCmd.Flags().String("issues", "", "Issue tracker repository as owner/repo")
	profTimeout = profileCreateCmd.Flags().String("timeout", "", "Timeout for each HTTP request, e.g. 45s")
	profRetries = profileCreateCmd.Flags().Int("retries", 0, "Retries for transient network failures")
	profHTML = profileCreateCmd.Flags().Bool("html", false, "Render generate output as HTML")
	profVerbose = profileCreateCmd.Flags().Bool("verbose", false, "Enable verbose logging")

	profileCmd.AddCommand(profileCreateCmd, profileListCmd, profileShowCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
