package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vim-jp/vimmagazinetools/internal/config"
	"github.com/vim-jp/vimmagazinetools/internal/fetcher"
	"github.com/vim-jp/vimmagazinetools/internal/logging"
	"github.com/vim-jp/vimmagazinetools/internal/profile"
)

var (
	githubToken string
	profileName string
	verbose     bool
	logFile     string
	timeout     time.Duration
	retries     int

	// Shared by patchlist and generate.
	releases []string
)

var rootCmd = &cobra.Command{
	Use:           "vimmagazinetools",
	Short:         "Collect Vim release and community activity for the monthly digest",
	Long:          "Fetch Vim patches, vim.org scripts and issue tracker activity, and render what changed since the last checkpoint as markdown.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		applyEnvironment(cmd, config.New())

		if profileName != "" {
			p, err := profile.Load(profileName)
			if err != nil {
				return err
			}
			if err := applyProfile(cmd, p); err != nil {
				return err
			}
		}

		logging.SetVerbose(verbose)
		if err := logging.SetOutputFile(logFile); err != nil {
			return fmt.Errorf("opening log file %q: %w", logFile, err)
		}
		return nil
	},
}

// applyEnvironment fills flags the user did not set from the environment.
func applyEnvironment(cmd *cobra.Command, cfg *config.Config) {
	if !flagChanged(cmd, "github-token") {
		githubToken = cfg.GetGitHubToken()
	}
	if d := cfg.GetTimeout(); d > 0 && !flagChanged(cmd, "timeout") {
		timeout = d
	}
	if n, ok := cfg.GetRetries(); ok && !flagChanged(cmd, "retries") {
		retries = n
	}
	if r := cfg.GetReleases(); len(r) > 0 && !flagChanged(cmd, "release") {
		releases = r
	}
	if repo := cfg.GetIssueRepo(); repo != "" && !flagChanged(cmd, "issues") {
		issueRepo = repo
	}
	if cfg.GetVerbose() && !flagChanged(cmd, "verbose") {
		verbose = true
	}
}

// applyProfile fills flags the user did not set from a saved profile. A
// profile takes precedence over the environment.
func applyProfile(cmd *cobra.Command, p *profile.Profile) error {
	if p.Releases != nil && !flagChanged(cmd, "release") {
		releases = *p.Releases
	}
	if p.IssueRepo != nil && !flagChanged(cmd, "issues") {
		issueRepo = *p.IssueRepo
	}
	if p.Timeout != nil && !flagChanged(cmd, "timeout") {
		d, err := time.ParseDuration(*p.Timeout)
		if err != nil {
			return fmt.Errorf("profile %q: invalid timeout: %w", profileName, err)
		}
		timeout = d
	}
	if p.Retries != nil && !flagChanged(cmd, "retries") {
		retries = *p.Retries
	}
	if p.HTML != nil && !flagChanged(cmd, "html") {
		htmlOutput = *p.HTML
	}
	if p.Verbose != nil && !flagChanged(cmd, "verbose") {
		verbose = *p.Verbose
	}
	if p.LogFile != nil && !flagChanged(cmd, "log-file") {
		logFile = *p.LogFile
	}
	return nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	closeErr := logging.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", closeErr)
		if err == nil {
			os.Exit(1)
		}
	}
	if err == nil {
		return
	}

	if isUnknownCommand(err) {
		fmt.Fprintln(os.Stderr, "Error: no such command")
		_ = rootCmd.Usage()
		return
	}

	color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	if isUsageError(err) {
		if cmd, _, findErr := rootCmd.Find(os.Args[1:]); findErr == nil && cmd != nil {
			_ = cmd.Usage()
		} else {
			_ = rootCmd.Usage()
		}
	}
	os.Exit(1)
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return wrapUsageError(err)
	})

	rootCmd.PersistentFlags().StringVar(&githubToken, "github-token", "", "GitHub token for API requests (also reads GITHUB_TOKEN or GH_TOKEN env)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Load a saved option profile by name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write log output to a file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", fetcher.DefaultTimeout, "Timeout for each HTTP request")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", fetcher.DefaultRetries, "Retries for transient network failures")
}

type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func wrapUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if validate == nil {
			return nil
		}
		if err := validate(cmd, args); err != nil {
			return wrapUsageError(err)
		}
		return nil
	}
}

func isUsageError(err error) bool {
	var ue *usageError
	if errors.As(err, &ue) {
		return true
	}
	return isUnknownCommand(err)
}

func isUnknownCommand(err error) bool {
	return strings.HasPrefix(err.Error(), "unknown command ")
}
