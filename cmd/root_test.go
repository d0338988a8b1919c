package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/vim-jp/vimmagazinetools/internal/config"
	"github.com/vim-jp/vimmagazinetools/internal/profile"
)

func TestUsageArgsWrapsValidationErrors(t *testing.T) {
	wrapped := usageArgs(cobra.ExactArgs(1))
	cmd := &cobra.Command{Use: "test"}

	if err := wrapped(cmd, []string{"ok"}); err != nil {
		t.Fatalf("usageArgs returned unexpected error for valid args: %v", err)
	}

	err := wrapped(cmd, nil)
	if err == nil {
		t.Fatalf("usageArgs should return an error for invalid args")
	}
	if !isUsageError(err) {
		t.Fatalf("usageArgs error should be marked as usage error: %v", err)
	}
}

func TestIsUsageError(t *testing.T) {
	if !isUsageError(wrapUsageError(errors.New("bad args"))) {
		t.Fatalf("wrapped usage error not detected")
	}
	if !isUsageError(errors.New(`unknown command "foo" for "vimmagazinetools"`)) {
		t.Fatalf("unknown command error should be treated as usage error")
	}
	if isUsageError(errors.New("runtime failure")) {
		t.Fatalf("runtime failure should not be treated as usage error")
	}
}

func TestIsUnknownCommand(t *testing.T) {
	if !isUnknownCommand(errors.New(`unknown command "foo" for "vimmagazinetools"`)) {
		t.Fatalf("unknown command not detected")
	}
	if isUnknownCommand(wrapUsageError(errors.New("accepts 1 arg(s), received 0"))) {
		t.Fatalf("argument count error is not an unknown command")
	}
}

// optionCommand mirrors the flags PersistentPreRunE consults, without
// touching the real command tree.
func optionCommand() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	c.Flags().String("github-token", "", "")
	c.Flags().Duration("timeout", 0, "")
	c.Flags().Int("retries", 0, "")
	c.Flags().StringSlice("release", nil, "")
	c.Flags().String("issues", "", "")
	c.Flags().Bool("verbose", false, "")
	c.Flags().Bool("html", false, "")
	c.Flags().String("log-file", "", "")
	return c
}

func resetOptions(t *testing.T) {
	t.Helper()
	saved := []any{githubToken, timeout, retries, releases, issueRepo, verbose, htmlOutput, logFile}
	t.Cleanup(func() {
		githubToken = saved[0].(string)
		timeout = saved[1].(time.Duration)
		retries = saved[2].(int)
		releases = saved[3].([]string)
		issueRepo = saved[4].(string)
		verbose = saved[5].(bool)
		htmlOutput = saved[6].(bool)
		logFile = saved[7].(string)
	})
	githubToken, timeout, retries, releases, issueRepo, verbose, htmlOutput, logFile = "", 0, 0, nil, "", false, false, ""
}

func TestApplyEnvironmentSkipsChangedFlags(t *testing.T) {
	resetOptions(t)
	t.Setenv(config.EnvTimeout, "45s")
	t.Setenv(config.EnvRetries, "7")
	t.Setenv(config.EnvIssues, "vim/vim")

	c := optionCommand()
	if err := c.Flags().Set("retries", "1"); err != nil {
		t.Fatal(err)
	}
	retries = 1

	applyEnvironment(c, config.New())

	if timeout != 45*time.Second {
		t.Fatalf("timeout = %v, want 45s", timeout)
	}
	if retries != 1 {
		t.Fatalf("retries = %d, want explicit flag value 1", retries)
	}
	if issueRepo != "vim/vim" {
		t.Fatalf("issueRepo = %q, want vim/vim", issueRepo)
	}
}

func TestApplyProfileOverridesEnvironment(t *testing.T) {
	resetOptions(t)
	t.Setenv(config.EnvIssues, "vim/vim")

	c := optionCommand()
	applyEnvironment(c, config.New())

	repo := "vim-jp/vim-jp.github.io"
	d := "1m"
	html := true
	rel := []string{"8.0", "7.4"}
	if err := applyProfile(c, &profile.Profile{IssueRepo: &repo, Timeout: &d, HTML: &html, Releases: &rel}); err != nil {
		t.Fatalf("applyProfile: %v", err)
	}

	if issueRepo != repo {
		t.Fatalf("issueRepo = %q, want %q", issueRepo, repo)
	}
	if timeout != time.Minute {
		t.Fatalf("timeout = %v, want 1m", timeout)
	}
	if !htmlOutput {
		t.Fatalf("htmlOutput should be set from the profile")
	}
	if len(releases) != 2 || releases[1] != "7.4" {
		t.Fatalf("releases = %v", releases)
	}
}

func TestApplyProfileRejectsBadTimeout(t *testing.T) {
	resetOptions(t)
	bad := "soon"
	if err := applyProfile(optionCommand(), &profile.Profile{Timeout: &bad}); err == nil {
		t.Fatalf("expected error for malformed timeout")
	}
}
