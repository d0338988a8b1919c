package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/vim-jp/vimmagazinetools/internal/github"
)

const ext = ".toml"

// Profile holds a saved set of digest options. Pointer fields distinguish
// "not set" from zero values so unset fields never override the
// environment.
type Profile struct {
	Releases  *[]string `toml:"releases,omitempty"`
	IssueRepo *string   `toml:"issues,omitempty"`
	Timeout   *string   `toml:"timeout,omitempty"`
	Retries   *int      `toml:"retries,omitempty"`
	HTML      *bool     `toml:"html,omitempty"`
	Verbose   *bool     `toml:"verbose,omitempty"`
	LogFile   *string   `toml:"log-file,omitempty"`
}

// Validate checks the fields that have a fixed syntax.
func (p *Profile) Validate() error {
	if p.IssueRepo != nil {
		if _, _, err := github.SplitRepo(*p.IssueRepo); err != nil {
			return err
		}
	}
	if p.Timeout != nil {
		if _, err := time.ParseDuration(*p.Timeout); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", *p.Timeout, err)
		}
	}
	if p.Retries != nil && *p.Retries < 0 {
		return fmt.Errorf("invalid retries %d", *p.Retries)
	}
	if p.Releases != nil {
		for _, r := range *p.Releases {
			if strings.TrimSpace(r) == "" {
				return errors.New("empty release line")
			}
		}
	}
	return nil
}

// Dir returns $XDG_CONFIG_HOME/vimmagazinetools/profiles, falling back to
// ~/.config.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "vimmagazinetools", "profiles")
}

func pathFor(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid profile name %q", name)
	}
	return filepath.Join(Dir(), name+ext), nil
}

func Load(name string) (*Profile, error) {
	path, err := pathFor(name)
	if err != nil {
		return nil, err
	}
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no profile named %q (see 'profile list')", name)
		}
		return nil, fmt.Errorf("loading profile %q: %w", name, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	return &p, nil
}

// Save validates p and replaces the named profile atomically.
func Save(name string, p *Profile) error {
	path, err := pathFor(name)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating profiles directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating profile file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := toml.NewEncoder(tmp).Encode(p); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// List returns the saved profile names in sorted order.
func List() ([]string, error) {
	entries, err := os.ReadDir(Dir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ext); ok && !e.IsDir() {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func Delete(name string) error {
	path, err := pathFor(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting profile %q: %w", name, err)
	}
	return nil
}
