package digest

import (
	"context"

	"github.com/vim-jp/vimmagazinetools/internal/github"
	"github.com/vim-jp/vimmagazinetools/internal/patch"
	"github.com/vim-jp/vimmagazinetools/internal/script"
)

// Vim's own repository, where patch tags live.
const (
	vimOwner = "vim"
	vimRepo  = "vim"
)

// Sources yields the parsed records of every upstream the digest reads.
// Scraping details stay behind it so format changes upstream only touch
// the parsers.
type Sources interface {
	Patches(ctx context.Context) ([]patch.Record, error)
	Scripts(ctx context.Context) ([]script.Record, error)
	Issues(ctx context.Context, owner, repo string) ([]github.Issue, error)
}

// Getter retrieves a raw document.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Remote reads the live upstream sites.
type Remote struct {
	Web      Getter
	GitHub   *github.Client
	Releases []string
	// ScriptListURL overrides script.ListURL when set.
	ScriptListURL string
}

// Patches resolves tags once and then parses every configured release line.
func (r *Remote) Patches(ctx context.Context) ([]patch.Record, error) {
	tags, err := r.GitHub.Tags(ctx, vimOwner, vimRepo)
	if err != nil {
		return nil, err
	}
	return patch.FetchAll(ctx, r.Web, r.Releases, tags)
}

func (r *Remote) Scripts(ctx context.Context) ([]script.Record, error) {
	url := r.ScriptListURL
	if url == "" {
		url = script.ListURL
	}
	return script.Fetch(ctx, r.Web, url)
}

func (r *Remote) Issues(ctx context.Context, owner, repo string) ([]github.Issue, error) {
	return r.GitHub.Issues(ctx, owner, repo)
}
