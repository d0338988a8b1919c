package cmd

import (
	"github.com/vim-jp/vimmagazinetools/internal/digest"
	"github.com/vim-jp/vimmagazinetools/internal/fetcher"
	"github.com/vim-jp/vimmagazinetools/internal/github"
)

// remoteSources builds the live upstream sources from the resolved flags.
// Tests replace it with canned data.
var remoteSources = func() (digest.Sources, error) {
	web := fetcher.New(fetcher.Options{Timeout: timeout, Retries: retries})
	gh, err := github.NewClient(
		github.WithToken(githubToken),
		github.WithHTTPClient(web.HTTPClient()),
	)
	if err != nil {
		return nil, err
	}
	return &digest.Remote{Web: web, GitHub: gh, Releases: releases}, nil
}
