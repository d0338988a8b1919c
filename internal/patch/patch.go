package patch

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/vim-jp/vimmagazinetools/internal/version"
)

const (
	ReadmeURL = "http://ftp.vim.org/pub/vim/patches/%s/README"
	CommitURL = "https://github.com/vim/vim/commit/%s"

	// DefaultRelease is the release line fetched when none is configured.
	DefaultRelease = "8.0"
)

var (
	lineBreak   = regexp.MustCompile(`\r\n|\r|\n`)
	linePattern = regexp.MustCompile(`^\s*(\d+)  (\d\.\d\.\d{3,4})  (.*)$`)
)

// Record is one patch listed in a release line's README.
type Record struct {
	Version version.Version
	Size    int
	Summary string
	Tag     string
	// SHA and URL are empty when the tag is not known to the repository.
	SHA string
	URL string
}

// Getter retrieves a raw document.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Parse extracts patch records from a README. Lines that don't match the
// "size  version  summary" layout are skipped. Tags are resolved against
// tags (tag name -> commit sha); a nil map leaves every commit empty.
func Parse(readme string, tags map[string]string) []Record {
	var records []Record
	for _, line := range lineBreak.Split(readme, -1) {
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		size, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		v, err := version.Parse(m[2])
		if err != nil {
			continue
		}

		r := Record{
			Version: v,
			Size:    size,
			Summary: m[3],
			Tag:     v.Tag(),
		}
		if sha, ok := tags[r.Tag]; ok {
			r.SHA = sha
			r.URL = fmt.Sprintf(CommitURL, sha)
		}
		records = append(records, r)
	}
	Sort(records)
	return records
}

// Sort orders records by version, keeping README order for equal versions.
func Sort(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return version.Compare(a.Version, b.Version)
	})
}

// Merge concatenates several release lines and re-sorts them, since version
// order is global across lines.
func Merge(lists ...[]Record) []Record {
	var all []Record
	for _, l := range lists {
		all = append(all, l...)
	}
	Sort(all)
	return all
}

// Fetch downloads and parses the README of one release line ("8.0").
func Fetch(ctx context.Context, g Getter, release string, tags map[string]string) ([]Record, error) {
	body, err := g.Get(ctx, fmt.Sprintf(ReadmeURL, release))
	if err != nil {
		return nil, fmt.Errorf("fetching patch README %s: %w", release, err)
	}
	return Parse(string(body), tags), nil
}

// FetchAll fetches every release line and merges the results.
func FetchAll(ctx context.Context, g Getter, releases []string, tags map[string]string) ([]Record, error) {
	if len(releases) == 0 {
		releases = []string{DefaultRelease}
	}
	lists := make([][]Record, 0, len(releases))
	for _, rel := range releases {
		records, err := Fetch(ctx, g, rel, tags)
		if err != nil {
			return nil, err
		}
		lists = append(lists, records)
	}
	return Merge(lists...), nil
}
