package github

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/vim-jp/vimmagazinetools/internal/logging"
	"golang.org/x/time/rate"
)

const (
	perPage    = 100
	maxRetries = 3

	tagRefPrefix = "refs/tags/"
)

// Issue states queried from the issues API, in the order they are fetched.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// Issue is the subset of the issues API response the digest needs.
type Issue struct {
	Number int
	Title  string
	URL    string
	State  string
}

// TagMap maps a git tag name ("v8.0.0500") to the commit sha it points at.
type TagMap map[string]string

// NewLimiter returns a rate limiter tuned for authenticated or
// unauthenticated GitHub API usage.
func NewLimiter(authenticated bool) *rate.Limiter {
	if authenticated {
		return rate.NewLimiter(rate.Every(time.Hour/5000), 10)
	}
	return rate.NewLimiter(rate.Every(time.Hour/60), 5)
}

// Client wraps the GitHub API client with rate limiting and retries.
type Client struct {
	c         *github.Client
	l         *rate.Limiter
	retryWait time.Duration
}

type options struct {
	token      string
	limiter    *rate.Limiter
	httpClient *http.Client
	baseURL    string
	retryWait  time.Duration
}

// Option configures a Client.
type Option func(*options)

// WithToken sets the personal access token for authenticated requests.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithLimiter sets the rate limiter used for API calls.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithHTTPClient sets the transport, typically the fetcher's client so the
// configured timeout applies to API calls too.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithBaseURL points the client at another API root (tests, GHES).
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithRetryWait sets the base delay between retries; attempt n waits n times it.
func WithRetryWait(d time.Duration) Option {
	return func(o *options) { o.retryWait = d }
}

// NewClient constructs a Client.
func NewClient(opts ...Option) (*Client, error) {
	o := options{retryWait: 2 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	gh := github.NewClient(o.httpClient)
	if o.token != "" {
		logging.Debugf("Verbose: using authenticated GitHub client\n")
		gh = gh.WithAuthToken(o.token)
	}
	if o.baseURL != "" {
		base := o.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing GitHub base URL %q: %w", o.baseURL, err)
		}
		gh.BaseURL = u
	}
	if o.limiter == nil {
		o.limiter = NewLimiter(o.token != "")
	}

	return &Client{c: gh, l: o.limiter, retryWait: o.retryWait}, nil
}

// call waits for the limiter and retries fn on transport errors and 5xx.
// Client errors (4xx other than 429) fail immediately.
func (c *Client) call(ctx context.Context, what string, fn func() (*github.Response, error)) (*github.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			logging.Debugf("Verbose: retrying %s attempt=%d/%d\n", what, attempt+1, maxRetries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryWait):
			}
		}
		if err := c.l.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(resp, err) {
			break
		}
	}
	return nil, lastErr
}

func retryable(resp *github.Response, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return false
	}
	if resp == nil || resp.Response == nil {
		return true
	}
	code := resp.StatusCode
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Tags lists every refs/tags/* reference of a repository.
func (c *Client) Tags(ctx context.Context, owner, repo string) (TagMap, error) {
	tags := make(TagMap)
	opts := &github.ReferenceListOptions{
		Ref:         "tags",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		var refs []*github.Reference
		resp, err := c.call(ctx, "tag refs", func() (*github.Response, error) {
			var resp *github.Response
			var err error
			refs, resp, err = c.c.Git.ListMatchingRefs(ctx, owner, repo, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("listing tags for %s/%s: %w", owner, repo, err)
		}
		for _, ref := range refs {
			name, ok := strings.CutPrefix(ref.GetRef(), tagRefPrefix)
			if !ok {
				continue
			}
			tags[name] = ref.GetObject().GetSHA()
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	logging.Debugf("Verbose: fetched tags repo=%s/%s count=%d\n", owner, repo, len(tags))
	return tags, nil
}

// IssuePages yields one page of issues in the given state at a time,
// following the response's rel="next" link until there is none. The
// sequence can be ranged over again to restart from the first page.
func (c *Client) IssuePages(ctx context.Context, owner, repo, state string) iter.Seq2[[]Issue, error] {
	return func(yield func([]Issue, error) bool) {
		opts := &github.IssueListByRepoOptions{
			State:       state,
			ListOptions: github.ListOptions{PerPage: perPage},
		}
		for {
			var page []*github.Issue
			resp, err := c.call(ctx, state+" issues", func() (*github.Response, error) {
				var resp *github.Response
				var err error
				page, resp, err = c.c.Issues.ListByRepo(ctx, owner, repo, opts)
				return resp, err
			})
			if err != nil {
				yield(nil, fmt.Errorf("listing %s issues for %s/%s: %w", state, owner, repo, err))
				return
			}

			issues := make([]Issue, 0, len(page))
			for _, is := range page {
				issues = append(issues, Issue{
					Number: is.GetNumber(),
					Title:  is.GetTitle(),
					URL:    is.GetHTMLURL(),
					State:  is.GetState(),
				})
			}
			if !yield(issues, nil) {
				return
			}
			if resp.NextPage == 0 {
				return
			}
			opts.ListOptions.Page = resp.NextPage
		}
	}
}

// Issues returns open issues followed by closed issues, sorted by number.
// Results of the two queries are concatenated as-is; an issue reported
// under both states appears twice.
func (c *Client) Issues(ctx context.Context, owner, repo string) ([]Issue, error) {
	var all []Issue
	for _, state := range []string{StateOpen, StateClosed} {
		for page, err := range c.IssuePages(ctx, owner, repo, state) {
			if err != nil {
				return nil, err
			}
			all = append(all, page...)
		}
	}
	slices.SortStableFunc(all, func(a, b Issue) int { return a.Number - b.Number })
	logging.Debugf("Verbose: fetched issues repo=%s/%s count=%d\n", owner, repo, len(all))
	return all, nil
}

// SplitRepo parses "owner/repo".
func SplitRepo(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q, want owner/repo", s)
	}
	return owner, repo, nil
}
