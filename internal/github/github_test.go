package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(
		WithHTTPClient(server.Client()),
		WithBaseURL(server.URL),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithRetryWait(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestTags(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/vim/vim/git/matching-refs/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"ref": "refs/tags/v8.0.0001", "object": {"sha": "aaa", "type": "commit"}},
			{"ref": "refs/tags/v8.0.0002", "object": {"sha": "bbb", "type": "commit"}},
			{"ref": "refs/heads/master", "object": {"sha": "ccc", "type": "commit"}}
		]`)
	})

	tags, err := c.Tags(context.Background(), "vim", "vim")
	if err != nil {
		t.Fatalf("Tags failed: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("len(tags)=%d want=2: %v", len(tags), tags)
	}
	if tags["v8.0.0001"] != "aaa" || tags["v8.0.0002"] != "bbb" {
		t.Fatalf("unexpected tags: %v", tags)
	}
}

func TestIssuesFollowsNextLinkAndSorts(t *testing.T) {
	var serverURL string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/vim-jp/issues/issues" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("state") + "/" + q.Get("page") {
		case "open/":
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/vim-jp/issues/issues?state=open&page=2>; rel="next", <%s/repos/vim-jp/issues/issues?state=open&page=2>; rel="last"`, serverURL, serverURL))
			fmt.Fprint(w, `[{"number": 9, "title": "nine", "html_url": "https://example.test/9", "state": "open"}]`)
		case "open/2":
			fmt.Fprint(w, `[{"number": 3, "title": "three", "html_url": "https://example.test/3", "state": "open"}]`)
		case "closed/":
			fmt.Fprint(w, `[{"number": 5, "title": "five", "html_url": "https://example.test/5", "state": "closed"}]`)
		default:
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	serverURL = strings.TrimSuffix(c.c.BaseURL.String(), "/")

	issues, err := c.Issues(context.Background(), "vim-jp", "issues")
	if err != nil {
		t.Fatalf("Issues failed: %v", err)
	}
	var numbers []int
	for _, is := range issues {
		numbers = append(numbers, is.Number)
	}
	if fmt.Sprint(numbers) != "[3 5 9]" {
		t.Fatalf("numbers=%v want=[3 5 9]", numbers)
	}
	if issues[1].State != StateClosed || issues[1].URL != "https://example.test/5" || issues[1].Title != "five" {
		t.Fatalf("unexpected issue: %+v", issues[1])
	}
}

func TestIssuesKeepsDuplicates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"number": 1, "title": "both", "html_url": "u", "state": "open"}]`)
	})

	issues, err := c.Issues(context.Background(), "o", "r")
	if err != nil {
		t.Fatalf("Issues failed: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("len(issues)=%d want=2", len(issues))
	}
}

func TestIssuePagesStopsEarly(t *testing.T) {
	var calls atomic.Int32
	var serverURL string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/o/r/issues?page=2>; rel="next"`, serverURL))
		fmt.Fprint(w, `[{"number": 1, "state": "open"}]`)
	})
	serverURL = strings.TrimSuffix(c.c.BaseURL.String(), "/")

	for range c.IssuePages(context.Background(), "o", "r", StateOpen) {
		break
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls=%d want=1", got)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	})

	if _, err := c.Tags(context.Background(), "vim", "vim"); err != nil {
		t.Fatalf("Tags failed: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls=%d want=2", got)
	}
}

func TestClientErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	_, err := c.Issues(context.Background(), "o", "missing")
	if err == nil {
		t.Fatalf("expected error for 404")
	}
	if !strings.Contains(err.Error(), "listing open issues for o/missing") {
		t.Fatalf("error should name the source: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls=%d want=1", got)
	}
}

func TestSplitRepo(t *testing.T) {
	owner, repo, err := SplitRepo("vim-jp/issues")
	if err != nil || owner != "vim-jp" || repo != "issues" {
		t.Fatalf("SplitRepo=%q,%q,%v", owner, repo, err)
	}
	for _, bad := range []string{"", "vim-jp", "/issues", "a/b/c"} {
		if _, _, err := SplitRepo(bad); err == nil {
			t.Fatalf("SplitRepo(%q) expected error", bad)
		}
	}
}
