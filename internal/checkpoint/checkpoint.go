package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vim-jp/vimmagazinetools/internal/script"
	"github.com/vim-jp/vimmagazinetools/internal/version"
)

// DateLayout is the format of the "updated" field.
const DateLayout = "2006-01-02"

// DefaultIssueRepo is the issue tracker summarised by the digest.
const DefaultIssueRepo = "vim-jp/issues"

// Checkpoint is the baseline of the previous digest run.
//
// On disk it looks like:
//
//	{
//	  "updated": "2017-01-31",
//	  "vim": {"version": "8.0.0500"},
//	  "script": {"script_id": "200", "state": [...]},
//	  "vim-jp/issues": {"opencount": 3, "closedcount": 7, "number": 50}
//	}
//
// Every top-level key of the form owner/repo holds issue counters.
type Checkpoint struct {
	Updated time.Time
	Vim     VimState
	Script  ScriptState
	Issues  map[string]IssueCounters
}

type VimState struct {
	Version version.Version `json:"version"`
}

type ScriptState struct {
	LastID   script.ID         `json:"script_id"`
	Snapshot []script.Snapshot `json:"state"`
}

type IssueCounters struct {
	OpenCount   int `json:"opencount"`
	ClosedCount int `json:"closedcount"`
	// Number is the highest issue number seen by the previous run.
	Number int `json:"number"`
}

// New returns an empty baseline: every patch, script and issue is new.
func New(now time.Time) *Checkpoint {
	return &Checkpoint{
		Updated: truncateDay(now),
		Script:  ScriptState{Snapshot: []script.Snapshot{}},
		Issues:  map[string]IssueCounters{DefaultIssueRepo: {}},
	}
}

// IssueCountersFor returns the counters recorded for repo ("owner/repo").
// ok is false when the checkpoint has never tracked it.
func (c *Checkpoint) IssueCountersFor(repo string) (IssueCounters, bool) {
	ic, ok := c.Issues[repo]
	return ic, ok
}

func (c Checkpoint) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	if err := writeField("updated", c.Updated.Format(DateLayout)); err != nil {
		return nil, err
	}
	if err := writeField("vim", c.Vim); err != nil {
		return nil, err
	}
	st := c.Script
	if st.Snapshot == nil {
		st.Snapshot = []script.Snapshot{}
	}
	if err := writeField("script", st); err != nil {
		return nil, err
	}
	for _, repo := range slices.Sorted(maps.Keys(c.Issues)) {
		if err := writeField(repo, c.Issues[repo]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	var out Checkpoint
	raw, ok := doc["updated"]
	if !ok {
		return fmt.Errorf("missing %q", "updated")
	}
	var updated string
	if err := json.Unmarshal(raw, &updated); err != nil {
		return fmt.Errorf("updated: %w", err)
	}
	t, err := time.Parse(DateLayout, updated)
	if err != nil {
		return fmt.Errorf("updated: %w", err)
	}
	out.Updated = t

	raw, ok = doc["vim"]
	if !ok {
		return fmt.Errorf("missing %q", "vim")
	}
	if err := json.Unmarshal(raw, &out.Vim); err != nil {
		return fmt.Errorf("vim: %w", err)
	}

	raw, ok = doc["script"]
	if !ok {
		return fmt.Errorf("missing %q", "script")
	}
	if err := json.Unmarshal(raw, &out.Script); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	if err := script.CheckUnique(out.Script.Snapshot); err != nil {
		return fmt.Errorf("script state: %w", err)
	}

	out.Issues = make(map[string]IssueCounters)
	for key, raw := range doc {
		if !strings.Contains(key, "/") {
			continue
		}
		var ic IssueCounters
		if err := json.Unmarshal(raw, &ic); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		out.Issues[key] = ic
	}

	*c = out
	return nil
}

// Load reads a checkpoint file. A missing or malformed file is an error:
// without it there is no baseline to diff against.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no checkpoint at %s - run 'checkpoint init' first", path)
		}
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}

	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing checkpoint %s: %w", path, err)
	}
	return &c, nil
}

// Save replaces the file at path. The new content is written to a temporary
// file in the same directory and renamed over path, so readers see either
// the old or the new checkpoint and never a partial one.
func (c *Checkpoint) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	data = append(data, '\n')

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing checkpoint: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing checkpoint: %w", err)
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
