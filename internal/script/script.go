package script

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/vim-jp/vimmagazinetools/internal/logging"
	"github.com/vim-jp/vimmagazinetools/internal/markup"
	"golang.org/x/text/encoding/charmap"
)

const (
	ListURL = "https://vim.sourceforge.io/scripts/script_search_results.php?&show_me=99999"
	PageURL = "https://vim.sourceforge.io/scripts/script.php?script_id=%d"

	// Every listed script spans this many row lines.
	groupSize = 5
)

var (
	lineBreak = regexp.MustCompile(`\r\n|\r|\n`)
	rowMarker = regexp.MustCompile(`rowodd|roweven`)
	idPattern = regexp.MustCompile(`script_id=(\d+)`)
)

// ID identifies a script on vim.org. It is written to JSON as a string, the
// form existing checkpoints use, and read from either a string or a number.
type ID int

// URL returns the script's page.
func (id ID) URL() string {
	return fmt.Sprintf(PageURL, int(id))
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(id)))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" {
		*id = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid script id %s", string(b))
	}
	*id = ID(n)
	return nil
}

// Record is one row of the script directory.
type Record struct {
	ID        ID
	URL       string
	Name      string
	Rating    int
	Downloads int
	Summary   string
}

// Snapshot is the reduced form of a Record kept in checkpoints and emitted
// by scriptjson.
type Snapshot struct {
	ID        ID  `json:"script_id"`
	Rating    int `json:"rating"`
	Downloads int `json:"downloads"`
}

// Getter retrieves a raw document.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Decode converts the ISO-8859-1 listing to UTF-8. Characters outside that
// code page were already lost upstream.
func Decode(body []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decoding script listing: %w", err)
	}
	return string(out), nil
}

// Parse reads the script directory page. Row lines are consumed in fixed
// groups of five: name/id, rating text, rating, downloads, summary. A group
// only starts on a line carrying script_id=; a trailing partial group is
// dropped. Records are returned sorted by id.
func Parse(page string) []Record {
	var (
		records []Record
		cur     Record
		pos     int
	)
	for _, line := range lineBreak.Split(page, -1) {
		line = strings.TrimSpace(line)
		if !rowMarker.MatchString(line) {
			continue
		}

		switch pos {
		case 0:
			m := idPattern.FindStringSubmatch(line)
			if m == nil {
				logging.Debugf("Verbose: skipping script row without script_id: %q\n", line)
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			cur = Record{ID: ID(n), URL: ID(n).URL(), Name: markup.Text(line)}
		case 1:
			// The first rating line is superseded by the numeric one below.
		case 2:
			cur.Rating = markup.LeadingInt(markup.StripTags(line))
		case 3:
			cur.Downloads = markup.LeadingInt(markup.StripTags(line))
		case 4:
			cur.Summary = markup.Text(line)
		}

		pos++
		if pos == groupSize {
			records = append(records, cur)
			cur = Record{}
			pos = 0
		}
	}

	slices.SortStableFunc(records, func(a, b Record) int { return cmp.Compare(a.ID, b.ID) })
	return records
}

// Fetch downloads and parses the script directory.
func Fetch(ctx context.Context, g Getter, url string) ([]Record, error) {
	body, err := g.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching script directory: %w", err)
	}
	page, err := Decode(body)
	if err != nil {
		return nil, err
	}
	records := Parse(page)
	logging.Debugf("Verbose: parsed script directory scripts=%d\n", len(records))
	return records, nil
}

// Reduce keeps only the fields tracked between runs.
func Reduce(records []Record) []Snapshot {
	out := make([]Snapshot, 0, len(records))
	for _, r := range records {
		out = append(out, Snapshot{ID: r.ID, Rating: r.Rating, Downloads: r.Downloads})
	}
	return out
}

// Expand turns snapshots back into records whose URL is derived from the id.
// Name and summary are unknown and left empty.
func Expand(snaps []Snapshot) []Record {
	out := make([]Record, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, Record{ID: s.ID, URL: s.ID.URL(), Rating: s.Rating, Downloads: s.Downloads})
	}
	return out
}

// WriteSnapshots writes snaps as indented JSON.
func WriteSnapshots(w io.Writer, snaps []Snapshot) error {
	if snaps == nil {
		snaps = []Snapshot{}
	}
	data, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// LoadSnapshots reads a file written by WriteSnapshots.
func LoadSnapshots(path string) ([]Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snaps []Snapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	if err := CheckUnique(snaps); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return snaps, nil
}

// CheckUnique reports the first script id that appears twice.
func CheckUnique(snaps []Snapshot) error {
	seen := make(map[ID]bool, len(snaps))
	for _, s := range snaps {
		if seen[s.ID] {
			return fmt.Errorf("duplicate script id %d", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
