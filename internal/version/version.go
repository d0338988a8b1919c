package version

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
)

// Version is a Vim patch version: major.minor.patchlevel.
// The text it was parsed from is kept so tags and checkpoints reproduce the
// upstream zero padding ("8.0.0500", not "8.0.500").
type Version struct {
	Major int
	Minor int
	Patch int

	raw string
}

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// Parse reads a "major.minor.patchlevel" string.
func Parse(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	parts := make([]int, 3)
	for i, p := range m[1:] {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		parts[i] = n
	}
	return Version{Major: parts[0], Minor: parts[1], Patch: parts[2], raw: s}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v is the unset version, which sorts before every
// parsed version.
func (v Version) IsZero() bool {
	return v == Version{}
}

func (v Version) String() string {
	if v.raw != "" {
		return v.raw
	}
	if v.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d.%d.%03d", v.Major, v.Minor, v.Patch)
}

// Tag returns the git tag name of the patch, e.g. "v8.0.0500".
func (v Version) Tag() string {
	return "v" + v.String()
}

// Compare orders versions component-wise as integers.
// Returns -1 if a < b, 0 if a == b, +1 if a > b.
func Compare(a, b Version) int {
	if c := cmp.Compare(a.Major, b.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Minor, b.Minor); c != 0 {
		return c
	}
	return cmp.Compare(a.Patch, b.Patch)
}

// Less reports whether a sorts before b.
func Less(a, b Version) bool {
	return Compare(a, b) < 0
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText accepts an empty string as the zero version so a fresh
// checkpoint reports every patch as new.
func (v *Version) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*v = Version{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
