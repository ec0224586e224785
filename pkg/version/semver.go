package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var semVerPattern = regexp.MustCompile(`^v?(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`)

// SemVer is a MAJOR.MINOR.PATCH version with an optional pre-release suffix,
// as written in task type schema tags.
type SemVer struct {
	Major, Minor, Patch int64
	PreRelease          string
}

// Parse reads "1.2.3", "v1.2.3" or "1.2.3-rc.1".
func Parse(raw string) (SemVer, error) {
	m := semVerPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return SemVer{}, fmt.Errorf("invalid semantic version %q", raw)
	}
	var parts [3]int64
	for i := range parts {
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return SemVer{}, fmt.Errorf("invalid semantic version %q: %w", raw, err)
		}
		parts[i] = n
	}
	return SemVer{Major: parts[0], Minor: parts[1], Patch: parts[2], PreRelease: m[4]}, nil
}

// MustParse is Parse for package-level constants; it panics on error.
func MustParse(raw string) SemVer {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func (v SemVer) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		s += "-" + v.PreRelease
	}
	return s
}

// Compare returns -1, 0 or 1. A pre-release sorts before its release;
// pre-release identifiers compare numerically when both are numbers.
func (v SemVer) Compare(other SemVer) int {
	for _, pair := range [][2]int64{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}} {
		if c := compareInt(pair[0], pair[1]); c != 0 {
			return c
		}
	}
	return comparePreRelease(v.PreRelease, other.PreRelease)
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func comparePreRelease(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}
	aParts, bParts := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(aParts) && i < len(bParts); i++ {
		if aParts[i] == bParts[i] {
			continue
		}
		aNum, aErr := strconv.ParseInt(aParts[i], 10, 64)
		bNum, bErr := strconv.ParseInt(bParts[i], 10, 64)
		switch {
		case aErr == nil && bErr == nil:
			return compareInt(aNum, bNum)
		case aErr == nil:
			return -1
		case bErr == nil:
			return 1
		}
		return strings.Compare(aParts[i], bParts[i])
	}
	return compareInt(int64(len(aParts)), int64(len(bParts)))
}
