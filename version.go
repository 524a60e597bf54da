package epub

import (
	"fmt"
	"strconv"
	"strings"
)

// Format identifies the EPUB specification generation a file conforms to.
// It is derived from the package document's version attribute and gates
// which features (guide, bindings, tours, nav document) are in effect.
type Format int

const (
	// FormatUnknown is assigned to versions below 2.0.
	FormatUnknown Format = iota
	// FormatEpub2 covers versions in [2.0, 3.0).
	FormatEpub2
	// FormatEpub3 covers versions in [3.0, 3.1).
	FormatEpub3
	// FormatEpub31 covers versions in [3.1, 3.2). EPUB 3.1 was withdrawn
	// by the IDPF; files declaring it are rejected at open time.
	FormatEpub31
	// FormatEpub32 covers versions in [3.2, 4.0).
	FormatEpub32
	// FormatNotSupported is assigned to versions at or above 4.0.
	// Readers must abort rather than attempt best-effort parsing.
	FormatNotSupported
)

// String returns a human-readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatEpub2:
		return "EPUB 2.0"
	case FormatEpub3:
		return "EPUB 3.0"
	case FormatEpub31:
		return "EPUB 3.1"
	case FormatEpub32:
		return "EPUB 3.2"
	case FormatNotSupported:
		return "unsupported EPUB version"
	default:
		return "unknown EPUB version"
	}
}

// Supported reports whether the format can be read and written by this
// package. FormatEpub31 and FormatNotSupported are not.
func (f Format) Supported() bool {
	return f == FormatEpub2 || f == FormatEpub3 || f == FormatEpub32
}

// Legacy reports whether the format predates EPUB 3 (guide/tours era).
func (f Format) Legacy() bool { return f == FormatEpub2 }

// Version is a parsed package version triple.
type Version struct {
	Major, Minor, Patch int
}

// String returns the version as "major.minor" or "major.minor.patch".
// The form is normalized, not byte-faithful to the parsed input: a bare
// "3" renders as "3.0", and a written package attribute carries the
// normalized form.
func (v Version) String() string {
	if v.Patch == 0 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 depending on whether v is ordered before,
// equal to, or after o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Format derives the specification generation for this version. The mapping
// is total and deterministic: [2.0,3.0) → FormatEpub2, [3.0,3.1) →
// FormatEpub3, [3.1,3.2) → FormatEpub31, [3.2,4.0) → FormatEpub32,
// >= 4.0 → FormatNotSupported, everything below 2.0 → FormatUnknown.
func (v Version) Format() Format {
	switch {
	case v.Major < 2:
		return FormatUnknown
	case v.Major == 2:
		return FormatEpub2
	case v.Major == 3 && v.Minor == 0:
		return FormatEpub3
	case v.Major == 3 && v.Minor == 1:
		return FormatEpub31
	case v.Major == 3:
		return FormatEpub32
	default:
		return FormatNotSupported
	}
}

// ParseVersion parses a package version attribute ("2.0", "3.0", "3.0.1").
// A missing patch component defaults to zero. The empty string and
// malformed or negative components are errors.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("epub: empty version string")
	}

	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return Version{}, fmt.Errorf("epub: malformed version %q", s)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("epub: malformed version %q", s)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// ResolveFormat parses a version string and derives its Format.
//
// EPUB 3.1 is rejected outright: the revision was withdrawn by the
// IDPF, so a file declaring it has no format to conform to. Versions at or
// above 4.0 resolve to FormatNotSupported; callers that intend to parse
// must treat that as a hard stop.
func ResolveFormat(s string) (Format, error) {
	v, err := ParseVersion(s)
	if err != nil {
		return FormatUnknown, err
	}
	f := v.Format()
	if f == FormatEpub31 {
		return FormatUnknown, fmt.Errorf("epub: version %s: EPUB 3.1 was withdrawn and is not supported", v)
	}
	return f, nil
}
