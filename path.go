package epub

import (
	"fmt"
	"path"
	"strings"
)

// Path is an immutable, hierarchical path inside one FileSystem.
//
// Paths are forward-slash separated and scoped to the filesystem that
// created them: combining paths from different FileSystem instances is a
// programming error and panics. Paths never escape the archive root;
// resolving above root fails instead of silently clamping.
type Path struct {
	fs  *FileSystem
	raw string // cleaned: "/a/b" (absolute) or "a/b" (relative), "/" for root
}

// String returns the path's textual form.
func (p Path) String() string { return p.raw }

// IsZero reports whether p is the zero Path, unattached to any
// filesystem.
func (p Path) IsZero() bool { return p.fs == nil }

// IsAbsolute reports whether the path is anchored at the archive root.
func (p Path) IsAbsolute() bool { return strings.HasPrefix(p.raw, "/") }

// IsRoot reports whether the path is the archive root itself.
func (p Path) IsRoot() bool { return p.raw == "/" }

// Name returns the final segment of the path, or "" for the root.
func (p Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	return path.Base(p.raw)
}

// Segments returns the path's segments in order. The root has none.
func (p Path) Segments() []string {
	trimmed := strings.Trim(p.raw, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// NameCount returns the number of segments in the path.
func (p Path) NameCount() int { return len(p.Segments()) }

// Parent returns the parent path. The root's parent is the root itself;
// a single-segment relative path's parent is ".".
func (p Path) Parent() Path {
	if p.IsRoot() {
		return p
	}
	dir := path.Dir(p.raw)
	return Path{fs: p.fs, raw: dir}
}

// Resolve joins name onto p, cleaning the result. Resolving an absolute
// name returns that name against the same filesystem. Traversal above the
// archive root is an error.
func (p Path) Resolve(name string) (Path, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return p, nil
	}
	if strings.HasPrefix(name, "/") {
		return p.fs.GetPath(name)
	}

	// The escape check runs on the raw joined form: path.Join would
	// absorb ".." segments before they can be seen.
	joined := p.raw + "/" + name
	if escapesRoot(joined) {
		return Path{}, fmt.Errorf("epub: path %q resolved against %q escapes the archive root", name, p.raw)
	}
	return Path{fs: p.fs, raw: path.Clean(joined)}, nil
}

// Relativize returns the path of other relative to p. Both paths must be
// absolute and other must be at or below p.
func (p Path) Relativize(other Path) (Path, error) {
	p.mustSameFS(other)
	if !p.IsAbsolute() || !other.IsAbsolute() {
		return Path{}, fmt.Errorf("epub: relativize requires absolute paths (%q, %q)", p.raw, other.raw)
	}

	base := p.raw
	if base != "/" {
		base += "/"
	}
	if other.raw == p.raw {
		return Path{fs: p.fs, raw: "."}, nil
	}
	if !strings.HasPrefix(other.raw, base) {
		return Path{}, fmt.Errorf("epub: %q is not below %q", other.raw, p.raw)
	}
	return Path{fs: p.fs, raw: other.raw[len(base):]}, nil
}

// Equals reports whether two paths are the same path in the same
// filesystem. Comparison is exact (case-sensitive).
func (p Path) Equals(other Path) bool {
	return p.fs == other.fs && p.raw == other.raw
}

// Compare orders two paths of the same filesystem lexicographically.
func (p Path) Compare(other Path) int {
	p.mustSameFS(other)
	return strings.Compare(p.raw, other.raw)
}

// absolute returns the path anchored at root. Relative paths are resolved
// against the root directory.
func (p Path) absolute() string {
	if p.IsAbsolute() {
		return p.raw
	}
	if p.raw == "." || p.raw == "" {
		return "/"
	}
	return "/" + p.raw
}

// normalizedKey returns the case-folded absolute form used for protected
// path comparison, so "./mimetype" and "/MIMETYPE" compare equal.
func (p Path) normalizedKey() string {
	return strings.ToLower(p.absolute())
}

// mustSameFS panics when other belongs to a different filesystem.
// Mixing paths across filesystem instances is a contract violation, not a
// recoverable condition.
func (p Path) mustSameFS(other Path) {
	if p.fs != other.fs {
		panic(fmt.Sprintf("epub: path %q belongs to a different filesystem than %q", other.raw, p.raw))
	}
}

// cleanPathString normalizes a caller-supplied path string: backslashes
// become slashes, the result is path.Clean'ed, and absolute/relative form
// is preserved.
func cleanPathString(s string) (string, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	if s == "" {
		return "", fmt.Errorf("epub: empty path")
	}
	if escapesRoot(s) {
		return "", fmt.Errorf("epub: path %q escapes the archive root", s)
	}
	return path.Clean(s), nil
}

// escapesRoot reports whether a raw slash-separated path reaches above
// its anchor via ".." traversal. It must see the path before cleaning:
// path.Clean turns "/../secret" into "/secret", silently clamping the
// escape instead of surfacing it.
func escapesRoot(raw string) bool {
	depth := 0
	for _, seg := range strings.Split(raw, "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		default:
			depth++
		}
	}
	return false
}
