package epub

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
)

// Kind is the existence-state of a virtual path: nothing, a file, or a
// directory. The three states are mutually exclusive.
type Kind int

const (
	// KindNil means nothing exists at the path.
	KindNil Kind = iota
	// KindFile means a regular file exists at the path.
	KindFile
	// KindDirectory means a directory exists at the path.
	KindDirectory
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "nil"
	}
}

// Capability is a bitset describing which mutating operations a resource
// supports. Classification assigns capabilities; operations check them at
// the point of use and return a typed "not permitted" error on mismatch.
type Capability uint8

const (
	// CapDelete allows Delete and recursive deletion.
	CapDelete Capability = 1 << iota
	// CapModify allows MoveTo, RenameTo and CopyTo.
	CapModify
	// CapRaw allows raw byte access (Bytes, SetBytes, Open). Only fully
	// unprotected resources carry it, so protected system files can never
	// have their bytes rewritten through the convenience API.
	CapRaw
)

// Has reports whether all bits of want are set.
func (c Capability) Has(want Capability) bool { return c&want == want }

// protectedMetaInfNames are the META-INF control files that classify as
// protected system files when their parent is the META-INF directory.
var protectedMetaInfNames = map[string]struct{}{
	"container.xml":  {},
	"encryption.xml": {},
	"manifest.xml":   {},
	"metadata.xml":   {},
	"rights.xml":     {},
	"signatures.xml": {},
}

// Resource is a handle to what currently exists at a path, together with
// the capability set classification granted it.
//
// Resources are recomputed on every classification; a handle obtained
// before a mutating operation elsewhere in the tree may be stale, and
// operations on it re-validate existence at call time.
type Resource struct {
	fs   *FileSystem
	path Path
	kind Kind
	caps Capability
}

// Classify resolves p to what currently exists there, assigning the
// capability set the classification rules allow. In priority order:
// the mimetype file, the package document, and META-INF control files
// are protected (no capabilities); manifest-registered resources are
// modifiable and deletable; everything else is fully unprotected.
// Path comparison for the protected rules is case-insensitive, absolute,
// and normalized.
func (fs *FileSystem) Classify(p Path) (Resource, error) {
	p.mustSameFS(fs.Root())
	if err := fs.checkOpen(); err != nil {
		return Resource{}, err
	}

	key := p.normalizedKey()

	var caps Capability
	switch {
	case key == "/mimetype":
		caps = 0
	case fs.opfPath != "" && key == fs.opfPath:
		caps = 0
	case isProtectedMetaInf(p):
		caps = 0
	default:
		if _, ok := fs.manifestIndex[key]; ok {
			caps = CapDelete | CapModify
		} else {
			caps = CapDelete | CapModify | CapRaw
		}
	}

	kind := KindNil
	if n := fs.lookup(p); n != nil {
		if n.dir {
			kind = KindDirectory
		} else {
			kind = KindFile
		}
	}

	return Resource{fs: fs, path: p, kind: kind, caps: caps}, nil
}

func isProtectedMetaInf(p Path) bool {
	if p.Parent().normalizedKey() != "/meta-inf" {
		return false
	}
	_, ok := protectedMetaInfNames[lowerASCII(p.Name())]
	return ok
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

// Kind returns the existence-state observed at classification time.
func (r Resource) Kind() Kind { return r.kind }

// Path returns the path this resource was classified at.
func (r Resource) Path() Path { return r.path }

// Capabilities returns the capability set classification granted.
func (r Resource) Capabilities() Capability { return r.caps }

// Exists reports whether the resource still exists right now.
func (r Resource) Exists() bool { return r.fs.Exists(r.path) }

// node re-resolves the underlying tree node, failing when the filesystem
// is closed or the entry no longer exists.
func (r Resource) node(op string) (*node, error) {
	if err := r.fs.checkOpen(); err != nil {
		return nil, err
	}
	n := r.fs.lookup(r.path)
	if n == nil {
		return nil, fileErr(FileErrNoSuchFile, op, r.path.String(), nil)
	}
	return n, nil
}

// require fails with a typed not-permitted error when the capability set
// lacks want.
func (r Resource) require(want Capability, op string) error {
	if !r.caps.Has(want) {
		return fileErr(FileErrNotPermitted, op, r.path.String(), nil)
	}
	return nil
}

// IsEmpty reports whether a file has zero bytes or a directory no entries.
func (r Resource) IsEmpty() (bool, error) {
	n, err := r.node("isEmpty")
	if err != nil {
		return false, err
	}
	if n.dir {
		return len(n.children) == 0, nil
	}
	return len(n.data) == 0, nil
}

// LastModified returns the entry's modification time.
func (r Resource) LastModified() (time.Time, error) {
	n, err := r.node("lastModified")
	if err != nil {
		return time.Time{}, err
	}
	return n.modTime, nil
}

// Size returns a file's size in bytes. Use DirectorySize for directories.
func (r Resource) Size() (int64, error) {
	n, err := r.node("size")
	if err != nil {
		return 0, err
	}
	if n.dir {
		return 0, fileErr(FileErrNotDirectory, "size", r.path.String(), fmt.Errorf("size of a directory; use DirectorySize"))
	}
	return int64(len(n.data)), nil
}

// IsSameAs reports whether both handles refer to the same path of the
// same filesystem.
func (r Resource) IsSameAs(other Resource) bool {
	return r.fs == other.fs && r.path.Equals(other.path)
}

// Delete removes the entry. It requires CapDelete, fails when the entry
// no longer exists (a second delete is an error, not a no-op), and
// refuses non-empty directories.
func (r Resource) Delete() error {
	if err := r.require(CapDelete, "delete"); err != nil {
		return err
	}
	if err := r.fs.checkOpen(); err != nil {
		return err
	}
	return r.fs.removeNode(r.path, "delete")
}

// MoveTo moves the entry into the directory at targetDir, keeping its
// name. It requires CapModify on the source; the destination's capability
// is checked before anything is moved. A Nil destination directory is
// created; moving a directory onto an existing file (or vice versa) is a
// structural-mismatch error, never an overwrite.
func (r Resource) MoveTo(targetDir Path) (Resource, error) {
	return r.transfer(targetDir, r.path.Name(), "moveTo", true)
}

// RenameTo renames the entry within its parent directory. Same capability
// rules as MoveTo.
func (r Resource) RenameTo(name string) (Resource, error) {
	return r.transfer(r.path.Parent(), name, "renameTo", true)
}

// CopyTo copies the entry into the directory at targetDir, keeping its
// name. Same capability rules as MoveTo, but the source is left in place.
func (r Resource) CopyTo(targetDir Path) (Resource, error) {
	return r.transfer(targetDir, r.path.Name(), "copyTo", false)
}

func (r Resource) transfer(targetDir Path, name, op string, removeSource bool) (Resource, error) {
	targetDir.mustSameFS(r.path)
	if err := r.require(CapModify, op); err != nil {
		return Resource{}, err
	}
	src, err := r.node(op)
	if err != nil {
		return Resource{}, err
	}

	target, err := targetDir.Resolve(name)
	if err != nil {
		return Resource{}, err
	}

	// A transfer onto the entry itself is a no-op, and a directory can
	// never be transferred into its own subtree: the clone-then-remove
	// below would destroy the source.
	if target.absolute() == r.path.absolute() {
		return r.fs.Classify(target)
	}
	if src.dir && strings.HasPrefix(target.absolute(), r.path.absolute()+"/") {
		return Resource{}, fileErr(FileErrUnknown, op, target.String(), fmt.Errorf("cannot transfer a directory into its own subtree"))
	}

	// Destination capability is checked before the operation starts.
	dst, err := r.fs.Classify(target)
	if err != nil {
		return Resource{}, err
	}
	if !dst.caps.Has(CapModify) {
		return Resource{}, fileErr(FileErrNotPermitted, op, target.String(), nil)
	}

	switch dst.kind {
	case KindNil:
		// Auto-create the needed parent directories.
		if _, err := r.fs.ensureDir(splitSegments(targetDir.absolute()), time.Now()); err != nil {
			return Resource{}, err
		}
	case KindFile:
		if src.dir {
			return Resource{}, fileErr(FileErrNotDirectory, op, target.String(), fmt.Errorf("cannot replace a file with a directory"))
		}
	case KindDirectory:
		if !src.dir {
			return Resource{}, fileErr(FileErrNotDirectory, op, target.String(), fmt.Errorf("cannot replace a directory with a file"))
		}
		if empty := len(r.fs.lookup(target).children) == 0; !empty {
			return Resource{}, fileErr(FileErrDirectoryNotEmpty, op, target.String(), nil)
		}
	}

	parent, err := r.fs.lookupParent(target)
	if err != nil {
		return Resource{}, err
	}
	parent.children[name] = cloneNode(src, name)

	if removeSource {
		srcParent, err := r.fs.lookupParent(r.path)
		if err != nil {
			return Resource{}, err
		}
		delete(srcParent.children, r.path.Name())
	}

	return r.fs.Classify(target)
}

// cloneNode deep-copies a subtree under a (possibly) new name.
func cloneNode(n *node, name string) *node {
	out := &node{name: name, dir: n.dir, modTime: n.modTime}
	if n.dir {
		out.children = make(map[string]*node, len(n.children))
		for k, c := range n.children {
			out.children[k] = cloneNode(c, c.name)
		}
	} else {
		out.data = append([]byte(nil), n.data...)
	}
	return out
}

// Bytes returns a copy of a file's contents. Raw byte access requires the
// unprotected capability tier.
func (r Resource) Bytes() ([]byte, error) {
	if err := r.require(CapRaw, "bytes"); err != nil {
		return nil, err
	}
	n, err := r.node("bytes")
	if err != nil {
		return nil, err
	}
	if n.dir {
		return nil, fileErr(FileErrNotDirectory, "bytes", r.path.String(), fmt.Errorf("cannot read a directory"))
	}
	return append([]byte(nil), n.data...), nil
}

// Open returns a reader over a file's contents. Requires CapRaw.
func (r Resource) Open() (io.Reader, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// SetBytes replaces a file's contents, creating the file when nothing
// exists at the path yet. Requires CapRaw.
func (r *Resource) SetBytes(data []byte) error {
	if err := r.require(CapRaw, "setBytes"); err != nil {
		return err
	}
	if err := r.fs.checkOpen(); err != nil {
		return err
	}
	if n := r.fs.lookup(r.path); n != nil && n.dir {
		return fileErr(FileErrNotDirectory, "setBytes", r.path.String(), fmt.Errorf("cannot write a directory"))
	}
	if err := r.fs.insertFile(splitSegments(r.path.absolute()), append([]byte(nil), data...), time.Now()); err != nil {
		return err
	}
	r.kind = KindFile
	return nil
}

// readFileAt returns the raw bytes of the file at p, bypassing the
// capability gate. Internal use only: the read/write pipeline needs the
// bytes of protected documents.
func (fs *FileSystem) readFileAt(p Path) ([]byte, error) {
	if err := fs.checkOpen(); err != nil {
		return nil, err
	}
	n := fs.lookup(p)
	if n == nil {
		return nil, fileErr(FileErrNoSuchFile, "read", p.String(), nil)
	}
	if n.dir {
		return nil, fileErr(FileErrNotDirectory, "read", p.String(), nil)
	}
	return n.data, nil
}

// writeFileAt replaces the bytes of the file at p, bypassing the
// capability gate. Internal use only (document serialization).
func (fs *FileSystem) writeFileAt(p Path, data []byte) error {
	if err := fs.checkOpen(); err != nil {
		return err
	}
	return fs.insertFile(splitSegments(p.absolute()), data, time.Now())
}
