package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// FileSystem is a mutable virtual file tree backed by an ePub archive.
//
// It owns the archive contents exclusively: all Path and Resource values
// are scoped to the FileSystem that produced them, and Close is a
// terminal transition that invalidates every derived handle. A FileSystem
// is not safe for concurrent use.
type FileSystem struct {
	root *node

	// opfPath is the case-folded absolute path of the package document,
	// set once the container has been parsed. Used by classification.
	opfPath string

	// manifestIndex holds the case-folded absolute paths of
	// manifest-registered local resources. Used by classification.
	manifestIndex map[string]struct{}

	closed bool
}

// node is a single entry in the virtual tree. Directories have children;
// files have data.
type node struct {
	name     string
	dir      bool
	data     []byte
	modTime  time.Time
	children map[string]*node
}

func newDirNode(name string, mod time.Time) *node {
	return &node{name: name, dir: true, modTime: mod, children: make(map[string]*node)}
}

func newFileNode(name string, data []byte, mod time.Time) *node {
	return &node{name: name, data: data, modTime: mod}
}

// NewFileSystem returns an empty filesystem containing only the root
// directory. Useful for building an ePub from scratch.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		root:          newDirNode("", time.Now()),
		manifestIndex: make(map[string]struct{}),
	}
}

// newFileSystemFromZip loads every archive entry into a virtual tree.
//
// Symbolic links inside the archive are a contract violation: an OCF
// container must not contain them, and continuing risks silent data
// corruption, so loading panics identifying the corrupt entry.
func newFileSystemFromZip(zr *zip.Reader) (*FileSystem, error) {
	fs := NewFileSystem()

	for _, f := range zr.File {
		if f.Mode()&os.ModeSymlink != 0 {
			panic(fmt.Sprintf("epub: archive entry %q is a symbolic link; the container is corrupt", f.Name))
		}
		if !isSafePath(f.Name) {
			return nil, fmt.Errorf("epub: unsafe zip entry path: %s", f.Name)
		}

		name := strings.TrimSuffix(f.Name, "/")
		if name == "" {
			continue
		}

		if f.FileInfo().IsDir() {
			if _, err := fs.ensureDir(splitSegments(name), f.Modified); err != nil {
				return nil, err
			}
			continue
		}

		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		if err := fs.insertFile(splitSegments(name), data, f.Modified); err != nil {
			return nil, err
		}
	}

	return fs, nil
}

func splitSegments(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Root returns the absolute root path of this filesystem.
func (fs *FileSystem) Root() Path {
	return Path{fs: fs, raw: "/"}
}

// GetPath builds a path from one or more segments, joined with "/".
// The result is cleaned; traversal above the root is an error.
func (fs *FileSystem) GetPath(segments ...string) (Path, error) {
	if len(segments) == 0 {
		return Path{}, fmt.Errorf("epub: GetPath requires at least one segment")
	}
	cleaned, err := cleanPathString(strings.Join(segments, "/"))
	if err != nil {
		return Path{}, err
	}
	return Path{fs: fs, raw: cleaned}, nil
}

// Close releases the filesystem. Closing is terminal: every Path and
// Resource derived from this filesystem becomes invalid, and operations
// on them return ErrFilesystemClosed. Close is idempotent.
func (fs *FileSystem) Close() error {
	fs.closed = true
	fs.root = nil
	return nil
}

// Closed reports whether Close has been called.
func (fs *FileSystem) Closed() bool { return fs.closed }

// checkOpen returns ErrFilesystemClosed after Close.
func (fs *FileSystem) checkOpen() error {
	if fs.closed {
		return ErrFilesystemClosed
	}
	return nil
}

// Exists reports whether anything (file or directory) exists at p.
func (fs *FileSystem) Exists(p Path) bool {
	if fs.closed {
		return false
	}
	return fs.lookup(p) != nil
}

// lookup walks the tree to the node at p, or nil when nothing is there.
func (fs *FileSystem) lookup(p Path) *node {
	if fs.closed {
		return nil
	}
	cur := fs.root
	for _, seg := range splitSegments(p.absolute()) {
		if cur == nil || !cur.dir {
			return nil
		}
		cur = cur.children[seg]
	}
	return cur
}

// lookupParent returns the directory node that would contain p, or an
// error when any intermediate segment is missing or not a directory.
func (fs *FileSystem) lookupParent(p Path) (*node, error) {
	segs := splitSegments(p.absolute())
	if len(segs) == 0 {
		return nil, fileErr(FileErrUnknown, "lookup", "/", fmt.Errorf("root has no parent"))
	}
	cur := fs.root
	for _, seg := range segs[:len(segs)-1] {
		next := cur.children[seg]
		if next == nil {
			return nil, fileErr(FileErrNoSuchFile, "lookup", p.String(), nil)
		}
		if !next.dir {
			return nil, fileErr(FileErrNotDirectory, "lookup", p.String(), nil)
		}
		cur = next
	}
	return cur, nil
}

// ensureDir creates (or returns) the directory at the given segments,
// creating intermediate directories as needed.
func (fs *FileSystem) ensureDir(segs []string, mod time.Time) (*node, error) {
	cur := fs.root
	for i, seg := range segs {
		next := cur.children[seg]
		if next == nil {
			next = newDirNode(seg, mod)
			cur.children[seg] = next
		} else if !next.dir {
			return nil, fileErr(FileErrNotDirectory, "mkdir", "/"+strings.Join(segs[:i+1], "/"), nil)
		}
		cur = next
	}
	return cur, nil
}

// insertFile places file data at the given segments, creating parent
// directories. An existing file at the path is overwritten; an existing
// directory is a structural mismatch.
func (fs *FileSystem) insertFile(segs []string, data []byte, mod time.Time) error {
	if len(segs) == 0 {
		return fileErr(FileErrUnknown, "write", "/", fmt.Errorf("cannot write the root"))
	}
	parent, err := fs.ensureDir(segs[:len(segs)-1], mod)
	if err != nil {
		return err
	}
	name := segs[len(segs)-1]
	if existing := parent.children[name]; existing != nil && existing.dir {
		return fileErr(FileErrNotDirectory, "write", "/"+strings.Join(segs, "/"), fmt.Errorf("a directory exists at the target"))
	}
	parent.children[name] = newFileNode(name, data, mod)
	return nil
}

// removeNode deletes the entry at p. Non-empty directories are refused.
func (fs *FileSystem) removeNode(p Path, op string) error {
	parent, err := fs.lookupParent(p)
	if err != nil {
		return err
	}
	name := p.Name()
	n := parent.children[name]
	if n == nil {
		return fileErr(FileErrNoSuchFile, op, p.String(), nil)
	}
	if n.dir && len(n.children) > 0 {
		return fileErr(FileErrDirectoryNotEmpty, op, p.String(), nil)
	}
	delete(parent.children, name)
	return nil
}

// ImportFile copies a file from the host filesystem into targetDir and
// returns the resulting resource. The file keeps its base name.
func (fs *FileSystem) ImportFile(hostPath string, targetDir Path) (Resource, error) {
	targetDir.mustSameFS(fs.Root())
	if err := fs.checkOpen(); err != nil {
		return Resource{}, err
	}

	f, err := os.Open(hostPath)
	if err != nil {
		return Resource{}, fileErr(FileErrNoSuchFile, "importFile", hostPath, err)
	}
	defer f.Close()

	name := baseName(hostPath)
	return fs.ImportReader(f, name, targetDir)
}

// ImportReader copies the stream's bytes into targetDir under the given
// name and returns the resulting resource.
func (fs *FileSystem) ImportReader(r io.Reader, name string, targetDir Path) (Resource, error) {
	targetDir.mustSameFS(fs.Root())
	if err := fs.checkOpen(); err != nil {
		return Resource{}, err
	}
	if name == "" || strings.ContainsAny(name, "/\\") {
		return Resource{}, fmt.Errorf("epub: invalid import name %q", name)
	}

	dirNode := fs.lookup(targetDir)
	if dirNode == nil {
		return Resource{}, fileErr(FileErrNoSuchFile, "import", targetDir.String(), nil)
	}
	if !dirNode.dir {
		return Resource{}, fileErr(FileErrNotDirectory, "import", targetDir.String(), nil)
	}

	data, err := io.ReadAll(io.LimitReader(r, maxDecompressSize+1))
	if err != nil {
		return Resource{}, fileErr(FileErrUnknown, "import", targetDir.String(), err)
	}
	if int64(len(data)) > maxDecompressSize {
		return Resource{}, fmt.Errorf("epub: import %s: stream exceeds %d bytes", name, maxDecompressSize)
	}

	target, err := targetDir.Resolve(name)
	if err != nil {
		return Resource{}, err
	}
	if err := fs.insertFile(splitSegments(target.absolute()), data, time.Now()); err != nil {
		return Resource{}, err
	}
	return fs.Classify(target)
}

// CreateDirectory creates the directory at p, including missing parents.
func (fs *FileSystem) CreateDirectory(p Path) (Resource, error) {
	p.mustSameFS(fs.Root())
	if err := fs.checkOpen(); err != nil {
		return Resource{}, err
	}
	if _, err := fs.ensureDir(splitSegments(p.absolute()), time.Now()); err != nil {
		return Resource{}, err
	}
	return fs.Classify(p)
}

// setOPFPath records the package document location for classification.
func (fs *FileSystem) setOPFPath(p Path) {
	fs.opfPath = p.normalizedKey()
}

// setManifestIndex replaces the manifest-registered resource index used
// by classification. Paths must be absolute, archive-internal.
func (fs *FileSystem) setManifestIndex(paths []Path) {
	fs.manifestIndex = make(map[string]struct{}, len(paths))
	for _, p := range paths {
		fs.manifestIndex[p.normalizedKey()] = struct{}{}
	}
}

// sortedChildren returns the directory node's children ordered by name,
// for deterministic walks and serialization.
func sortedChildren(n *node) []*node {
	out := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// baseName returns the final segment of a host path, accepting both
// slash conventions.
func baseName(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
