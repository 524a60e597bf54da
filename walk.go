package epub

import (
	"fmt"
	"math/big"
)

// Visitor receives callbacks during a directory tree walk. Returning a
// non-nil error from any callback aborts the walk; the error propagates
// unchanged to Walk's caller (first failure wins). Embed BaseVisitor to
// get "continue" defaults for the callbacks you don't care about.
type Visitor interface {
	// PreVisitDirectory runs before a directory's entries are visited.
	PreVisitDirectory(dir Resource) error
	// VisitFile runs for every file.
	VisitFile(file Resource) error
	// VisitFileFailed runs when a file could not be read or classified.
	VisitFileFailed(p Path, err error) error
	// PostVisitDirectory runs after a directory's entries were visited.
	// walkErr is nil unless visiting an entry failed (in which case the
	// walk is already aborting and this is the unwind notification).
	PostVisitDirectory(dir Resource, walkErr error) error
	// VisitNil runs for entries that vanished mid-walk, e.g. deleted by
	// an earlier step of the same walk.
	VisitNil(p Path) error
}

// BaseVisitor implements Visitor with every callback continuing.
type BaseVisitor struct{}

func (BaseVisitor) PreVisitDirectory(Resource) error          { return nil }
func (BaseVisitor) VisitFile(Resource) error                  { return nil }
func (BaseVisitor) VisitFileFailed(_ Path, err error) error   { return err }
func (BaseVisitor) PostVisitDirectory(_ Resource, err error) error { return err }
func (BaseVisitor) VisitNil(Path) error                       { return nil }

// Walk traverses the tree rooted at p depth-first, invoking v's
// callbacks. Entry names are snapshotted per directory before descending,
// then re-resolved on visit, so entries removed by the walk itself are
// reported through VisitNil rather than crashing the traversal.
func (fs *FileSystem) Walk(p Path, v Visitor) error {
	p.mustSameFS(fs.Root())
	if err := fs.checkOpen(); err != nil {
		return err
	}
	return fs.walk(p, v)
}

func (fs *FileSystem) walk(p Path, v Visitor) error {
	res, err := fs.Classify(p)
	if err != nil {
		return v.VisitFileFailed(p, err)
	}

	switch res.Kind() {
	case KindNil:
		return v.VisitNil(p)
	case KindFile:
		return v.VisitFile(res)
	}

	if err := v.PreVisitDirectory(res); err != nil {
		return err
	}

	// Snapshot names before descending; the tree may mutate underneath.
	n := fs.lookup(p)
	var names []string
	if n != nil {
		for _, c := range sortedChildren(n) {
			names = append(names, c.name)
		}
	}

	var walkErr error
	for _, name := range names {
		child, err := p.Resolve(name)
		if err != nil {
			walkErr = v.VisitFileFailed(p, err)
		} else {
			walkErr = fs.walk(child, v)
		}
		if walkErr != nil {
			break
		}
	}

	return v.PostVisitDirectory(res, walkErr)
}

// sizeVisitor accumulates file sizes during a walk.
type sizeVisitor struct {
	BaseVisitor
	total big.Int
}

func (s *sizeVisitor) VisitFile(f Resource) error {
	size, err := f.Size()
	if err != nil {
		return err
	}
	s.total.Add(&s.total, big.NewInt(size))
	return nil
}

// DirectorySize returns the sum of all file sizes under p as an int64.
// Archives whose total exceeds the 64-bit range should use
// DirectorySizeBig instead; overflow here is an error.
func (fs *FileSystem) DirectorySize(p Path) (int64, error) {
	total, err := fs.DirectorySizeBig(p)
	if err != nil {
		return 0, err
	}
	if !total.IsInt64() {
		return 0, fmt.Errorf("epub: directory size of %s exceeds 64-bit range; use DirectorySizeBig", p)
	}
	return total.Int64(), nil
}

// DirectorySizeBig returns the sum of all file sizes under p as an
// arbitrary-precision integer.
func (fs *FileSystem) DirectorySizeBig(p Path) (*big.Int, error) {
	sv := &sizeVisitor{}
	if err := fs.Walk(p, sv); err != nil {
		return nil, err
	}
	return &sv.total, nil
}

// transferVisitor copies (and optionally deletes) entries while walking,
// preserving structure relative to the source root.
type transferVisitor struct {
	BaseVisitor
	fs       *FileSystem
	src, dst Path
}

func (t *transferVisitor) target(p Path) (Path, error) {
	rel, err := t.src.Relativize(p)
	if err != nil {
		return Path{}, err
	}
	if rel.String() == "." {
		return t.dst, nil
	}
	return t.dst.Resolve(rel.String())
}

func (t *transferVisitor) PreVisitDirectory(dir Resource) error {
	target, err := t.target(dir.Path())
	if err != nil {
		return err
	}
	existing, err := t.fs.Classify(target)
	if err != nil {
		return err
	}
	if existing.Kind() == KindFile {
		return fileErr(FileErrNotDirectory, "copy", target.String(), fmt.Errorf("a file exists where a directory is needed"))
	}
	_, err = t.fs.CreateDirectory(target)
	return err
}

func (t *transferVisitor) VisitFile(f Resource) error {
	target, err := t.target(f.Path())
	if err != nil {
		return err
	}
	existing, err := t.fs.Classify(target)
	if err != nil {
		return err
	}
	if existing.Kind() == KindDirectory {
		return fileErr(FileErrNotDirectory, "copy", target.String(), fmt.Errorf("a directory exists where a file is needed"))
	}
	if !existing.Capabilities().Has(CapModify) {
		return fileErr(FileErrNotPermitted, "copy", target.String(), nil)
	}
	data, err := t.fs.readFileAt(f.Path())
	if err != nil {
		return err
	}
	return t.fs.writeFileAt(target, data)
}

// CopyEntriesTo recursively copies the directory's contents into target,
// preserving relative structure. A directory-vs-file type mismatch at any
// visited node aborts the whole operation; the destination is left in its
// partially-copied state (tree mutations are not atomic) and the error
// identifies the node the walk stopped at.
func (r Resource) CopyEntriesTo(target Path) error {
	target.mustSameFS(r.path)
	if err := r.require(CapModify, "copyEntriesTo"); err != nil {
		return err
	}
	if r.kind != KindDirectory {
		return fileErr(FileErrNotDirectory, "copyEntriesTo", r.path.String(), nil)
	}
	tv := &transferVisitor{fs: r.fs, src: r.path, dst: target}
	return r.fs.Walk(r.path, tv)
}

// MoveRecursivelyTo copies the directory's contents into target and then
// deletes the source tree. Same mismatch and partial-failure semantics as
// CopyEntriesTo; the source is only deleted after a fully successful copy.
func (r Resource) MoveRecursivelyTo(target Path) error {
	if err := r.CopyEntriesTo(target); err != nil {
		return err
	}
	return r.DeleteRecursively()
}

// deleteVisitor removes files on visit and directories post-order.
type deleteVisitor struct {
	BaseVisitor
	fs *FileSystem
}

func (d *deleteVisitor) VisitFile(f Resource) error {
	return f.Delete()
}

func (d *deleteVisitor) PostVisitDirectory(dir Resource, walkErr error) error {
	if walkErr != nil {
		return walkErr
	}
	return dir.Delete()
}

// DeleteRecursively removes the resource and everything beneath it,
// post-order (files before their containing directories). Any
// non-deletable node aborts the operation with that node identified in
// the returned error.
func (r Resource) DeleteRecursively() error {
	if err := r.require(CapDelete, "deleteRecursively"); err != nil {
		return err
	}
	return r.fs.Walk(r.path, &deleteVisitor{fs: r.fs})
}
