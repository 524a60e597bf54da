package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"
)

// syncDocuments serializes the live models (container, OPF, NCX, nav
// document) back into the virtual filesystem, so that Write observes a
// consistent archive image. The mimetype entry is reasserted too.
func (e *Epub) syncDocuments(opts WriteOptions) error {
	if err := e.fs.checkOpen(); err != nil {
		return err
	}

	mimetype, err := e.fs.GetPath(mimetypePath)
	if err != nil {
		return err
	}
	if err := e.fs.writeFileAt(mimetype, []byte(expectedMimetype)); err != nil {
		return err
	}

	if e.container == nil {
		e.container = newContainer(strings.TrimPrefix(e.opfPath.String(), "/"))
	}
	data, err := e.container.serialize()
	if err != nil {
		return err
	}
	cp, err := e.fs.GetPath(containerPath)
	if err != nil {
		return err
	}
	if err := e.fs.writeFileAt(cp, data); err != nil {
		return err
	}

	if data, err = e.pkg.serialize(opts, e.reg); err != nil {
		return err
	}
	if err := e.fs.writeFileAt(e.opfPath, data); err != nil {
		return err
	}

	if e.toc != nil && e.toc.NCX != nil && !e.ncxPath.IsZero() {
		if data, err = e.toc.NCX.serialize(); err != nil {
			return err
		}
		if err := e.fs.writeFileAt(e.ncxPath, data); err != nil {
			return err
		}
	}
	if e.toc != nil && e.toc.NavDoc != nil && !e.navPath.IsZero() {
		if data, err = e.toc.NavDoc.serialize(); err != nil {
			return err
		}
		if err := e.fs.writeFileAt(e.navPath, data); err != nil {
			return err
		}
	}

	return nil
}

// Write serializes the publication to w as an EPUB container with default
// write options.
func (e *Epub) Write(w io.Writer) error {
	return e.WriteWithOptions(w, WriteOptions{})
}

// WriteWithOptions serializes the publication to w. The mimetype entry is
// written first and uncompressed, as OCF requires; everything else is
// deflated in sorted path order.
func (e *Epub) WriteWithOptions(w io.Writer, opts WriteOptions) error {
	if err := e.syncDocuments(opts); err != nil {
		return err
	}

	zw := zip.NewWriter(w)

	mt, err := zw.CreateHeader(&zip.FileHeader{
		Name:   mimetypePath,
		Method: zip.Store,
	})
	if err != nil {
		return fmt.Errorf("epub: write mimetype: %w", err)
	}
	if _, err := mt.Write([]byte(expectedMimetype)); err != nil {
		return fmt.Errorf("epub: write mimetype: %w", err)
	}

	if err := writeTree(zw, e.fs.root, ""); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("epub: finalize archive: %w", err)
	}
	return nil
}

// writeTree recursively writes the node tree under n into zw. Entry names
// use forward slashes relative to the archive root; the root mimetype
// file is skipped because the caller has already emitted it.
func writeTree(zw *zip.Writer, n *node, prefix string) error {
	for _, child := range sortedChildren(n) {
		name := child.name
		if prefix != "" {
			name = prefix + "/" + child.name
		}
		if child.dir {
			if len(child.children) == 0 {
				if _, err := zw.Create(name + "/"); err != nil {
					return fmt.Errorf("epub: write directory %s: %w", name, err)
				}
				continue
			}
			if err := writeTree(zw, child, name); err != nil {
				return err
			}
			continue
		}
		if prefix == "" && strings.EqualFold(name, mimetypePath) {
			continue
		}
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: child.modTime,
		})
		if err != nil {
			return fmt.Errorf("epub: write %s: %w", name, err)
		}
		if _, err := f.Write(child.data); err != nil {
			return fmt.Errorf("epub: write %s: %w", name, err)
		}
	}
	return nil
}

// Save writes the publication to a file at the given path, replacing any
// existing file.
func (e *Epub) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("epub: save %s: %w", path, err)
	}
	if err := e.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("epub: save %s: %w", path, err)
	}
	return nil
}
