package epub

import (
	"archive/zip"
	"fmt"
	"io"
)

// Options configures opening behavior.
type Options struct {
	// LenientMimetype downgrades a missing or mismatching mimetype entry
	// from a hard error to a warning.
	LenientMimetype bool

	// Registry is the scheme decoder registry for OPF 3 meta values.
	// Nil uses NewSchemeRegistry's defaults.
	Registry *SchemeRegistry

	// Corrector, when non-nil, is applied to the guide after reading,
	// remapping known misspellings of reference types.
	Corrector *GuideCorrector

	// CorrectorPolicy selects conflict handling for corrected guide
	// references that collide with existing canonical ones.
	CorrectorPolicy ConflictResolution
}

// WriteOptions configures serialization behavior.
type WriteOptions struct {
	// OmitLegacyFeatures suppresses EPUB 2 constructs (OPF 2 metas, the
	// opf: attribute forms, guide/tours) on pure-EPUB 3 output.
	OmitLegacyFeatures bool
}

// Epub is an ePub publication modelled as a mutable object graph: a
// virtual filesystem of typed, permission-tagged resources plus the
// parsed package document and navigation models.
//
// An Epub is not safe for concurrent use by multiple goroutines.
type Epub struct {
	fs        *FileSystem
	closer    io.Closer // non-nil only when created via Open
	container *Container
	opfPath   Path
	pkg       *PackageDocument
	toc       *TableOfContents
	ncxPath   Path // zero when no NCX is present
	navPath   Path // zero when no nav document is present
	reg       *SchemeRegistry
	diag      diagnostics
}

// Open opens an ePub file at the given path with default options.
// The caller must call Close when done.
func Open(path string) (*Epub, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions opens an ePub file at the given path.
func OpenWithOptions(path string, opts Options) (*Epub, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %w", path, err)
	}

	e, err := initEpub(&zrc.Reader, zrc, opts)
	if err != nil {
		zrc.Close()
		return nil, err
	}
	return e, nil
}

// NewReader creates an Epub from an io.ReaderAt with the given size and
// default options. The caller owns r's lifetime; Close only releases
// internal state.
func NewReader(r io.ReaderAt, size int64) (*Epub, error) {
	return NewReaderWithOptions(r, size, Options{})
}

// NewReaderWithOptions creates an Epub from an io.ReaderAt.
func NewReaderWithOptions(r io.ReaderAt, size int64, opts Options) (*Epub, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("epub: open zip: %w", err)
	}
	return initEpub(zr, nil, opts)
}

// initEpub performs common initialisation: filesystem construction,
// mimetype validation, encryption check, container and OPF parsing, and
// table-of-contents resolution.
func initEpub(zr *zip.Reader, closer io.Closer, opts Options) (*Epub, error) {
	fs, err := newFileSystemFromZip(zr)
	if err != nil {
		return nil, err
	}

	e := &Epub{fs: fs, closer: closer, reg: opts.Registry}
	if e.reg == nil {
		e.reg = NewSchemeRegistry()
	}

	fontObfuscation, err := checkEncryption(fs)
	if err != nil {
		return nil, err
	}
	if fontObfuscation {
		e.diag.add(fmt.Errorf("font obfuscation detected; obfuscated fonts may not render correctly"))
	}

	if err := e.validateMimetype(opts); err != nil {
		return nil, err
	}
	if err := e.parseContainer(); err != nil {
		return nil, err
	}
	if err := e.parsePackageDocument(opts); err != nil {
		return nil, err
	}
	if err := e.parseTableOfContents(); err != nil {
		return nil, err
	}

	return e, nil
}

// validateMimetype checks the root mimetype file: it must exist and
// contain exactly "application/epub+zip". With Options.LenientMimetype
// deviations degrade to warnings.
func (e *Epub) validateMimetype(opts Options) error {
	report := func(err error) error {
		if opts.LenientMimetype {
			e.diag.add(err)
			return nil
		}
		return err
	}

	p, err := e.fs.GetPath(mimetypePath)
	if err != nil {
		return err
	}
	if !e.fs.Exists(p) {
		return report(ErrMissingMimetype)
	}

	data, err := e.fs.readFileAt(p)
	if err != nil {
		return err
	}
	if string(data) != expectedMimetype {
		return report(fmt.Errorf("%w: %q", ErrMimetypeMismatch, string(data)))
	}
	return nil
}

// parseContainer reads META-INF/container.xml and resolves the package
// document path from it. The path is authoritative; nothing is assumed
// about where the OPF lives.
func (e *Epub) parseContainer() error {
	metaInf, err := e.fs.GetPath(metaInfDir)
	if err != nil {
		return err
	}
	if !e.fs.Exists(metaInf) {
		return fmt.Errorf("%w: no META-INF directory", ErrMissingContainer)
	}

	containerFile, err := e.fs.GetPath(containerPath)
	if err != nil {
		return err
	}
	if !e.fs.Exists(containerFile) {
		return ErrMissingContainer
	}

	data, err := e.fs.readFileAt(containerFile)
	if err != nil {
		return err
	}
	if e.container, err = readContainer(data); err != nil {
		return err
	}

	opfPath, ok := e.container.PackageDocumentPath()
	if !ok {
		return ErrMissingRootfile
	}
	if e.opfPath, err = e.fs.GetPath("/" + opfPath); err != nil {
		return err
	}
	if !e.fs.Exists(e.opfPath) {
		return fmt.Errorf("%w: %s", ErrMissingOPF, opfPath)
	}

	e.fs.setOPFPath(e.opfPath)
	return nil
}

// parsePackageDocument reads and models the OPF, applies the guide
// corrector, and registers manifest resources with the filesystem's
// classification layer.
func (e *Epub) parsePackageDocument(opts Options) error {
	data, err := e.fs.readFileAt(e.opfPath)
	if err != nil {
		return err
	}

	pkg, err := readPackageDocument(data, e.opfPath.String(), e.reg, &e.diag)
	if err != nil {
		return err
	}
	e.pkg = pkg

	if pkg.Guide != nil && opts.Corrector != nil {
		pkg.Guide.ApplyCorrector(opts.Corrector, opts.CorrectorPolicy)
	}

	return e.reindexManifest()
}

// reindexManifest recomputes the filesystem's manifest-resource index
// from the current manifest. Callers that mutate the manifest should
// invoke ReindexManifest to keep classification in sync.
func (e *Epub) reindexManifest() error {
	opfDir := e.opfPath.Parent()
	paths := make([]Path, 0, len(e.pkg.Manifest.Items))
	for _, item := range e.pkg.Manifest.Items {
		p, err := opfDir.Resolve(unescapeHref(item.Href))
		if err != nil {
			return fmt.Errorf("epub: manifest item %q: %w", item.ID, err)
		}
		paths = append(paths, p)
	}
	e.fs.setManifestIndex(paths)
	return nil
}

// ReindexManifest re-registers all manifest item paths with the
// filesystem's classification layer. Call it after adding or removing
// manifest items.
func (e *Epub) ReindexManifest() error { return e.reindexManifest() }

// parseTableOfContents locates and parses the NCX and/or navigation
// document, normalizes whichever is authoritative for the file's format,
// and validates every leaf reference against the manifest.
func (e *Epub) parseTableOfContents() error {
	toc := &TableOfContents{}
	opfDir := e.opfPath.Parent()

	// Registered manifest paths for reference validation.
	registered := make(map[string]struct{}, len(e.pkg.Manifest.Items))
	for _, item := range e.pkg.Manifest.Items {
		p, err := opfDir.Resolve(unescapeHref(item.Href))
		if err != nil {
			return err
		}
		registered[p.normalizedKey()] = struct{}{}
	}

	// Legacy NCX, referenced by the spine's toc attribute.
	if e.pkg.Spine.TOC != "" {
		item, ok := e.pkg.Manifest.ItemByID(e.pkg.Spine.TOC)
		if !ok {
			return fmt.Errorf("epub: spine toc attribute %q does not match any manifest item", e.pkg.Spine.TOC)
		}
		p, err := opfDir.Resolve(unescapeHref(item.Href))
		if err != nil {
			return err
		}
		data, err := e.fs.readFileAt(p)
		if err != nil {
			return fmt.Errorf("epub: ncx %s: %w", p, err)
		}
		ncx, err := readNCX(data, p.String())
		if err != nil {
			return err
		}
		toc.NCX = ncx
		e.ncxPath = p
	}

	// EPUB 3 navigation document, referenced by the nav property.
	if item, ok := e.pkg.Manifest.NavItem(); ok {
		p, err := opfDir.Resolve(unescapeHref(item.Href))
		if err != nil {
			return err
		}
		data, err := e.fs.readFileAt(p)
		if err != nil {
			return fmt.Errorf("epub: nav document %s: %w", p, err)
		}
		nav, err := readNavDocument(data, p.String())
		if err != nil {
			return err
		}
		toc.NavDoc = nav
		e.navPath = p
	}

	// Normalize: the nav document is authoritative for EPUB 3, the NCX
	// for EPUB 2; either may stand in when the other is absent.
	switch {
	case !e.pkg.Format.Legacy() && toc.NavDoc != nil:
		toc.Entries = tocFromNav(toc.NavDoc)
	case toc.NCX != nil:
		toc.Entries = tocFromNCX(toc.NCX)
	case toc.NavDoc != nil:
		toc.Entries = tocFromNav(toc.NavDoc)
	}

	// Validate references relative to the source document's directory.
	baseDir := opfDir
	if toc.NCX != nil && (e.pkg.Format.Legacy() || toc.NavDoc == nil) {
		baseDir = e.ncxPath.Parent()
	} else if toc.NavDoc != nil {
		baseDir = e.navPath.Parent()
	}
	if err := validateTOCEntries(toc.Entries, baseDir, registered); err != nil {
		return err
	}

	e.toc = toc
	return nil
}

// FileSystem returns the publication's virtual filesystem.
func (e *Epub) FileSystem() *FileSystem { return e.fs }

// Package returns the parsed package document model. The model is live:
// mutations are reflected on the next Write.
func (e *Epub) Package() *PackageDocument { return e.pkg }

// Version returns the package version.
func (e *Epub) Version() Version { return e.pkg.Version }

// Format returns the derived specification generation.
func (e *Epub) Format() Format { return e.pkg.Format }

// Metadata returns the package metadata model.
func (e *Epub) Metadata() *Metadata { return &e.pkg.Metadata }

// Manifest returns the package manifest model.
func (e *Epub) Manifest() *Manifest { return &e.pkg.Manifest }

// Spine returns the package spine model.
func (e *Epub) Spine() *Spine { return &e.pkg.Spine }

// Guide returns the legacy guide model, or nil.
func (e *Epub) Guide() *Guide { return e.pkg.Guide }

// Bindings returns the deprecated bindings model, or nil.
func (e *Epub) Bindings() *Bindings { return e.pkg.Bindings }

// Tours returns the deprecated tours model, or nil.
func (e *Epub) Tours() *Tours { return e.pkg.Tours }

// TableOfContents returns the unified navigation view.
func (e *Epub) TableOfContents() *TableOfContents { return e.toc }

// PackageDocumentPath returns the archive path of the OPF.
func (e *Epub) PackageDocumentPath() Path { return e.opfPath }

// Warnings returns the non-fatal problems collected while reading.
func (e *Epub) Warnings() []string { return e.diag.strings() }

// Close releases the publication's resources: the virtual filesystem is
// closed (invalidating all derived paths and resources) and, when the
// Epub was created via Open, the underlying file is closed too.
// Close is idempotent.
func (e *Epub) Close() error {
	e.fs.Close()
	if e.closer != nil {
		err := e.closer.Close()
		e.closer = nil
		return err
	}
	return nil
}
