// Package epub models ePub publications as mutable object graphs: a
// virtual filesystem of typed, permission-tagged resources plus fully
// parsed package document and navigation models, with round-trip
// serialization back to a conforming OCF container.
//
// # Opening an ePub
//
// Use [Open] to open a file by path, or [NewReader] to read from an
// [io.ReaderAt]:
//
//	book, err := epub.Open("book.epub")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer book.Close()
//
// Opening validates the mimetype entry, the META-INF/container.xml and
// the package document, and rejects withdrawn (3.1) and unsupported
// (4.x and later) versions. [Options.LenientMimetype] downgrades
// mimetype problems to warnings; other structural defects that can be
// tolerated are collected and reported via [Epub.Warnings].
//
// # Filesystem and resources
//
// [Epub.FileSystem] exposes the archive as an in-memory tree addressed
// by [Path] values. [FileSystem.Classify] tags each path with a [Kind]
// and a [Capability] set: the mimetype entry, the package document and
// the reserved META-INF files refuse deletion, renaming and raw writes,
// while manifest-registered resources allow modification but not raw
// byte access. [Resource] wraps a path with those checks applied, and
// [FileSystem.Walk] drives [Visitor] implementations over subtrees for
// recursive copy, move, delete and size computation.
//
// # Package document
//
// [Epub.Package] returns the live OPF model: Dublin Core metadata with
// OPF 2 and OPF 3 meta forms and refinement chains, the manifest, the
// spine, and the legacy guide, bindings and tours sub-models. Mutations
// to the model are reflected on the next [Epub.Write].
//
// # Navigation
//
// [Epub.TableOfContents] returns a unified view over the EPUB 2 NCX and
// the EPUB 3 navigation document, whichever the file carries; leaf
// references are validated against the manifest at open time.
//
// # Writing
//
// [Epub.Write] serializes the models back into the filesystem and emits
// an OCF zip with the mimetype entry first and uncompressed. [Epub.Save]
// writes to a file path. [WriteOptions.OmitLegacyFeatures] drops EPUB 2
// compatibility constructs from pure-EPUB 3 output.
//
// # Error handling
//
// The package defines sentinel errors for common failure cases:
//   - [ErrDRMProtected] – the file is DRM encrypted
//   - [ErrInvalidEPub] – structural validation failed
//   - [ErrMissingMimetype], [ErrMimetypeMismatch] – mimetype defects
//   - [ErrMissingContainer], [ErrMissingRootfile], [ErrMissingOPF] –
//     container resolution failures
//   - [ErrFileNotFound] – a path names nothing in the archive
//   - [ErrNotPermitted] – an operation a resource's capabilities forbid
//   - [ErrFilesystemClosed] – use of a path after [FileSystem.Close]
//
// Filesystem operations return [FileError] values carrying an operation,
// a path and a [FileErrorKind]; XML defects surface as structured errors
// such as [MissingElementError] naming the element path in the document.
package epub
