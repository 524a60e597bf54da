package epub

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the epub package.
var (
	// ErrInvalidEPub indicates the file is not a valid ePub container
	// (e.g., missing META-INF/container.xml or no rootfile entry).
	ErrInvalidEPub = errors.New("epub: invalid ePub file")

	// ErrMissingMimetype indicates the archive has no "mimetype" entry.
	ErrMissingMimetype = errors.New("epub: missing mimetype entry")

	// ErrMimetypeMismatch indicates the "mimetype" entry does not contain
	// exactly "application/epub+zip".
	ErrMimetypeMismatch = errors.New("epub: mimetype content mismatch")

	// ErrMissingContainer indicates META-INF/container.xml is absent.
	ErrMissingContainer = errors.New("epub: missing META-INF/container.xml")

	// ErrMissingRootfile indicates container.xml has no usable rootfile entry.
	ErrMissingRootfile = errors.New("epub: no rootfile entry in container.xml")

	// ErrMissingOPF indicates the package document named by container.xml
	// does not exist in the archive.
	ErrMissingOPF = errors.New("epub: package document not found in archive")

	// ErrFileNotFound indicates the requested file does not exist
	// in the ePub filesystem.
	ErrFileNotFound = errors.New("epub: file not found in archive")

	// ErrFilesystemClosed indicates an operation on a FileSystem (or on a
	// Path/Resource derived from it) after Close was called.
	ErrFilesystemClosed = errors.New("epub: filesystem is closed")

	// ErrNotPermitted indicates an operation the resource's capability set
	// does not allow, e.g. deleting a protected system file.
	ErrNotPermitted = errors.New("epub: operation not permitted for this resource")
)

// FileErrorKind classifies the I/O failures surfaced by filesystem operations.
type FileErrorKind int

const (
	// FileErrUnknown covers I/O failures with no more specific kind.
	FileErrUnknown FileErrorKind = iota
	// FileErrNoSuchFile indicates the path does not exist.
	FileErrNoSuchFile
	// FileErrAlreadyExists indicates the target path already exists.
	FileErrAlreadyExists
	// FileErrDirectoryNotEmpty indicates a directory could not be removed
	// or replaced because it still has entries.
	FileErrDirectoryNotEmpty
	// FileErrNotDirectory indicates a file was found where a directory
	// was required (or vice versa for recursive operations).
	FileErrNotDirectory
	// FileErrNotPermitted indicates the resource's capability set forbids
	// the attempted operation.
	FileErrNotPermitted
)

// String returns a short name for the kind.
func (k FileErrorKind) String() string {
	switch k {
	case FileErrNoSuchFile:
		return "no such file"
	case FileErrAlreadyExists:
		return "file already exists"
	case FileErrDirectoryNotEmpty:
		return "directory not empty"
	case FileErrNotDirectory:
		return "not a directory"
	case FileErrNotPermitted:
		return "not permitted"
	default:
		return "unknown I/O error"
	}
}

// FileError is the shared taxonomy for filesystem operation failures.
// Callers pattern-match on Kind once instead of inspecting free-form
// error strings.
type FileError struct {
	Kind FileErrorKind
	Op   string // operation name, e.g. "delete", "moveTo"
	Path string // archive-internal path the operation failed on
	Err  error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *FileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("epub: %s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("epub: %s %s: %s", e.Op, e.Path, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *FileError) Unwrap() error { return e.Err }

// Is reports whether target matches this error. A FileError with kind
// FileErrNotPermitted matches ErrNotPermitted, and one with kind
// FileErrNoSuchFile matches ErrFileNotFound, so callers can use errors.Is
// with the package sentinels.
func (e *FileError) Is(target error) bool {
	switch target {
	case ErrNotPermitted:
		return e.Kind == FileErrNotPermitted
	case ErrFileNotFound:
		return e.Kind == FileErrNoSuchFile
	}
	return false
}

// fileErr builds a *FileError for op at path.
func fileErr(kind FileErrorKind, op, path string, err error) *FileError {
	return &FileError{Kind: kind, Op: op, Path: path, Err: err}
}

// --- XML document read errors ---

// MissingElementError reports a required child element that was absent.
type MissingElementError struct {
	Name string // expected element name
	Path string // absolute locator of the parent, e.g. "/package/manifest"
}

func (e *MissingElementError) Error() string {
	return fmt.Sprintf("epub: missing element %q in %s", e.Name, e.Path)
}

// MissingAttributeError reports a required attribute that was absent.
type MissingAttributeError struct {
	Name string // expected attribute name
	Path string // absolute locator of the owning element
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("epub: missing attribute %q on %s", e.Name, e.Path)
}

// MissingTextError reports an element that was expected to carry text
// content but was empty.
type MissingTextError struct {
	Path string
}

func (e *MissingTextError) Error() string {
	return fmt.Sprintf("epub: missing text content in %s", e.Path)
}

// UnknownReadingDirectionError reports a dir attribute value other than
// "ltr" or "rtl".
type UnknownReadingDirectionError struct {
	Value string
}

func (e *UnknownReadingDirectionError) Error() string {
	return fmt.Sprintf("epub: unknown reading direction %q", e.Value)
}

// InvalidIRIError reports an attribute value that could not be parsed
// as an IRI reference.
type InvalidIRIError struct {
	Value string
	Err   error
}

func (e *InvalidIRIError) Error() string {
	return fmt.Sprintf("epub: invalid IRI %q: %v", e.Value, e.Err)
}

func (e *InvalidIRIError) Unwrap() error { return e.Err }

// InvalidMediaTypeError reports a media-type attribute that failed to parse.
type InvalidMediaTypeError struct {
	Value string
}

func (e *InvalidMediaTypeError) Error() string {
	return fmt.Sprintf("epub: invalid media type %q", e.Value)
}

// InvalidPropertyError reports a property attribute (a compact
// "prefix:reference" name) that failed to parse.
type InvalidPropertyError struct {
	Value string
	Path  string
	Err   error
}

func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("epub: invalid property %q at %s: %v", e.Value, e.Path, e.Err)
}

func (e *InvalidPropertyError) Unwrap() error { return e.Err }

// PackageDocumentError wraps a failure while reading a mandatory part of
// the OPF package document.
type PackageDocumentError struct {
	Path string // archive path of the package document
	Err  error
}

func (e *PackageDocumentError) Error() string {
	return fmt.Sprintf("epub: package document %s: %v", e.Path, e.Err)
}

func (e *PackageDocumentError) Unwrap() error { return e.Err }

// Metadata read errors. EPUB requires at least one identifier, title and
// language; an empty list after filtering is a hard failure.
var (
	ErrMissingIdentifier = errors.New("epub: metadata has no dc:identifier")
	ErrMissingTitle      = errors.New("epub: metadata has no dc:title")
	ErrMissingLanguage   = errors.New("epub: metadata has no dc:language")
)
