package epub

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Well-known archive paths. The layout is fixed by the OCF specification,
// not configurable.
const (
	mimetypePath  = "mimetype"
	metaInfDir    = "META-INF"
	containerPath = "META-INF/container.xml"

	// expectedMimetype is the exact required content of the mimetype file.
	expectedMimetype = "application/epub+zip"

	// packageMediaType is the media type of the OPF rootfile entry.
	packageMediaType = "application/oebps-package+xml"

	containerNamespace = "urn:oasis:names:tc:opendocument:xmlns:container"
)

// Container models META-INF/container.xml, which names the package
// document's location. The package document path is authoritative from
// here and never assumed.
type Container struct {
	Version   string
	RootFiles []RootFile
}

// RootFile is one rootfile entry of the container.
type RootFile struct {
	FullPath  string
	MediaType string
}

// PackageDocumentPath returns the full path of the first rootfile with
// the OPF media type, falling back to the first entry with a path.
func (c *Container) PackageDocumentPath() (string, bool) {
	var fallback string
	for _, rf := range c.RootFiles {
		full := strings.TrimSpace(rf.FullPath)
		if full == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.MediaType), packageMediaType) {
			return full, true
		}
		if fallback == "" {
			fallback = full
		}
	}
	return fallback, fallback != ""
}

// readContainer parses container.xml bytes. The rootfiles wrapper and at
// least one rootfile are required; each rootfile needs a full-path and
// media-type attribute.
func readContainer(data []byte) (*Container, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(stripBOM(data)); err != nil {
		return nil, fmt.Errorf("epub: parse container.xml: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "container" {
		return nil, fmt.Errorf("epub: container.xml: root element is not <container>: %w", ErrInvalidEPub)
	}

	c := &Container{}
	c.Version, _ = optAttr(root, "version")

	entries, err := reqChildren(root, "rootfiles", "rootfile")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingRootfile, err)
	}

	for _, el := range entries {
		fullPath, err := reqAttr(el, "full-path")
		if err != nil {
			return nil, err
		}
		mediaType, err := reqAttr(el, "media-type")
		if err != nil {
			return nil, err
		}
		if err := validateMediaType(mediaType); err != nil {
			return nil, err
		}
		c.RootFiles = append(c.RootFiles, RootFile{FullPath: fullPath, MediaType: mediaType})
	}

	return c, nil
}

// serialize renders the container document.
func (c *Container) serialize() ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("container")
	root.CreateAttr("xmlns", containerNamespace)
	version := c.Version
	if version == "" {
		version = "1.0"
	}
	root.CreateAttr("version", version)

	var entries []*etree.Element
	for _, rf := range c.RootFiles {
		el := etree.NewElement("rootfile")
		el.CreateAttr("full-path", rf.FullPath)
		el.CreateAttr("media-type", rf.MediaType)
		entries = append(entries, el)
	}
	addChildrenWithWrapper(root, "rootfiles", entries)

	doc.Indent(2)
	return doc.WriteToBytes()
}

// newContainer builds a container naming one package document.
func newContainer(opfPath string) *Container {
	return &Container{
		Version: "1.0",
		RootFiles: []RootFile{
			{FullPath: opfPath, MediaType: packageMediaType},
		},
	}
}
