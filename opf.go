package epub

import (
	"fmt"

	"github.com/beevik/etree"
)

// PackageDocument is the typed model of the OPF package document: the
// root aggregate holding metadata, manifest and spine, plus the optional
// legacy/deprecated guide, bindings and tours sub-models.
type PackageDocument struct {
	Version          Version
	Format           Format
	UniqueIdentifier string // id reference into Metadata.Identifiers
	Direction        Direction
	Lang             string
	Prefixes         []PrefixMapping

	Metadata Metadata
	Manifest Manifest
	Spine    Spine

	Guide    *Guide    // EPUB 2 legacy
	Bindings *Bindings // EPUB 3, deprecated
	Tours    *Tours    // EPUB 2, deprecated
}

// SetVersion changes the package version in place, re-deriving Format.
// Transitions into the rejected or unsupported buckets fail and leave the
// document unchanged.
func (p *PackageDocument) SetVersion(v Version) error {
	f := v.Format()
	if !f.Supported() {
		return fmt.Errorf("epub: cannot change package version to %s (%s)", v, f)
	}
	p.Version = v
	p.Format = f
	return nil
}

// Manifest is the package manifest: the set of publication resources.
// EPUB requires at least one item.
type Manifest struct {
	Items []ManifestItem
}

// ManifestItem is a single manifest item element.
type ManifestItem struct {
	ID           string
	Href         string
	MediaType    string
	Fallback     string // id of the fallback item
	MediaOverlay string // id of the media overlay document
	Properties   Properties
}

// ItemByID returns the item with the given id.
func (m *Manifest) ItemByID(id string) (*ManifestItem, bool) {
	for i := range m.Items {
		if m.Items[i].ID == id {
			return &m.Items[i], true
		}
	}
	return nil, false
}

// ItemByHref returns the item with the given href.
func (m *Manifest) ItemByHref(href string) (*ManifestItem, bool) {
	for i := range m.Items {
		if m.Items[i].Href == href {
			return &m.Items[i], true
		}
	}
	return nil, false
}

// NavItem returns the manifest item carrying the "nav" property (the
// EPUB 3 navigation document), if any.
func (m *Manifest) NavItem() (*ManifestItem, bool) {
	for i := range m.Items {
		if m.Items[i].Properties.Contains("nav") {
			return &m.Items[i], true
		}
	}
	return nil, false
}

// Spine is the package spine: the default reading order. EPUB requires at
// least one itemref.
type Spine struct {
	// TOC is the legacy toc attribute naming the NCX manifest item
	// (EPUB 2; also emitted by EPUB 3 files for compatibility).
	TOC      string
	ItemRefs []ItemRef
}

// ItemRef is a single spine itemref element.
type ItemRef struct {
	IDRef      string
	ID         string
	Linear     bool // defaults to true when the attribute is absent
	Properties Properties
}

// --- reading ---

// readPackageDocument parses OPF bytes into the typed model. docPath is
// the archive path of the document, used in error messages. Mandatory
// sub-elements (metadata, manifest, spine) abort on failure; the optional
// legacy sub-elements degrade to absent and record their failure in diag.
func readPackageDocument(data []byte, docPath string, reg *SchemeRegistry, diag *diagnostics) (*PackageDocument, error) {
	fail := func(err error) (*PackageDocument, error) {
		return nil, &PackageDocumentError{Path: docPath, Err: err}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(stripBOM(data)); err != nil {
		return fail(err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "package" {
		return fail(fmt.Errorf("root element is not <package>"))
	}

	rawVersion, err := reqAttr(root, "version")
	if err != nil {
		return fail(err)
	}
	version, err := ParseVersion(rawVersion)
	if err != nil {
		return fail(err)
	}
	format, err := ResolveFormat(rawVersion)
	if err != nil {
		return fail(err)
	}
	if !format.Supported() {
		return fail(fmt.Errorf("version %s resolves to %s; refusing to parse", version, format))
	}

	p := &PackageDocument{Version: version, Format: format}

	if p.UniqueIdentifier, err = reqAttr(root, "unique-identifier"); err != nil {
		return fail(err)
	}
	if p.Direction, err = optDirection(root); err != nil {
		return fail(err)
	}
	p.Lang, _ = optAttr(root, "xml:lang")
	if prefix, ok := optAttr(root, "prefix"); ok {
		if p.Prefixes, err = ParsePrefixAttribute(prefix); err != nil {
			return fail(err)
		}
	}

	metadataEl, err := reqChild(root, "metadata")
	if err != nil {
		return fail(err)
	}
	if p.Metadata, err = readMetadata(metadataEl, reg, diag); err != nil {
		return fail(err)
	}
	if _, ok := p.Metadata.IdentifierByID(p.UniqueIdentifier); !ok {
		diag.add(fmt.Errorf("epub: unique-identifier %q does not match any dc:identifier id", p.UniqueIdentifier))
	}

	if p.Manifest, err = readManifest(root); err != nil {
		return fail(err)
	}
	if p.Spine, err = readSpine(root); err != nil {
		return fail(err)
	}

	// Version-gated optional sub-elements. A parse failure here degrades
	// to "absent": the container is still usable without them.
	if guideEl := optChild(root, "guide"); guideEl != nil {
		if guide, err := readGuide(guideEl); err != nil {
			diag.add(err)
		} else {
			p.Guide = guide
		}
	}
	if bindingsEl := optChild(root, "bindings"); bindingsEl != nil && !format.Legacy() {
		if bindings, err := readBindings(bindingsEl); err != nil {
			diag.add(err)
		} else {
			p.Bindings = bindings
		}
	}
	if toursEl := optChild(root, "tours"); toursEl != nil && format.Legacy() {
		if tours, err := readTours(toursEl); err != nil {
			diag.add(err)
		} else {
			p.Tours = tours
		}
	}

	return p, nil
}

// readManifest parses the mandatory manifest element, requiring at least
// one item.
func readManifest(root *etree.Element) (Manifest, error) {
	items, err := reqChildren(root, "manifest", "item")
	if err != nil {
		return Manifest{}, err
	}

	var m Manifest
	for _, el := range items {
		item, err := readManifestItem(el)
		if err != nil {
			return Manifest{}, err
		}
		m.Items = append(m.Items, item)
	}
	return m, nil
}

func readManifestItem(el *etree.Element) (ManifestItem, error) {
	var (
		item ManifestItem
		err  error
	)
	if item.ID, err = reqAttr(el, "id"); err != nil {
		return ManifestItem{}, err
	}
	if item.Href, err = reqAttr(el, "href"); err != nil {
		return ManifestItem{}, err
	}
	if err = validateIRI(item.Href); err != nil {
		return ManifestItem{}, err
	}
	if item.MediaType, err = reqAttr(el, "media-type"); err != nil {
		return ManifestItem{}, err
	}
	if err = validateMediaType(item.MediaType); err != nil {
		return ManifestItem{}, err
	}
	item.Fallback, _ = optAttr(el, "fallback")
	item.MediaOverlay, _ = optAttr(el, "media-overlay")
	if props, ok := optAttr(el, "properties"); ok {
		if item.Properties, err = ParsePropertyList(props); err != nil {
			return ManifestItem{}, &InvalidPropertyError{Value: props, Path: elemPath(el), Err: err}
		}
	}
	return item, nil
}

// readSpine parses the mandatory spine element, requiring at least one
// itemref.
func readSpine(root *etree.Element) (Spine, error) {
	refs, err := reqChildren(root, "spine", "itemref")
	if err != nil {
		return Spine{}, err
	}

	var s Spine
	s.TOC, _ = optAttr(optChild(root, "spine"), "toc")

	for _, el := range refs {
		ref, err := readItemRef(el)
		if err != nil {
			return Spine{}, err
		}
		s.ItemRefs = append(s.ItemRefs, ref)
	}
	return s, nil
}

func readItemRef(el *etree.Element) (ItemRef, error) {
	var (
		ref ItemRef
		err error
	)
	if ref.IDRef, err = reqAttr(el, "idref"); err != nil {
		return ItemRef{}, err
	}
	ref.ID, _ = optAttr(el, "id")

	// The linear attribute is a strict yes/no token; absence means yes.
	switch linear, ok := optAttr(el, "linear"); {
	case !ok:
		ref.Linear = true
	case linear == "yes":
		ref.Linear = true
	case linear == "no":
		ref.Linear = false
	default:
		return ItemRef{}, fmt.Errorf("epub: %s: linear attribute must be \"yes\" or \"no\", got %q", elemPath(el), linear)
	}

	if props, ok := optAttr(el, "properties"); ok {
		if ref.Properties, err = ParsePropertyList(props); err != nil {
			return ItemRef{}, &InvalidPropertyError{Value: props, Path: elemPath(el), Err: err}
		}
	}
	return ref, nil
}

// --- writing ---

// serialize renders the package document back to OPF XML.
func (p *PackageDocument) serialize(opts WriteOptions, reg *SchemeRegistry) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("package")
	root.CreateAttr("xmlns", opfNamespace)
	root.CreateAttr("version", p.Version.String())
	root.CreateAttr("unique-identifier", p.UniqueIdentifier)
	setOptAttr(root, "dir", p.Direction.String())
	setOptAttr(root, "xml:lang", p.Lang)
	if len(p.Prefixes) > 0 {
		root.CreateAttr("prefix", FormatPrefixAttribute(p.Prefixes))
	}

	if err := p.Metadata.Validate(); err != nil {
		return nil, err
	}
	if len(p.Manifest.Items) == 0 {
		return nil, &MissingElementError{Name: "item", Path: "/package/manifest"}
	}
	if len(p.Spine.ItemRefs) == 0 {
		return nil, &MissingElementError{Name: "itemref", Path: "/package/spine"}
	}

	if err := writeMetadata(root, &p.Metadata, p.Format, opts, reg); err != nil {
		return nil, err
	}
	writeManifest(root, &p.Manifest)
	writeSpine(root, &p.Spine)

	if p.Guide != nil && (p.Format.Legacy() || !opts.OmitLegacyFeatures) {
		writeGuide(root, p.Guide)
	}
	if p.Bindings != nil && !p.Format.Legacy() && !opts.OmitLegacyFeatures {
		writeBindings(root, p.Bindings)
	}
	if p.Tours != nil && p.Format.Legacy() && !opts.OmitLegacyFeatures {
		writeTours(root, p.Tours)
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func writeManifest(root *etree.Element, m *Manifest) {
	el := root.CreateElement("manifest")
	for _, item := range m.Items {
		itemEl := el.CreateElement("item")
		itemEl.CreateAttr("id", item.ID)
		itemEl.CreateAttr("href", item.Href)
		itemEl.CreateAttr("media-type", item.MediaType)
		setOptAttr(itemEl, "fallback", item.Fallback)
		setOptAttr(itemEl, "media-overlay", item.MediaOverlay)
		if len(item.Properties) > 0 {
			itemEl.CreateAttr("properties", item.Properties.String())
		}
	}
}

func writeSpine(root *etree.Element, s *Spine) {
	el := root.CreateElement("spine")
	setOptAttr(el, "toc", s.TOC)
	for _, ref := range s.ItemRefs {
		refEl := el.CreateElement("itemref")
		refEl.CreateAttr("idref", ref.IDRef)
		setOptAttr(refEl, "id", ref.ID)
		if !ref.Linear {
			refEl.CreateAttr("linear", "no")
		}
		if len(ref.Properties) > 0 {
			refEl.CreateAttr("properties", ref.Properties.String())
		}
	}
}
