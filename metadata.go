package epub

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Namespace URIs used by the package document.
const (
	dcNamespace  = "http://purl.org/dc/elements/1.1/"
	opfNamespace = "http://www.idpf.org/2007/opf"
)

// DCKind identifies a Dublin Core element by its local name.
type DCKind int

const (
	DCIdentifier DCKind = iota
	DCTitle
	DCLanguage
	DCContributor
	DCCreator
	DCCoverage
	DCDate
	DCDescription
	DCFormat
	DCPublisher
	DCRelation
	DCRights
	DCSource
	DCSubject
	DCType
)

// dcInfo describes one Dublin Core element kind: its local name and
// whether it belongs to the localized subset (dir/xml:lang attributes).
type dcInfo struct {
	local     string
	localized bool
}

var dcKinds = map[DCKind]dcInfo{
	DCIdentifier:  {"identifier", false},
	DCTitle:       {"title", true},
	DCLanguage:    {"language", false},
	DCContributor: {"contributor", true},
	DCCreator:     {"creator", true},
	DCCoverage:    {"coverage", true},
	DCDate:        {"date", false},
	DCDescription: {"description", true},
	DCFormat:      {"format", false},
	DCPublisher:   {"publisher", true},
	DCRelation:    {"relation", true},
	DCRights:      {"rights", true},
	DCSource:      {"source", false},
	DCSubject:     {"subject", true},
	DCType:        {"type", false},
}

// dcKindByLocal maps a Dublin Core local element name to its kind.
var dcKindByLocal = func() map[string]DCKind {
	m := make(map[string]DCKind, len(dcKinds))
	for k, info := range dcKinds {
		m[info.local] = k
	}
	return m
}()

// LocalName returns the element's local name, e.g. "creator".
func (k DCKind) LocalName() string { return dcKinds[k].local }

// Localized reports whether elements of this kind may carry dir and
// xml:lang attributes.
func (k DCKind) Localized() bool { return dcKinds[k].localized }

// DublinCore is a single Dublin Core metadata element. Kind selects the
// element; the localized subset additionally carries Dir and Lang, and
// creator/contributor elements may carry the EPUB 2 opf:role and
// opf:file-as attribute forms.
type DublinCore struct {
	Kind  DCKind
	Value string
	ID    string

	// Localized subset only.
	Dir  Direction
	Lang string // BCP 47 tag, validated on read

	// EPUB 2 attribute forms.
	Role   CreativeRole // opf:role on creator/contributor
	FileAs string       // opf:file-as
	Scheme string       // opf:scheme on identifier
}

// NewUniqueIdentifier returns a fresh urn:uuid dc:identifier, suitable as
// a package unique-identifier for newly created or repaired metadata.
func NewUniqueIdentifier() DublinCore {
	return DublinCore{
		Kind:  DCIdentifier,
		ID:    "uid",
		Value: "urn:uuid:" + uuid.NewString(),
	}
}

// CreativeRole is a MARC relator code naming a contributor's role, e.g.
// "aut" (author) or "ill" (illustrator).
type CreativeRole struct {
	Code string
	Name string // human-readable name, "" for unrecognized codes
}

// IsZero reports whether the role is unset.
func (r CreativeRole) IsZero() bool { return r.Code == "" }

// marcRelators maps the commonly encountered MARC relator codes to their
// names. Unrecognized codes are preserved with an empty name.
var marcRelators = map[string]string{
	"adp": "Adapter",
	"ann": "Annotator",
	"arr": "Arranger",
	"art": "Artist",
	"aut": "Author",
	"clr": "Colorist",
	"cmm": "Commentator",
	"dsr": "Designer",
	"edt": "Editor",
	"ill": "Illustrator",
	"nrt": "Narrator",
	"pbl": "Publisher",
	"pht": "Photographer",
	"prt": "Printer",
	"trl": "Translator",
}

// CreativeRoleFromCode builds a CreativeRole from a MARC relator code.
func CreativeRoleFromCode(code string) CreativeRole {
	return CreativeRole{Code: code, Name: marcRelators[code]}
}

// --- OPF 3 meta value types and scheme registry ---

// MetaValue is the decoded value of an OPF 3 meta element. The concrete
// type depends on the element's scheme: unregistered schemes fall through
// to StringMetaValue, registered schemes decode to a typed value.
type MetaValue interface {
	// MetaString returns the serialized attribute/text form of the value.
	MetaString() string
}

// StringMetaValue is the generic representation for values whose scheme
// is absent or unregistered.
type StringMetaValue string

// MetaString returns the raw string.
func (v StringMetaValue) MetaString() string { return string(v) }

// RoleMetaValue is the typed value decoded for the marc:relators scheme.
type RoleMetaValue struct {
	Role CreativeRole
}

// MetaString returns the MARC relator code.
func (v RoleMetaValue) MetaString() string { return v.Role.Code }

// MetaCodec decodes and encodes meta values for one scheme.
type MetaCodec struct {
	Decode func(raw string) (MetaValue, error)
	Encode func(v MetaValue) (string, error)
}

// SchemeRegistry maps canonical scheme property keys (e.g.
// "marc:relators") to their codecs. The registry is open: new schemes can
// be registered without touching the read/write loop.
type SchemeRegistry struct {
	codecs map[string]MetaCodec
}

// NewSchemeRegistry returns a registry with the built-in schemes
// (currently marc:relators) registered.
func NewSchemeRegistry() *SchemeRegistry {
	r := &SchemeRegistry{codecs: make(map[string]MetaCodec)}
	r.Register("marc:relators", MetaCodec{
		Decode: func(raw string) (MetaValue, error) {
			return RoleMetaValue{Role: CreativeRoleFromCode(raw)}, nil
		},
		Encode: func(v MetaValue) (string, error) {
			rv, ok := v.(RoleMetaValue)
			if !ok {
				return "", fmt.Errorf("marc:relators: unexpected value type %T", v)
			}
			return rv.Role.Code, nil
		},
	})
	return r
}

// Register adds or replaces the codec for a scheme key.
func (r *SchemeRegistry) Register(scheme string, codec MetaCodec) {
	r.codecs[scheme] = codec
}

// Lookup returns the codec registered for a scheme key.
func (r *SchemeRegistry) Lookup(scheme string) (MetaCodec, bool) {
	c, ok := r.codecs[scheme]
	return c, ok
}

// Meta3 is an OPF 3 shaped meta element (property/value form). A meta
// whose Refines names another element's fragment identifier is a
// refinement and is re-grouped under its target when serializing.
type Meta3 struct {
	Property Property
	Value    MetaValue
	Scheme   Property // zero when no scheme attribute was present
	Refines  string   // relative IRI, usually "#some-id"
	ID       string
	Dir      Direction
	Lang     string
}

// NewStringMeta3 constructs a string-valued OPF 3 meta. Constructing one
// with a scheme the registry recognizes is an error: recognized schemes
// must go through their typed decoder, never be re-wrapped as strings.
func NewStringMeta3(reg *SchemeRegistry, property, scheme Property, value string) (Meta3, error) {
	if !scheme.IsZero() {
		if _, known := reg.Lookup(scheme.String()); known {
			return Meta3{}, fmt.Errorf("epub: scheme %q has a registered decoder; a string-valued meta would bypass it", scheme)
		}
	}
	return Meta3{Property: property, Scheme: scheme, Value: StringMetaValue(value)}, nil
}

// refinesFragment returns the fragment identifier Refines points at, or
// "" when the meta refines nothing (or points outside the document).
func (m Meta3) refinesFragment() string {
	if strings.HasPrefix(m.Refines, "#") {
		return m.Refines[1:]
	}
	return ""
}

// Meta2 is an OPF 2 shaped meta element. Exactly one of the three forms
// is populated: name/content, charset, or http-equiv/content. Extra
// attributes are preserved verbatim for round-trip fidelity.
type Meta2 struct {
	Name      string
	Content   string
	Charset   string
	HTTPEquiv string
	Extra     []etree.Attr
}

// Link is a metadata link element.
type Link struct {
	Href       string
	Rel        Properties
	MediaType  string
	ID         string
	Properties Properties
	Refines    string
}

// Metadata is the package document's metadata section. Identifiers,
// Titles and Languages are required to be non-empty; the remaining
// Dublin Core elements are kept in document order in DublinCore.
type Metadata struct {
	Identifiers []DublinCore
	Titles      []DublinCore
	Languages   []DublinCore
	DublinCore  []DublinCore

	OPF2Metas []Meta2
	OPF3Metas []Meta3
	Links     []Link
}

// PrimaryTitle returns the first title's value.
func (m *Metadata) PrimaryTitle() string {
	if len(m.Titles) == 0 {
		return ""
	}
	return m.Titles[0].Value
}

// PrimaryIdentifier returns the first identifier's value.
func (m *Metadata) PrimaryIdentifier() string {
	if len(m.Identifiers) == 0 {
		return ""
	}
	return m.Identifiers[0].Value
}

// IdentifierByID returns the identifier whose xml id matches, used to
// resolve the package unique-identifier reference.
func (m *Metadata) IdentifierByID(id string) (DublinCore, bool) {
	for _, dc := range m.Identifiers {
		if dc.ID == id {
			return dc, true
		}
	}
	return DublinCore{}, false
}

// Validate checks the non-empty invariants.
func (m *Metadata) Validate() error {
	switch {
	case len(m.Identifiers) == 0:
		return ErrMissingIdentifier
	case len(m.Titles) == 0:
		return ErrMissingTitle
	case len(m.Languages) == 0:
		return ErrMissingLanguage
	}
	return nil
}

// --- reading ---

// isDCElement reports whether el is in the Dublin Core namespace.
func isDCElement(el *etree.Element) bool {
	return el.NamespaceURI() == dcNamespace || el.Space == "dc"
}

// isOPF3Meta is the shape oracle for meta elements: an element is OPF 3
// shaped iff it has a property attribute and non-empty own text. Real
// files mix shapes regardless of the declared version, so the file
// version alone does not decide.
func isOPF3Meta(el *etree.Element) bool {
	_, hasProperty := optAttr(el, "property")
	return hasProperty && ownText(el) != ""
}

// readMetadata parses a metadata element into the typed model. Mandatory
// failures (no identifier/title/language left after filtering) abort;
// failures on individual meta/link elements degrade to "skipped" and are
// recorded in diag.
func readMetadata(el *etree.Element, reg *SchemeRegistry, diag *diagnostics) (Metadata, error) {
	var md Metadata

	for _, child := range el.ChildElements() {
		switch {
		case isDCElement(child):
			dc, err := readDublinCore(child)
			if err != nil {
				// A malformed optional DC element degrades to absent;
				// the mandatory-list checks below still apply.
				diag.add(err)
				continue
			}
			switch dc.Kind {
			case DCIdentifier:
				md.Identifiers = append(md.Identifiers, dc)
			case DCTitle:
				md.Titles = append(md.Titles, dc)
			case DCLanguage:
				md.Languages = append(md.Languages, dc)
			default:
				md.DublinCore = append(md.DublinCore, dc)
			}

		case child.Tag == "meta":
			if isOPF3Meta(child) {
				m, err := readMeta3(child, reg)
				if err != nil {
					diag.add(err)
					continue
				}
				md.OPF3Metas = append(md.OPF3Metas, m)
			} else {
				md.OPF2Metas = append(md.OPF2Metas, readMeta2(child))
			}

		case child.Tag == "link":
			l, err := readLink(child)
			if err != nil {
				diag.add(err)
				continue
			}
			md.Links = append(md.Links, l)
		}
	}

	if err := md.Validate(); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

// readDublinCore dispatches on the element's local name, not its
// position, to the correct typed variant.
func readDublinCore(el *etree.Element) (DublinCore, error) {
	kind, ok := dcKindByLocal[el.Tag]
	if !ok {
		return DublinCore{}, &MissingElementError{Name: el.Tag, Path: elemPath(el)}
	}

	value, err := reqText(el)
	if err != nil {
		return DublinCore{}, err
	}

	dc := DublinCore{Kind: kind, Value: value}
	dc.ID, _ = optAttr(el, "id")

	if kind.Localized() {
		if dc.Dir, err = optDirection(el); err != nil {
			return DublinCore{}, err
		}
		if lang, ok := optAttr(el, "xml:lang"); ok {
			if _, err := language.Parse(lang); err != nil {
				return DublinCore{}, fmt.Errorf("epub: %s: invalid xml:lang %q: %w", elemPath(el), lang, err)
			}
			dc.Lang = lang
		}
	}

	// EPUB 2 attribute forms.
	if role, ok := optAttr(el, "opf:role"); ok {
		dc.Role = CreativeRoleFromCode(role)
	}
	if fileAs, ok := optAttr(el, "opf:file-as"); ok {
		dc.FileAs = fileAs
	}
	if scheme, ok := optAttr(el, "opf:scheme"); ok {
		dc.Scheme = scheme
	}

	return dc, nil
}

// readMeta3 parses an OPF 3 shaped meta element, decoding its value
// through the scheme registry.
func readMeta3(el *etree.Element, reg *SchemeRegistry) (Meta3, error) {
	rawProp, _ := optAttr(el, "property")
	prop, err := ParseProperty(rawProp)
	if err != nil {
		return Meta3{}, &InvalidPropertyError{Value: rawProp, Path: elemPath(el), Err: err}
	}

	value, err := reqText(el)
	if err != nil {
		return Meta3{}, err
	}

	m := Meta3{Property: prop}
	m.ID, _ = optAttr(el, "id")
	if m.Dir, err = optDirection(el); err != nil {
		return Meta3{}, err
	}
	m.Lang, _ = optAttr(el, "xml:lang")

	if refines, ok := optAttr(el, "refines"); ok {
		if err := validateIRI(refines); err != nil {
			return Meta3{}, err
		}
		m.Refines = refines
	}

	if rawScheme, ok := optAttr(el, "scheme"); ok {
		scheme, err := ParseProperty(rawScheme)
		if err != nil {
			return Meta3{}, &InvalidPropertyError{Value: rawScheme, Path: elemPath(el), Err: err}
		}
		m.Scheme = scheme
	}

	if codec, known := reg.Lookup(m.Scheme.String()); known && !m.Scheme.IsZero() {
		decoded, err := codec.Decode(value)
		if err != nil {
			return Meta3{}, fmt.Errorf("epub: %s: decode scheme %s: %w", elemPath(el), m.Scheme, err)
		}
		m.Value = decoded
	} else {
		m.Value = StringMetaValue(value)
	}

	return m, nil
}

// meta2KnownAttrs are the attribute keys with dedicated Meta2 fields;
// everything else lands in Extra.
var meta2KnownAttrs = map[string]struct{}{
	"name": {}, "content": {}, "charset": {}, "http-equiv": {},
}

// readMeta2 parses an OPF 2 shaped meta element, preserving unrecognized
// attributes verbatim.
func readMeta2(el *etree.Element) Meta2 {
	var m Meta2
	m.Name, _ = optAttr(el, "name")
	m.Content, _ = optAttr(el, "content")
	m.Charset, _ = optAttr(el, "charset")
	m.HTTPEquiv, _ = optAttr(el, "http-equiv")

	for _, a := range el.Attr {
		if _, known := meta2KnownAttrs[a.Key]; known && a.Space == "" {
			continue
		}
		m.Extra = append(m.Extra, a)
	}
	return m
}

// readLink parses a metadata link element.
func readLink(el *etree.Element) (Link, error) {
	href, err := reqAttr(el, "href")
	if err != nil {
		return Link{}, err
	}
	if err := validateIRI(href); err != nil {
		return Link{}, err
	}

	l := Link{Href: href}
	l.ID, _ = optAttr(el, "id")
	l.Refines, _ = optAttr(el, "refines")

	if rel, ok := optAttr(el, "rel"); ok {
		if l.Rel, err = ParsePropertyList(rel); err != nil {
			return Link{}, &InvalidPropertyError{Value: rel, Path: elemPath(el), Err: err}
		}
	}
	if props, ok := optAttr(el, "properties"); ok {
		if l.Properties, err = ParsePropertyList(props); err != nil {
			return Link{}, &InvalidPropertyError{Value: props, Path: elemPath(el), Err: err}
		}
	}
	if mt, ok := optAttr(el, "media-type"); ok {
		if err := validateMediaType(mt); err != nil {
			return Link{}, err
		}
		l.MediaType = mt
	}

	return l, nil
}

// --- writing ---

// writeMetadata serializes the metadata model under parent, re-grouping
// OPF 3 refinements behind the elements they refine.
func writeMetadata(parent *etree.Element, md *Metadata, format Format, opts WriteOptions, reg *SchemeRegistry) error {
	el := parent.CreateElement("metadata")
	el.CreateAttr("xmlns:dc", dcNamespace)
	if format.Legacy() || len(md.OPF2Metas) > 0 {
		el.CreateAttr("xmlns:opf", opfNamespace)
	}

	rw := newRefinementWriter(md.OPF3Metas, reg)

	write := func(dcs []DublinCore) {
		for _, dc := range dcs {
			dcEl := writeDublinCore(el, dc, format, opts)
			rw.writeRefinementsOf(el, attrValue(dcEl, "id"))
		}
	}
	write(md.Identifiers)
	write(md.Titles)
	write(md.Languages)
	write(md.DublinCore)

	// Non-refining metas, each followed by its own refinement chain.
	for i := range md.OPF3Metas {
		m := &md.OPF3Metas[i]
		if m.refinesFragment() != "" {
			continue
		}
		if err := rw.writeMeta(el, m); err != nil {
			return err
		}
	}

	// Legacy flat metas, unless configured off for pure-EPUB3 output.
	if !(opts.OmitLegacyFeatures && !format.Legacy()) {
		for _, m := range md.OPF2Metas {
			writeMeta2(el, m)
		}
	}

	for _, l := range md.Links {
		writeLink(el, l)
		rw.writeRefinementsOf(el, l.ID)
	}

	// Refinements whose target was never written are still emitted,
	// flattened at the end, never silently dropped.
	if err := rw.writeOrphans(el); err != nil {
		return err
	}
	return nil
}

func attrValue(el *etree.Element, key string) string {
	v, _ := optAttr(el, key)
	return v
}

// writeDublinCore serializes one Dublin Core element.
func writeDublinCore(parent *etree.Element, dc DublinCore, format Format, opts WriteOptions) *etree.Element {
	el := parent.CreateElement("dc:" + dc.Kind.LocalName())
	setOptAttr(el, "id", dc.ID)
	if dc.Kind.Localized() {
		setOptAttr(el, "dir", dc.Dir.String())
		setOptAttr(el, "xml:lang", dc.Lang)
	}

	// The opf: attribute forms are an EPUB 2 construct.
	if format.Legacy() || !opts.OmitLegacyFeatures {
		if !dc.Role.IsZero() {
			el.CreateAttr("opf:role", dc.Role.Code)
		}
		setOptAttr(el, "opf:file-as", dc.FileAs)
		setOptAttr(el, "opf:scheme", dc.Scheme)
	}

	el.SetText(dc.Value)
	return el
}

// refinementWriter emits OPF 3 metas grouped by refinement target.
type refinementWriter struct {
	byTarget map[string][]*Meta3
	reg      *SchemeRegistry
	written  map[*Meta3]bool
}

func newRefinementWriter(metas []Meta3, reg *SchemeRegistry) *refinementWriter {
	rw := &refinementWriter{
		byTarget: make(map[string][]*Meta3),
		reg:      reg,
		written:  make(map[*Meta3]bool),
	}
	for i := range metas {
		m := &metas[i]
		if frag := m.refinesFragment(); frag != "" {
			rw.byTarget[frag] = append(rw.byTarget[frag], m)
		}
	}
	return rw
}

// writeMeta emits one meta element followed by anything refining it, so
// refinement-of-a-refinement chains nest to arbitrary depth.
func (rw *refinementWriter) writeMeta(parent *etree.Element, m *Meta3) error {
	if rw.written[m] {
		return nil
	}
	rw.written[m] = true

	el := parent.CreateElement("meta")
	el.CreateAttr("property", m.Property.String())
	setOptAttr(el, "refines", m.Refines)
	setOptAttr(el, "id", m.ID)
	setOptAttr(el, "dir", m.Dir.String())
	setOptAttr(el, "xml:lang", m.Lang)
	if !m.Scheme.IsZero() {
		el.CreateAttr("scheme", m.Scheme.String())
	}

	text := m.Value.MetaString()
	if codec, known := rw.reg.Lookup(m.Scheme.String()); known && !m.Scheme.IsZero() {
		encoded, err := codec.Encode(m.Value)
		if err != nil {
			return fmt.Errorf("epub: encode meta %s: %w", m.Property, err)
		}
		text = encoded
	}
	el.SetText(text)

	return rw.writeRefinementsOf(parent, m.ID)
}

// writeRefinementsOf emits, in document order, every meta refining the
// element with the given id, immediately after it.
func (rw *refinementWriter) writeRefinementsOf(parent *etree.Element, id string) error {
	if id == "" {
		return nil
	}
	for _, m := range rw.byTarget[id] {
		if err := rw.writeMeta(parent, m); err != nil {
			return err
		}
	}
	return nil
}

// writeOrphans flattens refinements whose target was not found among the
// written elements to the end of the metadata section.
func (rw *refinementWriter) writeOrphans(parent *etree.Element) error {
	targets := make([]string, 0, len(rw.byTarget))
	for t := range rw.byTarget {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	for _, t := range targets {
		for _, m := range rw.byTarget[t] {
			if err := rw.writeMeta(parent, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeMeta2 serializes an OPF 2 shaped meta using the flat legacy form.
func writeMeta2(parent *etree.Element, m Meta2) {
	el := parent.CreateElement("meta")
	setOptAttr(el, "name", m.Name)
	setOptAttr(el, "content", m.Content)
	setOptAttr(el, "charset", m.Charset)
	setOptAttr(el, "http-equiv", m.HTTPEquiv)
	for _, a := range m.Extra {
		if a.Space != "" {
			el.CreateAttr(a.Space+":"+a.Key, a.Value)
		} else {
			el.CreateAttr(a.Key, a.Value)
		}
	}
}

// writeLink serializes a metadata link element.
func writeLink(parent *etree.Element, l Link) {
	el := parent.CreateElement("link")
	el.CreateAttr("href", l.Href)
	if len(l.Rel) > 0 {
		el.CreateAttr("rel", l.Rel.String())
	}
	setOptAttr(el, "id", l.ID)
	setOptAttr(el, "media-type", l.MediaType)
	if len(l.Properties) > 0 {
		el.CreateAttr("properties", l.Properties.String())
	}
	setOptAttr(el, "refines", l.Refines)
}

// diagnostics accumulates non-fatal read problems. Parsing degrades
// optional sub-elements to absent instead of failing the whole load; the
// collected errors surface through Epub.Warnings.
type diagnostics struct {
	errs []error
}

func (d *diagnostics) add(err error) {
	if err != nil {
		d.errs = append(d.errs, err)
	}
}

func (d *diagnostics) strings() []string {
	out := make([]string, 0, len(d.errs))
	for _, err := range d.errs {
		out = append(out, err.Error())
	}
	return out
}
