package epub

import (
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// GuideReferenceType is one of the canonical guide reference types from
// the EPUB 2 specification.
type GuideReferenceType int

const (
	GuideCover GuideReferenceType = iota
	GuideTitlePage
	GuideTableOfContents
	GuideIndex
	GuideGlossary
	GuideAcknowledgements
	GuideBibliography
	GuideColophon
	GuideCopyrightPage
	GuideDedication
	GuideEpigraph
	GuideForeword
	GuideListOfIllustrations
	GuideListOfTables
	GuideNotes
	GuidePreface
	GuideText
)

// guideTypeNames maps canonical types to their attribute values.
var guideTypeNames = map[GuideReferenceType]string{
	GuideCover:               "cover",
	GuideTitlePage:           "title-page",
	GuideTableOfContents:     "toc",
	GuideIndex:               "index",
	GuideGlossary:            "glossary",
	GuideAcknowledgements:    "acknowledgements",
	GuideBibliography:        "bibliography",
	GuideColophon:            "colophon",
	GuideCopyrightPage:       "copyright-page",
	GuideDedication:          "dedication",
	GuideEpigraph:            "epigraph",
	GuideForeword:            "foreword",
	GuideListOfIllustrations: "loi",
	GuideListOfTables:        "lot",
	GuideNotes:               "notes",
	GuidePreface:             "preface",
	GuideText:                "text",
}

var guideTypeByName = func() map[string]GuideReferenceType {
	m := make(map[string]GuideReferenceType, len(guideTypeNames))
	for t, n := range guideTypeNames {
		m[n] = t
	}
	return m
}()

// String returns the canonical attribute value for the type.
func (t GuideReferenceType) String() string { return guideTypeNames[t] }

// GuideReference is one guide reference entry (a structural page of the
// publication such as the cover or the copyright page).
type GuideReference struct {
	Href  string
	Title string
}

// Guide is the EPUB 2 legacy guide element: at most one reference per
// canonical type, plus any non-standard (custom) reference types keyed by
// their literal type attribute.
type Guide struct {
	References map[GuideReferenceType]GuideReference
	Custom     map[string]GuideReference
}

// NewGuide returns an empty guide.
func NewGuide() *Guide {
	return &Guide{
		References: make(map[GuideReferenceType]GuideReference),
		Custom:     make(map[string]GuideReference),
	}
}

// ConflictResolution selects what happens when a corrected custom
// reference collides with an already-registered canonical reference.
type ConflictResolution int

const (
	// ConflictReplace installs the corrected reference over the existing
	// canonical one.
	ConflictReplace ConflictResolution = iota
	// ConflictDiscard drops the custom reference and keeps the existing
	// canonical one.
	ConflictDiscard
	// ConflictKeep leaves the custom reference uncorrected in place.
	ConflictKeep
)

// GuideCorrector remaps known misspellings of guide reference types
// (e.g. "copyright") to their canonical types. The correction table is
// injected at construction; corrections are one-way and, once added,
// permanent. The set only grows for the corrector's lifetime.
type GuideCorrector struct {
	corrections map[string]GuideReferenceType
}

// NewGuideCorrector builds a corrector from an initial correction table.
// The table is copied; later mutation of the argument has no effect.
func NewGuideCorrector(corrections map[string]GuideReferenceType) *GuideCorrector {
	c := &GuideCorrector{corrections: make(map[string]GuideReferenceType, len(corrections))}
	for k, v := range corrections {
		c.corrections[k] = v
	}
	return c
}

// DefaultGuideCorrections returns the correction table for misspellings
// seen in the wild.
func DefaultGuideCorrections() map[string]GuideReferenceType {
	return map[string]GuideReferenceType{
		"copyright":          GuideCopyrightPage,
		"copyright page":     GuideCopyrightPage,
		"copyrights":         GuideCopyrightPage,
		"table-of-contents":  GuideTableOfContents,
		"table of contents":  GuideTableOfContents,
		"contents":           GuideTableOfContents,
		"titlepage":          GuideTitlePage,
		"title":              GuideTitlePage,
		"acknowledgments":    GuideAcknowledgements,
		"illustrations":      GuideListOfIllustrations,
		"tables":             GuideListOfTables,
		"start":              GuideText,
	}
}

// AddCorrection registers another custom→canonical correction.
func (c *GuideCorrector) AddCorrection(custom string, canonical GuideReferenceType) {
	c.corrections[strings.ToLower(custom)] = canonical
}

// Correct looks up the canonical type for a custom reference type.
func (c *GuideCorrector) Correct(custom string) (GuideReferenceType, bool) {
	t, ok := c.corrections[strings.ToLower(custom)]
	return t, ok
}

// ApplyCorrector walks the guide's custom references and moves every
// correctable one to its canonical slot, resolving collisions with an
// existing canonical reference per the given policy.
func (g *Guide) ApplyCorrector(c *GuideCorrector, policy ConflictResolution) {
	for custom, ref := range g.Custom {
		canonical, ok := c.Correct(custom)
		if !ok {
			continue
		}

		if _, taken := g.References[canonical]; taken {
			switch policy {
			case ConflictReplace:
				g.References[canonical] = ref
				delete(g.Custom, custom)
			case ConflictDiscard:
				delete(g.Custom, custom)
			case ConflictKeep:
				// leave the custom entry as-is
			}
			continue
		}

		g.References[canonical] = ref
		delete(g.Custom, custom)
	}
}

// readGuide parses a guide element. References with a canonical type
// attribute land in References (first one wins per type); everything else
// is kept under its literal type string in Custom.
func readGuide(el *etree.Element) (*Guide, error) {
	g := NewGuide()
	for _, refEl := range childrenOf(el, "reference") {
		typ, err := reqAttr(refEl, "type")
		if err != nil {
			return nil, err
		}
		href, err := reqAttr(refEl, "href")
		if err != nil {
			return nil, err
		}
		if err := validateIRI(href); err != nil {
			return nil, err
		}

		ref := GuideReference{Href: href}
		ref.Title, _ = optAttr(refEl, "title")

		if canonical, ok := guideTypeByName[typ]; ok {
			if _, exists := g.References[canonical]; !exists {
				g.References[canonical] = ref
			}
			continue
		}
		// Non-standard types, including the "other." prefixed form.
		g.Custom[strings.TrimPrefix(typ, "other.")] = ref
	}
	return g, nil
}

// writeGuide serializes the guide, canonical references first in stable
// type order, then custom references in lexical order.
func writeGuide(root *etree.Element, g *Guide) {
	el := root.CreateElement("guide")

	types := make([]GuideReferenceType, 0, len(g.References))
	for t := range g.References {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		ref := g.References[t]
		refEl := el.CreateElement("reference")
		refEl.CreateAttr("type", t.String())
		setOptAttr(refEl, "title", ref.Title)
		refEl.CreateAttr("href", ref.Href)
	}

	customs := make([]string, 0, len(g.Custom))
	for c := range g.Custom {
		customs = append(customs, c)
	}
	sort.Strings(customs)
	for _, c := range customs {
		ref := g.Custom[c]
		refEl := el.CreateElement("reference")
		refEl.CreateAttr("type", "other."+c)
		setOptAttr(refEl, "title", ref.Title)
		refEl.CreateAttr("href", ref.Href)
	}
}

// MediaTypeHandler is one bindings entry: a handler document for a
// foreign media type.
type MediaTypeHandler struct {
	MediaType string
	HandlerID string // manifest item id of the handler
}

// Bindings is the deprecated EPUB 3 bindings element.
type Bindings struct {
	Handlers []MediaTypeHandler
}

// HandlerFor returns the handler registered for a media type.
func (b *Bindings) HandlerFor(mediaType string) (MediaTypeHandler, bool) {
	for _, h := range b.Handlers {
		if h.MediaType == mediaType {
			return h, true
		}
	}
	return MediaTypeHandler{}, false
}

func readBindings(el *etree.Element) (*Bindings, error) {
	var b Bindings
	for _, mt := range childrenOf(el, "mediaType") {
		mediaType, err := reqAttr(mt, "media-type")
		if err != nil {
			return nil, err
		}
		if err := validateMediaType(mediaType); err != nil {
			return nil, err
		}
		handler, err := reqAttr(mt, "handler")
		if err != nil {
			return nil, err
		}
		b.Handlers = append(b.Handlers, MediaTypeHandler{MediaType: mediaType, HandlerID: handler})
	}
	return &b, nil
}

func writeBindings(root *etree.Element, b *Bindings) {
	el := root.CreateElement("bindings")
	for _, h := range b.Handlers {
		mtEl := el.CreateElement("mediaType")
		mtEl.CreateAttr("media-type", h.MediaType)
		mtEl.CreateAttr("handler", h.HandlerID)
	}
}

// TourSite is one stop of a tour.
type TourSite struct {
	Href  string
	Title string
}

// Tour is a named tour through the publication. A tour carries at least
// one site.
type Tour struct {
	ID    string
	Title string
	Sites []TourSite
}

// Tours is the deprecated EPUB 2 tours element.
type Tours struct {
	Tours []Tour
}

func readTours(el *etree.Element) (*Tours, error) {
	var ts Tours
	for _, tourEl := range childrenOf(el, "tour") {
		var (
			t   Tour
			err error
		)
		if t.ID, err = reqAttr(tourEl, "id"); err != nil {
			return nil, err
		}
		if t.Title, err = reqAttr(tourEl, "title"); err != nil {
			return nil, err
		}

		sites := childrenOf(tourEl, "site")
		if len(sites) == 0 {
			return nil, &MissingElementError{Name: "site", Path: elemPath(tourEl)}
		}
		for _, siteEl := range sites {
			var s TourSite
			if s.Href, err = reqAttr(siteEl, "href"); err != nil {
				return nil, err
			}
			if s.Title, err = reqAttr(siteEl, "title"); err != nil {
				return nil, err
			}
			t.Sites = append(t.Sites, s)
		}
		ts.Tours = append(ts.Tours, t)
	}
	return &ts, nil
}

func writeTours(root *etree.Element, ts *Tours) {
	el := root.CreateElement("tours")
	for _, t := range ts.Tours {
		tourEl := el.CreateElement("tour")
		tourEl.CreateAttr("id", t.ID)
		tourEl.CreateAttr("title", t.Title)
		for _, s := range t.Sites {
			siteEl := tourEl.CreateElement("site")
			siteEl.CreateAttr("href", s.Href)
			siteEl.CreateAttr("title", s.Title)
		}
	}
}
