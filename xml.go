package epub

import (
	"mime"
	"net/url"
	"strings"

	"github.com/beevik/etree"
)

// elemPath returns an XPath-like absolute locator for el, e.g.
// "/package/metadata/dc:title", so structured read errors stay locatable
// in large documents.
func elemPath(el *etree.Element) string {
	var parts []string
	for e := el; e != nil && e.Tag != ""; e = e.Parent() {
		parts = append(parts, e.FullTag())
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(parts[i])
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// reqChild returns the first child element with the given tag (namespace
// prefix ignored), or a MissingElementError naming the parent's locator.
func reqChild(parent *etree.Element, tag string) (*etree.Element, error) {
	if el := optChild(parent, tag); el != nil {
		return el, nil
	}
	return nil, &MissingElementError{Name: tag, Path: elemPath(parent)}
}

// optChild returns the first child element with the given tag, or nil.
// Matching is on the local tag name so that documents with and without
// explicit namespace prefixes both resolve.
func optChild(parent *etree.Element, tag string) *etree.Element {
	for _, c := range parent.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// childrenOf returns all child elements with the given local tag.
func childrenOf(parent *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range parent.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// reqChildren requires wrapper to exist under parent and returns its
// children with the given tag; an absent wrapper or an empty child list
// is a MissingElementError.
func reqChildren(parent *etree.Element, wrapper, childTag string) ([]*etree.Element, error) {
	w, err := reqChild(parent, wrapper)
	if err != nil {
		return nil, err
	}
	children := childrenOf(w, childTag)
	if len(children) == 0 {
		return nil, &MissingElementError{Name: childTag, Path: elemPath(w)}
	}
	return children, nil
}

// optChildren returns the wrapper's children when the wrapper exists, and
// (nil, nil) when it does not. A present-but-empty wrapper still fails:
// the wrapper is optional, its children are not.
func optChildren(parent *etree.Element, wrapper, childTag string) ([]*etree.Element, error) {
	w := optChild(parent, wrapper)
	if w == nil {
		return nil, nil
	}
	children := childrenOf(w, childTag)
	if len(children) == 0 {
		return nil, &MissingElementError{Name: childTag, Path: elemPath(w)}
	}
	return children, nil
}

// addChildrenWithWrapper creates wrapper under parent and moves the given
// elements into it. The wrapper is returned for further decoration.
func addChildrenWithWrapper(parent *etree.Element, wrapper string, children []*etree.Element) *etree.Element {
	w := parent.CreateElement(wrapper)
	for _, c := range children {
		w.AddChild(c)
	}
	return w
}

// reqAttr returns the value of the named attribute, or a
// MissingAttributeError naming the element's locator. The key may carry a
// namespace prefix ("opf:role").
func reqAttr(el *etree.Element, key string) (string, error) {
	if v, ok := optAttr(el, key); ok {
		return v, nil
	}
	return "", &MissingAttributeError{Name: key, Path: elemPath(el)}
}

// optAttr returns the named attribute's value and whether it was present.
func optAttr(el *etree.Element, key string) (string, bool) {
	if a := el.SelectAttr(key); a != nil {
		return a.Value, true
	}
	return "", false
}

// setOptAttr sets an attribute only when value is non-empty; a nil value
// omits the attribute entirely rather than emitting an empty placeholder.
func setOptAttr(el *etree.Element, key, value string) {
	if value != "" {
		el.CreateAttr(key, value)
	}
}

// reqText returns the element's trimmed text content, or a
// MissingTextError when empty.
func reqText(el *etree.Element) (string, error) {
	t := strings.TrimSpace(el.Text())
	if t == "" {
		return "", &MissingTextError{Path: elemPath(el)}
	}
	return t, nil
}

// ownText returns the element's trimmed own text content.
func ownText(el *etree.Element) string {
	return strings.TrimSpace(el.Text())
}

// Direction is a reading direction value ("ltr" or "rtl"). The zero value
// means the attribute was absent.
type Direction int

const (
	// DirectionUnspecified means no dir attribute was present.
	DirectionUnspecified Direction = iota
	// DirectionLTR is left-to-right.
	DirectionLTR
	// DirectionRTL is right-to-left.
	DirectionRTL
)

// String returns the attribute form, or "" when unspecified.
func (d Direction) String() string {
	switch d {
	case DirectionLTR:
		return "ltr"
	case DirectionRTL:
		return "rtl"
	default:
		return ""
	}
}

// ParseDirection parses a dir attribute value. Anything other than "ltr"
// or "rtl" is an UnknownReadingDirectionError.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "ltr":
		return DirectionLTR, nil
	case "rtl":
		return DirectionRTL, nil
	default:
		return DirectionUnspecified, &UnknownReadingDirectionError{Value: s}
	}
}

// optDirection reads an optional dir attribute from el.
func optDirection(el *etree.Element) (Direction, error) {
	v, ok := optAttr(el, "dir")
	if !ok {
		return DirectionUnspecified, nil
	}
	return ParseDirection(v)
}

// validateMediaType checks a media-type attribute value.
func validateMediaType(value string) error {
	if _, _, err := mime.ParseMediaType(value); err != nil {
		return &InvalidMediaTypeError{Value: value}
	}
	return nil
}

// validateIRI checks an href/IRI attribute value.
func validateIRI(value string) error {
	if strings.TrimSpace(value) == "" {
		return &InvalidIRIError{Value: value}
	}
	if _, err := url.Parse(value); err != nil {
		return &InvalidIRIError{Value: value, Err: err}
	}
	return nil
}
