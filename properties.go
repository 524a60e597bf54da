package epub

import (
	"fmt"
	"strings"
)

// Property is a scheme-qualified compact name such as "rendition:layout"
// or the bare "nav". Parsed values round-trip byte-for-byte: String
// re-serializes exactly the text ParseProperty accepted.
type Property struct {
	// Prefix is the vocabulary prefix, empty for the default vocabulary.
	Prefix string
	// Reference is the term inside the vocabulary.
	Reference string
}

// String returns the compact form ("prefix:reference" or "reference").
func (p Property) String() string {
	if p.Prefix == "" {
		return p.Reference
	}
	return p.Prefix + ":" + p.Reference
}

// IsZero reports whether the property is unset.
func (p Property) IsZero() bool { return p.Prefix == "" && p.Reference == "" }

// ParseProperty parses a compact property name. The value must be
// non-empty, contain no whitespace, and have at most one colon separating
// a non-empty prefix from a non-empty reference.
func ParseProperty(s string) (Property, error) {
	if s == "" {
		return Property{}, fmt.Errorf("empty property")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return Property{}, fmt.Errorf("property %q contains whitespace", s)
	}

	i := strings.IndexByte(s, ':')
	if i < 0 {
		return Property{Reference: s}, nil
	}
	prefix, ref := s[:i], s[i+1:]
	if prefix == "" {
		return Property{}, fmt.Errorf("property %q has an empty prefix", s)
	}
	if ref == "" {
		return Property{}, fmt.Errorf("property %q has an empty reference", s)
	}
	if strings.ContainsRune(ref, ':') {
		return Property{}, fmt.Errorf("property %q has more than one colon", s)
	}
	return Property{Prefix: prefix, Reference: ref}, nil
}

// Properties is an ordered, whitespace-separated property list, as found
// in manifest item and spine itemref properties attributes.
type Properties []Property

// String joins the list with single spaces.
func (ps Properties) String() string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}

// Contains reports whether the list holds a property with the given
// compact form.
func (ps Properties) Contains(compact string) bool {
	for _, p := range ps {
		if p.String() == compact {
			return true
		}
	}
	return false
}

// ParsePropertyList parses a whitespace-separated list of compact
// property names. The empty string yields an empty list.
func ParsePropertyList(s string) (Properties, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}
	out := make(Properties, 0, len(fields))
	for _, f := range fields {
		p, err := ParseProperty(f)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// PrefixMapping is one entry of the package element's prefix attribute,
// binding a vocabulary prefix to its IRI.
type PrefixMapping struct {
	Prefix string
	IRI    string
}

// ParsePrefixAttribute parses the package prefix attribute, a sequence of
// "prefix: IRI" pairs separated by whitespace. Order is preserved for
// round-tripping.
func ParsePrefixAttribute(s string) ([]PrefixMapping, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("prefix attribute %q has a dangling token", s)
	}

	out := make([]PrefixMapping, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		prefix := fields[i]
		if !strings.HasSuffix(prefix, ":") || len(prefix) < 2 {
			return nil, fmt.Errorf("prefix attribute: %q is not a \"prefix:\" token", prefix)
		}
		iri := fields[i+1]
		if err := validateIRI(iri); err != nil {
			return nil, err
		}
		out = append(out, PrefixMapping{Prefix: strings.TrimSuffix(prefix, ":"), IRI: iri})
	}
	return out, nil
}

// FormatPrefixAttribute re-serializes prefix mappings into attribute form.
func FormatPrefixAttribute(mappings []PrefixMapping) string {
	parts := make([]string, 0, len(mappings))
	for _, m := range mappings {
		parts = append(parts, m.Prefix+": "+m.IRI)
	}
	return strings.Join(parts, " ")
}
