package epub

import (
	"fmt"
	"strings"
)

// TableOfContents is the unified navigation view over whichever encoding
// the file carries: an NCX for EPUB 2, a navigation document for EPUB 3,
// or both. Entries is the normalized tree; the source models remain
// accessible for callers that need encoding-specific detail.
type TableOfContents struct {
	Entries []TOCEntry

	// NCX is the parsed NCX document, when one was present.
	NCX *NCX
	// NavDoc is the parsed navigation document, when one was present.
	NavDoc *NavDocument
}

// TOCEntry is one normalized table-of-contents entry.
type TOCEntry struct {
	Title    string
	Href     string // relative to the source document, may carry a fragment
	Children []TOCEntry
}

// tocFromNCX normalizes an NCX navMap.
func tocFromNCX(ncx *NCX) []TOCEntry {
	return navPointsToEntries(ncx.NavMap)
}

func navPointsToEntries(points []NavPoint) []TOCEntry {
	out := make([]TOCEntry, 0, len(points))
	for _, p := range points {
		out = append(out, TOCEntry{
			Title:    p.Label,
			Href:     p.Src,
			Children: navPointsToEntries(p.Children),
		})
	}
	return out
}

// tocFromNav normalizes a navigation document's toc nav.
func tocFromNav(doc *NavDocument) []TOCEntry {
	nav, ok := doc.TOC()
	if !ok {
		return nil
	}
	return navEntriesToTOC(nav.Items)
}

func navEntriesToTOC(items []NavEntry) []TOCEntry {
	out := make([]TOCEntry, 0, len(items))
	for _, it := range items {
		out = append(out, TOCEntry{
			Title:    it.Label,
			Href:     it.Href,
			Children: navEntriesToTOC(it.Children),
		})
	}
	return out
}

// hrefWithoutFragment strips the fragment portion of an href.
func hrefWithoutFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}

// validateTOCEntries checks that every leaf content reference resolves
// to a manifest-registered resource. baseDir is the directory of the
// source document; registered holds normalized absolute paths of
// manifest resources. An unresolvable reference is a read error, never a
// silent nil.
func validateTOCEntries(entries []TOCEntry, baseDir Path, registered map[string]struct{}) error {
	for _, e := range entries {
		if e.Href != "" {
			file := hrefWithoutFragment(e.Href)
			if file != "" {
				target, err := baseDir.Resolve(unescapeHref(file))
				if err != nil {
					return fmt.Errorf("epub: table of contents entry %q: %w", e.Title, err)
				}
				if _, ok := registered[target.normalizedKey()]; !ok {
					return fmt.Errorf("epub: table of contents entry %q references %s, which is not a manifest resource", e.Title, target)
				}
			}
		}
		if err := validateTOCEntries(e.Children, baseDir, registered); err != nil {
			return err
		}
	}
	return nil
}

// countEntries returns the number of top-level entries.
func (t *TableOfContents) countEntries() int { return len(t.Entries) }
