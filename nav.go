package epub

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NavType identifies a nav element's role in the navigation document.
type NavType int

const (
	// NavTOC is the primary table of contents ("toc").
	NavTOC NavType = iota
	// NavPageList is the print page list ("page-list").
	NavPageList
	// NavLandmarks is the structural landmarks nav ("landmarks").
	NavLandmarks
	// NavCustom covers any other epub:type value.
	NavCustom
)

// String returns the epub:type value for the standard types.
func (t NavType) String() string {
	switch t {
	case NavTOC:
		return "toc"
	case NavPageList:
		return "page-list"
	case NavLandmarks:
		return "landmarks"
	default:
		return "custom"
	}
}

func navTypeOf(epubType string) NavType {
	switch epubType {
	case "toc":
		return NavTOC
	case "page-list":
		return NavPageList
	case "landmarks":
		return NavLandmarks
	default:
		return NavCustom
	}
}

// NavDocument is the EPUB 3 HTML navigation document: an XHTML file
// whose nav elements encode the table of contents, page list, landmarks
// and any custom navigation.
type NavDocument struct {
	Title string
	Navs  []Nav
}

// Nav is a single nav element.
type Nav struct {
	Type     NavType
	EpubType string // raw epub:type value, kept for custom navs
	Heading  string // text of the nav's heading element, if any
	Items    []NavEntry
}

// NavEntry is one list item of a nav: a link or span label plus optional
// nested entries.
type NavEntry struct {
	Label    string
	Href     string // empty for span-only (heading) entries
	Children []NavEntry
}

// TOC returns the nav with epub:type "toc", if present.
func (d *NavDocument) TOC() (*Nav, bool) {
	for i := range d.Navs {
		if d.Navs[i].Type == NavTOC {
			return &d.Navs[i], true
		}
	}
	return nil, false
}

// readNavDocument parses navigation document bytes into the typed model.
func readNavDocument(data []byte, docPath string) (*NavDocument, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("epub: nav document %s: %w", docPath, err)
	}

	doc := &NavDocument{}
	if titles := findAllElements(root, "title"); len(titles) > 0 {
		doc.Title = nodeText(titles[0])
	}

	for _, navEl := range findAllElements(root, "nav") {
		epubType, _ := nodeAttr(navEl, "epub:type")

		nav := Nav{Type: navTypeOf(epubType), EpubType: epubType}
		if heading := navHeading(navEl); heading != nil {
			nav.Heading = nodeText(heading)
		}

		if ol := firstChildElement(navEl, "ol"); ol != nil {
			entries, err := readNavList(ol, docPath)
			if err != nil {
				return nil, err
			}
			nav.Items = entries
		}
		doc.Navs = append(doc.Navs, nav)
	}

	if len(doc.Navs) == 0 {
		return nil, fmt.Errorf("epub: nav document %s has no <nav> elements", docPath)
	}
	return doc, nil
}

// navHeading returns the nav's first h1..h6 child, if any.
func navHeading(navEl *html.Node) *html.Node {
	for c := navEl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			return c
		}
	}
	return nil
}

// readNavList parses an ol element into entries. Each li holds either a
// link (a) or a label (span), optionally followed by a nested ol.
func readNavList(ol *html.Node, docPath string) ([]NavEntry, error) {
	var entries []NavEntry
	for li := ol.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}

		var entry NavEntry
		switch {
		case firstChildElement(li, "a") != nil:
			a := firstChildElement(li, "a")
			entry.Label = nodeText(a)
			entry.Href, _ = nodeAttr(a, "href")
			if strings.TrimSpace(entry.Href) == "" {
				return nil, fmt.Errorf("epub: nav document %s: list item link without href", docPath)
			}
		case firstChildElement(li, "span") != nil:
			entry.Label = nodeText(firstChildElement(li, "span"))
		default:
			return nil, fmt.Errorf("epub: nav document %s: list item without link or span", docPath)
		}

		if nested := firstChildElement(li, "ol"); nested != nil {
			children, err := readNavList(nested, docPath)
			if err != nil {
				return nil, err
			}
			entry.Children = children
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// --- writing ---

const xhtmlNamespace = "http://www.w3.org/1999/xhtml"
const epubOpsNamespace = "http://www.idpf.org/2007/ops"

// serialize renders the navigation document as XHTML.
func (d *NavDocument) serialize() ([]byte, error) {
	htmlEl := elem("html")
	htmlEl.Attr = []html.Attribute{
		{Key: "xmlns", Val: xhtmlNamespace},
		{Key: "xmlns:epub", Val: epubOpsNamespace},
	}

	head := elem("head")
	title := elem("title")
	title.AppendChild(textNode(d.Title))
	head.AppendChild(title)
	htmlEl.AppendChild(head)

	body := elem("body")
	for i := range d.Navs {
		body.AppendChild(d.Navs[i].toNode())
	}
	htmlEl.AppendChild(body)

	root := &html.Node{Type: html.DocumentNode}
	doctype := &html.Node{Type: html.DoctypeNode, Data: "html"}
	root.AppendChild(doctype)
	root.AppendChild(htmlEl)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("epub: render nav document: %w", err)
	}
	return buf.Bytes(), nil
}

func (n *Nav) toNode() *html.Node {
	navEl := elem("nav")
	epubType := n.EpubType
	if epubType == "" {
		epubType = n.Type.String()
	}
	navEl.Attr = append(navEl.Attr, html.Attribute{Key: "epub:type", Val: epubType})

	if n.Heading != "" {
		h := elem("h1")
		h.AppendChild(textNode(n.Heading))
		navEl.AppendChild(h)
	}
	if len(n.Items) > 0 {
		navEl.AppendChild(navEntriesToList(n.Items))
	}
	return navEl
}

func navEntriesToList(entries []NavEntry) *html.Node {
	ol := elem("ol")
	for _, e := range entries {
		li := elem("li")
		if e.Href != "" {
			a := elem("a")
			a.Attr = append(a.Attr, html.Attribute{Key: "href", Val: e.Href})
			a.AppendChild(textNode(e.Label))
			li.AppendChild(a)
		} else {
			span := elem("span")
			span.AppendChild(textNode(e.Label))
			li.AppendChild(span)
		}
		if len(e.Children) > 0 {
			li.AppendChild(navEntriesToList(e.Children))
		}
		ol.AppendChild(li)
	}
	return ol
}

func elem(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
