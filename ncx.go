package epub

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

const ncxNamespace = "http://www.daisy.org/z3986/2005/ncx/"

// NCX is the DAISY-derived table of contents used by EPUB 2 (and carried
// by many EPUB 3 files for compatibility).
type NCX struct {
	// UID is the dtb:uid head meta, normally mirroring the package
	// unique identifier.
	UID string
	// Title is the docTitle text.
	Title string
	// NavMap holds the top-level navigation points.
	NavMap []NavPoint
}

// NavPoint is a single NCX navigation point: a labelled content
// reference with optional play order and recursive children.
type NavPoint struct {
	ID        string
	PlayOrder int // 0 when the attribute is absent
	Label     string
	Src       string // content src, may carry a fragment
	Children  []NavPoint
}

// depth returns the nesting depth of the navMap.
func navDepth(points []NavPoint) int {
	max := 0
	for _, p := range points {
		if d := navDepth(p.Children); d > max {
			max = d
		}
	}
	return max + 1
}

// countPoints returns the total number of nav points in the tree.
func countPoints(points []NavPoint) int {
	n := len(points)
	for _, p := range points {
		n += countPoints(p.Children)
	}
	return n
}

// readNCX parses NCX bytes into the typed model.
func readNCX(data []byte, docPath string) (*NCX, error) {
	fail := func(err error) (*NCX, error) {
		return nil, fmt.Errorf("epub: ncx %s: %w", docPath, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(stripBOM(preprocessHTMLEntities(data))); err != nil {
		return fail(err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "ncx" {
		return fail(fmt.Errorf("root element is not <ncx>"))
	}

	ncx := &NCX{}

	if head := optChild(root, "head"); head != nil {
		for _, meta := range childrenOf(head, "meta") {
			if name, _ := optAttr(meta, "name"); name == "dtb:uid" {
				ncx.UID, _ = optAttr(meta, "content")
			}
		}
	}
	if docTitle := optChild(root, "docTitle"); docTitle != nil {
		if text := optChild(docTitle, "text"); text != nil {
			ncx.Title = ownText(text)
		}
	}

	navMap, err := reqChild(root, "navMap")
	if err != nil {
		return fail(err)
	}
	for _, pointEl := range childrenOf(navMap, "navPoint") {
		point, err := readNavPoint(pointEl)
		if err != nil {
			return fail(err)
		}
		ncx.NavMap = append(ncx.NavMap, point)
	}

	return ncx, nil
}

func readNavPoint(el *etree.Element) (NavPoint, error) {
	var p NavPoint
	p.ID, _ = optAttr(el, "id")

	if po, ok := optAttr(el, "playOrder"); ok {
		n, err := strconv.Atoi(po)
		if err != nil {
			return NavPoint{}, fmt.Errorf("%s: playOrder %q is not a number", elemPath(el), po)
		}
		p.PlayOrder = n
	}

	label, err := reqChild(el, "navLabel")
	if err != nil {
		return NavPoint{}, err
	}
	text, err := reqChild(label, "text")
	if err != nil {
		return NavPoint{}, err
	}
	p.Label = ownText(text)

	content, err := reqChild(el, "content")
	if err != nil {
		return NavPoint{}, err
	}
	if p.Src, err = reqAttr(content, "src"); err != nil {
		return NavPoint{}, err
	}

	for _, childEl := range childrenOf(el, "navPoint") {
		child, err := readNavPoint(childEl)
		if err != nil {
			return NavPoint{}, err
		}
		p.Children = append(p.Children, child)
	}
	return p, nil
}

// serialize renders the NCX document, regenerating play order and depth.
func (n *NCX) serialize() ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("ncx")
	root.CreateAttr("xmlns", ncxNamespace)
	root.CreateAttr("version", "2005-1")

	head := root.CreateElement("head")
	addHeadMeta(head, "dtb:uid", n.UID)
	addHeadMeta(head, "dtb:depth", strconv.Itoa(navDepth(n.NavMap)-1))
	addHeadMeta(head, "dtb:totalPageCount", "0")
	addHeadMeta(head, "dtb:maxPageNumber", "0")

	docTitle := root.CreateElement("docTitle")
	docTitle.CreateElement("text").SetText(n.Title)

	navMap := root.CreateElement("navMap")
	order := 1
	for i := range n.NavMap {
		writeNavPoint(navMap, &n.NavMap[i], &order)
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func addHeadMeta(head *etree.Element, name, content string) {
	meta := head.CreateElement("meta")
	meta.CreateAttr("name", name)
	meta.CreateAttr("content", content)
}

func writeNavPoint(parent *etree.Element, p *NavPoint, order *int) {
	el := parent.CreateElement("navPoint")
	id := p.ID
	if id == "" {
		id = fmt.Sprintf("navPoint-%d", *order)
	}
	el.CreateAttr("id", id)
	el.CreateAttr("playOrder", strconv.Itoa(*order))
	*order++

	label := el.CreateElement("navLabel")
	label.CreateElement("text").SetText(p.Label)

	content := el.CreateElement("content")
	content.CreateAttr("src", p.Src)

	for i := range p.Children {
		writeNavPoint(el, &p.Children[i], order)
	}
}
