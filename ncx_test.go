package epub

import (
	"strings"
	"testing"
)

func TestReadNCX(t *testing.T) {
	ncx, err := readNCX([]byte(validNCX), "OEBPS/toc.ncx")
	if err != nil {
		t.Fatal(err)
	}

	if ncx.UID != "urn:uuid:6f9b2c44-0a5e-4d77-8e61-2b3f9f6da001" {
		t.Errorf("UID = %q", ncx.UID)
	}
	if ncx.Title != "An Old Book" {
		t.Errorf("Title = %q", ncx.Title)
	}
	if len(ncx.NavMap) != 2 {
		t.Fatalf("got %d top-level nav points", len(ncx.NavMap))
	}

	first := ncx.NavMap[0]
	if first.Label != "Chapter One" || first.Src != "chapter1.xhtml" || first.PlayOrder != 1 {
		t.Errorf("first point = %+v", first)
	}
	if len(ncx.NavMap[1].Children) != 1 {
		t.Fatalf("second point should have one child")
	}
	if ncx.NavMap[1].Children[0].Src != "chapter2.xhtml#s1" {
		t.Errorf("nested src = %q", ncx.NavMap[1].Children[0].Src)
	}

	if countPoints(ncx.NavMap) != 3 {
		t.Errorf("countPoints = %d", countPoints(ncx.NavMap))
	}
	if navDepth(ncx.NavMap) != 2 {
		t.Errorf("navDepth = %d", navDepth(ncx.NavMap))
	}
}

func TestReadNCXFailures(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"not xml", `<<<`},
		{"wrong root", `<html><navMap/></html>`},
		{"no navMap", `<ncx><head/></ncx>`},
		{"point without label", `<ncx><navMap><navPoint id="a"><content src="a.xhtml"/></navPoint></navMap></ncx>`},
		{"point without content", `<ncx><navMap><navPoint id="a"><navLabel><text>A</text></navLabel></navPoint></navMap></ncx>`},
		{"playOrder not numeric", `<ncx><navMap><navPoint id="a" playOrder="first"><navLabel><text>A</text></navLabel><content src="a.xhtml"/></navPoint></navMap></ncx>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readNCX([]byte(tt.xml), "toc.ncx"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadNCXHTMLEntities(t *testing.T) {
	src := `<ncx>
  <docTitle><text>Tom&nbsp;&amp;&nbsp;Jerry</text></docTitle>
  <navMap>
    <navPoint id="a"><navLabel><text>D&eacute;but</text></navLabel><content src="a.xhtml"/></navPoint>
  </navMap>
</ncx>`
	ncx, err := readNCX([]byte(src), "toc.ncx")
	if err != nil {
		t.Fatal(err)
	}
	if ncx.Title != "Tom & Jerry" {
		t.Errorf("Title = %q", ncx.Title)
	}
	if ncx.NavMap[0].Label != "Début" {
		t.Errorf("Label = %q", ncx.NavMap[0].Label)
	}
}

func TestNCXSerializeRegeneratesPlayOrder(t *testing.T) {
	ncx := &NCX{
		UID:   "urn:uuid:test",
		Title: "Reordered",
		NavMap: []NavPoint{
			{Label: "One", Src: "1.xhtml", PlayOrder: 9},
			{
				Label: "Two", Src: "2.xhtml", PlayOrder: 3,
				Children: []NavPoint{
					{Label: "Two-One", Src: "2.xhtml#a", PlayOrder: 99},
				},
			},
			{Label: "Three", Src: "3.xhtml"},
		},
	}
	data, err := ncx.serialize()
	if err != nil {
		t.Fatal(err)
	}

	got, err := readNCX(data, "toc.ncx")
	if err != nil {
		t.Fatal(err)
	}
	if got.UID != "urn:uuid:test" || got.Title != "Reordered" {
		t.Errorf("head lost: %+v", got)
	}

	// Play order is reassigned sequentially in document order.
	wantOrder := []int{1, 2, 3, 4}
	var gotOrder []int
	var walk func(ps []NavPoint)
	walk = func(ps []NavPoint) {
		for _, p := range ps {
			gotOrder = append(gotOrder, p.PlayOrder)
			walk(p.Children)
		}
	}
	walk(got.NavMap)
	if len(gotOrder) != len(wantOrder) {
		t.Fatalf("got %d points", len(gotOrder))
	}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Errorf("playOrder[%d] = %d, want %d", i, gotOrder[i], wantOrder[i])
		}
	}

	if !strings.Contains(string(data), `name="dtb:depth" content="1"`) &&
		!strings.Contains(string(data), `content="1" name="dtb:depth"`) {
		t.Errorf("dtb:depth not written, output:\n%s", data)
	}
}

func TestNCXSerializeGeneratesMissingIDs(t *testing.T) {
	ncx := &NCX{Title: "T", NavMap: []NavPoint{{Label: "A", Src: "a.xhtml"}}}
	data, err := ncx.serialize()
	if err != nil {
		t.Fatal(err)
	}
	got, err := readNCX(data, "toc.ncx")
	if err != nil {
		t.Fatal(err)
	}
	if got.NavMap[0].ID == "" {
		t.Error("serialized nav point should have a generated id")
	}
}

func TestNCXRoundTripStructure(t *testing.T) {
	ncx, err := readNCX([]byte(validNCX), "OEBPS/toc.ncx")
	if err != nil {
		t.Fatal(err)
	}
	data, err := ncx.serialize()
	if err != nil {
		t.Fatal(err)
	}
	got, err := readNCX(data, "OEBPS/toc.ncx")
	if err != nil {
		t.Fatal(err)
	}

	if countPoints(got.NavMap) != countPoints(ncx.NavMap) {
		t.Errorf("point count changed: %d -> %d", countPoints(ncx.NavMap), countPoints(got.NavMap))
	}
	if len(got.NavMap) != len(ncx.NavMap) {
		t.Errorf("top-level count changed: %d -> %d", len(ncx.NavMap), len(got.NavMap))
	}
	if got.NavMap[1].Children[0].Label != ncx.NavMap[1].Children[0].Label {
		t.Error("nested structure lost in round trip")
	}
}
