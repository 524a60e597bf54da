package epub

import (
	"errors"
	"strings"
	"testing"
)

func readOPF(t *testing.T, xml string) (*PackageDocument, *diagnostics, error) {
	t.Helper()
	var diag diagnostics
	p, err := readPackageDocument([]byte(xml), "OEBPS/content.opf", NewSchemeRegistry(), &diag)
	return p, &diag, err
}

func TestReadPackageDocumentEPub2(t *testing.T) {
	p, diag, err := readOPF(t, epub2OPF)
	if err != nil {
		t.Fatalf("readPackageDocument: %v", err)
	}
	if len(diag.strings()) != 0 {
		t.Errorf("unexpected diagnostics: %v", diag.strings())
	}

	if p.Format != FormatEpub2 || p.Version != (Version{Major: 2}) {
		t.Errorf("version/format = %v/%v", p.Version, p.Format)
	}
	if p.UniqueIdentifier != "uid" {
		t.Errorf("UniqueIdentifier = %q", p.UniqueIdentifier)
	}
	if got := p.Metadata.PrimaryTitle(); got != "An Old Book" {
		t.Errorf("title = %q", got)
	}
	if len(p.Manifest.Items) != 3 {
		t.Errorf("manifest items = %d, want 3", len(p.Manifest.Items))
	}
	if p.Spine.TOC != "ncx" {
		t.Errorf("spine toc = %q, want ncx", p.Spine.TOC)
	}
	if len(p.Spine.ItemRefs) != 2 {
		t.Fatalf("itemrefs = %d, want 2", len(p.Spine.ItemRefs))
	}
	if !p.Spine.ItemRefs[0].Linear || p.Spine.ItemRefs[1].Linear {
		t.Error("linear flags wrong")
	}
	if p.Guide == nil {
		t.Fatal("guide not parsed")
	}
	if _, ok := p.Guide.References[GuideTableOfContents]; !ok {
		t.Error("canonical guide reference missing")
	}
	if _, ok := p.Guide.Custom["copyright"]; !ok {
		t.Error("other.copyright should land in Custom with the prefix stripped")
	}
}

func TestReadPackageDocumentEPub3(t *testing.T) {
	p, _, err := readOPF(t, epub3OPF)
	if err != nil {
		t.Fatalf("readPackageDocument: %v", err)
	}
	if p.Format != FormatEpub3 {
		t.Errorf("format = %v", p.Format)
	}
	nav, ok := p.Manifest.NavItem()
	if !ok || nav.ID != "nav" {
		t.Errorf("NavItem = %+v, %v", nav, ok)
	}
	if len(p.Metadata.OPF3Metas) != 3 {
		t.Errorf("OPF3Metas = %d, want 3", len(p.Metadata.OPF3Metas))
	}
}

func TestReadPackageDocumentVersionGate(t *testing.T) {
	mk := func(version string) string {
		return strings.Replace(epub3OPF, `version="3.0"`, `version="`+version+`"`, 1)
	}

	for _, version := range []string{"3.1", "4.0", "1.0", "garbage"} {
		_, _, err := readOPF(t, mk(version))
		var pe *PackageDocumentError
		if !errors.As(err, &pe) {
			t.Errorf("version %s: err = %v, want *PackageDocumentError", version, err)
		}
	}
}

func TestReadPackageDocumentMandatoryParts(t *testing.T) {
	for _, tag := range []string{"metadata", "manifest", "spine"} {
		t.Run("no "+tag, func(t *testing.T) {
			start := strings.Index(epub3OPF, "<"+tag)
			closing := "</" + tag + ">"
			end := strings.Index(epub3OPF, closing) + len(closing)
			mutated := epub3OPF[:start] + epub3OPF[end:]

			_, _, err := readOPF(t, mutated)
			var me *MissingElementError
			if !errors.As(err, &me) || me.Name != tag {
				t.Errorf("err = %v, want MissingElementError{%s}", err, tag)
			}
		})
	}
}

func TestReadItemRefLinearStrict(t *testing.T) {
	xml := strings.Replace(epub2OPF, `linear="no"`, `linear="maybe"`, 1)
	_, _, err := readOPF(t, xml)
	if err == nil || !strings.Contains(err.Error(), "linear") {
		t.Errorf("linear=maybe should be rejected, got %v", err)
	}
}

func TestReadPackageDocumentUnmatchedUID(t *testing.T) {
	xml := strings.Replace(epub3OPF, `unique-identifier="uid"`, `unique-identifier="nope"`, 1)
	p, diag, err := readOPF(t, xml)
	if err != nil {
		t.Fatalf("unmatched unique-identifier should degrade, got %v", err)
	}
	if p == nil || len(diag.strings()) == 0 {
		t.Error("expected a diagnostic about the dangling unique-identifier")
	}
}

func TestBindingsAndToursVersionGating(t *testing.T) {
	bindings := `<bindings><mediaType media-type="application/x-demo" handler="ch1"/></bindings>`
	tours := `<tours><tour id="t1" title="Tour"><site href="chapter1.xhtml" title="Start"/></tour></tours>`

	// Bindings parse on EPUB 3, tours are ignored there.
	xml := strings.Replace(epub3OPF, "</package>", bindings+tours+"</package>", 1)
	p, _, err := readOPF(t, xml)
	if err != nil {
		t.Fatal(err)
	}
	if p.Bindings == nil {
		t.Error("bindings should parse on EPUB 3")
	} else if h, ok := p.Bindings.HandlerFor("application/x-demo"); !ok || h.HandlerID != "ch1" {
		t.Errorf("HandlerFor = %+v, %v", h, ok)
	}
	if p.Tours != nil {
		t.Error("tours should be ignored on EPUB 3")
	}

	// The other way round on EPUB 2.
	xml = strings.Replace(epub2OPF, "</package>", bindings+tours+"</package>", 1)
	p, _, err = readOPF(t, xml)
	if err != nil {
		t.Fatal(err)
	}
	if p.Bindings != nil {
		t.Error("bindings should be ignored on EPUB 2")
	}
	if p.Tours == nil || len(p.Tours.Tours) != 1 {
		t.Fatal("tours should parse on EPUB 2")
	}
	if p.Tours.Tours[0].Sites[0].Href != "chapter1.xhtml" {
		t.Errorf("tour site = %+v", p.Tours.Tours[0].Sites[0])
	}
}

func TestMalformedGuideDegrades(t *testing.T) {
	xml := strings.Replace(epub2OPF,
		`<reference type="toc" title="Contents" href="chapter1.xhtml"/>`,
		`<reference type="toc" title="Contents"/>`, 1)
	p, diag, err := readOPF(t, xml)
	if err != nil {
		t.Fatalf("a malformed guide should degrade to absent, got %v", err)
	}
	if p.Guide != nil {
		t.Error("guide should be absent after a parse failure")
	}
	if len(diag.strings()) == 0 {
		t.Error("expected a diagnostic for the dropped guide")
	}
}

func TestSerializeValidation(t *testing.T) {
	p, _, err := readOPF(t, epub3OPF)
	if err != nil {
		t.Fatal(err)
	}

	items := p.Manifest.Items
	p.Manifest.Items = nil
	_, serr := p.serialize(WriteOptions{}, NewSchemeRegistry())
	var me *MissingElementError
	if !errors.As(serr, &me) || me.Name != "item" || me.Path != "/package/manifest" {
		t.Errorf("empty manifest = %v, want MissingElementError{item,/package/manifest}", serr)
	}
	p.Manifest.Items = items

	refs := p.Spine.ItemRefs
	p.Spine.ItemRefs = nil
	_, serr = p.serialize(WriteOptions{}, NewSchemeRegistry())
	if !errors.As(serr, &me) || me.Name != "itemref" || me.Path != "/package/spine" {
		t.Errorf("empty spine = %v, want MissingElementError{itemref,/package/spine}", serr)
	}
	p.Spine.ItemRefs = refs

	titles := p.Metadata.Titles
	p.Metadata.Titles = nil
	if _, serr = p.serialize(WriteOptions{}, NewSchemeRegistry()); !errors.Is(serr, ErrMissingTitle) {
		t.Errorf("missing title = %v, want ErrMissingTitle", serr)
	}
	p.Metadata.Titles = titles
}

func TestSerializeRoundTrip(t *testing.T) {
	for name, src := range map[string]string{"epub2": epub2OPF, "epub3": epub3OPF} {
		t.Run(name, func(t *testing.T) {
			p1, _, err := readOPF(t, src)
			if err != nil {
				t.Fatal(err)
			}
			data, err := p1.serialize(WriteOptions{}, NewSchemeRegistry())
			if err != nil {
				t.Fatalf("serialize: %v", err)
			}
			p2, _, err := readOPF(t, string(data))
			if err != nil {
				t.Fatalf("reparse: %v\n%s", err, data)
			}

			if p1.Version != p2.Version || p1.UniqueIdentifier != p2.UniqueIdentifier {
				t.Error("package attributes did not survive")
			}
			if p1.Metadata.PrimaryTitle() != p2.Metadata.PrimaryTitle() ||
				p1.Metadata.PrimaryIdentifier() != p2.Metadata.PrimaryIdentifier() {
				t.Error("metadata did not survive")
			}
			if len(p1.Manifest.Items) != len(p2.Manifest.Items) {
				t.Error("manifest did not survive")
			}
			if len(p1.Spine.ItemRefs) != len(p2.Spine.ItemRefs) || p1.Spine.TOC != p2.Spine.TOC {
				t.Error("spine did not survive")
			}
			for i := range p1.Spine.ItemRefs {
				if p1.Spine.ItemRefs[i].Linear != p2.Spine.ItemRefs[i].Linear {
					t.Errorf("itemref %d linear flag lost", i)
				}
			}
			if (p1.Guide == nil) != (p2.Guide == nil) {
				t.Error("guide presence changed")
			}
		})
	}
}

func TestSerializeLinearOnlyWrittenWhenNo(t *testing.T) {
	p, _, err := readOPF(t, epub2OPF)
	if err != nil {
		t.Fatal(err)
	}
	data, err := p.serialize(WriteOptions{}, NewSchemeRegistry())
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, `linear="yes"`) {
		t.Error("linear=yes is the default and should be omitted")
	}
	if !strings.Contains(out, `linear="no"`) {
		t.Error("linear=no must be written")
	}
}
