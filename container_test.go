package epub

import (
	"errors"
	"strings"
	"testing"
)

func TestReadContainer(t *testing.T) {
	c, err := readContainer([]byte(validContainerXML))
	if err != nil {
		t.Fatal(err)
	}
	if c.Version != "1.0" {
		t.Errorf("version = %q", c.Version)
	}
	if len(c.RootFiles) != 1 {
		t.Fatalf("got %d rootfiles", len(c.RootFiles))
	}
	if c.RootFiles[0].FullPath != "OEBPS/content.opf" {
		t.Errorf("full-path = %q", c.RootFiles[0].FullPath)
	}

	path, ok := c.PackageDocumentPath()
	if !ok || path != "OEBPS/content.opf" {
		t.Errorf("PackageDocumentPath() = %q, %v", path, ok)
	}
}

func TestReadContainerFailures(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"not xml", `garbage`},
		{"wrong root", `<wrapper><rootfiles/></wrapper>`},
		{"no rootfiles", `<container version="1.0"/>`},
		{"empty rootfiles", `<container version="1.0"><rootfiles/></container>`},
		{"missing full-path", `<container version="1.0"><rootfiles><rootfile media-type="application/oebps-package+xml"/></rootfiles></container>`},
		{"missing media-type", `<container version="1.0"><rootfiles><rootfile full-path="a.opf"/></rootfiles></container>`},
		{"bad media-type", `<container version="1.0"><rootfiles><rootfile full-path="a.opf" media-type="not a type"/></rootfiles></container>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readContainer([]byte(tt.xml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadContainerMissingRootfilesSentinel(t *testing.T) {
	_, err := readContainer([]byte(`<container version="1.0"/>`))
	if !errors.Is(err, ErrMissingRootfile) {
		t.Errorf("err = %v, want ErrMissingRootfile", err)
	}
}

func TestPackageDocumentPathSelection(t *testing.T) {
	tests := []struct {
		name  string
		files []RootFile
		want  string
		ok    bool
	}{
		{
			"opf media type wins over earlier entries",
			[]RootFile{
				{FullPath: "first.xml", MediaType: "application/xml"},
				{FullPath: "book.opf", MediaType: "application/oebps-package+xml"},
			},
			"book.opf", true,
		},
		{
			"media type compared case-insensitively",
			[]RootFile{{FullPath: "book.opf", MediaType: "Application/OEBPS-Package+XML"}},
			"book.opf", true,
		},
		{
			"fallback to first entry with a path",
			[]RootFile{
				{FullPath: "", MediaType: "application/xml"},
				{FullPath: "some.xml", MediaType: "application/xml"},
			},
			"some.xml", true,
		},
		{"no usable entry", []RootFile{{FullPath: "  ", MediaType: "application/xml"}}, "", false},
		{"empty container", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Container{RootFiles: tt.files}
			got, ok := c.PackageDocumentPath()
			if got != tt.want || ok != tt.ok {
				t.Errorf("PackageDocumentPath() = %q, %v, want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestContainerSerializeRoundTrip(t *testing.T) {
	c := newContainer("OEBPS/package.opf")
	data, err := c.serialize()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "urn:oasis:names:tc:opendocument:xmlns:container") {
		t.Error("container namespace missing from output")
	}

	c2, err := readContainer(data)
	if err != nil {
		t.Fatal(err)
	}
	if c2.Version != "1.0" {
		t.Errorf("version = %q", c2.Version)
	}
	path, ok := c2.PackageDocumentPath()
	if !ok || path != "OEBPS/package.opf" {
		t.Errorf("PackageDocumentPath() = %q, %v", path, ok)
	}
}

func TestContainerSerializeDefaultsVersion(t *testing.T) {
	c := &Container{RootFiles: []RootFile{{FullPath: "a.opf", MediaType: packageMediaType}}}
	data, err := c.serialize()
	if err != nil {
		t.Fatal(err)
	}
	c2, err := readContainer(data)
	if err != nil {
		t.Fatal(err)
	}
	if c2.Version != "1.0" {
		t.Errorf("empty version should serialize as 1.0, got %q", c2.Version)
	}
}
