package epub

import (
	"strings"
	"testing"
)

func TestGetPathCleaning(t *testing.T) {
	fs := NewFileSystem()

	tests := []struct {
		in   string
		want string
	}{
		{"/OEBPS/content.opf", "/OEBPS/content.opf"},
		{"/OEBPS//content.opf", "/OEBPS/content.opf"},
		{"/OEBPS/./content.opf", "/OEBPS/content.opf"},
		{"/a/b/../c", "/a/c"},
		{"OEBPS\\styles\\main.css", "OEBPS/styles/main.css"},
		{"/", "/"},
	}
	for _, tt := range tests {
		p, err := fs.GetPath(tt.in)
		if err != nil {
			t.Errorf("GetPath(%q) error = %v", tt.in, err)
			continue
		}
		if p.String() != tt.want {
			t.Errorf("GetPath(%q) = %q, want %q", tt.in, p.String(), tt.want)
		}
	}
}

func TestGetPathEscapesRoot(t *testing.T) {
	fs := NewFileSystem()
	for _, in := range []string{"../secret", "/../secret", "a/../../b"} {
		if _, err := fs.GetPath(in); err == nil {
			t.Errorf("GetPath(%q) should fail", in)
		}
	}
}

func TestPathComponents(t *testing.T) {
	fs := NewFileSystem()
	p := mustPath(t, fs, "/OEBPS/styles/main.css")

	if got := p.Name(); got != "main.css" {
		t.Errorf("Name() = %q, want main.css", got)
	}
	if got := p.NameCount(); got != 3 {
		t.Errorf("NameCount() = %d, want 3", got)
	}
	if got := strings.Join(p.Segments(), ","); got != "OEBPS,styles,main.css" {
		t.Errorf("Segments() = %q", got)
	}
	if got := p.Parent().String(); got != "/OEBPS/styles" {
		t.Errorf("Parent() = %q, want /OEBPS/styles", got)
	}
	if !p.IsAbsolute() || p.IsRoot() {
		t.Errorf("IsAbsolute()/IsRoot() wrong for %q", p)
	}

	root := fs.Root()
	if root.Name() != "" || !root.IsRoot() {
		t.Error("root should have empty name and IsRoot() true")
	}
	if !root.Parent().Equals(root) {
		t.Error("root's parent should be the root itself")
	}
}

func TestPathResolve(t *testing.T) {
	fs := NewFileSystem()
	base := mustPath(t, fs, "/OEBPS")

	tests := []struct {
		name string
		want string
	}{
		{"chapter1.xhtml", "/OEBPS/chapter1.xhtml"},
		{"styles/main.css", "/OEBPS/styles/main.css"},
		{"../mimetype", "/mimetype"},
		{"/META-INF/container.xml", "/META-INF/container.xml"},
		{"", "/OEBPS"},
	}
	for _, tt := range tests {
		got, err := base.Resolve(tt.name)
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", tt.name, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.name, got.String(), tt.want)
		}
	}

	for _, name := range []string{"../../x", "a/../../../b", "/../secret"} {
		if _, err := base.Resolve(name); err == nil {
			t.Errorf("Resolve(%q) should fail, not clamp to the root", name)
		}
	}
	if _, err := fs.Root().Resolve("../escape"); err == nil {
		t.Error("resolving above the root should fail")
	}
}

func TestPathRelativize(t *testing.T) {
	fs := NewFileSystem()
	base := mustPath(t, fs, "/OEBPS")

	rel, err := base.Relativize(mustPath(t, fs, "/OEBPS/styles/main.css"))
	if err != nil {
		t.Fatalf("Relativize error = %v", err)
	}
	if rel.String() != "styles/main.css" {
		t.Errorf("Relativize = %q, want styles/main.css", rel.String())
	}

	self, err := base.Relativize(base)
	if err != nil {
		t.Fatalf("Relativize(self) error = %v", err)
	}
	if self.String() != "." {
		t.Errorf("Relativize(self) = %q, want .", self.String())
	}

	if _, err := base.Relativize(mustPath(t, fs, "/META-INF/container.xml")); err == nil {
		t.Error("relativizing a path outside the base should fail")
	}
}

func TestPathEqualsIsCaseSensitive(t *testing.T) {
	fs := NewFileSystem()
	a := mustPath(t, fs, "/OEBPS/ch1.xhtml")
	b := mustPath(t, fs, "/oebps/CH1.xhtml")
	if a.Equals(b) {
		t.Error("Equals should be case-sensitive")
	}
	if a.normalizedKey() != b.normalizedKey() {
		t.Error("normalizedKey should case-fold")
	}
}

func TestPathCompare(t *testing.T) {
	fs := NewFileSystem()
	a := mustPath(t, fs, "/a")
	b := mustPath(t, fs, "/b")
	if a.Compare(b) >= 0 || b.Compare(a) <= 0 || a.Compare(a) != 0 {
		t.Error("Compare ordering wrong")
	}
}

func TestForeignPathPanics(t *testing.T) {
	fs1 := NewFileSystem()
	fs2 := NewFileSystem()
	a := mustPath(t, fs1, "/a")
	b := mustPath(t, fs2, "/b")

	defer func() {
		if recover() == nil {
			t.Error("mixing paths from different filesystems should panic")
		}
	}()
	a.Compare(b)
}
