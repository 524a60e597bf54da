package epub

import (
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"2.0", Version{Major: 2}, false},
		{"3.0", Version{Major: 3}, false},
		{"3.0.1", Version{Major: 3, Minor: 0, Patch: 1}, false},
		{"3.2", Version{Major: 3, Minor: 2}, false},
		{" 3.0 ", Version{Major: 3}, false},
		{"", Version{}, true},
		{"abc", Version{}, true},
		{"3.x", Version{}, true},
		{"-1.0", Version{}, true},
		{"1.2.3.4", Version{}, true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseVersion(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestVersionFormat(t *testing.T) {
	tests := []struct {
		v    Version
		want Format
	}{
		{Version{Major: 1, Minor: 9}, FormatUnknown},
		{Version{Major: 0}, FormatUnknown},
		{Version{Major: 2}, FormatEpub2},
		{Version{Major: 2, Minor: 0, Patch: 1}, FormatEpub2},
		{Version{Major: 3}, FormatEpub3},
		{Version{Major: 3, Patch: 1}, FormatEpub3},
		{Version{Major: 3, Minor: 1}, FormatEpub31},
		{Version{Major: 3, Minor: 2}, FormatEpub32},
		{Version{Major: 3, Minor: 3}, FormatEpub32},
		{Version{Major: 4}, FormatNotSupported},
		{Version{Major: 5}, FormatNotSupported},
	}
	for _, tt := range tests {
		if got := tt.v.Format(); got != tt.want {
			t.Errorf("Version(%s).Format() = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestVersionFormatDeterministic(t *testing.T) {
	v := Version{Major: 3, Minor: 2}
	first := v.Format()
	for i := 0; i < 10; i++ {
		if got := v.Format(); got != first {
			t.Fatalf("Format() not deterministic: %v then %v", first, got)
		}
	}
}

func TestResolveFormat(t *testing.T) {
	if _, err := ResolveFormat("3.1"); err == nil {
		t.Error("ResolveFormat(3.1) should fail: the revision was withdrawn")
	}
	if f, err := ResolveFormat("4.0"); err != nil || f != FormatNotSupported {
		t.Errorf("ResolveFormat(4.0) = %v, %v; want FormatNotSupported, nil", f, err)
	}
	if f, err := ResolveFormat("2.0"); err != nil || f != FormatEpub2 {
		t.Errorf("ResolveFormat(2.0) = %v, %v; want FormatEpub2, nil", f, err)
	}
	if _, err := ResolveFormat("bogus"); err == nil {
		t.Error("ResolveFormat(bogus) should fail")
	}
}

func TestFormatSupported(t *testing.T) {
	for f, want := range map[Format]bool{
		FormatUnknown:      false,
		FormatEpub2:        true,
		FormatEpub3:        true,
		FormatEpub31:       false,
		FormatEpub32:       true,
		FormatNotSupported: false,
	} {
		if got := f.Supported(); got != want {
			t.Errorf("%v.Supported() = %v, want %v", f, got, want)
		}
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b Version
		want int
	}{
		{Version{Major: 2}, Version{Major: 3}, -1},
		{Version{Major: 3}, Version{Major: 3}, 0},
		{Version{Major: 3, Minor: 2}, Version{Major: 3}, 1},
		{Version{Major: 3, Patch: 1}, Version{Major: 3}, 1},
	}
	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVersionString(t *testing.T) {
	if got := (Version{Major: 3}).String(); got != "3.0" {
		t.Errorf("String() = %q, want 3.0", got)
	}
	if got := (Version{Major: 3, Minor: 0, Patch: 1}).String(); got != "3.0.1" {
		t.Errorf("String() = %q, want 3.0.1", got)
	}

	// Rendering is normalized rather than byte-faithful to the input.
	v, err := ParseVersion("3")
	if err != nil {
		t.Fatalf("ParseVersion(3) error = %v", err)
	}
	if got := v.String(); got != "3.0" {
		t.Errorf("ParseVersion(3).String() = %q, want 3.0", got)
	}
}

func TestSetVersion(t *testing.T) {
	p := &PackageDocument{Version: Version{Major: 2}, Format: FormatEpub2}
	if err := p.SetVersion(Version{Major: 3, Minor: 2}); err != nil {
		t.Fatalf("SetVersion(3.2) error = %v", err)
	}
	if p.Format != FormatEpub32 {
		t.Errorf("Format = %v after SetVersion, want FormatEpub32", p.Format)
	}

	if err := p.SetVersion(Version{Major: 3, Minor: 1}); err == nil {
		t.Error("SetVersion(3.1) should fail")
	}
	if p.Version != (Version{Major: 3, Minor: 2}) {
		t.Errorf("failed SetVersion mutated the document: %v", p.Version)
	}
}
