package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// buildTestZip creates an in-memory ZIP archive from the provided files
// map (path → content) and returns a *zip.Reader over the resulting
// bytes. It calls t.Fatal on any error.
func buildTestZip(t *testing.T, files map[string]string) *zip.Reader {
	t.Helper()
	data := buildTestEPubBytes(t, files)
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("buildTestZip: open reader: %v", err)
	}
	return r
}

// buildTestEPubBytes creates an in-memory ZIP archive intended to
// simulate an ePub. When a mimetype entry is present it is written first
// and uncompressed, as the container format requires.
func buildTestEPubBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	if mt, ok := files["mimetype"]; ok {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
		if err != nil {
			t.Fatalf("buildTestEPubBytes: create mimetype: %v", err)
		}
		if _, err := io.WriteString(fw, mt); err != nil {
			t.Fatalf("buildTestEPubBytes: write mimetype: %v", err)
		}
	}
	for name, content := range files {
		if name == "mimetype" {
			continue
		}
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("buildTestEPubBytes: create %s: %v", name, err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			t.Fatalf("buildTestEPubBytes: write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("buildTestEPubBytes: close writer: %v", err)
	}
	return buf.Bytes()
}

// buildTestEPubFile writes an ePub (ZIP) archive to a temporary file and
// returns the file path. Useful for testing Open(), which needs a path.
func buildTestEPubFile(t *testing.T, files map[string]string) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), "test.epub")
	if err := os.WriteFile(fp, buildTestEPubBytes(t, files), 0o644); err != nil {
		t.Fatalf("buildTestEPubFile: %v", err)
	}
	return fp
}

// newTestFS builds a FileSystem from a files map via the zip loader.
func newTestFS(t *testing.T, files map[string]string) *FileSystem {
	t.Helper()
	fs, err := newFileSystemFromZip(buildTestZip(t, files))
	if err != nil {
		t.Fatalf("newTestFS: %v", err)
	}
	return fs
}

// mustPath builds a Path or fails the test.
func mustPath(t *testing.T, fs *FileSystem, s string) Path {
	t.Helper()
	p, err := fs.GetPath(s)
	if err != nil {
		t.Fatalf("GetPath(%q): %v", s, err)
	}
	return p
}

const validContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const epub2OPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:identifier id="uid" opf:scheme="UUID">urn:uuid:6f9b2c44-0a5e-4d77-8e61-2b3f9f6da001</dc:identifier>
    <dc:title>An Old Book</dc:title>
    <dc:language>en</dc:language>
    <dc:creator opf:role="aut" opf:file-as="Author, Test">Test Author</dc:creator>
    <meta name="cover" content="ch1"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="ch1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="chapter2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="ch2" linear="no"/>
  </spine>
  <guide>
    <reference type="toc" title="Contents" href="chapter1.xhtml"/>
    <reference type="other.copyright" title="Copyright" href="chapter2.xhtml"/>
  </guide>
</package>`

const epub3OPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="uid">urn:uuid:8faa7a02-95b6-44b8-9f5d-0a3e1cf7c002</dc:identifier>
    <dc:title id="title">A New Book</dc:title>
    <dc:language>en</dc:language>
    <dc:creator id="creator">Test Author</dc:creator>
    <meta property="dcterms:modified">2024-01-01T00:00:00Z</meta>
    <meta refines="#creator" property="role" scheme="marc:relators" id="role">aut</meta>
    <meta refines="#title" property="title-type">main</meta>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ch1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="chapter2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

const validNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="urn:uuid:6f9b2c44-0a5e-4d77-8e61-2b3f9f6da001"/>
    <meta name="dtb:depth" content="2"/>
  </head>
  <docTitle><text>An Old Book</text></docTitle>
  <navMap>
    <navPoint id="np-1" playOrder="1">
      <navLabel><text>Chapter One</text></navLabel>
      <content src="chapter1.xhtml"/>
    </navPoint>
    <navPoint id="np-2" playOrder="2">
      <navLabel><text>Chapter Two</text></navLabel>
      <content src="chapter2.xhtml"/>
      <navPoint id="np-3" playOrder="3">
        <navLabel><text>Section One</text></navLabel>
        <content src="chapter2.xhtml#s1"/>
      </navPoint>
    </navPoint>
  </navMap>
</ncx>`

const validNavDoc = `<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Navigation</title></head>
<body>
<nav epub:type="toc">
  <h1>Contents</h1>
  <ol>
    <li><a href="chapter1.xhtml">Chapter One</a></li>
    <li><a href="chapter2.xhtml">Chapter Two</a>
      <ol><li><a href="chapter2.xhtml#s1">Section One</a></li></ol>
    </li>
  </ol>
</nav>
<nav epub:type="landmarks">
  <h2>Landmarks</h2>
  <ol><li><a href="chapter1.xhtml">Start</a></li></ol>
</nav>
</body>
</html>`

const chapterXHTML = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>Ch</title></head>
<body><p>content</p></body></html>`

// epub2Files returns a complete, valid EPUB 2 archive layout.
func epub2Files() map[string]string {
	return map[string]string{
		"mimetype":               expectedMimetype,
		"META-INF/container.xml": validContainerXML,
		"OEBPS/content.opf":      epub2OPF,
		"OEBPS/toc.ncx":          validNCX,
		"OEBPS/chapter1.xhtml":   chapterXHTML,
		"OEBPS/chapter2.xhtml":   chapterXHTML,
	}
}

// epub3Files returns a complete, valid EPUB 3 archive layout.
func epub3Files() map[string]string {
	return map[string]string{
		"mimetype":               expectedMimetype,
		"META-INF/container.xml": validContainerXML,
		"OEBPS/content.opf":      epub3OPF,
		"OEBPS/nav.xhtml":        validNavDoc,
		"OEBPS/chapter1.xhtml":   chapterXHTML,
		"OEBPS/chapter2.xhtml":   chapterXHTML,
	}
}
