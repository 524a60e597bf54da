package epub

import (
	"errors"
	"strings"

	"github.com/beevik/etree"
)

// ErrDRMProtected indicates the ePub is protected by DRM (e.g., Adobe
// ADEPT, Apple FairPlay, Readium LCP) and cannot be modelled.
var ErrDRMProtected = errors.New("epub: file is DRM protected")

// Well-known META-INF paths involved in encryption detection.
const (
	encryptionFilePath = "META-INF/encryption.xml"
	sinfFilePath       = "META-INF/sinf.xml"
)

// Font obfuscation algorithm URIs; these do NOT constitute DRM.
var fontObfuscationAlgorithms = map[string]bool{
	"http://www.idpf.org/2008/embedding": true, // IDPF font obfuscation
	"http://ns.adobe.com/pdf/enc#RC":     true, // Adobe font obfuscation
}

// Known DRM namespace prefixes found in KeyInfo children or algorithm URIs.
var drmSignatures = []string{
	"http://ns.adobe.com/adept",      // Adobe ADEPT
	"http://readium.org/2014/01/lcp", // Readium LCP
}

// checkEncryption inspects META-INF/encryption.xml (if present) and
// decides whether the container is DRM-protected or merely uses font
// obfuscation.
//
// Returns:
//   - (false, nil)             – no encryption.xml, or no EncryptedData
//   - (true,  nil)             – only font obfuscation entries detected
//   - (false, ErrDRMProtected) – real DRM encryption detected
func checkEncryption(fs *FileSystem) (fontObfuscation bool, err error) {
	// Apple FairPlay indicator first.
	if p, err := fs.GetPath(sinfFilePath); err == nil && fs.Exists(p) {
		return false, ErrDRMProtected
	}

	p, err := fs.GetPath(encryptionFilePath)
	if err != nil || !fs.Exists(p) {
		return false, nil
	}

	data, err := fs.readFileAt(p)
	if err != nil {
		return false, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(stripBOM(data)); err != nil {
		// Unparseable encryption descriptors are treated conservatively
		// as potential DRM.
		return false, ErrDRMProtected
	}
	root := doc.Root()
	if root == nil {
		return false, nil
	}

	encrypted := childrenOf(root, "EncryptedData")
	if len(encrypted) == 0 {
		return false, nil
	}

	for _, ed := range encrypted {
		var algo string
		if method := optChild(ed, "EncryptionMethod"); method != nil {
			algo, _ = optAttr(method, "Algorithm")
		}

		if fontObfuscationAlgorithms[algo] {
			fontObfuscation = true
			continue
		}
		if isDRMSignature(algo) {
			return false, ErrDRMProtected
		}
		if keyInfo := optChild(ed, "KeyInfo"); keyInfo != nil {
			var inner strings.Builder
			for _, c := range keyInfo.ChildElements() {
				inner.WriteString(c.FullTag())
				for _, a := range c.Attr {
					inner.WriteString(a.Value)
				}
			}
			if isDRMSignature(inner.String()) {
				return false, ErrDRMProtected
			}
		}

		// Any EncryptedData that is not font obfuscation is treated as DRM.
		return false, ErrDRMProtected
	}

	return fontObfuscation, nil
}

// isDRMSignature checks whether s contains any known DRM namespace or
// identifier.
func isDRMSignature(s string) bool {
	for _, sig := range drmSignatures {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}
