package archive

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

// packageInfoIdentifier returns the identifier attribute of a PackageInfo
// document's root pkg-info element.
func packageInfoIdentifier(data []byte) string {
	var found string
	walkElements(data, func(el xml.StartElement) bool {
		if el.Name.Local != "pkg-info" {
			return true
		}
		found = attrValue(el, "identifier")
		return false
	})
	return found
}

// distributionCandidates returns pkg-ref ids followed by bundle ids, each in
// document order and de-duplicated.
func distributionCandidates(data []byte) []string {
	var refs, bundles []string
	walkElements(data, func(el xml.StartElement) bool {
		switch el.Name.Local {
		case "pkg-ref":
			if id := attrValue(el, "id"); id != "" {
				refs = append(refs, id)
			}
		case "bundle":
			if id := attrValue(el, "id"); id != "" {
				bundles = append(bundles, id)
			}
		}
		return true
	})
	seen := make(map[string]struct{}, len(refs)+len(bundles))
	out := make([]string, 0, len(refs)+len(bundles))
	for _, id := range append(refs, bundles...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// walkElements visits start elements until fn returns false or the document
// ends. Malformed trailing content stops the walk without error so partial
// documents still yield what precedes the damage.
func walkElements(data []byte, fn func(xml.StartElement) bool) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if el, ok := tok.(xml.StartElement); ok {
			if !fn(el) {
				return
			}
		}
	}
}

func attrValue(el xml.StartElement, name string) string {
	for _, attr := range el.Attr {
		if attr.Name.Local == name {
			return strings.TrimSpace(attr.Value)
		}
	}
	return ""
}
