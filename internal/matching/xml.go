package matching

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/getstubd/stubd/pkg/message"
)

// XMLResolver resolves the scenario name from an XML payload.
//
// With an element path configured (etree path syntax, e.g.
// "//Envelope/Body/*"), the local name of the first matching element is
// used, following the SOAP convention of naming the scenario after the
// body's operation element. With a path and a text flag, the element's
// text content is used instead.
type XMLResolver struct {
	path    etree.Path
	useText bool
}

// NewXMLResolver compiles the element path. An empty path defaults to the
// first child element of a SOAP-style Body, falling back to the document
// root element.
func NewXMLResolver(path string, useText bool) (*XMLResolver, error) {
	if path == "" {
		path = "//Body/*[1]"
	}
	compiled, err := etree.CompilePath(path)
	if err != nil {
		return nil, err
	}
	return &XMLResolver{path: compiled, useText: useText}, nil
}

// Resolve implements Resolver. Malformed XML is "no mapping".
func (r *XMLResolver) Resolve(m *message.Message) (string, bool) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(m.Payload); err != nil {
		return "", false
	}
	el := doc.FindElementPath(r.path)
	if el == nil {
		el = doc.Root()
		if el == nil {
			return "", false
		}
	}
	// Element.Tag is the local name, so namespace prefixes never leak
	// into scenario names.
	name := el.Tag
	if r.useText {
		name = strings.TrimSpace(el.Text())
	}
	return name, name != ""
}
