package matching

import (
	"testing"

	"github.com/getstubd/stubd/pkg/message"
)

func TestJSONPathResolver(t *testing.T) {
	r, err := NewJSONPathResolver("$.order.type")
	if err != nil {
		t.Fatalf("NewJSONPathResolver failed: %v", err)
	}

	tests := []struct {
		name    string
		payload string
		want    string
		wantOK  bool
	}{
		{
			name:    "string match",
			payload: `{"order":{"type":"createOrder","id":1}}`,
			want:    "createOrder",
			wantOK:  true,
		},
		{
			name:    "path missing",
			payload: `{"order":{"id":1}}`,
			wantOK:  false,
		},
		{
			name:    "non-string value",
			payload: `{"order":{"type":42}}`,
			wantOK:  false,
		},
		{
			name:    "not JSON",
			payload: `<xml/>`,
			wantOK:  false,
		},
		{
			name:    "empty payload",
			payload: ``,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(message.NewInbound(tt.payload))
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Resolve = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestJSONPathResolver_InvalidPath(t *testing.T) {
	if _, err := NewJSONPathResolver("$..["); err == nil {
		t.Fatal("expected error for invalid JSONPath")
	}
}

func TestXMLResolver_SOAPBodyOperation(t *testing.T) {
	r, err := NewXMLResolver("", false)
	if err != nil {
		t.Fatalf("NewXMLResolver failed: %v", err)
	}

	payload := `<?xml version="1.0"?>
<Envelope xmlns="http://schemas.xmlsoap.org/soap/envelope/">
  <Body>
    <createOrder xmlns="http://example.com/orders"><id>1</id></createOrder>
  </Body>
</Envelope>`

	got, ok := r.Resolve(message.NewInbound(payload))
	if !ok || got != "createOrder" {
		t.Errorf("Resolve = (%q, %v), want (createOrder, true)", got, ok)
	}
}

func TestXMLResolver_RootFallback(t *testing.T) {
	r, err := NewXMLResolver("", false)
	if err != nil {
		t.Fatalf("NewXMLResolver failed: %v", err)
	}

	got, ok := r.Resolve(message.NewInbound(`<fax:sendFax xmlns:fax="urn:fax"><to>1</to></fax:sendFax>`))
	if !ok || got != "sendFax" {
		t.Errorf("Resolve = (%q, %v), want local name of root element", got, ok)
	}
}

func TestXMLResolver_TextContent(t *testing.T) {
	r, err := NewXMLResolver("//request/scenario", true)
	if err != nil {
		t.Fatalf("NewXMLResolver failed: %v", err)
	}

	got, ok := r.Resolve(message.NewInbound(`<request><scenario> createOrder </scenario></request>`))
	if !ok || got != "createOrder" {
		t.Errorf("Resolve = (%q, %v), want trimmed text content", got, ok)
	}
}

func TestXMLResolver_MalformedXML(t *testing.T) {
	r, err := NewXMLResolver("", false)
	if err != nil {
		t.Fatalf("NewXMLResolver failed: %v", err)
	}
	if _, ok := r.Resolve(message.NewInbound(`{"not":"xml"}`)); ok {
		t.Error("malformed XML should not resolve")
	}
}

func TestExprResolver(t *testing.T) {
	r, err := NewExprResolver(`headers["X-Stub-Method"] == "POST" ? "createOrder" : ""`)
	if err != nil {
		t.Fatalf("NewExprResolver failed: %v", err)
	}

	post := message.NewInbound("x").SetHeader(message.HeaderMethod, "POST")
	got, ok := r.Resolve(post)
	if !ok || got != "createOrder" {
		t.Errorf("Resolve = (%q, %v), want (createOrder, true)", got, ok)
	}

	get := message.NewInbound("x").SetHeader(message.HeaderMethod, "GET")
	if _, ok := r.Resolve(get); ok {
		t.Error("empty expression result should mean no mapping")
	}
}

func TestExprResolver_InvalidExpression(t *testing.T) {
	if _, err := NewExprResolver(`1 + `); err == nil {
		t.Fatal("expected compile error")
	}
}
