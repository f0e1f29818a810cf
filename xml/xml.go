// Package xml provides an XML codec implementation.
//
// Types with veil-tagged fields are marshaled through a generated wire
// struct that carries no XMLName, so the root element takes the
// generated type's name. Prefer json, msgpack, yaml, or cbor for
// tokenized types when the root element name matters.
package xml

import (
	"encoding/xml"

	"github.com/veilkit/veil"
)

// xmlCodec implements veil.Codec for XML.
type xmlCodec struct{}

// New returns an XML codec.
func New() veil.Codec {
	return &xmlCodec{}
}

// ContentType returns the MIME type for XML.
func (c *xmlCodec) ContentType() string {
	return "application/xml"
}

// Marshal encodes v as XML.
func (c *xmlCodec) Marshal(v any) ([]byte, error) {
	return xml.Marshal(v)
}

// Unmarshal decodes XML data into v.
func (c *xmlCodec) Unmarshal(data []byte, v any) error {
	return xml.Unmarshal(data, v)
}
