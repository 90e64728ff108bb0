// Package codec provides the JSON serializer injected into the sync services.
package codec

import (
	jsoniter "github.com/json-iterator/go"
)

// Codec parses and renders JSON documents.
type Codec interface {
	Parse(data []byte, v interface{}) error
	Stringify(v interface{}) ([]byte, error)
}

type jsonCodec struct {
	api jsoniter.API
}

// New returns a Codec compatible with encoding/json that decodes numbers as
// json.Number, so callers can tell 3 apart from 3.0.
func New() Codec {
	return &jsonCodec{
		api: jsoniter.Config{
			EscapeHTML:             true,
			SortMapKeys:            true,
			ValidateJsonRawMessage: true,
			UseNumber:              true,
		}.Froze(),
	}
}

func (c *jsonCodec) Parse(data []byte, v interface{}) error {
	return c.api.Unmarshal(data, v)
}

func (c *jsonCodec) Stringify(v interface{}) ([]byte, error) {
	return c.api.Marshal(v)
}
