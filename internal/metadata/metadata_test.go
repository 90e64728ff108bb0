package metadata

import (
	"testing"

	"taskflow-sync-server/internal/codec"

	"github.com/stretchr/testify/assert"
)

func TestExtractor_Parse(t *testing.T) {
	extractor := NewExtractor(codec.New())

	tests := []struct {
		name        string
		raw         string
		wantVersion int
		wantTeam    string
	}{
		{name: "integer version and team", raw: `{"version":3,"teamId":"G"}`, wantVersion: 3, wantTeam: "G"},
		{name: "numeric string version", raw: `{"version":"7"}`, wantVersion: 7},
		{name: "negative version", raw: `{"version":-2}`, wantVersion: -2},
		{name: "fractional version", raw: `{"version":2.5}`, wantVersion: 0},
		{name: "float with zero fraction", raw: `{"version":2.0}`, wantVersion: 0},
		{name: "exponent version", raw: `{"version":1e2}`, wantVersion: 0},
		{name: "version out of int32 range", raw: `{"version":4294967296}`, wantVersion: 0},
		{name: "non numeric string version", raw: `{"version":"v3"}`, wantVersion: 0},
		{name: "boolean version", raw: `{"version":true}`, wantVersion: 0},
		{name: "object version", raw: `{"version":{"n":1}}`, wantVersion: 0},
		{name: "missing version", raw: `{"title":"Buy milk"}`, wantVersion: 0},
		{name: "numeric team", raw: `{"version":1,"teamId":42}`, wantVersion: 1, wantTeam: "42"},
		{name: "boolean team", raw: `{"teamId":false}`, wantTeam: "false"},
		{name: "null team", raw: `{"version":1,"teamId":null}`, wantVersion: 1},
		{name: "array team", raw: `{"teamId":["G"]}`},
		{name: "empty team", raw: `{"version":4,"teamId":""}`, wantVersion: 4},
		{name: "malformed json", raw: `{"version":3,`},
		{name: "top level array", raw: `[{"version":3}]`},
		{name: "top level string", raw: `"version"`},
		{name: "null document", raw: `null`},
		{name: "empty input", raw: ``},
		{name: "whitespace input", raw: "  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := extractor.Parse(tt.raw)

			assert.Equal(t, tt.wantVersion, meta.Version)
			assert.Equal(t, tt.wantTeam, meta.TeamID)
			assert.Equal(t, tt.wantTeam != "", meta.HasTeam())
		})
	}
}

type panickingCodec struct{}

func (panickingCodec) Parse(data []byte, v interface{}) error { panic("boom") }

func (panickingCodec) Stringify(v interface{}) ([]byte, error) { panic("boom") }

func TestExtractor_ParseRecoversFromCodecPanic(t *testing.T) {
	extractor := NewExtractor(panickingCodec{})

	assert.NotPanics(t, func() {
		assert.Equal(t, Metadata{}, extractor.Parse(`{"version":1}`))
	})
}

func TestExtractor_Version(t *testing.T) {
	extractor := NewExtractor(codec.New())

	assert.Equal(t, 9, extractor.Version(`{"version":9,"teamId":"G"}`))
	assert.Equal(t, 0, extractor.Version("not json"))
}
