// Package metadata reads the sync metadata embedded in opaque entity
// snapshots sent by clients.
package metadata

import (
	"math"
	"strconv"
	"strings"

	"taskflow-sync-server/internal/codec"
)

const (
	versionField = "version"
	teamIDField  = "teamId"
)

// Metadata is the typed view of a snapshot's sync fields. TeamID is empty
// when the snapshot is not shared with a team.
type Metadata struct {
	Version int
	TeamID  string
}

// HasTeam reports whether the snapshot names a team.
func (m Metadata) HasTeam() bool {
	return m.TeamID != ""
}

type number interface {
	Int64() (int64, error)
	String() string
}

// Extractor parses snapshot metadata. Parsing is best effort: any payload
// that cannot be read yields version 0 and no team.
type Extractor struct {
	codec codec.Codec
}

func NewExtractor(c codec.Codec) *Extractor {
	return &Extractor{codec: c}
}

// Parse never fails. Malformed, empty or non-object payloads degrade to the
// zero Metadata, and each field falls back to its default on its own.
func (e *Extractor) Parse(raw string) (meta Metadata) {
	defer func() {
		if recover() != nil {
			meta = Metadata{}
		}
	}()

	if strings.TrimSpace(raw) == "" {
		return Metadata{}
	}

	var doc map[string]interface{}
	if err := e.codec.Parse([]byte(raw), &doc); err != nil || doc == nil {
		return Metadata{}
	}

	return Metadata{
		Version: versionOf(doc[versionField]),
		TeamID:  teamIDOf(doc[teamIDField]),
	}
}

// Version is a shorthand for Parse(raw).Version.
func (e *Extractor) Version(raw string) int {
	return e.Parse(raw).Version
}

// versionOf accepts 32-bit integers and base-10 integer strings.
func versionOf(v interface{}) int {
	switch val := v.(type) {
	case number:
		n, err := val.Int64()
		if err != nil || n < math.MinInt32 || n > math.MaxInt32 {
			return 0
		}
		return int(n)
	case float64:
		if val != math.Trunc(val) || val < math.MinInt32 || val > math.MaxInt32 {
			return 0
		}
		return int(val)
	case string:
		n, err := strconv.ParseInt(val, 10, 32)
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

// teamIDOf renders scalar values as text. Objects, arrays and null carry no team.
func teamIDOf(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
