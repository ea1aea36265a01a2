package miniserver

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Document is the Miniserver structure document: the JSON description of
// all controllable devices plus identity metadata. The bridge treats it
// as opaque apart from a handful of top-level identity fields; downstream
// consumers interpret the rest.
//
// A Document is immutable once fetched. Identity accessors are pure
// projections: they re-read the tree on every call and degrade to an
// absent value on missing or malformed data instead of failing.
type Document struct {
	root map[string]any
	raw  []byte
}

// Miniserver model codes as reported in msInfo.miniserverType.
var modelNames = map[int]string{
	0: "Miniserver Gen 1",
	1: "Miniserver Go",
	2: "Miniserver",
}

// modelUnknown is the fallback label for unrecognised model codes.
const modelUnknown = "Unknown Type"

// ParseDocument parses a structure document from its JSON encoding.
// The original bytes are retained for snapshot persistence.
func ParseDocument(data []byte) (*Document, error) {
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing structure document: %w", err)
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &Document{root: root, raw: raw}, nil
}

// NewDocument wraps an already-decoded structure tree.
// Used by tests and by fetcher implementations that decode elsewhere.
func NewDocument(root map[string]any) *Document {
	return &Document{root: root}
}

// JSON returns the document's original JSON encoding, or a re-encoding
// if the document was constructed from a decoded tree. Returns nil for
// a nil document.
func (d *Document) JSON() []byte {
	if d == nil {
		return nil
	}
	if d.raw != nil {
		return d.raw
	}
	data, err := json.Marshal(d.root)
	if err != nil {
		return nil
	}
	return data
}

// Serial returns the Miniserver serial number (msInfo.serialNr).
// The second return value is false if the field is missing or malformed.
func (d *Document) Serial() (string, bool) {
	return d.msInfoString("serialNr")
}

// Name returns the Miniserver display name (msInfo.msName).
func (d *Document) Name() (string, bool) {
	return d.msInfoString("msName")
}

// SoftwareVersion returns the firmware version as dot-joined numeric
// components: softwareVersion [10, 3, 2] yields "10.3.2".
func (d *Document) SoftwareVersion() (string, bool) {
	if d == nil || d.root == nil {
		return "", false
	}
	components, ok := d.root["softwareVersion"].([]any)
	if !ok {
		return "", false
	}
	parts := make([]string, 0, len(components))
	for _, c := range components {
		n, ok := c.(float64)
		if !ok {
			return "", false
		}
		parts = append(parts, formatVersionComponent(n))
	}
	return strings.Join(parts, "."), true
}

// TypeCode returns the raw model code (msInfo.miniserverType).
func (d *Document) TypeCode() (int, bool) {
	if d == nil || d.root == nil {
		return 0, false
	}
	info, ok := d.root["msInfo"].(map[string]any)
	if !ok {
		return 0, false
	}
	code, ok := info["miniserverType"].(float64)
	if !ok {
		return 0, false
	}
	return int(code), true
}

// Model returns the classified model label for the Miniserver's type
// code. Unknown codes map to a generic fallback label; a missing or
// malformed code is reported as absent.
func (d *Document) Model() (string, bool) {
	code, ok := d.TypeCode()
	if !ok {
		return "", false
	}
	return ModelName(code), true
}

// ModelName classifies a Miniserver type code into its model label.
func ModelName(code int) string {
	if name, ok := modelNames[code]; ok {
		return name
	}
	return modelUnknown
}

// msInfoString reads a string field from the msInfo object.
func (d *Document) msInfoString(key string) (string, bool) {
	if d == nil || d.root == nil {
		return "", false
	}
	info, ok := d.root["msInfo"].(map[string]any)
	if !ok {
		return "", false
	}
	value, ok := info[key].(string)
	if !ok {
		return "", false
	}
	return value, true
}

// formatVersionComponent renders a JSON number the way the Miniserver
// presents version components: integral values without a decimal point.
func formatVersionComponent(n float64) string {
	if n == math.Trunc(n) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
