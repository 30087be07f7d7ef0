package codec

import "encoding/json"

// JSON is the standard-library codec. It produces the same bytes as GoJSON
// for the plain structs the manifest uses.
type JSON struct{}

// Marshal encodes v.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// MarshalIndent encodes v for human inspection.
func (JSON) MarshalIndent(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

// Unmarshal decodes data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns "json".
func (JSON) Name() string { return "json" }
