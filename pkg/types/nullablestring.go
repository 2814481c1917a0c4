// Package types provides optional JSON scalars for response shapes in which
// an absent field and an empty field mean different things.
package types

import "encoding/json"

// NullableString represents a string field that may be missing or null.
// Valid is true when the field was present with a non-null value, even if
// that value is the empty string.
type NullableString struct {
	Value string
	Valid bool
}

// String returns the value, or an empty string when absent.
func (ns NullableString) String() string {
	if ns.Valid {
		return ns.Value
	}
	return ""
}

// IsNil reports whether the field was absent or null.
func (ns NullableString) IsNil() bool {
	return !ns.Valid
}

// OrElse returns the value when present and def otherwise.
func (ns NullableString) OrElse(def string) string {
	if ns.Valid {
		return ns.Value
	}
	return def
}

// Set assigns a value and marks it present.
func (ns *NullableString) Set(value string) {
	ns.Value = value
	ns.Valid = true
}

// MarshalJSON encodes an absent value as null.
func (ns NullableString) MarshalJSON() ([]byte, error) {
	if ns.Valid {
		return json.Marshal(ns.Value)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts a JSON string or null.
func (ns *NullableString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		ns.Value = ""
		ns.Valid = false
		return nil
	}
	if err := json.Unmarshal(data, &ns.Value); err != nil {
		return err
	}
	ns.Valid = true
	return nil
}

var _ json.Marshaler = NullableString{}
var _ json.Unmarshaler = &NullableString{}
