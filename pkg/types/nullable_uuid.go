package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NullableUUID distinguishes an absent JSON field from an explicit null.
// Set is true once the field appears in the payload; Value stays nil for null.
type NullableUUID struct {
	Set   bool
	Value *uuid.UUID
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableUUID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	n.Set = true
	n.Value = nil
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var raw string
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("uuid must be a string or null: %w", err)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid uuid %q: %w", raw, err)
	}
	if parsed == uuid.Nil {
		return nil
	}
	n.Value = &parsed
	return nil
}

// MarshalJSON emits null for an unset or cleared value.
func (n NullableUUID) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value.String())
}
