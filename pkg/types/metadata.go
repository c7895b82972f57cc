package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is free-form JSON detail attached to a record
type Metadata map[string]any

// Value encodes the map as a jsonb parameter
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan decodes a jsonb column delivered as bytes or text
func (m *Metadata) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("scan metadata: unsupported type %T", value)
	}
}
