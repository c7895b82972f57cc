package types

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// GenerateActionID generates a time-sortable auto-heal action ID with prefix
func GenerateActionID() string {
	return fmt.Sprintf("heal_%s", ksuid.New().String())
}

// GenerateEventID generates a security event ID with prefix
func GenerateEventID() string {
	return fmt.Sprintf("sev_%s", ksuid.New().String())
}

// GenerateID generates a generic time-sortable unique ID
func GenerateID() string {
	return ksuid.New().String()
}
