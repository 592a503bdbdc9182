package ingest

import (
	"fmt"
	"strings"
)

const maxCollectionNameLength = 120

// ValidateCollectionName guards collection names that arrive as untrusted
// input (route parameters, table IDs inside flow exports) before they are
// used as namespaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is empty")
	}
	if len(name) > maxCollectionNameLength {
		return fmt.Errorf("collection name exceeds %d characters", maxCollectionNameLength)
	}
	if strings.HasPrefix(name, "system.") {
		return fmt.Errorf("collection name %q uses a reserved namespace", name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return fmt.Errorf("collection name %q contains invalid character %q", name, r)
		}
	}
	return nil
}
