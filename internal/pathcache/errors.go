package pathcache

import "fmt"

// DocumentError means the settings document exists but is not a JSON(C)
// object. Writes refuse to replace such a document.
type DocumentError struct {
	Path string
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("settings document %s is not a valid JSON object", e.Path)
}
