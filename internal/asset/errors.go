package asset

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle. Path starts and ends with the same
// asset.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// UnknownAssetError reports a reference to an undeclared asset. ReferencedBy
// is empty when the name came from a job selection.
type UnknownAssetError struct {
	Name         string
	ReferencedBy string
}

func (e *UnknownAssetError) Error() string {
	if e.ReferencedBy == "" {
		return fmt.Sprintf("unknown asset %q", e.Name)
	}
	return fmt.Sprintf("unknown asset %q referenced by %q", e.Name, e.ReferencedBy)
}
