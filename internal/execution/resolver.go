package execution

import (
	"os"
	"path/filepath"
)

// DefaultCommand is the unqualified runner name resolved via PATH when no
// override and no vendored binary exist.
const DefaultCommand = "codecept"

// Resolver decides which external executable to invoke for a workspace
// root.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the command for root. A non-empty override is used
// verbatim (joined to root when relative, no existence check). Otherwise
// the vendored binary under vendor/bin is preferred over the command on
// PATH; the two can be different versions, so the local-first check is
// deliberate.
func (r *Resolver) Resolve(root, override string) string {
	if override != "" {
		if filepath.IsAbs(override) {
			return override
		}
		return filepath.Join(root, override)
	}
	vendored := filepath.Join(root, "vendor", "bin", DefaultCommand)
	if _, err := os.Stat(vendored); err == nil {
		return vendored
	}
	return DefaultCommand
}
