package services

// Scope identifies the tenant partition and the effective identity every
// scoped operation runs under. Callers obtain a Scope from a granted access
// decision; constructing one by hand bypasses access resolution and is only
// appropriate in tests.
type Scope struct {
	NamespaceID string
	Identity    string
}
