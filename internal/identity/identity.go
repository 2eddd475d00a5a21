// Package identity exposes the auth collaborator: who the current user
// is, if anyone. Guest fallback lives in the storage layer, not here.
package identity

// Provider reports the current identity. The second return is false
// when nobody is signed in.
type Provider interface {
	CurrentID() (string, bool)
}

// Static is a fixed identity, as supplied by a CLI flag or a test.
// An empty ID means guest.
type Static struct {
	ID string
}

// CurrentID returns the fixed identity
func (s Static) CurrentID() (string, bool) {
	return s.ID, s.ID != ""
}
