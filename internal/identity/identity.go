// Package identity defines the single partition key for all learner state.
// Every aggregate in the system is scoped to exactly one Identity: either an
// authenticated user or an anonymous session, never both.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind distinguishes authenticated users from anonymous sessions.
type Kind string

const (
	KindUser      Kind = "user"
	KindAnonymous Kind = "anonymous"
)

// Identity is the resolved partition key for a request. Construct it with
// User or Anonymous; the zero value is invalid.
type Identity struct {
	Kind Kind
	ID   string
}

// User returns the identity for an authenticated user ID.
func User(id string) Identity {
	return Identity{Kind: KindUser, ID: id}
}

// Anonymous returns the identity for an anonymous session ID.
func Anonymous(id string) Identity {
	return Identity{Kind: KindAnonymous, ID: id}
}

// NewAnonymous mints a fresh anonymous session identity.
func NewAnonymous() Identity {
	return Anonymous(uuid.NewString())
}

// Valid reports whether the identity carries a usable key.
func (i Identity) Valid() bool {
	return (i.Kind == KindUser || i.Kind == KindAnonymous) && i.ID != ""
}

// String renders the identity as kind:id, usable as a log tag.
func (i Identity) String() string {
	return fmt.Sprintf("%s:%s", i.Kind, i.ID)
}
