// Package auth exposes the identity boundary used by synchronization.
// Sign-in itself is handled by an external identity provider.
package auth

import (
	"context"
	"strings"
	"sync"
)

// StaticIdentity holds the user id handed over by the identity provider.
// An empty id means nobody is signed in.
type StaticIdentity struct {
	userID string
	mu     sync.RWMutex
}

// NewStaticIdentity creates an identity for userID.
func NewStaticIdentity(userID string) *StaticIdentity {
	return &StaticIdentity{userID: strings.TrimSpace(userID)}
}

// CurrentUser implements service.Identity.
func (i *StaticIdentity) CurrentUser(_ context.Context) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.userID, i.userID != ""
}

// SignIn replaces the current user.
func (i *StaticIdentity) SignIn(userID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.userID = strings.TrimSpace(userID)
}

// SignOut clears the current user.
func (i *StaticIdentity) SignOut() {
	i.SignIn("")
}
