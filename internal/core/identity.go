package core

import (
	"sync"

	"parlor/internal/models"
)

// IdentityBinding maps a display name to the single live connection using it,
// and back. At most one connection ever holds a given name; the name is
// released the instant its connection disconnects or is banned.
type IdentityBinding struct {
	mu     sync.RWMutex
	byName map[string]string // nickname -> connection id
	byConn map[string]string // connection id -> nickname
}

// NewIdentityBinding returns an empty binding table.
func NewIdentityBinding() *IdentityBinding {
	return &IdentityBinding{
		byName: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Claim binds nickname to connID. Re-claiming one's own binding is
// idempotent; claiming a name held by a different live connection fails.
// A connection switching names releases its previous one.
func (ib *IdentityBinding) Claim(nickname, connID string) error {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	if holder, ok := ib.byName[nickname]; ok {
		if holder == connID {
			return nil
		}
		return models.NewConflictError("nickname already in use")
	}

	if prev, ok := ib.byConn[connID]; ok && prev != nickname {
		delete(ib.byName, prev)
	}

	ib.byName[nickname] = connID
	ib.byConn[connID] = nickname
	return nil
}

// Release removes any binding held by connID and returns the released
// nickname. No-op if the connection holds none.
func (ib *IdentityBinding) Release(connID string) (string, bool) {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	nickname, ok := ib.byConn[connID]
	if !ok {
		return "", false
	}
	delete(ib.byConn, connID)
	delete(ib.byName, nickname)
	return nickname, true
}

// Lookup returns the connection currently bound to nickname.
func (ib *IdentityBinding) Lookup(nickname string) (string, bool) {
	ib.mu.RLock()
	defer ib.mu.RUnlock()
	connID, ok := ib.byName[nickname]
	return connID, ok
}

// NameOf returns the nickname bound to connID.
func (ib *IdentityBinding) NameOf(connID string) (string, bool) {
	ib.mu.RLock()
	defer ib.mu.RUnlock()
	nickname, ok := ib.byConn[connID]
	return nickname, ok
}
