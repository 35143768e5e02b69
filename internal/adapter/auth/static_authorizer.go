package auth

import (
	"context"
	"sync"

	"github.com/tickethub/booking-engine/internal/port"
)

// StaticAuthorizer is a port.Authorizer backed by an in-process ownership
// table. It stands in for the real authorization collaborator in tests and
// single-node deployments.
type StaticAuthorizer struct {
	mu     sync.RWMutex
	owners map[string]string // item id -> owner principal id
}

func NewStaticAuthorizer() *StaticAuthorizer {
	return &StaticAuthorizer{owners: make(map[string]string)}
}

// Grant records ownerID as the inventory owner of itemID.
func (a *StaticAuthorizer) Grant(itemID, ownerID string) {
	a.mu.Lock()
	a.owners[itemID] = ownerID
	a.mu.Unlock()
}

func (a *StaticAuthorizer) Owns(ctx context.Context, p port.Principal, itemID string) (bool, error) {
	if p.Role != port.RoleInventoryOwner {
		return false, nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.owners[itemID] == p.ID, nil
}
