package port

import "context"

type Role string

const (
	RoleBuyer          Role = "buyer"
	RoleInventoryOwner Role = "inventory_owner"
)

// Principal is the already-authenticated caller as supplied by the identity
// collaborator. The engine trusts it and never re-derives identity.
type Principal struct {
	ID   string
	Role Role
}

// Authorizer is the capability supplied by the authorization collaborator.
// Owns reports whether the principal owns the inventory item; the transport
// layer consults it before invoking a cancellation on someone else's booking.
type Authorizer interface {
	Owns(ctx context.Context, p Principal, itemID string) (bool, error)
}
