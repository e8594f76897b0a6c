package service

import (
	"sync"

	"github.com/lyzr/registry/cmd/registry/models"
)

// AccessGate authorizes callers against the service owner and against an
// asset's owner. The two checks are independent; the registry composes them.
type AccessGate struct {
	mu    sync.RWMutex
	owner models.Principal
}

// NewAccessGate creates a gate with no owner; every owner check fails until
// SetOwner is called
func NewAccessGate() *AccessGate {
	return &AccessGate{}
}

// SetOwner records the persisted service owner
func (g *AccessGate) SetOwner(owner models.Principal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.owner = owner
}

// Owner returns the service owner, "" before SetOwner
func (g *AccessGate) Owner() models.Principal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owner
}

// AuthorizeOwner fails with ErrUnauthorized unless caller is the service owner
func (g *AccessGate) AuthorizeOwner(caller models.Principal) error {
	owner := g.Owner()
	if caller.IsAnonymous() || owner.IsAnonymous() || caller.String() != owner.String() {
		return models.ErrUnauthorized
	}
	return nil
}

// AuthorizeAssetOwner fails with ErrNotFound for a nil asset and
// ErrUnauthorized unless caller uploaded it
func (g *AccessGate) AuthorizeAssetOwner(caller models.Principal, asset *models.Asset) error {
	if asset == nil {
		return models.ErrNotFound
	}
	if caller.IsAnonymous() || caller.String() != asset.Owner.String() {
		return models.ErrUnauthorized
	}
	return nil
}
