package interfaces

import "inkboard/pkg/types"

// IdentityStore persists the session identity across process
// restarts. Load returns (nil, nil) when nothing is stored.
type IdentityStore interface {
	Load() (*types.Identity, error)
	Save(identity *types.Identity) error
	Clear() error
	Close() error
}
