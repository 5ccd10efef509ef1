package shortener

import "context"

// Store is the persistence contract for links. Implementations must be safe
// for concurrent use and must enforce key uniqueness at the storage layer:
// CreateLink either commits the full row or leaves the store untouched.
//
// Errors carry errx kinds: Conflict when the key already exists, NotFound
// when a key is absent on lookup, Unavailable when the backing medium fails.
type Store interface {
	CreateLink(ctx context.Context, link Link) error
	ResolveLink(ctx context.Context, key string) (Link, error)
}
