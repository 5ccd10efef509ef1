package shortener

import (
	"context"
	"errors"

	"github.com/nkemjika/shortlinks/internal/errx"
	"github.com/nkemjika/shortlinks/internal/keygen"
)

// MaxKeyLength bounds keys accepted on the resolve path. Generated keys are
// far shorter, so an over-long key cannot exist in the store; the guard
// short-circuits the lookup and reports the same absence the store would.
const MaxKeyLength = 64

// Service defines the business logic operations for URL shortening.
type Service interface {
	Create(ctx context.Context, uri string) (Link, error)
	Resolve(ctx context.Context, key string) (string, error)
}

// service implements the Service interface.
type service struct {
	store Store
	keys  keygen.Generator
}

// NewService creates a new service instance.
func NewService(store Store, keys keygen.Generator) Service {
	return &service{
		store: store,
		keys:  keys,
	}
}

// Create derives a key for uri and persists the pair. Two creations inside
// the same millisecond collide on the generated key; the store rejects the
// second and the Conflict is surfaced to the caller rather than retried
// here, so a client can decide whether to resubmit.
func (s *service) Create(ctx context.Context, uri string) (Link, error) {
	const op = "shortener.service.Create"

	if uri == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("url cannot be empty"))
	}

	link := Link{
		Key: s.keys.Generate(),
		URI: uri,
	}

	if err := s.store.CreateLink(ctx, link); err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

// Resolve returns the URI stored under key. An absent key is an expected
// outcome and comes back as errx.NotFound, not a fault.
func (s *service) Resolve(ctx context.Context, key string) (string, error) {
	const op = "shortener.service.Resolve"

	if key == "" {
		return "", errx.E(op, errx.Invalid, errors.New("key cannot be empty"))
	}
	if len(key) > MaxKeyLength {
		return "", errx.E(op, errx.NotFound, errors.New("key too long to exist"))
	}

	link, err := s.store.ResolveLink(ctx, key)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}
	return link.URI, nil
}
