// Package store defines the abstract persistent-record store the
// reconciliation engine works against, plus reference implementations.
//
// Lookups return explicit resolution variants (Found, NotFound, Ambiguous)
// instead of signalling expected outcomes through errors.
package store

import (
	"context"

	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/models"
)

// Criteria is an attribute-to-value match condition for lookups
type Criteria map[string]interface{}

// ResolutionState classifies a lookup outcome
type ResolutionState int

const (
	// NotFound means no record matched the criteria
	NotFound ResolutionState = iota
	// Found means exactly one record matched
	Found
	// Ambiguous means more than one record matched
	Ambiguous
)

// Resolution is the outcome of a Find call
type Resolution struct {
	State ResolutionState
	// Instance is populated only when State == Found
	Instance *models.Instance
	// Matches is the number of matching records (meaningful for Ambiguous)
	Matches int
}

// Store is the abstract persistent-record store.
//
// Save must assign an identity to new instances. Relationship attributes are
// persisted separately through SaveRelations, which callers invoke only
// after the primary Save succeeded.
type Store interface {
	// Find looks up records matching the criteria
	Find(ctx context.Context, criteria Criteria) (Resolution, error)
	// Create returns a blank, unpersisted instance
	Create() *models.Instance
	// Save persists scalar attributes, assigning an ID to new instances
	Save(ctx context.Context, inst *models.Instance) error
	// Delete removes a persisted instance
	Delete(ctx context.Context, inst *models.Instance) error
	// SaveRelations persists relationship attributes of a saved instance
	SaveRelations(ctx context.Context, inst *models.Instance) error
	// Validate runs structural validation, skipping excluded attributes.
	// Failures are *errors.ValidationError values.
	Validate(inst *models.Instance, excluded []string) error
	// SupportsTransactions reports whether Begin/Commit/Rollback work
	SupportsTransactions() bool
	// Begin opens a savepoint covering subsequent writes
	Begin(ctx context.Context) error
	// Commit makes writes since Begin durable
	Commit(ctx context.Context) error
	// Rollback discards writes since Begin
	Rollback(ctx context.Context) error
}

// Scanner is implemented by stores that can stream their records in bounded
// pages; the caching resolver uses it to preload candidates.
type Scanner interface {
	// Scan calls fn for every record, loading at most chunkSize records at a
	// time. Iteration stops on the first error from fn.
	Scan(ctx context.Context, chunkSize int, fn func(*models.Instance) error) error
}

// ReferenceResolver resolves a foreign identifier to a related-record ID.
// Relationship widgets use it to resolve each identifier independently.
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, identifier string) (interface{}, error)
}

// ResolverFunc adapts a function to the ReferenceResolver interface
type ResolverFunc func(ctx context.Context, identifier string) (interface{}, error)

// ResolveReference calls the underlying function
func (f ResolverFunc) ResolveReference(ctx context.Context, identifier string) (interface{}, error) {
	return f(ctx, identifier)
}

// ByAttribute builds a ReferenceResolver that looks up related records in s
// by equality on one attribute (or the primary identity when attr is "id").
func ByAttribute(s Store, attr string) ReferenceResolver {
	return ResolverFunc(func(ctx context.Context, identifier string) (interface{}, error) {
		res, err := s.Find(ctx, Criteria{attr: identifier})
		if err != nil {
			return nil, err
		}
		switch res.State {
		case Found:
			return res.Instance.ID, nil
		case Ambiguous:
			return nil, errors.Newf(errors.ErrorTypeResolution,
				"reference %q matches %d records", identifier, res.Matches)
		default:
			return nil, errors.Newf(errors.ErrorTypeResolution,
				"reference %q not found", identifier)
		}
	})
}
