// Package resolver matches dataset rows to existing persistent records.
//
// Resolution outcomes are explicit variants (Found, NotFound, Ambiguous);
// "does not exist" is an expected state, not an error.
package resolver

import (
	"context"
	"strings"

	"github.com/rowforge/rowforge/pkg/dataset"
	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/models"
	"github.com/rowforge/rowforge/pkg/resource"
	"github.com/rowforge/rowforge/pkg/store"
)

// Resolver finds the existing record a row corresponds to
type Resolver interface {
	// Resolve looks up the record matching the row's import-id values.
	// Identity values are read from the raw row before any mutation.
	Resolve(ctx context.Context, row *dataset.Row) (store.Resolution, error)
}

// Plain resolves each row with one store lookup
type Plain struct {
	res *resource.Resource
	st  store.Store
}

// NewPlain creates a per-row lookup resolver
func NewPlain(res *resource.Resource, st store.Store) *Plain {
	return &Plain{res: res, st: st}
}

// Resolve looks up the record matching the row's import-id values
func (p *Plain) Resolve(ctx context.Context, row *dataset.Row) (store.Resolution, error) {
	criteria, ok, err := identityCriteria(ctx, p.res, row)
	if err != nil {
		return store.Resolution{}, err
	}
	if !ok {
		return store.Resolution{State: store.NotFound}, nil
	}

	res, err := p.st.Find(ctx, criteria)
	if err != nil {
		return store.Resolution{}, errors.Wrap(err, errors.ErrorTypeResolution, "lookup failed")
	}
	return res, nil
}

// identityCriteria builds the lookup criteria from the row's import-id
// cells. ok is false when no import-id field is configured or every
// identity cell is blank, which both mean "new record".
func identityCriteria(ctx context.Context, res *resource.Resource, row *dataset.Row) (store.Criteria, bool, error) {
	idFields := res.ImportIDFields()
	if len(idFields) == 0 {
		return nil, false, nil
	}

	criteria := make(store.Criteria, len(idFields))
	blank := true
	for _, f := range idFields {
		raw := row.Value(f.ColumnName())
		native, err := res.Widget(f).Clean(ctx, raw, row)
		if err != nil {
			return nil, false, errors.Wrap(err, errors.ErrorTypeResolution,
				"cannot parse identity value").WithDetail("column", f.ColumnName())
		}
		if native == nil {
			continue
		}
		blank = false
		criteria[f.Attribute] = native
	}
	if blank {
		return nil, false, nil
	}
	return criteria, true, nil
}

// Caching preloads all candidate records keyed by their import-id values,
// avoiding one lookup per row. The cache is read-only for the batch: rows
// creating records referenced later in the same batch will not see them.
type Caching struct {
	res       *resource.Resource
	st        store.Store
	chunkSize int

	loaded    bool
	cache     map[string]*models.Instance
	ambiguous map[string]int
}

// NewCaching creates a preloading resolver. The store must implement
// store.Scanner; chunkSize bounds how many records are resident per page
// during preload.
func NewCaching(res *resource.Resource, st store.Store, chunkSize int) *Caching {
	return &Caching{res: res, st: st, chunkSize: chunkSize}
}

// Resolve looks the row up in the preloaded cache
func (c *Caching) Resolve(ctx context.Context, row *dataset.Row) (store.Resolution, error) {
	if !c.loaded {
		if err := c.preload(ctx); err != nil {
			return store.Resolution{}, err
		}
	}

	criteria, ok, err := identityCriteria(ctx, c.res, row)
	if err != nil {
		return store.Resolution{}, err
	}
	if !ok {
		return store.Resolution{State: store.NotFound}, nil
	}

	key := cacheKey(c.res, criteria)
	if n := c.ambiguous[key]; n > 1 {
		return store.Resolution{State: store.Ambiguous, Matches: n}, nil
	}
	if inst, hit := c.cache[key]; hit {
		return store.Resolution{State: store.Found, Instance: inst.Clone(), Matches: 1}, nil
	}
	return store.Resolution{State: store.NotFound}, nil
}

func (c *Caching) preload(ctx context.Context) error {
	scanner, ok := c.st.(store.Scanner)
	if !ok {
		return errors.New(errors.ErrorTypeCapability,
			"store does not support scanning; use the plain resolver")
	}

	c.cache = make(map[string]*models.Instance)
	c.ambiguous = make(map[string]int)
	idFields := c.res.ImportIDFields()

	err := scanner.Scan(ctx, c.chunkSize, func(inst *models.Instance) error {
		criteria := make(store.Criteria, len(idFields))
		for _, f := range idFields {
			if f.Attribute == "id" {
				criteria[f.Attribute] = inst.ID
			} else {
				criteria[f.Attribute] = inst.Get(f.Attribute)
			}
		}
		key := cacheKey(c.res, criteria)
		c.ambiguous[key]++
		if c.ambiguous[key] == 1 {
			c.cache[key] = inst
		} else {
			delete(c.cache, key)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeResolution, "candidate preload failed")
	}

	c.loaded = true
	return nil
}

// cacheKey renders the identity criteria in declaration order; rendered
// values keep int64 ids and string cells comparable.
func cacheKey(res *resource.Resource, criteria store.Criteria) string {
	var b strings.Builder
	for _, f := range res.ImportIDFields() {
		b.WriteString(models.RelationKey(criteria[f.Attribute]))
		b.WriteByte(0x1f)
	}
	return b.String()
}
