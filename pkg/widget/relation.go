package widget

import (
	"context"
	"strings"

	"github.com/rowforge/rowforge/pkg/dataset"
	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/models"
	"github.com/rowforge/rowforge/pkg/store"
)

// ForeignKey converts a raw related-record identifier to the related
// record's ID via a store lookup.
type ForeignKey struct {
	// Resolver resolves one foreign identifier to a related-record ID
	Resolver store.ReferenceResolver
}

// Clean resolves the raw identifier to a related-record ID
func (w *ForeignKey) Clean(ctx context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if IsNull(raw) {
		return nil, nil
	}
	id, err := w.Resolver.ResolveReference(ctx, strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConversion,
			"cannot resolve reference").WithDetail("value", raw)
	}
	return id, nil
}

// Render stringifies the related-record ID
func (w *ForeignKey) Render(native interface{}) (string, error) {
	if native == nil {
		return "", nil
	}
	return models.RelationKey(native), nil
}

// ManyToMany converts a delimiter-separated list of foreign identifiers to
// a set of related-record IDs. Each identifier resolves independently;
// the first unresolvable identifier fails the whole cell. Comparison of
// two sets is order-insensitive; rendering is sorted for stable display.
type ManyToMany struct {
	// Resolver resolves one foreign identifier to a related-record ID
	Resolver store.ReferenceResolver
	// Delimiter separates identifiers in the raw cell (default ",")
	Delimiter string
}

func (w *ManyToMany) delimiter() string {
	if w.Delimiter == "" {
		return ","
	}
	return w.Delimiter
}

// Clean splits and resolves each identifier, returning the set of IDs
func (w *ManyToMany) Clean(ctx context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if IsNull(raw) {
		return []interface{}{}, nil
	}

	parts := strings.Split(raw, w.delimiter())
	refs := make([]interface{}, 0, len(parts))
	for _, part := range parts {
		ident := strings.TrimSpace(part)
		if ident == "" {
			continue
		}
		id, err := w.Resolver.ResolveReference(ctx, ident)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConversion,
				"cannot resolve reference").WithDetail("value", ident)
		}
		refs = append(refs, id)
	}
	return refs, nil
}

// Render joins the set in sorted identifier order
func (w *ManyToMany) Render(native interface{}) (string, error) {
	switch refs := native.(type) {
	case nil:
		return "", nil
	case []interface{}:
		return strings.Join(models.SortedRelationKeys(refs), w.delimiter()), nil
	default:
		return "", errors.Newf(errors.ErrorTypeConversion,
			"cannot render %T as reference list", native)
	}
}
