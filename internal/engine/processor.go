package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/rowforge/rowforge/pkg/config"
	"github.com/rowforge/rowforge/pkg/dataset"
	"github.com/rowforge/rowforge/pkg/diff"
	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/models"
	"github.com/rowforge/rowforge/pkg/resolver"
	"github.com/rowforge/rowforge/pkg/resource"
	"github.com/rowforge/rowforge/pkg/store"
)

// rowProcessor drives the per-row state machine:
//
//	PENDING → RESOLVED → {VALIDATED → {SAVED|DELETED} | SKIPPED | INVALID} | ERROR
//
// Each row is independent: a failure here is captured into the RowResult
// and never prevents other rows from being classified.
type rowProcessor struct {
	res    *resource.Resource
	st     store.Store
	rsv    resolver.Resolver
	differ *diff.Engine
	opts   *config.Options
	log    *zap.Logger
}

func (p *rowProcessor) process(ctx context.Context, row *dataset.Row) *RowResult {
	rr := &RowResult{Number: row.Number}
	if p.opts.StoreRawValues {
		rr.Raw = row.Values()
	}

	if p.res.BeforeRow != nil {
		if err := p.res.BeforeRow(ctx, row); err != nil {
			return p.fail(rr, errors.Wrap(err, errors.ErrorTypeInternal, "pre-row hook failed"))
		}
	}

	inst, isNew, err := p.resolve(ctx, row)
	if err != nil {
		return p.fail(rr, err)
	}

	// Identity fields were snapshotted by the resolver before any mutation;
	// the original clone feeds change detection and the diff "before" state.
	var original *models.Instance
	var before diff.Snapshot
	if !isNew {
		original = inst.Clone()
	}
	if !p.opts.SkipDiff {
		before, err = p.differ.Capture(original)
		if err != nil {
			return p.fail(rr, err)
		}
	}

	if err := p.populate(ctx, row, inst, isNew); err != nil {
		return p.fail(rr, err)
	}

	if p.res.DeleteFor != nil && p.res.DeleteFor(row, inst) {
		return p.delete(ctx, row, rr, inst, original, before, isNew)
	}

	if p.opts.ValidateInstances {
		if err := p.st.Validate(inst, p.opts.ExcludedValidationFields); err != nil {
			if v, ok := errors.AsValidation(err); ok {
				rr.ImportType = ImportTypeInvalid
				rr.Validation = v
				p.attachSnapshots(rr, original, inst)
				return rr
			}
			return p.fail(rr, errors.Wrap(err, errors.ErrorTypeStore, "validation call failed"))
		}
	}

	if p.opts.SkipUnchanged && !isNew && !p.differ.Changed(original, inst) {
		rr.ImportType = ImportTypeSkip
		rr.ObjectID = inst.ID
		p.attachSnapshots(rr, original, inst)
		if !p.opts.SkipDiff {
			fieldDiffs, err := p.differ.Compare(before, inst)
			if err != nil {
				p.log.Warn("diff rendering failed",
					zap.Int("row", row.Number), zap.Error(err))
			} else {
				rr.Diff = fieldDiffs
			}
		}
		return rr
	}

	if err := p.st.Save(ctx, inst); err != nil {
		return p.fail(rr, errors.Wrap(err, errors.ErrorTypeStore, "save failed"))
	}

	// Relationship links need the primary identity to exist, so relations
	// attach only after the primary save succeeded.
	if len(inst.Relations) > 0 {
		if err := p.st.SaveRelations(ctx, inst); err != nil {
			return p.fail(rr, errors.Wrap(err, errors.ErrorTypeStore, "relation save failed"))
		}
	}

	if p.res.AfterRow != nil {
		if err := p.res.AfterRow(ctx, row, inst); err != nil {
			return p.fail(rr, errors.Wrap(err, errors.ErrorTypeInternal, "post-row hook failed"))
		}
	}

	if isNew {
		rr.ImportType = ImportTypeNew
	} else {
		rr.ImportType = ImportTypeUpdate
	}
	rr.ObjectID = inst.ID
	p.attachSnapshots(rr, original, inst)

	if !p.opts.SkipDiff {
		fieldDiffs, err := p.differ.Compare(before, inst)
		if err != nil {
			p.log.Warn("diff rendering failed",
				zap.Int("row", row.Number), zap.Error(err))
		} else {
			rr.Diff = fieldDiffs
		}
	}
	return rr
}

// resolve maps the resolution variants onto (instance, isNew)
func (p *rowProcessor) resolve(ctx context.Context, row *dataset.Row) (*models.Instance, bool, error) {
	res, err := p.rsv.Resolve(ctx, row)
	if err != nil {
		return nil, false, err
	}
	switch res.State {
	case store.Found:
		return res.Instance, false, nil
	case store.Ambiguous:
		return nil, false, errors.Newf(errors.ErrorTypeResolution,
			"import-id matches %d records, expected at most one", res.Matches)
	default:
		return p.st.Create(), true, nil
	}
}

// populate applies each import field's widget to the instance
func (p *rowProcessor) populate(ctx context.Context, row *dataset.Row, inst *models.Instance, isNew bool) error {
	for _, f := range p.res.ImportFields() {
		raw, ok := row.Get(f.ColumnName())
		if !ok {
			continue
		}

		native, err := p.res.Widget(f).Clean(ctx, raw, row)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConversion, "cannot convert value").
				WithDetail("column", f.ColumnName()).
				WithDetail("row", row.Number)
		}

		switch {
		case f.Attribute == "id":
			// identity is immutable during processing; a provided id only
			// seeds brand new records
			if isNew && native != nil {
				inst.ID = native
			}
		case f.Relation:
			refs, _ := native.([]interface{})
			inst.SetRelation(f.Attribute, refs)
		default:
			inst.Set(f.Attribute, native)
		}
	}
	return nil
}

func (p *rowProcessor) delete(ctx context.Context, row *dataset.Row, rr *RowResult,
	inst, original *models.Instance, before diff.Snapshot, isNew bool) *RowResult {

	if isNew {
		// nothing persisted to delete
		rr.ImportType = ImportTypeSkip
		return rr
	}

	if err := p.st.Delete(ctx, inst); err != nil {
		return p.fail(rr, errors.Wrap(err, errors.ErrorTypeStore, "delete failed"))
	}

	if p.res.AfterRow != nil {
		if err := p.res.AfterRow(ctx, row, inst); err != nil {
			return p.fail(rr, errors.Wrap(err, errors.ErrorTypeInternal, "post-row hook failed"))
		}
	}

	rr.ImportType = ImportTypeDelete
	rr.ObjectID = inst.ID
	p.attachSnapshots(rr, original, nil)

	if !p.opts.SkipDiff {
		// deletion renders every field as removed
		fieldDiffs, err := p.differ.Compare(before, models.NewInstance())
		if err != nil {
			p.log.Warn("diff rendering failed",
				zap.Int("row", row.Number), zap.Error(err))
		} else {
			rr.Diff = fieldDiffs
		}
	}
	return rr
}

func (p *rowProcessor) attachSnapshots(rr *RowResult, original, saved *models.Instance) {
	if !p.opts.StoreInstance {
		return
	}
	rr.Original = original
	if saved != nil {
		rr.Saved = saved.Clone()
	}
}

func (p *rowProcessor) fail(rr *RowResult, err error) *RowResult {
	rr.ImportType = ImportTypeError
	rr.Errors = append(rr.Errors, err)
	p.log.Debug("row failed", zap.Int("row", rr.Number), zap.Error(err))
	return rr
}
