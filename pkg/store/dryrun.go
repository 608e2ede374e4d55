package store

import (
	"context"

	"github.com/rowforge/rowforge/pkg/models"
)

// dryRun wraps a Store so writes become no-ops. Reads and validation pass
// through, so a dry-run batch classifies rows exactly like a real run.
type dryRun struct {
	inner  Store
	nextID int
}

// NewDryRun returns a write-discarding view of s. New instances still get a
// synthetic identity so relationship attachment and diffing behave as in a
// real run, but nothing reaches the underlying store.
func NewDryRun(s Store) Store {
	return &dryRun{inner: s}
}

func (d *dryRun) Find(ctx context.Context, criteria Criteria) (Resolution, error) {
	return d.inner.Find(ctx, criteria)
}

func (d *dryRun) Create() *models.Instance {
	return d.inner.Create()
}

func (d *dryRun) Save(_ context.Context, inst *models.Instance) error {
	if inst.IsNew() {
		d.nextID--
		// negative synthetic IDs cannot collide with persisted ones
		inst.ID = d.nextID
	}
	return nil
}

func (d *dryRun) Delete(context.Context, *models.Instance) error {
	return nil
}

func (d *dryRun) SaveRelations(context.Context, *models.Instance) error {
	return nil
}

func (d *dryRun) Validate(inst *models.Instance, excluded []string) error {
	return d.inner.Validate(inst, excluded)
}

func (d *dryRun) SupportsTransactions() bool {
	return true
}

func (d *dryRun) Begin(context.Context) error {
	return nil
}

func (d *dryRun) Commit(context.Context) error {
	return nil
}

func (d *dryRun) Rollback(context.Context) error {
	return nil
}
