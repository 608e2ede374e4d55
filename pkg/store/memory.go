package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/models"
)

// Memory is an in-memory Store with snapshot-based transaction support.
// It is the reference implementation for tests and small imports.
type Memory struct {
	mu      sync.Mutex
	records map[string]*models.Instance
	order   []string
	nextID  int

	snapshot *memorySnapshot

	// Validator, when set, implements Validate. It must return
	// *errors.ValidationError values for structural failures.
	Validator func(inst *models.Instance, excluded []string) error

	// FailSave, when set, is consulted before every Save; a non-nil return
	// aborts the save. Tests use it to provoke store failures.
	FailSave func(inst *models.Instance) error

	saveCount   int
	deleteCount int
}

type memorySnapshot struct {
	records map[string]*models.Instance
	order   []string
	nextID  int
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*models.Instance)}
}

func idKey(id interface{}) string {
	return fmt.Sprint(id)
}

// Find scans for records matching the criteria. Matching compares rendered
// values, so a string "3" criteria matches a stored int 3 identity.
func (m *Memory) Find(_ context.Context, criteria Criteria) (Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *models.Instance
	matches := 0
	for _, key := range m.order {
		rec := m.records[key]
		if matchesCriteria(rec, criteria) {
			matches++
			if found == nil {
				found = rec
			}
		}
	}

	switch matches {
	case 0:
		return Resolution{State: NotFound}, nil
	case 1:
		return Resolution{State: Found, Instance: found.Clone(), Matches: 1}, nil
	default:
		return Resolution{State: Ambiguous, Matches: matches}, nil
	}
}

func matchesCriteria(rec *models.Instance, criteria Criteria) bool {
	for attr, want := range criteria {
		var got interface{}
		if attr == "id" {
			got = rec.ID
		} else {
			got = rec.Get(attr)
		}
		if got == nil || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// Create returns a blank, unpersisted instance
func (m *Memory) Create() *models.Instance {
	return models.NewInstance()
}

// Save persists scalar attributes, assigning an ID to new instances
func (m *Memory) Save(_ context.Context, inst *models.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSave != nil {
		if err := m.FailSave(inst); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStore, "save failed")
		}
	}

	if inst.IsNew() {
		m.nextID++
		inst.ID = m.nextID
	}

	key := idKey(inst.ID)
	stored := inst.Clone()
	if _, exists := m.records[key]; !exists {
		m.order = append(m.order, key)
	} else {
		// scalar save never touches stored relations
		stored.Relations = m.records[key].Relations
	}
	m.records[key] = stored
	m.saveCount++
	return nil
}

// Delete removes a persisted instance
func (m *Memory) Delete(_ context.Context, inst *models.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := idKey(inst.ID)
	if _, exists := m.records[key]; !exists {
		return errors.Newf(errors.ErrorTypeStore, "record %s does not exist", key)
	}
	delete(m.records, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.deleteCount++
	return nil
}

// SaveRelations persists relationship attributes of a saved instance
func (m *Memory) SaveRelations(_ context.Context, inst *models.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := idKey(inst.ID)
	stored, exists := m.records[key]
	if !exists {
		return errors.Newf(errors.ErrorTypeStore, "record %s does not exist", key)
	}
	stored.Relations = make(map[string][]interface{}, len(inst.Relations))
	for name, refs := range inst.Relations {
		copied := make([]interface{}, len(refs))
		copy(copied, refs)
		stored.Relations[name] = copied
	}
	return nil
}

// Validate delegates to the configured Validator, if any
func (m *Memory) Validate(inst *models.Instance, excluded []string) error {
	if m.Validator == nil {
		return nil
	}
	return m.Validator(inst, excluded)
}

// SupportsTransactions reports snapshot transaction support
func (m *Memory) SupportsTransactions() bool {
	return true
}

// Begin snapshots the store state
func (m *Memory) Begin(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot != nil {
		return errors.New(errors.ErrorTypeStore, "transaction already open")
	}
	snap := &memorySnapshot{
		records: make(map[string]*models.Instance, len(m.records)),
		order:   append([]string(nil), m.order...),
		nextID:  m.nextID,
	}
	for k, v := range m.records {
		snap.records[k] = v.Clone()
	}
	m.snapshot = snap
	return nil
}

// Commit discards the snapshot, keeping writes since Begin
func (m *Memory) Commit(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot == nil {
		return errors.New(errors.ErrorTypeStore, "no open transaction")
	}
	m.snapshot = nil
	return nil
}

// Rollback restores the snapshot, discarding writes since Begin
func (m *Memory) Rollback(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot == nil {
		return errors.New(errors.ErrorTypeStore, "no open transaction")
	}
	m.records = m.snapshot.records
	m.order = m.snapshot.order
	m.nextID = m.snapshot.nextID
	m.snapshot = nil
	return nil
}

// Scan implements Scanner over the in-memory records. chunkSize is accepted
// for interface parity; memory records are already resident.
func (m *Memory) Scan(_ context.Context, _ int, fn func(*models.Instance) error) error {
	m.mu.Lock()
	keys := append([]string(nil), m.order...)
	m.mu.Unlock()

	for _, key := range keys {
		m.mu.Lock()
		rec, ok := m.records[key]
		var clone *models.Instance
		if ok {
			clone = rec.Clone()
		}
		m.mu.Unlock()
		if !ok {
			continue
		}
		if err := fn(clone); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of persisted records
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// GetByID returns a copy of the record with the given identity
func (m *Memory) GetByID(id interface{}) (*models.Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[idKey(id)]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// SaveCount returns the number of successful Save calls
func (m *Memory) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCount
}

// DeleteCount returns the number of successful Delete calls
func (m *Memory) DeleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCount
}
