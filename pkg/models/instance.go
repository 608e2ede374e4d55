// Package models provides the in-memory record representation for rowforge.
//
// An Instance is one persistent record during a row's processing: a primary
// identity (possibly absent for new records), a bag of scalar attributes,
// and zero or more multi-valued relationship attributes. Relationship
// attributes compare as sets; their natural order is not significant.
package models

import (
	"fmt"
	"sort"
)

// Instance is the mutable in-memory representation of one persistent record
type Instance struct {
	// ID is the primary key, nil for records not yet persisted
	ID interface{}
	// Attrs holds scalar attribute values keyed by attribute name
	Attrs map[string]interface{}
	// Relations holds multi-valued relationship attributes keyed by name.
	// Values are related-record identifiers.
	Relations map[string][]interface{}
}

// NewInstance creates a blank instance with no identity
func NewInstance() *Instance {
	return &Instance{
		Attrs:     make(map[string]interface{}),
		Relations: make(map[string][]interface{}),
	}
}

// IsNew reports whether the instance has no persistent identity yet
func (in *Instance) IsNew() bool {
	return in.ID == nil
}

// Get returns the scalar attribute value, or nil if unset
func (in *Instance) Get(attr string) interface{} {
	return in.Attrs[attr]
}

// Set assigns a scalar attribute value
func (in *Instance) Set(attr string, value interface{}) {
	in.Attrs[attr] = value
}

// Relation returns the relationship identifiers for the named attribute
func (in *Instance) Relation(name string) []interface{} {
	return in.Relations[name]
}

// SetRelation replaces the relationship identifiers for the named attribute
func (in *Instance) SetRelation(name string, refs []interface{}) {
	in.Relations[name] = refs
}

// Clone returns a deep copy suitable for before/after snapshots
func (in *Instance) Clone() *Instance {
	out := &Instance{
		ID:        in.ID,
		Attrs:     make(map[string]interface{}, len(in.Attrs)),
		Relations: make(map[string][]interface{}, len(in.Relations)),
	}
	for k, v := range in.Attrs {
		out.Attrs[k] = v
	}
	for k, refs := range in.Relations {
		copied := make([]interface{}, len(refs))
		copy(copied, refs)
		out.Relations[k] = copied
	}
	return out
}

// RelationKey renders a relationship identifier as a stable string key
func RelationKey(ref interface{}) string {
	return fmt.Sprint(ref)
}

// RelationsEqual compares two relationship value sets order-insensitively
func RelationsEqual(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, ref := range a {
		seen[RelationKey(ref)]++
	}
	for _, ref := range b {
		key := RelationKey(ref)
		seen[key]--
		if seen[key] < 0 {
			return false
		}
	}
	return true
}

// SortedRelationKeys renders a relationship set in stable sorted order for
// display
func SortedRelationKeys(refs []interface{}) []string {
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = RelationKey(ref)
	}
	sort.Strings(keys)
	return keys
}
