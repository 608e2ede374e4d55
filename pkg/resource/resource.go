// Package resource declares the mapping between dataset columns and record
// attributes.
//
// A Resource is a static table of field mappings, built once at
// registration time, plus a small set of named extension points (pre-row
// and post-row hooks, a deletion predicate, a widget resolver). Behavior is
// customized by setting these capabilities, not by subtyping.
package resource

import (
	"context"

	"github.com/rowforge/rowforge/pkg/dataset"
	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/models"
	"github.com/rowforge/rowforge/pkg/widget"
)

// Field declares the mapping for one record attribute
type Field struct {
	// Attribute is the record attribute name
	Attribute string
	// Column is the dataset column name (defaults to Attribute)
	Column string
	// Widget converts between the raw cell and the native value
	Widget widget.Widget
	// Import marks the field as populated during import
	Import bool
	// Export marks the field as rendered during export and diff display
	Export bool
	// ImportID marks the field as part of record identification
	ImportID bool
	// Relation marks the field as a multi-valued relationship attribute
	Relation bool
}

// ColumnName returns the dataset column for the field
func (f Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Attribute
}

// Resource maps one record schema to datasets
type Resource struct {
	// Name identifies the resource (e.g. table or model name)
	Name string
	// Fields is the ordered field mapping table
	Fields []Field

	// BeforeRow runs before a row is processed; an error fails the row
	BeforeRow func(ctx context.Context, row *dataset.Row) error
	// AfterRow runs after a row's save or delete succeeded; an error fails
	// the row like a persistence failure
	AfterRow func(ctx context.Context, row *dataset.Row, inst *models.Instance) error
	// DeleteFor, when set, marks rows for deletion instead of save
	DeleteFor func(row *dataset.Row, inst *models.Instance) bool
	// WidgetFor, when set, overrides widget selection per field
	WidgetFor func(f Field) widget.Widget
}

// New creates a resource with the given name and field mapping table
func New(name string, fields ...Field) *Resource {
	return &Resource{Name: name, Fields: fields}
}

// Validate checks the mapping table for structural mistakes
func (r *Resource) Validate() error {
	if r.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "resource name is required")
	}
	if len(r.Fields) == 0 {
		return errors.Newf(errors.ErrorTypeConfig, "resource %q declares no fields", r.Name)
	}
	seen := make(map[string]struct{}, len(r.Fields))
	for _, f := range r.Fields {
		if f.Attribute == "" {
			return errors.Newf(errors.ErrorTypeConfig,
				"resource %q has a field with no attribute name", r.Name)
		}
		if _, dup := seen[f.Attribute]; dup {
			return errors.Newf(errors.ErrorTypeConfig,
				"resource %q declares attribute %q twice", r.Name, f.Attribute)
		}
		seen[f.Attribute] = struct{}{}
		if f.Widget == nil && r.WidgetFor == nil {
			return errors.Newf(errors.ErrorTypeConfig,
				"resource %q field %q has no widget", r.Name, f.Attribute)
		}
	}
	return nil
}

// Widget returns the effective widget for a field, honoring WidgetFor
func (r *Resource) Widget(f Field) widget.Widget {
	if r.WidgetFor != nil {
		if w := r.WidgetFor(f); w != nil {
			return w
		}
	}
	return f.Widget
}

// ImportFields returns the fields populated during import, in
// declaration order
func (r *Resource) ImportFields() []Field {
	out := make([]Field, 0, len(r.Fields))
	for _, f := range r.Fields {
		if f.Import {
			out = append(out, f)
		}
	}
	return out
}

// ExportFields returns the fields rendered during export, in
// declaration order
func (r *Resource) ExportFields() []Field {
	out := make([]Field, 0, len(r.Fields))
	for _, f := range r.Fields {
		if f.Export {
			out = append(out, f)
		}
	}
	return out
}

// ImportIDFields returns the fields participating in record identification
func (r *Resource) ImportIDFields() []Field {
	out := make([]Field, 0, 1)
	for _, f := range r.Fields {
		if f.ImportID {
			out = append(out, f)
		}
	}
	return out
}

// Headers returns the export column names in declaration order; this is the
// diff header order for a batch.
func (r *Resource) Headers() []string {
	fields := r.ExportFields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.ColumnName()
	}
	return out
}

// FieldByColumn finds the field mapped to a dataset column
func (r *Resource) FieldByColumn(column string) (Field, bool) {
	for _, f := range r.Fields {
		if f.ColumnName() == column {
			return f, true
		}
	}
	return Field{}, false
}
