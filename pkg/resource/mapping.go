package resource

import (
	"github.com/rowforge/rowforge/pkg/config"
	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/store"
	"github.com/rowforge/rowforge/pkg/widget"
)

// Mapping is the YAML shape of a declarative resource mapping file
type Mapping struct {
	Name   string         `yaml:"name"`
	Fields []MappingField `yaml:"fields"`
}

// MappingField is the YAML shape of one field declaration
type MappingField struct {
	Attribute string `yaml:"attribute"`
	Column    string `yaml:"column"`
	// Widget names one of: string, int, float, decimal, bool, date,
	// datetime, time, duration, json, fk, m2m
	Widget    string `yaml:"widget"`
	Layout    string `yaml:"layout"`
	Delimiter string `yaml:"delimiter"`
	// RefAttribute is the related-record attribute fk/m2m identifiers
	// match against (default "id")
	RefAttribute string `yaml:"ref_attribute"`
	Import       bool   `yaml:"import"`
	Export       bool   `yaml:"export"`
	ImportID     bool   `yaml:"import_id"`
}

// FromMappingFile loads a declarative mapping from a YAML file and resolves
// it into a Resource. refStore supplies lookups for fk/m2m widgets; it may
// be nil when the mapping declares none.
func FromMappingFile(path string, refStore store.Store) (*Resource, error) {
	var m Mapping
	if err := config.Load(path, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load mapping file")
	}
	return FromMapping(m, refStore)
}

// FromMapping resolves a declarative mapping into a Resource
func FromMapping(m Mapping, refStore store.Store) (*Resource, error) {
	fields := make([]Field, 0, len(m.Fields))
	for _, mf := range m.Fields {
		w, relation, err := widgetByName(mf, refStore)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{
			Attribute: mf.Attribute,
			Column:    mf.Column,
			Widget:    w,
			Import:    mf.Import,
			Export:    mf.Export,
			ImportID:  mf.ImportID,
			Relation:  relation,
		})
	}

	r := New(m.Name, fields...)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func widgetByName(mf MappingField, refStore store.Store) (widget.Widget, bool, error) {
	switch mf.Widget {
	case "", "string":
		return &widget.String{}, false, nil
	case "int":
		return &widget.Int{}, false, nil
	case "float":
		return &widget.Float{}, false, nil
	case "decimal":
		return &widget.Decimal{}, false, nil
	case "bool":
		return &widget.Bool{}, false, nil
	case "date":
		return &widget.Date{Layout: mf.Layout}, false, nil
	case "datetime":
		return &widget.DateTime{Layout: mf.Layout}, false, nil
	case "time":
		return &widget.TimeOfDay{Layout: mf.Layout}, false, nil
	case "duration":
		return &widget.Duration{}, false, nil
	case "json":
		return &widget.JSON{}, false, nil
	case "fk":
		resolver, err := refResolver(mf, refStore)
		if err != nil {
			return nil, false, err
		}
		return &widget.ForeignKey{Resolver: resolver}, false, nil
	case "m2m":
		resolver, err := refResolver(mf, refStore)
		if err != nil {
			return nil, false, err
		}
		return &widget.ManyToMany{Resolver: resolver, Delimiter: mf.Delimiter}, true, nil
	default:
		return nil, false, errors.Newf(errors.ErrorTypeConfig,
			"unknown widget %q for attribute %q", mf.Widget, mf.Attribute)
	}
}

func refResolver(mf MappingField, refStore store.Store) (store.ReferenceResolver, error) {
	if refStore == nil {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"attribute %q needs a reference store for widget %q", mf.Attribute, mf.Widget)
	}
	attr := mf.RefAttribute
	if attr == "" {
		attr = "id"
	}
	return store.ByAttribute(refStore, attr), nil
}
