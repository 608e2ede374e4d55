// Package diff computes human-readable before/after differences for one
// record, aligned to the resource's export header order.
//
// The comparison is word-level: rendered values are tokenized on a
// delimiter, a minimal edit script is computed between the token sequences,
// and contiguous deleted and inserted runs are rendered with distinct
// markers ("[-old-]" and "{+new+}"). A hard cap bounds the distinct tokens
// considered per call; text past the cap is treated as one opaque unit.
package diff

import (
	"strings"

	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/models"
	"github.com/rowforge/rowforge/pkg/resource"
)

// Config tunes the word-level diff
type Config struct {
	// Delimiter tokenizes rendered values (default " ")
	Delimiter string
	// TokenCap bounds distinct tokens per Compare call (default 512)
	TokenCap int
}

func (c Config) delimiter() string {
	if c.Delimiter == "" {
		return " "
	}
	return c.Delimiter
}

func (c Config) tokenCap() int {
	if c.TokenCap <= 0 {
		return 512
	}
	return c.TokenCap
}

// FieldDiff is the rendered difference for one export field
type FieldDiff struct {
	// Column is the export column name
	Column string
	// Changed reports whether the field differs
	Changed bool
	// Rendered is the marked-up value: plain when unchanged, deletion and
	// insertion runs marked when changed
	Rendered string
}

// Snapshot is the rendered state of a record at capture time
type Snapshot struct {
	values map[string]string
}

// Value returns the rendered value captured for a column
func (s Snapshot) Value(column string) string {
	return s.values[column]
}

// Engine captures and compares record snapshots for one resource
type Engine struct {
	res *resource.Resource
	cfg Config
}

// NewEngine creates a diff engine for the resource
func NewEngine(res *resource.Resource, cfg Config) *Engine {
	return &Engine{res: res, cfg: cfg}
}

// Capture renders every export field of the instance. A nil instance
// yields an empty snapshot; new records diff against it.
func (e *Engine) Capture(inst *models.Instance) (Snapshot, error) {
	snap := Snapshot{values: make(map[string]string, len(e.res.Fields))}
	if inst == nil {
		return snap, nil
	}
	for _, f := range e.res.ExportFields() {
		rendered, err := e.renderField(f, inst)
		if err != nil {
			return Snapshot{}, err
		}
		snap.values[f.ColumnName()] = rendered
	}
	return snap, nil
}

// Compare renders the after state and diffs it against the captured before
// state, in export header order.
func (e *Engine) Compare(before Snapshot, after *models.Instance) ([]FieldDiff, error) {
	fields := e.res.ExportFields()
	out := make([]FieldDiff, 0, len(fields))
	for _, f := range fields {
		oldVal := before.Value(f.ColumnName())
		newVal, err := e.renderField(f, after)
		if err != nil {
			return nil, err
		}
		if oldVal == newVal {
			out = append(out, FieldDiff{Column: f.ColumnName(), Rendered: newVal})
			continue
		}
		out = append(out, FieldDiff{
			Column:   f.ColumnName(),
			Changed:  true,
			Rendered: wordDiff(oldVal, newVal, e.cfg),
		})
	}
	return out, nil
}

// Changed compares attribute values directly, bypassing rendering. Scalar
// attributes compare by value; relationship attributes compare as sets.
func (e *Engine) Changed(before, after *models.Instance) bool {
	if before == nil {
		return true
	}
	for _, f := range e.res.ImportFields() {
		if f.Relation {
			if !models.RelationsEqual(before.Relation(f.Attribute), after.Relation(f.Attribute)) {
				return true
			}
			continue
		}
		if !valueEqual(attrValue(f, before), attrValue(f, after)) {
			return true
		}
	}
	return false
}

// attrValue reads a scalar attribute, treating "id" as the identity
func attrValue(f resource.Field, inst *models.Instance) interface{} {
	if f.Attribute == "id" {
		return inst.ID
	}
	return inst.Get(f.Attribute)
}

func (e *Engine) renderField(f resource.Field, inst *models.Instance) (string, error) {
	var native interface{}
	if f.Relation {
		native = []interface{}(inst.Relation(f.Attribute))
	} else {
		native = attrValue(f, inst)
	}
	rendered, err := e.res.Widget(f).Render(native)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConversion,
			"cannot render field for diff").WithDetail("column", f.ColumnName())
	}
	return rendered, nil
}

// valueEqual compares scalar values, treating numerically identical values
// of different widths (int vs int64 from different stores) as equal via
// their rendered keys.
func valueEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	return models.RelationKey(a) == models.RelationKey(b)
}

// wordDiff renders a word-level minimal edit script between old and new
func wordDiff(oldVal, newVal string, cfg Config) string {
	delim := cfg.delimiter()
	seen := make(map[string]struct{}, cfg.tokenCap())
	oldTokens := tokenize(oldVal, delim, cfg.tokenCap(), seen)
	newTokens := tokenize(newVal, delim, cfg.tokenCap(), seen)
	return renderScript(oldTokens, newTokens, delim)
}

// tokenize splits s on the delimiter, collapsing everything after the
// distinct-token cap into one opaque tail token.
func tokenize(s string, delim string, tokenCap int, seen map[string]struct{}) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, delim)
	out := make([]string, 0, len(parts))
	for i, tok := range parts {
		if _, ok := seen[tok]; !ok {
			if len(seen) >= tokenCap {
				out = append(out, strings.Join(parts[i:], delim))
				return out
			}
			seen[tok] = struct{}{}
		}
		out = append(out, tok)
	}
	return out
}

// renderScript computes the LCS-based edit script and renders deleted runs
// as [-...-] and inserted runs as {+...+}.
func renderScript(oldTokens, newTokens []string, delim string) string {
	n, m := len(oldTokens), len(newTokens)

	// lcs[i][j] = length of LCS of oldTokens[i:], newTokens[j:]
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if oldTokens[i] == newTokens[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var out []string
	var deleted, inserted []string
	flush := func() {
		if len(deleted) > 0 {
			out = append(out, "[-"+strings.Join(deleted, delim)+"-]")
			deleted = nil
		}
		if len(inserted) > 0 {
			out = append(out, "{+"+strings.Join(inserted, delim)+"+}")
			inserted = nil
		}
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case oldTokens[i] == newTokens[j]:
			flush()
			out = append(out, oldTokens[i])
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			deleted = append(deleted, oldTokens[i])
			i++
		default:
			inserted = append(inserted, newTokens[j])
			j++
		}
	}
	deleted = append(deleted, oldTokens[i:]...)
	inserted = append(inserted, newTokens[j:]...)
	flush()

	return strings.Join(out, delim)
}
