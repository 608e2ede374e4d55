// Package engine implements the row reconciliation core: the per-row state
// machine, the batch controller, and the structured outcome report.
package engine

import (
	gojson "github.com/goccy/go-json"

	"github.com/rowforge/rowforge/pkg/dataset"
	"github.com/rowforge/rowforge/pkg/diff"
	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/models"
)

// ImportType classifies the outcome of one row
type ImportType string

const (
	// ImportTypeNew means a fresh record was created
	ImportTypeNew ImportType = "new"
	// ImportTypeUpdate means an existing record was modified
	ImportTypeUpdate ImportType = "update"
	// ImportTypeDelete means an existing record was removed
	ImportTypeDelete ImportType = "delete"
	// ImportTypeSkip means the row required no change
	ImportTypeSkip ImportType = "skip"
	// ImportTypeError means processing failed with a captured error
	ImportTypeError ImportType = "error"
	// ImportTypeInvalid means structural validation rejected the row
	ImportTypeInvalid ImportType = "invalid"
)

// missingValue is the display placeholder for cells absent from a row
const missingValue = "---"

// RowResult is the outcome of one row's processing
type RowResult struct {
	// Number is the 1-based data row number
	Number int
	// ImportType is the row classification; exactly one per completed row
	ImportType ImportType
	// Errors holds captured failures for error rows
	Errors []error
	// Validation holds the structured field-error mapping for invalid rows
	Validation *errors.ValidationError
	// Diff is the per-field rendered difference, in diff header order;
	// nil when diffing was skipped
	Diff []diff.FieldDiff
	// Original is the pre-mutation instance snapshot (opt-in, nil for new
	// records)
	Original *models.Instance
	// Saved is the post-processing instance snapshot (opt-in)
	Saved *models.Instance
	// Raw is the raw row snapshot (opt-in)
	Raw []string
	// ObjectID is the identity of the affected record, when known
	ObjectID interface{}
}

// HasError reports whether the row captured a failure
func (rr *RowResult) HasError() bool {
	return rr.ImportType == ImportTypeError
}

// ErrorText joins captured error messages for display
func (rr *RowResult) ErrorText() string {
	switch {
	case rr.Validation != nil:
		return rr.Validation.Error()
	case len(rr.Errors) > 0:
		text := rr.Errors[0].Error()
		for _, err := range rr.Errors[1:] {
			text += "; " + err.Error()
		}
		return text
	default:
		return ""
	}
}

// InvalidRow wraps one validation failure for display
type InvalidRow struct {
	// Number is the 1-based data row number
	Number int
	// FieldErrors maps attribute name to its validation messages
	FieldErrors map[string][]string
	// NonFieldErrors are instance-level validation messages
	NonFieldErrors []string
	// Values are the raw field values aligned to the batch diff headers;
	// missing cells render as "---"
	Values []string
}

// ErrorCount returns the total number of validation messages
func (ir InvalidRow) ErrorCount() int {
	n := len(ir.NonFieldErrors)
	for _, msgs := range ir.FieldErrors {
		n += len(msgs)
	}
	return n
}

// Result is the aggregate outcome of one batch
type Result struct {
	resourceName string
	diffHeaders  []string
	rows         []*RowResult
	invalid      []InvalidRow
	baseErrors   []error
	totals       map[ImportType]int
	failed       *dataset.Dataset
}

// NewResult creates an empty result. diffHeaders is the export header
// order, fixed for the whole batch.
func NewResult(resourceName string, diffHeaders []string) *Result {
	return &Result{
		resourceName: resourceName,
		diffHeaders:  diffHeaders,
		totals:       make(map[ImportType]int),
	}
}

// ResourceName returns the resource this batch targeted
func (r *Result) ResourceName() string {
	return r.resourceName
}

// DiffHeaders returns the export header order used for diff display
func (r *Result) DiffHeaders() []string {
	return r.diffHeaders
}

// Append records one row outcome
func (r *Result) Append(rr *RowResult) {
	r.rows = append(r.rows, rr)
	r.totals[rr.ImportType]++
}

// AddBaseError records a failure that happened before any row was processed
func (r *Result) AddBaseError(err error) {
	r.baseErrors = append(r.baseErrors, err)
}

// AddInvalidRow records a validation failure view, aligning the row's raw
// values to the batch diff headers.
func (r *Result) AddInvalidRow(row *dataset.Row, v *errors.ValidationError) {
	values := make([]string, len(r.diffHeaders))
	for i, col := range r.diffHeaders {
		if cell, ok := row.Get(col); ok {
			values[i] = cell
		} else {
			values[i] = missingValue
		}
	}
	r.invalid = append(r.invalid, InvalidRow{
		Number:         row.Number,
		FieldErrors:    v.FieldErrors,
		NonFieldErrors: v.NonFieldErrors,
		Values:         values,
	})
}

// RowResults returns the ordered row outcomes
func (r *Result) RowResults() []*RowResult {
	return r.rows
}

// InvalidRows returns the ordered validation failures
func (r *Result) InvalidRows() []InvalidRow {
	return r.invalid
}

// BaseErrors returns the batch-level failures
func (r *Result) BaseErrors() []error {
	return r.baseErrors
}

// TotalRows returns the number of processed rows
func (r *Result) TotalRows() int {
	return len(r.rows)
}

// Total returns the number of rows classified with the given type
func (r *Result) Total(t ImportType) int {
	return r.totals[t]
}

// Totals returns a copy of the per-type counters
func (r *Result) Totals() map[ImportType]int {
	out := make(map[ImportType]int, len(r.totals))
	for k, v := range r.totals {
		out[k] = v
	}
	return out
}

// HasErrors reports whether the batch captured base or row errors
func (r *Result) HasErrors() bool {
	return len(r.baseErrors) > 0 || r.totals[ImportTypeError] > 0
}

// HasValidationErrors reports whether any row failed structural validation
func (r *Result) HasValidationErrors() bool {
	return r.totals[ImportTypeInvalid] > 0
}

// InitFailedDataset prepares the failed-rows side dataset with the source
// headers plus a trailing error column.
func (r *Result) InitFailedDataset(sourceHeaders []string) {
	headers := append(append([]string(nil), sourceHeaders...), "errors")
	r.failed = dataset.New(headers...)
}

// AppendFailedRow adds one failed row's raw values with its error text
func (r *Result) AppendFailedRow(row *dataset.Row, errText string) {
	if r.failed == nil {
		return
	}
	r.failed.Append(append(append([]string(nil), row.Values()...), errText)...)
}

// FailedDataset returns the collected failed rows, or nil when collection
// was disabled
func (r *Result) FailedDataset() *dataset.Dataset {
	return r.failed
}

// resultJSON is the serialized shape of a Result
type resultJSON struct {
	Resource    string             `json:"resource"`
	DiffHeaders []string           `json:"diff_headers"`
	TotalRows   int                `json:"total_rows"`
	Totals      map[ImportType]int `json:"totals"`
	BaseErrors  []string           `json:"base_errors,omitempty"`
	Rows        []rowResultJSON    `json:"rows"`
	InvalidRows []InvalidRow       `json:"invalid_rows,omitempty"`
}

type rowResultJSON struct {
	Number     int              `json:"number"`
	ImportType ImportType       `json:"import_type"`
	ObjectID   interface{}      `json:"object_id,omitempty"`
	Errors     []string         `json:"errors,omitempty"`
	Diff       []diff.FieldDiff `json:"diff,omitempty"`
	Raw        []string         `json:"raw,omitempty"`
}

// JSON serializes the result for the admin UI collaborator
func (r *Result) JSON() ([]byte, error) {
	out := resultJSON{
		Resource:    r.resourceName,
		DiffHeaders: r.diffHeaders,
		TotalRows:   r.TotalRows(),
		Totals:      r.Totals(),
		Rows:        make([]rowResultJSON, 0, len(r.rows)),
		InvalidRows: r.invalid,
	}
	for _, err := range r.baseErrors {
		out.BaseErrors = append(out.BaseErrors, err.Error())
	}
	for _, rr := range r.rows {
		rj := rowResultJSON{
			Number:     rr.Number,
			ImportType: rr.ImportType,
			ObjectID:   rr.ObjectID,
			Diff:       rr.Diff,
			Raw:        rr.Raw,
		}
		for _, err := range rr.Errors {
			rj.Errors = append(rj.Errors, err.Error())
		}
		if rr.Validation != nil {
			rj.Errors = append(rj.Errors, rr.Validation.Error())
		}
		out.Rows = append(out.Rows, rj)
	}
	return gojson.Marshal(out)
}
