// Package config provides the unified configuration system for rowforge.
// It defines the Options structure the batch controller consumes and a
// simple YAML loader for declarative resource mappings.
//
// Example usage:
//
//	opts := config.NewOptions()
//	opts.DryRun = true
//	opts.SkipUnchanged = true
//
//	if err := opts.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
)

// Options is the policy knob set for one batch run. The zero value is not
// usable; construct with NewOptions and override as needed.
type Options struct {
	// DryRun runs the full pipeline but persistence calls are no-ops
	DryRun bool `yaml:"dry_run" json:"dry_run"`
	// RaiseErrors propagates the first failure instead of capturing it
	RaiseErrors bool `yaml:"raise_errors" json:"raise_errors"`
	// UseTransactions wraps the whole batch in one store transaction
	UseTransactions bool `yaml:"use_transactions" json:"use_transactions"`
	// RollbackOnValidationErrors treats INVALID rows as rollback triggers too
	RollbackOnValidationErrors bool `yaml:"rollback_on_validation_errors" json:"rollback_on_validation_errors"`
	// CollectFailedRows accumulates ERROR/INVALID rows into a failed dataset
	CollectFailedRows bool `yaml:"collect_failed_rows" json:"collect_failed_rows"`
	// SkipUnchanged classifies rows with no field changes as SKIP
	SkipUnchanged bool `yaml:"skip_unchanged" json:"skip_unchanged"`
	// SkipDiff disables before/after diff rendering for performance
	SkipDiff bool `yaml:"skip_diff" json:"skip_diff"`
	// StoreInstance keeps original/new instance snapshots on each row result
	StoreInstance bool `yaml:"store_instance" json:"store_instance"`
	// StoreRawValues keeps the raw row on each row result
	StoreRawValues bool `yaml:"store_raw_values" json:"store_raw_values"`
	// ValidateInstances runs structural validation on each mutated instance
	ValidateInstances bool `yaml:"validate_instances" json:"validate_instances"`
	// ExcludedValidationFields are attributes skipped by structural validation
	ExcludedValidationFields []string `yaml:"excluded_validation_fields" json:"excluded_validation_fields"`
	// ChunkSize bounds candidate preloading pages in the caching resolver
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// DiffDelimiter tokenizes rendered values for the word-level diff
	DiffDelimiter string `yaml:"diff_delimiter" json:"diff_delimiter"`
	// DiffTokenCap bounds distinct diff tokens per field comparison
	DiffTokenCap int `yaml:"diff_token_cap" json:"diff_token_cap"`
}

// NewOptions returns Options with production defaults. Callers override
// individual policies before handing the options to the batch controller.
func NewOptions() *Options {
	return &Options{
		DryRun:            false,
		RaiseErrors:       false,
		UseTransactions:   true,
		CollectFailedRows: false,
		SkipUnchanged:     false,
		SkipDiff:          false,
		ValidateInstances: true,
		ChunkSize:         1000,
		DiffDelimiter:     " ",
		DiffTokenCap:      512,
	}
}

// Validate validates the options for correctness.
func (o *Options) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if o.DiffDelimiter == "" {
		return fmt.Errorf("diff_delimiter must not be empty")
	}
	if o.DiffTokenCap <= 0 {
		return fmt.Errorf("diff_token_cap must be positive")
	}
	return nil
}
