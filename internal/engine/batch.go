package engine

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rowforge/rowforge/pkg/config"
	"github.com/rowforge/rowforge/pkg/dataset"
	"github.com/rowforge/rowforge/pkg/diff"
	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/logger"
	"github.com/rowforge/rowforge/pkg/metrics"
	"github.com/rowforge/rowforge/pkg/models"
	"github.com/rowforge/rowforge/pkg/resolver"
	"github.com/rowforge/rowforge/pkg/resource"
	"github.com/rowforge/rowforge/pkg/store"
)

// Controller processes whole batches: it drives the row processor over
// every row in dataset order, owns the transaction scope, and aggregates
// outcomes into a Result.
type Controller struct {
	res  *resource.Resource
	st   store.Store
	opts *config.Options
	log  *zap.Logger
	rsv  resolver.Resolver
}

// Option customizes a Controller
type Option func(*Controller)

// WithResolver overrides the default per-row lookup resolver, e.g. with a
// caching resolver for large batches.
func WithResolver(r resolver.Resolver) Option {
	return func(c *Controller) { c.rsv = r }
}

// WithLogger overrides the default logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// NewController builds a batch controller for one resource and store
func NewController(res *resource.Resource, st store.Store, opts *config.Options, options ...Option) (*Controller, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid options")
	}

	c := &Controller{res: res, st: st, opts: opts, log: logger.Get()}
	for _, opt := range options {
		opt(c)
	}
	c.log = c.log.With(zap.String("resource", res.Name))
	return c, nil
}

// Process runs the batch over the reader's rows in order, exactly once
// each. The returned error is non-nil only under RaiseErrors (first
// failure propagates) or when transaction control itself failed; captured
// row and base errors live in the Result.
func (c *Controller) Process(ctx context.Context, reader dataset.Reader) (*Result, error) {
	timer := metrics.NewTimer(c.res.Name)
	defer timer.Stop()

	batchLog := c.log.With(zap.String("batch_id", uuid.NewString()))
	result := NewResult(c.res.Name, c.res.Headers())

	effStore := c.st
	if c.opts.DryRun {
		effStore = store.NewDryRun(c.st)
	}

	rsv := c.rsv
	if rsv == nil {
		rsv = resolver.NewPlain(c.res, effStore)
	}

	proc := &rowProcessor{
		res: c.res,
		st:  effStore,
		rsv: rsv,
		differ: diff.NewEngine(c.res, diff.Config{
			Delimiter: c.opts.DiffDelimiter,
			TokenCap:  c.opts.DiffTokenCap,
		}),
		opts: c.opts,
		log:  batchLog,
	}

	useTx := c.opts.UseTransactions
	if useTx && !effStore.SupportsTransactions() {
		batchLog.Warn("store does not support transactions, falling back to row-by-row persistence")
		useTx = false
	}
	if useTx {
		if err := effStore.Begin(ctx); err != nil {
			result.AddBaseError(err)
			c.finish(result, "base_error")
			if c.opts.RaiseErrors {
				return result, err
			}
			return result, nil
		}
	}

	if c.opts.CollectFailedRows {
		result.InitFailedDataset(reader.Headers())
	}

	abortErr := c.loop(ctx, reader, proc, result)

	if useTx {
		if err := c.closeTransaction(ctx, effStore, result, abortErr, batchLog); err != nil && abortErr == nil {
			abortErr = err
		}
	}

	outcome := "ok"
	if result.HasErrors() || abortErr != nil {
		outcome = "errors"
	}
	c.finish(result, outcome)

	batchLog.Info("batch processed",
		zap.Bool("dry_run", c.opts.DryRun),
		zap.Int("total_rows", result.TotalRows()),
		zap.Int("new", result.Total(ImportTypeNew)),
		zap.Int("updated", result.Total(ImportTypeUpdate)),
		zap.Int("deleted", result.Total(ImportTypeDelete)),
		zap.Int("skipped", result.Total(ImportTypeSkip)),
		zap.Int("errored", result.Total(ImportTypeError)),
		zap.Int("invalid", result.Total(ImportTypeInvalid)))

	if abortErr != nil {
		return result, abortErr
	}
	return result, nil
}

// loop iterates the reader exactly once in order. A non-nil return means
// the batch must abort and propagate (RaiseErrors or cancellation).
func (c *Controller) loop(ctx context.Context, reader dataset.Reader, proc *rowProcessor, result *Result) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "batch cancelled")
		}

		row, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			loadErr := errors.Wrap(err, errors.ErrorTypeLoad, "dataset read failed")
			if c.opts.RaiseErrors {
				return loadErr
			}
			result.AddBaseError(loadErr)
			return nil
		}

		rr := proc.process(ctx, row)

		if rr.HasError() && c.opts.RaiseErrors {
			return rr.Errors[0]
		}

		result.Append(rr)
		metrics.RowsProcessed.WithLabelValues(c.res.Name, string(rr.ImportType)).Inc()

		if rr.ImportType == ImportTypeInvalid && rr.Validation != nil {
			result.AddInvalidRow(row, rr.Validation)
		}
		if c.opts.CollectFailedRows &&
			(rr.ImportType == ImportTypeError || rr.ImportType == ImportTypeInvalid) {
			result.AppendFailedRow(row, rr.ErrorText())
		}
	}
}

// closeTransaction commits unless the rollback policy triggers
func (c *Controller) closeTransaction(ctx context.Context, st store.Store, result *Result, abortErr error, log *zap.Logger) error {
	rollback := abortErr != nil || result.HasErrors() ||
		(c.opts.RollbackOnValidationErrors && result.HasValidationErrors())

	if rollback {
		log.Warn("rolling back batch",
			zap.Int("errored", result.Total(ImportTypeError)),
			zap.Int("invalid", result.Total(ImportTypeInvalid)))
		if err := st.Rollback(ctx); err != nil {
			result.AddBaseError(err)
			return err
		}
		return nil
	}

	if err := st.Commit(ctx); err != nil {
		result.AddBaseError(err)
		return err
	}
	return nil
}

func (c *Controller) finish(result *Result, outcome string) {
	metrics.BatchesProcessed.WithLabelValues(c.res.Name, outcome).Inc()
}

// ProcessCSV parses the stream as CSV and processes it. A parse failure at
// load time yields a Result with zero rows and one base error, never
// partially parsed rows.
func (c *Controller) ProcessCSV(ctx context.Context, r io.Reader, csvOpts ...dataset.CSVOption) (*Result, error) {
	reader, err := dataset.NewCSVReader(r, csvOpts...)
	if err != nil {
		result := NewResult(c.res.Name, c.res.Headers())
		loadErr := errors.Wrap(err, errors.ErrorTypeLoad, "failed to load dataset")
		if c.opts.RaiseErrors {
			c.finish(result, "base_error")
			return result, loadErr
		}
		result.AddBaseError(loadErr)
		c.finish(result, "base_error")
		return result, nil
	}
	defer reader.Close()

	return c.Process(ctx, reader)
}

// Export renders every stored record through the export field mapping and
// writes the resulting dataset. The store must implement store.Scanner.
func (c *Controller) Export(ctx context.Context, w dataset.Writer) error {
	scanner, ok := c.st.(store.Scanner)
	if !ok {
		return errors.New(errors.ErrorTypeCapability, "store does not support scanning")
	}

	fields := c.res.ExportFields()
	if err := w.WriteHeader(c.res.Headers()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStore, "failed to write export header")
	}

	err := scanner.Scan(ctx, c.opts.ChunkSize, func(inst *models.Instance) error {
		values := make([]string, len(fields))
		for i, f := range fields {
			var native interface{}
			switch {
			case f.Attribute == "id":
				native = inst.ID
			case f.Relation:
				native = []interface{}(inst.Relation(f.Attribute))
			default:
				native = inst.Get(f.Attribute)
			}
			rendered, err := c.res.Widget(f).Render(native)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeConversion, "cannot render value").
					WithDetail("column", f.ColumnName())
			}
			values[i] = rendered
		}
		return w.WriteRow(values)
	})
	if err != nil {
		return err
	}
	return w.Flush()
}
