// Package postgres provides a PostgreSQL-backed record store for rowforge
// using pgx. One Store maps one table; relationship attributes map to join
// tables keyed by the record identity.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/models"
	"github.com/rowforge/rowforge/pkg/store"
)

// RelationConfig maps one relationship attribute to its join table
type RelationConfig struct {
	// JoinTable is the m2m join table name
	JoinTable string `yaml:"join_table"`
	// SourceColumn references this store's record identity
	SourceColumn string `yaml:"source_column"`
	// TargetColumn holds the related-record identifier
	TargetColumn string `yaml:"target_column"`
}

// Config describes the table one Store manages
type Config struct {
	// Table is the record table name
	Table string `yaml:"table"`
	// IDColumn is the primary key column (default "id")
	IDColumn string `yaml:"id_column"`
	// Columns are the scalar attribute columns; attribute names equal
	// column names
	Columns []string `yaml:"columns"`
	// Relations maps relationship attribute names to join tables
	Relations map[string]RelationConfig `yaml:"relations"`
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL-backed record store
type Store struct {
	pool *pgxpool.Pool
	cfg  Config
	tx   pgx.Tx

	// Validator, when set, implements Validate; it must return
	// *errors.ValidationError values for structural failures.
	Validator func(inst *models.Instance, excluded []string) error
}

// New builds a Store over an existing connection pool
func New(pool *pgxpool.Pool, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "table is required")
	}
	if cfg.IDColumn == "" {
		cfg.IDColumn = "id"
	}
	if len(cfg.Columns) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "at least one column is required")
	}
	return &Store{pool: pool, cfg: cfg}, nil
}

// Connect opens a pool from a connection string and builds a Store over it
func Connect(ctx context.Context, connString string, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStore, "failed to open connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeStore, "failed to ping database")
	}
	return New(pool, cfg)
}

// Close releases the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) q() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.pool
}

// Find looks up records matching the criteria. At most two rows are fetched:
// enough to distinguish Found from Ambiguous without scanning the table.
func (s *Store) Find(ctx context.Context, criteria store.Criteria) (store.Resolution, error) {
	attrs := make([]string, 0, len(criteria))
	for attr := range criteria {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	conds := make([]string, 0, len(attrs))
	args := make([]any, 0, len(attrs))
	for i, attr := range attrs {
		col := attr
		if attr == "id" {
			col = s.cfg.IDColumn
		}
		conds = append(conds, fmt.Sprintf("%s::text = $%d::text", col, i+1))
		args = append(args, fmt.Sprint(criteria[attr]))
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s LIMIT 2",
		s.cfg.IDColumn, strings.Join(s.cfg.Columns, ", "), s.cfg.Table,
		strings.Join(conds, " AND "))

	rows, err := s.q().Query(ctx, query, args...)
	if err != nil {
		return store.Resolution{}, errors.Wrap(err, errors.ErrorTypeStore, "find query failed")
	}
	defer rows.Close()

	var matched []*models.Instance
	for rows.Next() {
		inst, err := s.scanInstance(rows)
		if err != nil {
			return store.Resolution{}, err
		}
		matched = append(matched, inst)
	}
	if err := rows.Err(); err != nil {
		return store.Resolution{}, errors.Wrap(err, errors.ErrorTypeStore, "find scan failed")
	}

	switch len(matched) {
	case 0:
		return store.Resolution{State: store.NotFound}, nil
	case 1:
		if err := s.loadRelations(ctx, matched[0]); err != nil {
			return store.Resolution{}, err
		}
		return store.Resolution{State: store.Found, Instance: matched[0], Matches: 1}, nil
	default:
		return store.Resolution{State: store.Ambiguous, Matches: len(matched)}, nil
	}
}

func (s *Store) scanInstance(rows pgx.Rows) (*models.Instance, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStore, "failed to read row values")
	}
	inst := models.NewInstance()
	inst.ID = values[0]
	for i, col := range s.cfg.Columns {
		inst.Set(col, values[i+1])
	}
	return inst, nil
}

func (s *Store) loadRelations(ctx context.Context, inst *models.Instance) error {
	for name, rel := range s.cfg.Relations {
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 ORDER BY %s",
			rel.TargetColumn, rel.JoinTable, rel.SourceColumn, rel.TargetColumn)
		rows, err := s.q().Query(ctx, query, inst.ID)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeStore, "relation query failed").
				WithDetail("relation", name)
		}
		var refs []interface{}
		for rows.Next() {
			var ref any
			if err := rows.Scan(&ref); err != nil {
				rows.Close()
				return errors.Wrap(err, errors.ErrorTypeStore, "relation scan failed").
					WithDetail("relation", name)
			}
			refs = append(refs, ref)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStore, "relation scan failed").
				WithDetail("relation", name)
		}
		inst.SetRelation(name, refs)
	}
	return nil
}

// Create returns a blank, unpersisted instance
func (s *Store) Create() *models.Instance {
	return models.NewInstance()
}

// Save persists scalar attributes, assigning an ID to new instances
func (s *Store) Save(ctx context.Context, inst *models.Instance) error {
	args := make([]any, 0, len(s.cfg.Columns)+1)
	for _, col := range s.cfg.Columns {
		args = append(args, inst.Get(col))
	}

	if inst.IsNew() {
		placeholders := make([]string, len(s.cfg.Columns))
		for i := range s.cfg.Columns {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			s.cfg.Table, strings.Join(s.cfg.Columns, ", "),
			strings.Join(placeholders, ", "), s.cfg.IDColumn)

		var id any
		if err := s.q().QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStore, "insert failed")
		}
		inst.ID = id
		return nil
	}

	sets := make([]string, len(s.cfg.Columns))
	for i, col := range s.cfg.Columns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args = append(args, inst.ID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		s.cfg.Table, strings.Join(sets, ", "), s.cfg.IDColumn, len(args))

	tag, err := s.q().Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStore, "update failed")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrorTypeStore, "record %v does not exist", inst.ID)
	}
	return nil
}

// Delete removes a persisted instance
func (s *Store) Delete(ctx context.Context, inst *models.Instance) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", s.cfg.Table, s.cfg.IDColumn)
	tag, err := s.q().Exec(ctx, query, inst.ID)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStore, "delete failed")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrorTypeStore, "record %v does not exist", inst.ID)
	}
	return nil
}

// SaveRelations replaces the join rows for every relationship attribute
func (s *Store) SaveRelations(ctx context.Context, inst *models.Instance) error {
	for name, refs := range inst.Relations {
		rel, ok := s.cfg.Relations[name]
		if !ok {
			return errors.Newf(errors.ErrorTypeConfig, "relation %q is not configured", name)
		}

		del := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", rel.JoinTable, rel.SourceColumn)
		if _, err := s.q().Exec(ctx, del, inst.ID); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStore, "relation clear failed").
				WithDetail("relation", name)
		}

		ins := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES ($1, $2)",
			rel.JoinTable, rel.SourceColumn, rel.TargetColumn)
		for _, ref := range refs {
			if _, err := s.q().Exec(ctx, ins, inst.ID, ref); err != nil {
				return errors.Wrap(err, errors.ErrorTypeStore, "relation insert failed").
					WithDetail("relation", name)
			}
		}
	}
	return nil
}

// Validate delegates to the configured Validator, if any
func (s *Store) Validate(inst *models.Instance, excluded []string) error {
	if s.Validator == nil {
		return nil
	}
	return s.Validator(inst, excluded)
}

// SupportsTransactions reports transaction support
func (s *Store) SupportsTransactions() bool {
	return true
}

// Begin opens a transaction covering subsequent writes
func (s *Store) Begin(ctx context.Context) error {
	if s.tx != nil {
		return errors.New(errors.ErrorTypeStore, "transaction already open")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStore, "failed to begin transaction")
	}
	s.tx = tx
	return nil
}

// Commit makes writes since Begin durable
func (s *Store) Commit(ctx context.Context) error {
	if s.tx == nil {
		return errors.New(errors.ErrorTypeStore, "no open transaction")
	}
	err := s.tx.Commit(ctx)
	s.tx = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStore, "commit failed")
	}
	return nil
}

// Rollback discards writes since Begin
func (s *Store) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return errors.New(errors.ErrorTypeStore, "no open transaction")
	}
	err := s.tx.Rollback(ctx)
	s.tx = nil
	if err != nil && err != pgx.ErrTxClosed {
		return errors.Wrap(err, errors.ErrorTypeStore, "rollback failed")
	}
	return nil
}

// Scan streams all records in bounded keyset pages ordered by identity
func (s *Store) Scan(ctx context.Context, chunkSize int, fn func(*models.Instance) error) error {
	if chunkSize <= 0 {
		chunkSize = 1000
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s::text > $1 ORDER BY %s::text LIMIT $2",
		s.cfg.IDColumn, strings.Join(s.cfg.Columns, ", "), s.cfg.Table,
		s.cfg.IDColumn, s.cfg.IDColumn)

	lastID := ""
	for {
		rows, err := s.q().Query(ctx, query, lastID, chunkSize)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeStore, "scan query failed")
		}

		var page []*models.Instance
		for rows.Next() {
			inst, err := s.scanInstance(rows)
			if err != nil {
				rows.Close()
				return err
			}
			page = append(page, inst)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStore, "scan failed")
		}

		for _, inst := range page {
			if err := s.loadRelations(ctx, inst); err != nil {
				return err
			}
			if err := fn(inst); err != nil {
				return err
			}
			lastID = fmt.Sprint(inst.ID)
		}

		if len(page) < chunkSize {
			return nil
		}
	}
}
