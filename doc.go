// Package rowforge is a dataset import/export reconciliation engine: it takes
// tabular datasets (CSV and in-memory tables) and reconciles each row with
// persistent records, classifying every row as new, update, delete, skip,
// error or invalid.
//
// # Architecture
//
// rowforge is organized around a small set of composable pieces:
//
// 1. Widgets (pkg/widget): bidirectional converters between raw cell strings
// and native Go values, covering strings, numerics, decimals, booleans,
// temporal values, JSON and relationships.
//
// 2. Resources (pkg/resource): declarative field mappings binding dataset
// columns to record attributes through widgets, with optional per-resource
// hooks for row rewriting, delete predicates and widget overrides.
//
// 3. Stores (pkg/store): persistence behind a uniform interface with
// in-memory and PostgreSQL implementations, dry-run wrapping and optional
// transaction support.
//
// 4. The engine (internal/engine): a batch controller driving a per-row state
// machine through resolution, population, validation, persistence and
// word-level diff rendering, producing a structured result with per-row
// outcomes, failed-row collection and aggregate totals.
//
// # Quick Start
//
// Import a CSV file into an in-memory store. The engine package lives under
// internal/, so this wiring is available to code inside this module; external
// consumers drive the same pipeline through the rowforge CLI.
//
//	import (
//	    "context"
//	    "fmt"
//	    "os"
//
//	    "github.com/rowforge/rowforge/internal/engine"
//	    "github.com/rowforge/rowforge/pkg/config"
//	    "github.com/rowforge/rowforge/pkg/resource"
//	    "github.com/rowforge/rowforge/pkg/store"
//	    "github.com/rowforge/rowforge/pkg/widget"
//	)
//
//	res := resource.New("books",
//	    resource.Field{Attribute: "id", Widget: &widget.Int{}, ImportID: true},
//	    resource.Field{Attribute: "name", Widget: &widget.String{}},
//	    resource.Field{Attribute: "price", Widget: &widget.Decimal{}},
//	)
//	st := store.NewMemory()
//	ctrl, _ := engine.NewController(res, st, config.NewOptions())
//
//	f, _ := os.Open("books.csv")
//	defer f.Close()
//	result, _ := ctrl.ProcessCSV(context.Background(), f)
//	for t, n := range result.Totals() {
//	    fmt.Println(t, n)
//	}
//
// The rowforge CLI (cmd/rowforge) wires the same pieces from a YAML job file
// against a PostgreSQL store.
package rowforge
