package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rowforge/rowforge/internal/engine"
	"github.com/rowforge/rowforge/pkg/config"
	"github.com/rowforge/rowforge/pkg/dataset"
	"github.com/rowforge/rowforge/pkg/logger"
	"github.com/rowforge/rowforge/pkg/resource"
	"github.com/rowforge/rowforge/pkg/store/postgres"
	"github.com/rowforge/rowforge/pkg/tempstore"
)

var version = "0.1.0"

// jobConfig is the YAML shape of a rowforge job file: the declarative
// resource mapping plus the store the records live in.
type jobConfig struct {
	Resource resource.Mapping `yaml:"resource"`
	Store    struct {
		// DatabaseURL is the PostgreSQL connection string; supports
		// ${ENV_VAR} substitution
		DatabaseURL string          `yaml:"database_url"`
		Postgres    postgres.Config `yaml:",inline"`
	} `yaml:"store"`
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	root := &cobra.Command{
		Use:   "rowforge",
		Short: "rowforge - dataset import/export reconciliation engine",
		Long: `rowforge reconciles tabular datasets (CSV) with persistent records:
each row is classified as new, update, delete, skip, error or invalid,
with per-field conversion, validation and human-readable diffs.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rowforge v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newImportCmd())
	root.AddCommand(newExportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	var (
		configFile  string
		inputFile   string
		encoding    string
		failedFile  string
		logLevel    string
		stashDir    string
		fromKey     string
		timeout     time.Duration
		dryRun      bool
		raiseErrors bool
		skipUnch    bool
		useTx       bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a dataset into the configured store",
		Long: `Import a CSV dataset, reconciling each row with the persistent records
described by the job configuration.

A dry run stashes the payload so the confirmed import replays exactly the
bytes that were previewed:

  rowforge import --config books.yaml --input books.csv --dry-run
  rowforge import --config books.yaml --from-key <key>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: logLevel, Encoding: "console"}); err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if inputFile == "" && fromKey == "" {
				return fmt.Errorf("either --input or --from-key is required")
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			ctrl, st, opts, err := buildController(ctx, configFile, func(o *config.Options) {
				o.DryRun = dryRun
				o.RaiseErrors = raiseErrors
				o.SkipUnchanged = skipUnch
				o.UseTransactions = useTx
				o.CollectFailedRows = failedFile != ""
			})
			if err != nil {
				return err
			}
			defer st.Close()

			stash, err := tempstore.NewFilesystem(stashDir)
			if err != nil {
				return err
			}

			payload, err := loadPayload(stash, inputFile, fromKey)
			if err != nil {
				return err
			}

			var csvOpts []dataset.CSVOption
			if encoding != "" {
				csvOpts = append(csvOpts, dataset.WithEncoding(encoding))
			}

			start := time.Now()
			result, err := ctrl.ProcessCSV(ctx, bytes.NewReader(payload), csvOpts...)
			if err != nil {
				return err
			}

			printSummary(result, time.Since(start))

			if failedFile != "" && result.FailedDataset() != nil && result.FailedDataset().Len() > 0 {
				if err := writeFailedDataset(result, failedFile, encoding); err != nil {
					return err
				}
				fmt.Printf("failed rows written to %s\n", failedFile)
			}

			if !opts.DryRun && (result.HasErrors() || result.HasValidationErrors()) {
				return fmt.Errorf("import finished with %d error row(s) and %d invalid row(s)",
					result.Total(engine.ImportTypeError), result.Total(engine.ImportTypeInvalid))
			}

			if opts.DryRun {
				key, err := stash.Write(payload)
				if err != nil {
					return err
				}
				fmt.Printf("dry run only, nothing persisted; payload stashed under key %s\n", key)
				fmt.Printf("confirm with: rowforge import --config %s --from-key %s\n", configFile, key)
			} else if fromKey != "" {
				if err := stash.Remove(fromKey); err != nil {
					fmt.Fprintf(os.Stderr, "warning: stashed payload not removed: %v\n", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to job configuration YAML file (required)")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Path to input CSV file")
	_ = cmd.MarkFlagRequired("config")

	cmd.Flags().StringVar(&encoding, "encoding", "", "Input charset (IANA name, e.g. windows-1252); default UTF-8")
	cmd.Flags().StringVar(&failedFile, "failed", "", "Write failed rows with error details to this CSV file")
	cmd.Flags().StringVar(&stashDir, "stash-dir", defaultStashDir(), "Directory for payloads stashed between dry-run and confirmation")
	cmd.Flags().StringVar(&fromKey, "from-key", "", "Replay a payload stashed by a previous dry run instead of --input")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Batch timeout")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview the full pipeline without persisting anything")
	cmd.Flags().BoolVar(&raiseErrors, "raise-errors", false, "Abort the whole batch on the first failure")
	cmd.Flags().BoolVar(&skipUnch, "skip-unchanged", false, "Classify rows with no field changes as skip")
	cmd.Flags().BoolVar(&useTx, "transactions", true, "Wrap the batch in one store transaction")

	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		configFile string
		outputFile string
		encoding   string
		logLevel   string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the configured store's records as a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: logLevel, Encoding: "console"}); err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			ctrl, st, _, err := buildController(ctx, configFile, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			output, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer output.Close()

			var csvOpts []dataset.CSVOption
			if encoding != "" {
				csvOpts = append(csvOpts, dataset.WithEncoding(encoding))
			}
			writer, err := dataset.NewCSVWriter(output, csvOpts...)
			if err != nil {
				return err
			}

			if err := ctrl.Export(ctx, writer); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to job configuration YAML file (required)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Path to output CSV file (required)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("output")

	cmd.Flags().StringVar(&encoding, "encoding", "", "Output charset (IANA name); default UTF-8")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Export timeout")

	return cmd
}

// defaultStashDir is where dry-run payloads wait for confirmation unless
// the operator points --stash-dir elsewhere
func defaultStashDir() string {
	return filepath.Join(os.TempDir(), "rowforge-stash")
}

// loadPayload returns the dataset bytes to import: the stashed payload for
// key if one was given, otherwise the contents of inputFile
func loadPayload(stash tempstore.Storage, inputFile, key string) ([]byte, error) {
	if key != "" {
		return stash.Read(key)
	}
	payload, err := os.ReadFile(inputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return payload, nil
}

// buildController loads the job config and wires resource, store and
// controller together
func buildController(ctx context.Context, configFile string, override func(*config.Options)) (*engine.Controller, *postgres.Store, *config.Options, error) {
	var job jobConfig
	if err := config.Load(configFile, &job); err != nil {
		return nil, nil, nil, err
	}
	if job.Store.DatabaseURL == "" {
		return nil, nil, nil, fmt.Errorf("store.database_url is required")
	}

	st, err := postgres.Connect(ctx, job.Store.DatabaseURL, job.Store.Postgres)
	if err != nil {
		return nil, nil, nil, err
	}

	res, err := resource.FromMapping(job.Resource, st)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}

	opts := config.NewOptions()
	if override != nil {
		override(opts)
	}

	ctrl, err := engine.NewController(res, st, opts,
		engine.WithLogger(logger.With(zap.String("component", "rowforge-cli"))))
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	return ctrl, st, opts, nil
}

func printSummary(result *engine.Result, elapsed time.Duration) {
	fmt.Printf("processed %d rows in %s\n", result.TotalRows(), elapsed.Round(time.Millisecond))
	fmt.Printf("  new:     %d\n", result.Total(engine.ImportTypeNew))
	fmt.Printf("  update:  %d\n", result.Total(engine.ImportTypeUpdate))
	fmt.Printf("  delete:  %d\n", result.Total(engine.ImportTypeDelete))
	fmt.Printf("  skip:    %d\n", result.Total(engine.ImportTypeSkip))
	fmt.Printf("  error:   %d\n", result.Total(engine.ImportTypeError))
	fmt.Printf("  invalid: %d\n", result.Total(engine.ImportTypeInvalid))

	for _, err := range result.BaseErrors() {
		fmt.Fprintf(os.Stderr, "base error: %v\n", err)
	}
	for _, rr := range result.RowResults() {
		if rr.ImportType == engine.ImportTypeError || rr.ImportType == engine.ImportTypeInvalid {
			fmt.Fprintf(os.Stderr, "row %d (%s): %s\n", rr.Number, rr.ImportType, rr.ErrorText())
		}
	}
}

func writeFailedDataset(result *engine.Result, path, encoding string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create failed-rows file: %w", err)
	}
	defer out.Close()

	var csvOpts []dataset.CSVOption
	if encoding != "" {
		csvOpts = append(csvOpts, dataset.WithEncoding(encoding))
	}
	writer, err := dataset.NewCSVWriter(out, csvOpts...)
	if err != nil {
		return err
	}
	return result.FailedDataset().WriteTo(writer)
}
