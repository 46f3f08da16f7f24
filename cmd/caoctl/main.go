package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"lotorder-engine/internal/artifact"
	"lotorder-engine/internal/config"
	"lotorder-engine/internal/model"
	"lotorder-engine/internal/normalize"
	"lotorder-engine/internal/qr"
	"lotorder-engine/internal/repository"
	"lotorder-engine/internal/service"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
)

// Exit codes for the reconcile command. Scripts key off these.
const (
	exitOK                = 0
	exitFatal             = 1
	exitUnknownDealership = 2
	exitEmptyOrder        = 3
)

func main() {
	log.SetFlags(log.LstdFlags)

	root := &cobra.Command{
		Use:           "caoctl",
		Short:         "LotOrder reconciliation and migration CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newReconcileCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newDealershipsCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitFatal)
	}
}

// reconcileOptions holds flags for the reconcile command.
type reconcileOptions struct {
	DealershipID int64
	Mode         string
	VINs         []string
	SnapshotPath string
}

func newReconcileCommand() *cobra.Command {
	opts := &reconcileOptions{}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one order cycle for a dealership",
		Long: `Run one order cycle for a dealership and write the CSV export.

In cao mode the snapshot is diffed against the dealership's VIN history;
in list mode the given VINs are exported directly (history is not
consulted, but it is still recorded afterward).

Exit codes: 0 order written (possibly with QR failures), 2 unknown or
inactive dealership, 3 empty list order, 1 any other failure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts)
		},
	}

	cmd.Flags().Int64Var(&opts.DealershipID, "dealership", 0, "dealership ID (required)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "cao", "order mode (cao|list)")
	cmd.Flags().StringSliceVar(&opts.VINs, "vin", nil, "VIN to include (list mode, repeatable)")
	cmd.Flags().StringVar(&opts.SnapshotPath, "snapshot", "", "path to snapshot JSON file (required)")
	_ = cmd.MarkFlagRequired("dealership")
	_ = cmd.MarkFlagRequired("snapshot")

	return cmd
}

func runReconcile(opts *reconcileOptions) error {
	mode := model.OrderMode(opts.Mode)
	if mode != model.ModeCAO && mode != model.ModeList {
		return fmt.Errorf("invalid mode %q: must be cao or list", opts.Mode)
	}
	if mode == model.ModeList && len(opts.VINs) == 0 {
		return fmt.Errorf("list mode requires at least one --vin")
	}

	snapshot, rejected, err := loadSnapshot(opts.SnapshotPath, opts.DealershipID)
	if err != nil {
		return err
	}
	if rejected > 0 {
		log.Printf("Skipped %d malformed snapshot records", rejected)
	}

	cfg := config.MustLoad()

	dealerships, history, cleanup, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	generator := qr.NewHTTPGenerator(qr.HTTPGeneratorConfig{
		BaseURL:     cfg.QR.BaseURL,
		SizePixels:  cfg.QR.SizePixels,
		CallTimeout: cfg.QR.CallTimeout,
	})
	sequencer := artifact.NewSequencer(generator, artifact.Config{
		Workers:     cfg.QR.Workers,
		Retries:     cfg.QR.Retries,
		CallTimeout: cfg.QR.CallTimeout,
	})

	// Redis is not wired here: a one-shot CLI invocation only needs the
	// in-process lock.
	locker := service.NewDealershipLocker(nil, cfg.Cache.LockLeaseTTL)

	orderService := service.NewOrderService(
		dealerships,
		history,
		sequencer,
		locker,
		service.NewMemoryStatusStore(),
		service.OrderConfig{
			ExportDir:     cfg.Order.ExportDir,
			JobTimeout:    cfg.Order.JobTimeout,
			DefaultQRRoot: cfg.Order.QRRoot,
		},
	)
	if orderService == nil {
		return fmt.Errorf("failed to initialize order service")
	}

	result, err := orderService.Execute(context.Background(), service.OrderRequest{
		DealershipID: opts.DealershipID,
		Mode:         mode,
		VINList:      opts.VINs,
		Snapshot:     snapshot,
		Progress: func(phase string, done, total int) {
			log.Printf("[%s] %d/%d", phase, done, total)
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownDealership), errors.Is(err, service.ErrInactiveDealership):
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(exitUnknownDealership)
		case errors.Is(err, service.ErrEmptyOrder):
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(exitEmptyOrder)
		}
		return err
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if len(result.QRFailures) > 0 {
		log.Printf("Warning: %d vehicles failed QR generation and were held back", len(result.QRFailures))
	}
	return nil
}

// loadSnapshot reads a JSON array of raw scraper records and normalizes it.
func loadSnapshot(path string, dealershipID int64) ([]model.VehicleRecord, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var raws []normalize.Raw
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, 0, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	observedAt := time.Now().UTC()
	records := make([]model.VehicleRecord, 0, len(raws))
	rejected := 0
	for _, raw := range raws {
		rec, err := normalize.Vehicle(raw, dealershipID, observedAt)
		if err != nil {
			rejected++
			continue
		}
		records = append(records, rec)
	}
	return records, rejected, nil
}

// migrateOptions holds flags for the migrate command.
type migrateOptions struct {
	DestPath   string
	VerifyOnly bool
}

func newMigrateCommand() *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy the unified history into per-dealership tables",
		Long: `Copy the unified VIN history into per-dealership partition tables.

The source is never modified and every copy is an idempotent upsert, so
the command is safe to re-run after a failure. With --verify-only the
readiness and mapping checks run without copying any rows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts)
		},
	}

	cmd.Flags().StringVar(&opts.DestPath, "dest", "./data/history_partitioned.db", "destination SQLite path (sqlite backend only)")
	cmd.Flags().BoolVar(&opts.VerifyOnly, "verify-only", false, "run readiness and mapping checks without copying")

	return cmd
}

func runMigrate(opts *migrateOptions) error {
	cfg := config.MustLoad()
	ctx := context.Background()

	dealerships, err := repository.NewSQLiteDealershipRepository(cfg.HistoryDB.DealershipPath)
	if err != nil {
		return fmt.Errorf("failed to open dealership repository: %w", err)
	}
	defer dealerships.Close()

	registry, err := repository.BuildPartitionRegistry(ctx, dealerships, cfg.HistoryDB.Overrides())
	if err != nil {
		return fmt.Errorf("failed to build partition registry: %w", err)
	}

	var source, destination repository.HistoryStore
	switch cfg.HistoryDB.Type {
	case "mysql":
		db, err := sql.Open("mysql", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("failed to open MySQL: %w", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return fmt.Errorf("MySQL ping failed: %w", err)
		}
		if source, err = repository.NewMySQLHistoryStore(db); err != nil {
			return err
		}
		if destination, err = repository.NewPartitionedMySQLHistoryStore(db, registry); err != nil {
			return err
		}
	default: // sqlite
		if source, err = repository.NewSQLiteHistoryStore(cfg.HistoryDB.Path); err != nil {
			return err
		}
		defer source.Close()
		if destination, err = repository.NewPartitionedSQLiteHistoryStore(opts.DestPath, registry); err != nil {
			return err
		}
		defer destination.Close()
	}

	coordinator := repository.NewMigrationCoordinator(source, destination, registry, dealerships)

	if opts.VerifyOnly {
		if err := coordinator.CheckReadiness(ctx); err != nil {
			return err
		}
		if err := coordinator.VerifyMapping(ctx); err != nil {
			return err
		}
		fmt.Println("Readiness and mapping checks passed; no rows copied.")
		return nil
	}

	report, err := coordinator.Run(ctx)
	if report != nil {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
	}
	return err
}

func newDealershipsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dealerships",
		Short: "List configured dealerships",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.MustLoad()

			repo, err := repository.NewSQLiteDealershipRepository(cfg.HistoryDB.DealershipPath)
			if err != nil {
				return fmt.Errorf("failed to open dealership repository: %w", err)
			}
			defer repo.Close()

			configs, err := repo.List(context.Background())
			if err != nil {
				return err
			}
			for _, c := range configs {
				state := "inactive"
				if c.IsActive {
					state = "active"
				}
				fmt.Printf("%d\t%s\t%s\n", c.ID, c.Name, state)
			}
			return nil
		},
	}
}

// openStores opens the dealership repository and the configured history
// store. The returned cleanup closes everything that was opened.
func openStores(cfg *config.Config) (repository.DealershipRepository, repository.HistoryStore, func(), error) {
	dealerships, err := repository.NewSQLiteDealershipRepository(cfg.HistoryDB.DealershipPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open dealership repository: %w", err)
	}

	var registry *repository.PartitionRegistry
	if cfg.HistoryDB.Layout == "partitioned" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		registry, err = repository.BuildPartitionRegistry(ctx, dealerships, cfg.HistoryDB.Overrides())
		cancel()
		if err != nil {
			dealerships.Close()
			return nil, nil, nil, fmt.Errorf("failed to build partition registry: %w", err)
		}
	}

	var history repository.HistoryStore
	var mysqlDB *sql.DB
	switch cfg.HistoryDB.Type {
	case "mysql":
		mysqlDB, err = sql.Open("mysql", cfg.Database.DSN())
		if err == nil {
			err = mysqlDB.Ping()
		}
		if err != nil {
			dealerships.Close()
			return nil, nil, nil, fmt.Errorf("MySQL connection failed: %w", err)
		}
		if cfg.HistoryDB.Layout == "partitioned" {
			history, err = repository.NewPartitionedMySQLHistoryStore(mysqlDB, registry)
		} else {
			history, err = repository.NewMySQLHistoryStore(mysqlDB)
		}
	default: // sqlite
		if cfg.HistoryDB.Layout == "partitioned" {
			history, err = repository.NewPartitionedSQLiteHistoryStore(cfg.HistoryDB.Path, registry)
		} else {
			history, err = repository.NewSQLiteHistoryStore(cfg.HistoryDB.Path)
		}
	}
	if err != nil {
		if mysqlDB != nil {
			mysqlDB.Close()
		}
		dealerships.Close()
		return nil, nil, nil, fmt.Errorf("failed to open history store: %w", err)
	}

	cleanup := func() {
		history.Close()
		if mysqlDB != nil {
			mysqlDB.Close()
		}
		dealerships.Close()
	}
	return dealerships, history, cleanup, nil
}
