package main

import (
	"fmt"
	"time"

	"qcgallery/internal/migration"
	"qcgallery/internal/mockdata"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

type seedOptions struct {
	driver          string
	dsn             string
	factoryTable    string
	inspectionTable string
	count           int
	koRate          float64
	days            int
	seed            int64
}

func newSeedCmd() *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the tables and load generated inspections into a dev database",
		Long: `Create the factory and inspection tables if missing and load
generated records into them.

Example: qcctl seed --driver sqlite --dsn ./qc.db --count 5000 --ko-rate 0.05`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.driver, "driver", "sqlite", "Database driver: sqlite or postgres")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "Data source name")
	cmd.Flags().StringVar(&opts.factoryTable, "factory-table", "factories", "Factory table name")
	cmd.Flags().StringVar(&opts.inspectionTable, "inspection-table", "inspections", "Inspection table name")
	cmd.Flags().IntVar(&opts.count, "count", 1000, "Number of inspections to generate")
	cmd.Flags().Float64Var(&opts.koRate, "ko-rate", 0.05, "Share of KO inspections")
	cmd.Flags().IntVar(&opts.days, "days", 7, "Days the timestamps spread over, ending today")
	cmd.Flags().Int64Var(&opts.seed, "seed", 42, "Random seed")
	_ = cmd.MarkFlagRequired("dsn")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *seedOptions) error {
	if opts.koRate < 0 || opts.koRate > 1 {
		return fmt.Errorf("--ko-rate must be between 0 and 1")
	}
	if opts.days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}

	db, err := sqlx.Open(opts.driver, opts.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if err := migration.NewRunner(opts.factoryTable, opts.inspectionTable).Run(ctx, db); err != nil {
		return err
	}

	span := time.Duration(opts.days) * 24 * time.Hour
	cfg := mockdata.DefaultInspectionConfig()
	cfg.Count = opts.count
	cfg.KORate = opts.koRate
	cfg.Seed = opts.seed
	cfg.Span = span
	cfg.Start = time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour).Add(-span)

	loader := mockdata.NewLoader(db, opts.factoryTable, opts.inspectionTable)
	factories := mockdata.FactoriesFor()
	if err := loader.LoadFactories(ctx, factories); err != nil {
		return err
	}
	rows := mockdata.NewInspectionGenerator(cfg).Generate()
	if err := loader.LoadInspections(ctx, rows); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d factories and %d inspections into %s\n", len(factories), len(rows), opts.inspectionTable)
	return nil
}
