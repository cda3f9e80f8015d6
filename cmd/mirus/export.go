package main

import (
	"github.com/spf13/cobra"

	"github.com/inodb/mirus/internal/export"
)

func newExportCmd() *cobra.Command {
	var (
		dsn    string
		driver string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a release into a relational database",
		Long: `Export writes organisms, precursors, mature miRNAs and their genome
placements into DuckDB, SQLite or Postgres tables. Existing export tables
are replaced.`,
		Example: `  mirus export --db mirbase.duckdb
  mirus export --driver sqlite --db mirbase.sqlite
  mirus export --driver pgx --db postgres://localhost/mirbase?sslmode=disable`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := export.ParseDriver(driver)
			if err != nil {
				return err
			}
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}

			x, err := export.Open(cmd.Context(), d, dsn)
			if err != nil {
				return err
			}
			defer x.Close()
			x.SetLogger(logger)

			counts, err := x.Write(cmd.Context(), db.Store())
			if err != nil {
				return err
			}
			statusf(cmd, "Exported %d rows of miRBase %s to %s", counts.Total(), db.Version(), d)
			return writeOutput(cmd, counts)
		},
	}
	cmd.Flags().StringVar(&dsn, "db", "mirbase.duckdb", "Database file path or DSN")
	cmd.Flags().StringVar(&driver, "driver", string(export.DuckDB), "Database driver: duckdb, sqlite, pgx")
	return cmd
}
