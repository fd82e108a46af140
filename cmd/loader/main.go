// Command loader imports the master Excel workbook into the PostgreSQL
// catalog. Run it once before first boot and again whenever the workbook
// changes; each run replaces the catalog wholesale.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/prepworks/mcat-scheduler/internal/catalog"
	"github.com/prepworks/mcat-scheduler/internal/ingest"
	"github.com/prepworks/mcat-scheduler/internal/platform/config"
	"github.com/prepworks/mcat-scheduler/internal/platform/database"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	workbook := flag.String("workbook", "", "path to the master workbook (defaults to MCAT_CATALOG_WORKBOOK_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	path := *workbook
	if path == "" {
		path = cfg.Catalog.WorkbookPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := catalog.NewPostgresStore(db.Pool)
	if err != nil {
		slog.Error("failed to create catalog store", "error", err)
		os.Exit(1)
	}
	if err := store.Migrate(ctx); err != nil {
		slog.Error("failed to migrate catalog schema", "error", err)
		os.Exit(1)
	}

	loader := ingest.NewLoader(path, store)
	if err := loader.LoadAll(ctx); err != nil {
		slog.Error("workbook ingestion failed", "workbook", path, "error", err)
		os.Exit(1)
	}
}
