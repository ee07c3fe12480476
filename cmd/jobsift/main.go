// Command jobsift ingests a scraped postings snapshot into the job database
// and rolls the day's signatures into the dedup ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/jobsift/jobsift/internal/config"
	"github.com/jobsift/jobsift/internal/extract"
	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/ledger"
	"github.com/jobsift/jobsift/internal/pipeline"
	"github.com/jobsift/jobsift/internal/store"
	"github.com/jobsift/jobsift/internal/taxonomy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "jobsift:", err)
		os.Exit(1)
	}
}

func run() error {
	postingsPath := flag.String("postings", "", "path to the scraped postings snapshot (JSON)")
	flag.Parse()
	if *postingsPath == "" {
		return fmt.Errorf("-postings is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	snap, names, err := loadTaxonomy(ctx, db, cfg.TaxonomyCap)
	if err != nil {
		return err
	}
	log.Info().Int("technologies", snap.Len()).Msg("taxonomy loaded")

	matcher := taxonomy.NewMatcher(snap, extract.NewKeywordExtractor(names), log)

	ledgerStore, err := ledger.NewFileStore(cfg.LedgerDir)
	if err != nil {
		return err
	}

	src, err := loadFileSource(*postingsPath)
	if err != nil {
		return err
	}

	engine := jobs.NewEngine(db, matcher, log)
	runner := pipeline.NewRunner(engine, ledgerStore, cfg.ItemDelay, log)

	summary, err := runner.Run(ctx, src.companies, src)
	if err != nil {
		return err
	}
	if summary.Failures > 0 {
		return fmt.Errorf("%d of %d companies failed", summary.Failures, summary.Companies)
	}
	return nil
}

func loadTaxonomy(ctx context.Context, db store.Store, cap int) (*taxonomy.Snapshot, []string, error) {
	rows, err := db.Technologies().List(ctx, cap)
	if err != nil {
		return nil, nil, fmt.Errorf("load taxonomy: %w", err)
	}
	entries := make([]taxonomy.Entry, len(rows))
	names := make([]string, len(rows))
	for i, t := range rows {
		entries[i] = taxonomy.Entry{ID: t.ID, Name: t.Name, Category: t.Category, ParentID: t.ParentID}
		names[i] = t.Name
	}
	if err := taxonomy.Validate(entries); err != nil {
		return nil, nil, err
	}
	return taxonomy.NewSnapshot(entries, cap), names, nil
}
