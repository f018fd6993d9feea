package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shop-api/internal/catalogio"
	"github.com/xenking/shop-api/internal/domain/product"
	"github.com/xenking/shop-api/internal/storage/postgres"
)

const (
	progressEvery = 10_000
	batchSize     = 500
)

type stats struct {
	read       atomic.Uint64
	duplicates atomic.Uint64
	invalid    atomic.Uint64
	created    atomic.Uint64
}

func main() {
	var (
		pattern     string
		databaseURL string
		capacity    uint
		fpr         float64
	)

	flag.StringVar(&pattern, "files", "data/catalog*.jsonl.gz", "glob of gzip-compressed JSON lines catalog dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&capacity, "expected", 1_000_000, "expected number of distinct products, sizes the duplicate filter")
	flag.Float64Var(&fpr, "fpr", 0.0001, "duplicate filter false positive rate")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, databaseURL, catalogio.NewDedup(capacity, fpr)); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, pattern, databaseURL string, dedup *catalogio.Dedup) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "match files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %q", pattern)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	products := product.NewService(product.ServiceConfig{}, postgres.NewProductRepository(pool), nil)

	var st stats
	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(importFile(ctx, i, f, products, dedup, &st))
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("files", len(files)),
		slog.Uint64("read", st.read.Load()),
		slog.Uint64("created", st.created.Load()),
		slog.Uint64("duplicates", st.duplicates.Load()),
		slog.Uint64("invalid", st.invalid.Load()),
	)
	return nil
}

// importFile streams one dump and writes its new, valid products in batches.
func importFile(
	ctx context.Context,
	idx int,
	path string,
	products *product.Service,
	dedup *catalogio.Dedup,
	st *stats,
) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		batch := make([]product.Product, 0, batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			created, err := products.CreateMany(ctx, batch)
			if err != nil {
				return errors.Wrapf(err, "write batch from %s", path)
			}
			st.created.Add(uint64(len(created)))
			batch = make([]product.Product, 0, batchSize)
			return nil
		}

		var count uint64
		if err := catalogio.StreamLines(ctx, gz, func(rec catalogio.Record) error {
			st.read.Add(1)
			count++
			if count%progressEvery == 0 {
				slog.Info("import progress", slog.Int("file", idx+1), slog.Uint64("records", count))
			}

			p := rec.Product()
			if err := p.Validate(); err != nil {
				st.invalid.Add(1)
				slog.Debug("skipping invalid record", slog.String("file", path), slog.String("error", err.Error()))
				return nil
			}
			if dedup.Seen(rec.Key()) {
				st.duplicates.Add(1)
				return nil
			}

			batch = append(batch, p)
			if len(batch) == batchSize {
				return flush()
			}
			return nil
		}, func(e *catalogio.LineError) {
			st.invalid.Add(1)
			slog.Warn("skipping malformed record", slog.String("file", path), slog.Int("line", e.Line))
		}); err != nil {
			return errors.Wrapf(err, "import file %d", idx+1)
		}
		if err := flush(); err != nil {
			return err
		}

		slog.Info("file complete", slog.Int("file", idx+1), slog.Uint64("records", count))
		return nil
	}
}
