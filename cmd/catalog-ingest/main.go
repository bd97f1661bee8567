// Command catalog-ingest bulk-imports products from gzipped JSONL supplier
// feeds. Supplier data is noisy: a SKU is trusted only when at least two
// independent feeds carry it. The ingest makes two streaming passes: one to
// build a per-feed bloom filter of SKUs, one to collect records whose SKU
// also appears in another feed, then upserts the survivors.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/openkiosk/storefront/internal/domain/product"
	"github.com/openkiosk/storefront/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// feedProduct is one JSONL record in a supplier feed.
type feedProduct struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"imageUrl"`
	Stock       int             `json:"stock"`
}

func (p feedProduct) valid() bool {
	return p.SKU != "" && p.Name != "" && !p.Price.IsNegative() && p.Stock >= 0
}

// fileResult holds candidate records found in a single feed during pass 2.
type fileResult struct {
	masks   map[string]uint
	records map[string]feedProduct
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing feed*.jsonl.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "feed*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feeds")
	}
	sort.Strings(files)
	if len(files) < 2 {
		return errors.Errorf("need at least 2 feeds in %s, found %d", dataDir, len(files))
	}

	// Pass 1: build one bloom filter of SKUs per feed, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("feeds", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: collect records whose SKU appears in another feed too.
	slog.Info("pass 2: finding cross-feed SKUs")

	survivors, err := findTrustedProducts(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find trusted products")
	}

	slog.Info("trusted products found", slog.Int("count", len(survivors)))

	if len(survivors) == 0 {
		slog.Info("nothing to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := writeProducts(ctx, repository.NewProductRepository(pool), survivors); err != nil {
		return errors.Wrap(err, "write products to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per feed, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFeed(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFeed(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamFeed(ctx, path, func(p feedProduct) {
			filter.AddString(p.SKU)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("records", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for feed %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_records", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findTrustedProducts re-streams each feed and checks SKUs against OTHER
// feeds' bloom filters. A product is trusted if its SKU appears in 2 or more
// feeds; the record from the highest-numbered feed wins.
func findTrustedProducts(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]feedProduct, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFeed(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge feed-presence bitmasks; later feeds overwrite earlier records.
	merged := make(map[string]uint)
	records := make(map[string]feedProduct)
	for _, r := range results {
		for sku, mask := range r.masks {
			merged[sku] |= mask
			records[sku] = r.records[sku]
		}
	}

	var trusted []feedProduct
	for sku, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			trusted = append(trusted, records[sku])
		}
	}

	return trusted, nil
}

func findCandidatesInFeed(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		masks := make(map[string]uint)
		records := make(map[string]feedProduct)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamFeed(ctx, path, func(p feedProduct) {
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("records", count),
				)
			}

			// Does this SKU appear in any OTHER feed?
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(p.SKU) {
					masks[p.SKU] |= fileBit
					records[p.SKU] = p
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan feed %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_records", count),
			slog.Int("candidates", len(masks)),
		)

		results[idx] = fileResult{masks: masks, records: records}
		return nil
	}
}

// streamFeed opens a gzip-compressed JSONL feed and calls fn for each valid
// record. Malformed lines are skipped, not fatal.
func streamFeed(ctx context.Context, path string, fn func(p feedProduct)) error {
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

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var p feedProduct
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil || !p.valid() {
			continue
		}
		fn(p)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeProducts upserts all trusted products, keyed by SKU.
func writeProducts(ctx context.Context, repo *repository.ProductRepository, products []feedProduct) error {
	slog.Info("writing products to database", slog.Int("count", len(products)))

	for i, p := range products {
		err := repo.Upsert(ctx, &product.Product{
			ID:          p.SKU,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Category:    p.Category,
			ImageURL:    p.ImageURL,
			Stock:       p.Stock,
			Active:      true,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.SKU)
		}

		if (i+1)%100 == 0 || i+1 == len(products) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(products)))
		}
	}

	return nil
}
