// Command rule-ingest bulk-loads promo codes into the discount_rules table.
//
// The input is a set of large gzip-compressed code lists (codebase1.gz,
// codebase2.gz, codebase3.gz). A code counts as valid when it appears in at
// least two of the three files. The files are far too large to hold in
// memory, so validation runs in two passes: pass 1 builds one bloom filter
// per file, pass 2 re-streams each file and tests codes against the other
// files' filters. Valid codes are stored with a discount configuration from
// a small table of known promotions, defaulting to 10% off the order.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/jcilabs/discount-engine/internal/domain/discount"
	"github.com/jcilabs/discount-engine/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// ruleTemplate pairs an engine configuration blob with its description for a
// known promo code.
type ruleTemplate struct {
	config      string
	description string
}

var knownRules = map[string]ruleTemplate{
	"FIFTYOFF": {
		config:      `{"kind":"ORDER_AMOUNT","value":{"type":"PERCENT","percent":50}}`,
		description: "50% off entire order",
	},
	"SIXTYOFF": {
		config:      `{"kind":"ORDER_AMOUNT","value":{"type":"PERCENT","percent":60}}`,
		description: "60% off entire order",
	},
	"GNULINUX": {
		config:      `{"kind":"ORDER_AMOUNT","value":{"type":"PERCENT","percent":15}}`,
		description: "Open source discount: 15% off",
	},
	"OVER9000": {
		config:      `{"kind":"ORDER_AMOUNT","value":{"type":"AMOUNT","amount":"9"}}`,
		description: "$9 off your order",
	},
	"HAPPYHRS": {
		config:      `{"kind":"ORDER_AMOUNT","value":{"type":"PERCENT","percent":18}}`,
		description: "Happy Hours: 18% off",
	},
	"BUYGETON": {
		config:      `{"kind":"BXGY","buy":{"quantity":2},"get":{"quantity":1,"effect":{"type":"FREE"}}}`,
		description: "Buy 2, get 1 free",
	},
	"TENPRCNT": {
		config:      `{"kind":"PRODUCT_AMOUNT","target":{"scope":"ALL"},"value":{"type":"PERCENT","percent":10}}`,
		description: "10% off every item",
	},
}

var defaultRule = ruleTemplate{
	config:      `{"kind":"ORDER_AMOUNT","value":{"type":"PERCENT","percent":10}}`,
	description: "Valid promo code: 10% off",
}

// fileResult holds candidate codes found in a single file during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing codebaseN.gz files")
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
		slog.Error("rule ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("rule ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("codebase%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: Build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Find candidate codes appearing in 2+ files.
	slog.Info("pass 2: finding candidate codes")

	validCodes, err := findValidCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no valid codes to insert")
		return nil
	}

	// Write valid codes to database.
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := writeRules(ctx, postgres.NewRuleRepository(pool), validCodes); err != nil {
		return errors.Wrap(err, "write rules to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) >= minCodeLen && len(code) <= maxCodeLen {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findValidCodes re-streams each file and checks codes against OTHER files' bloom filters.
// A code is valid if it appears in 2 or more files.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all files.
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	// Keep codes appearing in 2+ files.
	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}

	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("codes", count),
				)
			}

			// Check if this code appears in any OTHER file's bloom filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
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
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeRules upserts a stored discount rule for every valid promo code. Each
// config blob is parsed once to derive the rule kind and catch template
// mistakes before they reach the table.
func writeRules(ctx context.Context, repo *postgres.RuleRepository, codes []string) error {
	slog.Info("writing rules to database", slog.Int("count", len(codes)))

	for i, code := range codes {
		tpl, ok := knownRules[code]
		if !ok {
			tpl = defaultRule
		}

		rule, err := discount.ParseRule([]byte(tpl.config))
		if err != nil {
			return errors.Wrapf(err, "parse rule config for code %s", code)
		}

		if err := repo.Upsert(ctx, &discount.StoredRule{
			Code:        code,
			Kind:        string(rule.Kind),
			Config:      []byte(tpl.config),
			Description: tpl.description,
			Active:      true,
		}); err != nil {
			return errors.Wrapf(err, "upsert rule %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
