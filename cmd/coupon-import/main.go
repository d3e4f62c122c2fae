// Command coupon-import bulk-loads coupon rules from gzipped CSV exports.
//
// Each input file holds one coupon per line:
//
//	code,discount_type,value,applies_to,valid_from,valid_to,usage_limit
//
// applies_to is a semicolon-separated rule list; value accepts localized
// amounts like "1.234,56". Files are parsed concurrently, then written
// sequentially so a duplicate code aborts with a clear error.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/mirante-studio/studio-api/internal/domain/coupon"
	"github.com/mirante-studio/studio-api/internal/repository"
	"github.com/mirante-studio/studio-api/pkg/money"
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no input files: pass one or more coupons.csv.gz paths")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	slog.Info("parsing input files", slog.Int("files", len(files)))

	var (
		mu      sync.Mutex
		coupons []*coupon.Coupon
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, path := range files {
		g.Go(func() error {
			parsed, err := parseFile(gctx, path)
			if err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			mu.Lock()
			coupons = append(coupons, parsed...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("coupons parsed", slog.Int("count", len(coupons)))
	if len(coupons) == 0 {
		return nil
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCouponRepository(pool)
	for i, c := range coupons {
		if err := repo.Create(ctx, c); err != nil {
			return errors.Wrapf(err, "create coupon %q", c.Code)
		}
		if (i+1)%100 == 0 || i+1 == len(coupons) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(coupons)))
		}
	}
	return nil
}

// parseFile streams one gzipped CSV file into coupon rules.
func parseFile(ctx context.Context, path string) ([]*coupon.Coupon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(bufio.NewReader(gz))
	r.FieldsPerRecord = -1

	var out []*coupon.Coupon
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		c, err := parseRecord(record)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// parseRecord turns one CSV record into a coupon, or nil for the header
// line and blank rows.
func parseRecord(record []string) (*coupon.Coupon, error) {
	if len(record) == 0 || strings.EqualFold(record[0], "code") {
		return nil, nil
	}
	if len(record) < 3 {
		return nil, errors.New("want at least code, discount_type, value")
	}

	code := strings.TrimSpace(record[0])
	if code == "" {
		return nil, nil
	}

	dt := coupon.DiscountType(strings.TrimSpace(record[1]))
	switch dt {
	case coupon.DiscountPercentage, coupon.DiscountFixed, coupon.DiscountFull:
	default:
		return nil, errors.Errorf("unknown discount type %q", record[1])
	}

	c := &coupon.Coupon{
		ID:           uuid.NewString(),
		Code:         code,
		DiscountType: dt,
		Value:        money.Parse(record[2]),
		Enabled:      true,
	}

	if len(record) > 3 && record[3] != "" {
		for _, rule := range strings.Split(record[3], ";") {
			if t := strings.TrimSpace(rule); t != "" {
				c.AppliesTo = append(c.AppliesTo, t)
			}
		}
	}
	if len(record) > 4 {
		c.ValidFrom = coupon.ParseBound(record[4])
	}
	if len(record) > 5 {
		c.ValidTo = coupon.ParseBound(record[5])
	}
	if len(record) > 6 && record[6] != "" {
		limit, err := strconv.Atoi(strings.TrimSpace(record[6]))
		if err != nil {
			return nil, errors.Wrap(err, "parse usage_limit")
		}
		c.UsageLimit = limit
	}
	return c, nil
}
