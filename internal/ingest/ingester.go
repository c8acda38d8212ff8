package ingest

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/domaingate/pkg/logger"
	"github.com/charlesng35/domaingate/pkg/metrics"
)

// ErrNoInput indicates the input contained no tokens.
var ErrNoInput = errors.New("ingest: no input provided")

// Store persists allow-list domains.
type Store interface {
	BulkInsertIfAbsent(ctx context.Context, domains []string, addedBy string) (added, skipped []string, err error)
	AddIfAbsent(ctx context.Context, domain, addedBy string) (bool, error)
}

// Ingester normalises input and merges the resulting domains into a Store.
type Ingester struct {
	store Store
	log   *zap.Logger
}

// NewIngester constructs an Ingester backed by store.
func NewIngester(store Store) (*Ingester, error) {
	if store == nil {
		return nil, errors.New("ingest: store is required")
	}
	return &Ingester{store: store, log: logger.WithModule("ingest")}, nil
}

// Ingest normalises raw and persists its unique domains. The batched insert is
// tried first; if it fails every domain is inserted individually with the same
// accounting. Running Ingest twice on the same input reports everything as skipped
// the second time.
func (i *Ingester) Ingest(ctx context.Context, raw string, mode Mode, addedBy string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := Normalize(raw, mode)
	if result.TotalProcessed == 0 {
		return result, ErrNoInput
	}

	addedBy = strings.TrimSpace(addedBy)
	if addedBy == "" {
		addedBy = defaultActor(mode)
	}

	if len(result.Domains) > 0 {
		added, skipped, err := i.store.BulkInsertIfAbsent(ctx, result.Domains, addedBy)
		if err == nil {
			result.Added = len(added)
			result.Skipped = len(skipped)
		} else {
			i.log.Warn("bulk insert failed, falling back to sequential inserts",
				zap.Int("domains", len(result.Domains)),
				zap.Error(err),
			)
			i.insertSequentially(ctx, &result, addedBy)
		}
	}

	metrics.IngestedDomains.WithLabelValues("added").Add(float64(result.Added))
	metrics.IngestedDomains.WithLabelValues("skipped").Add(float64(result.Skipped))
	metrics.IngestedDomains.WithLabelValues("failed").Add(float64(result.Failed))

	i.log.Info("domains ingested",
		zap.String("mode", mode.String()),
		zap.String("added_by", addedBy),
		zap.Int("added", result.Added),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (i *Ingester) insertSequentially(ctx context.Context, result *Result, addedBy string) {
	for _, domain := range result.Domains {
		added, err := i.store.AddIfAbsent(ctx, domain, addedBy)
		switch {
		case err != nil:
			result.Failed++
			i.log.Warn("domain insert failed", zap.String("domain", domain), zap.Error(err))
		case added:
			result.Added++
		default:
			result.Skipped++
		}
	}
}

func defaultActor(mode Mode) string {
	if mode == ModeFile {
		return "smart-upload"
	}
	return "admin-mixed"
}
