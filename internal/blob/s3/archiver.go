package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// SettlementArchiver implements domain.SettlementArchiver: it exports one
// JSONL settlement record per resolved market, final pools and every
// position's claim state included, and uploads the batch to the blob store.
//
// Archived markets are not deleted from the primary store; the archive is an
// audit trail, not a retention mechanism.
type SettlementArchiver struct {
	writer    domain.BlobWriter
	markets   domain.MarketStore
	positions domain.PositionStore
	audit     domain.AuditStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewSettlementArchiver creates a SettlementArchiver.
func NewSettlementArchiver(
	writer domain.BlobWriter,
	markets domain.MarketStore,
	positions domain.PositionStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *SettlementArchiver {
	return &SettlementArchiver{
		writer:    writer,
		markets:   markets,
		positions: positions,
		audit:     audit,
		logger:    logger.With(slog.String("component", "settlement_archiver")),
		now:       time.Now,
	}
}

// ArchiveResolved exports every market resolved strictly before the cutoff
// and returns how many were archived. An empty batch uploads nothing.
func (a *SettlementArchiver) ArchiveResolved(ctx context.Context, before time.Time) (int64, error) {
	resolved, err := a.markets.ListResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list resolved markets: %w", err)
	}
	if len(resolved) == 0 {
		return 0, nil
	}

	archivedAt := a.now().UTC()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range resolved {
		positions, err := a.positions.ListByMarket(ctx, m.Key)
		if err != nil {
			return 0, fmt.Errorf("s3blob: list positions for %s: %w", m.Key.Hex(), err)
		}
		record := domain.Settlement{
			Market:     m,
			Positions:  positions,
			ArchivedAt: archivedAt,
		}
		if err := enc.Encode(record); err != nil {
			return 0, fmt.Errorf("s3blob: encode settlement %s: %w", m.Key.Hex(), err)
		}
	}

	path := fmt.Sprintf("archive/settlements/%s/settlements-%d.jsonl",
		archivedAt.Format("2006/01/02"), archivedAt.Unix())
	if err := a.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: upload settlements: %w", err)
	}

	count := int64(len(resolved))
	if a.audit != nil {
		if err := a.audit.Log(ctx, "settlements.archived", map[string]any{
			"path":   path,
			"count":  count,
			"cutoff": before.UTC().Format(time.RFC3339),
		}); err != nil {
			a.logger.WarnContext(ctx, "audit log failed",
				slog.String("error", err.Error()),
			)
		}
	}

	a.logger.InfoContext(ctx, "settlements archived",
		slog.Int64("count", count),
		slog.String("path", path),
	)
	return count, nil
}

// Compile-time interface check.
var _ domain.SettlementArchiver = (*SettlementArchiver)(nil)
