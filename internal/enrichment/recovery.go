package enrichment

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/domain"
)

// DefaultStaleAfter is how long an audit may stay unsettled before recovery reclaims it.
const DefaultStaleAfter = 30 * time.Minute

var errInterrupted = errors.New("enrichment batch interrupted before settling")

// RecoveryReport summarizes one sweep.
type RecoveryReport struct {
	Batches int   `json:"batches"`
	Persons int64 `json:"persons"`
}

// RecoverStale settles batches left unsettled longer than staleAfter as interrupted and
// fails their in-flight persons. Batches settled concurrently are skipped.
func (s *Service) RecoverStale(ctx context.Context, staleAfter time.Duration) (RecoveryReport, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	cutoff := time.Now().Add(-staleAfter)

	var report RecoveryReport
	for {
		audits, err := s.store.Enrichments().ListUnsettled(ctx, cutoff, 100)
		if err != nil {
			return report, err
		}
		if len(audits) == 0 {
			break
		}
		progressed := false
		for _, audit := range audits {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			persons, settled := s.settleFailed(ctx, audit.BatchID, domain.AuditOutcomeInterrupted, errInterrupted)
			if settled {
				progressed = true
				report.Batches++
				report.Persons += persons
			}
		}
		if !progressed {
			break
		}
	}

	if report.Batches > 0 {
		s.logger.Warn("recovered interrupted enrichment batches",
			zap.Int("batches", report.Batches),
			zap.Int64("persons", report.Persons),
			zap.Duration("stale_after", staleAfter),
		)
	} else {
		s.logger.Info("no interrupted enrichment batches")
	}
	return report, nil
}
