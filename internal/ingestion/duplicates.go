package ingestion

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/repository"
)

// DuplicatePolicy decides what happens when uploaded rows match persons already stored.
type DuplicatePolicy string

const (
	DuplicatePolicyReject DuplicatePolicy = "reject"
	DuplicatePolicyWarn   DuplicatePolicy = "warn"
	DuplicatePolicyIgnore DuplicatePolicy = "ignore"
)

// ParseDuplicatePolicy reads a policy name. Empty selects reject.
func ParseDuplicatePolicy(value string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return DuplicatePolicyReject, nil
	case DuplicatePolicyReject, DuplicatePolicyWarn, DuplicatePolicyIgnore:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", value)
	}
}

func collectKeys(rows [][]string) []domain.DuplicateKey {
	seen := make(map[domain.DuplicateKey]struct{}, len(rows))
	keys := make([]domain.DuplicateKey, 0, len(rows))
	for _, row := range rows {
		key := domain.DuplicateKey{
			Email:    cell(row, ColEmail),
			FullName: domain.FullNameOf(cell(row, ColFirstName), cell(row, ColLastName)),
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// checkDuplicates applies the service policy to rows owned by ownerCompanyID.
func (s *Service) checkDuplicates(ctx context.Context, persons repository.PersonRepository, ownerCompanyID int64, rows [][]string) error {
	if s.policy == DuplicatePolicyIgnore {
		return nil
	}
	dups, err := persons.FindDuplicates(ctx, ownerCompanyID, collectKeys(rows))
	if err != nil {
		return fmt.Errorf("failed to check duplicates: %w", err)
	}
	if len(dups) == 0 {
		return nil
	}
	if s.policy == DuplicatePolicyWarn {
		s.logger.Warn("upload contains existing persons",
			zap.Int64("owner_company_id", ownerCompanyID),
			zap.Int("duplicates", len(dups)),
		)
		return nil
	}
	return &domain.DuplicateError{Duplicates: dups}
}
