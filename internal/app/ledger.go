/**
 * @description
 * The platform dues ledger. Dues are recomputed in full from payment and
 * settlement history on every query; there are no incremental counters to
 * drift out of sync with the underlying rows.
 */

package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lodgebook/billing-service/internal/domain"
)

// PlatformDuesStatement is the dues figure plus the settlement rows backing it.
type PlatformDuesStatement struct {
	domain.PlatformDues
	Settlements []domain.PlatformSettlement `json:"settlements"`
}

// GetPlatformDues derives what the platform currently owes the administrator:
// collected vendor payouts minus settled transfers, floored at zero.
func (s *Service) GetPlatformDues(ctx context.Context, adminID uuid.UUID) (*PlatformDuesStatement, error) {
	collected, err := s.repo.SumVendorPayouts(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate vendor payouts: %w", err)
	}
	settled, err := s.repo.SumSettlements(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate settlements: %w", err)
	}
	settlements, err := s.repo.ListSettlements(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}

	due := collected - settled
	if due < 0 {
		due = 0
	}

	return &PlatformDuesStatement{
		PlatformDues: domain.PlatformDues{
			AdminID:   adminID,
			Collected: collected,
			Settled:   settled,
			Due:       due,
		},
		Settlements: settlements,
	}, nil
}
