/**
 * @description
 * The late fee accrual job. It scans overdue pending invoices for
 * administrators with late fees enabled and appends one daily penalty per
 * invoice per calendar day. The cron scheduler and the administrator's
 * manual "run now" action funnel through the same entry point.
 *
 * @notes
 * - Idempotent by construction: the job checks for an existing late fee item
 *   dated today, and the store repeats that check inside the conditional
 *   UPDATE, so re-running the job any number of times in a day changes
 *   nothing after the first successful pass.
 * - The fee compounds on the invoice's running total, not the original
 *   principal. That is the documented business policy.
 * - Per-invoice failures are collected and reported; they never abort the
 *   remaining batch, and no transaction spans the whole run.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lodgebook/billing-service/internal/billing"
	"github.com/lodgebook/billing-service/internal/domain"
	"github.com/lodgebook/billing-service/internal/store"
)

// errNoFeeDue marks an invoice whose computed penalty rounded to zero.
var errNoFeeDue = errors.New("no late fee due")

// AccrualRunOptions scope a late fee run. AdminID narrows the run to one
// administrator (the manual action); nil processes everyone.
type AccrualRunOptions struct {
	Manual  bool
	AdminID *uuid.UUID
}

// AccrualError records one invoice that failed during a run.
type AccrualError struct {
	InvoiceID uuid.UUID `json:"id"`
	Error     string    `json:"error"`
}

// AccrualRunResult summarizes one late fee run.
type AccrualRunResult struct {
	Success         bool           `json:"success"`
	Processed       int            `json:"processed"`
	Errors          []AccrualError `json:"errors"`
	ExecutionTimeMS int64          `json:"execution_time_ms"`
}

// RunLateFeeAccrual executes one accrual pass. Safe to invoke repeatedly;
// the second run on the same day is a no-op for every invoice the first run
// already handled.
func (s *Service) RunLateFeeAccrual(ctx context.Context, opts AccrualRunOptions) *AccrualRunResult {
	started := s.now()
	today := started.UTC().Truncate(24 * time.Hour)
	accrualDate := today.Format("2006-01-02")

	result := &AccrualRunResult{Errors: []AccrualError{}}

	trigger := "scheduled"
	if opts.Manual {
		trigger = "manual"
	}
	log.Printf("level=info component=latefee_job msg=\"accrual run started\" trigger=%s date=%s", trigger, accrualDate)

	candidates, err := s.repo.ListAccrualCandidates(ctx, opts.AdminID, today)
	if err != nil {
		log.Printf("level=error component=latefee_job msg=\"candidate selection failed\" err=%v", err)
		result.ExecutionTimeMS = time.Since(started).Milliseconds()
		result.Errors = append(result.Errors, AccrualError{Error: fmt.Sprintf("candidate selection failed: %v", err)})
		return result
	}

	for _, candidate := range candidates {
		if err := s.accrueLateFee(ctx, candidate, accrualDate); err != nil {
			if errors.Is(err, errNoFeeDue) || errors.Is(err, store.ErrLateFeeAlreadyAccrued) || errors.Is(err, store.ErrInvoiceNotPending) {
				// Nothing to add, or another run (or a payment) got there
				// first. Not an error either way.
				continue
			}
			result.Errors = append(result.Errors, AccrualError{
				InvoiceID: candidate.Invoice.ID,
				Error:     err.Error(),
			})
			continue
		}
		result.Processed++
	}

	result.Success = len(result.Errors) == 0
	result.ExecutionTimeMS = time.Since(started).Milliseconds()
	log.Printf("level=info component=latefee_job msg=\"accrual run finished\" trigger=%s processed=%d errors=%d duration_ms=%d",
		trigger, result.Processed, len(result.Errors), result.ExecutionTimeMS)
	return result
}

func (s *Service) accrueLateFee(ctx context.Context, candidate store.AccrualCandidate, accrualDate string) error {
	inv := candidate.Invoice

	// Guard before computing anything; the store repeats this check inside
	// the conditional UPDATE for concurrent runs.
	if inv.LateFeeItemForDate(accrualDate) != nil {
		return store.ErrLateFeeAlreadyAccrued
	}

	// The fee is a percentage of the current running total, so prior
	// penalties compound into later ones.
	fee := billing.PercentOf(inv.TotalAmount, candidate.LateFeeDailyPct)
	if fee <= 0 {
		return errNoFeeDue
	}

	date := accrualDate
	item := domain.InvoiceItem{
		Description: fmt.Sprintf("Late fee (%s)", accrualDate),
		Amount:      fee,
		Kind:        domain.ItemKindLateFee,
		AccrualDate: &date,
	}
	if err := s.repo.AppendLateFeeItem(ctx, inv.ID, item, accrualDate); err != nil {
		return err
	}

	// Notify the tenant off the critical path; a failed notification never
	// rolls back the accrual.
	go s.notifier.LateFeeAccrued(context.WithoutCancel(ctx), domain.LateFeeAccruedEvent{
		InvoiceID:   inv.ID,
		TenantID:    inv.TenantID,
		AdminID:     inv.AdminID,
		Fee:         fee,
		NewTotal:    inv.TotalAmount + fee,
		AccrualDate: accrualDate,
	})
	return nil
}
