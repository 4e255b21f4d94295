package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"rps-wager-bot/internal/game/rps"
	"rps-wager-bot/internal/model"
	"rps-wager-bot/internal/repository"
)

// Reconciliation errors.
var (
	ErrCreditAlreadyResolved = errors.New("credit already repaid")
	ErrCreditNotFound        = errors.New("unpaid credit not found")
)

// ReconciliationService keeps the record of settlement credits the engine
// could not apply and lets admins repay them.
type ReconciliationService struct {
	unpaid UnpaidCreditStore
	wallet rps.Wallet
}

// NewReconciliationService creates a new ReconciliationService instance.
func NewReconciliationService(unpaid UnpaidCreditStore, wallet rps.Wallet) *ReconciliationService {
	return &ReconciliationService{unpaid: unpaid, wallet: wallet}
}

var _ rps.Reconciler = (*ReconciliationService)(nil)

// RecordUnpaid persists a credit that exhausted its retries.
func (s *ReconciliationService) RecordUnpaid(ctx context.Context, credit model.UnpaidCredit) error {
	rec, err := s.unpaid.Create(ctx, credit)
	if err != nil {
		return fmt.Errorf("failed to record unpaid credit: %w", err)
	}

	log.Error().
		Int64("credit_id", rec.ID).
		Str("match_id", rec.MatchID).
		Int64("user_id", rec.UserID).
		Int64("amount", rec.Amount).
		Str("last_error", rec.LastError).
		Msg("Unpaid credit recorded for reconciliation")
	return nil
}

// Pending lists unresolved credits, oldest first.
func (s *ReconciliationService) Pending(ctx context.Context, limit int) ([]*model.UnpaidCredit, error) {
	return s.unpaid.ListPending(ctx, limit)
}

// PendingCount returns the number of unresolved credits.
func (s *ReconciliationService) PendingCount(ctx context.Context) (int64, error) {
	return s.unpaid.CountPending(ctx)
}

// Retry repays one unresolved credit. The credit is claimed before the wallet
// is touched so two admins cannot repay it twice; a failed credit is reopened.
func (s *ReconciliationService) Retry(ctx context.Context, id int64) (*model.UnpaidCredit, error) {
	credit, err := s.unpaid.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUnpaidCreditNotFound) {
			return nil, ErrCreditNotFound
		}
		return nil, err
	}
	if credit.Resolved() {
		return nil, ErrCreditAlreadyResolved
	}

	claimed, err := s.unpaid.MarkResolved(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrCreditAlreadyResolved
	}

	if err := s.wallet.Credit(ctx, credit.UserID, credit.Amount, model.TxTypeRPSRepay); err != nil {
		if rerr := s.unpaid.Reopen(ctx, id, err.Error()); rerr != nil {
			log.Error().Err(rerr).Int64("credit_id", id).Msg("Failed to reopen unpaid credit")
		}
		return nil, fmt.Errorf("failed to repay credit %d: %w", id, err)
	}

	log.Info().
		Int64("credit_id", id).
		Str("match_id", credit.MatchID).
		Int64("user_id", credit.UserID).
		Int64("amount", credit.Amount).
		Msg("Unpaid credit repaid")

	return s.unpaid.GetByID(ctx, id)
}
