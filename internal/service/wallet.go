package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"rps-wager-bot/internal/game/rps"
	"rps-wager-bot/internal/pkg/lock"
	"rps-wager-bot/internal/repository"
)

// DefaultWalletLockTimeout bounds how long a wallet operation waits for the user's lock.
const DefaultWalletLockTimeout = 5 * time.Second

// WalletService adapts the user repository to the wager engine's wallet port.
// Operations on one user are serialized through the user lock.
type WalletService struct {
	users       UserStore
	locks       *lock.UserLock
	lockTimeout time.Duration
}

// NewWalletService creates a new WalletService instance.
func NewWalletService(users UserStore, locks *lock.UserLock) *WalletService {
	return &WalletService{
		users:       users,
		locks:       locks,
		lockTimeout: DefaultWalletLockTimeout,
	}
}

var _ rps.Wallet = (*WalletService)(nil)

// HasAtLeast reports whether the user can cover amount. Unknown users have nothing.
func (s *WalletService) HasAtLeast(ctx context.Context, userID, amount int64) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", rps.ErrTransientWallet, err)
	}
	return user.Balance >= amount, nil
}

// Debit escrows amount from the user's balance.
func (s *WalletService) Debit(ctx context.Context, userID, amount int64, reason string) error {
	err := s.withLock(ctx, userID, func() error {
		_, err := s.users.Debit(ctx, userID, amount, reason, nil)
		return err
	})
	switch {
	case err == nil:
		log.Debug().Int64("user_id", userID).Int64("amount", amount).Str("reason", reason).Msg("Wallet debited")
		return nil
	case errors.Is(err, repository.ErrInsufficientBalance), errors.Is(err, repository.ErrUserNotFound):
		return rps.ErrInsufficientFunds
	case errors.Is(err, repository.ErrInvalidAmount):
		return rps.ErrInvalidAmount
	default:
		return fmt.Errorf("%w: %v", rps.ErrTransientWallet, err)
	}
}

// Credit adds amount to the user's balance.
func (s *WalletService) Credit(ctx context.Context, userID, amount int64, reason string) error {
	err := s.withLock(ctx, userID, func() error {
		_, err := s.users.Credit(ctx, userID, amount, reason, nil)
		return err
	})
	switch {
	case err == nil:
		log.Debug().Int64("user_id", userID).Int64("amount", amount).Str("reason", reason).Msg("Wallet credited")
		return nil
	case errors.Is(err, repository.ErrInvalidAmount):
		return rps.ErrInvalidAmount
	default:
		return fmt.Errorf("%w: %v", rps.ErrTransientWallet, err)
	}
}

func (s *WalletService) withLock(ctx context.Context, userID int64, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	return s.locks.WithLockContext(lockCtx, userID, fn)
}
