// Package service provides business logic implementations.
package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"rps-wager-bot/internal/model"
)

// AccountService handles user account operations.
type AccountService struct {
	users          UserStore
	txs            TransactionStore
	initialBalance int64
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(users UserStore, txs TransactionStore, initialBalance int64) *AccountService {
	return &AccountService{
		users:          users,
		txs:            txs,
		initialBalance: initialBalance,
	}
}

// EnsureUser ensures a user exists, creating one with the initial balance if necessary.
// Returns the user and whether it was newly created.
func (s *AccountService) EnsureUser(ctx context.Context, userID int64, username string) (*model.User, bool, error) {
	return s.ensure(ctx, userID, username, s.initialBalance)
}

// EnsureUserWithBalance is EnsureUser with an explicit starting balance, used for the house account.
func (s *AccountService) EnsureUserWithBalance(ctx context.Context, userID int64, username string, initialBalance int64) (*model.User, bool, error) {
	return s.ensure(ctx, userID, username, initialBalance)
}

func (s *AccountService) ensure(ctx context.Context, userID int64, username string, initialBalance int64) (*model.User, bool, error) {
	user, created, err := s.users.GetOrCreate(ctx, userID, username, initialBalance)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	if created {
		log.Info().
			Int64("user_id", userID).
			Str("username", username).
			Int64("amount", initialBalance).
			Msg("Wallet account created")
	}

	if !created && username != "" && user.Username != username {
		if err := s.users.UpdateUsername(ctx, userID, username); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to update username")
		}
		user.Username = username
	}

	return user, created, nil
}

// GetBalance retrieves a user's current balance.
func (s *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return user.Balance, nil
}

// RecentWagers returns the user's latest wager transactions, newest first.
func (s *AccountService) RecentWagers(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	txs, err := s.txs.GetByUserIDAndTypes(ctx, userID, model.RPSTransactionTypes(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager history: %w", err)
	}
	return txs, nil
}

// WagerNet returns the user's lifetime net result from wagers.
func (s *AccountService) WagerNet(ctx context.Context, userID int64) (int64, error) {
	net, err := s.txs.NetByTypes(ctx, userID, model.RPSTransactionTypes())
	if err != nil {
		return 0, fmt.Errorf("failed to get wager net: %w", err)
	}
	return net, nil
}
