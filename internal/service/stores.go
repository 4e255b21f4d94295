package service

import (
	"context"

	"rps-wager-bot/internal/model"
)

// UserStore is the wallet persistence used by the services.
// *repository.UserRepository implements it.
type UserStore interface {
	GetByID(ctx context.Context, userID int64) (*model.User, error)
	GetOrCreate(ctx context.Context, userID int64, username string, initialBalance int64) (*model.User, bool, error)
	UpdateUsername(ctx context.Context, userID int64, username string) error
	Debit(ctx context.Context, userID, amount int64, txType string, description *string) (*model.User, error)
	Credit(ctx context.Context, userID, amount int64, txType string, description *string) (*model.User, error)
}

// TransactionStore reads the balance audit trail.
// *repository.TransactionRepository implements it.
type TransactionStore interface {
	GetByUserIDAndTypes(ctx context.Context, userID int64, txTypes []string, limit int) ([]*model.Transaction, error)
	NetByTypes(ctx context.Context, userID int64, txTypes []string) (int64, error)
}

// UnpaidCreditStore persists settlement credits that exhausted their retries.
// *repository.UnpaidCreditRepository implements it.
type UnpaidCreditStore interface {
	Create(ctx context.Context, credit model.UnpaidCredit) (*model.UnpaidCredit, error)
	GetByID(ctx context.Context, id int64) (*model.UnpaidCredit, error)
	ListPending(ctx context.Context, limit int) ([]*model.UnpaidCredit, error)
	MarkResolved(ctx context.Context, id int64) (bool, error)
	Reopen(ctx context.Context, id int64, lastError string) error
	CountPending(ctx context.Context) (int64, error)
}
