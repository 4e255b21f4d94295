package rps

import (
	"context"

	"rps-wager-bot/internal/model"
)

// Wallet is the currency store the engine escrows from and settles into.
// Debit must fail with ErrInsufficientFunds (wrapped) when the balance is short,
// and with ErrTransientWallet when the store could not be reached.
type Wallet interface {
	HasAtLeast(ctx context.Context, userID, amount int64) (bool, error)
	Debit(ctx context.Context, userID, amount int64, reason string) error
	Credit(ctx context.Context, userID, amount int64, reason string) error
}

// Reconciler records settlement credits that exhausted their retries.
type Reconciler interface {
	RecordUnpaid(ctx context.Context, credit model.UnpaidCredit) error
}

// Notifier receives a fresh view after every accepted action and timer transition.
// It is always called without any engine lock held.
type Notifier interface {
	MatchUpdated(ctx context.Context, view MatchView)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, view MatchView)

// MatchUpdated calls f.
func (f NotifierFunc) MatchUpdated(ctx context.Context, view MatchView) {
	f(ctx, view)
}
