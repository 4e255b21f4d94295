// Package model defines the data models for the wager bot.
package model

import "time"

// User represents a chat user's wallet account.
// The same numeric ID space is shared by Telegram and Discord users.
type User struct {
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	Balance   int64     `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Transaction represents a balance change record.
type Transaction struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// UnpaidCredit is a settlement credit that could not be applied after all retries.
type UnpaidCredit struct {
	ID         int64      `db:"id"`
	MatchID    string     `db:"match_id"`
	UserID     int64      `db:"user_id"`
	Amount     int64      `db:"amount"`
	Reason     string     `db:"reason"`
	LastError  string     `db:"last_error"`
	CreatedAt  time.Time  `db:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at"`
}

// Resolved reports whether the credit has been repaid.
func (u *UnpaidCredit) Resolved() bool {
	return u.ResolvedAt != nil
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial    = "initial"      // Initial balance on account creation
	TxTypeRPSStake   = "rps_stake"    // Duellist principal stake escrow
	TxTypeRPSSideBet = "rps_side_bet" // Spectator side bet escrow
	TxTypeRPSPayout  = "rps_payout"   // Settlement credit of a decided match
	TxTypeRPSRefund  = "rps_refund"   // Refund on draw or cancelled match
	TxTypeRPSRepay   = "rps_repay"    // Admin repayment of an unpaid credit
)

// RPSTransactionTypes returns the transaction types written by the wager engine.
func RPSTransactionTypes() []string {
	return []string{TxTypeRPSStake, TxTypeRPSSideBet, TxTypeRPSPayout, TxTypeRPSRefund, TxTypeRPSRepay}
}
