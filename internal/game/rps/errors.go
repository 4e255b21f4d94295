package rps

import "errors"

// Errors surfaced to the presentation adapters.
// User errors leave the match untouched and are shown only to the acting user.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidState       = errors.New("action not allowed in the current phase")
	ErrWrongActor         = errors.New("user may not perform this action")
	ErrAlreadyActed       = errors.New("user has already acted")
	ErrUnknownMatch       = errors.New("unknown match")
	ErrDuplicateMatch     = errors.New("user already takes part in an active match")
	ErrTransientWallet    = errors.New("wallet temporarily unavailable")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidSide        = errors.New("invalid side")
	ErrInvalidChoice      = errors.New("invalid choice")
	ErrHouseDisabled      = errors.New("house play is disabled")
	ErrStakeOutOfRange    = errors.New("stake out of range")
	errMissingPrincipal   = errors.New("ledger is missing a principal contribution")
	errUnsettledSideTotal = errors.New("settlement does not conserve funds")
)

// IsUserError reports whether err should be shown only to the acting user.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrWrongActor) ||
		errors.Is(err, ErrAlreadyActed) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidSide) ||
		errors.Is(err, ErrInvalidChoice) ||
		errors.Is(err, ErrStakeOutOfRange) ||
		errors.Is(err, ErrTransientWallet)
}

// UserMessage returns the short text an adapter shows the acting user for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return "Not enough coins."
	case errors.Is(err, ErrInvalidState):
		return "That is not possible at this stage of the match."
	case errors.Is(err, ErrWrongActor):
		return "You cannot do that in this match."
	case errors.Is(err, ErrAlreadyActed):
		return "You already did that."
	case errors.Is(err, ErrUnknownMatch):
		return "This match is over."
	case errors.Is(err, ErrDuplicateMatch):
		return "You are already in an active match."
	case errors.Is(err, ErrTransientWallet):
		return "The wallet is busy, try again."
	case errors.Is(err, ErrInvalidAmount):
		return "The amount must be a positive number."
	case errors.Is(err, ErrStakeOutOfRange):
		return "That stake is outside the allowed range."
	case errors.Is(err, ErrHouseDisabled):
		return "House matches are disabled."
	case errors.Is(err, ErrInvalidSide), errors.Is(err, ErrInvalidChoice):
		return "Unknown option."
	default:
		return "Something went wrong, try again later."
	}
}
