package rps

import (
	"fmt"
	"math/bits"
	"sort"
)

// Settle computes the credit owed to every user for a terminated match.
// The returned map contains only positive amounts and always sums to the pot.
//
// Rules:
//   - draw or cancelled: every contribution is refunded to its contributor
//   - decisive: the winning duellist takes every principal stake; correct
//     side-bettors get their stake back plus a floor-proportional share of the
//     losing side's pool, and the rounding remainder goes to the largest
//     correct bettor (earliest contribution wins ties)
//   - decisive with no correct side-bettors: the winning duellist also takes
//     the losing side's pool
func Settle(entries []Contribution, challengerID, opponentID int64, outcome Outcome) (map[int64]int64, error) {
	switch outcome {
	case OutcomeDraw, OutcomeCancelled:
		return Refund(entries), nil
	case OutcomeChallenger:
		return settleDecisive(entries, challengerID, SideChallenger, SideOpponent)
	case OutcomeOpponent:
		return settleDecisive(entries, opponentID, SideOpponent, SideChallenger)
	default:
		return nil, fmt.Errorf("%w: cannot settle outcome %q", ErrInvalidState, outcome)
	}
}

// Refund returns every contribution to its contributor.
func Refund(entries []Contribution) map[int64]int64 {
	payouts := make(map[int64]int64)
	for _, c := range entries {
		if c.Amount > 0 {
			payouts[c.UserID] += c.Amount
		}
	}
	return payouts
}

type bettor struct {
	userID   int64
	amount   int64
	firstSeq int
}

func settleDecisive(entries []Contribution, winnerID int64, winSide, loseSide Side) (map[int64]int64, error) {
	payouts := make(map[int64]int64)

	var pot, principals, losingPool int64
	winnerPaid := false
	byUser := make(map[int64]*bettor)
	var correct []*bettor

	for _, c := range entries {
		pot += c.Amount
		switch c.Favors {
		case SidePrincipal:
			principals += c.Amount
			if c.UserID == winnerID {
				winnerPaid = true
			}
		case loseSide:
			losingPool += c.Amount
		case winSide:
			b, ok := byUser[c.UserID]
			if !ok {
				b = &bettor{userID: c.UserID, firstSeq: c.Seq}
				byUser[c.UserID] = b
				correct = append(correct, b)
			}
			b.amount += c.Amount
		}
	}
	if !winnerPaid {
		return nil, fmt.Errorf("%w: winner %d", errMissingPrincipal, winnerID)
	}

	payouts[winnerID] += principals

	var winningPool int64
	for _, b := range correct {
		winningPool += b.amount
	}

	if winningPool == 0 {
		if losingPool > 0 {
			payouts[winnerID] += losingPool
		}
		return payouts, nil
	}

	var distributed int64
	for _, b := range correct {
		share := mulDiv(b.amount, losingPool, winningPool)
		payouts[b.userID] += b.amount + share
		distributed += share
	}

	if rem := losingPool - distributed; rem > 0 {
		sort.SliceStable(correct, func(i, j int) bool {
			if correct[i].amount != correct[j].amount {
				return correct[i].amount > correct[j].amount
			}
			return correct[i].firstSeq < correct[j].firstSeq
		})
		payouts[correct[0].userID] += rem
	}

	var paid int64
	for _, v := range payouts {
		paid += v
	}
	if paid != pot {
		return nil, fmt.Errorf("%w: paid %d of pot %d", errUnsettledSideTotal, paid, pot)
	}
	return payouts, nil
}

// mulDiv returns floor(a*b/c) for non-negative a <= c without overflowing the product.
func mulDiv(a, b, c int64) int64 {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	q, _ := bits.Div64(hi, lo, uint64(c))
	return int64(q)
}
