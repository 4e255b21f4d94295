package rps

import "time"

// Ledger is the append-only list of escrowed contributions of one match.
// It is not safe for concurrent use; the owning Match serializes access.
type Ledger struct {
	entries []Contribution
}

// Append records a contribution and returns it with its sequence number.
func (l *Ledger) Append(userID, amount int64, favors Side, at time.Time) Contribution {
	c := Contribution{
		Seq:    len(l.entries),
		UserID: userID,
		Amount: amount,
		Favors: favors,
		At:     at,
	}
	l.entries = append(l.entries, c)
	return c
}

// Entries returns a copy of all contributions in insertion order.
func (l *Ledger) Entries() []Contribution {
	out := make([]Contribution, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of contributions.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Total returns the pot: the sum of every contribution.
func (l *Ledger) Total() int64 {
	var total int64
	for _, c := range l.entries {
		total += c.Amount
	}
	return total
}

// SideTotal returns the sum of contributions favoring side.
func (l *Ledger) SideTotal(side Side) int64 {
	var total int64
	for _, c := range l.entries {
		if c.Favors == side {
			total += c.Amount
		}
	}
	return total
}

// HasPrincipal reports whether userID paid a principal stake.
func (l *Ledger) HasPrincipal(userID int64) bool {
	for _, c := range l.entries {
		if c.Favors == SidePrincipal && c.UserID == userID {
			return true
		}
	}
	return false
}

// BetLine aggregates the side bets of one user on one side.
type BetLine struct {
	UserID int64
	Side   Side
	Amount int64
}

// BetLines returns side bets aggregated per (user, side) in order of first appearance.
func (l *Ledger) BetLines() []BetLine {
	type key struct {
		user int64
		side Side
	}
	index := make(map[key]int)
	var lines []BetLine
	for _, c := range l.entries {
		if c.Favors == SidePrincipal {
			continue
		}
		k := key{c.UserID, c.Favors}
		if i, ok := index[k]; ok {
			lines[i].Amount += c.Amount
			continue
		}
		index[k] = len(lines)
		lines = append(lines, BetLine{UserID: c.UserID, Side: c.Favors, Amount: c.Amount})
	}
	return lines
}

// SuggestedBet is the amount offered on the quick side-bet button: half the pot, at least 1.
func SuggestedBet(pot int64) int64 {
	if s := pot / 2; s > 1 {
		return s
	}
	return 1
}
