package recon

import (
	"sort"
)

// DefaultDateToleranceDays is the tier-B window: a bank and an Omie entry
// with the same amount still pair when their dates differ by at most this
// many calendar days.
const DefaultDateToleranceDays = 3

// MatchOptions tunes the matching engine.
type MatchOptions struct {
	DateToleranceDays int
}

// MatchOutcome is the engine output: the paired entries with their tier,
// plus the residual pools on each side.
type MatchOutcome struct {
	Matches            []MatchPair
	UnmatchedStatement []StatementEntry
	UnmatchedLedger    []LedgerEntry
}

// MatchEntries pairs statement and ledger entries one-to-one, greedily, in
// four tiers of descending confidence:
//
//	A: same amount, same day, same account when both sides carry one
//	B: same amount, dates within the tolerance window
//	C: same amount, similar descriptions, any date
//	D: same amount, any date
//
// Each successful pairing removes both entries from their pools. The scan
// order is fixed (ascending date, then original insertion order) so the
// output is byte-identical across runs on the same input.
func MatchEntries(statement []StatementEntry, ledger []LedgerEntry, opts MatchOptions) MatchOutcome {
	tolerance := opts.DateToleranceDays
	if tolerance <= 0 {
		tolerance = DefaultDateToleranceDays
	}

	stOrder := stableOrder(len(statement), func(i int) int64 { return truncateDay(statement[i].Date).Unix() })
	ldOrder := stableOrder(len(ledger), func(i int) int64 { return truncateDay(ledger[i].Date).Unix() })

	stUsed := make([]bool, len(statement))
	ldUsed := make([]bool, len(ledger))

	var out MatchOutcome

	runTier := func(tier Tier, criterion string, pick func(s StatementEntry) (int, bool)) {
		for _, si := range stOrder {
			if stUsed[si] {
				continue
			}
			li, ok := pick(statement[si])
			if !ok {
				continue
			}
			stUsed[si] = true
			ldUsed[li] = true
			out.Matches = append(out.Matches, MatchPair{
				Statement: statement[si],
				Ledger:    ledger[li],
				Tier:      tier,
				Criterion: criterion,
			})
		}
	}

	// Tier A: first candidate wins under the stable ordering.
	runTier(TierA, CriterionExact, func(s StatementEntry) (int, bool) {
		for _, li := range ldOrder {
			if ldUsed[li] {
				continue
			}
			l := ledger[li]
			if !s.Amount.Equal(l.Amount) || !sameDay(s.Date, l.Date) {
				continue
			}
			if s.Account != "" && l.Account != "" && s.Account != l.Account {
				continue
			}
			return li, true
		}
		return 0, false
	})

	// Tier B: smallest date delta wins, ties broken by the stable ordering.
	runTier(TierB, CriterionDateWindow, func(s StatementEntry) (int, bool) {
		return closestByAmount(s, ledger, ldOrder, ldUsed, tolerance, nil)
	})

	// Tier C: value match plus description similarity, date unrestricted.
	runTier(TierC, CriterionDescription, func(s StatementEntry) (int, bool) {
		return closestByAmount(s, ledger, ldOrder, ldUsed, -1, func(l LedgerEntry) bool {
			return descriptionSimilar(s.Description, l.Description)
		})
	})

	// Tier D: value match alone. Kept as its own tier so relaxed pairings
	// stay visible in the counts instead of inflating the divergences.
	runTier(TierD, CriterionResidual, func(s StatementEntry) (int, bool) {
		return closestByAmount(s, ledger, ldOrder, ldUsed, -1, nil)
	})

	for _, si := range stOrder {
		if !stUsed[si] {
			out.UnmatchedStatement = append(out.UnmatchedStatement, statement[si])
		}
	}
	for _, li := range ldOrder {
		if !ldUsed[li] {
			out.UnmatchedLedger = append(out.UnmatchedLedger, ledger[li])
		}
	}
	return out
}

// closestByAmount scans unused ledger entries in stable order and returns
// the amount-equal candidate with the smallest day delta. maxDelta < 0
// disables the window; extra, when non-nil, must also accept the candidate.
func closestByAmount(s StatementEntry, ledger []LedgerEntry, order []int, used []bool, maxDelta int, extra func(LedgerEntry) bool) (int, bool) {
	best := -1
	bestDelta := 0
	for _, li := range order {
		if used[li] {
			continue
		}
		l := ledger[li]
		if !s.Amount.Equal(l.Amount) {
			continue
		}
		delta := dayDelta(s.Date, l.Date)
		if maxDelta >= 0 && delta > maxDelta {
			continue
		}
		if extra != nil && !extra(l) {
			continue
		}
		if best == -1 || delta < bestDelta {
			best = li
			bestDelta = delta
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// stableOrder returns indexes sorted by key ascending, preserving the
// original insertion order between equal keys.
func stableOrder(n int, key func(int) int64) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return key(order[a]) < key(order[b])
	})
	return order
}
