package recon

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchTierAExact(t *testing.T) {
	statement := []StatementEntry{
		{Date: day(2024, 3, 5), Amount: dec("1500.00"), Description: "PAG FORN X"},
	}
	ledger := []LedgerEntry{
		{Date: day(2024, 3, 5), Amount: dec("1500.00"), Description: "Fornecedor X", Account: "Itau 1234"},
	}

	out := MatchEntries(statement, ledger, MatchOptions{})

	require.Len(t, out.Matches, 1)
	assert.Equal(t, TierA, out.Matches[0].Tier)
	assert.Equal(t, CriterionExact, out.Matches[0].Criterion)
	assert.Empty(t, out.UnmatchedStatement)
	assert.Empty(t, out.UnmatchedLedger)
}

func TestMatchTierAAccountMismatchFallsToB(t *testing.T) {
	statement := []StatementEntry{
		{Date: day(2024, 3, 5), Amount: dec("200.00"), Account: "Itau 1234"},
	}
	ledger := []LedgerEntry{
		{Date: day(2024, 3, 5), Amount: dec("200.00"), Account: "Bradesco 9"},
	}

	out := MatchEntries(statement, ledger, MatchOptions{})

	require.Len(t, out.Matches, 1)
	assert.Equal(t, TierB, out.Matches[0].Tier)
}

func TestMatchTierBWithinWindow(t *testing.T) {
	statement := []StatementEntry{
		{Date: day(2024, 3, 5), Amount: dec("320.50"), Description: "TED RECEBIDA"},
	}
	ledger := []LedgerEntry{
		{Date: day(2024, 3, 7), Amount: dec("320.50"), Description: "Recebimento cliente"},
	}

	out := MatchEntries(statement, ledger, MatchOptions{DateToleranceDays: 3})

	require.Len(t, out.Matches, 1)
	assert.Equal(t, TierB, out.Matches[0].Tier)
	assert.Equal(t, CriterionDateWindow, out.Matches[0].Criterion)
}

func TestMatchTierBPicksClosestDate(t *testing.T) {
	statement := []StatementEntry{
		{Date: day(2024, 3, 10), Amount: dec("99.00")},
	}
	ledger := []LedgerEntry{
		{Date: day(2024, 3, 7), Amount: dec("99.00"), Description: "longe"},
		{Date: day(2024, 3, 9), Amount: dec("99.00"), Description: "perto"},
	}

	out := MatchEntries(statement, ledger, MatchOptions{DateToleranceDays: 3})

	require.Len(t, out.Matches, 1)
	assert.Equal(t, "perto", out.Matches[0].Ledger.Description)
	require.Len(t, out.UnmatchedLedger, 1)
	assert.Equal(t, "longe", out.UnmatchedLedger[0].Description)
}

func TestMatchTierCDescription(t *testing.T) {
	statement := []StatementEntry{
		{Date: day(2024, 3, 2), Amount: dec("810.00"), Description: "PAG FORN ACO-BRAS LTDA"},
	}
	ledger := []LedgerEntry{
		// Ten days out, beyond the tier-B window, but same supplier.
		{Date: day(2024, 3, 12), Amount: dec("810.00"), Description: "Pagamento Fornecedor Aço Brás"},
	}

	out := MatchEntries(statement, ledger, MatchOptions{DateToleranceDays: 3})

	require.Len(t, out.Matches, 1)
	assert.Equal(t, TierC, out.Matches[0].Tier)
	assert.Equal(t, CriterionDescription, out.Matches[0].Criterion)
}

func TestMatchTierDResidualValueMatch(t *testing.T) {
	statement := []StatementEntry{
		{Date: day(2024, 3, 1), Amount: dec("55.55"), Description: "DEB AUT"},
	}
	ledger := []LedgerEntry{
		{Date: day(2024, 3, 20), Amount: dec("55.55"), Description: "Mensalidade software"},
	}

	out := MatchEntries(statement, ledger, MatchOptions{DateToleranceDays: 3})

	require.Len(t, out.Matches, 1)
	assert.Equal(t, TierD, out.Matches[0].Tier)
	assert.Equal(t, CriterionResidual, out.Matches[0].Criterion)
}

func TestMatchOneToOneNoReuse(t *testing.T) {
	statement := []StatementEntry{
		{Date: day(2024, 3, 5), Amount: dec("100.00"), Description: "a"},
		{Date: day(2024, 3, 5), Amount: dec("100.00"), Description: "b"},
	}
	ledger := []LedgerEntry{
		{Date: day(2024, 3, 5), Amount: dec("100.00"), Description: "x"},
	}

	out := MatchEntries(statement, ledger, MatchOptions{})

	require.Len(t, out.Matches, 1)
	require.Len(t, out.UnmatchedStatement, 1)
	assert.Empty(t, out.UnmatchedLedger)
	// First statement entry in insertion order wins the only candidate.
	assert.Equal(t, "a", out.Matches[0].Statement.Description)
}

func TestMatchSignAware(t *testing.T) {
	statement := []StatementEntry{
		{Date: day(2024, 3, 5), Amount: dec("-40.00")},
	}
	ledger := []LedgerEntry{
		{Date: day(2024, 3, 5), Amount: dec("40.00")},
	}

	out := MatchEntries(statement, ledger, MatchOptions{})

	assert.Empty(t, out.Matches)
	assert.Len(t, out.UnmatchedStatement, 1)
	assert.Len(t, out.UnmatchedLedger, 1)
}

func TestMatchDeterministic(t *testing.T) {
	statement := []StatementEntry{
		{Date: day(2024, 3, 9), Amount: dec("10.00"), Description: "s1"},
		{Date: day(2024, 3, 3), Amount: dec("10.00"), Description: "s2"},
		{Date: day(2024, 3, 3), Amount: dec("20.00"), Description: "s3"},
		{Date: day(2024, 3, 7), Amount: dec("-5.00"), Description: "s4"},
	}
	ledger := []LedgerEntry{
		{Date: day(2024, 3, 3), Amount: dec("10.00"), Description: "l1"},
		{Date: day(2024, 3, 8), Amount: dec("10.00"), Description: "l2"},
		{Date: day(2024, 3, 4), Amount: dec("20.00"), Description: "l3"},
		{Date: day(2024, 3, 1), Amount: dec("7.77"), Description: "l4"},
	}

	first := MatchEntries(statement, ledger, MatchOptions{DateToleranceDays: 3})
	for i := 0; i < 10; i++ {
		again := MatchEntries(statement, ledger, MatchOptions{DateToleranceDays: 3})
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differed from first run", i)
		}
	}
}

func TestMatchStableOrderingByDateThenInsertion(t *testing.T) {
	// Two same-day statement entries with the same amount: the candidate
	// scan must honor insertion order, not map iteration order.
	statement := []StatementEntry{
		{Date: day(2024, 3, 5), Amount: dec("10.00"), Description: "first"},
		{Date: day(2024, 3, 5), Amount: dec("10.00"), Description: "second"},
	}
	ledger := []LedgerEntry{
		{Date: day(2024, 3, 5), Amount: dec("10.00"), Description: "l-first"},
		{Date: day(2024, 3, 5), Amount: dec("10.00"), Description: "l-second"},
	}

	out := MatchEntries(statement, ledger, MatchOptions{})

	require.Len(t, out.Matches, 2)
	assert.Equal(t, "first", out.Matches[0].Statement.Description)
	assert.Equal(t, "l-first", out.Matches[0].Ledger.Description)
	assert.Equal(t, "second", out.Matches[1].Statement.Description)
	assert.Equal(t, "l-second", out.Matches[1].Ledger.Description)
}

func TestMatchIgnoresTimeOfDay(t *testing.T) {
	statement := []StatementEntry{
		{Date: time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC), Amount: dec("12.00")},
	}
	ledger := []LedgerEntry{
		{Date: time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC), Amount: dec("12.00")},
	}

	out := MatchEntries(statement, ledger, MatchOptions{})

	require.Len(t, out.Matches, 1)
	assert.Equal(t, TierA, out.Matches[0].Tier)
}
