package recon

import (
	"errors"
	"fmt"
)

// ErrMissingSourceData is returned when either side of the reconciliation
// has no normalized entries. The engine never runs partially.
var ErrMissingSourceData = errors.New("missing source data")

// MissingSourceError wraps ErrMissingSourceData with the side that was
// absent.
type MissingSourceError struct {
	Side Side
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("missing source data: %s", e.Side)
}

func (e *MissingSourceError) Unwrap() error { return ErrMissingSourceData }

// RunInput is everything one reconciliation run consumes. The entry lists
// come from the import layer already normalized; the engine never touches
// raw spreadsheet rows.
type RunInput struct {
	Statement []StatementEntry
	Ledger    []LedgerEntry
	Cards     []CardTransaction

	SelectedAccount   string
	DateToleranceDays int

	BankBalance   BalanceInput
	LedgerBalance BalanceInput
}

// Run executes the whole pipeline: pre-filter, tiered matching, divergence
// classification, advisory balance check and aggregation. Synchronous and
// pure; identical inputs always produce an identical result.
func Run(in RunInput) (*ReconciliationResult, error) {
	if len(in.Statement) == 0 {
		return nil, &MissingSourceError{Side: SideBank}
	}
	if len(in.Ledger) == 0 {
		return nil, &MissingSourceError{Side: SideLedger}
	}

	pre := Prefilter(in.Statement, in.Ledger, in.SelectedAccount)

	outcome := MatchEntries(pre.Statement, pre.Ledger, MatchOptions{
		DateToleranceDays: in.DateToleranceDays,
	})

	divergences, overdue := ClassifyDivergences(outcome.UnmatchedStatement, outcome.UnmatchedLedger, pre.Future.LastBankDate)

	var checks []BalanceCheck
	if c := CrossCheckBalance(SideBank, in.BankBalance, sumStatement(pre.Statement)); c != nil {
		checks = append(checks, *c)
	}
	if c := CrossCheckBalance(SideLedger, in.LedgerBalance, sumLedger(pre.Ledger)); c != nil {
		checks = append(checks, *c)
	}

	return aggregate(pre, outcome, divergences, overdue, in.Cards, checks, in.Statement, in.Ledger), nil
}
