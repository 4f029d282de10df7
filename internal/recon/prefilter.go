package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// ZeroedSummary counts zero-value entries dropped before matching.
type ZeroedSummary struct {
	Bank   int `json:"banco"`
	Ledger int `json:"omie"`
	Total  int `json:"total"`
}

// FutureSummary describes ledger entries dated after the last bank
// statement date, which are excluded from the run.
type FutureSummary struct {
	Count        int             `json:"quantidade"`
	Total        decimal.Decimal `json:"total"`
	LastBankDate time.Time       `json:"ultimaDataBanco"`
}

// ExcludedAccount records how many ledger entries were dropped because they
// belong to an account other than the selected one.
type ExcludedAccount struct {
	Account  string `json:"conta"`
	Excluded int    `json:"excluidos"`
}

// PrefilterResult carries the filtered pools plus every exclusion counter,
// so that no entry leaves the run unaccounted for.
type PrefilterResult struct {
	Statement []StatementEntry
	Ledger    []LedgerEntry

	Zeroed           ZeroedSummary
	Future           FutureSummary
	SelectedAccount  string
	ExcludedAccounts []ExcludedAccount

	LedgerTotalOriginal decimal.Decimal
	LedgerTotalFiltered decimal.Decimal
}

// Prefilter drops zero-value entries from both sides, drops ledger entries
// dated after the last bank date, and optionally restricts the ledger pool
// to a single account. Pure function: the input slices are not modified.
func Prefilter(statement []StatementEntry, ledger []LedgerEntry, selectedAccount string) PrefilterResult {
	out := PrefilterResult{
		SelectedAccount:     selectedAccount,
		Future:              FutureSummary{Total: decimal.Zero},
		LedgerTotalOriginal: decimal.Zero,
		LedgerTotalFiltered: decimal.Zero,
	}

	// The last bank date is taken over the whole statement, zero-value
	// entries included: a zero row still proves the statement covers that
	// day.
	var lastBankDate time.Time
	for _, e := range statement {
		if lastBankDate.IsZero() || truncateDay(e.Date).After(lastBankDate) {
			lastBankDate = truncateDay(e.Date)
		}
	}
	out.Future.LastBankDate = lastBankDate

	for _, e := range statement {
		if e.Amount.IsZero() {
			out.Zeroed.Bank++
			continue
		}
		out.Statement = append(out.Statement, e)
	}

	excludedByAccount := make(map[string]int)
	var excludedOrder []string

	for _, e := range ledger {
		out.LedgerTotalOriginal = out.LedgerTotalOriginal.Add(e.Amount)

		if e.Amount.IsZero() {
			out.Zeroed.Ledger++
			continue
		}
		if !lastBankDate.IsZero() && truncateDay(e.Date).After(lastBankDate) {
			out.Future.Count++
			out.Future.Total = out.Future.Total.Add(e.Amount)
			continue
		}
		if selectedAccount != "" && e.Account != selectedAccount {
			if _, seen := excludedByAccount[e.Account]; !seen {
				excludedOrder = append(excludedOrder, e.Account)
			}
			excludedByAccount[e.Account]++
			continue
		}
		out.LedgerTotalFiltered = out.LedgerTotalFiltered.Add(e.Amount)
		out.Ledger = append(out.Ledger, e)
	}

	for _, account := range excludedOrder {
		out.ExcludedAccounts = append(out.ExcludedAccounts, ExcludedAccount{
			Account:  account,
			Excluded: excludedByAccount[account],
		})
	}

	out.Zeroed.Total = out.Zeroed.Bank + out.Zeroed.Ledger
	return out
}
