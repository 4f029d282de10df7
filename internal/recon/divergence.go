package recon

import (
	"strings"
	"time"
)

// ClassifyDivergences types every residual entry. Ledger-only entries
// strictly older than the last bank date are treated as overdue: an
// expected receipt that never arrived (B*) or an expected payment that
// never left the account (G). Everything else gets the generic
// no-counterpart code for its side.
//
// The second return value is the overdue count (contasAtraso).
func ClassifyDivergences(unmatchedStatement []StatementEntry, unmatchedLedger []LedgerEntry, lastBankDate time.Time) ([]Divergence, int) {
	var divergences []Divergence
	overdue := 0

	for i := range unmatchedStatement {
		e := unmatchedStatement[i]
		divergences = append(divergences, Divergence{
			Side:      SideBank,
			Type:      DivergenceBankOnly,
			Statement: &e,
		})
	}

	for i := range unmatchedLedger {
		e := unmatchedLedger[i]
		d := Divergence{
			Side:   SideLedger,
			Type:   DivergenceLedgerOnly,
			Ledger: &e,
		}
		if !lastBankDate.IsZero() {
			days := 0
			if truncateDay(e.Date).Before(lastBankDate) {
				days = dayDelta(e.Date, lastBankDate)
			}
			if days > 0 {
				if isReceivable(e) {
					d.Type = DivergenceOverdueReceivable
				} else {
					d.Type = DivergenceOverduePayable
				}
				d.OverdueDays = days
				overdue++
			}
		}
		divergences = append(divergences, d)
	}

	return divergences, overdue
}

// isReceivable decides the direction of an overdue ledger entry. The Omie
// category wins when it names one side; otherwise the amount sign decides
// (receipts are exported positive, payments negative).
func isReceivable(e LedgerEntry) bool {
	cat := normalizeDescription(e.Category)
	switch {
	case strings.Contains(cat, "receb") || strings.Contains(cat, "receita"):
		return true
	case strings.Contains(cat, "pagar") || strings.Contains(cat, "despesa"):
		return false
	}
	return e.Amount.IsPositive()
}
