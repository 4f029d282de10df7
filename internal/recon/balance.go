package recon

import (
	"github.com/shopspring/decimal"
)

// BalanceInput carries the opening balance brought forward from the prior
// period and, when the source reports one, the closing balance to check
// against. Nil means the figure was not supplied.
type BalanceInput struct {
	Previous *decimal.Decimal `json:"saldoAnterior,omitempty"`
	Reported *decimal.Decimal `json:"saldoFinalInformado,omitempty"`
}

// BalanceCheck is the advisory output for one side. It never blocks a run
// and never becomes a divergence.
type BalanceCheck struct {
	Side       Side             `json:"origem"`
	Previous   decimal.Decimal  `json:"saldoAnterior"`
	Movement   decimal.Decimal  `json:"movimentacao"`
	Expected   decimal.Decimal  `json:"saldoFinalCalculado"`
	Reported   *decimal.Decimal `json:"saldoFinalInformado,omitempty"`
	Difference *decimal.Decimal `json:"diferenca,omitempty"`
	Consistent *bool            `json:"consistente,omitempty"`
}

// CrossCheckBalance computes previous + sum(signed movement) for one side
// and compares it with the reported closing balance when there is one.
// Returns nil when no opening balance was carried forward.
func CrossCheckBalance(side Side, in BalanceInput, movement decimal.Decimal) *BalanceCheck {
	if in.Previous == nil {
		return nil
	}

	check := &BalanceCheck{
		Side:     side,
		Previous: *in.Previous,
		Movement: movement,
		Expected: in.Previous.Add(movement),
		Reported: in.Reported,
	}
	if in.Reported != nil {
		diff := in.Reported.Sub(check.Expected)
		consistent := diff.IsZero()
		check.Difference = &diff
		check.Consistent = &consistent
	}
	return check
}

// sumStatement adds the signed amounts of a statement pool.
func sumStatement(entries []StatementEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

// sumLedger adds the signed amounts of a ledger pool.
func sumLedger(entries []LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
