package recon

import (
	"github.com/shopspring/decimal"
)

// TierCounts breaks totalConciliados down by confidence tier.
type TierCounts struct {
	A int `json:"A"`
	B int `json:"B"`
	C int `json:"C"`
	D int `json:"D"`
}

// ReconciliationResult is the full output of one engine run. The wire keys
// follow the contract consumed by the report exporters and the UI.
type ReconciliationResult struct {
	Matches     []MatchPair  `json:"conciliados"`
	Divergences []Divergence `json:"divergencias"`

	TierCounts       TierCounts `json:"camadaCounts"`
	TotalMatched     int        `json:"totalConciliados"`
	TotalDivergences int        `json:"totalDivergencias"`
	OverdueCount     int        `json:"contasAtraso"`
	CardImportable   int        `json:"cartaoImportaveis"`

	SelectedAccount  string            `json:"contaCorrenteSelecionada,omitempty"`
	ExcludedAccounts []ExcludedAccount `json:"contasExcluidas,omitempty"`
	Zeroed           ZeroedSummary     `json:"lancamentosZerados"`
	Future           FutureSummary     `json:"lancamentosFuturos"`

	LedgerTotalOriginal decimal.Decimal `json:"totalOmieOriginal"`
	LedgerTotalFiltered decimal.Decimal `json:"totalOmieFiltrado"`

	BalanceChecks []BalanceCheck `json:"verificacaoSaldo,omitempty"`

	// The normalized inputs are echoed back so report generation does not
	// re-read the raw files.
	Statement []StatementEntry  `json:"extrato"`
	Ledger    []LedgerEntry     `json:"omie"`
	Cards     []CardTransaction `json:"cartaoTransacoes,omitempty"`
}

// aggregate assembles the result from the stage outputs.
func aggregate(pre PrefilterResult, outcome MatchOutcome, divergences []Divergence, overdue int, cards []CardTransaction, checks []BalanceCheck, statement []StatementEntry, ledger []LedgerEntry) *ReconciliationResult {
	res := &ReconciliationResult{
		Matches:             outcome.Matches,
		Divergences:         divergences,
		TotalMatched:        len(outcome.Matches),
		TotalDivergences:    len(divergences),
		OverdueCount:        overdue,
		SelectedAccount:     pre.SelectedAccount,
		ExcludedAccounts:    pre.ExcludedAccounts,
		Zeroed:              pre.Zeroed,
		Future:              pre.Future,
		LedgerTotalOriginal: pre.LedgerTotalOriginal,
		LedgerTotalFiltered: pre.LedgerTotalFiltered,
		BalanceChecks:       checks,
		Statement:           statement,
		Ledger:              ledger,
		Cards:               cards,
	}

	for _, m := range outcome.Matches {
		switch m.Tier {
		case TierA:
			res.TierCounts.A++
		case TierB:
			res.TierCounts.B++
		case TierC:
			res.TierCounts.C++
		case TierD:
			res.TierCounts.D++
		}
	}

	for _, c := range cards {
		if c.Importable {
			res.CardImportable++
		}
	}

	return res
}
