package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementEntry is a single movement from the bank statement, already
// normalized by the import layer. Amount is signed: credits positive,
// debits negative.
type StatementEntry struct {
	Date        time.Time       `json:"data"`
	Amount      decimal.Decimal `json:"valor"`
	Description string          `json:"descricao"`
	Account     string          `json:"conta,omitempty"`
}

// LedgerEntry is a single movement from the Omie ledger export.
type LedgerEntry struct {
	Date        time.Time       `json:"data"`
	Amount      decimal.Decimal `json:"valor"`
	Description string          `json:"descricao"`
	Account     string          `json:"conta"`
	Category    string          `json:"categoria,omitempty"`
}

// CardTransaction is a movement from a credit-card invoice. Card data is
// carried through the run untouched; only the importable count feeds the
// result.
type CardTransaction struct {
	Date        time.Time       `json:"data"`
	Amount      decimal.Decimal `json:"valor"`
	Description string          `json:"descricao"`
	CardID      string          `json:"cartao"`
	Importable  bool            `json:"importavel"`
}

// Tier is the confidence level of an automatic match, A (exact) down to
// D (residual).
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Match criteria, recorded on each pair so reports can explain why two
// entries were considered the same movement.
const (
	CriterionExact       = "valor_data_conta"
	CriterionDateWindow  = "valor_data_aproximada"
	CriterionDescription = "valor_descricao"
	CriterionResidual    = "valor_residual"
)

// MatchPair links one statement entry to one ledger entry. Indexes refer to
// the filtered pools inside ReconciliationResult.
type MatchPair struct {
	Statement StatementEntry `json:"lancamentoBanco"`
	Ledger    LedgerEntry    `json:"lancamentoOmie"`
	Tier      Tier           `json:"camada"`
	Criterion string         `json:"criterio"`
}

// Divergence type codes. B* and G mark overdue receivables/payables; the
// generic codes mark entries with no counterpart on the other side.
const (
	DivergenceOverdueReceivable = "B*"
	DivergenceOverduePayable    = "G"
	DivergenceBankOnly          = "banco_sem_omie"
	DivergenceLedgerOnly        = "omie_sem_banco"
)

// Side identifies which source an unmatched entry came from.
type Side string

const (
	SideBank   Side = "banco"
	SideLedger Side = "omie"
)

// Divergence is an entry that survived all match tiers. Exactly one of
// Statement/Ledger is set, according to Side.
type Divergence struct {
	Side        Side            `json:"origem"`
	Type        string          `json:"tipo"`
	Statement   *StatementEntry `json:"lancamentoBanco,omitempty"`
	Ledger      *LedgerEntry    `json:"lancamentoOmie,omitempty"`
	OverdueDays int             `json:"diasAtraso,omitempty"`
}

// sameDay reports whether two timestamps fall on the same calendar day.
// Statement and ledger dates carry no meaningful time component, but the
// import layer is not required to zero it.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// dayDelta returns the absolute difference between two dates in whole
// calendar days.
func dayDelta(a, b time.Time) int {
	au := truncateDay(a)
	bu := truncateDay(b)
	d := au.Sub(bu)
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
