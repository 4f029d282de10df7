package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Period is the calendar-month versioning key for imports and results,
// formatted YYYY-MM.
type Period string

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParsePeriod validates a YYYY-MM key.
func ParsePeriod(s string) (Period, error) {
	if !periodPattern.MatchString(s) {
		return "", fmt.Errorf("invalid period %q: want YYYY-MM", s)
	}
	return Period(s), nil
}

func (p Period) String() string { return string(p) }

// Prev returns the preceding calendar month. Opening balances are carried
// from the previous period's closing figures.
func (p Period) Prev() Period {
	t, err := time.Parse("2006-01", string(p))
	if err != nil {
		return p
	}
	return Period(t.AddDate(0, -1, 0).Format("2006-01"))
}

// ImportKind identifies which of the three sources an import snapshot
// holds.
type ImportKind string

const (
	KindStatement ImportKind = "extrato"
	KindLedger    ImportKind = "omie"
	KindCard      ImportKind = "cartao"
)

// ParseImportKind validates a kind received over the wire.
func ParseImportKind(s string) (ImportKind, error) {
	switch ImportKind(s) {
	case KindStatement, KindLedger, KindCard:
		return ImportKind(s), nil
	}
	return "", fmt.Errorf("invalid import kind %q", s)
}

// Status of a snapshot row. Rows are immutable once stored: a new import
// or result for the same key supersedes the old row instead of mutating it.
type Status string

const (
	StatusActive     Status = "ativo"
	StatusSuperseded Status = "substituido"
)

// InvalidStatusTransitionError reports an attempt to move a snapshot row
// against the lifecycle.
type InvalidStatusTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("invalid snapshot status transition from %s to %s", e.From, e.To)
}

// AllowedTransitions defines the snapshot lifecycle. Superseded is
// terminal: a superseded row never becomes active again.
func AllowedTransitions() map[Status][]Status {
	return map[Status][]Status{
		StatusActive:     {StatusSuperseded},
		StatusSuperseded: {},
	}
}

// IsValidTransition checks the lifecycle table.
func IsValidTransition(from, to Status) bool {
	for _, s := range AllowedTransitions()[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ImportSnapshot is one stored file ingestion for a (kind, period) key.
type ImportSnapshot struct {
	ID              string           `json:"id"`
	Kind            ImportKind       `json:"tipo"`
	Period          Period           `json:"periodoRef"`
	FileName        string           `json:"arquivo"`
	RowCount        int              `json:"linhas"`
	TotalValue      decimal.Decimal  `json:"valorTotal"`
	PreviousBalance *decimal.Decimal `json:"saldoAnterior,omitempty"`
	RawRows         json.RawMessage  `json:"linhasBrutas,omitempty"`
	Status          Status           `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// ResultSnapshot is one persisted engine run for a period. Summary
// counters are mirrored out of the payload so listings do not decode it.
type ResultSnapshot struct {
	ID               string          `json:"id"`
	Period           Period          `json:"periodoRef"`
	TotalMatched     int             `json:"totalConciliados"`
	TotalDivergences int             `json:"totalDivergencias"`
	OverdueCount     int             `json:"contasAtraso"`
	Payload          json.RawMessage `json:"resultado"`
	Status           Status          `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// SaveImportParams carries a new import snapshot into the store.
type SaveImportParams struct {
	Kind            ImportKind
	Period          Period
	FileName        string
	RowCount        int
	TotalValue      decimal.Decimal
	PreviousBalance *decimal.Decimal
	RawRows         json.RawMessage
}

// SaveResultParams carries a computed result into the store.
type SaveResultParams struct {
	Period           Period
	TotalMatched     int
	TotalDivergences int
	OverdueCount     int
	Payload          json.RawMessage
}

// ActiveImports holds the active snapshot per kind for one period. Nil
// fields mean no active import of that kind.
type ActiveImports struct {
	Statement *ImportSnapshot `json:"extrato,omitempty"`
	Ledger    *ImportSnapshot `json:"omie,omitempty"`
	Card      *ImportSnapshot `json:"cartao,omitempty"`
}

// ErrNotFound is returned by reads and deletes when no active row exists
// for the requested key.
var ErrNotFound = errors.New("snapshot not found")

// Store versions import and result snapshots per period. Implementations
// must keep at most one active row per (kind, period) and per period for
// results, closing the supersede race with a storage-level constraint
// rather than two independent statements. Saving or deleting an import
// also invalidates the period's active result in the same transaction.
type Store interface {
	SaveImport(ctx context.Context, params SaveImportParams) (*ImportSnapshot, error)
	LoadImports(ctx context.Context, period Period) (ActiveImports, error)
	DeleteImport(ctx context.Context, kind ImportKind, period Period) error

	SaveResult(ctx context.Context, params SaveResultParams) (*ResultSnapshot, error)
	LoadResult(ctx context.Context, period Period) (*ResultSnapshot, error)
	// InvalidateResult marks the active result superseded. Invalidating a
	// period with no active result is a no-op.
	InvalidateResult(ctx context.Context, period Period) error

	Close() error
}
