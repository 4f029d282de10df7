package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore keeps snapshots in PostgreSQL. The partial unique indexes
// in Schema make the at-most-one-active invariant a storage constraint:
// two racing writers cannot both leave an active row behind.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// Schema is the DDL the store expects. Applied by migrations, kept here so
// the constraint backing the supersede step is visible next to the code
// that relies on it.
const Schema = `
CREATE TABLE IF NOT EXISTS importacoes (
    id             UUID PRIMARY KEY,
    tipo           TEXT NOT NULL,
    periodo_ref    TEXT NOT NULL,
    arquivo        TEXT NOT NULL,
    linhas         INTEGER NOT NULL,
    valor_total    NUMERIC(18,2) NOT NULL,
    saldo_anterior NUMERIC(18,2),
    linhas_brutas  JSONB NOT NULL DEFAULT '[]',
    status         TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS importacoes_ativa_uq
    ON importacoes (tipo, periodo_ref) WHERE status = 'ativo';

CREATE TABLE IF NOT EXISTS resultados (
    id                 UUID PRIMARY KEY,
    periodo_ref        TEXT NOT NULL,
    total_conciliados  INTEGER NOT NULL,
    total_divergencias INTEGER NOT NULL,
    contas_atraso      INTEGER NOT NULL,
    resultado          JSONB NOT NULL,
    status             TEXT NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL,
    updated_at         TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS resultados_ativo_uq
    ON resultados (periodo_ref) WHERE status = 'ativo';
`

// NewPostgresStore creates a store on an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

// Init applies the schema.
func (ps *PostgresStore) Init(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := ps.Pool.Exec(queryCtx, Schema); err != nil {
		return fmt.Errorf("failed to apply snapshot schema: %w", err)
	}
	return nil
}

// SaveImport supersedes any active snapshot for (kind, period) and inserts
// the new one as active, in a single SERIALIZABLE transaction. The active
// result for the period is invalidated in the same transaction, since a
// changed import makes it stale.
func (ps *PostgresStore) SaveImport(ctx context.Context, params SaveImportParams) (*ImportSnapshot, error) {
	snap := &ImportSnapshot{
		ID:              uuid.NewString(),
		Kind:            params.Kind,
		Period:          params.Period,
		FileName:        params.FileName,
		RowCount:        params.RowCount,
		TotalValue:      params.TotalValue,
		PreviousBalance: params.PreviousBalance,
		RawRows:         params.RawRows,
		Status:          StatusActive,
		CreatedAt:       time.Now().UTC(),
	}
	snap.UpdatedAt = snap.CreatedAt

	rawRows := params.RawRows
	if len(rawRows) == 0 {
		rawRows = []byte("[]")
	}

	err := ps.inSerializableTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		now := snap.CreatedAt
		if _, err := tx.Exec(ctx, `
            UPDATE importacoes SET status = $1, updated_at = $2
            WHERE tipo = $3 AND periodo_ref = $4 AND status = $5
        `, StatusSuperseded, now, params.Kind, params.Period, StatusActive); err != nil {
			return fmt.Errorf("failed to supersede import: %w", err)
		}

		if err := invalidateResultTxPg(ctx, tx, params.Period, now); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
            INSERT INTO importacoes (id, tipo, periodo_ref, arquivo, linhas, valor_total, saldo_anterior, linhas_brutas, status, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        `, snap.ID, snap.Kind, snap.Period, snap.FileName, snap.RowCount, snap.TotalValue, decimalPtr(snap.PreviousBalance), rawRows, snap.Status, snap.CreatedAt, snap.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert import: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// LoadImports returns the active snapshot per kind for the period.
func (ps *PostgresStore) LoadImports(ctx context.Context, period Period) (ActiveImports, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := ps.Pool.Query(queryCtx, `
        SELECT id, tipo, periodo_ref, arquivo, linhas, valor_total, saldo_anterior, linhas_brutas, status, created_at, updated_at
        FROM importacoes
        WHERE periodo_ref = $1 AND status = $2
    `, period, StatusActive)
	if err != nil {
		return ActiveImports{}, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()

	var out ActiveImports
	for rows.Next() {
		snap, err := scanImport(rows)
		if err != nil {
			return ActiveImports{}, err
		}
		switch snap.Kind {
		case KindStatement:
			out.Statement = snap
		case KindLedger:
			out.Ledger = snap
		case KindCard:
			out.Card = snap
		}
	}
	if err := rows.Err(); err != nil {
		return ActiveImports{}, fmt.Errorf("failed to read imports: %w", err)
	}
	return out, nil
}

// DeleteImport is a soft delete: the active row is marked superseded and
// kept for audit. The period's active result is invalidated alongside.
func (ps *PostgresStore) DeleteImport(ctx context.Context, kind ImportKind, period Period) error {
	return ps.inSerializableTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		now := time.Now().UTC()
		tag, err := tx.Exec(ctx, `
            UPDATE importacoes SET status = $1, updated_at = $2
            WHERE tipo = $3 AND periodo_ref = $4 AND status = $5
        `, StatusSuperseded, now, kind, period, StatusActive)
		if err != nil {
			return fmt.Errorf("failed to delete import: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return invalidateResultTxPg(ctx, tx, period, now)
	})
}

// SaveResult applies the same supersede-then-insert discipline to results.
func (ps *PostgresStore) SaveResult(ctx context.Context, params SaveResultParams) (*ResultSnapshot, error) {
	snap := &ResultSnapshot{
		ID:               uuid.NewString(),
		Period:           params.Period,
		TotalMatched:     params.TotalMatched,
		TotalDivergences: params.TotalDivergences,
		OverdueCount:     params.OverdueCount,
		Payload:          params.Payload,
		Status:           StatusActive,
		CreatedAt:        time.Now().UTC(),
	}
	snap.UpdatedAt = snap.CreatedAt

	err := ps.inSerializableTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := invalidateResultTxPg(ctx, tx, params.Period, snap.CreatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO resultados (id, periodo_ref, total_conciliados, total_divergencias, contas_atraso, resultado, status, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        `, snap.ID, snap.Period, snap.TotalMatched, snap.TotalDivergences, snap.OverdueCount, snap.Payload, snap.Status, snap.CreatedAt, snap.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// LoadResult returns the active result for the period.
func (ps *PostgresStore) LoadResult(ctx context.Context, period Period) (*ResultSnapshot, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var snap ResultSnapshot
	err := ps.Pool.QueryRow(queryCtx, `
        SELECT id, periodo_ref, total_conciliados, total_divergencias, contas_atraso, resultado, status, created_at, updated_at
        FROM resultados
        WHERE periodo_ref = $1 AND status = $2
    `, period, StatusActive).Scan(
		&snap.ID, &snap.Period, &snap.TotalMatched, &snap.TotalDivergences,
		&snap.OverdueCount, &snap.Payload, &snap.Status, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	return &snap, nil
}

// InvalidateResult marks the active result superseded. Idempotent: a
// period without an active result is left untouched without error.
func (ps *PostgresStore) InvalidateResult(ctx context.Context, period Period) error {
	return ps.inSerializableTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return invalidateResultTxPg(ctx, tx, period, time.Now().UTC())
	})
}

// Close closes the pool.
func (ps *PostgresStore) Close() error {
	ps.Pool.Close()
	return nil
}

func invalidateResultTxPg(ctx context.Context, tx pgx.Tx, period Period, now time.Time) error {
	if _, err := tx.Exec(ctx, `
        UPDATE resultados SET status = $1, updated_at = $2
        WHERE periodo_ref = $3 AND status = $4
    `, StatusSuperseded, now, period, StatusActive); err != nil {
		return fmt.Errorf("failed to invalidate result: %w", err)
	}
	return nil
}

// inSerializableTx runs fn inside a SERIALIZABLE transaction, retrying on
// serialization failures.
func (ps *PostgresStore) inSerializableTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	const maxRetries = 3

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := ps.runTx(ctx, fn)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "40001" {
				if attempt == maxRetries-1 {
					return fmt.Errorf("failed after %d retries due to serialization failure: %w", maxRetries, err)
				}
				time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
				continue
			}
			return err
		}
		break
	}
	return nil
}

func (ps *PostgresStore) runTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := ps.Pool.Acquire(queryCtx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(queryCtx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(queryCtx)

	if err := fn(queryCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(queryCtx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanImport(row pgx.Row) (*ImportSnapshot, error) {
	var snap ImportSnapshot
	var prev sql.NullString
	err := row.Scan(
		&snap.ID, &snap.Kind, &snap.Period, &snap.FileName, &snap.RowCount,
		&snap.TotalValue, &prev, &snap.RawRows, &snap.Status, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan import: %w", err)
	}
	if prev.Valid {
		d, err := decimal.NewFromString(prev.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse saldo_anterior: %w", err)
		}
		snap.PreviousBalance = &d
	}
	return &snap, nil
}

func decimalPtr(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}
