package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteStore is the embedded backend, used for local development and by
// the store tests. Same lifecycle rules as Postgres: the partial unique
// index enforces at most one active row per key, and supersede+insert run
// in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS importacoes (
    id             TEXT PRIMARY KEY,
    tipo           TEXT NOT NULL,
    periodo_ref    TEXT NOT NULL,
    arquivo        TEXT NOT NULL,
    linhas         INTEGER NOT NULL,
    valor_total    TEXT NOT NULL,
    saldo_anterior TEXT,
    linhas_brutas  BLOB NOT NULL,
    status         TEXT NOT NULL,
    created_at     TIMESTAMP NOT NULL,
    updated_at     TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS importacoes_ativa_uq
    ON importacoes (tipo, periodo_ref) WHERE status = 'ativo';

CREATE TABLE IF NOT EXISTS resultados (
    id                 TEXT PRIMARY KEY,
    periodo_ref        TEXT NOT NULL,
    total_conciliados  INTEGER NOT NULL,
    total_divergencias INTEGER NOT NULL,
    contas_atraso      INTEGER NOT NULL,
    resultado          BLOB NOT NULL,
    status             TEXT NOT NULL,
    created_at         TIMESTAMP NOT NULL,
    updated_at         TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS resultados_ativo_uq
    ON resultados (periodo_ref) WHERE status = 'ativo';
`

// OpenSQLite opens (and creates, if needed) a SQLite-backed store at path.
// Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY on the supersede transactions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply snapshot schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (ss *SQLiteStore) SaveImport(ctx context.Context, params SaveImportParams) (*ImportSnapshot, error) {
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

	rawRows := []byte(params.RawRows)
	if len(rawRows) == 0 {
		rawRows = []byte("[]")
	}

	err := ss.inTx(ctx, func(tx *sql.Tx) error {
		now := snap.CreatedAt
		if _, err := tx.ExecContext(ctx, `
            UPDATE importacoes SET status = ?, updated_at = ?
            WHERE tipo = ? AND periodo_ref = ? AND status = ?
        `, StatusSuperseded, now, params.Kind, params.Period, StatusActive); err != nil {
			return fmt.Errorf("failed to supersede import: %w", err)
		}

		if err := invalidateResultTx(ctx, tx, params.Period, now); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
            INSERT INTO importacoes (id, tipo, periodo_ref, arquivo, linhas, valor_total, saldo_anterior, linhas_brutas, status, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        `, snap.ID, snap.Kind, snap.Period, snap.FileName, snap.RowCount, snap.TotalValue.String(),
			decimalStringPtr(snap.PreviousBalance), rawRows, snap.Status, snap.CreatedAt, snap.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert import: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (ss *SQLiteStore) LoadImports(ctx context.Context, period Period) (ActiveImports, error) {
	rows, err := ss.db.QueryContext(ctx, `
        SELECT id, tipo, periodo_ref, arquivo, linhas, valor_total, saldo_anterior, linhas_brutas, status, created_at, updated_at
        FROM importacoes
        WHERE periodo_ref = ? AND status = ?
    `, period, StatusActive)
	if err != nil {
		return ActiveImports{}, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()

	var out ActiveImports
	for rows.Next() {
		var snap ImportSnapshot
		var total string
		var prev sql.NullString
		var raw []byte
		if err := rows.Scan(
			&snap.ID, &snap.Kind, &snap.Period, &snap.FileName, &snap.RowCount,
			&total, &prev, &raw, &snap.Status, &snap.CreatedAt, &snap.UpdatedAt,
		); err != nil {
			return ActiveImports{}, fmt.Errorf("failed to scan import: %w", err)
		}
		snap.RawRows = raw
		if snap.TotalValue, err = decimal.NewFromString(total); err != nil {
			return ActiveImports{}, fmt.Errorf("failed to parse valor_total: %w", err)
		}
		if prev.Valid {
			d, err := decimal.NewFromString(prev.String)
			if err != nil {
				return ActiveImports{}, fmt.Errorf("failed to parse saldo_anterior: %w", err)
			}
			snap.PreviousBalance = &d
		}
		s := snap
		switch snap.Kind {
		case KindStatement:
			out.Statement = &s
		case KindLedger:
			out.Ledger = &s
		case KindCard:
			out.Card = &s
		}
	}
	if err := rows.Err(); err != nil {
		return ActiveImports{}, fmt.Errorf("failed to read imports: %w", err)
	}
	return out, nil
}

func (ss *SQLiteStore) DeleteImport(ctx context.Context, kind ImportKind, period Period) error {
	return ss.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
            UPDATE importacoes SET status = ?, updated_at = ?
            WHERE tipo = ? AND periodo_ref = ? AND status = ?
        `, StatusSuperseded, now, kind, period, StatusActive)
		if err != nil {
			return fmt.Errorf("failed to delete import: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete import: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return invalidateResultTx(ctx, tx, period, now)
	})
}

func (ss *SQLiteStore) SaveResult(ctx context.Context, params SaveResultParams) (*ResultSnapshot, error) {
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

	err := ss.inTx(ctx, func(tx *sql.Tx) error {
		if err := invalidateResultTx(ctx, tx, params.Period, snap.CreatedAt); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO resultados (id, periodo_ref, total_conciliados, total_divergencias, contas_atraso, resultado, status, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        `, snap.ID, snap.Period, snap.TotalMatched, snap.TotalDivergences, snap.OverdueCount,
			[]byte(snap.Payload), snap.Status, snap.CreatedAt, snap.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (ss *SQLiteStore) LoadResult(ctx context.Context, period Period) (*ResultSnapshot, error) {
	var snap ResultSnapshot
	var payload []byte
	err := ss.db.QueryRowContext(ctx, `
        SELECT id, periodo_ref, total_conciliados, total_divergencias, contas_atraso, resultado, status, created_at, updated_at
        FROM resultados
        WHERE periodo_ref = ? AND status = ?
    `, period, StatusActive).Scan(
		&snap.ID, &snap.Period, &snap.TotalMatched, &snap.TotalDivergences,
		&snap.OverdueCount, &payload, &snap.Status, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	snap.Payload = payload
	return &snap, nil
}

func (ss *SQLiteStore) InvalidateResult(ctx context.Context, period Period) error {
	return ss.inTx(ctx, func(tx *sql.Tx) error {
		return invalidateResultTx(ctx, tx, period, time.Now().UTC())
	})
}

func (ss *SQLiteStore) Close() error {
	return ss.db.Close()
}

func (ss *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func invalidateResultTx(ctx context.Context, tx *sql.Tx, period Period, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `
        UPDATE resultados SET status = ?, updated_at = ?
        WHERE periodo_ref = ? AND status = ?
    `, StatusSuperseded, now, period, StatusActive); err != nil {
		return fmt.Errorf("failed to invalidate result: %w", err)
	}
	return nil
}

func decimalStringPtr(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}
