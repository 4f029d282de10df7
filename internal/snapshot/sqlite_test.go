package snapshot

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func importParams(kind ImportKind, period Period, file string) SaveImportParams {
	return SaveImportParams{
		Kind:       kind,
		Period:     period,
		FileName:   file,
		RowCount:   3,
		TotalValue: decimal.RequireFromString("123.45"),
		RawRows:    json.RawMessage(`[{"valor":"123.45"}]`),
	}
}

func TestSaveImportSupersedesPrevious(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.SaveImport(ctx, importParams(KindStatement, "2024-03", "extrato_v1.xlsx"))
	require.NoError(t, err)
	second, err := store.SaveImport(ctx, importParams(KindStatement, "2024-03", "extrato_v2.xlsx"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	active, err := store.LoadImports(ctx, "2024-03")
	require.NoError(t, err)
	require.NotNil(t, active.Statement)
	assert.Equal(t, second.ID, active.Statement.ID)
	assert.Equal(t, "extrato_v2.xlsx", active.Statement.FileName)
	assert.Equal(t, StatusActive, active.Statement.Status)
}

func TestSaveImportKeepsKindsIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveImport(ctx, importParams(KindStatement, "2024-03", "extrato.xlsx"))
	require.NoError(t, err)
	_, err = store.SaveImport(ctx, importParams(KindLedger, "2024-03", "omie.xlsx"))
	require.NoError(t, err)
	_, err = store.SaveImport(ctx, importParams(KindStatement, "2024-04", "extrato_abril.xlsx"))
	require.NoError(t, err)

	march, err := store.LoadImports(ctx, "2024-03")
	require.NoError(t, err)
	assert.NotNil(t, march.Statement)
	assert.NotNil(t, march.Ledger)
	assert.Nil(t, march.Card)

	april, err := store.LoadImports(ctx, "2024-04")
	require.NoError(t, err)
	assert.NotNil(t, april.Statement)
	assert.Nil(t, april.Ledger)
}

func TestSaveImportRoundTripsBalanceAndRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prev := decimal.RequireFromString("1000.50")
	params := importParams(KindStatement, "2024-03", "extrato.xlsx")
	params.PreviousBalance = &prev

	_, err := store.SaveImport(ctx, params)
	require.NoError(t, err)

	active, err := store.LoadImports(ctx, "2024-03")
	require.NoError(t, err)
	require.NotNil(t, active.Statement)
	require.NotNil(t, active.Statement.PreviousBalance)
	assert.True(t, active.Statement.PreviousBalance.Equal(prev))
	assert.True(t, active.Statement.TotalValue.Equal(decimal.RequireFromString("123.45")))
	assert.JSONEq(t, `[{"valor":"123.45"}]`, string(active.Statement.RawRows))
}

func TestDeleteImport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveImport(ctx, importParams(KindLedger, "2024-03", "omie.xlsx"))
	require.NoError(t, err)

	require.NoError(t, store.DeleteImport(ctx, KindLedger, "2024-03"))

	active, err := store.LoadImports(ctx, "2024-03")
	require.NoError(t, err)
	assert.Nil(t, active.Ledger)

	// already superseded, nothing active left to delete
	err = store.DeleteImport(ctx, KindLedger, "2024-03")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveResultSupersedesPrevious(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveResult(ctx, SaveResultParams{
		Period: "2024-03", TotalMatched: 5, TotalDivergences: 2, OverdueCount: 1,
		Payload: json.RawMessage(`{"totalConciliados":5}`),
	})
	require.NoError(t, err)
	second, err := store.SaveResult(ctx, SaveResultParams{
		Period: "2024-03", TotalMatched: 7, TotalDivergences: 0, OverdueCount: 0,
		Payload: json.RawMessage(`{"totalConciliados":7}`),
	})
	require.NoError(t, err)

	loaded, err := store.LoadResult(ctx, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, second.ID, loaded.ID)
	assert.Equal(t, 7, loaded.TotalMatched)
	assert.JSONEq(t, `{"totalConciliados":7}`, string(loaded.Payload))
}

func TestLoadResultNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadResult(context.Background(), "2024-03")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidateResultIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// nothing active yet: still a no-op, not an error
	require.NoError(t, store.InvalidateResult(ctx, "2024-03"))

	_, err := store.SaveResult(ctx, SaveResultParams{Period: "2024-03", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	require.NoError(t, store.InvalidateResult(ctx, "2024-03"))
	_, err = store.LoadResult(ctx, "2024-03")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.InvalidateResult(ctx, "2024-03"))
}

func TestImportChangesInvalidateResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveImport(ctx, importParams(KindStatement, "2024-03", "extrato.xlsx"))
	require.NoError(t, err)
	_, err = store.SaveResult(ctx, SaveResultParams{Period: "2024-03", TotalMatched: 3, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	// a new import stales the stored result
	_, err = store.SaveImport(ctx, importParams(KindStatement, "2024-03", "extrato_v2.xlsx"))
	require.NoError(t, err)
	_, err = store.LoadResult(ctx, "2024-03")
	assert.ErrorIs(t, err, ErrNotFound)

	// results of other periods are untouched
	_, err = store.SaveResult(ctx, SaveResultParams{Period: "2024-04", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	_, err = store.SaveImport(ctx, importParams(KindLedger, "2024-03", "omie.xlsx"))
	require.NoError(t, err)
	_, err = store.LoadResult(ctx, "2024-04")
	assert.NoError(t, err)
}

func TestDeleteImportInvalidatesResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveImport(ctx, importParams(KindStatement, "2024-03", "extrato.xlsx"))
	require.NoError(t, err)
	_, err = store.SaveResult(ctx, SaveResultParams{Period: "2024-03", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	require.NoError(t, store.DeleteImport(ctx, KindStatement, "2024-03"))

	_, err = store.LoadResult(ctx, "2024-03")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepeatedSavesLeaveSingleActiveRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var last *ImportSnapshot
	for i := 0; i < 5; i++ {
		snap, err := store.SaveImport(ctx, importParams(KindCard, "2024-03", "fatura.xlsx"))
		require.NoError(t, err)
		last = snap
	}

	var count int
	err := store.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM importacoes
        WHERE tipo = ? AND periodo_ref = ? AND status = ?
    `, KindCard, Period("2024-03"), StatusActive).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	active, err := store.LoadImports(ctx, "2024-03")
	require.NoError(t, err)
	require.NotNil(t, active.Card)
	assert.Equal(t, last.ID, active.Card.ID)
}
