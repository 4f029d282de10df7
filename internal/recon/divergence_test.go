package recon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyOverdueReceivable(t *testing.T) {
	lastBank := day(2024, 3, 25)
	ledgerOnly := []LedgerEntry{
		{Date: day(2024, 3, 5), Amount: dec("800.00"), Description: "Cliente Z", Category: "Contas a Receber"},
	}

	divergences, overdue := ClassifyDivergences(nil, ledgerOnly, lastBank)

	require.Len(t, divergences, 1)
	assert.Equal(t, DivergenceOverdueReceivable, divergences[0].Type)
	assert.Equal(t, SideLedger, divergences[0].Side)
	assert.Equal(t, 20, divergences[0].OverdueDays)
	assert.Equal(t, 1, overdue)
}

func TestClassifyOverduePayable(t *testing.T) {
	lastBank := day(2024, 3, 25)
	ledgerOnly := []LedgerEntry{
		{Date: day(2024, 3, 15), Amount: dec("-120.00"), Description: "Aluguel galpao", Category: "Contas a Pagar"},
	}

	divergences, overdue := ClassifyDivergences(nil, ledgerOnly, lastBank)

	require.Len(t, divergences, 1)
	assert.Equal(t, DivergenceOverduePayable, divergences[0].Type)
	assert.Equal(t, 10, divergences[0].OverdueDays)
	assert.Equal(t, 1, overdue)
}

func TestClassifyDirectionByAmountSignWithoutCategory(t *testing.T) {
	lastBank := day(2024, 3, 25)
	ledgerOnly := []LedgerEntry{
		{Date: day(2024, 3, 1), Amount: dec("50.00")},
		{Date: day(2024, 3, 1), Amount: dec("-50.00")},
	}

	divergences, overdue := ClassifyDivergences(nil, ledgerOnly, lastBank)

	require.Len(t, divergences, 2)
	assert.Equal(t, DivergenceOverdueReceivable, divergences[0].Type)
	assert.Equal(t, DivergenceOverduePayable, divergences[1].Type)
	assert.Equal(t, 2, overdue)
}

func TestClassifySameDayLedgerEntryIsGeneric(t *testing.T) {
	lastBank := day(2024, 3, 25)
	ledgerOnly := []LedgerEntry{
		{Date: day(2024, 3, 25), Amount: dec("10.00"), Category: "Contas a Receber"},
	}

	divergences, overdue := ClassifyDivergences(nil, ledgerOnly, lastBank)

	require.Len(t, divergences, 1)
	assert.Equal(t, DivergenceLedgerOnly, divergences[0].Type)
	assert.Zero(t, divergences[0].OverdueDays)
	assert.Zero(t, overdue)
}

func TestClassifyStatementOnly(t *testing.T) {
	stOnly := []StatementEntry{
		{Date: day(2024, 3, 2), Amount: dec("33.00"), Description: "TARIFA"},
	}

	divergences, overdue := ClassifyDivergences(stOnly, nil, day(2024, 3, 25))

	require.Len(t, divergences, 1)
	assert.Equal(t, DivergenceBankOnly, divergences[0].Type)
	assert.Equal(t, SideBank, divergences[0].Side)
	require.NotNil(t, divergences[0].Statement)
	assert.Nil(t, divergences[0].Ledger)
	assert.Zero(t, overdue)
}

func TestClassifyNoLastBankDate(t *testing.T) {
	ledgerOnly := []LedgerEntry{
		{Date: day(2024, 3, 1), Amount: dec("5.00"), Category: "Contas a Receber"},
	}

	divergences, overdue := ClassifyDivergences(nil, ledgerOnly, time.Time{})

	require.Len(t, divergences, 1)
	assert.Equal(t, DivergenceLedgerOnly, divergences[0].Type)
	assert.Zero(t, overdue)
}
