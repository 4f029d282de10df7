package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/powerconcept/conciliador/internal/recon"
	"github.com/powerconcept/conciliador/internal/security"
	"github.com/powerconcept/conciliador/internal/snapshot"
)

// entryPayload is the wire shape of one normalized entry. Dates arrive as
// strings because the import layer exports them as plain calendar dates.
type entryPayload struct {
	Date        string          `json:"data"`
	Amount      decimal.Decimal `json:"valor"`
	Description string          `json:"descricao"`
	Account     string          `json:"conta,omitempty"`
	Category    string          `json:"categoria,omitempty"`
	CardID      string          `json:"cartao,omitempty"`
	Importable  bool            `json:"importavel,omitempty"`
}

var entryDateFormats = []string{"2006-01-02", time.RFC3339}

func parseEntryDate(s string) (time.Time, error) {
	for _, f := range entryDateFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func toStatementEntries(payloads []entryPayload) ([]recon.StatementEntry, error) {
	var out []recon.StatementEntry
	for i, p := range payloads {
		d, err := parseEntryDate(p.Date)
		if err != nil {
			return nil, fmt.Errorf("extrato[%d]: %w", i, err)
		}
		out = append(out, recon.StatementEntry{
			Date:        d,
			Amount:      p.Amount,
			Description: p.Description,
			Account:     p.Account,
		})
	}
	return out, nil
}

func toLedgerEntries(payloads []entryPayload) ([]recon.LedgerEntry, error) {
	var out []recon.LedgerEntry
	for i, p := range payloads {
		d, err := parseEntryDate(p.Date)
		if err != nil {
			return nil, fmt.Errorf("omie[%d]: %w", i, err)
		}
		out = append(out, recon.LedgerEntry{
			Date:        d,
			Amount:      p.Amount,
			Description: p.Description,
			Account:     p.Account,
			Category:    p.Category,
		})
	}
	return out, nil
}

func toCardTransactions(payloads []entryPayload) ([]recon.CardTransaction, error) {
	var out []recon.CardTransaction
	for i, p := range payloads {
		d, err := parseEntryDate(p.Date)
		if err != nil {
			return nil, fmt.Errorf("cartao[%d]: %w", i, err)
		}
		out = append(out, recon.CardTransaction{
			Date:        d,
			Amount:      p.Amount,
			Description: p.Description,
			CardID:      p.CardID,
			Importable:  p.Importable,
		})
	}
	return out, nil
}

type saveImportRequest struct {
	Kind            string           `json:"tipo"`
	Period          string           `json:"periodoRef"`
	FileName        string           `json:"arquivo"`
	RowCount        int              `json:"linhas"`
	TotalValue      decimal.Decimal  `json:"valorTotal"`
	PreviousBalance *decimal.Decimal `json:"saldoAnterior"`
	RawRows         json.RawMessage  `json:"linhasBrutas"`
}

type saveImportResponse struct {
	CorrelationID string                   `json:"correlation_id"`
	Import        *snapshot.ImportSnapshot `json:"importacao"`
}

func handleSaveImport(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		kind, err := snapshot.ParseImportKind(req.Kind)
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_kind")
			return
		}
		period, err := snapshot.ParsePeriod(req.Period)
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_period")
			return
		}

		snap, err := deps.Store.SaveImport(r.Context(), snapshot.SaveImportParams{
			Kind:            kind,
			Period:          period,
			FileName:        req.FileName,
			RowCount:        req.RowCount,
			TotalValue:      req.TotalValue,
			PreviousBalance: req.PreviousBalance,
			RawRows:         req.RawRows,
		})
		if err != nil {
			deps.Logger.Error("save import failed", "error", err, "tipo", kind, "periodo", period)
			security.WriteJSONError(w, r, http.StatusInternalServerError, "persistence_error")
			return
		}

		writeJSON(w, r, http.StatusCreated, saveImportResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Import:        snap,
		})
	}
}

type listImportsResponse struct {
	CorrelationID string                 `json:"correlation_id"`
	Period        snapshot.Period        `json:"periodoRef"`
	Imports       snapshot.ActiveImports `json:"importacoes"`
}

func handleListImports(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period, err := snapshot.ParsePeriod(r.URL.Query().Get("periodo"))
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_period")
			return
		}

		imports, err := deps.Store.LoadImports(r.Context(), period)
		if err != nil {
			deps.Logger.Error("load imports failed", "error", err, "periodo", period)
			security.WriteJSONError(w, r, http.StatusInternalServerError, "persistence_error")
			return
		}

		writeJSON(w, r, http.StatusOK, listImportsResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Period:        period,
			Imports:       imports,
		})
	}
}

type actionResponse struct {
	CorrelationID string `json:"correlation_id"`
	Success       bool   `json:"success"`
}

func handleDeleteImport(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := snapshot.ParseImportKind(chi.URLParam(r, "tipo"))
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_kind")
			return
		}
		period, err := snapshot.ParsePeriod(chi.URLParam(r, "periodo"))
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_period")
			return
		}

		err = deps.Store.DeleteImport(r.Context(), kind, period)
		if errors.Is(err, snapshot.ErrNotFound) {
			security.WriteJSONError(w, r, http.StatusNotFound, "import_not_found")
			return
		}
		if err != nil {
			deps.Logger.Error("delete import failed", "error", err, "tipo", kind, "periodo", period)
			security.WriteJSONError(w, r, http.StatusInternalServerError, "persistence_error")
			return
		}

		writeJSON(w, r, http.StatusOK, actionResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Success:       true,
		})
	}
}

type balancePayload struct {
	Previous *decimal.Decimal `json:"saldoAnterior"`
	Reported *decimal.Decimal `json:"saldoFinalInformado"`
}

type runRequest struct {
	Period          string         `json:"periodoRef"`
	Statement       []entryPayload `json:"extrato"`
	Ledger          []entryPayload `json:"omie"`
	Cards           []entryPayload `json:"cartao"`
	SelectedAccount string         `json:"contaCorrenteSelecionada"`
	Balances        struct {
		Bank   balancePayload `json:"banco"`
		Ledger balancePayload `json:"omie"`
	} `json:"saldos"`
	// Persist defaults to true; the UI clears it for what-if runs.
	Persist *bool `json:"persistir"`
}

type runResponse struct {
	CorrelationID string                      `json:"correlation_id"`
	Period        snapshot.Period             `json:"periodoRef"`
	Result        *recon.ReconciliationResult `json:"resultado"`
	Saved         bool                        `json:"salvo"`
	SaveError     string                      `json:"erroPersistencia,omitempty"`
}

func handleRun(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		period, err := snapshot.ParsePeriod(req.Period)
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_period")
			return
		}

		statement, err := toStatementEntries(req.Statement)
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusBadRequest, "invalid_entry", err.Error())
			return
		}
		ledger, err := toLedgerEntries(req.Ledger)
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusBadRequest, "invalid_entry", err.Error())
			return
		}
		cards, err := toCardTransactions(req.Cards)
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusBadRequest, "invalid_entry", err.Error())
			return
		}

		bankPrev := req.Balances.Bank.Previous
		if bankPrev == nil {
			bankPrev = storedOpeningBalance(r.Context(), deps.Store, period, snapshot.KindStatement)
		}
		ledgerPrev := req.Balances.Ledger.Previous
		if ledgerPrev == nil {
			ledgerPrev = storedOpeningBalance(r.Context(), deps.Store, period, snapshot.KindLedger)
		}

		result, err := recon.Run(recon.RunInput{
			Statement:         statement,
			Ledger:            ledger,
			Cards:             cards,
			SelectedAccount:   req.SelectedAccount,
			DateToleranceDays: deps.DateToleranceDays,
			BankBalance: recon.BalanceInput{
				Previous: bankPrev,
				Reported: req.Balances.Bank.Reported,
			},
			LedgerBalance: recon.BalanceInput{
				Previous: ledgerPrev,
				Reported: req.Balances.Ledger.Reported,
			},
		})
		if err != nil {
			if errors.Is(err, recon.ErrMissingSourceData) {
				security.WriteJSONErrorDetail(w, r, http.StatusUnprocessableEntity, "missing_source_data", err.Error())
				return
			}
			deps.Logger.Error("reconciliation failed", "error", err, "periodo", period)
			security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}

		resp := runResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Period:        period,
			Result:        result,
		}

		// A failed save does not discard the computed result: the run is
		// reported back as successful but not yet durable.
		if req.Persist == nil || *req.Persist {
			payload, err := json.Marshal(result)
			if err == nil {
				_, err = deps.Store.SaveResult(r.Context(), snapshot.SaveResultParams{
					Period:           period,
					TotalMatched:     result.TotalMatched,
					TotalDivergences: result.TotalDivergences,
					OverdueCount:     result.OverdueCount,
					Payload:          payload,
				})
			}
			if err != nil {
				deps.Logger.Error("save result failed", "error", err, "periodo", period)
				resp.SaveError = "persistence_error"
			} else {
				resp.Saved = true
			}
		}

		writeJSON(w, r, http.StatusOK, resp)
	}
}

// storedOpeningBalance resolves an opening balance the caller did not
// send: the period's own import when it recorded one, otherwise the
// previous period's closing figure (its opening plus its movement).
func storedOpeningBalance(ctx context.Context, store snapshot.Store, period snapshot.Period, kind snapshot.ImportKind) *decimal.Decimal {
	imports, err := store.LoadImports(ctx, period)
	if err != nil {
		return nil
	}
	if snap := importOfKind(imports, kind); snap != nil && snap.PreviousBalance != nil {
		return snap.PreviousBalance
	}

	previous, err := store.LoadImports(ctx, period.Prev())
	if err != nil {
		return nil
	}
	if snap := importOfKind(previous, kind); snap != nil && snap.PreviousBalance != nil {
		closing := snap.PreviousBalance.Add(snap.TotalValue)
		return &closing
	}
	return nil
}

func importOfKind(a snapshot.ActiveImports, kind snapshot.ImportKind) *snapshot.ImportSnapshot {
	switch kind {
	case snapshot.KindStatement:
		return a.Statement
	case snapshot.KindLedger:
		return a.Ledger
	case snapshot.KindCard:
		return a.Card
	}
	return nil
}

type resultResponse struct {
	CorrelationID string                   `json:"correlation_id"`
	Result        *snapshot.ResultSnapshot `json:"resultado"`
}

func handleGetResult(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period, err := snapshot.ParsePeriod(chi.URLParam(r, "periodo"))
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_period")
			return
		}

		snap, err := deps.Store.LoadResult(r.Context(), period)
		if errors.Is(err, snapshot.ErrNotFound) {
			security.WriteJSONError(w, r, http.StatusNotFound, "result_not_found")
			return
		}
		if err != nil {
			deps.Logger.Error("load result failed", "error", err, "periodo", period)
			security.WriteJSONError(w, r, http.StatusInternalServerError, "persistence_error")
			return
		}

		writeJSON(w, r, http.StatusOK, resultResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Result:        snap,
		})
	}
}

func handleInvalidateResult(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period, err := snapshot.ParsePeriod(chi.URLParam(r, "periodo"))
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_period")
			return
		}

		if err := deps.Store.InvalidateResult(r.Context(), period); err != nil {
			deps.Logger.Error("invalidate result failed", "error", err, "periodo", period)
			security.WriteJSONError(w, r, http.StatusInternalServerError, "persistence_error")
			return
		}

		writeJSON(w, r, http.StatusOK, actionResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Success:       true,
		})
	}
}
