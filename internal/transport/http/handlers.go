package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"journal_backend/internal/failure"
	"journal_backend/internal/journal"
	"journal_backend/internal/workbook"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// Journal is the set of operations served over HTTP.
type Journal interface {
	Update(ctx context.Context, fields map[string]any) journal.UpdateResult
	RecordOutcome(ctx context.Context, outcome journal.Outcome) (journal.OutcomeResult, error)
	Reset(ctx context.Context) (journal.ResetResult, error)
	Snapshot(ctx context.Context, maxRows int) journal.Snapshot
	Status(ctx context.Context) journal.StatusReport
}

type Handlers struct {
	svc Journal
}

func NewHandlers(svc Journal) *Handlers {
	return &Handlers{svc: svc}
}

func (h *Handlers) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&fields); err != nil || fields == nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request", "Corpo da requisição deve ser um objeto JSON")
			return
		}
		writeJSON(w, http.StatusOK, h.svc.Update(r.Context(), fields))
	}
}

func (h *Handlers) RecordWin() http.HandlerFunc {
	return h.recordOutcome(journal.Win, "Erro ao registrar vitória")
}

func (h *Handlers) RecordLoss() http.HandlerFunc {
	return h.recordOutcome(journal.Loss, "Erro ao registrar derrota")
}

func (h *Handlers) recordOutcome(outcome journal.Outcome, failMessage string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := h.svc.RecordOutcome(r.Context(), outcome)
		if err != nil {
			if errors.Is(err, failure.ErrWindowFull) {
				WriteHTTPError(w, http.StatusBadRequest, failure.CodeWindowFull, "Não há células vazias disponíveis")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, failure.Code(err), failMessage)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (h *Handlers) Reset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := h.svc.Reset(r.Context())
		if err != nil {
			var partial *journal.PartialWriteError
			if errors.As(err, &partial) {
				writeJSON(w, http.StatusInternalServerError, errorResponse{
					Status:      "error",
					Error:       failure.Code(err),
					Message:     "Erro ao zerar dados",
					CellsFailed: partial.Failed,
				})
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, failure.Code(err), "Erro ao limpar resultados")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (h *Handlers) Snapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.svc.Snapshot(r.Context(), workbook.DefaultHistoryRows))
	}
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

func (h *Handlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := h.svc.Status(r.Context())
		if !report.Online {
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{
				Status:  "offline",
				Message: "Erro ao conectar com a planilha",
				Backend: report.Backend,
				Error:   failure.Code(report.Err),
			})
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{
			Status:  "online",
			Message: "Conexão com a planilha estabelecida com sucesso",
			Backend: report.Backend,
		})
	}
}

func (h *Handlers) Test() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Msg("Liveness check")
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "API funcionando corretamente",
		})
	}
}
