package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"journal_backend/internal/failure"
	"journal_backend/internal/journal"
	"journal_backend/internal/workbook"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type stubJournal struct {
	updateFields map[string]any
	outcome      journal.Outcome
	outcomeErr   error
	resetErr     error
	status       journal.StatusReport
	snapshotRows int
}

func (s *stubJournal) Update(_ context.Context, fields map[string]any) journal.UpdateResult {
	s.updateFields = fields
	return journal.UpdateResult{
		OperationID:  "op-1",
		Status:       journal.StatusSuccess,
		CellsUpdated: []string{"N12"},
		CellsFailed:  []string{},
		Summary:      workbook.Summary{CurrentCapital: 1000},
	}
}

func (s *stubJournal) RecordOutcome(_ context.Context, outcome journal.Outcome) (journal.OutcomeResult, error) {
	s.outcome = outcome
	if s.outcomeErr != nil {
		return journal.OutcomeResult{}, s.outcomeErr
	}
	return journal.OutcomeResult{
		Status:  journal.StatusSuccess,
		Row:     4,
		Cell:    "C4",
		History: []workbook.HistoryRecord{{SequenceNumber: 1.0, Outcome: "W"}},
	}, nil
}

func (s *stubJournal) Reset(context.Context) (journal.ResetResult, error) {
	if s.resetErr != nil {
		return journal.ResetResult{}, s.resetErr
	}
	return journal.ResetResult{Status: journal.StatusSuccess, History: []workbook.HistoryRecord{}}, nil
}

func (s *stubJournal) Snapshot(_ context.Context, maxRows int) journal.Snapshot {
	s.snapshotRows = maxRows
	return journal.Snapshot{
		Summary: workbook.Summary{Wins: 3, Indeterminate: []string{"erros"}},
		History: []workbook.HistoryRecord{},
	}
}

func (s *stubJournal) Status(context.Context) journal.StatusReport {
	return s.status
}

func serve(t *testing.T, svc Journal, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	router := NewRouter(svc, RouterConfig{
		AllowedOrigins: []string{"http://localhost:5000"},
		Gatherer:       prometheus.NewRegistry(),
		LogWriter:      io.Discard,
	})
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestUpdateHandlerPassesFields(t *testing.T) {
	svc := &stubJournal{}
	rec, body := serve(t, svc, http.MethodPost, "/update", `{"capital_inicial": 1000, "payout": 0.87}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"capital_inicial": 1000.0, "payout": 0.87}, svc.updateFields)
	require.Equal(t, "success", body["status"])
	require.Equal(t, []any{"N12"}, body["cells_updated"])
	require.Equal(t, 1000.0, body["capital_atual"])
	require.Equal(t, "op-1", body["operation_id"])
}

func TestUpdateHandlerRejectsNonObjectBody(t *testing.T) {
	for _, payload := range []string{"", "not json", "[1,2]", "null"} {
		rec, body := serve(t, &stubJournal{}, http.MethodPost, "/update", payload)
		require.Equal(t, http.StatusBadRequest, rec.Code, payload)
		require.Equal(t, "invalid_request", body["error"])
	}
}

func TestWinHandlerReturnsRowAndHistory(t *testing.T) {
	svc := &stubJournal{}
	rec, body := serve(t, svc, http.MethodPost, "/win", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, journal.Win, svc.outcome)
	require.Equal(t, 4.0, body["row"])
	require.Len(t, body["historico"], 1)
}

func TestLossHandlerMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"window full", fmt.Errorf("C3:C102: %w", failure.ErrWindowFull), http.StatusBadRequest, failure.CodeWindowFull},
		{"scan failed", fmt.Errorf("scan: %w", failure.ErrRemote), http.StatusInternalServerError, failure.CodeRemoteFailed},
		{"auth failed", fmt.Errorf("token: %w", failure.ErrAuth), http.StatusInternalServerError, failure.CodeAuthFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubJournal{outcomeErr: tt.err}
			rec, body := serve(t, svc, http.MethodPost, "/loss", "")
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, journal.Loss, svc.outcome)
			require.Equal(t, "error", body["status"])
			require.Equal(t, tt.code, body["error"])
		})
	}
}

func TestResetHandlerListsFailedCells(t *testing.T) {
	svc := &stubJournal{resetErr: &journal.PartialWriteError{
		Operation: "reset",
		Failed:    []string{"N13", "N15"},
		Err:       failure.ErrRemote,
	}}
	rec, body := serve(t, svc, http.MethodPost, "/reset", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, []any{"N13", "N15"}, body["cells_failed"])
}

func TestResetHandlerClearFailure(t *testing.T) {
	svc := &stubJournal{resetErr: fmt.Errorf("clear: %w", failure.ErrRemote)}
	rec, body := serve(t, svc, http.MethodPost, "/reset", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Erro ao limpar resultados", body["message"])
	require.NotContains(t, body, "cells_failed")
}

func TestResetHandlerSuccess(t *testing.T) {
	rec, body := serve(t, &stubJournal{}, http.MethodPost, "/reset", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{}, body["historico"])
}

func TestSnapshotHandlerReadsFullHistory(t *testing.T) {
	svc := &stubJournal{}
	rec, body := serve(t, svc, http.MethodGet, "/dados", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, workbook.DefaultHistoryRows, svc.snapshotRows)
	require.Equal(t, 3.0, body["acertos"])
	require.Equal(t, []any{"erros"}, body["indeterminate"])
}

func TestStatusHandler(t *testing.T) {
	online := &stubJournal{status: journal.StatusReport{Online: true, Backend: "graph"}}
	rec, body := serve(t, online, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "online", body["status"])

	offline := &stubJournal{status: journal.StatusReport{
		Backend: "graph",
		Err:     fmt.Errorf("USER_ID: %w", failure.ErrConfig),
	}}
	rec, body = serve(t, offline, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "offline", body["status"])
	require.Equal(t, failure.CodeConfigMissing, body["error"])
}

func TestTestHandlerAlwaysSucceeds(t *testing.T) {
	rec, body := serve(t, &stubJournal{}, http.MethodGet, "/test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", body["status"])
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	router := NewRouter(&stubJournal{}, RouterConfig{
		AllowedOrigins: []string{"http://localhost:5000"},
		Gatherer:       prometheus.NewRegistry(),
		LogWriter:      io.Discard,
	})

	req := httptest.NewRequest(http.MethodOptions, "/win", nil)
	req.Header.Set("Origin", "http://localhost:5000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "http://localhost:5000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/win", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "journal_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	router := NewRouter(&stubJournal{}, RouterConfig{Gatherer: reg, LogWriter: io.Discard})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "journal_test_total 1")
}
