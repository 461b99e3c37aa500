package journal

import (
	"context"
	"errors"
	"fmt"

	"journal_backend/internal/failure"
	"journal_backend/internal/workbook"
)

// InputCell is a journal input cell and the request fields that may carry
// its value, in order of preference.
type InputCell struct {
	Address string
	Fields  []string
}

var InputCells = []InputCell{
	{"N12", []string{"capital_inicial"}},
	{"N13", []string{"total_operacoes"}},
	{"N14", []string{"operacoes_ganho", "operacoes_com_ganho"}},
	{"N15", []string{"payout_fixo", "payout"}},
}

type UpdateResult struct {
	OperationID  string   `json:"operation_id"`
	Status       string   `json:"status"`
	Message      string   `json:"message"`
	CellsUpdated []string `json:"cells_updated"`
	CellsFailed  []string `json:"cells_failed"`
	workbook.Summary
}

// Update writes every input cell whose field is present in fields. For each
// cell the aliases are tried in order until one write succeeds. Missing
// fields are skipped; the result is a warning when nothing was written.
func (s *Service) Update(ctx context.Context, fields map[string]any) UpdateResult {
	id := newOperationID()
	logger := s.logger("update", id)
	result := UpdateResult{
		OperationID:  id,
		CellsUpdated: []string{},
		CellsFailed:  []string{},
	}

	var errs []error
	for _, cell := range InputCells {
		attempted, written := false, false
		for _, field := range cell.Fields {
			value, ok := fields[field]
			if !ok || value == nil {
				continue
			}
			attempted = true
			if err := s.store.UpdateCell(ctx, cell.Address, value); err != nil {
				logger.Warn().Err(err).Str("cell", cell.Address).Str("field", field).Msg("Write failed, trying next field")
				errs = append(errs, err)
				continue
			}
			logger.Info().Str("cell", cell.Address).Str("field", field).Interface("value", value).Msg("Input cell updated")
			written = true
			break
		}
		switch {
		case written:
			result.CellsUpdated = append(result.CellsUpdated, cell.Address)
		case attempted:
			result.CellsFailed = append(result.CellsFailed, cell.Address)
		default:
			logger.Debug().Str("cell", cell.Address).Strs("fields", cell.Fields).Msg("No value provided")
		}
	}

	result.Summary = s.store.GetSummaryData(ctx)
	if len(result.CellsUpdated) > 0 {
		result.Status = StatusSuccess
		result.Message = "Células atualizadas com sucesso"
	} else {
		result.Status = StatusWarning
		result.Message = "Nenhuma célula foi atualizada"
	}
	if len(result.CellsFailed) > 0 {
		logger.Error().Err(errors.Join(errs...)).Strs("cells_failed", result.CellsFailed).Msg("Update incomplete")
		s.opts.Notifier.NotifyPartialWrite(ctx, "update", result.CellsUpdated, result.CellsFailed)
	}
	logger.Info().Strs("cells_updated", result.CellsUpdated).Msg("Update finished")
	return result
}

type Outcome string

const (
	Win  Outcome = "W"
	Loss Outcome = "L"
)

// Label is the outcome's name in user-facing messages.
func (o Outcome) Label() string {
	switch o {
	case Win:
		return "Vitória"
	case Loss:
		return "Derrota"
	default:
		return string(o)
	}
}

type OutcomeResult struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	Row         int    `json:"row"`
	Cell        string `json:"cell"`
	workbook.Summary
	History []workbook.HistoryRecord `json:"historico"`
}

// RecordOutcome writes the marker into the first empty row of the results
// window. A full window wraps failure.ErrWindowFull; a failed scan or write
// is returned as is, without writing anything else.
func (s *Service) RecordOutcome(ctx context.Context, outcome Outcome) (OutcomeResult, error) {
	id := newOperationID()
	logger := s.logger("record_outcome", id).With().Str("outcome", string(outcome)).Logger()
	result := OutcomeResult{OperationID: id}

	if outcome != Win && outcome != Loss {
		return result, fmt.Errorf("unknown outcome %q", outcome)
	}

	row, found, err := s.store.FindNextEmptyRow(ctx, ResultColumn, FirstResultRow, LastResultRow)
	if err != nil {
		logger.Error().Err(err).Msg("Could not scan results window")
		return result, fmt.Errorf("scan %s: %w", ResultWindow, err)
	}
	if !found {
		logger.Warn().Str("range", ResultWindow).Msg("Results window full")
		s.opts.Notifier.NotifyWindowFull(ctx, ResultWindow)
		return result, fmt.Errorf("%s: %w", ResultWindow, failure.ErrWindowFull)
	}

	cell := fmt.Sprintf("%s%d", ResultColumn, row)
	if err := s.store.UpdateCell(ctx, cell, string(outcome)); err != nil {
		logger.Error().Err(err).Str("cell", cell).Msg("Could not record outcome")
		return result, fmt.Errorf("record %s in %s: %w", outcome, cell, err)
	}
	logger.Info().Str("cell", cell).Msg("Outcome recorded")

	result.Status = StatusSuccess
	result.Message = fmt.Sprintf("%s registrada na célula %s", outcome.Label(), cell)
	result.Row = row
	result.Cell = cell
	result.Summary = s.store.GetSummaryData(ctx)
	result.History = s.history(ctx, &result.Summary, RecentHistoryRows, logger)
	return result, nil
}

type ResetResult struct {
	OperationID string   `json:"operation_id"`
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	CellsFailed []string `json:"cells_failed,omitempty"`
	workbook.Summary
	History []workbook.HistoryRecord `json:"historico"`
}

// Reset clears the results window and then blanks the input cells. A failed
// clear stops before any input cell is touched; failed blanks are collected
// into a *PartialWriteError after every cell has been tried.
func (s *Service) Reset(ctx context.Context) (ResetResult, error) {
	id := newOperationID()
	logger := s.logger("reset", id)
	result := ResetResult{OperationID: id}

	if err := s.store.ClearRange(ctx, ResultWindow); err != nil {
		logger.Error().Err(err).Msg("Could not clear results")
		return result, fmt.Errorf("clear %s: %w", ResultWindow, err)
	}

	var (
		updated, failed []string
		errs            []error
	)
	for _, cell := range InputCells {
		if err := s.store.UpdateCell(ctx, cell.Address, ""); err != nil {
			logger.Error().Err(err).Str("cell", cell.Address).Msg("Could not blank input cell")
			failed = append(failed, cell.Address)
			errs = append(errs, err)
			continue
		}
		updated = append(updated, cell.Address)
	}
	if len(failed) > 0 {
		result.CellsFailed = failed
		s.opts.Notifier.NotifyPartialWrite(ctx, "reset", updated, failed)
		return result, &PartialWriteError{Operation: "reset", Updated: updated, Failed: failed, Err: errors.Join(errs...)}
	}

	logger.Info().Msg("Journal reset")
	result.Status = StatusSuccess
	result.Message = "Dados zerados com sucesso"
	result.Summary = s.store.GetSummaryData(ctx)
	result.History = []workbook.HistoryRecord{}
	return result, nil
}
