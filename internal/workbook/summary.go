package workbook

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Summary cells of the journal worksheet.
const (
	CurrentCapitalCell    = "N25"
	AccumulatedProfitCell = "N26"
	WinsCell              = "N29"
	LossesCell            = "N30"
	EntryValueCell        = "N16"
	OperationProfitCell   = "N17"
)

// History columns. Every column starts at HistoryStartRow and rows line up
// by offset.
const (
	HistoryStartRow      = 3
	SequenceColumn       = "B"
	OutcomeColumn        = "C"
	EntryValueColumn     = "D"
	ProfitColumn         = "E"
	DefaultHistoryRows   = 100
	HistoryIndeterminate = "historico"
)

// Summary is the journal's headline figures. A field listed in Indeterminate
// could not be read and is reported as 0.
type Summary struct {
	CurrentCapital    float64  `json:"capital_atual"`
	AccumulatedProfit float64  `json:"lucro_acumulado"`
	Wins              float64  `json:"acertos"`
	Losses            float64  `json:"erros"`
	EntryValue        float64  `json:"valor_entrada"`
	OperationProfit   float64  `json:"lucro_operacao"`
	Indeterminate     []string `json:"indeterminate,omitempty"`
}

type summaryField struct {
	key     string
	address string
	dst     func(*Summary) *float64
}

var summaryFields = []summaryField{
	{"capital_atual", CurrentCapitalCell, func(s *Summary) *float64 { return &s.CurrentCapital }},
	{"lucro_acumulado", AccumulatedProfitCell, func(s *Summary) *float64 { return &s.AccumulatedProfit }},
	{"acertos", WinsCell, func(s *Summary) *float64 { return &s.Wins }},
	{"erros", LossesCell, func(s *Summary) *float64 { return &s.Losses }},
	{"valor_entrada", EntryValueCell, func(s *Summary) *float64 { return &s.EntryValue }},
	{"lucro_operacao", OperationProfitCell, func(s *Summary) *float64 { return &s.OperationProfit }},
}

// HistoryRecord is one journal row. Values are passed through as the
// backend returned them.
type HistoryRecord struct {
	SequenceNumber any `json:"numero"`
	EntryValue     any `json:"valor"`
	Outcome        any `json:"resultado"`
	Profit         any `json:"lucro"`
}

// GetSummaryData reads the six summary cells one after another.
func (a *Accessor) GetSummaryData(ctx context.Context) Summary {
	var summary Summary
	for _, field := range summaryFields {
		cell := a.GetCellValue(ctx, field.address)
		*field.dst(&summary) = cell.Value
		if !cell.Determined() {
			summary.Indeterminate = append(summary.Indeterminate, field.key)
		}
	}
	return summary
}

// GetHistoryData reads up to maxRows journal rows. Rows are taken in order
// until the first one without a sequence number.
func (a *Accessor) GetHistoryData(ctx context.Context, maxRows int) ([]HistoryRecord, error) {
	if maxRows <= 0 {
		maxRows = DefaultHistoryRows
	}
	endRow := HistoryStartRow + maxRows - 1

	columns := []string{SequenceColumn, OutcomeColumn, EntryValueColumn, ProfitColumn}
	values := make([][][]any, len(columns))
	for i, column := range columns {
		rows, err := a.GetRangeValues(ctx, fmt.Sprintf("%s%d:%s%d", column, HistoryStartRow, column, endRow))
		if err != nil {
			return nil, fmt.Errorf("read history column %s: %w", column, err)
		}
		values[i] = rows
	}
	numbers, outcomes, entries, profits := values[0], values[1], values[2], values[3]

	// Backends may trim trailing blank rows per column, so the sequence
	// column drives the walk and shorter columns read as nil.
	history := make([]HistoryRecord, 0, len(numbers))
	for i := range numbers {
		number := valueAt(numbers, i)
		if isBlank(number) {
			break
		}
		history = append(history, HistoryRecord{
			SequenceNumber: number,
			EntryValue:     valueAt(entries, i),
			Outcome:        valueAt(outcomes, i),
			Profit:         valueAt(profits, i),
		})
	}
	log.Debug().Int("records", len(history)).Msg("History assembled")
	return history, nil
}

func valueAt(rows [][]any, i int) any {
	if i >= len(rows) || len(rows[i]) == 0 {
		return nil
	}
	return rows[i][0]
}
