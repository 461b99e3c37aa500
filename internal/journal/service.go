// Package journal implements the trading journal's operations on top of the
// workbook: recording inputs and results, resetting, and reading back the
// summary and history.
package journal

import (
	"context"
	"fmt"
	"strings"

	"journal_backend/internal/failure"
	"journal_backend/internal/workbook"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Results window: one W/L marker per row in column C.
const (
	ResultColumn      = workbook.OutcomeColumn
	FirstResultRow    = workbook.HistoryStartRow
	LastResultRow     = 102
	RecentHistoryRows = 10
)

// ResultWindow is the A1 range holding the recorded results.
var ResultWindow = fmt.Sprintf("%s%d:%s%d", ResultColumn, FirstResultRow, ResultColumn, LastResultRow)

const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Store is the workbook surface the journal needs.
type Store interface {
	BackendName() string
	UpdateCell(ctx context.Context, address string, value any) error
	ClearRange(ctx context.Context, address string) error
	FindNextEmptyRow(ctx context.Context, column string, startRow, endRow int) (int, bool, error)
	GetSummaryData(ctx context.Context) workbook.Summary
	GetHistoryData(ctx context.Context, maxRows int) ([]workbook.HistoryRecord, error)
	Locate(ctx context.Context) error
}

// Notifier receives operator alerts. Implementations must not block.
type Notifier interface {
	NotifyWindowFull(ctx context.Context, window string)
	NotifyPartialWrite(ctx context.Context, operation string, updated, failed []string)
}

type Options struct {
	Worksheet string
	// Identity is the backend's owner setting (user id or spreadsheet id)
	// and IdentitySetting names the variable it comes from.
	Identity        string
	IdentitySetting string
	Notifier        Notifier
}

type Service struct {
	store Store
	opts  Options
}

func NewService(store Store, opts Options) *Service {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.IdentitySetting == "" {
		opts.IdentitySetting = "USER_ID"
	}
	return &Service{store: store, opts: opts}
}

// Snapshot is the summary plus the reconstructed history.
type Snapshot struct {
	workbook.Summary
	History []workbook.HistoryRecord `json:"historico"`
}

// Snapshot reads the summary cells and up to maxRows history rows.
func (s *Service) Snapshot(ctx context.Context, maxRows int) Snapshot {
	logger := s.logger("snapshot", newOperationID())
	snapshot := Snapshot{Summary: s.store.GetSummaryData(ctx)}
	snapshot.History = s.history(ctx, &snapshot.Summary, maxRows, logger)
	return snapshot
}

func (s *Service) history(ctx context.Context, summary *workbook.Summary, maxRows int, logger zerolog.Logger) []workbook.HistoryRecord {
	history, err := s.store.GetHistoryData(ctx, maxRows)
	if err != nil {
		logger.Error().Err(err).Msg("History unavailable, returning empty list")
		summary.Indeterminate = append(summary.Indeterminate, workbook.HistoryIndeterminate)
		return []workbook.HistoryRecord{}
	}
	return history
}

// PartialWriteError reports a composite write where some cells failed.
type PartialWriteError struct {
	Operation string
	Updated   []string
	Failed    []string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: failed to write %s: %v", e.Operation, strings.Join(e.Failed, ", "), e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// StatusReport says whether the workbook is reachable.
type StatusReport struct {
	Online  bool
	Backend string
	Err     error
}

// Status checks the required settings, then resolves the workbook.
func (s *Service) Status(ctx context.Context) StatusReport {
	report := StatusReport{Backend: s.store.BackendName()}
	switch {
	case s.opts.Worksheet == "":
		report.Err = fmt.Errorf("EXCEL_WORKSHEET_NAME: %w", failure.ErrConfig)
	case s.opts.Identity == "":
		report.Err = fmt.Errorf("%s: %w", s.opts.IdentitySetting, failure.ErrConfig)
	default:
		report.Err = s.store.Locate(ctx)
	}
	report.Online = report.Err == nil
	if report.Err != nil {
		log.Error().Err(report.Err).Str("backend", report.Backend).Msg("Workbook unreachable")
	}
	return report
}

func (s *Service) logger(operation, id string) zerolog.Logger {
	return log.With().Str("operation", operation).Str("operation_id", id).Logger()
}

func newOperationID() string {
	return ulid.Make().String()
}

type nopNotifier struct{}

func (nopNotifier) NotifyWindowFull(context.Context, string)                     {}
func (nopNotifier) NotifyPartialWrite(context.Context, string, []string, []string) {}
