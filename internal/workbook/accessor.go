package workbook

import (
	"context"
	"sync"
	"time"

	"journal_backend/internal/retry"
	"journal_backend/internal/telemetry"

	"github.com/rs/zerolog/log"
)

type Options struct {
	// Read bounds range and cell reads.
	Read retry.Config
	// Write bounds updates and clears.
	Write     retry.Config
	Collector telemetry.Collector
}

// Accessor performs cell and range operations against one workbook.
// UpdateCell and ClearRange are mutually exclusive across all callers; reads
// run freely.
type Accessor struct {
	backend Backend
	read    retry.Config
	write   retry.Config
	metrics telemetry.Collector

	writeMu sync.Mutex
}

func NewAccessor(backend Backend, opts Options) *Accessor {
	metrics := opts.Collector
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	return &Accessor{
		backend: backend,
		read:    opts.Read,
		write:   opts.Write,
		metrics: metrics,
	}
}

func (a *Accessor) BackendName() string {
	return a.backend.Name()
}

// UpdateCell writes one value into address. The write lock is held for the
// whole call, retries included.
func (a *Accessor) UpdateCell(ctx context.Context, address string, value any) error {
	release := a.lockWrites()
	defer release()

	_, err := call(ctx, a, "update_cell", a.write, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.backend.WriteRange(ctx, address, [][]any{{value}})
	})
	if err != nil {
		log.Error().Err(err).Str("address", address).Msg("Failed to update cell")
		return err
	}
	log.Debug().Str("address", address).Interface("value", value).Msg("Cell updated")
	return nil
}

// ClearRange empties address.
func (a *Accessor) ClearRange(ctx context.Context, address string) error {
	release := a.lockWrites()
	defer release()

	_, err := call(ctx, a, "clear_range", a.write, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.backend.ClearRange(ctx, address)
	})
	if err != nil {
		log.Error().Err(err).Str("range", address).Msg("Failed to clear range")
		return err
	}
	log.Info().Str("range", address).Msg("Range cleared")
	return nil
}

// GetRangeValues returns the value matrix of address. A failed read is an
// error, never an empty matrix.
func (a *Accessor) GetRangeValues(ctx context.Context, address string) ([][]any, error) {
	values, err := call(ctx, a, "read_range", a.read, func(ctx context.Context) ([][]any, error) {
		return a.backend.ReadRange(ctx, address)
	})
	if err != nil {
		log.Error().Err(err).Str("range", address).Msg("Failed to read range")
		return nil, err
	}
	return values, nil
}

// GetCellValue reads address and coerces it to a number. It never fails;
// the returned status carries what happened.
func (a *Accessor) GetCellValue(ctx context.Context, address string) CellValue {
	values, err := call(ctx, a, "read_cell", a.read, func(ctx context.Context) ([][]any, error) {
		return a.backend.ReadRange(ctx, address)
	})
	if err != nil {
		log.Error().Err(err).Str("address", address).Msg("Failed to read cell")
		a.metrics.IncCellCoercion(string(StatusUnavailable))
		return CellValue{Address: address, Status: StatusUnavailable, Err: err}
	}

	var raw any
	if len(values) > 0 && len(values[0]) > 0 {
		raw = values[0][0]
	}
	value, status := Coerce(raw)
	a.metrics.IncCellCoercion(string(status))
	if status == StatusUnparsable || status == StatusUnsupported {
		log.Warn().Str("address", address).Interface("raw", raw).Str("status", string(status)).
			Msg("Cell value is not numeric, using 0")
	}
	return CellValue{Address: address, Raw: raw, Value: value, Status: status}
}

// Locate checks that the workbook can be found.
func (a *Accessor) Locate(ctx context.Context) error {
	_, err := call(ctx, a, "locate", a.read, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.backend.Locate(ctx)
	})
	return err
}

func (a *Accessor) lockWrites() func() {
	start := time.Now()
	a.writeMu.Lock()
	a.metrics.ObserveWriteWait(time.Since(start))
	return a.writeMu.Unlock
}

func call[T any](ctx context.Context, a *Accessor, op string, cfg retry.Config, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := retry.WithRetry(ctx, cfg, fn)
	a.metrics.ObserveRemoteCall(op, err, time.Since(start))
	return result, err
}
