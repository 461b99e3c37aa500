// Package workbook reads and writes the trading journal's fixed cells and
// columns through a remote spreadsheet backend.
//
// Accessor is the single entry point: it serializes mutating calls behind
// one lock, bounds every remote call with a timeout, and turns raw cell
// contents into numbers without hiding whether the value was actually known.
package workbook

import (
	"context"
	"fmt"

	"journal_backend/internal/failure"
)

// Backend is a remote spreadsheet holding one fixed workbook and worksheet.
// Addresses are A1 notation for a cell ("N25") or a rectangle ("D3:D102").
type Backend interface {
	Name() string
	// ReadRange returns the row-major value matrix of address.
	ReadRange(ctx context.Context, address string) ([][]any, error)
	WriteRange(ctx context.Context, address string, values [][]any) error
	ClearRange(ctx context.Context, address string) error
	// Locate confirms the workbook can be found, resolving and caching its
	// identifier when the backend needs one.
	Locate(ctx context.Context) error
}

type unavailableBackend struct {
	name string
	err  error
}

// Unavailable returns a Backend that fails every call with err. It stands in
// for a backend whose construction failed so the process can keep serving
// status and error responses.
func Unavailable(name string, err error) Backend {
	if err == nil {
		err = failure.ErrConfig
	}
	return unavailableBackend{name: name, err: err}
}

func (b unavailableBackend) Name() string { return b.name }

func (b unavailableBackend) ReadRange(context.Context, string) ([][]any, error) {
	return nil, b.wrap()
}

func (b unavailableBackend) WriteRange(context.Context, string, [][]any) error {
	return b.wrap()
}

func (b unavailableBackend) ClearRange(context.Context, string) error {
	return b.wrap()
}

func (b unavailableBackend) Locate(context.Context) error {
	return b.wrap()
}

func (b unavailableBackend) wrap() error {
	return fmt.Errorf("%s backend unavailable: %w", b.name, b.err)
}
