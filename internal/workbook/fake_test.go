package workbook

import (
	"context"
	"fmt"
	"sync"

	"journal_backend/internal/failure"
)

type fakeCall struct {
	op      string
	address string
	values  [][]any
}

// fakeBackend serves ranges from memory. Addresses present in failing
// return a remote error.
type fakeBackend struct {
	mu      sync.Mutex
	ranges  map[string][][]any
	failing map[string]bool
	calls   []fakeCall

	// beforeWrite, when set, runs inside WriteRange before it records.
	beforeWrite func(address string)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		ranges:  map[string][][]any{},
		failing: map[string]bool{},
	}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) ReadRange(_ context.Context, address string) ([][]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{op: "read", address: address})
	if f.failing[address] {
		return nil, fmt.Errorf("read %s: %w", address, failure.ErrRemote)
	}
	return f.ranges[address], nil
}

func (f *fakeBackend) WriteRange(_ context.Context, address string, values [][]any) error {
	if f.beforeWrite != nil {
		f.beforeWrite(address)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{op: "write", address: address, values: values})
	if f.failing[address] {
		return fmt.Errorf("write %s: %w", address, failure.ErrRemote)
	}
	f.ranges[address] = values
	return nil
}

func (f *fakeBackend) ClearRange(_ context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{op: "clear", address: address})
	if f.failing[address] {
		return fmt.Errorf("clear %s: %w", address, failure.ErrRemote)
	}
	delete(f.ranges, address)
	return nil
}

func (f *fakeBackend) Locate(context.Context) error { return nil }

func (f *fakeBackend) set(address string, values ...any) {
	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v}
	}
	f.ranges[address] = rows
}
