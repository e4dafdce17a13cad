package docstore

import (
	"context"
	"errors"
	"testing"
)

func TestRetryOnConflict(t *testing.T) {
	boom := errors.New("disk on fire")

	tests := []struct {
		name      string
		retries   int
		results   []error
		wantErr   error
		wantCalls int
		wantNotes int
	}{
		{name: "first try", retries: 3, results: []error{nil}, wantCalls: 1},
		{name: "recovers after conflicts", retries: 3, results: []error{ErrConflict, ErrConflict, nil}, wantCalls: 3, wantNotes: 2},
		{name: "gives up", retries: 2, results: []error{ErrConflict, ErrConflict, ErrConflict, nil}, wantErr: ErrConflict, wantCalls: 3, wantNotes: 2},
		{name: "other errors are not retried", retries: 3, results: []error{boom, nil}, wantErr: boom, wantCalls: 1},
		{name: "zero retries", retries: 0, results: []error{ErrConflict, nil}, wantErr: ErrConflict, wantCalls: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls, notes := 0, 0
			err := RetryOnConflict(context.Background(), tc.retries, func(error) { notes++ }, func() error {
				res := tc.results[calls]
				calls++
				return res
			})
			if !errors.Is(err, tc.wantErr) || (tc.wantErr == nil && err != nil) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if calls != tc.wantCalls {
				t.Fatalf("expected %d calls, got %d", tc.wantCalls, calls)
			}
			if notes != tc.wantNotes {
				t.Fatalf("expected %d conflict notifications, got %d", tc.wantNotes, notes)
			}
		})
	}
}

func TestRetryOnConflictStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := RetryOnConflict(ctx, 10, nil, func() error {
		calls++
		cancel()
		return ErrConflict
	})
	if err == nil {
		t.Fatalf("expected an error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}
