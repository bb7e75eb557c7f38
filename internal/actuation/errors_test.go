package actuation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
)

func TestCheckStatus(t *testing.T) {
	if err := CheckStatus("ncmp", http.StatusNoContent); err != nil {
		t.Fatalf("expected nil for 204, got %v", err)
	}
	if err := CheckStatus("ncmp", http.StatusNotFound); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var statusErr *StatusError
	if err := CheckStatus("ncmp", http.StatusBadRequest); !errors.As(err, &statusErr) || statusErr.Code != 400 {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &StatusError{Service: "x", Code: 503}, true},
		{"throttled", fmt.Errorf("wrap: %w", &StatusError{Service: "x", Code: 429}), true},
		{"client error", &StatusError{Service: "x", Code: 409}, false},
		{"not found", CheckStatus("x", 404), false},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("bad payload"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
