package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsRetryableHTTPStatus(t *testing.T) {
	for code, want := range map[int]bool{200: false, 400: false, 404: false, 408: true, 429: true, 500: true, 503: true} {
		if got := IsRetryableHTTPStatus(code); got != want {
			t.Fatalf("%d: got=%v want=%v", code, got, want)
		}
	}
}

func TestIsTransportError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"status", statusErr(503), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsTransportError(tc.err); got != tc.want {
			t.Fatalf("%s: got=%v want=%v", tc.name, got, tc.want)
		}
	}
}

func TestBackoffCapped(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := Backoff(attempt, 100*time.Millisecond, time.Second)
		if d > 1200*time.Millisecond {
			t.Fatalf("attempt %d: backoff %s exceeds cap", attempt, d)
		}
	}
}
