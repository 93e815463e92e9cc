package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"rate limit", statusErr(429), KindRateLimit},
		{"bad request", statusErr(400), KindRejected},
		{"unauthorized", statusErr(401), KindRejected},
		{"overloaded", statusErr(529), KindConnectivity},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), KindConnectivity},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindConnectivity},
		{"other", errors.New("weird"), KindUnknown},
	}
	for _, tc := range cases {
		err := Classify("test", tc.err)
		if got := KindOf(err); got != tc.want {
			t.Fatalf("%s: got=%q want=%q (%v)", tc.name, got, tc.want, err)
		}
		if !errors.Is(err, tc.err) {
			t.Fatalf("%s: cause lost", tc.name)
		}
	}
}

func TestClassifyKeepsExistingAndCancel(t *testing.T) {
	orig := &Error{Kind: KindRejected, Backend: "a"}
	if got := Classify("b", fmt.Errorf("wrap: %w", orig)); KindOf(got) != KindRejected {
		t.Fatalf("existing kind replaced: %v", got)
	}
	if got := Classify("b", context.Canceled); !errors.Is(got, context.Canceled) || KindOf(got) != "" {
		t.Fatalf("cancel should pass through: %v", got)
	}
}
