package observability

import (
	"context"
	"errors"
	"testing"
)

func TestOtelHeadersParsing(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "api-key=abc, bad ,x=,tenant=quest")
	h := otelHeaders()
	if len(h) != 2 || h["api-key"] != "abc" || h["tenant"] != "quest" {
		t.Fatalf("unexpected headers: %v", h)
	}
}

func TestSampleRatioClamped(t *testing.T) {
	t.Setenv("OTEL_SAMPLER_RATIO", "7")
	if got := sampleRatio(); got != 1 {
		t.Fatalf("ratio: got=%v want=1", got)
	}
	t.Setenv("OTEL_SAMPLER_RATIO", "-1")
	if got := sampleRatio(); got != 0 {
		t.Fatalf("ratio: got=%v want=0", got)
	}
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, end := StartSpan(context.Background(), "test.span")
	if ctx == nil {
		t.Fatalf("nil ctx")
	}
	end(errors.New("boom"))
}
