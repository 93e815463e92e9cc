package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/yungbote/quest-backend/internal/platform/logger"
)

func TestUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	ix := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPut {
			t.Fatalf("method: want=%s got=%s", http.MethodPut, r.Method)
		}
		if r.URL.Path != "/collections/quest/points" {
			t.Fatalf("path: want=%q got=%q", "/collections/quest/points", r.URL.Path)
		}
		if r.URL.RawQuery != "wait=true" {
			t.Fatalf("query: want=%q got=%q", "wait=true", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})

	if err := ix.Upsert(context.Background(), "story:a", 4, []float32{1, 2, 3}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	points, ok := captured["points"].([]any)
	if !ok || len(points) != 1 {
		t.Fatalf("points: got=%v", captured["points"])
	}
	first := points[0].(map[string]any)
	if first["id"] != ix.pointID("quest:story:a", 4) {
		t.Fatalf("point id mismatch: got=%v", first["id"])
	}
	payload := first["payload"].(map[string]any)
	if payload[payloadNamespaceKey] != "quest:story:a" {
		t.Fatalf("payload namespace: got=%v", payload[payloadNamespaceKey])
	}
	if payload[payloadChapterKey] != float64(4) {
		t.Fatalf("payload chapter: got=%v", payload[payloadChapterKey])
	}
}

func TestPointIDStableAndScoped(t *testing.T) {
	ix := newTestIndex(t, nil)
	if ix.pointID("quest:a", 1) != ix.pointID("quest:a", 1) {
		t.Fatalf("point id should be deterministic")
	}
	if ix.pointID("quest:a", 1) == ix.pointID("quest:b", 1) {
		t.Fatalf("point ids must differ across namespaces")
	}
}

func TestQueryFiltersByNamespace(t *testing.T) {
	var captured map[string]any
	ix := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/quest/points/search" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, []map[string]any{
			{"id": "p1", "score": 0.4, "payload": map[string]any{payloadChapterKey: 1}},
			{"id": "p2", "score": 0.9, "payload": map[string]any{payloadChapterKey: 3}},
			{"id": "p3", "score": 0.8, "payload": map[string]any{}},
		}), nil
	})

	matches, err := ix.Query(context.Background(), "story:a", []float32{1, 2, 3}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 || matches[0].ChapterNumber != 3 || matches[1].ChapterNumber != 1 {
		t.Fatalf("matches: got=%+v", matches)
	}
	filter := captured["filter"].(map[string]any)
	must := filter["must"].([]any)
	cond := must[0].(map[string]any)
	if cond["key"] != payloadNamespaceKey {
		t.Fatalf("filter key: got=%v", cond["key"])
	}
	if cond["match"].(map[string]any)["value"] != "quest:story:a" {
		t.Fatalf("filter value: got=%v", cond["match"])
	}
	if captured["limit"] != float64(3) {
		t.Fatalf("limit: got=%v", captured["limit"])
	}
}

func TestDeleteNamespaceUsesFilter(t *testing.T) {
	var captured map[string]any
	ix := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/quest/points/delete" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})
	if err := ix.DeleteNamespace(context.Background(), "story:a"); err != nil {
		t.Fatalf("DeleteNamespace: %v", err)
	}
	if _, ok := captured["filter"]; !ok {
		t.Fatalf("expected filter delete, got=%v", captured)
	}
	if _, ok := captured["points"]; ok {
		t.Fatalf("namespace delete must not list point ids")
	}
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	ix := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	err := ix.Upsert(context.Background(), "a", 1, []float32{1, 2})
	var oe *OperationError
	if !errors.As(err, &oe) || oe.Code != OperationErrorValidation {
		t.Fatalf("expected validation error, got=%v", err)
	}
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	var calls []string
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet {
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Header:     make(http.Header),
				Body:       io.NopCloser(bytes.NewReader([]byte(`{"status":{"error":"Not found"}}`))),
			}, nil
		}
		return okResponse(t, true), nil
	})}
	_, err := newIndex(context.Background(), logger.Nop(), Config{
		URL:             "http://qdrant.local",
		Collection:      "quest",
		NamespacePrefix: "quest",
		VectorDim:       3,
		Timeout:         time.Second,
	}, client)
	if err != nil {
		t.Fatalf("newIndex: %v", err)
	}
	want := []string{"GET /collections/quest", "PUT /collections/quest", "PUT /collections/quest/index"}
	if fmt.Sprint(calls) != fmt.Sprint(want) {
		t.Fatalf("calls: want=%v got=%v", want, calls)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		cfg  Config
		code ConfigErrorCode
	}{
		{Config{}, ConfigErrorMissingURL},
		{Config{URL: "qdrant:6333"}, ConfigErrorInvalidURL},
		{Config{URL: "http://q:6333"}, ConfigErrorMissingCollection},
		{Config{URL: "http://q:6333", Collection: "c"}, ConfigErrorInvalidVectorDim},
	}
	for _, tc := range cases {
		var ce *ConfigError
		if err := ValidateConfig(tc.cfg); !errors.As(err, &ce) || ce.Code != tc.code {
			t.Fatalf("ValidateConfig(%+v): want=%s got=%v", tc.cfg, tc.code, err)
		}
	}
}

func newTestIndex(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *index {
	t.Helper()
	return &index{
		log:      logger.Nop(),
		cfg:      Config{Collection: "quest", VectorDim: 3},
		baseURL:  "http://qdrant.local",
		nsPrefix: "quest",
		http:     &http.Client{Transport: roundTripFunc(roundTrip)},
	}
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"result": result, "status": "ok", "time": 0.001})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
