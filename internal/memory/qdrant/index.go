// Package qdrant indexes chapter memories in a Qdrant collection over its REST API.
// Namespaces share one collection and are separated by a payload filter.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/quest-backend/internal/memory"
	"github.com/yungbote/quest-backend/internal/platform/ctxutil"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

const (
	payloadNamespaceKey = "_q_namespace"
	payloadChapterKey   = "chapter_number"
	maxErrorBodyBytes   = 1024
)

var pointIDNamespaceUUID = uuid.MustParse("6f0f8a7e-3c55-4d43-9b7e-2a1c9d35f0b4")

type index struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	nsPrefix string
	http     *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type searchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// New verifies the server, creating the collection on first use.
func New(ctx context.Context, log *logger.Logger, cfg Config) (memory.VectorIndex, error) {
	return newIndex(ctx, log, cfg, &http.Client{Timeout: cfg.Timeout})
}

func newIndex(ctx context.Context, log *logger.Logger, cfg Config, client *http.Client) (*index, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	ix := &index{
		log:      log.With("service", "QdrantMemoryIndex"),
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		nsPrefix: cfg.NamespacePrefix,
		http:     client,
	}
	if err := ix.ensureCollection(ctx); err != nil {
		return nil, err
	}
	log.Info(
		"Qdrant memory index selected",
		"provider", "qdrant",
		"url", ix.baseURL,
		"collection", cfg.Collection,
		"namespace_prefix", ix.nsPrefix,
		"vector_dim", cfg.VectorDim,
	)
	return ix, nil
}

func (ix *index) Upsert(ctx context.Context, namespace string, chapterNumber int, vec []float32) error {
	const op = "upsert"
	if len(vec) == 0 {
		return opErr(op, OperationErrorValidation, "empty vector", nil)
	}
	if len(vec) != ix.cfg.VectorDim {
		return opErr(op, OperationErrorValidation,
			fmt.Sprintf("dimension mismatch: expected=%d got=%d", ix.cfg.VectorDim, len(vec)), nil)
	}
	qualifiedNS := ix.qualifyNamespace(namespace)
	req := map[string]any{
		"points": []map[string]any{{
			"id":     ix.pointID(qualifiedNS, chapterNumber),
			"vector": vec,
			"payload": map[string]any{
				payloadNamespaceKey: qualifiedNS,
				payloadChapterKey:   chapterNumber,
			},
		}},
	}
	return ix.doJSON(ctx, op, http.MethodPut, ix.collectionPath("/points?wait=true"), req, nil)
}

func (ix *index) Query(ctx context.Context, namespace string, vec []float32, topK int) ([]memory.Match, error) {
	const op = "query"
	if len(vec) != ix.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query dimension mismatch: expected=%d got=%d", ix.cfg.VectorDim, len(vec)), nil)
	}
	if topK <= 0 {
		topK = 3
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
		"filter":       namespaceFilter(ix.qualifyNamespace(namespace)),
	}
	var raw []searchResultItem
	if err := ix.doJSON(ctx, op, http.MethodPost, ix.collectionPath("/points/search"), req, &raw); err != nil {
		return nil, err
	}
	out := make([]memory.Match, 0, len(raw))
	for _, item := range raw {
		n, ok := chapterNumberOf(item.Payload)
		if !ok {
			continue
		}
		out = append(out, memory.Match{ChapterNumber: n, Score: item.Score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (ix *index) DeleteNamespace(ctx context.Context, namespace string) error {
	req := map[string]any{"filter": namespaceFilter(ix.qualifyNamespace(namespace))}
	return ix.doJSON(ctx, "delete_namespace", http.MethodPost, ix.collectionPath("/points/delete?wait=true"), req, nil)
}

func (ix *index) ensureCollection(ctx context.Context) error {
	const op = "bootstrap"
	var result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := ix.doJSON(ctx, op, http.MethodGet, ix.collectionPath(""), nil, &result)
	var oe *OperationError
	if errors.As(err, &oe) && oe.StatusCode == http.StatusNotFound {
		create := map[string]any{
			"vectors": map[string]any{"size": ix.cfg.VectorDim, "distance": "Cosine"},
		}
		if err := ix.doJSON(ctx, op, http.MethodPut, ix.collectionPath(""), create, nil); err != nil {
			return err
		}
		fieldIndex := map[string]any{"field_name": payloadNamespaceKey, "field_schema": "keyword"}
		return ix.doJSON(ctx, op, http.MethodPut, ix.collectionPath("/index?wait=true"), fieldIndex, nil)
	}
	if err != nil {
		return err
	}
	if size := result.Config.Params.Vectors.Size; size != 0 && size != ix.cfg.VectorDim {
		return opErr(op, OperationErrorValidation, fmt.Sprintf(
			"collection %q vector size mismatch: expected=%d actual=%d", ix.cfg.Collection, ix.cfg.VectorDim, size), nil)
	}
	return nil
}

func (ix *index) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, ix.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ix.cfg.APIKey != "" {
		req.Header.Set("api-key", ix.cfg.APIKey)
	}

	resp, err := ix.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{Code: OperationErrorRequestFailed, Operation: op, StatusCode: resp.StatusCode, Message: statusErr}
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.EqualFold(s, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", s)
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Error) != "" {
		return strings.TrimSpace(obj.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func namespaceFilter(qualifiedNS string) map[string]any {
	return map[string]any{
		"must": []any{
			map[string]any{"key": payloadNamespaceKey, "match": map[string]any{"value": qualifiedNS}},
		},
	}
}

func chapterNumberOf(payload map[string]any) (int, bool) {
	switch v := payload[payloadChapterKey].(type) {
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

func (ix *index) qualifyNamespace(namespace string) string {
	return ix.nsPrefix + ":" + strings.TrimSpace(namespace)
}

func (ix *index) pointID(qualifiedNS string, chapterNumber int) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(fmt.Sprintf("%s|%d", qualifiedNS, chapterNumber))).String()
}

func (ix *index) collectionPath(suffix string) string {
	return "/collections/" + ix.cfg.Collection + suffix
}
