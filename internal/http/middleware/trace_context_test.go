package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/quest-backend/internal/platform/ctxutil"
)

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got *ctxutil.TraceData
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/api/stories/:id", func(c *gin.Context) {
		got = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	storyID := uuid.New()
	cases := []struct {
		name      string
		path      string
		requestID string
		keepReqID bool
		wantStory string
	}{
		{"valid ids kept", "/api/stories/" + storyID.String(), "req-123", true, storyID.String()},
		{"oversized request id replaced", "/api/stories/" + storyID.String(), strings.Repeat("a", 200), false, storyID.String()},
		{"header injection replaced", "/api/stories/" + storyID.String(), "abc def<script>", false, storyID.String()},
		{"malformed story id ignored", "/api/stories/not-a-uuid", "", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.requestID != "" {
				req.Header.Set(headerRequestID, tc.requestID)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if got == nil {
				t.Fatalf("trace data not attached")
			}
			if tc.keepReqID && got.RequestID != tc.requestID {
				t.Fatalf("request id: got %q want %q", got.RequestID, tc.requestID)
			}
			if !tc.keepReqID {
				if got.RequestID == tc.requestID {
					t.Fatalf("request id %q should have been replaced", tc.requestID)
				}
				if _, err := uuid.Parse(got.RequestID); err != nil {
					t.Fatalf("generated request id %q is not a uuid", got.RequestID)
				}
			}
			if got.StoryID != tc.wantStory {
				t.Fatalf("story id: got %q want %q", got.StoryID, tc.wantStory)
			}
			if got.TraceID == "" || rec.Header().Get(headerTraceID) != got.TraceID {
				t.Fatalf("trace id header: got %q ctx %q", rec.Header().Get(headerTraceID), got.TraceID)
			}
			if rec.Header().Get(headerRequestID) != got.RequestID {
				t.Fatalf("request id header mismatch")
			}
		})
	}
}
