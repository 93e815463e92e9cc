package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/http/response"
	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/quest-backend/internal/pkg/errors"
	"github.com/yungbote/quest-backend/internal/platform/ctxutil"
	"github.com/yungbote/quest-backend/internal/services"
)

type fakeStories struct {
	actErr   error
	lastUser *types.UserInfo
	lastMsg  string
	deleted  uuid.UUID
}

func (f *fakeStories) Init(dbc dbctx.Context, user *types.UserInfo) (*services.FullStory, error) {
	f.lastUser = user
	return &services.FullStory{ID: uuid.New(), UserID: user.UserID, Status: types.StoryStatusActive, CurrentChoices: []string{"look"}}, nil
}

func (f *fakeStories) Act(dbc dbctx.Context, user *types.UserInfo, id uuid.UUID, decision string) (*services.FullStory, error) {
	f.lastMsg = decision
	if f.actErr != nil {
		return nil, f.actErr
	}
	return &services.FullStory{ID: id, UserID: user.UserID, Status: types.StoryStatusActive}, nil
}

func (f *fakeStories) Get(dbc dbctx.Context, user *types.UserInfo, id uuid.UUID) (*services.FullStory, error) {
	return nil, apperr.ErrNotFound
}

func (f *fakeStories) Delete(dbc dbctx.Context, user *types.UserInfo, id uuid.UUID) error {
	f.deleted = id
	return nil
}

func (f *fakeStories) List(dbc dbctx.Context, user *types.UserInfo) ([]*services.StorySummary, error) {
	return []*services.StorySummary{}, nil
}

func newStoryRouter(f *fakeStories, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewStoryHandler(f)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: userID, Email: "p@example.com", Locale: "en"})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.POST("/api/stories/init", h.Init)
	r.GET("/api/stories", h.List)
	r.GET("/api/stories/:id", h.Get)
	r.POST("/api/stories/:id/act", h.Act)
	r.DELETE("/api/stories/:id", h.Delete)
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequestWithContext(context.Background(), method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env response.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope %q: %v", rec.Body.String(), err)
	}
	return env.Error.Code
}

func TestStoryHandlerInit(t *testing.T) {
	userID := uuid.New()
	f := &fakeStories{}
	rec := serve(newStoryRouter(f, userID), http.MethodPost, "/api/stories/init", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("Init: got status %d", rec.Code)
	}
	if f.lastUser == nil || f.lastUser.UserID != userID || f.lastUser.Locale != "en" {
		t.Fatalf("Init: unexpected user %+v", f.lastUser)
	}
	var st services.FullStory
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Status != types.StoryStatusActive || len(st.CurrentChoices) != 1 {
		t.Fatalf("Init: unexpected body %s", rec.Body.String())
	}
}

func TestStoryHandlerAct(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{name: "ok", body: `{"message":"  open the door "}`, status: http.StatusOK},
		{name: "empty", body: `{"message":"   "}`, status: http.StatusBadRequest, code: "invalid_argument"},
		{name: "bad json", body: `{`, status: http.StatusBadRequest, code: "invalid_argument"},
		{name: "over", body: `{"message":"x"}`, err: apperr.ErrStoryOver, status: http.StatusConflict, code: "story_over"},
		{name: "busy", body: `{"message":"x"}`, err: apperr.ErrStoryBusy, status: http.StatusConflict, code: "story_busy"},
		{name: "not found", body: `{"message":"x"}`, err: apperr.ErrNotFound, status: http.StatusNotFound, code: "not_found"},
		{
			name:   "rate limited",
			body:   `{"message":"x"}`,
			err:    &llm.Error{Kind: llm.KindRateLimit, Backend: "test"},
			status: http.StatusServiceUnavailable,
			code:   "upstream_rate_limited",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeStories{actErr: tc.err}
			rec := serve(newStoryRouter(f, uuid.New()), http.MethodPost, "/api/stories/"+id.String()+"/act", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("got status %d body %s", rec.Code, rec.Body.String())
			}
			if tc.code != "" && errorCode(t, rec) != tc.code {
				t.Fatalf("unexpected code in %s", rec.Body.String())
			}
			if tc.name == "ok" && f.lastMsg != "open the door" {
				t.Fatalf("decision not trimmed: %q", f.lastMsg)
			}
		})
	}
}

func TestStoryHandlerGetDeleteList(t *testing.T) {
	f := &fakeStories{}
	r := newStoryRouter(f, uuid.New())

	rec := serve(r, http.MethodGet, "/api/stories/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Fatalf("Get: got status %d body %s", rec.Code, rec.Body.String())
	}

	rec = serve(r, http.MethodGet, "/api/stories/not-a-uuid", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Get malformed id: got status %d", rec.Code)
	}

	id := uuid.New()
	rec = serve(r, http.MethodDelete, "/api/stories/"+id.String(), "")
	if rec.Code != http.StatusNoContent || f.deleted != id {
		t.Fatalf("Delete: got status %d deleted %s", rec.Code, f.deleted)
	}

	rec = serve(r, http.MethodGet, "/api/stories", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("List: got status %d body %s", rec.Code, rec.Body.String())
	}
}
