package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/quest-backend/internal/http/response"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/quest-backend/internal/pkg/errors"
	"github.com/yungbote/quest-backend/internal/services"
)

type StoryHandler struct {
	stories services.StoryService
}

func NewStoryHandler(stories services.StoryService) *StoryHandler {
	return &StoryHandler{stories: stories}
}

type actReq struct {
	Message string `json:"message"`
}

// POST /api/stories/init
func (h *StoryHandler) Init(c *gin.Context) {
	st, err := h.stories.Init(dbctx.Context{Ctx: c.Request.Context()}, userInfo(c))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondCreated(c, st)
}

// GET /api/stories
func (h *StoryHandler) List(c *gin.Context) {
	list, err := h.stories.List(dbctx.Context{Ctx: c.Request.Context()}, userInfo(c))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, list)
}

// GET /api/stories/:id
func (h *StoryHandler) Get(c *gin.Context) {
	id, ok := storyID(c)
	if !ok {
		return
	}
	st, err := h.stories.Get(dbctx.Context{Ctx: c.Request.Context()}, userInfo(c), id)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, st)
}

// POST /api/stories/:id/act
// body: { "message": "open the door" }
func (h *StoryHandler) Act(c *gin.Context) {
	id, ok := storyID(c)
	if !ok {
		return
	}
	var req actReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, response.CodeInvalidArgument, err)
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		response.RespondError(c, http.StatusBadRequest, response.CodeInvalidArgument, errors.New("message is required"))
		return
	}
	st, err := h.stories.Act(dbctx.Context{Ctx: c.Request.Context()}, userInfo(c), id, msg)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, st)
}

// DELETE /api/stories/:id
func (h *StoryHandler) Delete(c *gin.Context) {
	id, ok := storyID(c)
	if !ok {
		return
	}
	if err := h.stories.Delete(dbctx.Context{Ctx: c.Request.Context()}, userInfo(c), id); err != nil {
		response.RespondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// storyID parses :id. Malformed ids read as not-found, like foreign ones.
func storyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondAppError(c, apperr.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}
