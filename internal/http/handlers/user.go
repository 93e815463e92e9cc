package handlers

import (
	"github.com/gin-gonic/gin"

	types "github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/http/response"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	"github.com/yungbote/quest-backend/internal/platform/ctxutil"
	"github.com/yungbote/quest-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GET /api/me
func (uh *UserHandler) GetMe(c *gin.Context) {
	me, err := uh.userService.GetMe(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	rd := ctxutil.GetRequestData(c.Request.Context())
	locale := ""
	if rd != nil {
		locale = rd.Locale
	}
	response.RespondOK(c, gin.H{"me": me, "locale": locale})
}

// userInfo returns the caller resolved by the auth middleware, or nil.
func userInfo(c *gin.Context) *types.UserInfo {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		return nil
	}
	return &types.UserInfo{UserID: rd.UserID, Email: rd.Email, Locale: rd.Locale}
}
