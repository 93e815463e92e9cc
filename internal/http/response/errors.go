package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/quest-backend/internal/llm"
	"github.com/yungbote/quest-backend/internal/narrator"
	apperr "github.com/yungbote/quest-backend/internal/pkg/errors"
	"github.com/yungbote/quest-backend/internal/platform/apierr"
)

const (
	CodeNotFound          = "not_found"
	CodeStoryOver         = "story_over"
	CodeStoryBusy         = "story_busy"
	CodeInvalidArgument   = "invalid_argument"
	CodeUnauthorized      = "unauthorized"
	CodeUpstreamDown      = "upstream_unavailable"
	CodeUpstreamRateLimit = "upstream_rate_limited"
	CodeUpstreamRejected  = "upstream_rejected"
	CodeContractViolation = "narrator_contract_violation"
	CodeInternal          = "internal_error"
)

// FromError maps a service error onto its HTTP status and code.
func FromError(err error) *apierr.Error {
	if ae, ok := apierr.As(err); ok {
		return ae
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return apierr.New(http.StatusNotFound, CodeNotFound, err)
	case errors.Is(err, apperr.ErrStoryOver):
		return apierr.New(http.StatusConflict, CodeStoryOver, err)
	case errors.Is(err, apperr.ErrStoryBusy):
		return apierr.New(http.StatusConflict, CodeStoryBusy, err)
	case errors.Is(err, apperr.ErrInvalidArgument):
		return apierr.New(http.StatusBadRequest, CodeInvalidArgument, err)
	case errors.Is(err, apperr.ErrUnauthorized):
		return apierr.New(http.StatusUnauthorized, CodeUnauthorized, err)
	case errors.Is(err, narrator.ErrContract):
		return apierr.New(http.StatusBadGateway, CodeContractViolation, err)
	}
	switch llm.KindOf(err) {
	case llm.KindConnectivity:
		return apierr.New(http.StatusBadGateway, CodeUpstreamDown, err)
	case llm.KindRateLimit:
		return apierr.New(http.StatusServiceUnavailable, CodeUpstreamRateLimit, err)
	case llm.KindRejected:
		return apierr.New(http.StatusBadGateway, CodeUpstreamRejected, err)
	}
	return apierr.New(http.StatusInternalServerError, CodeInternal, err)
}

// RespondAppError writes err through FromError. Internal errors hide their detail.
func RespondAppError(c *gin.Context, err error) {
	ae := FromError(err)
	if ae.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if ae.Code == CodeInternal {
			RespondError(c, ae.Status, ae.Code, errors.New("internal error"))
			return
		}
	}
	RespondError(c, ae.Status, ae.Code, ae)
}
