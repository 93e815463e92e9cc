package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	userrepo "github.com/yungbote/quest-backend/internal/data/repos/user"
	types "github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/quest-backend/internal/pkg/errors"
	"github.com/yungbote/quest-backend/internal/platform/ctxutil"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type UserService interface {
	// Resolve finds the user for email, creating it on first sight.
	Resolve(dbc dbctx.Context, email, locale string) (*types.UserInfo, error)
	GetMe(dbc dbctx.Context) (*types.User, error)
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo userrepo.UserRepo
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo userrepo.UserRepo) UserService {
	return &userService{
		db:       db,
		log:      log.With("service", "UserService"),
		userRepo: userRepo,
	}
}

func (us *userService) Resolve(dbc dbctx.Context, email, locale string) (*types.UserInfo, error) {
	email = userrepo.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: missing or malformed email", apperr.ErrUnauthorized)
	}
	u, err := us.userRepo.GetByEmail(dbc, email)
	if errors.Is(err, apperr.ErrNotFound) {
		u, err = us.userRepo.Create(dbc, &types.User{Email: email})
		if err == nil {
			us.log.Info("User created on first sight", "user_id", u.ID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return &types.UserInfo{UserID: u.ID, Email: u.Email, Locale: locale}, nil
}

func (us *userService) GetMe(dbc dbctx.Context) (*types.User, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil {
		us.log.Warn("Request data not set in context")
		return nil, apperr.ErrUnauthorized
	}
	return us.userRepo.GetByID(dbc, rd.UserID)
}
