package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/quest-backend/internal/domain"
	"github.com/yungbote/quest-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/quest-backend/internal/pkg/errors"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

type UserRepo interface {
	// Create inserts u unless its email already exists. Either way the stored
	// row for that email is returned.
	Create(dbc dbctx.Context, u *types.User) (*types.User, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	GetByEmail(dbc dbctx.Context, email string) (*types.User, error)
	SetActive(dbc dbctx.Context, id uuid.UUID, active bool) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (ur *userRepo) Create(dbc dbctx.Context, u *types.User) (*types.User, error) {
	if u == nil {
		return nil, fmt.Errorf("nil user")
	}
	u.Email = NormalizeEmail(u.Email)
	if u.Email == "" {
		return nil, fmt.Errorf("missing email")
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if err := dbc.DB(ur.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(u).Error; err != nil {
		return nil, err
	}
	return ur.GetByEmail(dbc, u.Email)
}

func (ur *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	var out types.User
	if err := dbc.DB(ur.db).Where("id = ?", id).Take(&out).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (ur *userRepo) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperr.ErrNotFound
	}
	var out types.User
	if err := dbc.DB(ur.db).Where("email = ?", email).Take(&out).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (ur *userRepo) SetActive(dbc dbctx.Context, id uuid.UUID, active bool) error {
	return dbc.DB(ur.db).
		Model(&types.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		}).Error
}
