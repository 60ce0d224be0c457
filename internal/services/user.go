package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/courseloom/courseloom-backend/internal/platform/ctxutil"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

// UserService exposes the caller's own profile. Accounts are provisioned
// upstream; this service never creates users or touches credentials.
type UserService interface {
	GetMe(ctx context.Context) (*user.User, error)
	UpdateMyName(ctx context.Context, firstName, lastName string) (*user.User, error)
}

type userService struct {
	db    *gorm.DB
	log   *logger.Logger
	users repos.UserRepo
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, users repos.UserRepo) UserService {
	return &userService{
		db:    db,
		log:   baseLog.With("service", "UserService"),
		users: users,
	}
}

func (s *userService) GetMe(ctx context.Context) (*user.User, error) {
	const op = "User.Service.GetMe"
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	u, err := s.users.GetByID(dbctx.Background(ctx), rd.UserID)
	if err != nil {
		return nil, mapServiceError(op, err)
	}
	if u == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "user not found", nil)
	}
	return u, nil
}

func (s *userService) UpdateMyName(ctx context.Context, firstName, lastName string) (*user.User, error) {
	const op = "User.Service.UpdateMyName"
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "first and last name are required", nil)
	}

	var out *user.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.users.UpdateName(dbc, rd.UserID, firstName, lastName); err != nil {
			return err
		}
		u, err := s.users.GetByID(dbc, rd.UserID)
		if err != nil {
			return err
		}
		if u == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "user not found", nil)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, mapServiceError(op, err)
	}
	return out, nil
}
