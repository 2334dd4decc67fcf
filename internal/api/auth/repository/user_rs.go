package authRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"intellilot/internal/api/auth"
	"intellilot/internal/entity"
	contextPkg "intellilot/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type UserDB struct {
	ID               sql.NullString `db:"id"`
	Username         sql.NullString `db:"username"`
	Password         sql.NullString `db:"password"`
	OrganizationName sql.NullString `db:"organization_name"`
	Location         sql.NullString `db:"location"`
	Size             sql.NullInt64  `db:"size"`
	Verification     sql.NullString `db:"verification"`
	Status           sql.NullString `db:"status"`
	LastLoginAt      sql.NullTime   `db:"last_login_at"`
	CreatedAt        sql.NullTime   `db:"created_at"`
	UpdatedAt        sql.NullTime   `db:"updated_at"`
}

func (u UserDB) toEntity() entity.User {
	return entity.User{
		ID:               u.ID.String,
		Username:         u.Username.String,
		Password:         u.Password.String,
		OrganizationName: u.OrganizationName.String,
		Location:         u.Location.String,
		Size:             int(u.Size.Int64),
		Verification:     u.Verification.String,
		Status:           u.Status.String,
		LastLoginAt:      u.LastLoginAt.Time,
		CreatedAt:        u.CreatedAt.Time,
		UpdatedAt:        u.UpdatedAt.Time,
	}
}

func (r *userRepository) CreateUser(c context.Context, user entity.User) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":                user.ID,
		"username":          user.Username,
		"password":          user.Password,
		"organization_name": user.OrganizationName,
		"location":          user.Location,
		"size":              user.Size,
		"verification":      user.Verification,
		"status":            user.Status,
		"created_at":        time.Now(),
	}

	query, args, err := sqlx.Named(queryCreateUser, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateUser")
		return err
	}

	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return auth.ErrUsernameAlreadyExists
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to execute CreateUser query")
		return err
	}

	return nil
}

func (r *userRepository) GetByID(c context.Context, id string) (entity.User, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryGetByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for GetByID")
		return entity.User{}, err
	}

	query = r.q.Rebind(query)

	var user UserDB
	if err := sqlx.GetContext(c, r.q, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.User{}, auth.ErrUserNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to execute GetByID query")
		return entity.User{}, err
	}

	return user.toEntity(), nil
}

func (r *userRepository) GetByUsername(c context.Context, username string) (entity.User, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryGetByUsername, map[string]interface{}{"username": username})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for GetByUsername")
		return entity.User{}, err
	}

	query = r.q.Rebind(query)

	var user UserDB
	if err := sqlx.GetContext(c, r.q, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.User{}, auth.ErrUserNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to execute GetByUsername query")
		return entity.User{}, err
	}

	return user.toEntity(), nil
}

func (r *userRepository) UpdateLastLogin(c context.Context, id string) error {
	requestID := contextPkg.GetRequestID(c)
	now := time.Now()

	query, args, err := sqlx.Named(queryUpdateLastLogin, map[string]interface{}{
		"id":            id,
		"last_login_at": now,
		"updated_at":    now,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for UpdateLastLogin")
		return err
	}

	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to execute UpdateLastLogin query")
		return err
	}

	return nil
}
