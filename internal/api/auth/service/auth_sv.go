package authService

import (
	"time"

	"intellilot/internal/api/auth"
	"intellilot/internal/entity"
	contextPkg "intellilot/pkg/context"
	jwtPkg "intellilot/pkg/jwt"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const tokenLifetime = time.Hour * 1

func (s *authService) Register(ctx context.Context, req auth.RegisterRequest) (auth.RegisterResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return auth.RegisterResponse{}, err
	}

	hashed, err := s.bcryptUtils.HashPassword(req.Password)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to hash password")
		return auth.RegisterResponse{}, err
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return auth.RegisterResponse{}, err
	}

	user := entity.User{
		ID:               id,
		Username:         req.Username,
		Password:         hashed,
		OrganizationName: req.OrganizationName,
		Location:         req.Location,
		Size:             req.Size,
		Verification:     entity.VerificationPending,
		Status:           entity.UserStatusActive,
	}

	if err := repo.Users.CreateUser(ctx, user); err != nil {
		return auth.RegisterResponse{}, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"username":   req.Username,
	}).Info("User registered")

	return auth.RegisterResponse{ID: id, Username: req.Username}, nil
}

func (s *authService) Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return auth.LoginResponse{}, err
	}

	user, err := repo.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if err == auth.ErrUserNotFound {
			return auth.LoginResponse{}, auth.ErrInvalidUsernameOrPasswd
		}
		return auth.LoginResponse{}, err
	}

	if user.Status == entity.UserStatusBlocked {
		return auth.LoginResponse{}, auth.ErrUserBlocked
	}

	if err := s.bcryptUtils.ComparePassword(user.Password, req.Password); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"username":   req.Username,
		}).Warn("Password comparison failed")
		return auth.LoginResponse{}, auth.ErrInvalidUsernameOrPasswd
	}

	userData := map[string]interface{}{
		"id":           user.ID,
		"username":     user.Username,
		"organization": user.OrganizationName,
	}

	token, expiredAt, err := jwtPkg.Sign(userData, tokenLifetime)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to sign token")
		return auth.LoginResponse{}, err
	}

	if err := repo.Users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to record last login")
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"username":   user.Username,
	}).Info("Token created")

	return auth.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   expiredAt - time.Now().Unix(),
	}, nil
}
