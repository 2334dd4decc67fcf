package auth

import (
	"intellilot/pkg/response"
	"net/http"
)

var (
	ErrUsernameAlreadyExists   = response.NewError(http.StatusConflict, "username already exists")
	ErrInvalidUsernameOrPasswd = response.NewError(http.StatusBadRequest, "username or password is wrong")
	ErrUserNotFound            = response.NewError(http.StatusNotFound, "user not found")
	ErrUserBlocked             = response.NewError(http.StatusForbidden, "user is blocked")
	ErrorInvalidToken          = response.NewError(http.StatusUnauthorized, "invalid token")
	ErrorTokenExpired          = response.NewError(http.StatusUnauthorized, "token expired or not found")
)
