package authService

import (
	"intellilot/internal/api/auth"
	authRepository "intellilot/internal/api/auth/repository"
	"intellilot/pkg/bcrypt"
	"intellilot/pkg/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (auth.RegisterResponse, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error)
}

type authService struct {
	log         *logrus.Logger
	repo        authRepository.Repository
	bcryptUtils bcrypt.IBcrypt
	utils       utils.IUtils
}

func New(
	log *logrus.Logger,
	repo authRepository.Repository,
	bcryptUtils bcrypt.IBcrypt,
	u utils.IUtils,
) IAuthService {
	return &authService{
		log:         log,
		repo:        repo,
		bcryptUtils: bcryptUtils,
		utils:       u,
	}
}
