package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/openmargin/margin/internal/domain"
	"github.com/openmargin/margin/internal/security"
)

func newAuthService(userRepo *MockUserRepository) *AuthService {
	jwtManager := security.NewJWTManager("test-secret-key-with-32-chars!!", 15*time.Minute, 7*24*time.Hour)
	return NewAuthService(userRepo, jwtManager)
}

func TestRegister(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	userRepo.On("EmailExists", mock.Anything, "new@example.com").Return(false, nil)
	userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	user, err := svc.Register(context.Background(), domain.UserCreate{
		Email:    "new@example.com",
		Password: "secure-password",
	})

	assert.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.NotEqual(t, "secure-password", user.PasswordHash)
	userRepo.AssertExpectations(t)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	userRepo.On("EmailExists", mock.Anything, "taken@example.com").Return(true, nil)

	_, err := svc.Register(context.Background(), domain.UserCreate{
		Email:    "taken@example.com",
		Password: "secure-password",
	})

	assert.ErrorIs(t, err, ErrEmailExists)
	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	hash, _ := bcrypt.GenerateFromPassword([]byte("secure-password"), bcrypt.DefaultCost)
	stored := &domain.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: string(hash),
	}
	userRepo.On("GetByEmail", mock.Anything, "user@example.com").Return(stored, nil)

	user, pair, err := svc.Login(context.Background(), domain.UserLogin{
		Email:    "user@example.com",
		Password: "secure-password",
	})

	assert.NoError(t, err)
	assert.Equal(t, stored.ID, user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestLoginWrongPassword(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	hash, _ := bcrypt.GenerateFromPassword([]byte("secure-password"), bcrypt.DefaultCost)
	stored := &domain.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: string(hash)}
	userRepo.On("GetByEmail", mock.Anything, "user@example.com").Return(stored, nil)

	_, _, err := svc.Login(context.Background(), domain.UserLogin{
		Email:    "user@example.com",
		Password: "wrong",
	})

	assert.ErrorIs(t, err, ErrInvalidLogin)
}

func TestLoginUnknownEmail(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	userRepo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)

	_, _, err := svc.Login(context.Background(), domain.UserLogin{
		Email:    "ghost@example.com",
		Password: "whatever",
	})

	assert.ErrorIs(t, err, ErrInvalidLogin)
}
