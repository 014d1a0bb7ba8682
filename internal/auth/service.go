package auth

import (
	"context"
	"errors"
	"strings"

	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/models"
	"kitchen-backend/internal/repository"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

var errBadCredentials = fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")

type Service struct {
	users  repository.UserRepository
	tokens *Issuer
	logger *zap.Logger
}

func NewService(users repository.UserRepository, tokens *Issuer, logger *zap.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger.Named("auth")}
}

type NewUserInput struct {
	Name     string
	Email    string
	Password string
	Role     models.UserRole
}

// Bootstrap creates the first admin. It refuses once any admin exists.
func (s *Service) Bootstrap(ctx context.Context, in NewUserInput) (*models.User, error) {
	count, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, apperr.Upstream("counting admins", err)
	}
	if count > 0 {
		return nil, fiber.NewError(fiber.StatusForbidden, "an admin already exists")
	}
	in.Role = models.RoleAdmin
	return s.Register(ctx, in)
}

func (s *Service) Register(ctx context.Context, in NewUserInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" {
		return nil, apperr.Validation("name and email are required")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}
	if in.Role != models.RoleAdmin && in.Role != models.RoleStaff {
		return nil, apperr.Validation("role must be admin or staff")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Upstream("hashing password", err)
	}
	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("user with email %q already exists", in.Email)
		}
		return nil, apperr.Upstream("creating user", err)
	}
	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, errBadCredentials
		}
		return nil, nil, apperr.Upstream("loading user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, errBadCredentials
	}
	pair, err := s.tokens.Pair(user)
	if err != nil {
		return nil, nil, apperr.Upstream("signing tokens", err)
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.verify(ctx, refreshToken, TokenRefresh)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusUnauthorized, ErrInvalidToken.Error())
		}
		return nil, apperr.Upstream("loading user", err)
	}
	if err := s.revoke(ctx, claims); err != nil {
		return nil, err
	}
	pair, err := s.tokens.Pair(user)
	if err != nil {
		return nil, apperr.Upstream("signing tokens", err)
	}
	return pair, nil
}

// Logout revokes the access token and, when given, the refresh token.
func (s *Service) Logout(ctx context.Context, access *JWTCustomClaims, refreshToken string) error {
	if err := s.revoke(ctx, access); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.Parse(refreshToken, TokenRefresh)
	if err != nil {
		return nil
	}
	if claims.UserID != access.UserID {
		return fiber.NewError(fiber.StatusForbidden, "refresh token belongs to another user")
	}
	return s.revoke(ctx, claims)
}

func (s *Service) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user %d not found", userID)
		}
		return nil, apperr.Upstream("loading user", err)
	}
	return user, nil
}

// Authenticate verifies an access token and checks it was not logged out.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*JWTCustomClaims, error) {
	return s.verify(ctx, accessToken, TokenAccess)
}

func (s *Service) verify(ctx context.Context, tokenStr string, typ TokenType) (*JWTCustomClaims, error) {
	claims, err := s.tokens.Parse(tokenStr, typ)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	revoked, err := s.users.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperr.Upstream("checking token revocation", err)
	}
	if revoked {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "token has been revoked")
	}
	return claims, nil
}

func (s *Service) revoke(ctx context.Context, claims *JWTCustomClaims) error {
	t := &models.RevokedToken{JTI: claims.ID, UserID: claims.UserID}
	if claims.ExpiresAt != nil {
		t.ExpiresAt = claims.ExpiresAt.Time
	}
	if err := s.users.RevokeToken(ctx, t); err != nil {
		return apperr.Upstream("revoking token", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
