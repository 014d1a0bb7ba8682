package auth

import (
	"time"

	"kitchen-backend/internal/models"
	"kitchen-backend/internal/request"

	"github.com/gofiber/fiber/v2"
)

type RegisterRequest struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Email    string          `json:"email" validate:"required,email,max=100"`
	Password string          `json:"password" validate:"required,min=8,max=72"`
	Role     models.UserRole `json:"role" validate:"omitempty,oneof=admin staff"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UserResponse struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Role      models.UserRole `json:"role"`
	CreatedAt time.Time       `json:"created_at"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

// POST /api/auth/bootstrap (public, only until the first admin exists)
func BootstrapAdminHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		user, err := svc.Bootstrap(c.UserContext(), NewUserInput{
			Name:     body.Name,
			Email:    body.Email,
			Password: body.Password,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

// POST /api/admin/users
func RegisterUserHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		role := body.Role
		if role == "" {
			role = models.RoleStaff
		}
		user, err := svc.Register(c.UserContext(), NewUserInput{
			Name:     body.Name,
			Email:    body.Email,
			Password: body.Password,
			Role:     role,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

// POST /api/auth/login
func LoginHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		user, pair, err := svc.Login(c.UserContext(), body.Email, body.Password)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires_at":    pair.ExpiresAt,
			"user":          toUserResponse(user),
		})
	}
}

// POST /api/auth/refresh
func RefreshHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RefreshRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		pair, err := svc.Refresh(c.UserContext(), body.RefreshToken)
		if err != nil {
			return err
		}
		return c.JSON(pair)
	}
}

// POST /api/auth/logout (authenticated)
func LogoutHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := claimsFrom(c)
		if err != nil {
			return err
		}
		var body LogoutRequest
		if len(c.Body()) > 0 {
			if err := request.Bind(c, &body); err != nil {
				return err
			}
		}
		if err := svc.Logout(c.UserContext(), claims, body.RefreshToken); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/me
func MeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := claimsFrom(c)
		if err != nil {
			return err
		}
		user, err := svc.Me(c.UserContext(), claims.UserID)
		if err != nil {
			return err
		}
		return c.JSON(toUserResponse(user))
	}
}
