package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"docqa/database"
)

type AuthHandler struct {
	db     *database.Store
	secret string
	expiry time.Duration
	logger zerolog.Logger
}

func NewAuthHandler(db *database.Store, secret string, expiry time.Duration, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{db: db, secret: secret, expiry: expiry, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        *database.User `json:"user"`
}

func (h *AuthHandler) handleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	userID, err := h.db.CreateUser(c.Context(), req.Email, string(hash))
	if err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			return ErrBadRequest("email already registered")
		}
		return err
	}

	user, err := h.db.UserByID(c.Context(), userID)
	if err != nil {
		return err
	}

	token, err := createAccessToken(h.secret, userID, h.expiry)
	if err != nil {
		return err
	}

	h.logger.Info().Int64("user_id", userID).Msg("registered user")

	return c.Status(fiber.StatusCreated).JSON(authResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}

func (h *AuthHandler) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.db.UserByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrUnauthorized("invalid email or password")
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return ErrUnauthorized("invalid email or password")
	}

	token, err := createAccessToken(h.secret, user.ID, h.expiry)
	if err != nil {
		return err
	}

	return c.JSON(authResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}

func (h *AuthHandler) handleMe(c *fiber.Ctx) error {
	user, err := h.db.UserByID(c.Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(user)
}
