package fiber

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

var errBadBody = errors.New("invalid request body")

func handleLogin(svc *services.AccountService) fiber.Handler {
	return func(c fiber.Ctx) error {
		var creds core.Credentials
		if err := c.Bind().Body(&creds); err != nil {
			return writeError(c, errBadBody)
		}

		result, err := svc.Login(c.Context(), creds)
		if err != nil {
			return writeError(c, err)
		}
		return writeData(c, http.StatusOK, "Signed in", result)
	}
}

func handleRegister(svc *services.AccountService) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.RegisterInput
		if err := c.Bind().Body(&input); err != nil {
			return writeError(c, errBadBody)
		}

		result, err := svc.Register(c.Context(), input)
		if err != nil {
			return writeError(c, err)
		}
		return writeData(c, http.StatusCreated, "Account created", result)
	}
}

// handleValidate answers with the user record and renews the token.
func handleValidate(svc *services.AccountService) fiber.Handler {
	return func(c fiber.Ctx) error {
		_, token := sessionFrom(c)
		user, err := svc.Validate(c.Context(), token)
		if err != nil {
			return writeError(c, err)
		}
		return writeData(c, http.StatusOK, "", user)
	}
}

func handleLogout(svc *services.AccountService) fiber.Handler {
	return func(c fiber.Ctx) error {
		_, token := sessionFrom(c)
		svc.Logout(token)
		return writeData(c, http.StatusOK, "Signed out", nil)
	}
}

func handleGetProfile(svc *services.AccountService) fiber.Handler {
	return func(c fiber.Ctx) error {
		session, _ := sessionFrom(c)
		user, err := svc.Profile(c.Context(), session.UserID)
		if err != nil {
			return writeError(c, err)
		}
		return writeData(c, http.StatusOK, "", user)
	}
}

func handleUpdateProfile(svc *services.AccountService) fiber.Handler {
	return func(c fiber.Ctx) error {
		var update core.ProfileUpdate
		if err := c.Bind().Body(&update); err != nil {
			return writeError(c, errBadBody)
		}

		session, _ := sessionFrom(c)
		user, err := svc.UpdateProfile(c.Context(), session.UserID, update)
		if err != nil {
			return writeError(c, err)
		}
		return writeData(c, http.StatusOK, "Profile updated", user)
	}
}

func handleChangePassword(svc *services.AccountService) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.ChangePasswordInput
		if err := c.Bind().Body(&input); err != nil {
			return writeError(c, errBadBody)
		}

		session, token := sessionFrom(c)
		if err := svc.ChangePassword(c.Context(), session.UserID, token, input); err != nil {
			return writeError(c, err)
		}
		return writeData(c, http.StatusOK, "Password changed", nil)
	}
}

// handleForgotPassword always answers the same way. The dev server has no
// mailer, so the reset token goes to the log.
func handleForgotPassword(svc *services.AccountService, logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		var body struct {
			Email string `json:"email"`
		}
		if err := c.Bind().Body(&body); err != nil || body.Email == "" {
			return writeError(c, errBadBody)
		}

		token, err := svc.ForgotPassword(c.Context(), body.Email)
		if err != nil {
			return writeError(c, err)
		}
		if token != "" {
			logger.Info("password reset token issued", "class", svc.Class(), "email", body.Email, "reset_token", token)
		}
		return writeData(c, http.StatusOK, "If the account exists, a reset link has been sent", nil)
	}
}

func handleResetPassword(svc *services.AccountService) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.ResetPasswordInput
		if err := c.Bind().Body(&input); err != nil {
			return writeError(c, errBadBody)
		}

		if err := svc.ResetPassword(c.Context(), input); err != nil {
			return writeError(c, err)
		}
		return writeData(c, http.StatusOK, "Password reset", nil)
	}
}

// ============================================
// RESPONSES
// ============================================

func writeData(c fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(core.Envelope[any]{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func writeError(c fiber.Ctx, err error) error {
	return c.Status(mapErrorToStatus(err)).JSON(core.ErrorResponse{
		Success: false,
		Message: errorMessage(err),
	})
}

// mapErrorToStatus maps service errors to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrInvalidToken),
		errors.Is(err, core.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, core.ErrUsernameRequired),
		errors.Is(err, core.ErrPasswordRequired),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest

	case errors.Is(err, core.ErrUserExists):
		return http.StatusConflict

	case errors.Is(err, core.ErrUserNotFound):
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the text clients show verbatim. Internal errors are not
// echoed back.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, core.ErrInvalidToken):
		return "Session is invalid or has expired"
	case errors.Is(err, core.ErrMissingToken):
		return "Missing authorization header"
	case errors.Is(err, core.ErrUserExists):
		return "Username is already taken"
	case errors.Is(err, services.ErrWeakPassword):
		return "Password must be at least 8 characters"
	case mapErrorToStatus(err) == http.StatusInternalServerError:
		return "Internal server error"
	}
	return err.Error()
}
