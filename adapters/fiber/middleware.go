package fiber

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

const (
	localSession = "session"
	localToken   = "token"
)

// RequireSession resolves the bearer token and stores the session and raw
// token in the context for downstream handlers.
func RequireSession(svc *services.AccountService) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return writeError(c, core.ErrMissingToken)
		}

		session, err := svc.Authenticate(token)
		if err != nil {
			return writeError(c, err)
		}

		c.Locals(localSession, session)
		c.Locals(localToken, token)
		return c.Next()
	}
}

// extractToken reads the Authorization bearer token. The scheme is matched
// case-insensitively.
func extractToken(c fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func sessionFrom(c fiber.Ctx) (*services.IssuedSession, string) {
	session, _ := c.Locals(localSession).(*services.IssuedSession)
	token, _ := c.Locals(localToken).(string)
	return session, token
}

// Session returns the session RequireSession stored, or nil.
func Session(c fiber.Ctx) *services.IssuedSession {
	session, _ := sessionFrom(c)
	return session
}
