// Package fiber serves the session REST contract over gofiber/fiber for both
// identity classes. It backs `bantay devserver` and the end-to-end tests.
package fiber

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/log"
	"github.com/lborres/bantay/services"
)

type Adapter struct {
	router fiber.Router
	logger *slog.Logger
}

// New mounts onto router, which may be the app itself or a group such as
// app.Group("/api").
func New(router fiber.Router, logger *slog.Logger) *Adapter {
	return &Adapter{router: router, logger: log.OrNop(logger)}
}

// Mount registers every endpoint of each account service's class under the
// class prefix. Bearer endpoints go through requireSession first.
func (a *Adapter) Mount(accounts ...*services.AccountService) error {
	for _, svc := range accounts {
		registry := services.EndpointsFor(svc.Config())
		for _, ep := range registry.Endpoints() {
			handler, ok := a.handlerFor(ep.Key, svc)
			if !ok {
				return fmt.Errorf("no handler for %s endpoint %q", svc.Class(), ep.Key)
			}
			if ep.Bearer {
				a.router.Add([]string{ep.Method}, ep.Path, RequireSession(svc), handler)
			} else {
				a.router.Add([]string{ep.Method}, ep.Path, handler)
			}
			a.logger.Debug("mounted route", "class", svc.Class(), "method", ep.Method, "path", ep.Path)
		}
	}
	return nil
}

func (a *Adapter) handlerFor(key core.EndpointKey, svc *services.AccountService) (fiber.Handler, bool) {
	switch key {
	case core.EndpointLogin:
		return handleLogin(svc), true
	case core.EndpointRegister:
		return handleRegister(svc), true
	case core.EndpointValidate:
		return handleValidate(svc), true
	case core.EndpointLogout:
		return handleLogout(svc), true
	case core.EndpointGetProfile:
		return handleGetProfile(svc), true
	case core.EndpointUpdateProfile:
		return handleUpdateProfile(svc), true
	case core.EndpointChangePassword:
		return handleChangePassword(svc), true
	case core.EndpointForgotPassword:
		return handleForgotPassword(svc, a.logger), true
	case core.EndpointResetPassword:
		return handleResetPassword(svc), true
	}
	return nil, false
}
