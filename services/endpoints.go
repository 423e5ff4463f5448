package services

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/lborres/bantay/core"
)

// BaseEndpoints returns the operations a class can call, with paths relative
// to the class prefix.
//
// Community sessions get the full set. System sessions only log in,
// register and validate; they have no backend logout and no profile routes.
func BaseEndpoints(class core.IdentityClass) []core.Endpoint {
	eps := []core.Endpoint{
		{
			Key:    core.EndpointLogin,
			Path:   "/login",
			Method: http.MethodPost,
			Metadata: core.EndpointMetadata{
				OperationID: "login",
				Description: "Exchange username and password for a bearer token",
			},
		},
		{
			Key:    core.EndpointRegister,
			Path:   "/register",
			Method: http.MethodPost,
			Metadata: core.EndpointMetadata{
				OperationID: "register",
				Description: "Create an account from a full profile payload",
			},
		},
		{
			Key:    core.EndpointValidate,
			Path:   "/validate",
			Method: http.MethodGet,
			Bearer: true,
			Metadata: core.EndpointMetadata{
				OperationID: "validate",
				Description: "Confirm the token and return the refreshed user record",
			},
		},
	}
	if class == core.ClassSystem {
		return eps
	}

	return append(eps,
		core.Endpoint{
			Key:    core.EndpointLogout,
			Path:   "/logout",
			Method: http.MethodPost,
			Bearer: true,
			Metadata: core.EndpointMetadata{
				OperationID: "logout",
				Description: "Invalidate the token server side",
			},
		},
		core.Endpoint{
			Key:    core.EndpointGetProfile,
			Path:   "/profile",
			Method: http.MethodGet,
			Bearer: true,
			Metadata: core.EndpointMetadata{
				OperationID: "getProfile",
				Description: "Read the signed-in user's profile",
			},
		},
		core.Endpoint{
			Key:    core.EndpointUpdateProfile,
			Path:   "/profile",
			Method: http.MethodPut,
			Bearer: true,
			Metadata: core.EndpointMetadata{
				OperationID: "updateProfile",
				Description: "Update the signed-in user's profile",
			},
		},
		core.Endpoint{
			Key:    core.EndpointChangePassword,
			Path:   "/change-password",
			Method: http.MethodPost,
			Bearer: true,
			Metadata: core.EndpointMetadata{
				OperationID: "changePassword",
				Description: "Change password given the current one",
			},
		},
		core.Endpoint{
			Key:    core.EndpointForgotPassword,
			Path:   "/forgot-password",
			Method: http.MethodPost,
			Metadata: core.EndpointMetadata{
				OperationID: "forgotPassword",
				Description: "Request a password reset token",
			},
		},
		core.Endpoint{
			Key:    core.EndpointResetPassword,
			Path:   "/reset-password",
			Method: http.MethodPost,
			Metadata: core.EndpointMetadata{
				OperationID: "resetPassword",
				Description: "Set a new password using a reset token",
			},
		},
	)
}

// EndpointRegistry holds one class's endpoints with the class prefix applied.
// Routes are checked for METHOD:PATH conflicts on registration.
type EndpointRegistry struct {
	class  core.IdentityClass
	prefix string
	byKey  map[core.EndpointKey]core.Endpoint
	routes map[string]core.EndpointKey
}

// EndpointsFor builds the registry for a session configuration.
func EndpointsFor(cfg core.SessionConfig) *EndpointRegistry {
	reg := &EndpointRegistry{
		class:  cfg.Class,
		prefix: cfg.EndpointPrefix,
		byKey:  make(map[core.EndpointKey]core.Endpoint),
		routes: make(map[string]core.EndpointKey),
	}

	// base endpoints never conflict with each other
	_ = reg.Register(BaseEndpoints(cfg.Class)...)

	return reg
}

// Register adds endpoints under the registry prefix. If any of them conflicts
// with a registered route, key, or another endpoint in the same batch, none
// are added.
func (r *EndpointRegistry) Register(endpoints ...core.Endpoint) error {
	seenRoutes := make(map[string]bool)
	seenKeys := make(map[core.EndpointKey]bool)

	for _, ep := range endpoints {
		route := routeKey(ep.Method, r.prefix+ep.Path)
		if _, exists := r.routes[route]; exists || seenRoutes[route] {
			return fmt.Errorf("endpoint conflict: %s %s already registered", ep.Method, r.prefix+ep.Path)
		}
		if _, exists := r.byKey[ep.Key]; exists || seenKeys[ep.Key] {
			return fmt.Errorf("endpoint conflict: %q already registered", ep.Key)
		}
		seenRoutes[route] = true
		seenKeys[ep.Key] = true
	}

	for _, ep := range endpoints {
		ep.Path = r.prefix + ep.Path
		r.byKey[ep.Key] = ep
		r.routes[routeKey(ep.Method, ep.Path)] = ep.Key
	}
	return nil
}

// Lookup returns the endpoint for key. The bool is false when the class does
// not offer the operation.
func (r *EndpointRegistry) Lookup(key core.EndpointKey) (core.Endpoint, bool) {
	ep, ok := r.byKey[key]
	return ep, ok
}

// Endpoints returns every registered endpoint ordered by path then method.
func (r *EndpointRegistry) Endpoints() []core.Endpoint {
	result := make([]core.Endpoint, 0, len(r.byKey))
	for _, ep := range r.byKey {
		result = append(result, ep)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Path != result[j].Path {
			return result[i].Path < result[j].Path
		}
		return result[i].Method < result[j].Method
	})
	return result
}

func (r *EndpointRegistry) Class() core.IdentityClass {
	return r.class
}

func routeKey(method, path string) string {
	return method + ":" + path
}
