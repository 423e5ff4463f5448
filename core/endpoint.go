package core

// EndpointKey names a backend operation independent of its path
type EndpointKey string

const (
	EndpointLogin          EndpointKey = "login"
	EndpointRegister       EndpointKey = "register"
	EndpointValidate       EndpointKey = "validate"
	EndpointLogout         EndpointKey = "logout"
	EndpointGetProfile     EndpointKey = "getProfile"
	EndpointUpdateProfile  EndpointKey = "updateProfile"
	EndpointChangePassword EndpointKey = "changePassword"
	EndpointForgotPassword EndpointKey = "forgotPassword"
	EndpointResetPassword  EndpointKey = "resetPassword"
)

// Endpoint is a framework-agnostic description of one backend route.
// The client uses it to build requests and the dev backend to mount handlers.
type Endpoint struct {
	Key      EndpointKey
	Path     string
	Method   string
	Bearer   bool // request carries the session token
	Metadata EndpointMetadata
}

type EndpointMetadata struct {
	OperationID string
	Description string
}

// ErrorResponse is the envelope returned on failure
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
