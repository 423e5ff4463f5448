package core

// Phase is where the orchestrator is in the session lifecycle.
type Phase int

const (
	PhaseInitializing Phase = iota
	// PhaseTrustedPendingValidation: a persisted, locally unexpired session was
	// restored and is trusted while the background validate call is in flight
	// or after it failed for a transient reason.
	PhaseTrustedPendingValidation
	PhaseAuthenticated
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseTrustedPendingValidation:
		return "trusted-pending-validation"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// AuthState is the process-wide view of who is signed in.
type AuthState struct {
	User      *UserRecord
	IsLoading bool
	Error     string
	Phase     Phase
	Class     IdentityClass
}

// IsAuthenticated is true whenever a user is set, including while the
// restored session still awaits validation.
func (s AuthState) IsAuthenticated() bool {
	return s.User != nil
}
