package bantay

import (
	"context"
	"log/slog"
	"time"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/config"
	"github.com/lborres/bantay/pkg/crypto"
	"github.com/lborres/bantay/pkg/log"
	"github.com/lborres/bantay/pkg/restclient"
	"github.com/lborres/bantay/services"
)

// interfaces
type (
	KVStore   = core.KVStore
	AuthAPI   = core.AuthAPI
	Directory = core.Directory

	PasswordHandler = crypto.PasswordHandler
)

// structs
type (
	IdentityClass  = core.IdentityClass
	SessionConfig  = core.SessionConfig
	WatchdogConfig = core.WatchdogConfig
	UserRecord     = core.UserRecord
	Credentials    = core.Credentials
	RegisterInput  = core.RegisterInput
	AuthState      = core.AuthState
	TokenStatus    = core.TokenStatus
)

const (
	ClassCommunity = core.ClassCommunity
	ClassSystem    = core.ClassSystem
)

var (
	ErrInvalidCredentials  = core.ErrInvalidCredentials
	ErrSessionExpired      = core.ErrSessionExpired
	ErrTransientValidation = core.ErrTransientValidation
	ErrNetwork             = core.ErrNetwork
)

var (
	ErrStorageRequired   = core.ErrStorageRequired
	ErrBackendRequired   = core.ErrBackendRequired
	ErrDirectoryRequired = core.ErrDirectoryRequired
)

// Config wires the client side. Zero session and watchdog configs take the
// defaults for their class.
type Config struct {
	Storage core.KVStore

	// Backend is used as is when set; otherwise a REST client for BaseURL is built.
	Backend core.AuthAPI
	BaseURL string
	Timeout time.Duration

	Community    core.SessionConfig
	System       core.SessionConfig
	Watchdog     core.WatchdogConfig
	LegacyMirror bool

	Logger *slog.Logger
	Clock  core.Clock
}

// Bantay is the assembled client: one credential store shared by the two
// session services, the orchestrator over both, and the expiry notifier.
type Bantay struct {
	Store        *services.CredentialStore
	Community    *services.SessionService
	System       *services.SessionService
	Orchestrator *services.Orchestrator
	Notifier     *services.ExpiryNotifier

	logger *slog.Logger
}

func New(config Config) (*Bantay, error) {
	if config.Storage == nil {
		return nil, ErrStorageRequired
	}

	logger := log.OrNop(config.Logger)

	api := config.Backend
	if api == nil {
		if config.BaseURL == "" {
			return nil, ErrBackendRequired
		}
		api = restclient.New(config.BaseURL, config.Timeout).WithLogger(logger)
	}

	// Set Defaults

	community := config.Community
	if community.Class == "" {
		community = core.CommunitySessionConfig()
	}
	system := config.System
	if system.Class == "" {
		system = core.SystemSessionConfig()
	}

	watchdog := config.Watchdog
	if watchdog.Interval <= 0 {
		watchdog.Interval = core.DefaultWatchdogInterval
	}
	if watchdog.NearExpiry <= 0 {
		watchdog.NearExpiry = core.DefaultNearExpiry
	}

	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	store := services.NewCredentialStore(config.Storage,
		services.WithLegacyMirror(config.LegacyMirror),
		services.WithStoreLogger(logger),
	)
	sessionOpts := []services.SessionOption{services.WithClock(clock), services.WithSessionLogger(logger)}
	b := &Bantay{
		Store:     store,
		Community: services.NewSessionService(community, api, store, sessionOpts...),
		System:    services.NewSessionService(system, api, store, sessionOpts...),
		logger:    logger,
	}
	b.Orchestrator = services.NewOrchestrator(b.Community, b.System, store, watchdog,
		services.WithOrchestratorLogger(logger),
	)
	b.Notifier = services.NewExpiryNotifier(b.Orchestrator, watchdog,
		services.WithNotifierClock(clock),
		services.WithNotifierLogger(logger),
	)
	return b, nil
}

// FromConfig maps a loaded config file onto Config for the given storage.
func FromConfig(c *config.Config, storage core.KVStore, logger *slog.Logger) Config {
	return Config{
		Storage:      storage,
		BaseURL:      c.Backend.BaseURL,
		Timeout:      c.Backend.Timeout.Duration,
		Community:    c.SessionConfig(core.ClassCommunity),
		System:       c.SessionConfig(core.ClassSystem),
		Watchdog:     c.WatchdogConfig(),
		LegacyMirror: c.Session.LegacyMirror,
		Logger:       logger,
	}
}

// Start restores any persisted session and arms the watchdog.
func (b *Bantay) Start(ctx context.Context) {
	b.Orchestrator.Start(ctx)
}

func (b *Bantay) Stop() {
	b.Orchestrator.Stop()
}

// Service returns the session service for class.
func (b *Bantay) Service(class core.IdentityClass) *services.SessionService {
	if class == core.ClassSystem {
		return b.System
	}
	return b.Community
}

// BackendConfig wires the dev backend's account services.
type BackendConfig struct {
	Directory core.Directory
	Community core.SessionConfig
	System    core.SessionConfig
	Passwords crypto.PasswordHandler
	Logger    *slog.Logger
}

// Backend holds one account service per identity class over a shared directory.
type Backend struct {
	Community *services.AccountService
	System    *services.AccountService
}

func NewBackend(config BackendConfig) (*Backend, error) {
	if config.Directory == nil {
		return nil, ErrDirectoryRequired
	}

	community := config.Community
	if community.Class == "" {
		community = core.CommunitySessionConfig()
	}
	system := config.System
	if system.Class == "" {
		system = core.SystemSessionConfig()
	}

	opts := []services.AccountOption{services.WithAccountLogger(config.Logger)}
	if config.Passwords != nil {
		opts = append(opts, services.WithPasswordHandler(config.Passwords))
	}

	return &Backend{
		Community: services.NewAccountService(community, config.Directory, opts...),
		System:    services.NewAccountService(system, config.Directory, opts...),
	}, nil
}

// Accounts lists the account services in mount order.
func (b *Backend) Accounts() []*services.AccountService {
	return []*services.AccountService{b.Community, b.System}
}
