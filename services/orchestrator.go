package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/log"
)

// Orchestrator owns the process-wide auth state. It restores a persisted
// session on Start, routes login and logout to the right SessionService and
// logs the user out when the active session expires.
//
// The mutex is never held while calling into a SessionService or the
// CredentialStore, since the store broadcasts synchronously and the
// orchestrator listens to it.
type Orchestrator struct {
	community *SessionService
	system    *SessionService
	store     *CredentialStore
	logger    *slog.Logger

	mu       sync.Mutex
	state    core.AuthState
	gen      uint64 // bumped by every action that replaces the user
	armedFor watchKey
	started  bool
	stopped  bool

	syncMu sync.Mutex // serialises watchdog re-arms

	listeners *core.Broadcaster
	watchdog  *watchdog
	unsub     func()
	ctx       context.Context
	cancel    context.CancelFunc
	bg        sync.WaitGroup
}

// watchKey identifies what the watchdog was armed for. It is re-armed only
// when one of these changes.
type watchKey struct {
	class  core.IdentityClass
	userID string
	expiry time.Time
}

type OrchestratorOption func(*Orchestrator)

func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = log.OrNop(l) }
}

// NewOrchestrator wires the two session services. Both must share store.
func NewOrchestrator(community, system *SessionService, store *CredentialStore, cfg core.WatchdogConfig, opts ...OrchestratorOption) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = core.DefaultWatchdogInterval
	}
	o := &Orchestrator{
		community: community,
		system:    system,
		store:     store,
		logger:    log.Nop(),
		state:     core.AuthState{Phase: core.PhaseInitializing, IsLoading: true},
		listeners: core.NewBroadcaster(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.watchdog = newWatchdog(cfg.Interval, o.checkExpiry)
	return o
}

// ============================================
// LIFECYCLE
// ============================================

// Start restores the persisted session and begins watching the store.
//
// A locally valid session is trusted immediately and validated in the
// background; ctx bounds that background work. Start returns without waiting
// for the validate call.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.mu.Unlock()

	o.unsub = o.store.Subscribe(o.onStoreChange)
	o.reconcile()
}

// Stop cancels background validation, the watchdog and the store subscription.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started || o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	o.armedFor = watchKey{}
	o.mu.Unlock()

	o.cancel()
	if o.unsub != nil {
		o.unsub()
	}
	o.syncMu.Lock()
	o.watchdog.disarm()
	o.syncMu.Unlock()
	o.watchdog.wait()
	o.bg.Wait()
}

func (o *Orchestrator) reconcile() {
	preferred := o.restoreClass()
	expired := false

	for _, class := range []core.IdentityClass{preferred, preferred.Other()} {
		svc := o.service(class)
		rec, ok := o.store.Load(class)
		if !ok {
			continue
		}
		if svc.IsTokenExpired() {
			o.store.Clear(class)
			o.store.ClearActiveClass(class)
			expired = true
			continue
		}
		if class != preferred {
			o.store.SetActiveClass(class)
		}

		o.mu.Lock()
		o.state = core.AuthState{User: rec.User, Phase: core.PhaseTrustedPendingValidation, Class: class}
		gen := o.gen
		o.mu.Unlock()
		o.changed()
		o.logger.Info("restored session, validating in background", "class", class, "user_id", rec.User.ID)

		o.bg.Add(1)
		go func() {
			defer o.bg.Done()
			o.confirm(gen, class, svc)
		}()
		return
	}

	state := core.AuthState{Phase: core.PhaseUnauthenticated, Class: preferred}
	if expired {
		state.Error = core.MsgSessionExpired
	}
	o.setState(state)
}

// restoreClass picks which class to try first: the last sign-in if recorded,
// otherwise system when the system marker or a system user is present. The
// other class is tried when the first holds no usable session.
func (o *Orchestrator) restoreClass() core.IdentityClass {
	if class, ok := o.store.ActiveClass(); ok {
		return class
	}
	if o.store.HasSystemMarker() {
		return core.ClassSystem
	}
	if u := o.store.User(core.ClassCommunity); u != nil && u.UserType == core.ClassSystem {
		return core.ClassSystem
	}
	return core.ClassCommunity
}

// confirm validates a restored session. Only confirmed expiry demotes it.
// The outcome is dropped if a login, logout or SetUser happened meanwhile.
func (o *Orchestrator) confirm(gen uint64, class core.IdentityClass, svc *SessionService) {
	user, err := svc.ValidateToken(o.ctx)

	o.mu.Lock()
	if o.gen != gen || o.state.Class != class {
		o.mu.Unlock()
		return
	}
	switch {
	case err == nil:
		if o.state.User == nil {
			break
		}
		o.state.User = user
		o.state.Phase = core.PhaseAuthenticated
	case errors.Is(err, core.ErrSessionExpired):
		o.state = core.AuthState{Phase: core.PhaseUnauthenticated, Class: class, Error: core.MsgSessionExpired}
	case errors.Is(err, core.ErrNoSession):
		o.state = core.AuthState{Phase: core.PhaseUnauthenticated, Class: class}
	default:
		o.logger.Warn("background validation failed, keeping restored session", "class", class, "error", err)
	}
	o.mu.Unlock()

	o.changed()
}

// ============================================
// ACTIONS
// ============================================

// Login signs in with the given class. On failure the current user is left
// as is and the error message is exposed in State().Error.
func (o *Orchestrator) Login(ctx context.Context, class core.IdentityClass, creds core.Credentials) error {
	if !class.Valid() {
		return core.ErrUnknownIdentityClass
	}
	o.beginLoading()

	res, err := o.service(class).Login(ctx, creds)
	if err != nil {
		o.failLoading(err)
		return err
	}

	o.signedIn(class, res.User)
	return nil
}

// Register creates an account. If the backend returned a session the user is
// signed in as with Login.
func (o *Orchestrator) Register(ctx context.Context, class core.IdentityClass, input core.RegisterInput) error {
	if !class.Valid() {
		return core.ErrUnknownIdentityClass
	}
	o.beginLoading()

	res, err := o.service(class).Register(ctx, input)
	if err != nil {
		o.failLoading(err)
		return err
	}

	if res.Token != "" && res.User != nil {
		o.signedIn(class, res.User)
		return nil
	}

	o.mu.Lock()
	o.state.IsLoading = false
	o.mu.Unlock()
	o.changed()
	return nil
}

// Logout drops the user at once, then runs the active service's logout.
func (o *Orchestrator) Logout(ctx context.Context) {
	o.mu.Lock()
	class := o.state.Class
	o.state = core.AuthState{Phase: core.PhaseUnauthenticated, Class: class}
	o.gen++
	o.mu.Unlock()
	o.changed()

	o.service(class).Logout(ctx)
	o.store.ClearActiveClass(class)
}

// SetUser replaces the current user without a backend call, for sign-ins that
// happened elsewhere and already wrote the store. nil signs the user out
// locally without touching storage.
func (o *Orchestrator) SetUser(user *core.UserRecord) {
	if user == nil {
		o.mu.Lock()
		o.state = core.AuthState{Phase: core.PhaseUnauthenticated, Class: o.state.Class}
		o.gen++
		o.mu.Unlock()
		o.changed()
		return
	}

	class := user.UserType
	if !class.Valid() {
		class = core.ClassCommunity
	}
	o.signedIn(class, user.Clone())
}

// Expire forces the expired-session path for the active class: storage is
// cleared, the user dropped and MsgSessionExpired set.
func (o *Orchestrator) Expire() {
	o.mu.Lock()
	if o.state.User == nil {
		o.mu.Unlock()
		return
	}
	class := o.state.Class
	o.state = core.AuthState{Phase: core.PhaseUnauthenticated, Class: class, Error: core.MsgSessionExpired}
	o.gen++
	o.mu.Unlock()

	o.logger.Info("session expired, signing out", "class", class)
	o.store.Clear(class)
	o.store.ClearActiveClass(class)
	o.changed()
}

func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	if o.state.Error == "" {
		o.mu.Unlock()
		return
	}
	o.state.Error = ""
	o.mu.Unlock()
	o.changed()
}

// ============================================
// STATE
// ============================================

// State returns a copy of the current auth state.
func (o *Orchestrator) State() core.AuthState {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.state
	s.User = s.User.Clone()
	return s
}

func (o *Orchestrator) IsAuthenticated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.User != nil
}

// Subscribe calls fn after every state change. Call State() to read it.
func (o *Orchestrator) Subscribe(fn func()) (unsubscribe func()) {
	return o.listeners.Subscribe(fn)
}

// ActiveService returns the session service for the current class.
func (o *Orchestrator) ActiveService() *SessionService {
	o.mu.Lock()
	class := o.state.Class
	o.mu.Unlock()
	return o.service(class)
}

// Service returns the session service for class.
func (o *Orchestrator) Service(class core.IdentityClass) *SessionService {
	return o.service(class)
}

// ============================================
// INTERNALS
// ============================================

func (o *Orchestrator) service(class core.IdentityClass) *SessionService {
	if class == core.ClassSystem {
		return o.system
	}
	return o.community
}

func (o *Orchestrator) setState(s core.AuthState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.changed()
}

func (o *Orchestrator) beginLoading() {
	o.mu.Lock()
	o.state.IsLoading = true
	o.state.Error = ""
	o.mu.Unlock()
	o.changed()
}

func (o *Orchestrator) failLoading(err error) {
	o.mu.Lock()
	o.state.IsLoading = false
	o.state.Error = core.UserMessage(err)
	o.mu.Unlock()
	o.changed()
}

func (o *Orchestrator) signedIn(class core.IdentityClass, user *core.UserRecord) {
	o.mu.Lock()
	o.state = core.AuthState{User: user, Phase: core.PhaseAuthenticated, Class: class}
	o.gen++
	o.mu.Unlock()

	o.store.SetActiveClass(class)
	o.changed()
}

// onStoreChange re-reads the active class after any store write. A session
// cleared underneath us signs the user out; a changed record replaces the
// current user.
func (o *Orchestrator) onStoreChange() {
	o.mu.Lock()
	if o.state.User == nil {
		o.mu.Unlock()
		o.syncWatchdog()
		return
	}
	class := o.state.Class
	o.mu.Unlock()

	stored := o.store.User(class)

	o.mu.Lock()
	if o.state.User == nil || o.state.Class != class {
		o.mu.Unlock()
		return
	}
	if stored == nil {
		o.state = core.AuthState{Phase: core.PhaseUnauthenticated, Class: class}
	} else {
		o.state.User = stored
	}
	o.mu.Unlock()

	o.changed()
}

// checkExpiry is the watchdog body. It is idempotent.
func (o *Orchestrator) checkExpiry() {
	o.mu.Lock()
	if o.stopped || o.state.User == nil {
		o.mu.Unlock()
		return
	}
	class := o.state.Class
	o.mu.Unlock()

	if o.service(class).IsTokenExpired() {
		o.Expire()
		return
	}

	// still valid: re-arm so a consumed deadline timer is replaced
	o.mu.Lock()
	o.armedFor = watchKey{}
	o.mu.Unlock()
	o.syncWatchdog()
}

// changed notifies listeners and keeps the watchdog in step with the state.
func (o *Orchestrator) changed() {
	o.syncWatchdog()
	o.listeners.Publish()
}

// syncWatchdog arms the watchdog for the current user and expiry, or disarms
// it when nobody is signed in. Nothing happens if neither changed.
func (o *Orchestrator) syncWatchdog() {
	o.syncMu.Lock()
	defer o.syncMu.Unlock()

	o.mu.Lock()
	if !o.started || o.stopped {
		o.mu.Unlock()
		return
	}
	user, class := o.state.User, o.state.Class
	o.mu.Unlock()

	var key watchKey
	var deadline time.Duration
	if user != nil {
		svc := o.service(class)
		key = watchKey{class: class, userID: user.ID}
		if exp := svc.TokenExpiry(); exp != nil {
			key.expiry = *exp
		}
		deadline = svc.DeadlineIn()
	}

	o.mu.Lock()
	if key == o.armedFor {
		o.mu.Unlock()
		return
	}
	o.armedFor = key
	o.mu.Unlock()

	if user == nil {
		o.watchdog.disarm()
		return
	}
	o.logger.Debug("watchdog armed", "class", class, "deadline_in", deadline)
	o.watchdog.arm(deadline)
}
