package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/log"
)

const DefaultCountdownTick = time.Second

// Warning is the near-expiry prompt as the UI should render it.
type Warning struct {
	Open      bool
	Remaining time.Duration
	Formatted string
}

// ExpiryNotifier turns the active session's expiry into a status line and a
// near-expiry warning. It only reads state, except for LogoutNow and the
// forced logout when the warning countdown runs out.
type ExpiryNotifier struct {
	orch       *Orchestrator
	nearExpiry time.Duration
	poll       time.Duration
	tick       time.Duration
	now        core.Clock
	logger     *slog.Logger

	// forceLogout runs when the countdown reaches zero
	forceLogout func()

	mu        sync.Mutex
	warning   Warning
	expiry    time.Time // expiry the open warning counts down to
	dismissed time.Time // expiry the user chose to continue past
	stopTick  chan struct{}

	changes *core.Broadcaster
}

type NotifierOption func(*ExpiryNotifier)

func WithNotifierClock(now core.Clock) NotifierOption {
	return func(n *ExpiryNotifier) { n.now = now }
}

// WithCountdownTick changes the warning countdown resolution.
func WithCountdownTick(d time.Duration) NotifierOption {
	return func(n *ExpiryNotifier) { n.tick = d }
}

func WithNotifierLogger(l *slog.Logger) NotifierOption {
	return func(n *ExpiryNotifier) { n.logger = log.OrNop(l) }
}

func NewExpiryNotifier(orch *Orchestrator, cfg core.WatchdogConfig, opts ...NotifierOption) *ExpiryNotifier {
	if cfg.NearExpiry <= 0 {
		cfg.NearExpiry = core.DefaultNearExpiry
	}
	if cfg.Interval <= 0 {
		cfg.Interval = core.DefaultWatchdogInterval
	}
	n := &ExpiryNotifier{
		orch:       orch,
		nearExpiry: cfg.NearExpiry,
		poll:       cfg.Interval,
		tick:       DefaultCountdownTick,
		now:        time.Now,
		logger:     log.Nop(),
		changes:    core.NewBroadcaster(),
	}
	n.forceLogout = orch.Expire
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// TokenStatus describes the active session. Without a signed-in user it
// reports an expired, empty status.
func (n *ExpiryNotifier) TokenStatus() core.TokenStatus {
	if !n.orch.IsAuthenticated() {
		return core.TokenStatus{IsExpired: true, FormattedTime: core.FormatRemaining(0)}
	}
	return n.statusFor(n.orch.ActiveService())
}

func (n *ExpiryNotifier) statusFor(svc *SessionService) core.TokenStatus {
	now := n.now()
	expiry := svc.TokenExpiry()
	remaining := core.TimeUntilExpiry(now, expiry)

	return core.TokenStatus{
		IsExpired:       core.IsExpired(now, expiry, svc.Config().ExpiryBuffer),
		TimeUntilExpiry: remaining,
		ExpiryDate:      expiry,
		FormattedTime:   core.FormatRemaining(remaining),
		IsNearExpiry:    remaining > 0 && remaining <= n.nearExpiry,
	}
}

// StatusLine is the persistent indicator text, empty when signed out.
func (n *ExpiryNotifier) StatusLine() string {
	if !n.orch.IsAuthenticated() {
		return ""
	}
	status := n.TokenStatus()
	if status.IsExpired {
		return "Session expired"
	}
	return "Session expires in " + status.FormattedTime
}

// Warning returns the current warning state.
func (n *ExpiryNotifier) Warning() Warning {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.warning
}

// Subscribe calls fn whenever the warning opens, closes or ticks.
func (n *ExpiryNotifier) Subscribe(fn func()) (unsubscribe func()) {
	return n.changes.Subscribe(fn)
}

// Run evaluates the session on every poll interval and on every orchestrator
// change until ctx is done.
func (n *ExpiryNotifier) Run(ctx context.Context) error {
	unsub := n.orch.Subscribe(n.Evaluate)
	defer unsub()
	defer n.closeWarning()

	n.Evaluate()

	ticker := time.NewTicker(n.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n.Evaluate()
		}
	}
}

// Evaluate opens or closes the warning to match the current status.
func (n *ExpiryNotifier) Evaluate() {
	if !n.orch.IsAuthenticated() {
		n.closeWarning()
		return
	}

	status := n.TokenStatus()
	if !status.IsNearExpiry || status.ExpiryDate == nil {
		n.closeWarning()
		return
	}

	n.mu.Lock()
	expiry := *status.ExpiryDate
	if n.warning.Open && n.expiry.Equal(expiry) {
		n.mu.Unlock()
		return
	}
	if n.dismissed.Equal(expiry) {
		n.mu.Unlock()
		return
	}
	n.openLocked(expiry, status.TimeUntilExpiry)
	n.mu.Unlock()

	n.logger.Info("session near expiry", "remaining", status.FormattedTime)
	n.changes.Publish()
}

// Continue dismisses the warning. It comes back only for a different expiry.
func (n *ExpiryNotifier) Continue() {
	n.mu.Lock()
	if !n.warning.Open {
		n.mu.Unlock()
		return
	}
	n.dismissed = n.expiry
	n.stopCountdownLocked()
	n.warning = Warning{}
	n.mu.Unlock()

	n.changes.Publish()
}

// LogoutNow closes the warning and signs out through the orchestrator.
func (n *ExpiryNotifier) LogoutNow(ctx context.Context) {
	n.closeWarning()
	n.orch.Logout(ctx)
}

func (n *ExpiryNotifier) openLocked(expiry time.Time, remaining time.Duration) {
	n.stopCountdownLocked()
	n.expiry = expiry
	n.warning = Warning{Open: true, Remaining: remaining, Formatted: core.FormatRemaining(remaining)}

	stop := make(chan struct{})
	n.stopTick = stop
	go n.countdown(stop, expiry)
}

// countdown refreshes the warning every tick and forces the logout when the
// remaining time reaches zero.
func (n *ExpiryNotifier) countdown(stop chan struct{}, expiry time.Time) {
	ticker := time.NewTicker(n.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			remaining := core.TimeUntilExpiry(n.now(), &expiry)

			n.mu.Lock()
			if n.stopTick != stop {
				n.mu.Unlock()
				return
			}
			if remaining > 0 {
				n.warning.Remaining = remaining
				n.warning.Formatted = core.FormatRemaining(remaining)
				n.mu.Unlock()
				n.changes.Publish()
				continue
			}
			n.stopCountdownLocked()
			n.warning = Warning{}
			n.mu.Unlock()

			n.logger.Info("warning countdown finished, signing out")
			n.forceLogout()
			n.changes.Publish()
			return
		}
	}
}

func (n *ExpiryNotifier) closeWarning() {
	n.mu.Lock()
	if !n.warning.Open {
		n.mu.Unlock()
		return
	}
	n.stopCountdownLocked()
	n.warning = Warning{}
	n.mu.Unlock()

	n.changes.Publish()
}

func (n *ExpiryNotifier) stopCountdownLocked() {
	if n.stopTick != nil {
		close(n.stopTick)
		n.stopTick = nil
	}
}
