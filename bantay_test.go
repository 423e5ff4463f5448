package bantay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lborres/bantay/adapters/memory"
	"github.com/lborres/bantay/pkg/config"
	"github.com/lborres/bantay/pkg/storage"
	"github.com/lborres/bantay/services"
)

func TestNew_RequiresStorage(t *testing.T) {
	_, err := New(Config{BaseURL: "http://localhost"})
	if !errors.Is(err, ErrStorageRequired) {
		t.Errorf("New() error = %v, want ErrStorageRequired", err)
	}
}

func TestNew_RequiresBackend(t *testing.T) {
	_, err := New(Config{Storage: storage.NewMemory()})
	if !errors.Is(err, ErrBackendRequired) {
		t.Errorf("New() error = %v, want ErrBackendRequired", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	b, err := New(Config{Storage: storage.NewMemory(), BaseURL: "http://localhost:8080/api"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := b.Community.Config().DurationHours; got != 24 {
		t.Errorf("community hours = %d, want 24", got)
	}
	if got := b.System.Config().DurationHours; got != 8 {
		t.Errorf("system hours = %d, want 8", got)
	}
	if b.Service(ClassSystem) != b.System || b.Service(ClassCommunity) != b.Community {
		t.Error("Service() returned the wrong instance")
	}
	if b.Notifier == nil || b.Orchestrator == nil {
		t.Error("orchestrator or notifier missing")
	}
}

func TestNew_LoginThroughOrchestrator(t *testing.T) {
	api := services.NewFakeAuthAPI()
	api.Reply("login", map[string]any{
		"token": "tok-1",
		"user":  map[string]any{"id": "u1", "username": "admin"},
	})

	b, err := New(Config{Storage: storage.NewMemory(), Backend: api})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	b.Start(ctx)
	defer b.Stop()

	if err := b.Orchestrator.Login(ctx, ClassSystem, Credentials{Username: "admin", Password: "pw"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	state := b.Orchestrator.State()
	if state.User == nil || state.User.UserType != ClassSystem {
		t.Fatalf("state = %+v", state)
	}
	if got := b.Notifier.TokenStatus().TimeUntilExpiry; got < 7*time.Hour+59*time.Minute {
		t.Errorf("TimeUntilExpiry = %v, want about 8h", got)
	}
}

func TestFromConfig(t *testing.T) {
	c := config.Default()
	c.Backend.BaseURL = "https://example.test/api"
	c.Session.SystemHours = 4
	c.Session.LegacyMirror = true

	got := FromConfig(c, storage.NewMemory(), nil)

	if got.BaseURL != "https://example.test/api" {
		t.Errorf("BaseURL = %q", got.BaseURL)
	}
	if got.System.DurationHours != 4 || got.System.Class != ClassSystem {
		t.Errorf("System = %+v", got.System)
	}
	if got.Community.DurationHours != 24 {
		t.Errorf("Community = %+v", got.Community)
	}
	if !got.LegacyMirror {
		t.Error("LegacyMirror not carried over")
	}
	if got.Watchdog.Interval != time.Minute {
		t.Errorf("Watchdog.Interval = %v", got.Watchdog.Interval)
	}
}

func TestNewBackend(t *testing.T) {
	if _, err := NewBackend(BackendConfig{}); !errors.Is(err, ErrDirectoryRequired) {
		t.Errorf("NewBackend() error = %v, want ErrDirectoryRequired", err)
	}

	backend, err := NewBackend(BackendConfig{Directory: memory.NewDirectory()})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	accounts := backend.Accounts()
	if len(accounts) != 2 || accounts[0].Class() != ClassCommunity || accounts[1].Class() != ClassSystem {
		t.Errorf("Accounts() = %v", accounts)
	}
}
