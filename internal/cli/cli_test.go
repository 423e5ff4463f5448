package cli

import (
	"bytes"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/bantay"
	fiberadapter "github.com/lborres/bantay/adapters/fiber"
	"github.com/lborres/bantay/adapters/memory"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/config"
	"github.com/lborres/bantay/pkg/crypto"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	for _, driver := range []string{"memory", "file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			kv, closeKV, err := openStore(config.StorageConfig{Driver: driver, Path: filepath.Join(dir, driver+".db")})
			require.NoError(t, err)
			defer closeKV()

			require.NoError(t, kv.Set("authToken", "tok"))
			v, ok, err := kv.Get("authToken")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "tok", v)
		})
	}

	_, _, err := openStore(config.StorageConfig{Driver: "redis"})
	assert.ErrorIs(t, err, config.ErrUnknownDriver)
}

func TestPrompter_ReadsLinesFromNonTerminal(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("juan\r\nsecret"))
	cmd.SetErr(&bytes.Buffer{})
	p := newPrompter(cmd)

	user, err := p.valueOr("", "Username: ")
	require.NoError(t, err)
	assert.Equal(t, "juan", user)

	pass, err := p.password("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "secret", pass, "last line without newline")

	preset, err := p.valueOr("maria", "Username: ")
	require.NoError(t, err)
	assert.Equal(t, "maria", preset)
}

func startDevBackend(t *testing.T) string {
	t.Helper()

	backend, err := bantay.NewBackend(bantay.BackendConfig{
		Directory: memory.NewDirectory(),
		Passwords: &crypto.Argon2{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
	})
	require.NoError(t, err)

	app := fiber.New()
	require.NoError(t, fiberadapter.New(app.Group("/api"), nil).Mount(backend.Accounts()...))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true}) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	addr := ln.Addr().String()
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
		}
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	return "http://" + addr + "/api"
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func readStatus(t *testing.T) map[core.IdentityClass]classStatus {
	t.Helper()
	out, err := run(t, "", "status", "--json")
	require.NoError(t, err)

	var list []classStatus
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	byClass := make(map[core.IdentityClass]classStatus)
	for _, st := range list {
		byClass[st.Class] = st
	}
	return byClass
}

func TestCommands_RegisterLoginStatusLogout(t *testing.T) {
	t.Setenv("BANTAY_HOME", t.TempDir())
	t.Setenv("BANTAY_BACKEND_URL", startDevBackend(t))
	t.Setenv("BANTAY_STORAGE_DRIVER", "file")
	t.Setenv("BANTAY_LOG_LEVEL", "error")

	out, err := run(t, "correct-horse\n", "register", "--system", "-u", "admin", "--name", "Admin")
	require.NoError(t, err)
	assert.Contains(t, out, "created and signed in (system)")

	status := readStatus(t)
	assert.True(t, status[core.ClassSystem].SignedIn)
	assert.True(t, status[core.ClassSystem].Active)
	assert.Equal(t, "admin", status[core.ClassSystem].Username)
	assert.False(t, status[core.ClassCommunity].SignedIn)

	_, err = run(t, "", "logout")
	require.NoError(t, err)
	assert.False(t, readStatus(t)[core.ClassSystem].SignedIn)

	_, err = run(t, "wrong-password\n", "login", "--system", "-u", "admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid username or password")

	out, err = run(t, "correct-horse\n", "login", "--system", "-u", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as admin (system)")
	assert.Contains(t, out, "7 hours 59 minutes")
}
