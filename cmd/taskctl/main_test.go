package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/fyrsmithlabs/taskd/internal/config"
	httpserver "github.com/fyrsmithlabs/taskd/internal/http"
	"github.com/fyrsmithlabs/taskd/internal/logging"
	"github.com/fyrsmithlabs/taskd/internal/services"
)

type cli struct {
	server  string
	session string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	ctx := context.Background()

	reg, err := services.Build(ctx, &config.Config{
		Auth: config.AuthConfig{
			JWTSecret: config.Secret("taskctl-test-secret"),
			TokenTTL:  time.Hour,
			Issuer:    "taskd",
		},
		Store: config.StoreConfig{Driver: config.DriverMemory, Timeout: time.Second},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Store().Close(ctx) })

	srv, err := httpserver.NewServer(reg, logging.NewTestLogger().Logger,
		&httpserver.Config{BasePath: "/api"},
		httpserver.WithMeterProvider(sdkmetric.NewMeterProvider()),
	)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	t.Setenv("TASKD_URL", "")
	return &cli{
		server:  ts.URL + "/api",
		session: filepath.Join(t.TempDir(), "taskd", "session.toml"),
	}
}

// run executes taskctl with args and returns its output.
func (c *cli) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--server", c.server, "--session", c.session}, args...))
	err := root.Execute()
	return out.String(), err
}

func (c *cli) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := c.run(t, "", args...)
	require.NoError(t, err, out)
	return out
}

func TestTaskctl_Workflow(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun(t, "health")
	assert.Contains(t, out, "Server Status: ok")

	out = c.mustRun(t, "register", "me@example.com")
	assert.Contains(t, out, "Logged in as me@example.com")

	out = c.mustRun(t, "whoami")
	assert.Contains(t, out, "me@example.com")

	out = c.mustRun(t, "add", "Buy", "milk", "--priority", "high", "--due", "2026-04-01")
	require.Contains(t, out, "Added ")
	id := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "Added"))

	c.mustRun(t, "add", "Walk dog", "-p", "low")

	out = c.mustRun(t, "list", "--sort", "priority")
	assert.Contains(t, out, "Buy milk")
	assert.Contains(t, out, "2026-04-01")
	assert.Contains(t, out, "2 task(s), page 1 of 1")
	assert.Less(t, strings.Index(out, "Buy milk"), strings.Index(out, "Walk dog"))

	out = c.mustRun(t, "list", "--search", "dog")
	assert.NotContains(t, out, "Buy milk")

	c.mustRun(t, "done", id)
	out = c.mustRun(t, "get", id)
	assert.Contains(t, out, "Completed:   true")

	c.mustRun(t, "undone", id)
	c.mustRun(t, "edit", id, "--title", "Buy oat milk")
	out = c.mustRun(t, "get", id)
	assert.Contains(t, out, "Title:       Buy oat milk")
	assert.Contains(t, out, "Completed:   false")

	_, err := c.run(t, "", "edit", id)
	assert.Error(t, err)

	c.mustRun(t, "rm", id)
	_, err = c.run(t, "", "get", id)
	assert.Error(t, err)

	out = c.mustRun(t, "logout")
	assert.Contains(t, out, "Logged out")
	_, err = c.run(t, "", "whoami")
	assert.Error(t, err)
}

func TestTaskctl_LoginRememberAndCreate(t *testing.T) {
	c := newCLI(t)

	// Declining the prompt leaves no account.
	_, err := c.run(t, "n\n", "login", "new@example.com")
	assert.Error(t, err)

	out, err := c.run(t, "y\n", "login", "new@example.com", "--remember")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Create one?")
	assert.Contains(t, out, "Logged in as new@example.com")

	c.mustRun(t, "logout")

	// The remembered email is used without an argument.
	out = c.mustRun(t, "login")
	assert.Contains(t, out, "Logged in as new@example.com")

	out = c.mustRun(t, "login", "other@example.com", "--create")
	assert.Contains(t, out, "Logged in as other@example.com")
}

func TestTaskctl_LoginWithoutEmail(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "", "login")
	assert.ErrorContains(t, err, "no email given")
}

func TestSession_File(t *testing.T) {
	c := newCLI(t)
	c.mustRun(t, "login", "file@example.com", "--create", "--remember")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(c.session)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	sess, err := loadSession(c.session)
	require.NoError(t, err)
	data := sess.snapshot()
	assert.NotEmpty(t, data.Token)
	assert.Equal(t, "file@example.com", data.Email)
	assert.Equal(t, c.server, data.Server)

	require.NoError(t, sess.Clear())
	again, err := loadSession(c.session)
	require.NoError(t, err)
	assert.Empty(t, again.Token())
	assert.Equal(t, "file@example.com", again.snapshot().Email)
}

func TestLoadSession_Missing(t *testing.T) {
	sess, err := loadSession(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Empty(t, sess.Token())
}

func TestLoadSession_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	require.NoError(t, os.WriteFile(path, []byte("token = "), 0o600))
	_, err := loadSession(path)
	assert.Error(t, err)
}

func TestParseDue(t *testing.T) {
	d, err := parseDue("2026-04-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *d)

	d, err = parseDue("2026-04-01T09:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 9, d.Hour())

	_, err = parseDue("tomorrow")
	assert.Error(t, err)
}
