package e2e

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loftlabs/loftfs/internal/server"
	authFile "github.com/loftlabs/loftfs/pkg/auth/file"
	"github.com/loftlabs/loftfs/pkg/client"
	"github.com/loftlabs/loftfs/pkg/storage"
)

// TestContext holds one running in-process server and the handles tests need
// to poke at it from both the wire side and the filesystem side.
type TestContext struct {
	Addr   string
	Layout storage.Layout
}

// startServer boots a LoftFS server on an ephemeral port with a file-backed
// credential store and no archive sink. Shutdown is wired into t.Cleanup.
func startServer(t *testing.T) *TestContext {
	t.Helper()

	base := t.TempDir()
	layout, err := storage.NewLayout(filepath.Join(base, "serverStorage"), filepath.Join(base, "storage"))
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}

	authStore, err := authFile.NewFileStore(filepath.Join(base, "users.yaml"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	index := storage.NewShareIndex(layout)
	bus := storage.NewNotificationBus()
	propagator := storage.NewMutationPropagator(layout, index, bus, nil)

	srv := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, authStore, layout, propagator, bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	// Wait for the listener to bind.
	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	return &TestContext{Addr: srv.Addr().String(), Layout: layout}
}

// connect dials the test server and closes the connection on cleanup.
func connect(t *testing.T, tc *TestContext) *client.Client {
	t.Helper()

	c, err := client.Dial(tc.Addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// loginAs registers (ignoring "taken") and logs in as the given user.
func loginAs(t *testing.T, tc *TestContext, username, password string) *client.Client {
	t.Helper()

	c := connect(t, tc)
	if _, _, err := c.Register(username, password); err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
	ok, msg, err := c.Login(username, password)
	if err != nil || !ok {
		t.Fatalf("Login(%q) = %v, %q, %v", username, ok, msg, err)
	}
	return c
}
