package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sotto/bridge"
)

// socketPath stays short; unix socket paths are limited to ~104 bytes.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "sotto")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

type testServer struct {
	path   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func startServer(t *testing.T, inv bridge.Invoker) *testServer {
	t.Helper()
	ts := &testServer{path: socketPath(t), done: make(chan struct{})}
	ln, err := Listen(ts.path)
	if err != nil {
		t.Fatal(err)
	}
	var ctx context.Context
	ctx, ts.cancel = context.WithCancel(context.Background())
	go func() {
		ts.err = NewServer(inv).Serve(ctx, ln)
		close(ts.done)
	}()
	t.Cleanup(func() {
		ts.cancel()
		<-ts.done
	})
	return ts
}

func dial(t *testing.T, path string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRoundTrip(t *testing.T) {
	var gotArgs bridge.Args
	srv := startServer(t, bridge.InvokerFunc(func(_ context.Context, cmd string, args bridge.Args) (any, error) {
		gotArgs = args
		return "hi " + cmd, nil
	}))

	b := bridge.New(dial(t, srv.path))
	v, err := b.Greet(context.Background(), "Ada")
	if err != nil {
		t.Fatal(err)
	}
	if v != "hi greet" {
		t.Errorf("result = %v", v)
	}
	if gotArgs["name"] != "Ada" {
		t.Errorf("args = %v", gotArgs)
	}
}

func TestNilResult(t *testing.T) {
	srv := startServer(t, bridge.InvokerFunc(func(context.Context, string, bridge.Args) (any, error) {
		return nil, nil
	}))
	v, err := bridge.New(dial(t, srv.path)).EndRecording(context.Background())
	if v != nil || err != nil {
		t.Errorf("got %v, %v", v, err)
	}
}

func TestRemoteErrorKeepsMessage(t *testing.T) {
	srv := startServer(t, bridge.InvokerFunc(func(context.Context, string, bridge.Args) (any, error) {
		return nil, errors.New("cannot begin dictation, we're already dictating")
	}))

	_, err := bridge.New(dial(t, srv.path)).Dictate(context.Background())
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %T %v, want *RemoteError", err, err)
	}
	if re.Message != "cannot begin dictation, we're already dictating" || re.Command != "dictate" {
		t.Errorf("RemoteError = %+v", re)
	}
	if err.Error() != re.Message {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestConcurrentCallsReplyOutOfOrder(t *testing.T) {
	release := make(chan struct{})
	srv := startServer(t, bridge.InvokerFunc(func(ctx context.Context, cmd string, _ bridge.Args) (any, error) {
		if cmd == bridge.CmdDictate {
			select {
			case <-release:
				return "slow", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		close(release)
		return nil, nil
	}))

	c := dial(t, srv.path)
	b := bridge.New(c)

	var wg sync.WaitGroup
	var slow any
	var slowErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		slow, slowErr = b.Dictate(context.Background())
	}()

	// the fast call on the same connection completes while dictate waits
	time.Sleep(20 * time.Millisecond)
	if _, err := b.EndRecording(context.Background()); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	if slowErr != nil || slow != "slow" {
		t.Errorf("dictate = %v, %v", slow, slowErr)
	}
}

func TestInvokeContextCancelled(t *testing.T) {
	srv := startServer(t, bridge.InvokerFunc(func(ctx context.Context, _ string, _ bridge.Args) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := bridge.New(dial(t, srv.path)).Record(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestDisconnectCancelsHandler(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{})
	srv := startServer(t, bridge.InvokerFunc(func(ctx context.Context, _ string, _ bridge.Args) (any, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	}))

	c, err := Dial(context.Background(), srv.path)
	if err != nil {
		t.Fatal(err)
	}
	go c.Invoke(context.Background(), bridge.CmdDictate, nil)
	<-started
	c.Close()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler ctx not cancelled after client hung up")
	}
}

func TestServerShutdown(t *testing.T) {
	srv := startServer(t, bridge.InvokerFunc(func(ctx context.Context, _ string, _ bridge.Args) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	c := dial(t, srv.path)

	done := make(chan error, 1)
	go func() {
		_, err := c.Invoke(context.Background(), bridge.CmdDictate, nil)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	srv.cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("pending call succeeded after shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call not released by shutdown")
	}
	select {
	case <-srv.done:
		if srv.err != nil {
			t.Errorf("Serve = %v", srv.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	if _, err := c.Invoke(context.Background(), bridge.CmdGreet, nil); err == nil {
		t.Error("call on a closed connection succeeded")
	}
}

func TestListenStaleSocket(t *testing.T) {
	path := socketPath(t)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("stale socket not replaced: %v", err)
	}
	defer ln.Close()

	if _, err := Listen(path); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Listen = %v, want ErrAlreadyRunning", err)
	}
}
