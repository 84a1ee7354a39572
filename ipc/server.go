package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sotto/bridge"
	"sotto/log"
)

const maxLine = 1 << 20

// Listen opens the host socket. A leftover socket file from a dead host is
// removed; a live one is reported as ErrAlreadyRunning.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		conn, err := net.DialTimeout("unix", path, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", path, ErrAlreadyRunning)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	return net.Listen("unix", path)
}

type Server struct {
	inv bridge.Invoker
	wg  sync.WaitGroup
}

func NewServer(inv bridge.Invoker) *Server {
	return &Server{inv: inv}
}

// Serve accepts connections until ctx is done, then closes ln and waits for
// every connection to drain. In-flight commands see their ctx cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var err error
	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			if ctx.Err() == nil && !errors.Is(aerr, net.ErrClosed) {
				err = aerr
			}
			break
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
	cancel()
	s.wg.Wait()
	return err
}

// serveConn runs every request on its own goroutine, so a long dictate does
// not hold up an end_recording on the same connection.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.SetReadDeadline(time.Now())
	}()

	var writeMu sync.Mutex
	enc := json.NewEncoder(conn)
	reply := func(resp Response) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := enc.Encode(resp); err != nil {
			log.Warnf("ipc: write reply %s: %v", resp.ID, err)
		}
	}

	var inflight sync.WaitGroup
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			reply(Response{Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			result, err := s.inv.Invoke(ctx, req.Command, req.Args)
			if err != nil {
				reply(Response{ID: req.ID, Error: err.Error()})
				return
			}
			reply(Response{ID: req.ID, OK: true, Result: result})
		}()
	}

	// the peer hung up: abandon whatever it was waiting for
	cancel()
	inflight.Wait()
}
