package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"sotto/bridge"
)

// Client is a bridge.Invoker that talks to a host over its socket. It is
// safe for concurrent use; replies are matched to calls by request id.
type Client struct {
	conn net.Conn

	writeMu sync.Mutex
	enc     *json.Encoder

	mu      sync.Mutex
	pending map[string]chan Response
	done    chan struct{}
	err     error
}

func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sotto host at %s (is `sotto serve` running?): %w", path, err)
	}
	return NewClient(conn), nil
}

// NewClient takes ownership of conn.
func NewClient(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}

	c.mu.Lock()
	c.err = scanner.Err()
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mu.Unlock()
	close(c.done)
}

func (c *Client) Invoke(ctx context.Context, command string, args bridge.Args) (any, error) {
	id := uuid.New().String()
	ch := make(chan Response, 1)

	c.mu.Lock()
	select {
	case <-c.done:
		err := c.err
		c.mu.Unlock()
		return nil, err
	default:
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.enc.Encode(Request{ID: id, Command: command, Args: args})
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("send %s: %w", command, err)
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			return nil, &RemoteError{Command: command, Message: resp.Error}
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	case <-c.done:
		// a reply may have raced the close
		select {
		case resp := <-ch:
			if !resp.OK {
				return nil, &RemoteError{Command: command, Message: resp.Error}
			}
			return resp.Result, nil
		default:
		}
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) Close() error {
	return c.conn.Close()
}
