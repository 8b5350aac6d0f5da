// Package client implements the client side of the query protocol, one
// connection per query.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/PippiShao/IMDB/internal/protocol"
	apperrors "github.com/PippiShao/IMDB/pkg/errors"
	"github.com/PippiShao/IMDB/pkg/resilience"
)

// MaxQueryLength bounds what the prompt accepts.
const MaxQueryLength = 100

type Client struct {
	addr    string
	opts    protocol.Options
	timeout time.Duration
	dialer  net.Dialer
	retry   *resilience.RetryConfig
	logger  *slog.Logger
}

type Option func(*Client)

// WithDialRetry retries failed dials with backoff. Only connecting is
// retried; a failure after the server has greeted is returned as is.
func WithDialRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = &cfg }
}

// New returns a Client for addr. timeout bounds a whole query exchange; zero
// leaves it to ctx.
func New(addr string, opts protocol.Options, timeout time.Duration, options ...Option) *Client {
	c := &Client{
		addr:    addr,
		opts:    opts,
		timeout: timeout,
		logger:  slog.Default().With("component", "query-client", "server", addr),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Query sends query on a fresh connection and returns the matching records
// in the order the server sent them.
func (c *Client) Query(ctx context.Context, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "query", "empty query")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	nc, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	conn := protocol.NewConn(ctx, nc, c.opts)
	defer conn.Close()

	if err := conn.ExpectAck(); err != nil {
		return nil, fmt.Errorf("awaiting greeting: %w", err)
	}
	if err := conn.WriteFrame([]byte(query)); err != nil {
		return nil, fmt.Errorf("sending query: %w", err)
	}
	count, err := conn.ReadCount()
	if err != nil {
		return nil, fmt.Errorf("reading count: %w", err)
	}
	c.logger.Debug("server reported matches", "query", query, "count", count)

	records := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if err := conn.SendAck(); err != nil {
			return records, fmt.Errorf("acknowledging item %d: %w", i+1, err)
		}
		frame, err := conn.ReadFrame()
		if err != nil {
			return records, fmt.Errorf("reading item %d of %d: %w", i+1, count, err)
		}
		records = append(records, string(frame))
	}
	if count > 0 {
		if err := conn.SendAck(); err != nil {
			return records, fmt.Errorf("sending final ack: %w", err)
		}
	}
	if err := conn.ExpectGoodbye(); err != nil {
		return records, fmt.Errorf("awaiting goodbye: %w", err)
	}
	return records, nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	if c.retry == nil {
		return c.dialer.DialContext(ctx, "tcp", c.addr)
	}
	var nc net.Conn
	err := resilience.Retry(ctx, "dial", *c.retry, func() error {
		var err error
		nc, err = c.dialer.DialContext(ctx, "tcp", c.addr)
		return err
	})
	return nc, err
}
