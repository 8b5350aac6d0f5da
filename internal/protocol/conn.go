package protocol

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/PippiShao/IMDB/pkg/errors"
)

const lengthPrefixSize = 4

// Conn frames protocol messages over a net.Conn. Cancelling the context it
// was created with unblocks any pending read or write and fails every later
// one. A Conn is used by one goroutine at a time.
type Conn struct {
	ctx  context.Context
	nc   net.Conn
	opts Options

	br      *bufio.Reader
	buf     []byte
	pending []byte

	mu        sync.Mutex
	cancelled bool
	stop      func() bool
	closeOnce sync.Once
	closeErr  error
}

func NewConn(ctx context.Context, nc net.Conn, opts Options) *Conn {
	opts = opts.withDefaults()
	c := &Conn{
		ctx:  ctx,
		nc:   nc,
		opts: opts,
	}
	if opts.Framing == FramingLengthPrefixed {
		c.br = bufio.NewReader(nc)
	} else {
		c.buf = make([]byte, opts.MaxFrameSize)
	}
	c.stop = context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cancelled = true
		_ = nc.SetDeadline(time.Unix(1, 0))
	})
	return c
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

func (c *Conn) Framing() Framing {
	return c.opts.Framing
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.stop()
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

// ReadFrame returns the next frame. A peer that closed the stream yields
// ErrConnectionClosed.
func (c *Conn) ReadFrame() ([]byte, error) {
	if len(c.pending) > 0 {
		frame := c.pending
		c.pending = nil
		return frame, nil
	}
	if err := c.arm(c.opts.ReadTimeout, c.nc.SetReadDeadline); err != nil {
		return nil, err
	}
	if c.opts.Framing == FramingLengthPrefixed {
		return c.readPrefixed()
	}
	n, err := c.nc.Read(c.buf)
	if n > 0 {
		frame := make([]byte, n)
		copy(frame, c.buf[:n])
		return frame, nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, c.ioError("reading frame", err)
}

func (c *Conn) readPrefixed() ([]byte, error) {
	var header [lengthPrefixSize]byte
	if _, err := io.ReadFull(c.br, header[:]); err != nil {
		return nil, c.ioError("reading frame length", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if int64(size) > int64(c.opts.MaxFrameSize) {
		return nil, apperrors.Newf(apperrors.ErrFrameTooLarge, "reading frame",
			"peer announced %d bytes, limit is %d", size, c.opts.MaxFrameSize)
	}
	frame := make([]byte, size)
	if _, err := io.ReadFull(c.br, frame); err != nil {
		return nil, c.ioError("reading frame payload", err)
	}
	return frame, nil
}

// WriteFrame sends p as one frame with a single write.
func (c *Conn) WriteFrame(p []byte) error {
	if len(p) > c.opts.MaxFrameSize {
		return apperrors.Newf(apperrors.ErrFrameTooLarge, "writing frame",
			"%d bytes, limit is %d", len(p), c.opts.MaxFrameSize)
	}
	out := p
	if c.opts.Framing == FramingLengthPrefixed {
		out = make([]byte, lengthPrefixSize+len(p))
		binary.BigEndian.PutUint32(out, uint32(len(p)))
		copy(out[lengthPrefixSize:], p)
	} else if len(p) == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, "writing frame", "raw framing cannot carry an empty frame")
	}
	if err := c.arm(c.opts.WriteTimeout, c.nc.SetWriteDeadline); err != nil {
		return err
	}
	if _, err := c.nc.Write(out); err != nil {
		return c.ioError("writing frame", err)
	}
	return nil
}

func (c *Conn) SendAck() error {
	return c.WriteFrame([]byte(AckToken))
}

func (c *Conn) SendGoodbye() error {
	return c.WriteFrame([]byte(GoodbyeToken))
}

// ExpectAck reads one frame and fails with ErrProtocolViolation unless it is
// the acknowledgement token.
func (c *Conn) ExpectAck() error {
	frame, err := c.ReadFrame()
	if err != nil {
		return err
	}
	if !CheckAck(frame) {
		return apperrors.Newf(apperrors.ErrProtocolViolation, "expecting ack", "got %q", truncate(frame))
	}
	return nil
}

// ExpectGoodbye reads one frame and fails with ErrProtocolViolation unless it
// is the goodbye token.
func (c *Conn) ExpectGoodbye() error {
	frame, err := c.ReadFrame()
	if err != nil {
		return err
	}
	if !CheckGoodbye(frame) {
		return apperrors.Newf(apperrors.ErrProtocolViolation, "expecting goodbye", "got %q", truncate(frame))
	}
	return nil
}

func (c *Conn) WriteCount(n int) error {
	return c.WriteFrame([]byte(strconv.Itoa(n)))
}

// ReadCount reads the decimal result count. Under raw framing a goodbye
// written right after a zero count can share the read; anything after the
// digits is kept as the next frame.
func (c *Conn) ReadCount() (int, error) {
	frame, err := c.ReadFrame()
	if err != nil {
		return 0, err
	}
	digits := len(frame)
	if c.opts.Framing == FramingRaw {
		digits = 0
		for digits < len(frame) && frame[digits] >= '0' && frame[digits] <= '9' {
			digits++
		}
	}
	n, err := strconv.Atoi(string(frame[:digits]))
	if err != nil || n < 0 {
		return 0, apperrors.Newf(apperrors.ErrProtocolViolation, "reading count", "got %q", truncate(frame))
	}
	if digits < len(frame) {
		c.pending = frame[digits:]
	}
	return n, nil
}

func (c *Conn) arm(timeout time.Duration, set func(time.Time) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return fmt.Errorf("%w: %w", apperrors.ErrConnectionClosed, context.Cause(c.ctx))
	}
	if timeout > 0 {
		return set(time.Now().Add(timeout))
	}
	return nil
}

func (c *Conn) ioError(op string, err error) error {
	if c.ctx.Err() != nil {
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrConnectionClosed, context.Cause(c.ctx))
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrConnectionClosed)
	}
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrIO, err)
}

func truncate(b []byte) []byte {
	const limit = 32
	if len(b) > limit {
		return b[:limit]
	}
	return b
}
