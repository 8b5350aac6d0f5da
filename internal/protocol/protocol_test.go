package protocol

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/PippiShao/IMDB/pkg/errors"
)

func pipe(t *testing.T, opts Options) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	ca := NewConn(context.Background(), a, opts)
	cb := NewConn(context.Background(), b, opts)
	t.Cleanup(func() {
		ca.Close()
		cb.Close()
	})
	return ca, cb
}

func TestCheckTokens(t *testing.T) {
	assert.True(t, CheckAck([]byte(AckToken)))
	assert.False(t, CheckAck([]byte("ACKX")))
	assert.False(t, CheckAck([]byte("ack")))
	assert.False(t, CheckAck(nil))
	assert.True(t, CheckGoodbye([]byte(GoodbyeToken)))
	assert.False(t, CheckGoodbye([]byte(AckToken)))
}

func TestParseFraming(t *testing.T) {
	assert.Equal(t, FramingLengthPrefixed, ParseFraming("length-prefixed"))
	assert.Equal(t, FramingRaw, ParseFraming("raw"))
	assert.Equal(t, FramingRaw, ParseFraming(""))
	assert.Equal(t, "length-prefixed", FramingLengthPrefixed.String())
}

func TestExchange(t *testing.T) {
	items := []string{"The Matrix, 1999, SciFi", "The Matrix Reloaded, 2003, SciFi"}
	for _, framing := range []Framing{FramingRaw, FramingLengthPrefixed} {
		t.Run(framing.String(), func(t *testing.T) {
			server, client := pipe(t, Options{Framing: framing})

			errc := make(chan error, 1)
			go func() {
				errc <- func() error {
					if err := server.SendAck(); err != nil {
						return err
					}
					query, err := server.ReadFrame()
					if err != nil {
						return err
					}
					if string(query) != "matrix" {
						return apperrors.New(apperrors.ErrProtocolViolation, "test", string(query))
					}
					if err := server.WriteCount(len(items)); err != nil {
						return err
					}
					for _, item := range items {
						if err := server.ExpectAck(); err != nil {
							return err
						}
						if err := server.WriteFrame([]byte(item)); err != nil {
							return err
						}
					}
					if err := server.ExpectAck(); err != nil {
						return err
					}
					return server.SendGoodbye()
				}()
			}()

			require.NoError(t, client.ExpectAck())
			require.NoError(t, client.WriteFrame([]byte("matrix")))
			n, err := client.ReadCount()
			require.NoError(t, err)
			require.Equal(t, len(items), n)
			for _, want := range items {
				require.NoError(t, client.SendAck())
				got, err := client.ReadFrame()
				require.NoError(t, err)
				assert.Equal(t, want, string(got))
			}
			require.NoError(t, client.SendAck())
			require.NoError(t, client.ExpectGoodbye())
			require.NoError(t, <-errc)
		})
	}
}

func TestReadCount_SplitsCoalescedGoodbye(t *testing.T) {
	server, client := pipe(t, Options{})
	go server.WriteFrame([]byte("0" + GoodbyeToken))

	n, err := client.ReadCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, client.ExpectGoodbye())
}

func TestReadCount_Malformed(t *testing.T) {
	server, client := pipe(t, Options{})
	go server.WriteFrame([]byte("many"))

	_, err := client.ReadCount()
	assert.ErrorIs(t, err, apperrors.ErrProtocolViolation)
}

func TestExpectAck_Malformed(t *testing.T) {
	server, client := pipe(t, Options{Framing: FramingLengthPrefixed})
	go client.WriteFrame([]byte("NAK"))

	err := server.ExpectAck()
	assert.ErrorIs(t, err, apperrors.ErrProtocolViolation)
}

func TestReadFrame_PeerClosed(t *testing.T) {
	for _, framing := range []Framing{FramingRaw, FramingLengthPrefixed} {
		t.Run(framing.String(), func(t *testing.T) {
			server, client := pipe(t, Options{Framing: framing})
			require.NoError(t, client.Close())

			_, err := server.ReadFrame()
			assert.ErrorIs(t, err, apperrors.ErrConnectionClosed)
		})
	}
}

func TestWriteFrame_Limits(t *testing.T) {
	server, _ := pipe(t, Options{MaxFrameSize: 8})
	assert.ErrorIs(t, server.WriteFrame([]byte("123456789")), apperrors.ErrFrameTooLarge)
	assert.ErrorIs(t, server.WriteFrame(nil), apperrors.ErrInvalidInput)
}

func TestReadFrame_AnnouncedTooLarge(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	reader := NewConn(context.Background(), b, Options{Framing: FramingLengthPrefixed, MaxFrameSize: 8})
	defer reader.Close()
	go a.Write([]byte{0, 0, 1, 0})

	_, err := reader.ReadFrame()
	assert.ErrorIs(t, err, apperrors.ErrFrameTooLarge)
}

func TestConn_CancelUnblocksRead(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	ctx, cancel := context.WithCancel(context.Background())
	c := NewConn(ctx, b, Options{})
	defer c.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadFrame()
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, apperrors.ErrConnectionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("read was not unblocked by cancellation")
	}

	assert.ErrorIs(t, c.SendAck(), context.Canceled)
}

func TestConn_ReadTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	c := NewConn(context.Background(), b, Options{ReadTimeout: 20 * time.Millisecond})
	defer c.Close()

	_, err := c.ReadFrame()
	assert.ErrorIs(t, err, apperrors.ErrIO)
}

func TestConn_OverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		c := NewConn(context.Background(), nc, Options{})
		defer c.Close()
		_ = c.WriteCount(0)
		_ = c.SendGoodbye()
	}()

	nc, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	c := NewConn(context.Background(), nc, Options{})
	defer c.Close()

	n, err := c.ReadCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, c.ExpectGoodbye())
}
