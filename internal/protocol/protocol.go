// Package protocol implements the query wire protocol: a fixed acknowledgement
// token paces every item, a fixed goodbye token ends the exchange and the
// result count travels as a decimal ASCII string.
//
// Two framings are supported. Raw framing is the default: every frame
// is a single write on the sender and a single read on the receiver, bounded
// by MaxFrameSize. Length-prefixed framing puts a 4-byte big-endian length in
// front of every payload. Both peers must use the same framing.
package protocol

import (
	"bytes"
	"strings"
	"time"

	"github.com/PippiShao/IMDB/pkg/config"
)

const (
	AckToken     = "ACK"
	GoodbyeToken = "GOODBYE"

	// DefaultMaxFrameSize is the receive buffer of a raw-framing peer.
	DefaultMaxFrameSize = 1000
)

// CheckAck reports whether b is exactly the acknowledgement token.
func CheckAck(b []byte) bool {
	return bytes.Equal(b, []byte(AckToken))
}

// CheckGoodbye reports whether b is exactly the goodbye token.
func CheckGoodbye(b []byte) bool {
	return bytes.Equal(b, []byte(GoodbyeToken))
}

type Framing int

const (
	FramingRaw Framing = iota
	FramingLengthPrefixed
)

func (f Framing) String() string {
	if f == FramingLengthPrefixed {
		return config.FramingLengthPrefixed
	}
	return config.FramingRaw
}

// ParseFraming maps a config value to a Framing; unknown values are raw.
func ParseFraming(s string) Framing {
	if strings.EqualFold(s, config.FramingLengthPrefixed) {
		return FramingLengthPrefixed
	}
	return FramingRaw
}

// Options configures a Conn. Zero timeouts leave the operation unbounded.
type Options struct {
	Framing      Framing
	MaxFrameSize int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// OptionsFromConfig builds Options from the protocol section plus the
// caller's per-operation timeouts.
func OptionsFromConfig(cfg config.ProtocolConfig, readTimeout, writeTimeout time.Duration) Options {
	return Options{
		Framing:      ParseFraming(cfg.Framing),
		MaxFrameSize: cfg.MaxFrameSize,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	return o
}
