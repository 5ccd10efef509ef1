// Package keygen derives short link keys from the wall clock.
// Generators should be safe for concurrent use.
package keygen

import (
	"errors"
	"strings"
	"time"
)

const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

const (
	// MinRadix and MaxRadix bound the positional encoding. Radix values
	// outside the range are clamped, not rejected.
	MinRadix = 2
	MaxRadix = 36

	// DefaultRadix is the production key encoding.
	DefaultRadix = 36
)

// Generator produces short link keys.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate() string
}

// FormatRadix encodes x in the given radix using digits 0-9a-z, most
// significant digit first, without padding. Zero encodes as "0". The radix
// is clamped to [MinRadix, MaxRadix].
func FormatRadix(x uint64, radix int) string {
	if radix < MinRadix {
		radix = MinRadix
	}
	if radix > MaxRadix {
		radix = MaxRadix
	}
	r := uint64(radix)

	var b [64]byte // enough for radix 2 over a full uint64
	i := len(b)
	for {
		i--
		b[i] = digits[x%r]
		x /= r
		if x == 0 {
			break
		}
	}
	return string(b[i:])
}

// ParseRadix decodes a string produced by FormatRadix back to its value.
func ParseRadix(s string, radix int) (uint64, error) {
	if radix < MinRadix {
		radix = MinRadix
	}
	if radix > MaxRadix {
		radix = MaxRadix
	}
	if s == "" {
		return 0, errors.New("empty string")
	}

	var x uint64
	for _, c := range s {
		d := strings.IndexRune(digits[:radix], c)
		if d < 0 {
			return 0, errors.New("invalid digit " + string(c))
		}
		x = x*uint64(radix) + uint64(d)
	}
	return x, nil
}

// timestampGenerator encodes the current time in milliseconds since the
// Unix epoch. Two calls within the same millisecond produce the same key;
// uniqueness is arbitrated by the link store's primary key constraint.
type timestampGenerator struct {
	radix int
	now   func() time.Time
}

// Option configures a timestamp generator.
type Option func(*timestampGenerator)

// WithRadix sets the encoding radix. Values outside [MinRadix, MaxRadix]
// are clamped at encoding time.
func WithRadix(radix int) Option {
	return func(g *timestampGenerator) {
		g.radix = radix
	}
}

// WithClock replaces the wall clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(g *timestampGenerator) {
		g.now = now
	}
}

// NewTimestamp returns a Generator that encodes the current wall-clock
// millisecond timestamp. It reads the clock once to verify it is usable:
// a clock reading before the Unix epoch is a startup error, not something
// a per-request path can recover from.
func NewTimestamp(opts ...Option) (Generator, error) {
	g := &timestampGenerator{
		radix: DefaultRadix,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.now().UnixMilli() < 0 {
		return nil, errors.New("system clock is before the unix epoch")
	}
	return g, nil
}

func (g *timestampGenerator) Generate() string {
	return FormatRadix(uint64(g.now().UnixMilli()), g.radix)
}
