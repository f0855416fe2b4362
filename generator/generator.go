// Package generator produces pseudo-random messages for load and soak
// testing. Sizes are configurable with an optional spread around the
// target, and a fixed seed makes the stream reproducible.
package generator

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/courier-mq/courier/message"
)

// Defaults used when the corresponding Config field is zero.
const (
	DefaultBodySize    = 1024
	DefaultHeaderCount = 4
	DefaultKeySize     = 8
	DefaultValueSize   = 16
)

// Config controls the shape of the generated messages. Each *Spread
// field widens its size to a uniform pick from [size-spread, size+spread],
// clamped at zero.
type Config struct {
	// BodySize is the target body size in bytes.
	BodySize   int `mapstructure:"body_size"`
	BodySpread int `mapstructure:"body_spread"`

	// HeaderCount is the number of headers besides message-id.
	// Zero means the default; a negative count means none.
	HeaderCount  int `mapstructure:"header_count"`
	HeaderSpread int `mapstructure:"header_spread"`

	// KeySize and ValueSize control header sizes.
	KeySize     int `mapstructure:"key_size"`
	KeySpread   int `mapstructure:"key_spread"`
	ValueSize   int `mapstructure:"value_size"`
	ValueSpread int `mapstructure:"value_spread"`

	// Binary selects random byte bodies instead of printable text.
	Binary bool `mapstructure:"binary"`

	// Seed fixes the random stream; 0 means a random seed.
	Seed int64 `mapstructure:"seed"`
}

func (c Config) normalized() Config {
	if c.BodySize <= 0 {
		c.BodySize = DefaultBodySize
	}
	if c.HeaderCount == 0 {
		c.HeaderCount = DefaultHeaderCount
	}
	if c.HeaderCount < 0 {
		c.HeaderCount = 0
	}
	if c.KeySize <= 0 {
		c.KeySize = DefaultKeySize
	}
	if c.ValueSize <= 0 {
		c.ValueSize = DefaultValueSize
	}
	return c
}

// Generator emits messages according to its Config. It is not safe for
// concurrent use; create one per goroutine.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// New creates a generator. A zero cfg.Seed seeds from a random source,
// any other value makes the stream deterministic.
func New(cfg Config) *Generator {
	cfg = cfg.normalized()
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Message produces the next message in the stream.
func (g *Generator) Message() *message.Message {
	var msg *message.Message
	size := g.spread(g.cfg.BodySize, g.cfg.BodySpread)
	if g.cfg.Binary {
		msg = message.NewBinary(g.randomBytes(size))
	} else {
		msg = message.NewText(g.randomText(size))
	}

	count := g.spread(g.cfg.HeaderCount, g.cfg.HeaderSpread)
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("h-%s", g.randomText(g.spread(g.cfg.KeySize, g.cfg.KeySpread)))
		if _, dup := msg.Header[key]; dup {
			continue
		}
		msg.SetHeader(key, g.randomText(g.spread(g.cfg.ValueSize, g.cfg.ValueSpread)))
	}
	// The uuid is drawn from the generator's own stream so a fixed
	// seed reproduces message ids too.
	id := uuid.Must(uuid.NewRandomFromReader(g.rng))
	msg.SetHeader("message-id", id.String())
	return msg
}

// spread picks uniformly from [size-spread, size+spread], never below
// zero.
func (g *Generator) spread(size, spread int) int {
	if spread <= 0 {
		return size
	}
	n := size - spread + g.rng.Intn(2*spread+1)
	if n < 0 {
		return 0
	}
	return n
}

const textAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func (g *Generator) randomText(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = textAlphabet[g.rng.Intn(len(textAlphabet))]
	}
	return string(buf)
}

func (g *Generator) randomBytes(n int) []byte {
	buf := make([]byte, n)
	g.rng.Read(buf)
	return buf
}
