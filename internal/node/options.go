package node

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/btcverifier/internal/pow"
)

// DefaultChainID matches the Arbitrum Sepolia id the submission tooling was written against
const DefaultChainID = 421614

type Options struct {
	ChainID        uint64
	BlockInterval  time.Duration
	DifficultyBits uint32
	MaxBlockTxs    int
	Logger         zerolog.Logger
}

type Option func(*Options)

//nolint:mnd
var DefaultOptions = Options{
	ChainID:        DefaultChainID,
	BlockInterval:  2 * time.Second,
	DifficultyBits: pow.DefaultTargetBits,
	MaxBlockTxs:    512,
	Logger:         zerolog.Nop(),
}

func NewOptions(opts ...Option) Options {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	return options
}

func WithChainID(id uint64) Option {
	return func(o *Options) {
		o.ChainID = id
	}
}

func WithBlockInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.BlockInterval = interval
	}
}

func WithDifficultyBits(bits uint32) Option {
	return func(o *Options) {
		o.DifficultyBits = bits
	}
}

func WithMaxBlockTxs(n int) Option {
	return func(o *Options) {
		o.MaxBlockTxs = n
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}
