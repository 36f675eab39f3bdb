package repository

import "github.com/okian/facepace/pkg/logger"

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	seed   uint64
	logger logger.Logger
}

func defaultOptions() options {
	return options{seed: 0x5eed, logger: logger.NewNop()}
}

// WithSeed fixes the treap priority sequence.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
