package cssguard

import "github.com/go-logr/logr"

// config holds Parse's optional knobs behind functional options —
// the idiomatic Go shape for a library entry point with a handful of
// optional knobs and no backend of its own to own or configure.
type config struct {
	log logr.Logger
}

func newConfig(opts []Option) config {
	cfg := config{log: logr.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a Parse call.
type Option func(*config)

// WithLogger threads a logr.Logger sink through the parser instead of
// writing to a process-wide logger. The caller's mail-scanner
// integration is expected to wire its own
// zap/zapr-backed logr.Logger in; cssguard never configures a backend
// itself.
func WithLogger(log logr.Logger) Option {
	return func(cfg *config) {
		cfg.log = log
	}
}
