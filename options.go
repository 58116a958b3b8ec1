package rfdb

import (
	"log/slog"

	"github.com/grafema/rfdb/engine"
)

type options struct {
	logger      *Logger
	metrics     engine.MetricsObserver
	deltaLogCap int
}

// Option configures Open/Create/Ephemeral behavior.
//
// Options exist to avoid exploding the constructor surface; the zero
// configuration (no logging, no metrics, default delta cap) is the
// intended common case.
type Option func(*options)

// WithLogger configures structured logging for store operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := rfdb.NewJSONLogger(slog.LevelInfo)
//	db, _ := rfdb.Open(dir, rfdb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets
// it. Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsObserver configures an observer for flush, rebuild and
// query metrics. Pass nil to disable.
func WithMetricsObserver(mo engine.MetricsObserver) Option {
	return func(o *options) {
		if mo == nil {
			mo = engine.NoopMetricsObserver{}
		}
		o.metrics = mo
	}
}

// WithDeltaLogCap bounds the number of pending delta entries before
// writes fail with ErrDeltaLogOverflow. Zero means the engine default;
// a negative value disables the cap.
func WithDeltaLogCap(n int) Option {
	return func(o *options) {
		o.deltaLogCap = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:  NoopLogger(),
		metrics: engine.NoopMetricsObserver{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o options) engineOptions() []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(o.logger),
		engine.WithMetricsObserver(o.metrics),
	}
	if o.deltaLogCap != 0 {
		opts = append(opts, engine.WithDeltaLogCap(o.deltaLogCap))
	}
	return opts
}
