package dmapi

import "time"

// Default timeouts. Each operation documents which one it uses.
const (
	DefaultTimeout         = 4 * time.Second
	DefaultListTimeout     = 8 * time.Second
	DefaultTransferTimeout = 8 * time.Second
	DefaultUploadTimeout   = 120 * time.Second
)

// CallOption adjusts a single operation.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the operation's default timeout. For multi-file
// uploads it applies to each file. A non-positive d keeps the default.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

func resolve(defaultTimeout time.Duration, opts []CallOption) callOptions {
	o := callOptions{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = defaultTimeout
	}
	return o
}
