// Package vehiclelink holds the shared configuration surface for
// vehicle-link adapters.
package vehiclelink

import "time"

// Options configures a vehicle-link adapter.
type Options struct {
	// URL of the head unit's bridge endpoint.
	URL string
	// AckTimeout bounds the wait for a command acknowledgement.
	AckTimeout time.Duration
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		URL:        "ws://localhost:9384/bridge",
		AckTimeout: 3 * time.Second,
	}
}

func WithURL(url string) Option {
	return func(o *Options) {
		if url != "" {
			o.URL = url
		}
	}
}

func WithAckTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.AckTimeout = timeout
		}
	}
}
