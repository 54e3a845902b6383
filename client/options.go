package client

import "time"

type options struct {
	url     string
	timeout time.Duration
}

type Option interface {
	apply(*options)
}

type urlOption string

func (o urlOption) apply(opts *options) {
	opts.url = string(o)
}

// WithURL configures the node key-value API URL. Such as
// 'http://10.26.104.14:6000'.
func WithURL(url string) Option {
	return urlOption(url)
}

type timeoutOption time.Duration

func (o timeoutOption) apply(opts *options) {
	opts.timeout = time.Duration(o)
}

// WithTimeout configures the timeout for each request.
func WithTimeout(timeout time.Duration) Option {
	return timeoutOption(timeout)
}
