// Package arango provides client options configuration.
package arango

import (
	"crypto/tls"
	"time"

	"go.uber.org/zap"
)

// Options configures the client connection and the transaction manager
// built on top of it.
//
// Example:
//
//	db := arango.NewDatabase([]string{"http://localhost:8529"}, "myapp", func(o *arango.Options) {
//	    o.Username = "root"
//	    o.Password = "secret"
//	    o.ConnLimit = 64
//	    o.DefaultTimeout = 30 * time.Second
//	})
type Options struct {
	// Username and Password enable basic authentication when non-empty.
	Username string
	Password string

	// TLS is used for https endpoints; see ParseTLSConfig.
	TLS *tls.Config

	// ConnLimit caps the parallel connections per endpoint. Zero keeps the
	// driver default.
	ConnLimit int

	// Logger receives debug logging from the transaction machinery.
	Logger *zap.Logger

	// DefaultTimeout is the stream transaction lock timeout applied when a
	// unit of work declares none. Zero keeps the store default.
	DefaultTimeout time.Duration

	// RelaxedQueryScope lets queries entirely outside a running
	// transaction's collection scope run outside the transaction instead
	// of failing.
	RelaxedQueryScope bool
}

func newOptions(opts []func(o *Options)) *Options {
	opt := &Options{}
	for _, v := range opts {
		v(opt)
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	return opt
}
