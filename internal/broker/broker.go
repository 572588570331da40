// Package broker hosts the run-scoped queue namespace. Each pipeline
// run embeds its own broker, so channel names never collide across
// concurrent runs and the namespace dies with the run.
package broker

import (
	"fmt"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
)

// Broker is an embedded Redis-protocol server plus a client for the
// runtime's own bookkeeping. Model processes connect to Addr through
// their client library.
type Broker struct {
	srv    *miniredis.Miniredis
	client *backend.Client
}

// Start launches the embedded server on a free local port.
func Start() (*Broker, error) {
	srv, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("start broker: %w", err)
	}
	client := backend.NewClient(&backend.Options{Addr: srv.Addr()})
	return &Broker{srv: srv, client: client}, nil
}

// Addr returns the address model processes connect to.
func (b *Broker) Addr() string { return b.srv.Addr() }

// Client returns the runtime-side connection to the namespace.
func (b *Broker) Client() *backend.Client { return b.client }

// Close tears down the namespace and every queue in it.
func (b *Broker) Close() {
	b.client.Close()
	b.srv.Close()
}

// Connect dials an existing broker address. Used by the client library
// inside model processes.
func Connect(addr string) *backend.Client {
	return backend.NewClient(&backend.Options{Addr: addr})
}
