// Package client is the library a model process links against to open
// its channels by name. The runtime advertises every endpoint through
// the process environment, so model code never sees transports or
// paths: it asks for "input1" and gets a handle it can receive on.
//
// This is the Go binding of the contract; bindings for other languages
// speak the same environment protocol.
package client

import (
	"context"
	"fmt"
	"os"
	"sync"

	backend "github.com/redis/go-redis/v9"

	"github.com/couplet-run/couplet/pkg/channel"
	"github.com/couplet-run/couplet/pkg/encdec"
)

// resolve reads the endpoint spec for a channel name out of the
// process environment.
func resolve(name string, dir channel.Direction) (channel.Spec, error) {
	probe := channel.Spec{Name: name, Direction: dir}
	payload, ok := os.LookupEnv(probe.EnvVar())
	if !ok {
		return channel.Spec{}, fmt.Errorf("channel %q is not declared for this process (missing %s)", name, probe.EnvVar())
	}
	spec, err := channel.ParseSpec(payload)
	if err != nil {
		return channel.Spec{}, fmt.Errorf("channel %q: %w", name, err)
	}
	return spec, nil
}

func open(name string, dir channel.Direction) (*channel.Endpoint, *backend.Client, error) {
	spec, err := resolve(name, dir)
	if err != nil {
		return nil, nil, err
	}

	var rdb *backend.Client
	if spec.Transport == channel.TransportQueue {
		addr, ok := os.LookupEnv(channel.EnvBroker)
		if !ok {
			return nil, nil, fmt.Errorf("channel %q: %s is not set", name, channel.EnvBroker)
		}
		rdb = backend.NewClient(&backend.Options{Addr: addr})
	}

	ep, err := channel.Open(spec, encdec.Default(), rdb)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, nil, err
	}
	return ep, rdb, nil
}

// Input is a receive handle on a named channel.
type Input struct {
	ep  *channel.Endpoint
	rdb *backend.Client

	closeOnce sync.Once
	closeErr  error
}

// OpenInput constructs an input handle from a channel name.
func OpenInput(name string) (*Input, error) {
	ep, rdb, err := open(name, channel.Input)
	if err != nil {
		return nil, err
	}
	return &Input{ep: ep, rdb: rdb}, nil
}

// Recv blocks for the next message and copies it into buf, returning
// the number of bytes received. channel.ErrClosed means the producer
// side is finished; channel.ErrTimeout means nothing arrived within
// the channel's timeout.
func (in *Input) Recv(buf []byte) (int, error) {
	frame, err := in.ep.RecvBytes(context.Background())
	if err != nil {
		return 0, err
	}
	if len(frame) > len(buf) {
		return 0, fmt.Errorf("channel %q: message of %d bytes exceeds buffer of %d", in.ep.Name(), len(frame), len(buf))
	}
	return copy(buf, frame), nil
}

// Receive blocks for the next message decoded through the channel's
// encoding driver: raw bytes, a record.Record, or a []record.Record
// for array channels.
func (in *Input) Receive(ctx context.Context) (any, error) {
	return in.ep.Receive(ctx)
}

// Close releases the handle.
func (in *Input) Close() error {
	in.closeOnce.Do(func() {
		in.closeErr = in.ep.Close(context.Background())
		if in.rdb != nil {
			in.rdb.Close()
		}
	})
	return in.closeErr
}

// Output is a send handle on a named channel.
type Output struct {
	ep  *channel.Endpoint
	rdb *backend.Client

	closeOnce sync.Once
	closeErr  error
}

// OpenOutput constructs an output handle from a channel name.
func OpenOutput(name string) (*Output, error) {
	ep, rdb, err := open(name, channel.Output)
	if err != nil {
		return nil, err
	}
	return &Output{ep: ep, rdb: rdb}, nil
}

// Send transmits one raw message. channel.ErrClosed means the consumer
// side is gone and no further sends can succeed.
func (out *Output) Send(data []byte) error {
	return out.ep.SendBytes(context.Background(), data)
}

// SendMessage transmits one message encoded through the channel's
// driver.
func (out *Output) SendMessage(ctx context.Context, v any) error {
	return out.ep.Send(ctx, v)
}

// Close marks the stream finished. On queue channels consumers observe
// end-of-stream after draining pending messages.
func (out *Output) Close() error {
	out.closeOnce.Do(func() {
		out.closeErr = out.ep.Close(context.Background())
		if out.rdb != nil {
			out.rdb.Close()
		}
	})
	return out.closeErr
}
