package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/couplet-run/couplet/pkg/encdec"
)

// Endpoint is a live instance of a channel binding, exclusively owned
// by one model process. Output endpoints Send, input endpoints
// Receive; both apply the channel's encoding driver per message.
type Endpoint struct {
	spec  Spec
	codec encdec.Codec
	tr    transport

	mu          sync.Mutex
	closed      bool
	headerDone  bool
	headerCodec encdec.HeaderCodec // nil for raw and array codecs
}

// Open builds an endpoint from a resolved spec. rdb may be nil for
// file-backed channels; queue-backed channels require a client
// connected to the run's broker.
func Open(spec Spec, reg *encdec.Registry, rdb *redis.Client) (*Endpoint, error) {
	codec, err := reg.New(spec.Driver, spec.Options)
	if err != nil {
		return nil, fmt.Errorf("channel %q: %w", spec.Name, err)
	}

	hc, _ := codec.(encdec.HeaderCodec)

	var tr transport
	switch spec.Transport {
	case TransportQueue:
		if rdb == nil {
			return nil, fmt.Errorf("channel %q: queue transport requires a broker connection", spec.Name)
		}
		tr = &queueTransport{rdb: rdb, queue: spec.Target, dir: spec.Direction, timeout: spec.Timeout()}
	case TransportFile:
		framing := frameWhole
		if hc != nil {
			// Row-per-message tables are line-framed; raw and array
			// messages take the whole file.
			framing = frameLines
		}
		tr = &fileTransport{path: spec.Target, dir: spec.Direction, framing: framing}
	default:
		return nil, fmt.Errorf("channel %q: unknown transport %q", spec.Name, spec.Transport)
	}

	return &Endpoint{spec: spec, codec: codec, tr: tr, headerCodec: hc}, nil
}

// Name returns the channel name.
func (e *Endpoint) Name() string { return e.spec.Name }

// Spec returns the resolved declaration behind this endpoint.
func (e *Endpoint) Spec() Spec { return e.spec }

// Send encodes one message and transmits it. Output endpoints only.
// For header-framed encodings the header frame is emitted before the
// first message.
func (e *Endpoint) Send(ctx context.Context, v any) error {
	if e.spec.Direction != Output {
		return ErrDirection
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	frame, err := e.codec.Encode(v)
	if err != nil {
		return e.attribute(err)
	}
	if e.headerCodec != nil && !e.headerDone {
		if err := e.tr.sendFrame(ctx, e.headerCodec.Header()); err != nil {
			return err
		}
		e.headerDone = true
	}
	return e.tr.sendFrame(ctx, frame)
}

// SendBytes transmits one raw frame without encoding. This is the
// byte-level contract the per-language client bindings expose.
func (e *Endpoint) SendBytes(ctx context.Context, frame []byte) error {
	if e.spec.Direction != Output {
		return ErrDirection
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.tr.sendFrame(ctx, frame)
}

// Receive blocks for the next message and decodes it. Input endpoints
// only. Returns ErrClosed when the producer side is finished and
// ErrTimeout when nothing arrives within the channel timeout.
func (e *Endpoint) Receive(ctx context.Context) (any, error) {
	if e.spec.Direction != Input {
		return nil, ErrDirection
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	if e.headerCodec != nil && !e.headerDone {
		header, err := e.tr.recvFrame(ctx)
		if err != nil {
			return nil, err
		}
		if err := e.headerCodec.ReadHeader(header); err != nil {
			return nil, e.attribute(err)
		}
		e.headerDone = true
	}

	frame, err := e.tr.recvFrame(ctx)
	if err != nil {
		return nil, err
	}
	v, err := e.codec.Decode(frame)
	if err != nil {
		return nil, e.attribute(err)
	}
	return v, nil
}

// RecvBytes blocks for the next raw frame without decoding.
func (e *Endpoint) RecvBytes(ctx context.Context) ([]byte, error) {
	if e.spec.Direction != Input {
		return nil, ErrDirection
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.tr.recvFrame(ctx)
}

// Close releases the transport resource. For output queues this marks
// the stream finished so consumers observe EOF after draining.
// Idempotent.
func (e *Endpoint) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.tr.close(ctx)
}

// attribute stamps the channel name onto format errors so failures are
// diagnosable without inspecting transport internals.
func (e *Endpoint) attribute(err error) error {
	var fe *encdec.FormatError
	if errors.As(err, &fe) && fe.Channel == "" {
		fe.Channel = e.spec.Name
	}
	return err
}
