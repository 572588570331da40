package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// transport moves opaque frames for one endpoint. Codec application
// and header discipline live above it, in Endpoint.
type transport interface {
	sendFrame(ctx context.Context, frame []byte) error
	recvFrame(ctx context.Context) ([]byte, error)
	close(ctx context.Context) error
}

// fileFraming selects how a file maps onto message boundaries.
type fileFraming int

const (
	// frameWhole treats the entire file as a single message.
	frameWhole fileFraming = iota
	// frameLines treats each line as one message.
	frameLines
)

// fileTransport binds an endpoint to a literal filesystem path. Files
// are opened lazily so an output file appears only once the model
// actually sends.
type fileTransport struct {
	path    string
	dir     Direction
	framing fileFraming

	f    *os.File
	r    *bufio.Reader
	done bool
}

func (t *fileTransport) sendFrame(_ context.Context, frame []byte) error {
	if t.dir != Output {
		return ErrDirection
	}
	if t.f == nil {
		f, err := os.Create(t.path)
		if err != nil {
			return fmt.Errorf("open output file %q: %w", t.path, err)
		}
		t.f = f
	}
	if _, err := t.f.Write(frame); err != nil {
		return fmt.Errorf("write %q: %w", t.path, err)
	}
	if t.framing == frameLines {
		if _, err := t.f.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("write %q: %w", t.path, err)
		}
	}
	return nil
}

func (t *fileTransport) recvFrame(_ context.Context) ([]byte, error) {
	if t.dir != Input {
		return nil, ErrDirection
	}
	if t.done {
		return nil, ErrClosed
	}
	if t.f == nil {
		f, err := os.Open(t.path)
		if err != nil {
			return nil, fmt.Errorf("open input file %q: %w", t.path, err)
		}
		t.f = f
		t.r = bufio.NewReader(f)
	}

	if t.framing == frameWhole {
		t.done = true
		data, err := io.ReadAll(t.r)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", t.path, err)
		}
		return data, nil
	}

	line, err := t.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			t.done = true
			if line == "" {
				return nil, ErrClosed
			}
			// Final line without a trailing newline.
			return []byte(line), nil
		}
		return nil, fmt.Errorf("read %q: %w", t.path, err)
	}
	return []byte(strings.TrimSuffix(line, "\n")), nil
}

func (t *fileTransport) close(context.Context) error {
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}

// queueTransport binds an endpoint to a named queue in the run's
// broker namespace.
type queueTransport struct {
	rdb     *redis.Client
	queue   string
	dir     Direction
	timeout time.Duration
}

func (t *queueTransport) sendFrame(ctx context.Context, frame []byte) error {
	if t.dir != Output {
		return ErrDirection
	}
	return PushFrame(ctx, t.rdb, t.queue, frame, t.timeout)
}

func (t *queueTransport) recvFrame(ctx context.Context) ([]byte, error) {
	if t.dir != Input {
		return nil, ErrDirection
	}
	return PopFrame(ctx, t.rdb, t.queue, t.timeout)
}

func (t *queueTransport) close(ctx context.Context) error {
	if t.dir == Output {
		return CloseQueue(ctx, t.rdb, t.queue)
	}
	// An input endpoint closing does not end the queue; other
	// consumers may still be draining it. Producer-side failure on a
	// vanished consumer is the runtime's call via CloseQueue.
	return nil
}
