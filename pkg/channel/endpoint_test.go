package channel_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couplet-run/couplet/pkg/channel"
	"github.com/couplet-run/couplet/pkg/encdec"
	"github.com/couplet-run/couplet/pkg/record"
)

func TestEndpoint_RawFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	ctx := context.Background()
	reg := encdec.Default()

	out, err := channel.Open(channel.Spec{
		Name: "outFile", Direction: channel.Output, Driver: "raw",
		Transport: channel.TransportFile, Target: path,
	}, reg, nil)
	require.NoError(t, err)

	require.NoError(t, out.Send(ctx, []byte("hello")))
	require.NoError(t, out.Close(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	in, err := channel.Open(channel.Spec{
		Name: "inFile", Direction: channel.Input, Driver: "raw",
		Transport: channel.TransportFile, Target: path,
	}, reg, nil)
	require.NoError(t, err)

	msg, err := in.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), msg)

	// A one-shot file channel ends after its single message.
	_, err = in.Receive(ctx)
	assert.ErrorIs(t, err, channel.ErrClosed)
}

func TestEndpoint_TableFileLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.txt")
	ctx := context.Background()
	reg := encdec.Default()

	out, err := channel.Open(channel.Spec{
		Name: "rows", Direction: channel.Output, Driver: "table",
		Transport: channel.TransportFile, Target: path,
		Options: map[string]any{"field_names": "name,number"},
	}, reg, nil)
	require.NoError(t, err)

	require.NoError(t, out.Send(ctx, record.Record{record.String("x"), record.Int(5)}))
	require.NoError(t, out.Send(ctx, record.Record{record.String("y"), record.Int(6)}))
	require.NoError(t, out.Close(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name,number\nx,5\ny,6\n", string(data))

	// Consumer declares nothing; the header line describes the layout.
	in, err := channel.Open(channel.Spec{
		Name: "rows", Direction: channel.Input, Driver: "table",
		Transport: channel.TransportFile, Target: path,
	}, reg, nil)
	require.NoError(t, err)

	row, err := in.Receive(ctx)
	require.NoError(t, err)
	assert.True(t, row.(record.Record).Equal(record.Record{record.String("x"), record.Int(5)}))

	row, err = in.Receive(ctx)
	require.NoError(t, err)
	assert.True(t, row.(record.Record).Equal(record.Record{record.String("y"), record.Int(6)}))

	_, err = in.Receive(ctx)
	assert.ErrorIs(t, err, channel.ErrClosed)
}

func TestEndpoint_ArrayFileSingleMessage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "array.txt")
	ctx := context.Background()
	reg := encdec.Default()
	opts := map[string]any{"field_names": "name,number", "as_array": true}

	out, err := channel.Open(channel.Spec{
		Name: "arr", Direction: channel.Output, Driver: "table",
		Transport: channel.TransportFile, Target: path, Options: opts,
	}, reg, nil)
	require.NoError(t, err)

	rows := []record.Record{
		{record.String("x"), record.Int(5)},
		{record.String("y"), record.Int(6)},
		{record.String("z"), record.Int(7)},
	}
	require.NoError(t, out.Send(ctx, rows))
	require.NoError(t, out.Close(ctx))

	in, err := channel.Open(channel.Spec{
		Name: "arr", Direction: channel.Input, Driver: "table",
		Transport: channel.TransportFile, Target: path, Options: opts,
	}, reg, nil)
	require.NoError(t, err)

	// N rows arrive as exactly one message of N rows.
	msg, err := in.Receive(ctx)
	require.NoError(t, err)
	got := msg.([]record.Record)
	require.Len(t, got, 3)
	for i := range rows {
		assert.True(t, rows[i].Equal(got[i]))
	}

	_, err = in.Receive(ctx)
	assert.ErrorIs(t, err, channel.ErrClosed)
}

func TestEndpoint_QueueRoundTrip(t *testing.T) {
	rdb := newTestBroker(t)
	ctx := context.Background()
	reg := encdec.Default()
	opts := map[string]any{"field_names": "name,number"}

	out, err := channel.Open(channel.Spec{
		Name: "q", Direction: channel.Output, Driver: "table",
		Transport: channel.TransportQueue, Target: "q", Options: opts, TimeoutSec: 2,
	}, reg, rdb)
	require.NoError(t, err)

	in, err := channel.Open(channel.Spec{
		Name: "q", Direction: channel.Input, Driver: "table",
		Transport: channel.TransportQueue, Target: "q", TimeoutSec: 2,
	}, reg, rdb)
	require.NoError(t, err)
	require.NoError(t, channel.RegisterConsumer(ctx, rdb, "q"))

	row := record.Record{record.String("x"), record.Int(5)}
	require.NoError(t, out.Send(ctx, row))
	require.NoError(t, out.Close(ctx))

	got, err := in.Receive(ctx)
	require.NoError(t, err)
	assert.True(t, row.Equal(got.(record.Record)))

	_, err = in.Receive(ctx)
	assert.ErrorIs(t, err, channel.ErrClosed)
}

func TestEndpoint_DirectionEnforced(t *testing.T) {
	reg := encdec.Default()
	ctx := context.Background()

	in, err := channel.Open(channel.Spec{
		Name: "c", Direction: channel.Input, Driver: "raw",
		Transport: channel.TransportFile, Target: "unused",
	}, reg, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, in.Send(ctx, []byte("x")), channel.ErrDirection)

	out, err := channel.Open(channel.Spec{
		Name: "c", Direction: channel.Output, Driver: "raw",
		Transport: channel.TransportFile, Target: "unused",
	}, reg, nil)
	require.NoError(t, err)
	_, err = out.Receive(ctx)
	assert.ErrorIs(t, err, channel.ErrDirection)
}

func TestEndpoint_FormatErrorNamesChannel(t *testing.T) {
	reg := encdec.Default()
	ctx := context.Background()

	out, err := channel.Open(channel.Spec{
		Name: "rows", Direction: channel.Output, Driver: "table",
		Transport: channel.TransportFile, Target: "unused",
		Options: map[string]any{"field_names": "a,b"},
	}, reg, nil)
	require.NoError(t, err)

	err = out.Send(ctx, record.Record{record.Int(1)})
	var fe *encdec.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "rows", fe.Channel)
}

func TestSpec_EnvRoundTrip(t *testing.T) {
	spec := channel.Spec{
		Name: "helloParQueueIn", Model: "hello", Direction: channel.Input,
		Driver: "raw", Transport: channel.TransportQueue, Target: "hq",
		TimeoutSec: 30,
	}
	assert.Equal(t, "COUPLET_IN_HELLOPARQUEUEIN", spec.EnvVar())
	assert.Equal(t, 30*time.Second, spec.Timeout())

	payload, err := spec.MarshalEnv()
	require.NoError(t, err)
	back, err := channel.ParseSpec(payload)
	require.NoError(t, err)
	assert.Equal(t, spec, back)

	_, err = channel.ParseSpec("{not json")
	assert.Error(t, err)
}
