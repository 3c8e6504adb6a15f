package throttle

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlimitedIsImmediate(t *testing.T) {
	th := New(0, 0)

	start := time.Now()
	require.NoError(t, th.WaitUpload(context.Background(), 10<<20))
	require.NoError(t, th.WaitDownload(context.Background(), 10<<20))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	up, down := th.Limits()
	assert.Zero(t, up)
	assert.Zero(t, down)
}

func TestLimitedWaitsAcrossBursts(t *testing.T) {
	th := New(1000, 0)

	start := time.Now()
	// The first 1000 bytes come from the initial burst, the next 500 cost half a second.
	require.NoError(t, th.WaitUpload(context.Background(), 1500))
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestWaitHonoursContext(t *testing.T) {
	th := New(10, 10)
	require.NoError(t, th.WaitDownload(context.Background(), 10))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, th.WaitDownload(ctx, 10))
}

func TestSetLimits(t *testing.T) {
	th := New(0, 0)
	th.SetLimits(2048, 4096)

	up, down := th.Limits()
	assert.Equal(t, int64(2048), up)
	assert.Equal(t, int64(4096), down)

	th.SetLimits(-1, 0)
	up, down = th.Limits()
	assert.Zero(t, up)
	assert.Zero(t, down)
}

func TestConnCountsTraffic(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var read, written int
	conn := New(0, 0).Wrap(context.Background(), client,
		func(n int) { read += n },
		func(n int) { written += n },
	)

	go func() {
		buf := make([]byte, 5)
		_, _ = io.ReadFull(server, buf)
		_, _ = server.Write([]byte("pong!"))
	}()

	n, err := conn.Write([]byte("ping!"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "pong!", string(buf))
	assert.Equal(t, 5, read)
	assert.Equal(t, 5, written)
}
