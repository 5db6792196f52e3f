package notify

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// runDir returns a short directory; unix socket paths are limited to ~100 bytes.
func runDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "phn")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestBroadcastReachesEveryListener(t *testing.T) {
	dir := runDir(t)

	var a, b atomic.Int32
	la, err := Listen(dir, func(Message) { a.Add(1) })
	require.NoError(t, err)
	defer la.Close()
	lb, err := Listen(dir, func(Message) { b.Add(1) })
	require.NoError(t, err)
	defer lb.Close()

	n, err := Broadcast(context.Background(), dir, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(1), b.Load())
}

func TestBroadcastWithNoListeners(t *testing.T) {
	n, err := Broadcast(context.Background(), runDir(t), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = Broadcast(context.Background(), filepath.Join(runDir(t), "absent"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "missing run dir means nobody to notify")
}

func TestBroadcastSkipsAndRemovesDeadSocket(t *testing.T) {
	dir := runDir(t)

	live, err := Listen(dir, nil)
	require.NoError(t, err)
	defer live.Close()

	deadPath := filepath.Join(dir, "dead"+socketSuffix)
	ln, err := net.Listen("unix", deadPath)
	require.NoError(t, err)
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, ln.Close())

	n, err := Broadcast(context.Background(), dir, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, statErr := os.Stat(deadPath)
	assert.True(t, os.IsNotExist(statErr), "stale socket is cleaned up")
}

func TestListenerRejectsUnknownAction(t *testing.T) {
	dir := runDir(t)

	var calls atomic.Int32
	l, err := Listen(dir, func(Message) { calls.Add(1) })
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = Send(ctx, l.Path(), Message{Action: "reboot"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
	assert.Zero(t, calls.Load())
}

func TestListenerCloseRemovesSocket(t *testing.T) {
	dir := runDir(t)

	l, err := Listen(dir, nil)
	require.NoError(t, err)
	targets, err := Targets(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{l.Path()}, targets)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "close is idempotent")

	targets, err = Targets(dir)
	require.NoError(t, err)
	assert.Empty(t, targets)
}
