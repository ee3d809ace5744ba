package email

import (
	"context"
	"net"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailterm/internal/source"
)

// silentServer accepts connections and never writes a greeting.
func silentServer(t *testing.T) (host, port string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu gosync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	host, port, err = net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return host, port
}

func TestConnectHonoursContextOnSilentServer(t *testing.T) {
	for _, useTLS := range []bool{false, true} {
		host, port := silentServer(t)
		c := NewIMAPClient("acct", host, port, "me", "secret", useTLS)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		start := time.Now()
		client, err := c.Connect(ctx)
		cancel()

		require.Error(t, err, "tls=%v", useTLS)
		assert.Nil(t, client)
		assert.False(t, source.IsAuthError(err), "tls=%v: %v", useTLS, err)
		assert.Less(t, time.Since(start), 5*time.Second, "tls=%v", useTLS)
	}
}

func TestConnectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewIMAPClient("acct", "127.0.0.1", "1", "me", "secret", true).Connect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
