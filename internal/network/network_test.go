package network

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"session-recorder/internal/config"
)

func newLoopback(t *testing.T, password string, useTLS bool) (*Manager, net.Listener) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Control.Password = password
	cfg.Control.TLS = useTLS

	m := NewManager(cfg, nil)
	require.False(t, m.Tailnet())
	require.NoError(t, m.Start(context.Background()))

	ln, err := m.Listen(0)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return m, ln
}

// echoOnce accepts one connection and echoes one line-sized read.
func echoOnce(ln net.Listener) <-chan error {
	errc := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			errc <- err
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			errc <- err
			return
		}
		_, err = conn.Write(buf)
		errc <- err
	}()
	return errc
}

func dialAndEcho(t *testing.T, m *Manager, addr string) {
	t.Helper()
	conn, err := m.Dial(context.Background(), addr)
	require.NoError(t, err)
	defer conn.Close()

	// auth line and payload may arrive in the same segment
	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestLoopbackWithoutPassword(t *testing.T) {
	m, ln := newLoopback(t, "", false)
	errc := echoOnce(ln)
	dialAndEcho(t, m, ln.Addr().String())
	assert.NoError(t, <-errc)
}

func TestLoopbackWithPassword(t *testing.T) {
	m, ln := newLoopback(t, "s3cret", false)
	errc := echoOnce(ln)
	dialAndEcho(t, m, ln.Addr().String())
	assert.NoError(t, <-errc)
}

func TestLoopbackWithTLSAndPassword(t *testing.T) {
	m, ln := newLoopback(t, "s3cret", true)
	errc := echoOnce(ln)
	dialAndEcho(t, m, ln.Addr().String())
	assert.NoError(t, <-errc)
}

func TestWrongPasswordIsDropped(t *testing.T) {
	_, ln := newLoopback(t, "s3cret", false)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, SendAuth(conn, "guess"))

	// server closes the connection without handing it to Accept
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)

	select {
	case <-accepted:
		t.Fatal("connection with wrong password was accepted")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGenerateTLSConfig(t *testing.T) {
	tc, err := GenerateTLSConfig()
	require.NoError(t, err)
	require.Len(t, tc.Certificates, 1)
	assert.Equal(t, []string{protoName}, tc.NextProtos)
}

func TestSendAuthEmptyPassword(t *testing.T) {
	var buf writerCounter
	require.NoError(t, SendAuth(&buf, ""))
	assert.Equal(t, 0, buf.n)
}

type writerCounter struct{ n int }

func (w *writerCounter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}
