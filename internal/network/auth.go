package network

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"session-recorder/internal/config"
)

const (
	authPrefix = "AUTH:"
	// Şifre satırı için üst sınır
	maxAuthLine = 256
)

var errAuthLine = errors.New("auth line too long")

// --- AUTH LISTENER (GÜVENLİK SARMALAYICISI) ---
// Gelen bağlantıları süzgeçten geçirir. Şifre yanlışsa anında koparır.
// El sıkışma: istemci "AUTH:<şifre>\n" satırını gönderir.

type AuthListener struct {
	net.Listener
	password string
	port     int
	log      *zap.Logger
}

func (l *AuthListener) Accept() (net.Conn, error) {
	// Hatalı bağlantıları eleyip yenisini beklemek için döngü
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		// Şifresiz mod
		if l.password == "" {
			return conn, nil
		}

		ok, rest, err := l.handshake(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				l.log.Warn("auth handshake read error", zap.Int("port", l.port), zap.Error(err))
			}
			conn.Close()
			continue
		}
		if !ok {
			l.log.Warn("auth failed, wrong password", zap.Int("port", l.port), zap.Stringer("remote", conn.RemoteAddr()))
			conn.Close()
			continue
		}
		return rest, nil
	}
}

// handshake reads the auth line within HandshakeTimeout. The returned conn
// replays whatever was buffered after the line.
func (l *AuthListener) handshake(conn net.Conn) (bool, net.Conn, error) {
	_ = conn.SetReadDeadline(time.Now().Add(config.HandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	br := bufio.NewReaderSize(conn, maxAuthLine)
	line, err := br.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return false, nil, errAuthLine
		}
		return false, nil, err
	}

	got := strings.TrimRight(string(line), "\r\n")
	want := authPrefix + l.password
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return false, nil, nil
	}
	return true, &bufferedConn{Conn: conn, r: br}, nil
}

// SendAuth writes the handshake line. Empty password: nothing to send.
func SendAuth(w io.Writer, password string) error {
	if password == "" {
		return nil
	}
	_, err := io.WriteString(w, authPrefix+password+"\n")
	return err
}

// bufferedConn serves reads from the handshake reader first.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }
