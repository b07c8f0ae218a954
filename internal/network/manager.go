package network

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"tailscale.com/tsnet"

	"session-recorder/internal/config"
)

// Manager: kontrol kanalı için dinleyici/bağlantı üretir. Tailnet açıksa
// tsnet üzerinden, değilse yalnızca 127.0.0.1 üzerinden.
type Manager struct {
	Server *tsnet.Server // nil: loopback modu
	Conf   *config.Config
	MyIP   string

	log *zap.Logger
	tls *tls.Config
}

// NewManager: Yeni bir ağ yöneticisi oluşturur.
func NewManager(cfg *config.Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{Conf: cfg, log: log.Named("network")}
	if !cfg.Network.Enabled {
		return m
	}

	// Durum dosyaları için klasör yolu (~/.session-recorder/hostname)
	if cfg.Network.DataDir == "" {
		homeDir, _ := os.UserHomeDir()
		cfg.Network.DataDir = filepath.Join(homeDir, ".session-recorder", cfg.Network.Hostname)
	}
	_ = os.MkdirAll(cfg.Network.DataDir, 0o700)

	tslog := m.log.Named("tsnet").Sugar()
	m.Server = &tsnet.Server{
		Hostname:   cfg.Network.Hostname,
		AuthKey:    cfg.Network.AuthKey,
		ControlURL: cfg.Network.ControlURL,
		Dir:        cfg.Network.DataDir,
		Logf: func(format string, args ...any) {
			if cfg.Network.LogEnabled {
				tslog.Debugf(format, args...)
			}
		},
	}
	return m
}

// Tailnet reports whether listeners go through tsnet.
func (m *Manager) Tailnet() bool { return m.Server != nil }

// Start: VPN ağına bağlanır ve hazır olana kadar bekler. Loopback modunda
// yapacak bir şey yok.
func (m *Manager) Start(ctx context.Context) error {
	if m.Server == nil {
		return nil
	}

	// Motoru tetiklemek için sahte bir dinleyici açıp kapatıyoruz (Kickstart)
	ln, err := m.Server.Listen("tcp", ":0")
	if err == nil {
		ln.Close()
	}

	lc, err := m.Server.LocalClient()
	if err != nil {
		return fmt.Errorf("local client error: %w", err)
	}

	m.log.Info("connecting to tailnet", zap.String("hostname", m.Conf.Network.Hostname))

	// Hazır Olana Kadar Bekle (Timeout config'den gelir)
	timeoutCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeoutCtx.Done():
			return errors.New("timeout: tailnet connection could not be established")
		case <-ticker.C:
			st, err := lc.Status(timeoutCtx)
			if err != nil {
				continue
			}

			// BackendState "Running" olmalı
			if st.BackendState == "Running" {
				for _, ip := range st.TailscaleIPs {
					if ip.Is4() {
						m.MyIP = ip.String()
						m.log.Info("tailnet ready", zap.String("ip", m.MyIP))
						return nil
					}
				}
			}
		}
	}
}

// Listen: Belirtilen portu dinler. Sıra: ham dinleyici -> TLS (opsiyonel)
// -> şifre el sıkışması (opsiyonel).
func (m *Manager) Listen(port int) (net.Listener, error) {
	var (
		ln  net.Listener
		err error
	)
	if m.Server != nil {
		ln, err = m.Server.Listen("tcp", fmt.Sprintf(":%d", port))
	} else {
		ln, err = net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	}
	if err != nil {
		return nil, err
	}

	if m.Conf.Control.TLS {
		tc, err := m.serverTLS()
		if err != nil {
			ln.Close()
			return nil, err
		}
		ln = tls.NewListener(ln, tc)
	}

	return &AuthListener{
		Listener: ln,
		password: m.Conf.Control.Password,
		port:     port,
		log:      m.log,
	}, nil
}

// Dial: hedefe bağlanır, gerekiyorsa TLS açar ve şifreyi gönderir.
func (m *Manager) Dial(ctx context.Context, addr string) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	var (
		conn net.Conn
		err  error
	)
	if m.Server != nil {
		conn, err = m.Server.Dial(dialCtx, "tcp", addr)
	} else {
		d := net.Dialer{KeepAlive: config.KeepAlive}
		conn, err = d.DialContext(dialCtx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(config.KeepAlive)
		_ = tcpConn.SetNoDelay(true)
	}

	if m.Conf.Control.TLS {
		tc := tls.Client(conn, ClientTLSConfig())
		if err := tc.HandshakeContext(dialCtx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("tls handshake: %w", err)
		}
		conn = tc
	}

	// Şifre Varsa Gönder (Handshake)
	if err := SendAuth(conn, m.Conf.Control.Password); err != nil {
		conn.Close()
		return nil, fmt.Errorf("auth send failed: %w", err)
	}
	return conn, nil
}

// Close shuts the tailnet node down.
func (m *Manager) Close() error {
	if m.Server == nil {
		return nil
	}
	return m.Server.Close()
}

func (m *Manager) serverTLS() (*tls.Config, error) {
	if m.tls != nil {
		return m.tls, nil
	}
	tc, err := GenerateTLSConfig()
	if err != nil {
		return nil, err
	}
	m.tls = tc
	return tc, nil
}
