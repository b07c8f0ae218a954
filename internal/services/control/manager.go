package control

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"session-recorder/internal/config"
	"session-recorder/internal/protocol"
	"session-recorder/internal/region"
)

// Controller is what the control channel drives; core.App implements it.
type Controller interface {
	Start() error
	Stop() error
	Annotate(text string) error
	SetRegion(r region.Region)
	Status() protocol.Reply
}

// Manager: uzak kontrol kanalı. Aynı anda tek istemci; meşgulken gelen
// bağlantılar kapatılır.
type Manager struct {
	ctrl Controller
	log  *zap.Logger

	mu         sync.Mutex
	ln         net.Listener
	activeConn net.Conn
	closed     bool
}

func NewManager(ctrl Controller, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{ctrl: ctrl, log: log.Named("control")}
}

// Serve accepts clients until the listener is closed.
func (m *Manager) Serve(ln net.Listener) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		ln.Close()
		return net.ErrClosed
	}
	m.ln = ln
	m.mu.Unlock()

	m.log.Info("control channel ready", zap.Stringer("addr", ln.Addr()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		m.mu.Lock()
		if m.activeConn != nil {
			conn.Close() // Meşgul
			m.mu.Unlock()
			m.log.Debug("busy, rejected client", zap.Stringer("remote", conn.RemoteAddr()))
			continue
		}
		m.activeConn = conn
		m.mu.Unlock()

		m.log.Info("control client connected", zap.Stringer("remote", conn.RemoteAddr()))
		go m.readLoop(conn)
	}
}

// Close stops accepting and drops the active client.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	var err error
	if m.ln != nil {
		err = m.ln.Close()
	}
	if m.activeConn != nil {
		m.activeConn.Close()
		m.activeConn = nil
	}
	return err
}

func (m *Manager) readLoop(conn net.Conn) {
	defer func() {
		m.mu.Lock()
		if m.activeConn == conn {
			m.activeConn = nil
		}
		m.mu.Unlock()
		conn.Close()
		m.log.Info("control client disconnected")
	}()

	for {
		var cmd protocol.Command
		if err := protocol.ReadJSON(conn, protocol.TypeCommand, &cmd); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				m.log.Warn("control read failed", zap.Error(err))
			}
			return
		}

		rep := m.Handle(cmd)

		_ = conn.SetWriteDeadline(time.Now().Add(config.WriteTimeout))
		if err := protocol.WriteJSON(conn, protocol.TypeReply, rep); err != nil {
			m.log.Warn("control reply failed", zap.Error(err))
			return
		}
		_ = conn.SetWriteDeadline(time.Time{})
	}
}

// Handle runs one command and builds its reply. The reply always carries
// the recorder status after the command.
func (m *Manager) Handle(cmd protocol.Command) protocol.Reply {
	if err := cmd.Validate(); err != nil {
		return failed(m.ctrl.Status(), err)
	}

	var err error
	switch cmd.Op {
	case protocol.OpStart:
		err = m.ctrl.Start()
	case protocol.OpStop:
		err = m.ctrl.Stop()
	case protocol.OpAnnotate:
		text := cmd.Text
		if cmd.Source != "" {
			text = cmd.Source + ": " + text
		}
		err = m.ctrl.Annotate(text)
	case protocol.OpRegion:
		m.ctrl.SetRegion(*cmd.Region)
	case protocol.OpStatus:
	}

	m.log.Debug("command handled", zap.String("op", cmd.Op), zap.Error(err))
	if err != nil {
		return failed(m.ctrl.Status(), err)
	}
	rep := m.ctrl.Status()
	rep.OK = true
	return rep
}

func failed(rep protocol.Reply, err error) protocol.Reply {
	rep.OK = false
	rep.Error = err.Error()
	return rep
}
