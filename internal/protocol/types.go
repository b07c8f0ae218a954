package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"session-recorder/internal/region"
)

// --- KONTROL KANALI PROTOKOLÜ ---
// Paket: [Type(1)][Size(uint32 LE)][JSON payload]

// Paket Tipleri
const (
	TypeCommand uint8 = 1 // İstemci -> Kaydedici
	TypeReply   uint8 = 2 // Kaydedici -> İstemci
)

const (
	headerSize = 5
	// Güvenlik limiti (tek paket için)
	MaxPayload = 64 * 1024
)

// Komutlar
const (
	OpStart    = "start"
	OpStop     = "stop"
	OpAnnotate = "annotate"
	OpRegion   = "region"
	OpStatus   = "status"
)

var (
	ErrTooLarge       = errors.New("packet too large")
	ErrUnexpectedType = errors.New("unexpected packet type")
	ErrUnknownOp      = errors.New("unknown command")
)

// Command: one request on the control channel.
type Command struct {
	Op     string         `json:"op"`
	Text   string         `json:"text,omitempty"`
	Source string         `json:"source,omitempty"`
	Region *region.Region `json:"region,omitempty"`
}

// Validate checks that the op is known and carries what it needs.
func (c Command) Validate() error {
	switch c.Op {
	case OpStart, OpStop, OpStatus:
		return nil
	case OpAnnotate:
		if c.Text == "" {
			return errors.New("annotate: text is required")
		}
		return nil
	case OpRegion:
		if c.Region == nil {
			return errors.New("region: region is required")
		}
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownOp, c.Op)
	}
}

// SessionInfo: the active or last session as seen by a remote client.
type SessionInfo struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at,omitempty"`
	Region      region.Region `json:"region"`
	VideoPath   string        `json:"video_path"`
	LogPath     string        `json:"log_path"`
	Frames      int           `json:"frames"`
	Skipped     int           `json:"skipped"`
	Annotations int           `json:"annotations"`
}

// Reply: answer to exactly one Command.
type Reply struct {
	OK        bool         `json:"ok"`
	Error     string       `json:"error,omitempty"`
	Recording bool         `json:"recording"`
	State     string       `json:"state,omitempty"`
	Session   *SessionInfo `json:"session,omitempty"`
}

// Err turns a failed reply back into an error.
func (r Reply) Err() error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return errors.New("remote: command failed")
	}
	return fmt.Errorf("remote: %s", r.Error)
}

// WritePacket: Veri paketini ağa yazar
func WritePacket(w io.Writer, typ uint8, data []byte) error {
	if len(data) > MaxPayload {
		return ErrTooLarge
	}
	// Başlık ve veriyi tek Write ile gönder (parçalı paket olmasın)
	buf := make([]byte, headerSize+len(data))
	buf[0] = typ
	binary.LittleEndian.PutUint32(buf[1:headerSize], uint32(len(data)))
	copy(buf[headerSize:], data)

	_, err := w.Write(buf)
	return err
}

// ReadPacket: başlığı ve gövdeyi okur. Limit aşılırsa ErrTooLarge.
func ReadPacket(r io.Reader) (uint8, []byte, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	size := binary.LittleEndian.Uint32(header[1:])
	if size > MaxPayload {
		return 0, nil, ErrTooLarge
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, nil, err
	}
	return header[0], data, nil
}

// WriteJSON encodes v as a packet of the given type.
func WriteJSON(w io.Writer, typ uint8, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return WritePacket(w, typ, data)
}

// ReadJSON reads one packet, checks its type and decodes it into v.
func ReadJSON(r io.Reader, want uint8, v any) error {
	typ, data, err := ReadPacket(r)
	if err != nil {
		return err
	}
	if typ != want {
		return fmt.Errorf("%w: got %d, want %d", ErrUnexpectedType, typ, want)
	}
	return json.Unmarshal(data, v)
}

// Call sends cmd and waits for its reply.
func Call(rw io.ReadWriter, cmd Command) (Reply, error) {
	if err := WriteJSON(rw, TypeCommand, cmd); err != nil {
		return Reply{}, err
	}
	var rep Reply
	if err := ReadJSON(rw, TypeReply, &rep); err != nil {
		return Reply{}, err
	}
	return rep, nil
}
