package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"session-recorder/internal/annotation"
	"session-recorder/internal/config"
	"session-recorder/internal/recorder"
)

// Olay tipleri
const (
	TypeStarted    = "session.started"
	TypeAnnotation = "session.annotation"
	TypeEnded      = "session.ended"
)

// Event: one lifecycle message, keyed by session id.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"`
	At        time.Time `json:"at"`

	Text string `json:"text,omitempty"`

	VideoPath       string  `json:"video_path,omitempty"`
	AudioPath       string  `json:"audio_path,omitempty"`
	LogPath         string  `json:"log_path,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Frames          int     `json:"frames,omitempty"`
	Skipped         int     `json:"skipped,omitempty"`
	Annotations     int     `json:"annotations,omitempty"`
	Aborted         bool    `json:"aborted,omitempty"`
	Error           string  `json:"error,omitempty"`
}

func SessionStarted(s recorder.Session) Event {
	return Event{
		Type:      TypeStarted,
		SessionID: s.ID,
		Source:    s.SourceName,
		At:        s.StartedAt,
		VideoPath: s.VideoPath,
		LogPath:   s.LogPath,
	}
}

func AnnotationAdded(s recorder.Session, a annotation.Annotation) Event {
	return Event{
		Type:      TypeAnnotation,
		SessionID: s.ID,
		Source:    s.SourceName,
		At:        a.CreatedAt,
		Text:      a.Text,
	}
}

func SessionEnded(res recorder.Result) Event {
	s := res.Session
	ev := Event{
		Type:            TypeEnded,
		SessionID:       s.ID,
		Source:          s.SourceName,
		At:              s.EndedAt,
		VideoPath:       s.VideoPath,
		AudioPath:       s.AudioPath,
		LogPath:         s.LogPath,
		DurationSeconds: s.Duration().Seconds(),
		Frames:          res.Stats.Frames,
		Skipped:         res.Stats.Skipped,
		Annotations:     res.Stats.Annotations,
		Aborted:         res.Aborted,
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	return ev
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events to one Kafka topic.
type Publisher struct {
	w   messageWriter
	log *zap.Logger
}

func New(cfg config.EventsConfig, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{w: w, log: log.Named("events")}
}

// Publish fills ID and At when missing and writes ev synchronously.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if ev.SessionID == "" {
		return errors.New("session_id is required")
	}
	if ev.Type == "" {
		return errors.New("type is required")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.SessionID), // Partition by session
		Value: body,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.ID)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write to kafka: %w", err)
	}
	p.log.Debug("event published", zap.String("type", ev.Type), zap.String("session", ev.SessionID))
	return nil
}

func (p *Publisher) Close() error {
	if p.w == nil {
		return nil
	}
	return p.w.Close()
}
