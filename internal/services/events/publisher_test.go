package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"session-recorder/internal/annotation"
	"session-recorder/internal/recorder"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

var (
	start = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	sess  = recorder.Session{
		ID:         "20260314_0926_53_lab",
		SourceName: "lab",
		StartedAt:  start,
		EndedAt:    start.Add(90 * time.Second),
		VideoPath:  "/rec/20260314_0926_53_lab.mp4",
		LogPath:    "/rec/20260314_0926_53_lab_log.txt",
	}
)

func TestPublishSessionEnded(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{w: w, log: zap.NewNop()}

	res := recorder.Result{
		Session: sess,
		Stats:   recorder.Stats{Frames: 1350, Skipped: 2, Annotations: 4},
		Aborted: true,
		Err:     errors.New("write frame 1351: broken pipe"),
	}
	require.NoError(t, p.Publish(context.Background(), SessionEnded(res)))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, sess.ID, string(msg.Key))
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, TypeEnded, string(msg.Headers[0].Value))

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	_, err := uuid.Parse(ev.ID)
	assert.NoError(t, err)
	assert.Equal(t, 90.0, ev.DurationSeconds)
	assert.Equal(t, 1350, ev.Frames)
	assert.True(t, ev.Aborted)
	assert.Contains(t, ev.Error, "broken pipe")
	assert.True(t, ev.At.Equal(sess.EndedAt))
}

func TestPublishAnnotation(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{w: w, log: zap.NewNop()}
	a := annotation.Annotation{Text: "slide 3", CreatedAt: start.Add(time.Second), ExpiresAt: start.Add(6 * time.Second)}

	require.NoError(t, p.Publish(context.Background(), AnnotationAdded(sess, a)))

	var ev Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, TypeAnnotation, ev.Type)
	assert.Equal(t, "slide 3", ev.Text)
	assert.Equal(t, "lab", ev.Source)
}

func TestPublishValidates(t *testing.T) {
	p := &Publisher{w: &fakeWriter{}, log: zap.NewNop()}
	assert.Error(t, p.Publish(context.Background(), Event{Type: TypeStarted}))
	assert.Error(t, p.Publish(context.Background(), Event{SessionID: "x"}))
}

func TestPublishWriterError(t *testing.T) {
	p := &Publisher{w: &fakeWriter{err: errors.New("no brokers")}, log: zap.NewNop()}
	err := p.Publish(context.Background(), SessionStarted(sess))
	assert.ErrorContains(t, err, "no brokers")
}
