package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"session-recorder/internal/recorder"
	"session-recorder/internal/region"
	"session-recorder/internal/sessionlog"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	calls      []execCall
	failOn     string
	commits    int
	rollbacks  int
	beginErr   error
	rolledBack []execCall
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return &fakeTx{db: d}, nil
}

// fakeTx buffers statements until Commit; unimplemented pgx.Tx methods panic.
type fakeTx struct {
	pgx.Tx
	db      *fakeDB
	pending []execCall
	done    bool
}

func (tx *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx.db.failOn != "" && strings.Contains(sql, tx.db.failOn) {
		return pgconn.CommandTag{}, errors.New("relation does not exist")
	}
	tx.pending = append(tx.pending, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (tx *fakeTx) Commit(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.commits++
	tx.db.calls = append(tx.db.calls, tx.pending...)
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.rollbacks++
	tx.db.rolledBack = append(tx.db.rolledBack, tx.pending...)
	return nil
}

var t0 = time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

func writeSessionLog(t *testing.T, notes ...string) recorder.Session {
	t.Helper()
	dir := t.TempDir()
	sess := recorder.Session{
		ID:         "20260314_0926_53_lab",
		SourceName: "lab",
		Region:     region.Region{Width: 640, Height: 480},
		StartedAt:  t0,
		EndedAt:    t0.Add(12 * time.Second),
		VideoPath:  filepath.Join(dir, "20260314_0926_53_lab.mp4"),
		LogPath:    filepath.Join(dir, "20260314_0926_53_lab_log.txt"),
	}
	w := sessionlog.NewWriter(sess.LogPath, nil)
	require.NoError(t, w.Started(t0))
	for i, n := range notes {
		require.NoError(t, w.Annotation(t0.Add(time.Duration(i+1)*time.Second), n))
	}
	require.NoError(t, w.Ended(sess.EndedAt, sess.Duration()))
	return sess
}

func TestSaveWritesSessionAndAnnotations(t *testing.T) {
	db := &fakeDB{}
	s := &Store{db: db, log: zap.NewNop()}
	sess := writeSessionLog(t, "intro", "demo")

	res := recorder.Result{Session: sess, Stats: recorder.Stats{Frames: 180, Skipped: 1, Annotations: 2}}
	require.NoError(t, s.Save(context.Background(), res, []string{"k1"}))

	assert.Equal(t, 1, db.commits)
	require.Len(t, db.calls, 4)
	assert.Contains(t, db.calls[0].sql, "INSERT INTO sessions")
	args := db.calls[0].args
	require.Len(t, args, 17)
	assert.Equal(t, sess.ID, args[0])
	assert.Equal(t, 640, args[4])
	assert.Equal(t, 12.0, args[8])
	assert.Equal(t, 180, args[9])
	assert.Nil(t, args[12], "no audio path")
	assert.Nil(t, args[15], "no error text")
	assert.Equal(t, []string{"k1"}, args[16])

	assert.Contains(t, db.calls[1].sql, "DELETE FROM session_annotations")
	note := db.calls[2].args
	require.Len(t, note, 4)
	assert.Equal(t, sess.ID, note[0])
	assert.Equal(t, 1, note[1])
	assert.True(t, t0.Add(time.Second).Equal(note[2].(time.Time)))
	assert.Equal(t, "intro", note[3])
	assert.Equal(t, "demo", db.calls[3].args[3])
}

func TestSaveWithoutLogStillSavesRow(t *testing.T) {
	db := &fakeDB{}
	s := &Store{db: db, log: zap.NewNop()}
	sess := writeSessionLog(t)
	require.NoError(t, os.Remove(sess.LogPath))

	require.NoError(t, s.Save(context.Background(), recorder.Result{Session: sess, Err: errors.New("boom")}, nil))
	require.Len(t, db.calls, 1)
	msg := db.calls[0].args[15].(*string)
	assert.Equal(t, "boom", *msg)
	assert.Equal(t, []string{}, db.calls[0].args[16])
}

func TestSaveReportsDatabaseError(t *testing.T) {
	db := &fakeDB{failOn: "INSERT INTO sessions"}
	s := &Store{db: db, log: zap.NewNop()}
	sess := writeSessionLog(t)
	err := s.Save(context.Background(), recorder.Result{Session: sess}, nil)
	assert.ErrorContains(t, err, "relation does not exist")
	assert.Equal(t, 1, db.rollbacks)
	assert.Zero(t, db.commits)
}

func TestSaveRollsBackPartialAnnotations(t *testing.T) {
	db := &fakeDB{failOn: "INSERT INTO session_annotations"}
	s := &Store{db: db, log: zap.NewNop()}
	sess := writeSessionLog(t, "intro", "demo")

	err := s.Save(context.Background(), recorder.Result{Session: sess}, nil)
	assert.ErrorContains(t, err, "save annotation 1")

	assert.Empty(t, db.calls, "nothing committed")
	assert.Zero(t, db.commits)
	assert.Equal(t, 1, db.rollbacks)
	require.Len(t, db.rolledBack, 2)
	assert.Contains(t, db.rolledBack[1].sql, "DELETE FROM session_annotations")
}

func TestSaveBeginFailure(t *testing.T) {
	s := &Store{db: &fakeDB{beginErr: errors.New("pool closed")}, log: zap.NewNop()}
	sess := writeSessionLog(t)
	err := s.Save(context.Background(), recorder.Result{Session: sess}, nil)
	assert.ErrorContains(t, err, "pool closed")
}

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	defer src.Close()

	v, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	up, ident, err := src.ReadUp(v)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "create_sessions", ident)
}
