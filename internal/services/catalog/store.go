package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"session-recorder/internal/recorder"
	"session-recorder/internal/sessionlog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// database: the part of *pgxpool.Pool the store writes through.
type database interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store keeps one row per finished session plus its annotations.
type Store struct {
	db   database
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Open applies pending migrations and connects a pool.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("catalog")

	if err := Migrate(dsn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("catalog connected")
	return &Store{db: pool, pool: pool, log: log}, nil
}

// Migrate runs the embedded migrations up to the latest version.
func Migrate(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

const upsertSession = `
INSERT INTO sessions (
    id, source, region_left, region_top, region_width, region_height,
    started_at, ended_at, duration_seconds, frames, skipped,
    video_path, audio_path, log_path, aborted, error, archived_keys
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (id) DO UPDATE SET
    ended_at = EXCLUDED.ended_at,
    duration_seconds = EXCLUDED.duration_seconds,
    frames = EXCLUDED.frames,
    skipped = EXCLUDED.skipped,
    audio_path = EXCLUDED.audio_path,
    aborted = EXCLUDED.aborted,
    error = EXCLUDED.error,
    archived_keys = EXCLUDED.archived_keys`

const (
	deleteAnnotations = `DELETE FROM session_annotations WHERE session_id = $1`
	insertAnnotation  = `INSERT INTO session_annotations (session_id, seq, at, text) VALUES ($1, $2, $3, $4)`
)

// Save upserts the session row and replaces its annotations with the ones
// read back from the session log, in one transaction.
func (s *Store) Save(ctx context.Context, res recorder.Result, archivedKeys []string) error {
	id := res.Session.ID
	notes, noteErr := sessionNotes(res.Session)
	if noteErr != nil {
		// Log okunamazsa satır yine de kayıtlı kalır
		s.log.Warn("session log unreadable, annotations not cataloged", zap.String("id", id), zap.Error(noteErr))
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	// Commit sonrası Rollback etkisizdir
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, upsertSession, sessionArgs(res, archivedKeys)...); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}

	if noteErr == nil {
		if _, err := tx.Exec(ctx, deleteAnnotations, id); err != nil {
			return fmt.Errorf("clear annotations %s: %w", id, err)
		}
		for i, n := range notes {
			if _, err := tx.Exec(ctx, insertAnnotation, id, i+1, n.At, n.Text); err != nil {
				return fmt.Errorf("save annotation %d of %s: %w", i+1, id, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session %s: %w", id, err)
	}
	s.log.Debug("session cataloged", zap.String("id", id), zap.Int("annotations", len(notes)))
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func sessionArgs(res recorder.Result, archivedKeys []string) []any {
	sess := res.Session
	var (
		endedAt   *time.Time
		audioPath *string
		errText   *string
	)
	if !sess.EndedAt.IsZero() {
		endedAt = &sess.EndedAt
	}
	if sess.AudioPath != "" {
		audioPath = &sess.AudioPath
	}
	if res.Err != nil {
		msg := res.Err.Error()
		errText = &msg
	}
	if archivedKeys == nil {
		archivedKeys = []string{}
	}
	return []any{
		sess.ID, sess.SourceName,
		sess.Region.Left, sess.Region.Top, sess.Region.Width, sess.Region.Height,
		sess.StartedAt, endedAt, sess.Duration().Seconds(),
		res.Stats.Frames, res.Stats.Skipped,
		sess.VideoPath, audioPath, sess.LogPath,
		res.Aborted, errText, archivedKeys,
	}
}

// sessionNotes returns the annotations of the record this session wrote.
// A log may hold several records when ids collide; the last one wins.
func sessionNotes(sess recorder.Session) ([]sessionlog.Note, error) {
	recs, err := sessionlog.ParseFile(sess.LogPath)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[len(recs)-1].Annotations, nil
}
