package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"session-recorder/internal/annotation"
	"session-recorder/internal/config"
	"session-recorder/internal/recorder"
	"session-recorder/internal/services/archive"
	"session-recorder/internal/services/events"
)

// Post-session servislerinin core tarafındaki yüzleri
type archiver interface {
	Upload(ctx context.Context, sessionID string, files []string) ([]archive.Object, error)
}

type cataloger interface {
	Save(ctx context.Context, res recorder.Result, archivedKeys []string) error
}

type publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type job struct {
	name      string
	sessionID string
	run       func(ctx context.Context) error
}

// pipeline: recorder hook'larından gelen işleri sırayla, tek goroutine'de
// çalıştırır. Kayıt hiçbir zaman bu işleri beklemez.
type pipeline struct {
	archive archiver
	catalog cataloger
	events  publisher
	log     *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	started bool
	closed  bool
	jobs    chan job
	done    chan struct{}
}

const pipelineQueue = 64

func newPipeline(log *zap.Logger) *pipeline {
	return &pipeline{
		log:     log.Named("post"),
		timeout: config.PostSessionTimeout,
		jobs:    make(chan job, pipelineQueue),
		done:    make(chan struct{}),
	}
}

func (p *pipeline) enabled() bool {
	return p.archive != nil || p.catalog != nil || p.events != nil
}

func (p *pipeline) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	go p.loop()
}

func (p *pipeline) loop() {
	defer close(p.done)
	for j := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := j.run(ctx)
		cancel()
		if err != nil {
			p.log.Warn("post-session step failed",
				zap.String("step", j.name), zap.String("session", j.sessionID), zap.Error(err))
			continue
		}
		p.log.Debug("post-session step done", zap.String("step", j.name), zap.String("session", j.sessionID))
	}
}

func (p *pipeline) submit(j job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.started {
		return
	}
	select {
	case p.jobs <- j:
	default:
		p.log.Warn("post-session queue full, dropping", zap.String("step", j.name), zap.String("session", j.sessionID))
	}
}

// close waits for queued work.
func (p *pipeline) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	started := p.started
	close(p.jobs)
	p.mu.Unlock()
	if started {
		<-p.done
	}
}

// --- Hook'lar ---

func (p *pipeline) sessionStarted(s recorder.Session) {
	if p.events == nil {
		return
	}
	p.submit(job{name: "publish started", sessionID: s.ID, run: func(ctx context.Context) error {
		return p.events.Publish(ctx, events.SessionStarted(s))
	}})
}

func (p *pipeline) annotationAdded(s recorder.Session, a annotation.Annotation) {
	if p.events == nil {
		return
	}
	p.submit(job{name: "publish annotation", sessionID: s.ID, run: func(ctx context.Context) error {
		return p.events.Publish(ctx, events.AnnotationAdded(s, a))
	}})
}

func (p *pipeline) sessionEnded(res recorder.Result) {
	if !p.enabled() {
		return
	}
	p.submit(job{name: "finish", sessionID: res.Session.ID, run: func(ctx context.Context) error {
		return p.finish(ctx, res)
	}})
}

// finish: arşiv -> katalog -> olay. Bir adımın hatası diğerlerini durdurmaz.
func (p *pipeline) finish(ctx context.Context, res recorder.Result) error {
	var (
		errs error
		keys []string
	)
	if p.archive != nil {
		objs, err := p.archive.Upload(ctx, res.Session.ID, res.Session.Files())
		errs = multierr.Append(errs, err)
		for _, o := range objs {
			keys = append(keys, o.Key)
		}
	}
	if p.catalog != nil {
		errs = multierr.Append(errs, p.catalog.Save(ctx, res, keys))
	}
	if p.events != nil {
		errs = multierr.Append(errs, p.events.Publish(ctx, events.SessionEnded(res)))
	}
	return errs
}
