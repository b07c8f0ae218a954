package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"session-recorder/internal/annotation"
	"session-recorder/internal/clock"
	"session-recorder/internal/config"
	"session-recorder/internal/network"
	"session-recorder/internal/overlay"
	"session-recorder/internal/recorder"
	"session-recorder/internal/region"
	"session-recorder/internal/services/archive"
	"session-recorder/internal/services/audio"
	"session-recorder/internal/services/catalog"
	"session-recorder/internal/services/clipboard"
	"session-recorder/internal/services/control"
	"session-recorder/internal/services/events"
	"session-recorder/internal/services/stream"
	"session-recorder/internal/video"
)

type App struct {
	Config   *config.Config
	Network  *network.Manager
	Recorder *recorder.Recorder
	Tracker  *region.Tracker

	// Servisler
	ControlSvc   *control.Manager
	ClipboardSvc *clipboard.Manager // nil: pano kapalı
	CatalogSvc   *catalog.Store
	EventsSvc    *events.Publisher

	// AutoStart: Run açılışta bir oturum başlatır
	AutoStart bool

	log     *zap.Logger
	post    *pipeline
	closers []func() error
}

// NewApp builds the recorder with the platform grabber, the configured
// video backend, the overlay and (optionally) the microphone.
func NewApp(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	sink, err := stream.NewSink(cfg.Recorder.Backend, log)
	if err != nil {
		return nil, err
	}

	col, err := overlay.ParseColor(cfg.Overlay.Color)
	if err != nil {
		return nil, err
	}
	comp, err := overlay.New(overlay.Options{FontSize: cfg.Overlay.FontSize, Color: col})
	if err != nil {
		return nil, err
	}

	grabber := video.NewGrabber(cfg.Recorder.DisplayIndex)
	deps := recorder.Deps{
		Grabber:    grabber,
		Sink:       sink,
		Compositor: comp,
		Clock:      clock.Real(),
		Log:        log,
	}
	// Nil arayüz tuzağına düşmemek için sadece açıksa atanır
	if cfg.Audio.Enabled {
		deps.Audio = audio.NewSink(log)
	}

	a, err := newApp(cfg, log, deps)
	if err != nil {
		_ = comp.Close()
		_ = grabber.Close()
		return nil, err
	}
	a.closers = append(a.closers, comp.Close, grabber.Close)
	return a, nil
}

func newApp(cfg *config.Config, log *zap.Logger, deps recorder.Deps) (*App, error) {
	a := &App{
		Config:  cfg,
		Network: network.NewManager(cfg, log),
		Tracker: region.NewTracker(cfg.Region),
		log:     log.Named("app"),
		post:    newPipeline(log),
	}

	rec, err := recorder.New(recorder.Options{
		OutputDir:      cfg.Recorder.OutputDir,
		SourceName:     cfg.Recorder.SourceName,
		FPS:            cfg.Recorder.FPS,
		AnnotationTTL:  cfg.Recorder.AnnotationTTL,
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		OnSessionStart: a.sessionStarted,
		OnAnnotation:   a.annotationAdded,
		OnSessionEnd:   a.sessionEnded,
	}, deps)
	if err != nil {
		return nil, err
	}
	a.Recorder = rec
	a.ControlSvc = control.NewManager(a, log)
	return a, nil
}

// Run blocks until ctx is cancelled or SIGINT/SIGTERM arrives, then stops
// the active session and waits for post-session work.
func (a *App) Run(ctx context.Context) error {
	fmt.Println("🚀 Session-Recorder is starting up...")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. POST-SESSION SERVİSLERİ (Arşiv, Katalog, Olaylar)
	a.connectServices(ctx)
	a.post.start()

	// 2. PANO
	if a.Config.Clipboard.Enabled {
		a.startClipboard(ctx)
	}

	// 3. KONTROL KANALI
	if a.Config.Control.Enabled {
		if err := a.startControl(ctx); err != nil {
			fmt.Printf("\n🛑 CONTROL CHANNEL ERROR:\n   -> %v\n", err)
			return multierr.Append(err, a.Close())
		}
	}

	if a.AutoStart {
		if err := a.Start(); err != nil {
			fmt.Println("❌ Recording could not be started:", err)
		}
	}

	fmt.Println("✅ SYSTEM ACTIVE! (Close with CTRL+C)")
	<-ctx.Done()

	fmt.Println("\n👋 It's being shut down....")
	return a.Close()
}

func (a *App) connectServices(ctx context.Context) {
	cfg := a.Config

	if cfg.Archive.Enabled {
		up, err := archive.New(cfg.Archive, a.log)
		if err != nil {
			fmt.Println("⚠️ Archive disabled:", err)
		} else {
			a.post.archive = up
			fmt.Printf("🗄️  Archive Ready: %s/%s\n", cfg.Archive.Endpoint, up.Bucket())
		}
	}

	if cfg.Catalog.Enabled {
		store, err := catalog.Open(ctx, cfg.Catalog.DSN, a.log)
		if err != nil {
			fmt.Println("⚠️ Catalog disabled:", err)
		} else {
			a.CatalogSvc = store
			a.post.catalog = store
			fmt.Println("📚 Session Catalog Connected!")
		}
	}

	if cfg.Events.Enabled {
		a.EventsSvc = events.New(cfg.Events, a.log)
		a.post.events = a.EventsSvc
		fmt.Printf("📣 Events -> %s\n", cfg.Events.Topic)
	}
}

func (a *App) startClipboard(ctx context.Context) {
	if err := clipboard.Init(); err != nil {
		fmt.Println("⚠️ The clipboard service could not be started:", err)
		return
	}
	a.ClipboardSvc = clipboard.NewManager(a.log)
	a.ClipboardSvc.SetCallback(a.clipboardChanged)
	a.ClipboardSvc.StartWatcher(ctx)
	fmt.Println("📋 Clipboard Annotations Active!")
}

// clipboardChanged: kopyalanan metin yalnızca kayıt sırasında not olur.
func (a *App) clipboardChanged(text string) {
	if !a.Recorder.IsRecording() {
		return
	}
	if err := a.Recorder.AddAnnotation(clipboard.Annotation(text)); err != nil {
		a.log.Warn("clipboard annotation failed", zap.Error(err))
	}
}

func (a *App) startControl(ctx context.Context) error {
	fmt.Println("🔐 Network Verification...")
	if err := a.Network.Start(ctx); err != nil {
		return err
	}

	ln, err := a.Network.Listen(a.Config.Control.Port)
	if err != nil {
		return fmt.Errorf("port %d could not be opened: %w", a.Config.Control.Port, err)
	}

	go func() {
		if err := a.ControlSvc.Serve(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			a.log.Error("control channel stopped", zap.Error(err))
		}
	}()

	where := "loopback"
	if a.Network.Tailnet() {
		where = a.Network.MyIP
	}
	fmt.Printf("🎛️  Control Channel Ready: %s:%d\n", where, a.Config.Control.Port)
	return nil
}

// Close stops the active session first so its post-session work is queued
// before the pipeline drains.
func (a *App) Close() error {
	errs := a.Recorder.Close()
	errs = multierr.Append(errs, a.ControlSvc.Close())
	errs = multierr.Append(errs, a.Network.Close())

	a.post.close()

	if a.CatalogSvc != nil {
		a.CatalogSvc.Close()
	}
	if a.EventsSvc != nil {
		errs = multierr.Append(errs, a.EventsSvc.Close())
	}
	for _, c := range a.closers {
		errs = multierr.Append(errs, c())
	}
	a.closers = nil
	return errs
}

// --- RECORDER HOOK'LARI ---

func (a *App) sessionStarted(s recorder.Session) {
	fmt.Printf("🎥 Recording Started -> %s (%s)\n", s.ID, s.Region)
	a.post.sessionStarted(s)
}

func (a *App) annotationAdded(s recorder.Session, n annotation.Annotation) {
	a.post.annotationAdded(s, n)
}

func (a *App) sessionEnded(res recorder.Result) {
	switch {
	case res.Aborted:
		fmt.Printf("🛑 Recording Aborted -> %s: %v\n", res.Session.ID, res.Err)
	case res.Err != nil:
		fmt.Printf("⚠️ Recording Saved With Errors -> %s: %v\n", res.Session.ID, res.Err)
	default:
		fmt.Printf("💾 Recording Saved -> %s (%d frames, %.1fs)\n",
			res.Session.VideoPath, res.Stats.Frames, res.Session.Duration().Seconds())
	}

	// Video yolunu panoya bırak (watcher bunu not saymaz)
	if a.ClipboardSvc != nil && res.Stats.Frames > 0 {
		a.ClipboardSvc.Write(res.Session.VideoPath)
	}
	a.post.sessionEnded(res)
}
