package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"session-recorder/internal/config"
	"session-recorder/internal/core"
	"session-recorder/internal/logger"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "index":
			os.Exit(runIndex(os.Args[2:]))
		case "ctl":
			os.Exit(runCtl(os.Args[2:]))
		}
	}
	os.Exit(runRecord(os.Args[1:]))
}

func runRecord(args []string) int {
	fs := flag.NewFlagSet("recorder", flag.ExitOnError)

	configPath := fs.String("config", "", "Yapılandırma dosyası (yaml/json/toml)")

	// Kayıt Ayarları
	dir := fs.String("dir", "", "Kayıt klasörü")
	source := fs.String("source", "", "Kaynak adı (dosya adına eklenir)")
	fps := fs.Int("fps", 0, "FPS")
	backend := fs.String("backend", "", "Video arka ucu: ffmpeg | x264")
	display := fs.Int("display", 0, "Ekran numarası")
	noAudio := fs.Bool("no-audio", false, "Mikrofonu kaydetme")
	idle := fs.Bool("idle", false, "Açılışta kayda başlama (/start bekle)")

	// Bölge
	x := fs.Int("x", 0, "Bölge sol kenarı")
	y := fs.Int("y", 0, "Bölge üst kenarı")
	w := fs.Int("w", 0, "Genişlik")
	h := fs.Int("h", 0, "Yükseklik")

	// Kontrol Kanalı ve Ağ
	control := fs.Bool("control", false, "Kontrol kanalını aç")
	port := fs.Int("port", 0, "Kontrol portu")
	password := fs.String("password", "", "Kontrol kanalı şifresi")
	useTLS := fs.Bool("tls", false, "Kontrol kanalında TLS")
	tailnet := fs.Bool("tailnet", false, "Kontrol kanalını tailnet üzerinden aç")
	hostname := fs.String("host", "", "Tailnet cihaz adı")
	authKey := fs.String("key", "", "Tailnet auth key")
	clip := fs.Bool("clipboard", false, "Kopyalanan metni not olarak ekle")

	logLevel := fs.String("log", "", "Log seviyesi: debug | info | warn | error")

	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("❌ Config error:", err)
		return 1
	}

	// Sadece verilen bayraklar dosya/env ayarlarını ezer
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["dir"] {
		cfg.Recorder.OutputDir = *dir
	}
	if set["source"] {
		cfg.Recorder.SourceName = *source
	}
	if set["fps"] {
		cfg.Recorder.FPS = *fps
	}
	if set["backend"] {
		cfg.Recorder.Backend = *backend
	}
	if set["display"] {
		cfg.Recorder.DisplayIndex = *display
	}
	if *noAudio {
		cfg.Audio.Enabled = false
	}
	if set["x"] {
		cfg.Region.Left = *x
	}
	if set["y"] {
		cfg.Region.Top = *y
	}
	if set["w"] {
		cfg.Region.Width = *w
	}
	if set["h"] {
		cfg.Region.Height = *h
	}
	if *control {
		cfg.Control.Enabled = true
	}
	if set["port"] {
		cfg.Control.Port = *port
	}
	if set["password"] {
		cfg.Control.Password = *password
	}
	if *useTLS {
		cfg.Control.TLS = true
	}
	if *tailnet {
		cfg.Network.Enabled = true
	}
	if set["host"] {
		cfg.Network.Hostname = *hostname
	}
	if set["key"] {
		cfg.Network.AuthKey = *authKey
	}
	if cfg.Network.Enabled && cfg.Network.Hostname == "" {
		// Sistem adını otomatik al
		cfg.Network.Hostname, _ = os.Hostname()
	}
	if *clip {
		cfg.Clipboard.Enabled = true
	}
	if set["log"] {
		cfg.Log.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Println("❌", err)
		return 1
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Println("❌ Logger error:", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	app, err := core.NewApp(cfg, log)
	if err != nil {
		fmt.Println("❌ Recorder could not be created:", err)
		return 1
	}
	app.AutoStart = !*idle

	fmt.Println("⌨️  Type a note and press Enter to annotate. /start, /stop, /status")
	go readConsole(os.Stdin, os.Stdout, app)

	if err := app.Run(context.Background()); err != nil {
		fmt.Println("⚠️ Shutdown finished with errors:", err)
		return 1
	}
	return 0
}
