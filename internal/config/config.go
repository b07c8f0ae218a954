package config

import (
	"time"

	"session-recorder/internal/region"
)

// --- SABİTLER ---

const (
	AppName    = "Session-Recorder"
	AppVersion = "1.0.0"

	// Kayıt varsayılanları
	DefaultFPS           = 15
	DefaultAnnotationTTL = 5 * time.Second
	DefaultFontSize      = 20
	DefaultSampleRate    = 44100
	DefaultChannels      = 2
	DefaultBackend       = "ffmpeg"

	// Kontrol kanalı portu (yerel veya tailnet)
	PortControl = 9100

	DefaultControlURL = "https://controlplane.tailscale.com"
	EnvPrefix         = "RECORDER"
)

// --- YAPILANDIRMA YAPILARI ---

type Config struct {
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Overlay   OverlayConfig   `mapstructure:"overlay"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Region    region.Region   `mapstructure:"region"`
	Control   ControlConfig   `mapstructure:"control"`
	Network   NetworkConfig   `mapstructure:"network"`
	Clipboard ClipboardConfig `mapstructure:"clipboard"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Events    EventsConfig    `mapstructure:"events"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Log       LogConfig       `mapstructure:"log"`
}

type RecorderConfig struct {
	OutputDir     string        `mapstructure:"output_dir" validate:"required"`
	SourceName    string        `mapstructure:"source_name" validate:"required,excludesall=/\\"`
	FPS           int           `mapstructure:"fps" validate:"min=1,max=120"`
	AnnotationTTL time.Duration `mapstructure:"annotation_ttl" validate:"gt=0"`
	Backend       string        `mapstructure:"backend" validate:"oneof=ffmpeg x264"`
	DisplayIndex  int           `mapstructure:"display_index" validate:"min=0"`
}

type OverlayConfig struct {
	FontSize float64 `mapstructure:"font_size" validate:"gt=0"`
	Color    string  `mapstructure:"color" validate:"hexcolor"`
}

type AudioConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	SampleRate int  `mapstructure:"sample_rate" validate:"omitempty,min=8000,max=192000"`
	Channels   int  `mapstructure:"channels" validate:"omitempty,min=1,max=2"`
}

type ControlConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Port     int    `mapstructure:"port" validate:"min=0,max=65535"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
}

type NetworkConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Hostname   string `mapstructure:"hostname" validate:"required_if=Enabled true"`
	AuthKey    string `mapstructure:"auth_key"`
	ControlURL string `mapstructure:"control_url" validate:"omitempty,url"`
	DataDir    string `mapstructure:"data_dir"` // .session-recorder klasörü
	LogEnabled bool   `mapstructure:"log_enabled"`
}

type ClipboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Secure    bool   `mapstructure:"secure"`
}

type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `mapstructure:"topic" validate:"required_if=Enabled true"`
}

type CatalogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// NewDefaultConfig: Varsayılan ayarları döndürür
func NewDefaultConfig() *Config {
	return &Config{
		Recorder: RecorderConfig{
			OutputDir:     "recorded_materials",
			SourceName:    "screen",
			FPS:           DefaultFPS,
			AnnotationTTL: DefaultAnnotationTTL,
			Backend:       DefaultBackend,
		},
		Overlay: OverlayConfig{
			FontSize: DefaultFontSize,
			Color:    "#ffffff",
		},
		Audio: AudioConfig{
			Enabled:    true,
			SampleRate: DefaultSampleRate,
			Channels:   DefaultChannels,
		},
		Region: region.Region{Width: 1280, Height: 720},
		Control: ControlConfig{
			Port: PortControl,
		},
		Network: NetworkConfig{
			ControlURL: DefaultControlURL,
		},
		Archive: ArchiveConfig{
			Bucket: "recordings",
		},
		Events: EventsConfig{
			Topic: "recording.sessions",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Timeout Ayarları
const (
	ConnectTimeout   = 30 * time.Second
	HandshakeTimeout = 3 * time.Second
	ReadTimeout      = 10 * time.Second
	WriteTimeout     = 5 * time.Second
	KeepAlive        = 10 * time.Second
	// Post-session adımları (arşiv, katalog, olay) için üst sınır
	PostSessionTimeout = 2 * time.Minute
)
