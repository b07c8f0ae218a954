package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Load reads an optional config file plus RECORDER_* environment variables
// on top of NewDefaultConfig. path == "" means environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewDefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and returns a readable error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// setDefaults registers every key so that env-only overrides are picked up
// by Unmarshal (viper ignores env keys it has never heard of).
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("recorder.output_dir", d.Recorder.OutputDir)
	v.SetDefault("recorder.source_name", d.Recorder.SourceName)
	v.SetDefault("recorder.fps", d.Recorder.FPS)
	v.SetDefault("recorder.annotation_ttl", d.Recorder.AnnotationTTL)
	v.SetDefault("recorder.backend", d.Recorder.Backend)
	v.SetDefault("recorder.display_index", d.Recorder.DisplayIndex)

	v.SetDefault("overlay.font_size", d.Overlay.FontSize)
	v.SetDefault("overlay.color", d.Overlay.Color)

	v.SetDefault("audio.enabled", d.Audio.Enabled)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)

	v.SetDefault("region.left", d.Region.Left)
	v.SetDefault("region.top", d.Region.Top)
	v.SetDefault("region.width", d.Region.Width)
	v.SetDefault("region.height", d.Region.Height)

	v.SetDefault("control.enabled", d.Control.Enabled)
	v.SetDefault("control.port", d.Control.Port)
	v.SetDefault("control.password", d.Control.Password)
	v.SetDefault("control.tls", d.Control.TLS)

	v.SetDefault("network.enabled", d.Network.Enabled)
	v.SetDefault("network.hostname", d.Network.Hostname)
	v.SetDefault("network.auth_key", d.Network.AuthKey)
	v.SetDefault("network.control_url", d.Network.ControlURL)
	v.SetDefault("network.data_dir", d.Network.DataDir)
	v.SetDefault("network.log_enabled", d.Network.LogEnabled)

	v.SetDefault("clipboard.enabled", d.Clipboard.Enabled)

	v.SetDefault("archive.enabled", d.Archive.Enabled)
	v.SetDefault("archive.endpoint", d.Archive.Endpoint)
	v.SetDefault("archive.access_key", d.Archive.AccessKey)
	v.SetDefault("archive.secret_key", d.Archive.SecretKey)
	v.SetDefault("archive.bucket", d.Archive.Bucket)
	v.SetDefault("archive.secure", d.Archive.Secure)

	v.SetDefault("events.enabled", d.Events.Enabled)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	v.SetDefault("catalog.enabled", d.Catalog.Enabled)
	v.SetDefault("catalog.dsn", d.Catalog.DSN)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
