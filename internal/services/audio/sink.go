package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// Ses Ayarları
const (
	DefaultSampleRate = 44100
	DefaultChannels   = 2
	Format            = malgo.FormatS16 // 16-bit Signed Integer
	BytesPerSample    = 2
)

var ErrAlreadyStarted = errors.New("audio capture already started")

// DeviceError: the capture device could not be opened or started.
// The recorder treats it as soft and keeps recording video only.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Sink records the default input device into memory until Stop.
type Sink struct {
	// DeviceType: malgo.Capture (mikrofon) veya malgo.Loopback (sistem sesi)
	DeviceType malgo.DeviceType

	log *zap.Logger

	mu         sync.Mutex
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	buf        pcmBuffer
	sampleRate int
	channels   int
}

func NewSink(log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{DeviceType: malgo.Capture, log: log.Named("audio")}
}

// Start opens the device and begins buffering S16 interleaved samples.
func (s *Sink) Start(sampleRate, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return ErrAlreadyStarted
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}

	// Malgo Context başlat (Logları kapat)
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {})
	if err != nil {
		return &DeviceError{Op: "init context", Err: err}
	}

	deviceConfig := malgo.DefaultDeviceConfig(s.DeviceType)
	deviceConfig.Capture.Format = Format
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	s.buf.Reset()

	// Callback: Ses kartından veri geldikçe burası tetiklenir
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			if frameCount == 0 {
				return
			}
			s.buf.Write(pInput)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		freeContext(ctx)
		return &DeviceError{Op: "init device", Err: err}
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(ctx)
		return &DeviceError{Op: "start", Err: err}
	}

	s.ctx = ctx
	s.device = device
	s.sampleRate = sampleRate
	s.channels = channels
	s.log.Debug("audio capture started", zap.Int("sample_rate", sampleRate), zap.Int("channels", channels))
	return nil
}

// Stop halts the device, waits for the callback to finish and returns the
// captured PCM. Not started: (nil, nil).
func (s *Sink) Stop() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return nil, nil
	}

	var err error
	if stopErr := s.device.Stop(); stopErr != nil {
		err = &DeviceError{Op: "stop", Err: stopErr}
	}
	// Uninit blocks until the callback thread is gone.
	s.device.Uninit()
	s.device = nil
	freeContext(s.ctx)
	s.ctx = nil

	pcm := s.buf.Take()
	s.log.Debug("audio capture stopped", zap.Int("bytes", len(pcm)))
	return pcm, err
}

// Format returns the sample rate and channel count of the last Start.
func (s *Sink) Format() (sampleRate, channels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate, s.channels
}

func freeContext(ctx *malgo.AllocatedContext) {
	if ctx == nil {
		return
	}
	_ = ctx.Uninit()
	ctx.Free()
}

// pcmBuffer: callback thread writes, Stop takes. Malgo buffers are reused
// between callbacks so Write copies.
type pcmBuffer struct {
	mu   sync.Mutex
	data []byte
}

func (b *pcmBuffer) Write(p []byte) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
}

func (b *pcmBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.data
	b.data = nil
	if len(out) == 0 {
		return nil
	}
	return out
}

func (b *pcmBuffer) Reset() {
	b.mu.Lock()
	b.data = nil
	b.mu.Unlock()
}
