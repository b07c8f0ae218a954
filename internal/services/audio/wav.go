package audio

import (
	"encoding/binary"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV stores interleaved little-endian S16 pcm as a 16-bit PCM wav.
// An empty pcm still produces a valid, zero-length file.
func WriteWAV(path string, pcm []byte, sampleRate, channels int) error {
	if channels <= 0 || sampleRate <= 0 {
		return fmt.Errorf("wav: invalid format %d Hz x %d", sampleRate, channels)
	}
	if len(pcm)%BytesPerSample != 0 {
		pcm = pcm[:len(pcm)-len(pcm)%BytesPerSample]
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(pcm)/BytesPerSample),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("wav write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("wav finalize %s: %w", path, err)
	}
	return f.Close()
}
