package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopWithoutStart(t *testing.T) {
	s := NewSink(nil)
	pcm, err := s.Stop()
	assert.NoError(t, err)
	assert.Nil(t, pcm)
}

func TestPCMBufferTake(t *testing.T) {
	var b pcmBuffer
	assert.Nil(t, b.Take())

	src := []byte{1, 2, 3, 4}
	b.Write(src)
	src[0] = 9 // caller reuses its buffer
	b.Write([]byte{5, 6})

	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, b.Take())
	assert.Nil(t, b.Take())
}

func TestWriteWAV(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768, 7}
	pcm := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}

	path := filepath.Join(t.TempDir(), "take.wav")
	require.NoError(t, WriteWAV(path, pcm, 44100, 2))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint32(44100), dec.SampleRate)
	assert.Equal(t, uint16(2), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, buf.Data, len(samples))
	for i, v := range samples {
		assert.Equal(t, int(v), buf.Data[i])
	}
}

func TestWriteWAVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	require.NoError(t, WriteWAV(path, nil, 44100, 2))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0), "header is written")
}

func TestWriteWAVRejectsBadFormat(t *testing.T) {
	assert.Error(t, WriteWAV(filepath.Join(t.TempDir(), "x.wav"), nil, 0, 2))
}

func TestWriteWAVMissingDirectory(t *testing.T) {
	err := WriteWAV(filepath.Join(t.TempDir(), "nope", "x.wav"), []byte{0, 0}, 44100, 1)
	assert.Error(t, err)
}
