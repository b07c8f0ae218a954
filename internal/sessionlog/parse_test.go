package sessionlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSession(t *testing.T, path string, notes ...string) {
	t.Helper()
	w := NewWriter(path, nil)
	require.NoError(t, w.Started(start))
	for i, n := range notes {
		require.NoError(t, w.Annotation(start.Add(time.Duration(i+1)*time.Second), n))
	}
	require.NoError(t, w.Ended(start.Add(10*time.Second), 10*time.Second))
}

func TestParseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s_log.txt")
	writeSession(t, path, "first", "second\nwith newline")

	recs, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.True(t, r.Complete())
	assert.Equal(t, start, r.StartedAt)
	assert.Equal(t, start.Add(10*time.Second), r.EndedAt)
	assert.Equal(t, 10*time.Second, r.Duration)
	require.Len(t, r.Annotations, 2)
	assert.Equal(t, "first", r.Annotations[0].Text)
	assert.Equal(t, "second\nwith newline", r.Annotations[1].Text)
	assert.Equal(t, start.Add(2*time.Second), r.Annotations[1].At)
}

func TestParseAbortedAndUnfinished(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a_log.txt")
	w := NewWriter(path, nil)
	require.NoError(t, w.Started(start))
	require.NoError(t, w.Aborted(start.Add(time.Second), assert.AnError))
	require.NoError(t, w.Ended(start.Add(time.Second), time.Second))
	require.NoError(t, w.Started(start.Add(time.Minute)))

	recs, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Aborted)
	assert.Equal(t, assert.AnError.Error(), recs[0].AbortReason)
	assert.False(t, recs[1].Complete())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("[Video Recording Started] yesterday\n"))
	assert.ErrorContains(t, err, "line 1")

	_, err = Parse(strings.NewReader("[Annotation] 2025-04-15 16:30:26.000\nContent: x\n"))
	assert.ErrorContains(t, err, "unterminated")

	_, err = Parse(strings.NewReader("[Duration] abc seconds\n"))
	assert.ErrorContains(t, err, "bad duration")
}

func TestParseSkipsForeignLines(t *testing.T) {
	in := "\n[Video Recording Started] 2025-04-15 16:30:26.000\n[Rectangle Annotation] whatever\nPhysical coordinates: [1, 2]\n"
	recs, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Annotations)
}

func TestSplitSessionID(t *testing.T) {
	at, src, ok := SplitSessionID("20250415_1630_26_sub-01_ses-01_T2w.nii")
	require.True(t, ok)
	assert.Equal(t, "sub-01_ses-01_T2w.nii", src)
	assert.Equal(t, time.Date(2025, 4, 15, 16, 30, 26, 0, time.Local), at)

	_, _, ok = SplitSessionID("notes")
	assert.False(t, ok)
}

func TestBuildAndWriteIndex(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, filepath.Join(dir, "20250415_1630_26_b"+LogSuffix), "x")
	writeSession(t, filepath.Join(dir, "20250415_1629_00_a"+LogSuffix))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))

	entries, err := BuildIndex(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "20250415_1629_00_a", entries[0].SessionID)
	assert.Equal(t, "a", entries[0].Source)
	assert.Len(t, entries[1].Records[0].Annotations, 1)

	path, err := WriteIndex(dir, entries)
	require.NoError(t, err)

	var back []IndexEntry
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Len(t, back, 2)
	assert.Equal(t, 10.0, back[0].Records[0].Seconds)
}
