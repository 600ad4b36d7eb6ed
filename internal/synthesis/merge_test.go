package synthesis

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-ingest/internal/domain"
	"github.com/listenupapp/listenup-ingest/internal/errors"
)

func TestMergeArgs_WithGap(t *testing.T) {
	args := MergeArgs([]string{"a.mp3", "b.mp3", "c.mp3"}, time.Second, "128k", "out.mp3")

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "a.mp3", "-i", "b.mp3", "-i", "c.mp3",
		"-filter_complex",
		"[0:a]apad=pad_dur=1[a0];[1:a]apad=pad_dur=1[a1];[2:a]anull[a2];[a0][a1][a2]concat=n=3:v=0:a=1[out]",
		"-map", "[out]",
		"-codec:a", "libmp3lame",
		"-b:a", "128k",
		"-y", "out.mp3",
	}, args)
}

func TestMergeArgs_NoGap(t *testing.T) {
	args := MergeArgs([]string{"a.mp3", "b.mp3"}, 0, "64k", "out.mp3")
	assert.Contains(t, args, "[0:a][1:a]concat=n=2:v=0:a=1[out]")
	assert.Contains(t, args, "64k")
}

func TestMergeArgs_FractionalGap(t *testing.T) {
	args := MergeArgs([]string{"a.mp3", "b.mp3"}, 1500*time.Millisecond, "128k", "out.mp3")
	assert.Contains(t, args, "[0:a]apad=pad_dur=1.5[a0];[1:a]anull[a1];[a0][a1]concat=n=2:v=0:a=1[out]")
}

func TestMergeAlignments(t *testing.T) {
	seg := func(text string, end float64) domain.Alignment {
		return domain.Alignment{{Text: text, Start: 0, End: end}}
	}
	parts := []Part{
		{Alignment: seg("one", 10), Duration: 10},
		{Alignment: seg("two", 12), Duration: 12},
		{Alignment: seg("three", 8), Duration: 8},
	}

	merged, total := MergeAlignments(parts, time.Second)

	assert.Equal(t, 32.0, total)
	require.Len(t, merged, 3)
	assert.Equal(t, 11.0, merged[1].Start)
	assert.Equal(t, 24.0, merged[2].Start)
	assert.Equal(t, 32.0, merged[2].End)
	assert.NoError(t, merged.Validate())
}

func TestMergeAlignments_Empty(t *testing.T) {
	merged, total := MergeAlignments(nil, time.Second)
	assert.NotNil(t, merged)
	assert.Zero(t, total)
}

// fakeBinary writes an executable shell script.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "fake")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestFFmpegMerger_SingleInputIsCopied(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "seg.mp3")
	dst := filepath.Join(dir, "out.mp3")
	require.NoError(t, os.WriteFile(src, []byte("audio"), 0o644))

	m, err := NewFFmpegMerger(fakeBinary(t, "exit 1\n"), "", 0)
	require.NoError(t, err)
	require.NoError(t, m.Merge(context.Background(), []string{src}, time.Second, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
}

func TestFFmpegMerger_NonZeroExit(t *testing.T) {
	m, err := NewFFmpegMerger(fakeBinary(t, "echo 'Invalid data found' >&2\nexit 1\n"), "128k", time.Minute)
	require.NoError(t, err)

	err = m.Merge(context.Background(), []string{"a.mp3", "b.mp3"}, time.Second, filepath.Join(t.TempDir(), "out.mp3"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSynthesis))
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestFFmpegMerger_Timeout(t *testing.T) {
	m, err := NewFFmpegMerger(fakeBinary(t, "exec sleep 5\n"), "128k", 100*time.Millisecond)
	require.NoError(t, err)

	err = m.Merge(context.Background(), []string{"a.mp3", "b.mp3"}, time.Second, filepath.Join(t.TempDir(), "out.mp3"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSynthesis))
	assert.Contains(t, err.Error(), "timed out")
}

func TestFFmpegMerger_NoInputs(t *testing.T) {
	m, err := NewFFmpegMerger(fakeBinary(t, "exit 0\n"), "", 0)
	require.NoError(t, err)
	assert.Error(t, m.Merge(context.Background(), nil, 0, "out.mp3"))
}
