package di

import (
	"path/filepath"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-ingest/internal/config"
	"github.com/listenupapp/listenup-ingest/internal/di/providers"
	"github.com/listenupapp/listenup-ingest/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Logger.Level = "error"
	cfg.Storage.MediaPath = dir
	cfg.Storage.DatabasePath = filepath.Join(dir, "ingest.db")
	cfg.Synthesis.EdgeTTSPath = "/nonexistent/edge-tts"
	cfg.Synthesis.FFmpegPath = "/nonexistent/ffmpeg"
	return &cfg
}

func TestContainer_WiresServices(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.InboxPath = filepath.Join(cfg.Storage.MediaPath, "inbox")

	injector := NewContainerWithConfig(cfg)
	t.Cleanup(func() { _ = injector.Shutdown() })

	ingest, err := do.Invoke[*service.IngestService](injector)
	require.NoError(t, err)
	assert.NotNil(t, ingest)

	synth := do.MustInvoke[*providers.SynthesisServiceHandle](injector)
	assert.NotNil(t, synth.SynthesisService, "explicit tool paths are trusted")

	searchService := do.MustInvoke[*service.SearchService](injector)
	assert.True(t, searchService.Enabled())

	inbox := do.MustInvoke[*providers.InboxHandle](injector)
	assert.NotNil(t, inbox.Inbox)
	assert.DirExists(t, filepath.Join(cfg.Storage.InboxPath, "processed"))
}

func TestContainer_InboxDisabled(t *testing.T) {
	injector := NewContainerWithConfig(testConfig(t))
	t.Cleanup(func() { _ = injector.Shutdown() })

	inbox := do.MustInvoke[*providers.InboxHandle](injector)
	assert.Nil(t, inbox.Inbox)
	assert.NoError(t, inbox.Shutdown())
}
