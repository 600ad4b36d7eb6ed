package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-ingest/internal/archive"
	"github.com/listenupapp/listenup-ingest/internal/epub"
	"github.com/listenupapp/listenup-ingest/internal/media/images"
	"github.com/listenupapp/listenup-ingest/internal/router"
	"github.com/listenupapp/listenup-ingest/internal/sse"
	"github.com/listenupapp/listenup-ingest/internal/store"
	"github.com/listenupapp/listenup-ingest/internal/store/sqlite"
	"github.com/listenupapp/listenup-ingest/internal/synthesis"
	"github.com/listenupapp/listenup-ingest/internal/textseg"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// recordingEmitter collects emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeEngine voices every request as two seconds of audio. It fails when
// the text contains failOn, and blocks until cancellation when block is set.
type fakeEngine struct {
	mu     sync.Mutex
	calls  int
	failOn string
	block  bool
}

func (e *fakeEngine) Synthesize(ctx context.Context, req synthesis.Request, audio io.Writer) ([]synthesis.BoundaryEvent, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if e.failOn != "" && bytes.Contains([]byte(req.Text), []byte(e.failOn)) {
		return nil, fmt.Errorf("voice unavailable")
	}
	if _, err := io.WriteString(audio, "mp3:"+req.Text); err != nil {
		return nil, err
	}
	return []synthesis.BoundaryEvent{{Text: req.Text, Offset: 0, Duration: 2 * synthesis.TicksPerSecond}}, nil
}

type copyMerger struct{}

func (copyMerger) Merge(_ context.Context, inputs []string, _ time.Duration, output string) error {
	var buf bytes.Buffer
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return os.WriteFile(output, buf.Bytes(), 0o644)
}

type fakeDurations map[string]float64

func (f fakeDurations) Duration(_ context.Context, path string) (float64, error) {
	if d, ok := f[filepath.Base(path)]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unreadable")
}

// testEnv wires every service over a temporary media root.
type testEnv struct {
	store     *sqlite.Store
	events    *recordingEmitter
	engine    *fakeEngine
	booksPath string
	tracker   *StatusTracker
	search    *SearchService
	synthesis *SynthesisService
	ingest    *IngestService
	books     *BookService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     newTestStore(t),
		events:    &recordingEmitter{},
		engine:    &fakeEngine{},
		booksPath: filepath.Join(t.TempDir(), "books"),
	}
	logger := testLogger()

	env.tracker = NewStatusTracker(env.store, env.events, logger)
	env.search = NewSearchService(nil, logger)

	orchestrator := synthesis.NewOrchestrator(env.engine, copyMerger{}, textseg.NewSplitter(0.05), nil, nil, synthesis.Options{}, logger)
	env.synthesis = NewSynthesisService(orchestrator, env.tracker, env.store, env.search, env.events,
		SynthesisConfig{BooksPath: env.booksPath, DefaultVoice: "zh-CN-YunyangNeural", Workers: 1}, logger)
	t.Cleanup(env.synthesis.Stop)

	durations := fakeDurations{"001_audio.mp3": 12.5, "002_audio.mp3": 7.25}
	covers := images.NewProcessor(images.NewCoverStore(), nil, logger)
	env.ingest = NewIngestService(
		router.New(nil),
		archive.NewNormalizer(nil, durations, logger),
		epub.NewIngester(nil, durations, covers, false, logger),
		covers,
		env.synthesis,
		env.tracker,
		env.search,
		env.booksPath,
		logger,
	)
	env.books = NewBookService(env.store, env.search, env.events, logger)
	return env
}

// bookDirs lists the book directories under the media root.
func (env *testEnv) bookDirs(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(env.booksPath)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func writeZip(t *testing.T, files map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "submission.zip")
	require.NoError(t, os.WriteFile(path, zipBytes(t, files), 0o644))
	return path
}

func zipBytes(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const twoEntries = `[{"text":"hello","start":0,"end":1.5},{"text":"world","start":1.5,"end":3}]`

func archiveBundle() map[string][]byte {
	return map[string][]byte{
		"001.mp3":  []byte("audio-1"),
		"001.txt":  []byte("hello world"),
		"001.json": []byte(twoEntries),
		"002.mp3":  []byte("audio-2"),
		"002.txt":  []byte("second chapter"),
		"002.json": []byte(`[{"text":"second chapter","start":0,"end":7}]`),
		"003.mp3":  []byte("orphan audio"),
	}
}

const epubContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`

const epubPackage = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>The Lighthouse</dc:title>
    <dc:creator>Mara Quill</dc:creator>
  </metadata>
  <manifest>
    <item id="chapter1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="chapter2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
    <itemref idref="chapter2"/>
  </spine>
</package>`

func xhtmlDoc(body string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?><html xmlns="http://www.w3.org/1999/xhtml"><head><title>t</title></head><body>` +
		body + `</body></html>`)
}

func epubBundle(t *testing.T) map[string][]byte {
	doc := zipBytes(t, map[string][]byte{
		"mimetype":               []byte("application/epub+zip"),
		"META-INF/container.xml": []byte(epubContainer),
		"OEBPS/content.opf":      []byte(epubPackage),
		"OEBPS/ch1.xhtml":        xhtmlDoc(`<p>The keeper climbed the stairs.</p>`),
		"OEBPS/ch2.xhtml":        xhtmlDoc(`<p>The storm arrived at night.</p>`),
	})
	return map[string][]byte{
		"book.epub":        doc,
		"ch001_align.json": []byte(`[{"text":"a","start":0,"end":4.25}]`),
		"ch002_align.json": []byte(`[{"text":"b","start":0,"end":6.5}]`),
	}
}

func defaultPage() store.PaginationParams {
	return store.DefaultPaginationParams()
}
