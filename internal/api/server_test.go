package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-ingest/internal/archive"
	"github.com/listenupapp/listenup-ingest/internal/config"
	"github.com/listenupapp/listenup-ingest/internal/epub"
	"github.com/listenupapp/listenup-ingest/internal/media/images"
	"github.com/listenupapp/listenup-ingest/internal/router"
	"github.com/listenupapp/listenup-ingest/internal/search"
	"github.com/listenupapp/listenup-ingest/internal/service"
	"github.com/listenupapp/listenup-ingest/internal/sse"
	"github.com/listenupapp/listenup-ingest/internal/store/sqlite"
	"github.com/listenupapp/listenup-ingest/internal/synthesis"
	"github.com/listenupapp/listenup-ingest/internal/textseg"
)

// fakeEngine voices every request as two seconds of audio, or blocks until
// cancellation when block is set.
type fakeEngine struct {
	mu    sync.Mutex
	block bool
}

func (e *fakeEngine) Synthesize(ctx context.Context, req synthesis.Request, audio io.Writer) ([]synthesis.BoundaryEvent, error) {
	e.mu.Lock()
	block := e.block
	e.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if _, err := io.WriteString(audio, "mp3:"+req.Text); err != nil {
		return nil, err
	}
	return []synthesis.BoundaryEvent{{Text: req.Text, Duration: 2 * synthesis.TicksPerSecond}}, nil
}

type concatMerger struct{}

func (concatMerger) Merge(_ context.Context, inputs []string, _ time.Duration, output string) error {
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

type fixedDurations map[string]float64

func (f fixedDurations) Duration(_ context.Context, path string) (float64, error) {
	if d, ok := f[filepath.Base(path)]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unreadable")
}

type testServer struct {
	*Server
	api    humatest.TestAPI
	engine *fakeEngine
}

// setupTestServer creates a test server with all dependencies over a
// temporary media root.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := sqlite.Open(filepath.Join(tmpDir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.NewSearchIndex(search.Options{DataPath: filepath.Join(tmpDir, "search")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	sseManager := sse.NewManager(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go sseManager.Start(ctx)
	t.Cleanup(cancel)

	cfg := config.Default()
	cfg.Storage.MediaPath = tmpDir
	booksPath := filepath.Join(tmpDir, "books")

	engine := &fakeEngine{}
	tracker := service.NewStatusTracker(st, sseManager, logger)
	searchService := service.NewSearchService(index, logger)
	orchestrator := synthesis.NewOrchestrator(engine, concatMerger{}, textseg.NewSplitter(0.05), nil, nil, synthesis.Options{}, logger)
	synthesisService := service.NewSynthesisService(orchestrator, tracker, st, searchService, sseManager,
		service.SynthesisConfig{BooksPath: booksPath, DefaultVoice: cfg.Synthesis.Voice, Workers: 1}, logger)
	synthesisService.Start()
	t.Cleanup(synthesisService.Stop)

	durations := fixedDurations{"001_audio.mp3": 12.5, "002_audio.mp3": 7.25}
	covers := images.NewProcessor(images.NewCoverStore(), nil, logger)
	services := &Services{
		Ingest: service.NewIngestService(
			router.New(nil),
			archive.NewNormalizer(nil, durations, logger),
			epub.NewIngester(nil, durations, covers, false, logger),
			covers,
			synthesisService,
			tracker,
			searchService,
			booksPath,
			logger,
		),
		Book:      service.NewBookService(st, searchService, sseManager, logger),
		Status:    tracker,
		Synthesis: synthesisService,
		Search:    searchService,
	}

	s := NewServer(st, services, sseManager, &cfg, logger)
	t.Cleanup(s.Close)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.API()),
		engine: engine,
	}
}

// envelope mirrors response.Envelope with raw data for typed decoding.
type envelope struct {
	V       int             `json:"v"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Reason  string          `json:"reason"`
}

func decodeEnvelope(t *testing.T, body []byte, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data), string(env.Data))
	}
	return env
}

const twoEntries = `[{"text":"hello","start":0,"end":1.5},{"text":"world","start":1.5,"end":3}]`

func bundleZip(t *testing.T) []byte {
	t.Helper()
	return zipOf(t, map[string][]byte{
		"001.mp3":  []byte("audio-1"),
		"001.txt":  []byte("hello world"),
		"001.json": []byte(twoEntries),
		"002.mp3":  []byte("audio-2"),
		"002.txt":  []byte("second chapter"),
		"002.json": []byte(`[{"text":"second chapter","start":0,"end":7}]`),
		"003.mp3":  []byte("orphan audio"),
	})
}

func zipOf(t *testing.T, files map[string][]byte) []byte {
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

// submit posts a multipart submission. A non-empty fileName attaches data
// as the file part.
func (ts *testServer) submit(t *testing.T, fields map[string]string, fileName string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/books", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

// ingestBundle submits the standard chapter bundle and returns the book ID.
func (ts *testServer) ingestBundle(t *testing.T, title string) string {
	t.Helper()
	w := ts.submit(t, map[string]string{"title": title}, "bundle.zip", bundleZip(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res IngestResponse
	decodeEnvelope(t, w.Body.Bytes(), &res)
	return res.Book.ID
}

// waitForStatus polls the status endpoint until the book reaches want.
func (ts *testServer) waitForStatus(t *testing.T, bookID, want string) StatusResponse {
	t.Helper()
	var status StatusResponse
	require.Eventually(t, func() bool {
		resp := ts.api.Get("/api/v1/books/" + bookID + "/status")
		if resp.Code != http.StatusOK {
			return false
		}
		decodeEnvelope(t, resp.Body.Bytes(), &status)
		return string(status.Status) == want
	}, 5*time.Second, 20*time.Millisecond)
	return status
}
