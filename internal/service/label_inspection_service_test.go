package service

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/label-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/label-inspector-go/internal/errors"
	"github.com/anime-shed/label-inspector-go/internal/ingest"
	"github.com/anime-shed/label-inspector-go/internal/observer"
	"github.com/anime-shed/label-inspector-go/internal/ocr"
	"github.com/anime-shed/label-inspector-go/internal/preprocess"
	"github.com/anime-shed/label-inspector-go/internal/storage"
)

// Minimal 1x1 PNG
var pngData = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

var pngDataURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)

const labelReply = "```json\n" + `{
  "productName": "Simple Syrup",
  "keyIngredients": [
    {"name": "Sugar", "purpose": "sweetener"},
    {"name": "Salt", "purpose": "flavour"},
    {"name": "Water", "purpose": "base"}
  ],
  "safetyRating": 7,
  "hazardLevel": "Low",
  "healthWarnings": [],
  "recommendations": ["Enjoy in moderation"]
}` + "\n```"

type recordingObserver struct {
	mu     sync.Mutex
	events []observer.PipelineEvent
}

func (o *recordingObserver) OnEvent(_ context.Context, e observer.PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) GetObserverName() string { return "recording" }

func (o *recordingObserver) stages() map[string]bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]bool)
	for _, e := range o.events {
		if e.EventType == observer.StageCompleted {
			out[e.Stage] = true
		}
	}
	return out
}

func (o *recordingObserver) count(t observer.EventType) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.events {
		if e.EventType == t {
			n++
		}
	}
	return n
}

type fakeArchiver struct {
	err   error
	calls atomic.Int32
}

func (a *fakeArchiver) Archive(ctx context.Context, localPath, contentType string) (string, error) {
	a.calls.Add(1)
	if a.err != nil {
		return "", a.err
	}
	return "https://example.blob.core.windows.net/labels/" + filepath.Base(localPath), nil
}

type harness struct {
	dir       string
	svc       LabelInspectionService
	events    *observer.EventPublisher
	recorder  *recordingObserver
	archiver  *fakeArchiver
	ocrCalls  atomic.Int32
	genCalls  atomic.Int32
	ocrText   string
	ocrErr    error
	reply     string
	genErr    error
	normalize preprocess.Normalizer
}

func newHarness(t *testing.T, opts ...func(*harness)) *harness {
	t.Helper()
	h := &harness{
		dir:       filepath.Join(t.TempDir(), "uploads"),
		ocrText:   "INGREDIENTS: Sugar, Salt, Water\n",
		reply:     labelReply,
		archiver:  &fakeArchiver{},
		recorder:  &recordingObserver{},
		normalize: preprocess.NewNormalizer(preprocess.DefaultOptions()),
	}
	for _, opt := range opts {
		opt(h)
	}

	store := storage.NewLocalStore(h.dir, "/uploads")
	h.events = observer.NewEventPublisher()
	h.events.Subscribe(h.recorder)

	extractor := ocr.ExtractorFunc(func(ctx context.Context, path string) (string, error) {
		h.ocrCalls.Add(1)
		assert.True(t, preprocess.IsProcessed(path), "OCR must run on the normalized image")
		return h.ocrText, h.ocrErr
	})
	gen := analyzer.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		h.genCalls.Add(1)
		return h.reply, h.genErr
	})

	svc, err := NewLabelInspectionService(Pipeline{
		Ingestor:   ingest.NewIngestor(store, ingest.NewNameGenerator(), 5*1024*1024),
		Normalizer: h.normalize,
		Extractor:  extractor,
		Analyzer:   analyzer.NewIngredientAnalyzer(gen, 5000),
		Store:      store,
		Archiver:   h.archiver,
		Events:     h.events,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) processedFiles(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(h.dir, preprocess.ProcessedPrefix+"*"))
	require.NoError(t, err)
	return matches
}

func TestInspect_EndToEnd(t *testing.T) {
	h := newHarness(t)

	report, err := h.svc.Inspect(context.Background(), "req-1", ingest.Source{DataURI: pngDataURI})
	require.NoError(t, err)
	h.events.Wait()

	assert.Equal(t, "req-1", report.RequestID)
	assert.True(t, strings.HasPrefix(report.ImagePath, "/uploads/"))
	assert.True(t, strings.HasSuffix(report.ImagePath, ".png"))
	assert.Equal(t, "INGREDIENTS: Sugar, Salt, Water", report.ExtractedText)

	require.NotNil(t, report.Analysis)
	require.NotEmpty(t, report.Analysis.KeyIngredients)
	var names []string
	for _, ing := range report.Analysis.KeyIngredients {
		names = append(names, strings.ToLower(ing.Name))
	}
	assert.Contains(t, names, "sugar")
	require.NotNil(t, report.Analysis.SafetyRating)
	assert.Equal(t, "Moderately safe, consume in moderation", report.Analysis.RatingExplanation)

	// original kept and served, normalized copy removed
	_, err = os.Stat(filepath.Join(h.dir, filepath.Base(report.ImagePath)))
	assert.NoError(t, err)
	assert.Empty(t, h.processedFiles(t))

	assert.Equal(t, int32(1), h.archiver.calls.Load())
	assert.Equal(t, map[string]bool{
		"ingested": true, "normalized": true, "text_extracted": true, "analyzed": true, "rendered": true,
	}, h.recorder.stages())
	assert.Equal(t, 1, h.recorder.count(observer.RequestCompleted))
}

func TestInspect_NoImage(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Inspect(context.Background(), "req-2", ingest.Source{})
	h.events.Wait()

	assert.ErrorIs(t, err, apperrors.ErrNoImageProvided)
	assert.Equal(t, "Please upload an image file", apperrors.UserMessage(err))
	assert.Equal(t, "last_stage=received", apperrors.DetailsOf(err))
	assert.Zero(t, h.ocrCalls.Load())
	assert.Zero(t, h.genCalls.Load())
	assert.Zero(t, h.archiver.calls.Load())
	assert.Equal(t, 1, h.recorder.count(observer.RequestFailed))
	assert.Empty(t, h.recorder.stages())
}

func TestInspect_MalformedDataURINoDownstreamCalls(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Inspect(context.Background(), "req-3", ingest.Source{DataURI: "data:image/png;base64,%%%"})

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
	assert.Zero(t, h.ocrCalls.Load())
	assert.Zero(t, h.genCalls.Load())
	_, statErr := os.Stat(h.dir)
	assert.True(t, os.IsNotExist(statErr), "nothing written")
}

func TestInspect_AnalysisFailureStillCleansUp(t *testing.T) {
	h := newHarness(t, func(h *harness) { h.reply = "Sorry, I cannot analyze this." })

	_, err := h.svc.Inspect(context.Background(), "req-4", ingest.Source{DataURI: pngDataURI})
	h.events.Wait()

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAnalysisFailed))
	assert.Equal(t, apperrors.AnalysisFailedMessage, apperrors.UserMessage(err))
	assert.Equal(t, int32(1), h.genCalls.Load())
	assert.Empty(t, h.processedFiles(t))
	assert.Equal(t, 0, h.recorder.count(observer.RequestCompleted))
	assert.Equal(t, 1, h.recorder.count(observer.RequestFailed))
}

func TestInspect_OCRFailureIsStageFailure(t *testing.T) {
	h := newHarness(t, func(h *harness) { h.ocrErr = errors.New("tesseract crashed") })

	_, err := h.svc.Inspect(context.Background(), "req-5", ingest.Source{DataURI: pngDataURI})

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStageFailure))
	assert.Equal(t, "Failed to read text from image", apperrors.UserMessage(err))
	assert.NotContains(t, apperrors.UserMessage(err), "tesseract")
	assert.Equal(t, "last_stage=normalized", apperrors.DetailsOf(err))
	assert.Equal(t, int32(1), h.ocrCalls.Load(), "no retries")
	assert.Zero(t, h.genCalls.Load())
	assert.Empty(t, h.processedFiles(t))
}

type partialNormalizer struct{}

func (partialNormalizer) Normalize(ctx context.Context, src string) (string, error) {
	out := filepath.Join(filepath.Dir(src), preprocess.ProcessedName(src))
	if err := os.WriteFile(out, []byte("half written"), 0o644); err != nil {
		return "", err
	}
	return "", errors.New("encoder ran out of disk")
}

func TestInspect_NormalizerFailureRemovesPartialFile(t *testing.T) {
	h := newHarness(t, func(h *harness) { h.normalize = partialNormalizer{} })

	_, err := h.svc.Inspect(context.Background(), "req-6", ingest.Source{DataURI: pngDataURI})

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStageFailure))
	assert.Zero(t, h.ocrCalls.Load())
	assert.Empty(t, h.processedFiles(t))
}

func TestInspect_CorruptImageIsStageFailure(t *testing.T) {
	h := newHarness(t)
	junk := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("definitely not a jpeg"))

	_, err := h.svc.Inspect(context.Background(), "req-7", ingest.Source{DataURI: junk})

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStageFailure))
	assert.Zero(t, h.ocrCalls.Load())
}

func TestInspect_ArchiveFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, func(h *harness) { h.archiver.err = errors.New("403 AuthorizationFailure") })

	report, err := h.svc.Inspect(context.Background(), "req-8", ingest.Source{DataURI: pngDataURI})
	h.events.Wait()

	require.NoError(t, err)
	assert.NotNil(t, report.Analysis)
	assert.Equal(t, 1, h.recorder.count(observer.ArchiveFailed))
}

func TestInspect_EmptyOCRStillAnalyzed(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.ocrText = "   "
		h.reply = `{"productName":"Unknown","keyIngredients":[],"safetyRating":null}`
	})

	report, err := h.svc.Inspect(context.Background(), "req-9", ingest.Source{DataURI: pngDataURI})
	require.NoError(t, err)

	assert.Equal(t, int32(1), h.genCalls.Load())
	assert.Empty(t, report.Analysis.KeyIngredients)
	assert.Empty(t, report.Analysis.RatingExplanation)
}

func TestExtractText_ScoresAgainstExpected(t *testing.T) {
	h := newHarness(t, func(h *harness) { h.ocrText = "Sugar, Salt, Wafer" })

	report, err := h.svc.ExtractText(context.Background(), "req-10", ingest.Source{DataURI: pngDataURI}, "Sugar, Salt, Water")
	require.NoError(t, err)
	h.events.Wait()

	assert.Zero(t, h.genCalls.Load(), "OCR diagnostics never call the model")
	assert.Equal(t, "Sugar, Salt, Wafer", report.OCRResult.ExtractedText)
	assert.InDelta(t, 1.0/3.0, report.OCRResult.WER, 1e-9)
	assert.Greater(t, report.OCRResult.MatchScore, 0.9)
	assert.Equal(t, 1, report.Quality.Width)
	assert.Empty(t, h.processedFiles(t))
	assert.True(t, h.recorder.stages()["rendered"])
	assert.False(t, h.recorder.stages()["analyzed"])
}

func TestInspect_ConcurrentRequests(t *testing.T) {
	h := newHarness(t)

	const n = 10
	paths := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := h.svc.Inspect(context.Background(), "req", ingest.Source{DataURI: pngDataURI})
			if assert.NoError(t, err) {
				paths <- report.ImagePath
			}
		}()
	}
	wg.Wait()
	close(paths)

	seen := make(map[string]bool)
	for p := range paths {
		assert.False(t, seen[p], "duplicate image path %s", p)
		seen[p] = true
	}
	assert.Len(t, seen, n)
	assert.Empty(t, h.processedFiles(t))
}

func TestNewLabelInspectionService_RequiresCollaborators(t *testing.T) {
	_, err := NewLabelInspectionService(Pipeline{})
	assert.Error(t, err)
}

func TestStageTransitions(t *testing.T) {
	assert.True(t, StageReceived.CanAdvanceTo(StageIngested))
	assert.True(t, StageTextExtracted.CanAdvanceTo(StageAnalyzed))
	assert.True(t, StageTextExtracted.CanAdvanceTo(StageRendered))
	assert.True(t, StageNormalized.CanAdvanceTo(StageErrored))

	assert.False(t, StageReceived.CanAdvanceTo(StageNormalized))
	assert.False(t, StageAnalyzed.CanAdvanceTo(StageIngested))
	assert.False(t, StageRendered.CanAdvanceTo(StageErrored))
	assert.False(t, StageErrored.CanAdvanceTo(StageRendered))
	assert.True(t, StageRendered.Terminal())
}
