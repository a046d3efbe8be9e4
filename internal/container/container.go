package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anime-shed/label-inspector-go/internal/analyzer"
	"github.com/anime-shed/label-inspector-go/internal/config"
	"github.com/anime-shed/label-inspector-go/internal/ingest"
	"github.com/anime-shed/label-inspector-go/internal/logger"
	"github.com/anime-shed/label-inspector-go/internal/observer"
	"github.com/anime-shed/label-inspector-go/internal/ocr"
	"github.com/anime-shed/label-inspector-go/internal/ocr/tesseract"
	"github.com/anime-shed/label-inspector-go/internal/preprocess"
	"github.com/anime-shed/label-inspector-go/internal/service"
	"github.com/anime-shed/label-inspector-go/internal/storage"
	"github.com/anime-shed/label-inspector-go/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	store     *storage.LocalStore
	generator *analyzer.GeminiGenerator
	events    *observer.EventPublisher
	metrics   *observer.MetricsObserver
	service   service.LabelInspectionService
	handler   http.Handler
}

// NewContainer builds the dependency graph. A missing API key leaves the
// service running with analysis disabled; callers that need it check
// cfg.RequireAPIKey first.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{config: cfg}

	c.store = storage.NewLocalStore(cfg.UploadDir, cfg.PublicPrefix)
	ingestor := ingest.NewIngestor(c.store, ingest.NewNameGenerator(), cfg.MaxUploadSize)

	ocrOpts := ocr.DefaultOptions().
		WithLanguage(cfg.OCRLanguage).
		WithProgress(func(status string, progress float64) {
			logger.WithField("status", status).WithField("progress", progress).Debug("OCR progress")
		})

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if gemini, ok := gen.(*analyzer.GeminiGenerator); ok {
		c.generator = gemini
	}

	c.events = observer.NewEventPublisher()
	c.events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	c.metrics = observer.NewMetricsObserver()
	c.events.Subscribe(c.metrics)

	pipeline := service.Pipeline{
		Ingestor:   ingestor,
		Normalizer: preprocess.NewNormalizer(preprocess.DefaultOptions()),
		Extractor:  tesseract.New(ocrOpts),
		Analyzer:   analyzer.NewIngredientAnalyzer(gen, cfg.PromptTextLimit),
		Store:      c.store,
		Events:     c.events,
		Quality:    preprocess.NewQualityMeter(preprocess.DefaultOptions()),
	}

	if cfg.ArchiveEnabled() {
		archiver, err := storage.NewAzureArchiver(cfg.AzureAccountName, cfg.AzureAccountKey, cfg.AzureContainer)
		if err != nil {
			return nil, fmt.Errorf("failed to create archiver: %w", err)
		}
		pipeline.Archiver = archiver
		logger.WithField("container", cfg.AzureContainer).Info("Archiving uploads to Azure Blob Storage")
	}

	c.service, err = service.NewLabelInspectionService(pipeline)
	if err != nil {
		return nil, err
	}
	c.handler = transport.NewHandler(c.service, cfg, c.metrics.GetMetrics)

	logger.WithField("tesseract", tesseract.Version()).Info("Container ready")
	return c, nil
}

func newGenerator(ctx context.Context, cfg *config.Config) (analyzer.Generator, error) {
	gen, err := analyzer.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AnalysisTimeout)
	if errors.Is(err, analyzer.ErrGeneratorUnavailable) {
		logger.Warn("GEMINI_API_KEY is not set, ingredient analysis is disabled")
		return analyzer.UnavailableGenerator{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	return gen, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the label pipeline, for callers that skip HTTP.
func (c *Container) Service() service.LabelInspectionService {
	return c.service
}

// Metrics returns the counters collected from pipeline events.
func (c *Container) Metrics() map[string]interface{} {
	return c.metrics.GetMetrics()
}

// Close waits for pending event delivery and releases the model client.
func (c *Container) Close() error {
	c.events.Wait()
	if c.generator != nil {
		return c.generator.Close()
	}
	return nil
}
