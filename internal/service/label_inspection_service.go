package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/label-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/label-inspector-go/internal/errors"
	"github.com/anime-shed/label-inspector-go/internal/ingest"
	"github.com/anime-shed/label-inspector-go/internal/logger"
	"github.com/anime-shed/label-inspector-go/internal/observer"
	"github.com/anime-shed/label-inspector-go/internal/ocr"
	"github.com/anime-shed/label-inspector-go/internal/preprocess"
	"github.com/anime-shed/label-inspector-go/internal/storage"
	"github.com/anime-shed/label-inspector-go/pkg/models"
)

// LabelInspectionService runs the label pipeline for one request at a time.
type LabelInspectionService interface {
	// Inspect runs ingest, normalize, OCR and analysis and returns a render-ready report.
	Inspect(ctx context.Context, requestID string, src ingest.Source) (*models.LabelReport, error)
	// ExtractText stops after OCR and scores the text against expectedText when given.
	ExtractText(ctx context.Context, requestID string, src ingest.Source, expectedText string) (*models.OCRReport, error)
}

// Pipeline lists the collaborators of the service. Archiver, Events and Quality are optional.
type Pipeline struct {
	Ingestor   ingest.ImageIngestor
	Normalizer preprocess.Normalizer
	Extractor  ocr.Extractor
	Analyzer   analyzer.Analyzer
	Store      storage.UploadStore
	Archiver   storage.Archiver
	Events     observer.Subject
	Quality    *preprocess.QualityMeter
}

type labelInspectionService struct {
	Pipeline
}

func NewLabelInspectionService(p Pipeline) (LabelInspectionService, error) {
	switch {
	case p.Ingestor == nil:
		return nil, errors.New("service: ingestor is required")
	case p.Normalizer == nil:
		return nil, errors.New("service: normalizer is required")
	case p.Extractor == nil:
		return nil, errors.New("service: text extractor is required")
	case p.Analyzer == nil:
		return nil, errors.New("service: analyzer is required")
	case p.Store == nil:
		return nil, errors.New("service: upload store is required")
	}
	if p.Events == nil {
		p.Events = observer.NewEventPublisher()
	}
	if p.Quality == nil {
		p.Quality = preprocess.NewQualityMeter(preprocess.DefaultOptions())
	}
	return &labelInspectionService{Pipeline: p}, nil
}

func (s *labelInspectionService) Inspect(ctx context.Context, requestID string, src ingest.Source) (*models.LabelReport, error) {
	r := s.begin(ctx, requestID, "inspect")

	img, normalized, err := s.prepare(r, src)
	if normalized != "" {
		defer s.cleanup(r, normalized)
	}
	if err != nil {
		return nil, r.fail(err)
	}

	text, err := s.Extractor.ExtractText(ctx, normalized)
	if err != nil {
		return nil, r.fail(asKind(apperrors.ErrorTypeStageFailure, "Failed to read text from image", err))
	}
	text = strings.TrimSpace(text)
	r.advance(StageTextExtracted)

	analysis, err := s.Analyzer.Analyze(ctx, text)
	if err != nil {
		return nil, r.fail(asKind(apperrors.ErrorTypeAnalysisFailed, "AI analysis failed", err))
	}
	r.advance(StageAnalyzed)

	report := &models.LabelReport{
		RequestID:         requestID,
		ImagePath:         s.Store.PublicURL(img.FileName),
		ExtractedText:     text,
		Analysis:          analysis,
		ProcessingTimeSec: time.Since(r.start).Seconds(),
	}
	r.advance(StageRendered)
	r.complete()
	return report, nil
}

func (s *labelInspectionService) ExtractText(ctx context.Context, requestID string, src ingest.Source, expectedText string) (*models.OCRReport, error) {
	r := s.begin(ctx, requestID, "ocr")

	img, normalized, err := s.prepare(r, src)
	if normalized != "" {
		defer s.cleanup(r, normalized)
	}
	if err != nil {
		return nil, r.fail(err)
	}

	quality, err := s.Quality.Assess(normalized)
	if err != nil {
		r.log.WithError(err).Warn("Could not measure image quality")
	}

	text, err := s.Extractor.ExtractText(ctx, normalized)
	if err != nil {
		return nil, r.fail(asKind(apperrors.ErrorTypeStageFailure, "Failed to read text from image", err))
	}
	r.advance(StageTextExtracted)

	report := &models.OCRReport{
		RequestID:         requestID,
		ImagePath:         s.Store.PublicURL(img.FileName),
		Quality:           quality,
		OCRResult:         ocr.Compare(expectedText, text),
		ProcessingTimeSec: time.Since(r.start).Seconds(),
	}
	r.advance(StageRendered)
	r.complete()
	return report, nil
}

// prepare ingests and normalizes. The returned normalized path is set whenever a
// derived file may exist on disk, including after a failed normalization.
func (s *labelInspectionService) prepare(r *run, src ingest.Source) (*models.UploadedImage, string, error) {
	img, err := s.Ingestor.Ingest(r.ctx, src)
	if err != nil {
		return nil, "", asKind(apperrors.ErrorTypeInternal, "Failed to store image", err)
	}
	r.fileName = img.FileName
	r.advance(StageIngested)
	s.archive(r, img)

	normalized, err := s.Normalizer.Normalize(r.ctx, img.SourcePath)
	if err != nil {
		partial := s.Store.Path(preprocess.ProcessedName(img.SourcePath))
		return img, partial, asKind(apperrors.ErrorTypeStageFailure, "Failed to prepare image for text recognition", err)
	}
	r.advance(StageNormalized)
	return img, normalized, nil
}

func (s *labelInspectionService) archive(r *run, img *models.UploadedImage) {
	if s.Archiver == nil {
		return
	}
	url, err := s.Archiver.Archive(r.ctx, img.SourcePath, img.MimeType)
	if err != nil {
		r.log.WithError(err).Warn("Failed to archive original upload")
		r.publish(observer.PipelineEvent{EventType: observer.ArchiveFailed, ErrorMessage: err.Error()})
		return
	}
	r.log.WithField("archive_url", url).Debug("Archived original upload")
}

// cleanup removes the normalized image. It runs on every exit path.
func (s *labelInspectionService) cleanup(r *run, normalized string) {
	if err := s.Store.Remove(normalized); err != nil {
		r.log.WithError(err).WithField("path", normalized).Warn("Failed to remove normalized image")
		r.publish(observer.PipelineEvent{EventType: observer.CleanupFailed, ErrorMessage: err.Error()})
	}
}

// asKind keeps errors that already carry a kind and wraps the rest.
func asKind(kind apperrors.ErrorType, message string, err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch kind {
	case apperrors.ErrorTypeStageFailure:
		return apperrors.NewStageFailureError(message, err)
	case apperrors.ErrorTypeAnalysisFailed:
		return apperrors.NewAnalysisFailedError(message, err)
	default:
		return apperrors.NewInternalError(message, err)
	}
}

func (s *labelInspectionService) begin(ctx context.Context, requestID, mode string) *run {
	now := time.Now()
	r := &run{
		ctx:        ctx,
		events:     s.Events,
		requestID:  requestID,
		start:      now,
		stageStart: now,
		stage:      StageReceived,
		log:        logger.ForRequest(requestID).WithField("mode", mode),
	}
	r.publish(observer.PipelineEvent{EventType: observer.RequestReceived, Metadata: map[string]interface{}{"mode": mode}})
	return r
}

// run tracks one request through the stage machine.
type run struct {
	ctx        context.Context
	events     observer.Subject
	requestID  string
	fileName   string
	start      time.Time
	stageStart time.Time
	stage      Stage
	log        *logrus.Entry
}

func (r *run) advance(next Stage) {
	if !r.stage.CanAdvanceTo(next) {
		r.log.WithFields(logrus.Fields{"from": r.stage, "to": next}).Error("Invalid stage transition")
		return
	}
	elapsed := time.Since(r.stageStart)
	r.stage = next
	r.stageStart = time.Now()

	r.log.WithFields(logrus.Fields{"stage": next, "duration_ms": elapsed.Milliseconds()}).Debug("Stage reached")
	r.publish(observer.PipelineEvent{
		EventType: observer.StageCompleted,
		Stage:     string(next),
		Duration:  elapsed,
		Success:   true,
	})
}

func (r *run) fail(err error) error {
	failedAt := r.stage
	r.stage = StageErrored

	kind := apperrors.KindOf(err)
	if appErr, ok := apperrors.As(err); ok && appErr.Details == "" {
		appErr.WithDetails("last_stage=" + string(failedAt))
	}
	r.log.WithError(err).WithFields(logrus.Fields{
		"last_stage": failedAt,
		"error_kind": kind,
	}).Error("Label pipeline failed")
	r.publish(observer.PipelineEvent{
		EventType:    observer.RequestFailed,
		Stage:        string(failedAt),
		Duration:     time.Since(r.start),
		ErrorKind:    string(kind),
		ErrorMessage: err.Error(),
	})
	return err
}

func (r *run) complete() {
	r.publish(observer.PipelineEvent{
		EventType: observer.RequestCompleted,
		Stage:     string(r.stage),
		Duration:  time.Since(r.start),
		Success:   true,
	})
}

func (r *run) publish(event observer.PipelineEvent) {
	event.RequestID = r.requestID
	event.FileName = r.fileName
	r.events.NotifyObservers(r.ctx, event)
}
