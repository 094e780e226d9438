package main

import (
	"fmt"
	"log/slog"

	"github.com/drawing-checker/backend/internal/assess"
	"github.com/drawing-checker/backend/internal/checklist"
	"github.com/drawing-checker/backend/internal/config"
	"github.com/drawing-checker/backend/internal/extract"
	"github.com/drawing-checker/backend/internal/metrics"
	"github.com/drawing-checker/backend/internal/reference"
	"github.com/drawing-checker/backend/internal/session"
	"github.com/drawing-checker/backend/internal/storage"
)

// app holds the long-lived components shared by serve and review.
type app struct {
	manager *session.Manager
	history *storage.History
	library *reference.Library
	metrics *metrics.Metrics
}

func newApp(cfg *config.AppConfig, logger *slog.Logger) (*app, error) {
	if cfg.Review.APIKey == "" {
		logger.Warn("no API key configured, set OPENAI_API_KEY or Review/APIKey")
	}

	list, err := checklist.Load(cfg.Review.ChecklistFile)
	if err != nil {
		return nil, err
	}

	registry := extract.NewRegistry()
	library, err := reference.Load(reference.Options{
		DocsDir:    cfg.Storage.ReferenceDocsDirectory,
		DrawingZip: cfg.Storage.ReferenceDrawingsZip,
		ExtractDir: cfg.Storage.ReferenceExtractDirectory,
		SpecLimit:  cfg.Review.ReferenceSpecLimit,
		Registry:   registry,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("load reference library: %w", err)
	}

	store, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory, cfg.Storage.ReportsDirectory)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	history, err := storage.OpenHistory(cfg.Storage.HistoryDatabase)
	if err != nil {
		return nil, fmt.Errorf("open review history: %w", err)
	}

	m := metrics.New()
	assessor := assess.NewOpenAIAssessor(assess.Options{
		APIKey:         cfg.Review.APIKey,
		BaseURL:        cfg.Review.BaseURL,
		Model:          cfg.Review.Model,
		Temperature:    cfg.Review.Temperature,
		MaxAttempts:    cfg.Review.MaxAttempts,
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         logger,
	})

	mgr := session.NewManager(session.Options{
		Store:         store,
		History:       history,
		Extractors:    registry,
		Library:       library,
		Checklist:     list,
		Assessor:      assessor,
		ExcerptLength: cfg.Review.ExcerptLength,
		MaxConcurrent: cfg.Review.MaxConcurrentReviews,
		Retention:     cfg.Retention(),
		Metrics:       m,
		Logger:        logger,
	})

	return &app{manager: mgr, history: history, library: library, metrics: m}, nil
}

func (a *app) Close() {
	a.manager.Close()
	if err := a.history.Close(); err != nil {
		slog.Warn("failed to close review history", "error", err)
	}
}
