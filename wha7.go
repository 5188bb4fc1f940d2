// Package wha7 turns photos of outfits into shopping links.
//
// A message carrying one or more images runs through region detection, cropping,
// gender classification, concept tagging and a marketplace image search. Each
// confident region yields a candidate with up to three affiliate links.
//
// Basic usage:
//
//	cfg, err := config.Load("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	app, err := wha7.New(ctx, cfg, zap.NewNop())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer app.Close()
//
//	res, err := app.Process(ctx, types.InboundMessage{
//		Sender: "alice",
//		Images: []types.ImageRef{{URL: "https://example.com/outfit.jpg"}},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, line := range pipeline.FormatReply(res) {
//		fmt.Print(line)
//	}
//
// The package wires the components found under pkg/:
//
//  1. Model backends (pkg/clarifai, pkg/ollama, pkg/llamacpp, pkg/gemini)
//  2. Image handling (pkg/processing)
//  3. Detection, gender and tagging (pkg/detection, pkg/gender, pkg/tagger)
//  4. Category resolution and marketplace search (pkg/category, pkg/marketplace)
//  5. The per-message orchestrator (pkg/pipeline)
package wha7

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/wha7/wha7/internal/config"
	"github.com/wha7/wha7/internal/store"
	"github.com/wha7/wha7/pkg/category"
	"github.com/wha7/wha7/pkg/clarifai"
	"github.com/wha7/wha7/pkg/client"
	"github.com/wha7/wha7/pkg/detection"
	"github.com/wha7/wha7/pkg/gemini"
	"github.com/wha7/wha7/pkg/gender"
	"github.com/wha7/wha7/pkg/llamacpp"
	"github.com/wha7/wha7/pkg/marketplace"
	"github.com/wha7/wha7/pkg/ollama"
	"github.com/wha7/wha7/pkg/pipeline"
	"github.com/wha7/wha7/pkg/processing"
	"github.com/wha7/wha7/pkg/storage"
	"github.com/wha7/wha7/pkg/tagger"
	"github.com/wha7/wha7/pkg/types"
)

// Version of the wha7 service
const Version = "1.0.0"

// Models holds one client per model task.
type Models struct {
	Detection client.ModelClient
	Tagging   client.ModelClient
	Face      client.ModelClient
	Gender    client.ModelClient

	closers []func() error
}

// Close releases backend connections.
func (m *Models) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewModels creates the four task clients for the configured backend.
func NewModels(ctx context.Context, cfg config.ModelsConfig) (*Models, error) {
	m := &Models{}
	tasks := []struct {
		dst   *client.ModelClient
		model string
		task  client.Task
	}{
		{&m.Detection, cfg.Detection, client.TaskApparelDetection},
		{&m.Tagging, cfg.Tagging, client.TaskApparelTagging},
		{&m.Face, cfg.Face, client.TaskFaceDetection},
		{&m.Gender, cfg.Gender, client.TaskGender},
	}

	for _, t := range tasks {
		mc, err := newModel(ctx, cfg, t.model, t.task, m)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("%s model: %w", t.task, err)
		}
		*t.dst = mc
	}
	return m, nil
}

func newModel(ctx context.Context, cfg config.ModelsConfig, model string, task client.Task, m *Models) (client.ModelClient, error) {
	switch cfg.Backend {
	case "clarifai":
		return clarifai.NewModel(clarifai.Options{
			BaseURL: cfg.Endpoint,
			PAT:     cfg.APIKey,
			UserID:  cfg.UserID,
			AppID:   cfg.AppID,
			Timeout: cfg.Timeout,
		}, model)
	case "ollama":
		return ollama.NewClient(cfg.Endpoint, model, task)
	case "llamacpp":
		return llamacpp.NewClient(cfg.Endpoint, model, cfg.APIKey, task)
	case "gemini":
		c, err := gemini.NewClient(ctx, cfg.APIKey, model, task)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, c.Close)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// App is a fully wired pipeline with its optional storage and result store.
type App struct {
	Pipeline  *pipeline.Pipeline
	Processor *processing.Processor
	Detector  *detection.Detector

	models *Models
	db     *sql.DB
	logger *zap.Logger
}

// New wires every component from cfg. Storage and the result store are only
// created when their bucket or DSN is set.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	models, err := NewModels(ctx, cfg.Models)
	if err != nil {
		return nil, err
	}
	app := &App{models: models, logger: logger}

	app.Processor = processing.NewProcessor()
	app.Processor.MaxModelDim = cfg.Pipeline.MaxModelDim
	app.Processor.MinImageSize = cfg.Pipeline.MinImageSize
	app.Processor.SetHTTPClient(client.NewHTTPClient(30*time.Second, cfg.Pipeline.AllowPrivateURLs))

	fallback, ok := types.ParseGender(cfg.Pipeline.DefaultGender)
	if !ok || fallback == types.Unisex {
		fallback = gender.DefaultGender
	}

	app.Detector = detection.NewDetector(models.Detection, app.Processor, cfg.Pipeline.ConfidenceThreshold, logger.Named("detector"))
	classifier := gender.NewClassifier(models.Face, models.Gender, app.Processor, app.Detector.Threshold(), fallback, logger.Named("gender"))
	tg := tagger.New(models.Tagging, cfg.Pipeline.StyleTerms, logger.Named("tagger"))

	tokens, err := tokenSource(ctx, cfg.Marketplace)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	resolver := category.New(category.Mode(cfg.Pipeline.CategoryMode))
	search, err := marketplace.New(marketplace.Options{
		Endpoint:      cfg.Marketplace.Endpoint,
		AffiliateID:   cfg.Marketplace.AffiliateID,
		MarketplaceID: cfg.Marketplace.MarketplaceID,
		MaxAttempts:   cfg.Marketplace.MaxAttempts,
		BaseBackoff:   cfg.Marketplace.BaseBackoff,
		Limit:         cfg.Marketplace.Limit,
		MaxInFlight:   cfg.Marketplace.MaxInFlight,
	}, tokens, resolver, logger.Named("marketplace"))
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	var uploader pipeline.Uploader
	if cfg.Storage.Bucket != "" {
		s3, err := storage.NewS3Store(ctx, storage.Options{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UsePathStyle:    cfg.Storage.UsePathStyle,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
			PresignTTL:      cfg.Storage.PresignTTL,
		}, logger.Named("storage"))
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		uploader = s3
	}

	var recorder pipeline.Recorder
	if cfg.Store.DSN != "" {
		repo, db, err := store.Open(ctx, cfg.Store.DSN, logger.Named("store"))
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.db = db
		recorder = repo
	}

	app.Pipeline = pipeline.New(app.Processor, app.Detector, classifier, tg, search, uploader, recorder, pipeline.Options{
		Workers:        cfg.Pipeline.Workers,
		Timeout:        cfg.Pipeline.MessageTimeout,
		DedupeDistance: cfg.Pipeline.DedupeDistance,
	}, logger.Named("pipeline"))

	logger.Info("pipeline ready",
		zap.String("version", Version),
		zap.String("backend", cfg.Models.Backend),
		zap.Float64("threshold", app.Detector.Threshold()),
		zap.String("category_mode", string(resolver.Mode())),
		zap.String("default_gender", string(classifier.Fallback())),
		zap.Bool("uploads", uploader != nil),
		zap.Bool("recording", recorder != nil))
	return app, nil
}

// Process runs one message through the pipeline.
func (a *App) Process(ctx context.Context, msg types.InboundMessage) (*pipeline.Result, error) {
	return a.Pipeline.Process(ctx, msg)
}

// Close releases model connections and the database pool.
func (a *App) Close() error {
	var errs []error
	if a.models != nil {
		errs = append(errs, a.models.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func tokenSource(ctx context.Context, cfg config.MarketplaceConfig) (oauth2.TokenSource, error) {
	if cfg.AccessToken != "" {
		return marketplace.StaticToken(cfg.AccessToken), nil
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("marketplace: set access_token or client_id and client_secret")
	}
	var scopes []string
	if cfg.Scope != "" {
		scopes = append(scopes, cfg.Scope)
	}
	return marketplace.NewTokenSource(ctx, cfg.ClientID, cfg.ClientSecret, cfg.TokenURL, scopes...), nil
}
