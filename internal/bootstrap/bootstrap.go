// Package bootstrap builds the pipeline and its backends from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"photopipe/internal/adapter/dynamo"
	"photopipe/internal/adapter/repo"
	"photopipe/internal/domain"
	"photopipe/internal/enhance"
	"photopipe/internal/http/handlers"
	"photopipe/internal/http/httpapi"
	"photopipe/internal/infra"
	"photopipe/internal/infra/geoip"
	"photopipe/internal/middleware"
	"photopipe/internal/pipeline"
	"photopipe/internal/providers/caption"
	"photopipe/internal/providers/vision"
	"photopipe/internal/storage"
)

// App holds the wired service and the resources that must be released on
// shutdown.
type App struct {
	Config  *infra.Config
	Logger  infra.Logger
	Service *pipeline.Service
	Records domain.RecordStore
	Files   *storage.FileStore
	Country middleware.CountryLookup

	awsCfg  *aws.Config
	closers []func()
}

// New wires every backend selected by cfg. On error, resources opened so far
// are released.
func New(ctx context.Context, cfg *infra.Config, logger infra.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	store, err := a.objectStore(ctx)
	if err != nil {
		return nil, err
	}
	detector, err := a.labelDetector(ctx)
	if err != nil {
		return nil, err
	}
	captioner, err := a.captionGenerator(ctx)
	if err != nil {
		return nil, err
	}
	records, err := a.recordStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Records = records

	enhancer, err := enhance.New(enhance.Config{
		Algorithm:    cfg.EnhanceAlgorithm,
		MaxDimension: cfg.EnhanceMaxDimension,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: enhancer: %w", err)
	}

	if err := a.countryLookup(); err != nil {
		return nil, err
	}

	a.Service = pipeline.NewService(pipeline.Deps{
		Store:     store,
		Detector:  detector,
		Captioner: captioner,
		Records:   records,
		Enhancer:  enhancer,
		Logger:    logger,
	}, pipeline.Config{
		OriginalBucket: cfg.OriginalBucket,
		EnhancedBucket: cfg.EnhancedBucket,
		OriginalURLTTL: cfg.OriginalURLTTL,
		EnhancedURLTTL: cfg.EnhancedURLTTL,
		Detect: domain.DetectOptions{
			MaxLabels:     cfg.LabelsMax,
			MinConfidence: cfg.LabelsMinConfidence,
		},
		DefaultUserID: cfg.DefaultUserID,
	})

	logger.Info().
		Str("storage", cfg.StorageBackend).
		Str("vision", cfg.VisionProvider).
		Str("caption", cfg.CaptionProvider).
		Str("records", cfg.RecordBackend).
		Str("algorithm", string(enhancer.Algorithm())).
		Msg("pipeline configured")
	return a, nil
}

// Handler returns the HTTP API for the wired service.
func (a *App) Handler() http.Handler {
	app := &handlers.App{
		Processor:    a.Service,
		Records:      a.Records,
		Files:        a.Files,
		Logger:       a.Logger,
		MaxBodyBytes: a.Config.MaxRequestBodyBytes,
	}
	return httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  a.Config.CORSAllowedOrigins,
		RateLimitPerMin: a.Config.RateLimitPerMin,
		CountryLookup:   a.Country,
	})
}

// Close releases pools and database readers in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) awsConfig(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	awsCfg, err := infra.NewAWSConfig(ctx, a.Config)
	if err != nil {
		return aws.Config{}, fmt.Errorf("bootstrap: %w", err)
	}
	a.awsCfg = &awsCfg
	return awsCfg, nil
}

func (a *App) objectStore(ctx context.Context) (domain.ObjectStore, error) {
	cfg := a.Config
	switch cfg.StorageBackend {
	case infra.StorageS3:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(s3.NewFromConfig(awsCfg)), nil
	default:
		path := cfg.StoragePath
		if !filepath.IsAbs(path) {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		files, err := storage.NewFileStore(path, cfg.StorageBaseURL, []byte(cfg.StorageSigningKey))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		if cfg.StorageSigningKey == "" {
			a.Logger.Warn().Msg("STORAGE_SIGNING_KEY empty, signed urls will not survive a restart")
		}
		a.Files = files
		return files, nil
	}
}

func (a *App) labelDetector(ctx context.Context) (domain.LabelDetector, error) {
	if a.Config.VisionProvider != infra.VisionRekognition {
		return vision.NewStaticDetector(), nil
	}
	awsCfg, err := a.awsConfig(ctx)
	if err != nil {
		return nil, err
	}
	return vision.NewRekognitionDetector(rekognition.NewFromConfig(awsCfg)), nil
}

func (a *App) captionGenerator(ctx context.Context) (domain.CaptionGenerator, error) {
	cfg := a.Config
	switch cfg.CaptionProvider {
	case infra.CaptionBedrock:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
			if cfg.BedrockRegion != "" {
				o.Region = cfg.BedrockRegion
			}
		})
		return caption.NewBedrockGenerator(client, caption.BedrockOptions{ModelID: cfg.BedrockModelID}), nil
	case infra.CaptionOpenAI:
		logger := a.Logger
		return caption.NewOpenAIGenerator(caption.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			OnFallback: func(reason string, err error) {
				logger.Warn().Err(err).Str("reason", reason).Msg("caption: openai fallback")
			},
		}), nil
	default:
		return caption.NewStaticGenerator(), nil
	}
}

func (a *App) recordStore(ctx context.Context) (domain.RecordStore, error) {
	cfg := a.Config
	switch cfg.RecordBackend {
	case infra.RecordPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		records := repo.NewRecordRepository(infra.NewSQLRunner(pool, a.Logger))
		if err := records.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		return records, nil
	case infra.RecordDynamoDB:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return dynamo.NewRecordStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable), nil
	default:
		return repo.NewMemoryRecordStore(), nil
	}
}

func (a *App) countryLookup() error {
	resolver, err := geoip.NewResolver(a.Config.GeoIPDBPath)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if resolver == nil {
		return nil
	}
	a.closers = append(a.closers, func() {
		if err := resolver.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("geoip: close failed")
		}
	})
	a.Country = resolver.CountryCode
	return nil
}
