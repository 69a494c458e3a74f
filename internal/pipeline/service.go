// Package pipeline runs one image submission through storage, label
// detection, captioning, enhancement and record persistence.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"photopipe/internal/domain"
	"photopipe/internal/infra"
)

const (
	defaultFileType  = "image/jpeg"
	enhancedFileType = "image/jpeg"
	enhancedSuffix   = "_enhanced.jpg"
)

// ImageEnhancer is the enhancement stage.
type ImageEnhancer interface {
	Enhance(input []byte) ([]byte, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store     domain.ObjectStore
	Detector  domain.LabelDetector
	Captioner domain.CaptionGenerator
	Records   domain.RecordStore
	Enhancer  ImageEnhancer
	Logger    infra.Logger
}

// Config holds the per-deployment settings of a Service.
type Config struct {
	OriginalBucket string
	EnhancedBucket string
	OriginalURLTTL time.Duration
	EnhancedURLTTL time.Duration
	Detect         domain.DetectOptions
	DefaultUserID  string
}

// Request is one submission. Image is base64 encoded, optionally as a data URL.
type Request struct {
	Image         string
	FileName      string
	FileType      string
	UserID        string
	ClientCountry string
}

// Result reports what happened to a submission. Stage failures that did not
// stop the pipeline are listed in Errors.
type Result struct {
	ProcessID   string                   `json:"processId"`
	FileName    string                   `json:"fileName"`
	Labels      []domain.Label           `json:"labels"`
	ProcessedAt time.Time                `json:"processedAt"`
	Status      string                   `json:"status"`
	Errors      []string                 `json:"errors"`
	URL         string                   `json:"url"`
	Description string                   `json:"description,omitempty"`
	Enhanced    *domain.EnhancedImage    `json:"enhanced,omitempty"`
	EnhancedURL string                   `json:"enhanced_url,omitempty"`
	Summary     domain.ProcessingSummary `json:"summary"`
	Record      *domain.ProcessRecord    `json:"-"`
}

type Service struct {
	deps  Deps
	cfg   Config
	now   func() time.Time
	newID func() string
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = domain.DefaultUserID
	}
	return &Service{
		deps:  deps,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Process runs the pipeline for req. It returns an error only when the
// request is invalid or the original cannot be stored; every later failure
// is recorded in Result.Errors.
func (s *Service) Process(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Image) == "" {
		return nil, fmt.Errorf("image data not found in the request: %w", domain.ErrInvalidRequest)
	}
	imageBytes, err := decodeImage(req.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v: %w", err, domain.ErrInvalidRequest)
	}
	fileName, err := cleanFileName(req.FileName)
	if err != nil {
		return nil, err
	}
	fileType := strings.TrimSpace(req.FileType)
	if fileType == "" {
		fileType = defaultFileType
	}

	processID := s.newID()
	logger := s.deps.Logger.With().Str("process_id", processID).Str("file_name", fileName).Logger()
	started := time.Now()

	key, err := s.deps.Store.Put(ctx, s.cfg.OriginalBucket, fileName, imageBytes, fileType)
	if err != nil {
		logger.Error().Err(err).Str("bucket", s.cfg.OriginalBucket).Msg("original upload failed")
		return nil, fmt.Errorf("upload original: %w", err)
	}

	res := &Result{
		ProcessID: processID,
		FileName:  key,
		Labels:    []domain.Label{},
		Status:    domain.StatusProcessed,
		Errors:    []string{},
	}
	if res.URL, err = s.deps.Store.Sign(ctx, s.cfg.OriginalBucket, key, s.cfg.OriginalURLTTL); err != nil {
		res.Errors = append(res.Errors, "Original URL signing failed: "+err.Error())
	}

	var (
		g           errgroup.Group
		labels      []domain.Label
		labelErr    error
		labelsAt    time.Time
		description string
		captionErr  error
		enhanced    []byte
		enhanceErr  error
	)
	// Stage failures are recorded on the result. No goroutine returns an
	// error, so a failing stage never cancels the other one.
	g.Go(func() error {
		labels, labelErr = s.deps.Detector.DetectLabels(ctx, s.cfg.OriginalBucket, key, s.cfg.Detect)
		labelsAt = s.now()
		if labelErr != nil {
			return nil
		}
		description, captionErr = s.deps.Captioner.Generate(ctx, domain.LabelNames(labels))
		return nil
	})
	g.Go(func() error {
		enhanced, enhanceErr = s.deps.Enhancer.Enhance(imageBytes)
		return nil
	})
	_ = g.Wait()

	res.ProcessedAt = labelsAt
	if labelErr != nil {
		logger.Warn().Err(labelErr).Msg("label detection failed")
		res.Errors = append(res.Errors, "Label detection failed: "+labelErr.Error())
	} else if labels != nil {
		res.Labels = labels
	}
	if captionErr != nil {
		logger.Warn().Err(captionErr).Msg("caption generation failed")
		res.Errors = append(res.Errors, "Caption generation failed: "+captionErr.Error())
	} else {
		res.Description = description
	}
	if enhanceErr != nil {
		logger.Warn().Err(enhanceErr).Msg("image enhancement failed")
		res.Errors = append(res.Errors, "Image enhancement failed: "+enhanceErr.Error())
	} else if err := s.storeEnhanced(ctx, res, key, enhanced); err != nil {
		logger.Warn().Err(err).Msg("enhanced upload failed")
		res.Errors = append(res.Errors, "Enhanced upload failed: "+err.Error())
	}

	res.Summary = domain.ProcessingSummary{
		TotalLabels:        len(res.Labels),
		HasErrors:          len(res.Errors) > 0,
		EnhancementApplied: res.Enhanced != nil,
	}

	rec := s.buildRecord(processID, req, fileType, res)
	stored, err := s.persist(ctx, rec)
	if err != nil {
		logger.Error().Err(err).Msg("record store failed")
		res.Errors = append(res.Errors, "Record store failed: "+err.Error())
		res.Summary.HasErrors = true
	}
	res.Record = stored

	logger.Info().
		Int("labels", res.Summary.TotalLabels).
		Bool("enhanced", res.Summary.EnhancementApplied).
		Int("errors", len(res.Errors)).
		Dur("duration", time.Since(started)).
		Msg("image processed")
	return res, nil
}

func (s *Service) storeEnhanced(ctx context.Context, res *Result, key string, data []byte) error {
	name := EnhancedFileName(key)
	storedKey, err := s.deps.Store.Put(ctx, s.cfg.EnhancedBucket, name, data, enhancedFileType)
	if err != nil {
		return err
	}
	url, err := s.deps.Store.Sign(ctx, s.cfg.EnhancedBucket, storedKey, s.cfg.EnhancedURLTTL)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	res.EnhancedURL = url
	res.Enhanced = &domain.EnhancedImage{
		FileName:    storedKey,
		Bucket:      s.cfg.EnhancedBucket,
		URL:         url,
		ProcessedAt: s.now(),
	}
	return nil
}

func (s *Service) buildRecord(id string, req Request, fileType string, res *Result) *domain.ProcessRecord {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = s.cfg.DefaultUserID
	}
	rec := &domain.ProcessRecord{
		ProcessID:     id,
		UserID:        userID,
		FileName:      res.FileName,
		FileType:      fileType,
		URL:           res.URL,
		Labels:        domain.LabelNames(res.Labels),
		LabelDetails:  res.Labels,
		Description:   res.Description,
		Status:        domain.StatusCompleted,
		ClientCountry: strings.ToUpper(strings.TrimSpace(req.ClientCountry)),
		CreatedAt:     s.now(),
		ProcessedAt:   res.ProcessedAt,
		Summary:       res.Summary,
	}
	if res.Enhanced != nil {
		rec.EnhancedFileName = res.Enhanced.FileName
		rec.EnhancedFileType = enhancedFileType
		rec.EnhancedURL = res.Enhanced.URL
	}
	return rec
}

// persist writes rec and reads it back so the caller sees what was stored.
// When only the read-back fails the written record is returned with the error.
func (s *Service) persist(ctx context.Context, rec *domain.ProcessRecord) (*domain.ProcessRecord, error) {
	if err := s.deps.Records.Put(ctx, rec); err != nil {
		return nil, err
	}
	stored, err := s.deps.Records.Get(ctx, rec.ProcessID)
	if err != nil {
		return rec, fmt.Errorf("read back: %w", err)
	}
	return stored, nil
}

// EnhancedFileName derives the enhanced object key: the stem of key with
// "_enhanced.jpg", since enhanced output is always JPEG.
func EnhancedFileName(key string) string {
	dir, base := path.Split(key)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return dir + base + enhancedSuffix
}

func decodeImage(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		idx := strings.Index(raw, ",")
		if idx < 0 || !strings.Contains(raw[:idx], ";base64") {
			return nil, errors.New("malformed data url")
		}
		raw = raw[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return nil, err
		}
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}

// cleanFileName accepts relative slash-separated names that stay inside the
// bucket.
func cleanFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("file name is required: %w", domain.ErrInvalidRequest)
	}
	if strings.ContainsAny(name, "\\\x00") || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("invalid file name %q: %w", name, domain.ErrInvalidRequest)
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || cleaned != name {
		return "", fmt.Errorf("invalid file name %q: %w", name, domain.ErrInvalidRequest)
	}
	return cleaned, nil
}
