package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"photopipe/internal/adapter/repo"
	"photopipe/internal/domain"
	"photopipe/internal/enhance"
	"photopipe/internal/infra"
)

type putCall struct {
	bucket, key, contentType string
	size                     int
}

type fakeStore struct {
	mu      sync.Mutex
	puts    []putCall
	putErr  map[string]error
	signErr error
}

func (f *fakeStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.putErr[bucket]; err != nil {
		return "", err
	}
	f.puts = append(f.puts, putCall{bucket: bucket, key: key, contentType: contentType, size: len(data)})
	return key, nil
}

func (f *fakeStore) Sign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return fmt.Sprintf("https://%s/%s?ttl=%d", bucket, key, int(ttl.Hours())), nil
}

type fakeDetector struct {
	labels []domain.Label
	err    error
	opts   domain.DetectOptions
}

func (f *fakeDetector) DetectLabels(ctx context.Context, bucket, key string, opts domain.DetectOptions) ([]domain.Label, error) {
	f.opts = opts
	return f.labels, f.err
}

// gatedDetector blocks until release is closed and records whether its
// context was cancelled in the meantime.
type gatedDetector struct {
	release chan struct{}
	labels  []domain.Label
	ctxErr  error
}

func (g *gatedDetector) DetectLabels(ctx context.Context, bucket, key string, opts domain.DetectOptions) ([]domain.Label, error) {
	select {
	case <-g.release:
	case <-time.After(5 * time.Second):
		return nil, errors.New("enhancer never ran")
	}
	g.ctxErr = ctx.Err()
	return g.labels, nil
}

type fakeCaptioner struct {
	caption string
	err     error
	calls   int
	got     []string
}

func (f *fakeCaptioner) Generate(ctx context.Context, labels []string) (string, error) {
	f.calls++
	f.got = labels
	return f.caption, f.err
}

type enhancerFunc func([]byte) ([]byte, error)

func (f enhancerFunc) Enhance(input []byte) ([]byte, error) { return f(input) }

type failingRecords struct {
	domain.RecordStore
	putErr error
	getErr error
}

func (f *failingRecords) Put(ctx context.Context, rec *domain.ProcessRecord) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.RecordStore.Put(ctx, rec)
}

func (f *failingRecords) Get(ctx context.Context, id string) (*domain.ProcessRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.RecordStore.Get(ctx, id)
}

type fixture struct {
	store     *fakeStore
	detector  *fakeDetector
	captioner *fakeCaptioner
	records   domain.RecordStore
	enhancer  ImageEnhancer
}

func newFixture() *fixture {
	return &fixture{
		store: &fakeStore{putErr: map[string]error{}},
		detector: &fakeDetector{labels: []domain.Label{
			{Name: "Lake", Confidence: 98.12, Categories: []string{"Nature"}},
			{Name: "Sky", Confidence: 91.5, Categories: []string{}},
		}},
		captioner: &fakeCaptioner{caption: "Tranquilo lago bajo un cielo despejado"},
		records:   repo.NewMemoryRecordStore(),
		enhancer:  enhancerFunc(func(in []byte) ([]byte, error) { return []byte("enhanced"), nil }),
	}
}

func (f *fixture) service() *Service {
	svc := NewService(Deps{
		Store:     f.store,
		Detector:  f.detector,
		Captioner: f.captioner,
		Records:   f.records,
		Enhancer:  f.enhancer,
		Logger:    infra.NopLogger(),
	}, Config{
		OriginalBucket: "originals",
		EnhancedBucket: "enhanced",
		OriginalURLTTL: 24 * time.Hour,
		EnhancedURLTTL: 12 * time.Hour,
		Detect:         domain.DetectOptions{MaxLabels: 10, MinConfidence: 75},
	})
	svc.newID = func() string { return "6f1c1e0a-8a43-4a8e-9d55-3f3b8c1d2e01" }
	return svc
}

func request() Request {
	return Request{
		Image:         base64.StdEncoding.EncodeToString([]byte("raw image bytes")),
		FileName:      "trips/lake.png",
		FileType:      "image/png",
		ClientCountry: "mx",
	}
}

func TestProcessHappyPath(t *testing.T) {
	f := newFixture()
	res, err := f.service().Process(context.Background(), request())
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if res.URL != "https://originals/trips/lake.png?ttl=24" {
		t.Fatalf("URL = %q", res.URL)
	}
	if res.Enhanced == nil || res.Enhanced.FileName != "trips/lake_enhanced.jpg" || res.Enhanced.Bucket != "enhanced" {
		t.Fatalf("Enhanced = %+v", res.Enhanced)
	}
	if res.EnhancedURL != "https://enhanced/trips/lake_enhanced.jpg?ttl=12" {
		t.Fatalf("EnhancedURL = %q", res.EnhancedURL)
	}
	if res.Summary != (domain.ProcessingSummary{TotalLabels: 2, HasErrors: false, EnhancementApplied: true}) {
		t.Fatalf("Summary = %+v", res.Summary)
	}
	if res.Description != "Tranquilo lago bajo un cielo despejado" {
		t.Fatalf("Description = %q", res.Description)
	}
	if f.detector.opts.MaxLabels != 10 || f.detector.opts.MinConfidence != 75 {
		t.Fatalf("detect options = %+v", f.detector.opts)
	}
	if strings.Join(f.captioner.got, ",") != "Lake,Sky" {
		t.Fatalf("caption labels = %v", f.captioner.got)
	}

	if len(f.store.puts) != 2 {
		t.Fatalf("puts = %+v", f.store.puts)
	}
	if f.store.puts[0] != (putCall{bucket: "originals", key: "trips/lake.png", contentType: "image/png", size: len("raw image bytes")}) {
		t.Fatalf("original put = %+v", f.store.puts[0])
	}
	if f.store.puts[1].contentType != "image/jpeg" {
		t.Fatalf("enhanced content type = %q", f.store.puts[1].contentType)
	}

	rec := res.Record
	if rec == nil {
		t.Fatal("Record is nil")
	}
	if rec.ProcessID != res.ProcessID || rec.UserID != domain.DefaultUserID || rec.Status != domain.StatusCompleted {
		t.Fatalf("record identity = %+v", rec)
	}
	if rec.ClientCountry != "MX" || strings.Join(rec.Labels, ",") != "Lake,Sky" || rec.EnhancedFileType != "image/jpeg" {
		t.Fatalf("record fields = %+v", rec)
	}
	if _, err := f.records.Get(context.Background(), rec.ProcessID); err != nil {
		t.Fatalf("record was not persisted: %v", err)
	}
}

func TestProcessRejectsInvalidRequests(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Request)
		want string
	}{
		{name: "missing_image", mod: func(r *Request) { r.Image = "  " }, want: "image data not found"},
		{name: "bad_base64", mod: func(r *Request) { r.Image = "***" }, want: "failed to decode image"},
		{name: "missing_name", mod: func(r *Request) { r.FileName = "" }, want: "file name is required"},
		{name: "traversal", mod: func(r *Request) { r.FileName = "../etc/passwd" }, want: "invalid file name"},
		{name: "absolute", mod: func(r *Request) { r.FileName = "/etc/passwd" }, want: "invalid file name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			req := request()
			tc.mod(&req)
			_, err := f.service().Process(context.Background(), req)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Fatalf("error = %v, want ErrInvalidRequest", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
			if len(f.store.puts) != 0 {
				t.Fatal("nothing should be stored for an invalid request")
			}
		})
	}
}

func TestProcessOriginalUploadFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.store.putErr["originals"] = fmt.Errorf("bucket gone: %w", domain.ErrBucketNotFound)
	_, err := f.service().Process(context.Background(), request())
	if !errors.Is(err, domain.ErrBucketNotFound) {
		t.Fatalf("error = %v, want ErrBucketNotFound", err)
	}
}

func TestProcessContinuesAfterStageFailures(t *testing.T) {
	t.Run("label_detection", func(t *testing.T) {
		f := newFixture()
		f.detector.err = errors.New("rekognition down")
		res, err := f.service().Process(context.Background(), request())
		if err != nil {
			t.Fatalf("Process returned error: %v", err)
		}
		if len(res.Errors) != 1 || res.Errors[0] != "Label detection failed: rekognition down" {
			t.Fatalf("Errors = %v", res.Errors)
		}
		if f.captioner.calls != 0 {
			t.Fatal("caption should not run without labels")
		}
		if !res.Summary.HasErrors || res.Summary.TotalLabels != 0 || !res.Summary.EnhancementApplied {
			t.Fatalf("Summary = %+v", res.Summary)
		}
		if res.Record == nil || !res.Record.Summary.HasErrors {
			t.Fatalf("record summary = %+v", res.Record)
		}
	})

	t.Run("caption", func(t *testing.T) {
		f := newFixture()
		f.captioner.err = errors.New("throttled")
		res, _ := f.service().Process(context.Background(), request())
		if len(res.Errors) != 1 || res.Errors[0] != "Caption generation failed: throttled" {
			t.Fatalf("Errors = %v", res.Errors)
		}
		if res.Description != "" || len(res.Labels) != 2 {
			t.Fatalf("unexpected result: %+v", res)
		}
	})

	t.Run("enhancement", func(t *testing.T) {
		f := newFixture()
		f.enhancer = enhancerFunc(func([]byte) ([]byte, error) { return nil, enhance.ErrDecode })
		res, _ := f.service().Process(context.Background(), request())
		if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "Image enhancement failed: ") {
			t.Fatalf("Errors = %v", res.Errors)
		}
		if res.Summary.EnhancementApplied || res.Enhanced != nil {
			t.Fatalf("enhancement must not be reported as applied: %+v", res.Summary)
		}
		if len(f.store.puts) != 1 {
			t.Fatalf("only the original should be stored, got %+v", f.store.puts)
		}
		if res.Record.EnhancedFileName != "" {
			t.Fatalf("record carries enhanced name %q", res.Record.EnhancedFileName)
		}
	})

	t.Run("enhanced_upload", func(t *testing.T) {
		f := newFixture()
		f.store.putErr["enhanced"] = errors.New("denied")
		res, _ := f.service().Process(context.Background(), request())
		if len(res.Errors) != 1 || res.Errors[0] != "Enhanced upload failed: denied" {
			t.Fatalf("Errors = %v", res.Errors)
		}
		if res.Summary.EnhancementApplied {
			t.Fatal("EnhancementApplied should be false when the upload failed")
		}
	})

	t.Run("record_store", func(t *testing.T) {
		f := newFixture()
		f.records = &failingRecords{RecordStore: repo.NewMemoryRecordStore(), putErr: errors.New("table missing")}
		res, err := f.service().Process(context.Background(), request())
		if err != nil {
			t.Fatalf("Process returned error: %v", err)
		}
		if len(res.Errors) != 1 || res.Errors[0] != "Record store failed: table missing" {
			t.Fatalf("Errors = %v", res.Errors)
		}
		if res.Record != nil || !res.Summary.HasErrors {
			t.Fatalf("unexpected record/summary: %+v %+v", res.Record, res.Summary)
		}
	})

	t.Run("read_back", func(t *testing.T) {
		f := newFixture()
		f.records = &failingRecords{RecordStore: repo.NewMemoryRecordStore(), getErr: domain.ErrNotFound}
		res, _ := f.service().Process(context.Background(), request())
		if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "Record store failed: read back") {
			t.Fatalf("Errors = %v", res.Errors)
		}
		if res.Record == nil {
			t.Fatal("written record should still be returned")
		}
	})
}

func TestProcessWithRealEnhancer(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 20), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	enh, err := enhance.New(enhance.DefaultConfig())
	if err != nil {
		t.Fatalf("enhance.New: %v", err)
	}

	f := newFixture()
	f.enhancer = enh
	req := request()
	req.Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	res, err := f.service().Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(res.Errors) != 0 || !res.Summary.EnhancementApplied {
		t.Fatalf("Errors = %v, Summary = %+v", res.Errors, res.Summary)
	}
	if f.store.puts[1].size == 0 {
		t.Fatal("enhanced image is empty")
	}
}

func TestEnhancedFileName(t *testing.T) {
	cases := map[string]string{
		"lake.png":          "lake_enhanced.jpg",
		"lake":              "lake_enhanced.jpg",
		"trips/lake.v2.jpg": "trips/lake.v2_enhanced.jpg",
		".hidden":           ".hidden_enhanced.jpg",
	}
	for in, want := range cases {
		if got := EnhancedFileName(in); got != want {
			t.Fatalf("EnhancedFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeImage(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff}
	for _, in := range []string{
		base64.StdEncoding.EncodeToString(raw),
		base64.RawStdEncoding.EncodeToString(raw),
		"data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw),
	} {
		got, err := decodeImage(in)
		if err != nil || !bytes.Equal(got, raw) {
			t.Fatalf("decodeImage(%q) = %v, %v", in, got, err)
		}
	}
	for _, in := range []string{"data:image/jpeg,abc", "!!!", "===="} {
		if _, err := decodeImage(in); err == nil {
			t.Fatalf("decodeImage(%q) should fail", in)
		}
	}
}

func TestProcessEnhancementFailureDoesNotCancelDetection(t *testing.T) {
	f := newFixture()
	gate := &gatedDetector{release: make(chan struct{}), labels: f.detector.labels}
	f.enhancer = enhancerFunc(func([]byte) ([]byte, error) {
		close(gate.release)
		return nil, enhance.ErrDecode
	})
	svc := f.service()
	svc.deps.Detector = gate

	res, err := svc.Process(context.Background(), request())
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if gate.ctxErr != nil {
		t.Fatalf("detection context cancelled: %v", gate.ctxErr)
	}
	if len(res.Labels) != 2 || res.Description == "" {
		t.Fatalf("labels and caption must survive an enhancement failure: %+v", res)
	}
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "Image enhancement failed: ") {
		t.Fatalf("Errors = %v", res.Errors)
	}
}
