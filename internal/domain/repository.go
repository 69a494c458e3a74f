package domain

import (
	"context"
	"time"
)

// ObjectStore stores blobs under bucket/key and issues time-limited read URLs.
type ObjectStore interface {
	// Put stores data and returns the canonical key it was written under.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
	Sign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// LabelDetector detects labels on an object already held in an ObjectStore.
type LabelDetector interface {
	DetectLabels(ctx context.Context, bucket, key string, opts DetectOptions) ([]Label, error)
}

// CaptionGenerator turns label names into a short caption.
type CaptionGenerator interface {
	Generate(ctx context.Context, labels []string) (string, error)
}

// RecordStore persists processing records.
type RecordStore interface {
	Put(ctx context.Context, record *ProcessRecord) error
	Get(ctx context.Context, id string) (*ProcessRecord, error)
	List(ctx context.Context, opts ListOptions) (*RecordPage, error)
}
